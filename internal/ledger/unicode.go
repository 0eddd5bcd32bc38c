package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maxdollinger/specimen.io/internal/populate"
)

// InsertUnicodeAttempts stores a job's attempts in input order, all or none.
func InsertUnicodeAttempts(ctx context.Context, ledgerDB *sql.DB, runID, job string, attempts []populate.UnicodeAttempt) (err error) {
	tx, err := ledgerDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unicode attempts: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if err := insertUnicodeAttempts(ctx, tx, runID, job, attempts); err != nil {
		return err
	}

	return tx.Commit()
}

func insertUnicodeAttempts(ctx context.Context, tx *sql.Tx, runID, job string, attempts []populate.UnicodeAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unicode_attempts (run_id, job, seq, code_point, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare unicode attempts: %w", err)
	}
	defer stmt.Close()

	for i, a := range attempts {
		if _, err := stmt.ExecContext(ctx, runID, job, i, int64(a.CodePoint), string(a.Outcome), errString(a.Err)); err != nil {
			return fmt.Errorf("insert unicode attempt U+%04X: %w", a.CodePoint, err)
		}
	}
	return nil
}

// CountUnicodeOutcomes returns how many attempts of a job were created and
// rejected.
func CountUnicodeOutcomes(ctx context.Context, ledgerDB *sql.DB, runID, job string) (created, rejected int, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN outcome = 'created' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'rejected' THEN 1 ELSE 0 END), 0)
		FROM unicode_attempts WHERE run_id = ? AND job = ?
	`
	err = ledgerDB.QueryRowContext(ctx, query, runID, job).Scan(&created, &rejected)
	return created, rejected, err
}

// ListRejectedCodePoints returns the rejected code points of a job in input
// order.
func ListRejectedCodePoints(ctx context.Context, ledgerDB *sql.DB, runID, job string) ([]rune, error) {
	query := `SELECT code_point FROM unicode_attempts WHERE run_id = ? AND job = ? AND outcome = 'rejected' ORDER BY seq`
	rows, err := ledgerDB.QueryContext(ctx, query, runID, job)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []rune
	for rows.Next() {
		var cp int64
		if err := rows.Scan(&cp); err != nil {
			return nil, err
		}
		points = append(points, rune(cp))
	}
	return points, rows.Err()
}
