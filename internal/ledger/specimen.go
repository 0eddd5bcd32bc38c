package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maxdollinger/specimen.io/internal/populate"
	"github.com/opencontainers/go-digest"
)

const (
	SpecimenBuilt  = "built"
	SpecimenFailed = "failed"
)

// Specimen is one image of a run. Position is its index in the job table.
type Specimen struct {
	RunID     string
	Position  int
	Name      string
	Kind      string
	Path      string
	FsUUID    string
	SizeBytes int64
	Digest    digest.Digest
	Status    string
	Error     *string
	CreatedAt time.Time
}

// execer is what *sql.DB and *sql.Tx share for writes.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertSpecimenQuery = `
	INSERT INTO specimens (run_id, position, name, kind, path, fs_uuid, size_bytes, digest, status, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func InsertSpecimen(ctx context.Context, ledgerDB *sql.DB, s *Specimen) error {
	return insertSpecimen(ctx, ledgerDB, insertSpecimenQuery, s)
}

// RecordSpecimen stores a specimen together with its unicode attempts in one
// transaction, so a failed attempt insert leaves no specimen row behind.
func RecordSpecimen(ctx context.Context, ledgerDB *sql.DB, s *Specimen, attempts []populate.UnicodeAttempt) (err error) {
	tx, err := ledgerDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin specimen %s: %w", s.Name, err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if err := insertSpecimen(ctx, tx, insertSpecimenQuery, s); err != nil {
		return err
	}
	if err := insertUnicodeAttempts(ctx, tx, s.RunID, s.Name, attempts); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveFailedSpecimen records s as failed. A row already stored for the same
// run and name is overwritten and loses its digest.
func SaveFailedSpecimen(ctx context.Context, ledgerDB *sql.DB, s *Specimen) error {
	query := insertSpecimenQuery + `
	ON CONFLICT (run_id, name) DO UPDATE SET
		status = excluded.status,
		error = excluded.error,
		digest = NULL,
		size_bytes = excluded.size_bytes,
		created_at = excluded.created_at
`
	s.Status = SpecimenFailed
	s.Digest = ""
	return insertSpecimen(ctx, ledgerDB, query, s)
}

func insertSpecimen(ctx context.Context, q execer, query string, s *Specimen) error {
	now := time.Now().Unix()

	var errText sql.NullString
	if s.Error != nil {
		errText = nullString(*s.Error)
	}

	_, err := q.ExecContext(ctx, query,
		s.RunID, s.Position, s.Name, s.Kind, s.Path, s.FsUUID,
		s.SizeBytes, nullString(s.Digest.String()), s.Status, errText, now)
	if err != nil {
		return fmt.Errorf("insert specimen %s: %w", s.Name, err)
	}

	s.CreatedAt = time.Unix(now, 0)
	return nil
}

// ListSpecimensByRun returns the specimens of a run in job table order.
func ListSpecimensByRun(ctx context.Context, ledgerDB *sql.DB, runID string) ([]*Specimen, error) {
	query := `
		SELECT run_id, position, name, kind, path, fs_uuid, size_bytes, digest, status, error, created_at
		FROM specimens WHERE run_id = ? ORDER BY position
	`
	rows, err := ledgerDB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specimens []*Specimen
	for rows.Next() {
		var (
			s         Specimen
			dgst      sql.NullString
			errText   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&s.RunID, &s.Position, &s.Name, &s.Kind, &s.Path, &s.FsUUID,
			&s.SizeBytes, &dgst, &s.Status, &errText, &createdAt); err != nil {
			return nil, err
		}

		if dgst.Valid {
			s.Digest = digest.Digest(dgst.String)
		}
		if errText.Valid {
			s.Error = &errText.String
		}
		s.CreatedAt = time.Unix(createdAt, 0)
		specimens = append(specimens, &s)
	}

	return specimens, rows.Err()
}
