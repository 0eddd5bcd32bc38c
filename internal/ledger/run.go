package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maxdollinger/specimen.io/pkg/utils"
)

var ErrRunNotFound = errors.New("run not found")

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

type Run struct {
	ID         string
	Status     string
	Jobs       int
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// InsertRun starts a run over jobs specimens.
func InsertRun(ctx context.Context, ledgerDB *sql.DB, jobs int) (*Run, error) {
	runID, err := utils.NewUUID7()
	if err != nil {
		return nil, fmt.Errorf("error generating run uuid: %w", err)
	}
	now := time.Now().Unix()

	query := `
		INSERT INTO runs (id, status, jobs, started_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := ledgerDB.ExecContext(ctx, query, runID, StatusRunning, jobs, now); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return &Run{
		ID:        runID,
		Status:    StatusRunning,
		Jobs:      jobs,
		StartedAt: time.Unix(now, 0),
	}, nil
}

// FinishRun closes a run, failed when runErr is set.
func FinishRun(ctx context.Context, ledgerDB *sql.DB, runID string, runErr error) error {
	status := StatusSucceeded
	if runErr != nil {
		status = StatusFailed
	}

	query := `UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`
	res, err := ledgerDB.ExecContext(ctx, query, status, errString(runErr), time.Now().Unix(), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}

	return nil
}

func GetRunByID(ctx context.Context, ledgerDB *sql.DB, runID string) (*Run, error) {
	query := `SELECT id, status, jobs, error, started_at, finished_at FROM runs WHERE id = ?`
	row := ledgerDB.QueryRowContext(ctx, query, runID)

	var (
		run        Run
		runErr     sql.NullString
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := row.Scan(&run.ID, &run.Status, &run.Jobs, &runErr, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	run.StartedAt = time.Unix(startedAt, 0)
	if runErr.Valid {
		run.Error = &runErr.String
	}
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		run.FinishedAt = &t
	}
	return &run, nil
}
