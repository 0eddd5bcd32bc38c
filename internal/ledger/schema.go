// Package ledger records generator runs, the specimens they produced and the
// outcome of every Unicode name attempt in a sqlite catalog next to the images.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migration/*.sql
var migrationFiles embed.FS

// NewDB opens the catalog at path, creating the file if needed.
func NewDB(path string) (*sql.DB, error) {
	ledgerDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	// single writer, the generator is sequential
	ledgerDB.SetMaxOpenConns(1)

	if err := ledgerDB.Ping(); err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}

	return ledgerDB, nil
}

func InitSchema(ctx context.Context, ledgerDB *sql.DB) error {
	schema, err := migrationFiles.ReadFile("migration/001_initial.sql")
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	_, err = ledgerDB.ExecContext(ctx, string(schema))
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Open is NewDB followed by InitSchema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	ledgerDB, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	if err := InitSchema(ctx, ledgerDB); err != nil {
		ledgerDB.Close()
		return nil, err
	}
	return ledgerDB, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func errString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return nullString(err.Error())
}
