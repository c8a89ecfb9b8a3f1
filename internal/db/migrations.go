package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Migration struct {
	Version int
	Up      []string
}

var migrations = []Migration{
	{
		Version: 1,
		Up: []string{
			`CREATE TABLE IF NOT EXISTS activations (
				cycle_id VARCHAR PRIMARY KEY,
				fired_at TIMESTAMP NOT NULL,
				status VARCHAR NOT NULL,
				attempts INTEGER NOT NULL,
				input_tokens INTEGER,
				output_tokens INTEGER,
				total_tokens INTEGER,
				error_kind VARCHAR NOT NULL DEFAULT '',
				error_message VARCHAR NOT NULL DEFAULT '',
				next_run_at TIMESTAMP,
				interface_type VARCHAR NOT NULL,
				model VARCHAR NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS activations_fired_at ON activations(fired_at)`,
		},
	},
}

// Migrate brings db up to the latest schema version.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
		m.Version, time.Now().UTC(),
	); err != nil {
		return err
	}
	return tx.Commit()
}
