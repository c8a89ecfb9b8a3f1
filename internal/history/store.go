// Package history keeps an append-only ledger of activation cycles in DuckDB.
// The scheduler never reads it back.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/strrl/activator/internal/db"
	"github.com/strrl/activator/internal/scheduler"
)

type Record struct {
	CycleID       string
	FiredAt       time.Time
	Status        string
	Attempts      int
	InputTokens   *int
	OutputTokens  *int
	TotalTokens   *int
	ErrorKind     string
	ErrorMessage  string
	NextRunAt     time.Time
	InterfaceType string
	Model         string
}

// FromResult flattens a cycle result. model is used when the response did not name one.
func FromResult(res scheduler.Result, interfaceType, model string) Record {
	rec := Record{
		CycleID:       res.CycleID,
		FiredAt:       res.Timestamp,
		Status:        string(res.Outcome),
		Attempts:      res.Attempts,
		ErrorKind:     string(res.ErrorKind),
		NextRunAt:     res.NextRunTime,
		InterfaceType: interfaceType,
		Model:         model,
	}
	if res.Model != "" {
		rec.Model = res.Model
	}
	if res.Err != nil {
		rec.ErrorMessage = res.Err.Error()
	}
	if u := res.Usage; u != nil {
		rec.InputTokens = &u.InputTokens
		rec.OutputTokens = &u.OutputTokens
		rec.TotalTokens = &u.TotalTokens
	}
	return rec
}

type Stats struct {
	Total       int
	Succeeded   int
	Failed      int
	Cancelled   int
	LastSuccess time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens the ledger at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return &Store{db: database}, nil
}

// OpenReadOnly opens an existing ledger for reading. It never migrates.
func OpenReadOnly(ctx context.Context, path string) (*Store, error) {
	database, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	version, err := db.SchemaVersion(ctx, database)
	if err != nil || version == 0 {
		database.Close()
		return nil, fmt.Errorf("%s is not an activation history database", path)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.CycleID == "" {
		return fmt.Errorf("cycle id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activations (
			cycle_id, fired_at, status, attempts,
			input_tokens, output_tokens, total_tokens,
			error_kind, error_message, next_run_at,
			interface_type, model
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		rec.CycleID, rec.FiredAt.UTC(), rec.Status, rec.Attempts,
		nullInt(rec.InputTokens), nullInt(rec.OutputTokens), nullInt(rec.TotalTokens),
		rec.ErrorKind, rec.ErrorMessage, nullTime(rec.NextRunAt),
		rec.InterfaceType, rec.Model,
	)
	if err != nil {
		return fmt.Errorf("failed to record activation %s: %w", rec.CycleID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			cycle_id, fired_at, status, attempts,
			input_tokens, output_tokens, total_tokens,
			error_kind, error_message, next_run_at,
			interface_type, model
		FROM activations
		ORDER BY fired_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                  Record
			input, output, total sql.NullInt64
			nextRun              sql.NullTime
		)
		if err := rows.Scan(
			&rec.CycleID, &rec.FiredAt, &rec.Status, &rec.Attempts,
			&input, &output, &total,
			&rec.ErrorKind, &rec.ErrorMessage, &nextRun,
			&rec.InterfaceType, &rec.Model,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}
		rec.InputTokens = intPtr(input)
		rec.OutputTokens = intPtr(output)
		rec.TotalTokens = intPtr(total)
		if nextRun.Valid {
			rec.NextRunAt = nextRun.Time
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return records, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st   Stats
		last sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			MAX(fired_at) FILTER (WHERE status = $1)
		FROM activations
	`,
		string(scheduler.OutcomeSucceeded),
		string(scheduler.OutcomeFailed),
		string(scheduler.OutcomeCancelled),
	).Scan(&st.Total, &st.Succeeded, &st.Failed, &st.Cancelled, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	if last.Valid {
		st.LastSuccess = last.Time
	}
	return st, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
