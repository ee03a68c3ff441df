/*
Package sqlite provides a SQLite-backed pipeline.RunStore.

PURPOSE:
  Keeps the audit trail of variance runs: when each run started and
  finished, whether it failed and why, how many rows it reconciled and
  flagged, and how many rows each rule matched. Input and output records
  are never stored; the report file is the artifact.

KEY TABLES:
  variance_runs:       One row per run
  variance_run_rules:  Per-rule match counts for a run

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of database/sql pooling.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so the HTTP server can
  read history while a run is being recorded.

USAGE:
  store, err := sqlite.New("./data/variance_runs.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  runner := pipeline.NewRunner(opts, log, store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - pipeline/types.go: RunStore and RunRecord
  - store/memory/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/shift-variance/pipeline"
)

// Store implements pipeline.RunStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS variance_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		shift_rows INTEGER NOT NULL DEFAULT 0,
		flagged_rows INTEGER NOT NULL DEFAULT 0,
		output_path TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_variance_runs_started_at
		ON variance_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_variance_runs_status
		ON variance_runs(status);

	CREATE TABLE IF NOT EXISTS variance_run_rules (
		run_id TEXT NOT NULL REFERENCES variance_runs(id) ON DELETE CASCADE,
		rule_id TEXT NOT NULL,
		matched_rows INTEGER NOT NULL,
		PRIMARY KEY (run_id, rule_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE (pipeline.RunStore interface)
// =============================================================================

// SaveRun inserts or replaces a run and its rule counts in one transaction.
func (s *Store) SaveRun(ctx context.Context, r pipeline.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO variance_runs (id, status, error_kind, error, shift_rows, flagged_rows,
			output_path, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error_kind = excluded.error_kind,
			error = excluded.error,
			shift_rows = excluded.shift_rows,
			flagged_rows = excluded.flagged_rows,
			output_path = excluded.output_path,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if !r.CompletedAt.IsZero() {
		v := r.CompletedAt.UTC().Format(timeLayout)
		completedAt = &v
	}

	if _, err := tx.ExecContext(ctx, query,
		r.ID, string(r.Status), nullString(r.ErrorKind), nullString(r.Error),
		r.ShiftRows, r.FlaggedRows, r.OutputPath,
		r.StartedAt.UTC().Format(timeLayout), completedAt,
	); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM variance_run_rules WHERE run_id = ?", r.ID); err != nil {
		return fmt.Errorf("failed to reset rule counts: %w", err)
	}
	for rule, n := range r.RuleCounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO variance_run_rules (run_id, rule_id, matched_rows) VALUES (?, ?, ?)",
			r.ID, rule, n,
		); err != nil {
			return fmt.Errorf("failed to save rule count: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*pipeline.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs, err := s.queryRuns(ctx, selectRuns+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, pipeline.ErrRunNotFound
	}
	if err := s.loadRuleCounts(ctx, runs); err != nil {
		return nil, err
	}
	return &runs[0], nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]pipeline.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectRuns + " ORDER BY started_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	runs, err := s.queryRuns(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.loadRuleCounts(ctx, runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// timeLayout is fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectRuns = `
	SELECT id, status, error_kind, error, shift_rows, flagged_rows,
		output_path, started_at, completed_at
	FROM variance_runs`

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]pipeline.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []pipeline.RunRecord
	for rows.Next() {
		var r pipeline.RunRecord
		var status, startedAt string
		var errorKind, errText, completedAt sql.NullString
		if err := rows.Scan(
			&r.ID, &status, &errorKind, &errText, &r.ShiftRows, &r.FlaggedRows,
			&r.OutputPath, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}

		r.Status = pipeline.Status(status)
		r.ErrorKind = errorKind.String
		r.Error = errText.String
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if completedAt.Valid {
			r.CompletedAt, _ = time.Parse(timeLayout, completedAt.String)
		}
		r.RuleCounts = make(map[string]int)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) loadRuleCounts(ctx context.Context, runs []pipeline.RunRecord) error {
	for i := range runs {
		rows, err := s.db.QueryContext(ctx,
			"SELECT rule_id, matched_rows FROM variance_run_rules WHERE run_id = ?",
			runs[i].ID,
		)
		if err != nil {
			return err
		}
		for rows.Next() {
			var rule string
			var n int
			if err := rows.Scan(&rule, &n); err != nil {
				rows.Close()
				return err
			}
			runs[i].RuleCounts[rule] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Reset deletes all run history.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM variance_run_rules; DELETE FROM variance_runs;")
	return err
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// IsNotFound reports whether err is a missing-run error.
func IsNotFound(err error) bool {
	return errors.Is(err, pipeline.ErrRunNotFound)
}
