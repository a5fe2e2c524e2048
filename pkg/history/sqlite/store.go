// Package sqlite stores run history in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
)

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// Store implements history.Store on SQLite. Each run is one row whose
// payload column holds the encoded record; the metadata columns exist for
// ad-hoc queries.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	ids    history.IDGenerator
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", history.ErrWrite)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %v", history.ErrWrite, err)
	}
	// a single connection serializes writers inside the process
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping sqlite database: %v", history.ErrWrite, err)
	}
	s := &Store{db: db, logger: slog.Default()}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", history.ErrWrite, err)
	}
	return s, nil
}

// WithLogger sets the logger used for skipped-record warnings.
func (s *Store) WithLogger(l *slog.Logger) *Store {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	target        TEXT NOT NULL,
	completed_at  TEXT NOT NULL,
	total         INTEGER NOT NULL,
	passed        INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	errored       INTEGER NOT NULL,
	pass_rate     REAL NOT NULL,
	payload       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_target ON runs (target);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Append inserts run. A primary key collision with a row written by
// another process moves the id to its successor.
func (s *Store) Append(ctx context.Context, run *finding.Run) (history.RunID, error) {
	if run == nil {
		return "", history.ErrInvalidRun
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.Next(run.CompletedAt)
	for {
		inserted, err := s.insert(ctx, id, run)
		if err != nil {
			return "", fmt.Errorf("%w: %v", history.ErrWrite, err)
		}
		if inserted {
			return id, nil
		}
		id = id.Successor()
	}
}

func (s *Store) insert(ctx context.Context, id history.RunID, run *finding.Run) (bool, error) {
	payload, err := history.EncodeRecord(id, run)
	if err != nil {
		return false, err
	}
	query := `
INSERT INTO runs (id, target, completed_at, total, passed, failed, errored, pass_rate, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`
	sum := run.Summary
	res, err := s.db.ExecContext(ctx, query, string(id), run.Target,
		run.CompletedAt.UTC().Format(time.RFC3339Nano),
		sum.Total, sum.Passed, sum.Failed, sum.Errored, sum.PassRatePercent, payload)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// List returns entries most-recent-first.
func (s *Store) List(ctx context.Context, limit int) ([]history.Entry, error) {
	query := `SELECT id, payload FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		stored, run, err := history.DecodeRecord(payload)
		if err != nil || string(stored) != id {
			s.logger.Warn("skipping unreadable history record", slog.String("id", id))
			continue
		}
		entries = append(entries, history.EntryOf(stored, run))
	}
	return entries, rows.Err()
}

// Get returns the run stored under id.
func (s *Store) Get(ctx context.Context, id history.RunID) (*finding.Run, error) {
	if err := history.CheckID(id); err != nil {
		return nil, err
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, string(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", history.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	_, run, err := history.DecodeRecord(payload)
	return run, err
}

// Clear deletes every row.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
