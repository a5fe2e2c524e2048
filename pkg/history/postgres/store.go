// Package postgres stores run history in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
)

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// Store implements history.Store on PostgreSQL.
type Store struct {
	db     *pgxpool.Pool
	mu     sync.Mutex
	ids    history.IDGenerator
	logger *slog.Logger
}

// Open connects to the database at connString and migrates the schema.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: create connection pool: %v", history.ErrWrite, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %v", history.ErrWrite, err)
	}
	s := &Store{db: pool, logger: slog.Default()}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
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
	CREATE TABLE IF NOT EXISTS casatester_runs (
		id            TEXT PRIMARY KEY,
		target        TEXT NOT NULL,
		completed_at  TIMESTAMPTZ NOT NULL,
		failed        INTEGER NOT NULL,
		errored       INTEGER NOT NULL,
		pass_rate     DOUBLE PRECISION NOT NULL,
		payload       JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_casatester_runs_target ON casatester_runs (target, id DESC);
	`
	_, err := s.db.Exec(ctx, schema)
	return err
}

// Append inserts run, moving to the successor id on a key collision.
func (s *Store) Append(ctx context.Context, run *finding.Run) (history.RunID, error) {
	if run == nil {
		return "", history.ErrInvalidRun
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.Next(run.CompletedAt)
	for {
		payload, err := history.EncodeRecord(id, run)
		if err != nil {
			return "", fmt.Errorf("%w: encode: %v", history.ErrWrite, err)
		}
		query := `
		INSERT INTO casatester_runs (id, target, completed_at, failed, errored, pass_rate, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
		tag, err := s.db.Exec(ctx, query, string(id), run.Target, run.CompletedAt,
			run.Summary.Failed, run.Summary.Errored, run.Summary.PassRatePercent, string(payload))
		if err != nil {
			return "", fmt.Errorf("%w: %v", history.ErrWrite, err)
		}
		if tag.RowsAffected() == 1 {
			return id, nil
		}
		id = id.Successor()
	}
}

// List returns entries most-recent-first.
func (s *Store) List(ctx context.Context, limit int) ([]history.Entry, error) {
	query := `SELECT id, payload::text FROM casatester_runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		stored, run, err := history.DecodeRecord([]byte(payload))
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
	var payload string
	err := s.db.QueryRow(ctx, `SELECT payload::text FROM casatester_runs WHERE id = $1`, string(id)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", history.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	_, run, err := history.DecodeRecord([]byte(payload))
	return run, err
}

// Clear deletes every stored run.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(ctx, `DELETE FROM casatester_runs`); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
