// Package history persists completed runs and retrieves them by recency.
//
// History is append-only: a stored run is never modified. Every backend
// publishes a run atomically, so List and Get observe either the state
// before an Append or the state after it, never a partial record.
//
// Backends:
//
//	history.NewFileStore(dir)     one JSON file per run (default)
//	sqlite.Open(path)             modernc.org/sqlite
//	postgres.Open(ctx, dsn)       pgx connection pool
//	redis.Open(ctx, url, prefix)  go-redis with a sorted-set index
package history

import (
	"context"
	"time"

	"github.com/casatester/casatester/pkg/finding"
)

// Store persists runs.
type Store interface {
	// Append stores a copy of run and returns its id.
	Append(ctx context.Context, run *finding.Run) (RunID, error)

	// List returns entries most-recent-first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Get returns the stored run or an error wrapping ErrNotFound.
	Get(ctx context.Context, id RunID) (*finding.Run, error)

	// Clear removes every stored run.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Entry is the listing metadata of a stored run.
type Entry struct {
	ID          RunID           `json:"id"`
	Target      string          `json:"target"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Summary     finding.Summary `json:"summary"`
}

// EntryOf builds the listing entry for run stored under id.
func EntryOf(id RunID, run *finding.Run) Entry {
	return Entry{
		ID:          id,
		Target:      run.Target,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Summary:     run.Summary,
	}
}

// Latest returns the most recent stored run and its id.
func Latest(ctx context.Context, s Store) (RunID, *finding.Run, error) {
	entries, err := s.List(ctx, 1)
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 0 {
		return "", nil, ErrNotFound
	}
	run, err := s.Get(ctx, entries[0].ID)
	if err != nil {
		return "", nil, err
	}
	return entries[0].ID, run, nil
}
