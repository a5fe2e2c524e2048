// Package redis stores run history in Redis. Each run is a string key
// holding the encoded record; a sorted set with all scores zero indexes the
// ids, so its lexical order is the chronological order of the runs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
)

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// Store implements history.Store on Redis.
type Store struct {
	client *redis.Client
	prefix string
	mu     sync.Mutex
	ids    history.IDGenerator
	logger *slog.Logger
}

// Open connects to the server at redisURL. Keys are namespaced by prefix.
func Open(ctx context.Context, redisURL, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis URL: %v", history.ErrWrite, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis connection failed: %v", history.ErrWrite, err)
	}
	return &Store{client: client, prefix: prefix, logger: slog.Default()}, nil
}

// WithLogger sets the logger used for skipped-record warnings.
func (s *Store) WithLogger(l *slog.Logger) *Store {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *Store) indexKey() string { return s.prefix + "index" }

func (s *Store) runKey(id history.RunID) string { return s.prefix + "run:" + string(id) }

// Append writes the record with SETNX and only then indexes it, so List
// never returns an id whose record is missing.
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
		ok, err := s.client.SetNX(ctx, s.runKey(id), payload, 0).Result()
		if err != nil {
			return "", fmt.Errorf("%w: %v", history.ErrWrite, err)
		}
		if ok {
			break
		}
		id = id.Successor()
	}
	if err := s.client.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: string(id)}).Err(); err != nil {
		s.client.Del(context.WithoutCancel(ctx), s.runKey(id))
		return "", fmt.Errorf("%w: index: %v", history.ErrWrite, err)
	}
	return id, nil
}

// List returns entries most-recent-first.
func (s *Store) List(ctx context.Context, limit int) ([]history.Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.runKey(history.RunID(m))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	entries := make([]history.Entry, 0, len(values))
	for i, v := range values {
		payload, ok := v.(string)
		if !ok {
			continue
		}
		stored, run, err := history.DecodeRecord([]byte(payload))
		if err != nil || string(stored) != members[i] {
			s.logger.Warn("skipping unreadable history record", slog.String("id", members[i]))
			continue
		}
		entries = append(entries, history.EntryOf(stored, run))
	}
	return entries, nil
}

// Get returns the run stored under id.
func (s *Store) Get(ctx context.Context, id history.RunID) (*finding.Run, error) {
	if err := history.CheckID(id); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", history.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	_, run, err := history.DecodeRecord(data)
	return run, err
}

// Clear removes every indexed run and the index in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range members {
			pipe.Del(ctx, s.runKey(history.RunID(m)))
		}
		pipe.Del(ctx, s.indexKey())
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }
