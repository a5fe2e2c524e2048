package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/casatester/casatester/pkg/finding"
)

const (
	recordExt  = ".json"
	tempPrefix = ".pending-"
)

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore keeps one JSON file per run in a directory.
//
// Append writes a dot-prefixed temp file in the same directory, syncs it
// and renames it into place; List and Get only read files whose names are
// run ids, so a half-written temp file is never observed. Appends are
// serialized. Only one process should write to a directory at a time.
type FileStore struct {
	mu     sync.RWMutex
	dir    string
	ids    IDGenerator
	logger *slog.Logger
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty history directory", ErrWrite)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return &FileStore{dir: dir, logger: slog.Default()}, nil
}

// WithLogger sets the logger used for skipped-record warnings.
func (s *FileStore) WithLogger(l *slog.Logger) *FileStore {
	if l != nil {
		s.logger = l
	}
	return s
}

// Dir returns the directory holding the records.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id RunID) string {
	return filepath.Join(s.dir, string(id)+recordExt)
}

// Append stores run and returns its id.
func (s *FileStore) Append(ctx context.Context, run *finding.Run) (RunID, error) {
	if run == nil {
		return "", ErrInvalidRun
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.Next(run.CompletedAt)
	for {
		_, err := os.Stat(s.path(id))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrWrite, err)
		}
		id = id.Successor()
	}

	data, err := EncodeRecord(id, run)
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", ErrWrite, err)
	}
	if err := s.publish(id, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return id, nil
}

// publish writes data to a temp file and renames it to the record path.
func (s *FileStore) publish(id RunID, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, s.path(id)); err != nil {
		cleanup()
		return err
	}
	return nil
}

// List returns entries most-recent-first.
func (s *FileStore) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.listIDs()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(entries) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run, err := s.read(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			s.logger.Warn("skipping unreadable history record",
				slog.String("id", string(id)), slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, EntryOf(id, run))
	}
	return entries, nil
}

// listIDs returns stored ids sorted newest first.
func (s *FileStore) listIDs() ([]RunID, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []RunID
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(de.Name(), recordExt)
		if !ok {
			continue
		}
		if id := RunID(name); id.Valid() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

// Get returns the run stored under id.
func (s *FileStore) Get(ctx context.Context, id RunID) (*finding.Run, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id)
}

func (s *FileStore) read(id RunID) (*finding.Run, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	stored, run, err := DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	if stored != id {
		return nil, fmt.Errorf("%w: file %s holds id %s", ErrCorrupt, id, stored)
	}
	return run, nil
}

// Clear removes every stored run and any abandoned temp file. Other files
// in the directory are left alone.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	var errs []error
	for _, de := range dirents {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		name := de.Name()
		if de.IsDir() {
			continue
		}
		base, isRecord := strings.CutSuffix(name, recordExt)
		if !(isRecord && RunID(base).Valid()) && !strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrWrite, errors.Join(errs...))
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
