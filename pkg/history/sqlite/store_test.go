package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/history/historytest"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/testutil"
)

func TestStore_Conformance(t *testing.T) {
	historytest.Run(t, func(t *testing.T) history.Store {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_ReopenKeepsRunsAndAvoidsCollisions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	id1, err := s1.Append(ctx, testutil.SampleRun("https://one.example.com", at, probe.OutcomePass))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	id2, err := s2.Append(ctx, testutil.SampleRun("https://two.example.com", at, probe.OutcomeFail))
	require.NoError(t, err)
	assert.Equal(t, id1.Successor(), id2)

	entries, err := s2.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://two.example.com", entries[0].Target)
}

func TestStore_SkipsCorruptPayload(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	good, err := s.Append(ctx, testutil.SampleRun("https://example.com", time.Now(), probe.OutcomePass))
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs (id, target, completed_at, total, passed, failed, errored, pass_rate, payload)
VALUES ('20990101T000000.000000000Z-0000', 'x', 'x', 0, 0, 0, 0, 0, '{broken')`)
	require.NoError(t, err)

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, good, entries[0].ID)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.ErrorIs(t, err, history.ErrWrite)
}
