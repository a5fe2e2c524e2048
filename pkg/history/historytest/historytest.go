// Package historytest is a conformance suite for history.Store backends.
// Every backend's tests call Run with a constructor for a fresh, empty store.
package historytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/testutil"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) history.Store

var base = time.Date(2026, 10, 15, 8, 30, 0, 123456789, time.UTC)

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, newStore(t)) })
	t.Run("ListOrderAndLimit", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("SameTickDistinctIDs", func(t *testing.T) { testSameTick(t, newStore(t)) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newStore(t)) })
	t.Run("ConcurrentAppend", func(t *testing.T) { testConcurrentAppend(t, newStore(t)) })
	t.Run("AppendNil", func(t *testing.T) { testAppendNil(t, newStore(t)) })
	t.Run("StoredCopyIsIndependent", func(t *testing.T) { testIndependentCopy(t, newStore(t)) })
}

func closeStore(t *testing.T, s history.Store) {
	t.Cleanup(func() { _ = s.Close() })
}

func testRoundTrip(t *testing.T, s history.Store) {
	closeStore(t, s)
	ctx := context.Background()
	run := testutil.SampleRun("https://example.com/app", base,
		probe.OutcomePass, probe.OutcomePass, probe.OutcomePass, probe.OutcomePass,
		probe.OutcomeFail, probe.OutcomeError)
	run.Results[2].Detail = "unicode ✓ and \"quotes\"\n\ttabs"

	id, err := s.Append(ctx, run)
	require.NoError(t, err)
	assert.True(t, id.Valid(), "id %q", id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.Equal(t, 66.7, got.Summary.PassRatePercent)

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.EntryOf(id, run), entries[0])
}

func testGetUnknown(t *testing.T, s history.Store) {
	closeStore(t, s)
	ctx := context.Background()

	_, err := s.Get(ctx, "20260101T000000.000000000Z-0000")
	assert.True(t, errors.Is(err, history.ErrNotFound), "got %v", err)

	_, err = s.Get(ctx, "../../etc/passwd")
	assert.True(t, errors.Is(err, history.ErrNotFound), "got %v", err)
}

func testListOrder(t *testing.T, s history.Store) {
	closeStore(t, s)
	ctx := context.Background()

	var ids []history.RunID
	// append out of chronological order
	for _, offset := range []int{2, 0, 3, 1} {
		run := testutil.SampleRun(fmt.Sprintf("https://t%d.example.com", offset), base.Add(time.Duration(offset)*time.Minute), probe.OutcomePass)
		id, err := s.Append(ctx, run)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, want := range []string{"https://t3.example.com", "https://t2.example.com", "https://t1.example.com", "https://t0.example.com"} {
		assert.Equal(t, want, entries[i].Target)
	}
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].CompletedAt.After(entries[i].CompletedAt))
	}

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, entries[:2], limited)

	latestID, latest, err := history.Latest(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, entries[0].ID, latestID)
	assert.Equal(t, "https://t3.example.com", latest.Target)
}

func testSameTick(t *testing.T, s history.Store) {
	closeStore(t, s)
	ctx := context.Background()

	a := testutil.SampleRun("https://a.example.com", base, probe.OutcomePass)
	b := testutil.SampleRun("https://b.example.com", base, probe.OutcomeFail)

	idA, err := s.Append(ctx, a)
	require.NoError(t, err)
	idB, err := s.Append(ctx, b)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)

	gotA, err := s.Get(ctx, idA)
	require.NoError(t, err)
	gotB, err := s.Get(ctx, idB)
	require.NoError(t, err)
	assert.Equal(t, a, gotA)
	assert.Equal(t, b, gotB)

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, idB, entries[0].ID, "later append of the same tick lists first")
}

func testClear(t *testing.T, s history.Store) {
	closeStore(t, s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, testutil.SampleRun("https://example.com", base.Add(time.Duration(i)*time.Second), probe.OutcomePass))
		require.NoError(t, err)
	}
	require.NoError(t, s.Clear(ctx))

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// clearing an empty store is fine and the store stays usable
	require.NoError(t, s.Clear(ctx))
	id, err := s.Append(ctx, testutil.SampleRun("https://example.com", base, probe.OutcomeFail))
	require.NoError(t, err)
	_, err = s.Get(ctx, id)
	require.NoError(t, err)
}

func testConcurrentAppend(t *testing.T, s history.Store) {
	closeStore(t, s)
	ctx := context.Background()

	const writers = 8
	runs := make([]*finding.Run, writers)
	for i := range runs {
		outcomes := make([]probe.Outcome, 13)
		for j := range outcomes {
			outcomes[j] = probe.OutcomePass
		}
		outcomes[i%13] = probe.OutcomeFail
		runs[i] = testutil.SampleRun(fmt.Sprintf("https://w%d.example.com", i), base, outcomes...)
	}

	ids := make([]history.RunID, writers)
	var listErrs sync.Map
	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			entries, err := s.List(ctx, 0)
			if err != nil {
				listErrs.Store("list", err)
				return
			}
			for _, e := range entries {
				if e.Summary.Total != 13 {
					listErrs.Store(string(e.ID), fmt.Errorf("partial record: %+v", e.Summary))
				}
			}
		}
	}()

	testutil.RunConcurrently(writers, func(i int) {
		id, err := s.Append(ctx, runs[i])
		if err != nil {
			listErrs.Store(fmt.Sprintf("append-%d", i), err)
			return
		}
		ids[i] = id
	})
	close(stop)
	readers.Wait()

	listErrs.Range(func(k, v any) bool {
		t.Errorf("%v: %v", k, v)
		return true
	})

	seen := map[history.RunID]bool{}
	for i, id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, runs[i], got)
	}

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, writers)
}

func testAppendNil(t *testing.T, s history.Store) {
	closeStore(t, s)
	_, err := s.Append(context.Background(), nil)
	assert.True(t, errors.Is(err, history.ErrInvalidRun), "got %v", err)
}

func testIndependentCopy(t *testing.T, s history.Store) {
	closeStore(t, s)
	ctx := context.Background()
	run := testutil.SampleRun("https://example.com", base, probe.OutcomePass)

	id, err := s.Append(ctx, run)
	require.NoError(t, err)
	run.Results[0].Outcome = probe.OutcomeFail

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, probe.OutcomePass, got.Results[0].Outcome)

	got.Results[0].Summary = "mutated"
	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Results[0].Summary)
}
