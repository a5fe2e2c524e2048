package finding

import (
	"testing"
	"time"

	"github.com/casatester/casatester/pkg/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Filters(t *testing.T) {
	run := &Run{Results: results(probe.OutcomeFail, probe.OutcomePass, probe.OutcomeError, probe.OutcomeFail)}

	failed := run.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "a", failed[0].ProbeID)
	assert.Equal(t, "d", failed[1].ProbeID)

	errored := run.Errored()
	require.Len(t, errored, 1)
	assert.Equal(t, "c", errored[0].ProbeID)
}

func TestRun_CloneIsDeep(t *testing.T) {
	run := &Run{Target: "https://example.com", Results: results(probe.OutcomePass)}
	c := run.Clone()
	c.Results[0].Outcome = probe.OutcomeFail

	assert.Equal(t, probe.OutcomePass, run.Results[0].Outcome)
	assert.Nil(t, (*Run)(nil).Clone())
}

func TestRun_Duration(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	run := &Run{StartedAt: start, CompletedAt: start.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1500*time.Millisecond, run.Duration())
}

func TestTimestamp_StripsMonotonicAndZone(t *testing.T) {
	now := time.Now()
	ts := Timestamp(now)

	assert.Equal(t, time.UTC, ts.Location())
	assert.True(t, ts.Equal(now))
	assert.Equal(t, ts, ts.Round(0))
}
