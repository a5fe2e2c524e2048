package finding

import (
	"testing"

	"github.com/casatester/casatester/pkg/probe"
	"github.com/stretchr/testify/assert"
)

func results(outcomes ...probe.Outcome) []probe.Result {
	out := make([]probe.Result, len(outcomes))
	for i, o := range outcomes {
		out[i] = probe.Result{ProbeID: string(rune('a' + i)), Outcome: o}
	}
	return out
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{}, Summarize([]probe.Result{}))
}

func TestSummarize_ErrorCountsInDenominatorOnly(t *testing.T) {
	rs := results(
		probe.OutcomePass, probe.OutcomePass, probe.OutcomePass, probe.OutcomePass,
		probe.OutcomeFail, probe.OutcomeError,
	)

	s := Summarize(rs)
	assert.Equal(t, Summary{Total: 6, Passed: 4, Failed: 1, Errored: 1, PassRatePercent: 66.7}, s)
}

func TestSummarize_Rounding(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []probe.Outcome
		want     float64
	}{
		{"all pass", []probe.Outcome{probe.OutcomePass, probe.OutcomePass}, 100},
		{"none pass", []probe.Outcome{probe.OutcomeFail, probe.OutcomeError}, 0},
		{"one third", []probe.Outcome{probe.OutcomePass, probe.OutcomeFail, probe.OutcomeFail}, 33.3},
		{"two thirds", []probe.Outcome{probe.OutcomePass, probe.OutcomePass, probe.OutcomeError}, 66.7},
		{"one of thirteen", append([]probe.Outcome{probe.OutcomePass}, repeat(probe.OutcomeFail, 12)...), 7.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(results(tt.outcomes...)).PassRatePercent)
		})
	}
}

func TestSummarize_UnknownOutcomeIsErrored(t *testing.T) {
	s := Summarize([]probe.Result{{Outcome: "bogus"}, {Outcome: probe.OutcomePass}})
	assert.Equal(t, 1, s.Errored)
	assert.Equal(t, 50.0, s.PassRatePercent)
}

func TestSummarize_DoesNotReorder(t *testing.T) {
	rs := results(probe.OutcomeFail, probe.OutcomePass, probe.OutcomeError)
	before := append([]probe.Result(nil), rs...)

	Summarize(rs)
	assert.Equal(t, before, rs)
}

func TestSummary_AllPassed(t *testing.T) {
	assert.False(t, Summary{}.AllPassed())
	assert.True(t, Summarize(results(probe.OutcomePass)).AllPassed())
	assert.False(t, Summarize(results(probe.OutcomePass, probe.OutcomeError)).AllPassed())
}

func repeat(o probe.Outcome, n int) []probe.Outcome {
	out := make([]probe.Outcome, n)
	for i := range out {
		out[i] = o
	}
	return out
}
