package testutil

import (
	"fmt"
	"time"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
)

// SampleRun builds a completed run against target with one result per
// outcome, in order, completing at completedAt.
func SampleRun(target string, completedAt time.Time, outcomes ...probe.Outcome) *finding.Run {
	completedAt = finding.Timestamp(completedAt)
	results := make([]probe.Result, len(outcomes))
	for i, o := range outcomes {
		results[i] = probe.Result{
			ProbeID:     fmt.Sprintf("probe-%02d", i+1),
			DisplayName: fmt.Sprintf("Probe %d", i+1),
			Outcome:     o,
			Summary:     fmt.Sprintf("probe %d reported %s", i+1, o),
			Detail:      "line one\nline two",
			Trace:       "GET " + target,
			DurationMs:  int64(10 * (i + 1)),
		}
	}
	return &finding.Run{
		Target:      target,
		StartedAt:   completedAt.Add(-1500 * time.Millisecond),
		CompletedAt: completedAt,
		Results:     results,
		Summary:     finding.Summarize(results),
	}
}
