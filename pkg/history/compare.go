package history

import (
	"math"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
)

// Change records a probe whose outcome differs between two runs.
type Change struct {
	ProbeID     string        `json:"probe_id"`
	DisplayName string        `json:"display_name"`
	From        probe.Outcome `json:"from,omitempty"`
	To          probe.Outcome `json:"to,omitempty"`
}

// Comparison is the difference between a base run and a later run.
type Comparison struct {
	BaseTarget    string   `json:"base_target"`
	CompareTarget string   `json:"compare_target"`
	PassRateDelta float64  `json:"pass_rate_delta"`
	FailedDelta   int      `json:"failed_delta"`
	ErroredDelta  int      `json:"errored_delta"`
	Changes       []Change `json:"changes"`
	// Improved is true when the pass rate rose and no new failure appeared.
	Improved bool `json:"improved"`
}

// Compare diffs two runs probe by probe. Probes present in only one run
// appear as changes with an empty From or To. Changes follow the order of
// cmp, then probes only present in base.
func Compare(base, cmp *finding.Run) Comparison {
	c := Comparison{
		BaseTarget:    base.Target,
		CompareTarget: cmp.Target,
		PassRateDelta: roundTenth(cmp.Summary.PassRatePercent - base.Summary.PassRatePercent),
		FailedDelta:   cmp.Summary.Failed - base.Summary.Failed,
		ErroredDelta:  cmp.Summary.Errored - base.Summary.Errored,
	}

	before := make(map[string]probe.Result, len(base.Results))
	for _, r := range base.Results {
		before[r.ProbeID] = r
	}
	seen := make(map[string]bool, len(cmp.Results))
	newFailure := false
	for _, r := range cmp.Results {
		seen[r.ProbeID] = true
		prev, ok := before[r.ProbeID]
		switch {
		case !ok:
			c.Changes = append(c.Changes, Change{ProbeID: r.ProbeID, DisplayName: r.DisplayName, To: r.Outcome})
		case prev.Outcome != r.Outcome:
			c.Changes = append(c.Changes, Change{ProbeID: r.ProbeID, DisplayName: r.DisplayName, From: prev.Outcome, To: r.Outcome})
		default:
			continue
		}
		if r.Outcome == probe.OutcomeFail {
			newFailure = true
		}
	}
	for _, r := range base.Results {
		if !seen[r.ProbeID] {
			c.Changes = append(c.Changes, Change{ProbeID: r.ProbeID, DisplayName: r.DisplayName, From: r.Outcome})
		}
	}

	c.Improved = c.PassRateDelta > 0 && !newFailure
	return c
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
