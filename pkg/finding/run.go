package finding

import (
	"time"

	"github.com/casatester/casatester/pkg/probe"
)

// Run is one complete execution of a registry against one target. Results
// are in registry declaration order. A Run is immutable once returned by
// the coordinator; consumers must treat it as read-only.
type Run struct {
	Target      string         `json:"target"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Results     []probe.Result `json:"results"`
	Summary     Summary        `json:"summary"`
}

// Duration returns the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Failed returns the Fail results in declaration order.
func (r *Run) Failed() []probe.Result {
	return r.filter(probe.OutcomeFail)
}

// Errored returns the Error results in declaration order.
func (r *Run) Errored() []probe.Result {
	return r.filter(probe.OutcomeError)
}

func (r *Run) filter(o probe.Outcome) []probe.Result {
	var out []probe.Result
	for _, res := range r.Results {
		if res.Outcome == o {
			out = append(out, res)
		}
	}
	return out
}

// Clone returns a deep copy of r.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	c := *r
	if r.Results != nil {
		c.Results = make([]probe.Result, len(r.Results))
		copy(c.Results, r.Results)
	}
	return &c
}

// Timestamp normalizes t for storage: UTC with the monotonic clock reading
// stripped, so a run survives a serialization round trip unchanged.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Round(0)
}
