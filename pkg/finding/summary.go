package finding

import (
	"math"

	"github.com/casatester/casatester/pkg/probe"
)

// Summary is the outcome tally of a run.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	// PassRatePercent is passed/total*100 rounded to one decimal place.
	// Errored results count toward the total but never as passes.
	PassRatePercent float64 `json:"pass_rate_percent"`
}

// Summarize tallies results by outcome. An empty slice yields the zero
// Summary. Results with an unrecognised outcome are counted as errored.
func Summarize(results []probe.Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case probe.OutcomePass:
			s.Passed++
		case probe.OutcomeFail:
			s.Failed++
		default:
			s.Errored++
		}
	}
	s.PassRatePercent = PassRate(s.Passed, s.Total)
	return s
}

// PassRate returns passed/total as a percentage rounded to one decimal
// place, or 0 when total is 0.
func PassRate(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*1000) / 10
}

// AllPassed reports whether every result passed. An empty run has not passed.
func (s Summary) AllPassed() bool {
	return s.Total > 0 && s.Passed == s.Total
}
