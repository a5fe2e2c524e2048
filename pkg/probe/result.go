package probe

import (
	"errors"
	"fmt"
)

// Outcome is the tri-state verdict of a probe.
type Outcome string

// Outcome values.
const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"
	OutcomeError Outcome = "error"
)

// Valid reports whether o is one of the three defined outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeError:
		return true
	}
	return false
}

// Label returns the upper-case label used in reports and consoles.
func (o Outcome) Label() string {
	switch o {
	case OutcomePass:
		return "PASS"
	case OutcomeFail:
		return "FAIL"
	case OutcomeError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Result is one probe's finding for one run.
type Result struct {
	ProbeID     string  `json:"probe_id"`
	DisplayName string  `json:"display_name"`
	Outcome     Outcome `json:"outcome"`
	Summary     string  `json:"summary"`
	Detail      string  `json:"detail"`
	// Trace records the requests or commands the probe issued.
	Trace      string `json:"trace"`
	DurationMs int64  `json:"duration_ms"`
}

// Pass returns a result reporting that no issue was found.
func Pass(summary, detail, trace string) Result {
	return Result{Outcome: OutcomePass, Summary: summary, Detail: detail, Trace: trace}
}

// Fail returns a result reporting that an issue was found.
func Fail(summary, detail, trace string) Result {
	return Result{Outcome: OutcomeFail, Summary: summary, Detail: detail, Trace: trace}
}

// FromError returns an Error result describing err. The summary is the
// error text; detail carries the full wrap chain when it adds anything.
func FromError(err error, trace string) Result {
	if err == nil {
		err = errors.New("unknown error")
	}
	summary := err.Error()
	detail := ""
	if inner := errors.Unwrap(err); inner != nil && inner.Error() != summary {
		detail = "cause: " + inner.Error()
	}
	return Result{Outcome: OutcomeError, Summary: summary, Detail: detail, Trace: trace}
}

// Errorf returns an Error result with a formatted summary.
func Errorf(trace, format string, args ...any) Result {
	return Result{Outcome: OutcomeError, Summary: fmt.Sprintf(format, args...), Trace: trace}
}

// WithIdentity returns a copy of r stamped with the descriptor's identity.
func (r Result) WithIdentity(d Descriptor) Result {
	r.ProbeID = d.ID
	r.DisplayName = d.DisplayName
	return r
}

// IsPass reports whether the result is a pass.
func (r Result) IsPass() bool { return r.Outcome == OutcomePass }

// IsFail reports whether the result is a failure finding.
func (r Result) IsFail() bool { return r.Outcome == OutcomeFail }

// IsError reports whether the probe could not complete.
func (r Result) IsError() bool { return r.Outcome == OutcomeError }
