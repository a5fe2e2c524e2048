package runner

import "errors"

// Sentinel errors for probe-level failures. They never escape RunAll as
// returned errors; they are wrapped into Error results so callers can
// classify them with errors.Is on a reconstructed error if needed.
var (
	// ErrProbeTimeout indicates a probe did not finish within its deadline.
	ErrProbeTimeout = errors.New("runner: probe timed out")

	// ErrProbePanic indicates a probe panicked inside Execute.
	ErrProbePanic = errors.New("runner: probe panicked")

	// ErrInvalidOutcome indicates a probe returned an outcome outside
	// pass/fail/error.
	ErrInvalidOutcome = errors.New("runner: probe returned invalid outcome")

	// ErrRunCancelled indicates the caller cancelled the run before the
	// probe could finish.
	ErrRunCancelled = errors.New("runner: run cancelled")
)
