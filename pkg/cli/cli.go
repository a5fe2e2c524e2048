// Package cli holds process-level helpers shared by the casatester
// commands: exit codes, signal handling and flag value parsing.
package cli

import (
	"os"
	"strings"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/finding"
)

// Process exit codes.
const (
	ExitOK          = defaults.ExitSuccess
	ExitFailures    = defaults.ExitFindings
	ExitUsage       = defaults.ExitUserError
	ExitErrors      = defaults.ExitProbeErrors
	ExitInternal    = defaults.ExitInternalError
	ExitInterrupted = 130 // second interrupt during shutdown
)

// ExitCode maps a completed run to the process exit code. Failures take
// precedence over errors.
func ExitCode(run *finding.Run) int {
	switch {
	case run == nil:
		return ExitInternal
	case run.Summary.Failed > 0:
		return ExitFailures
	case run.Summary.Errored > 0:
		return ExitErrors
	default:
		return ExitOK
	}
}

// EnvOrDefault returns the environment variable key, or def when unset
// or empty.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
