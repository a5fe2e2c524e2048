package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Every probe passed
	ExitFindings      = 1 // At least one probe failed
	ExitUserError     = 2 // Invalid arguments, configuration or target
	ExitProbeErrors   = 3 // No failures, but some probes could not complete
	ExitInternalError = 4 // Unexpected internal error (history store unavailable, ...)
)
