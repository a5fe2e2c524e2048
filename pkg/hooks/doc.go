// Package hooks provides run observers for the coordinator: structured
// logging, Prometheus metrics and OpenTelemetry traces. Every hook is safe
// for concurrent use.
package hooks

import "log/slog"

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
