// Package duration provides canonical time constants for casatester.
//
// Usage:
//
//	opts.PerProbeTimeout = duration.ProbeTimeout
//	ctx, cancel := context.WithTimeout(ctx, duration.Shutdown)
package duration

import "time"

// ============================================================================
// PROBE EXECUTION
// ============================================================================

const (
	// ProbeTimeout is the default per-probe deadline enforced by the coordinator (10s)
	ProbeTimeout = 10 * time.Second

	// ProbeTimeoutMax rejects configurations that would leave a run hanging (5min)
	ProbeTimeoutMax = 5 * time.Minute
)

// ============================================================================
// NETWORK
// ============================================================================

const (
	// HTTPRequest is the default single-request timeout inside a probe (8s)
	HTTPRequest = 8 * time.Second

	// DialTimeout bounds TCP connection establishment (5s)
	DialTimeout = 5 * time.Second

	// TLSHandshake bounds the TLS handshake (5s)
	TLSHandshake = 5 * time.Second

	// IdleConnTimeout for pooled connections (30s)
	IdleConnTimeout = 30 * time.Second

	// BrowserSession bounds one headless browser inspection (20s)
	BrowserSession = 20 * time.Second
)

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

const (
	// ReadHeader protects HTTP listeners against slowloris (10s)
	ReadHeader = 10 * time.Second

	// ServerIdle releases idle keep-alive connections (30s)
	ServerIdle = 30 * time.Second

	// Shutdown is the graceful drain window for listeners and exporters (15s)
	Shutdown = 15 * time.Second
)
