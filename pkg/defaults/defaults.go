// Package defaults provides canonical default values for casatester.
// Numeric knobs, identity strings and sizes live here so that config,
// CLI flags and library constructors agree on one value.
//
// Usage:
//
//	cfg.MaxBodySize = defaults.MaxBodySize
//	req.Header.Set("User-Agent", defaults.UserAgent(""))
package defaults

import "fmt"

// Version is the current casatester version
const Version = "1.3.0"

// ToolName is the binary and metric namespace name.
const ToolName = "casatester"

// DisplayName is the human-facing product name used in reports.
const DisplayName = "CASA Security Tester"

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================
//
// A run is fully parallel by default (one slot per registered probe). These
// bound the fan-out performed inside multi-request probes.
// ============================================================================

const (
	// ConcurrencyMinimal is for strictly sequential execution (1)
	ConcurrencyMinimal = 1

	// ConcurrencySubRequests bounds parallel requests inside one probe (4)
	ConcurrencySubRequests = 4
)

// ============================================================================
// RATE LIMITING
// ============================================================================

const (
	// RateLimitRPS is the default requests per second against one target (20)
	RateLimitRPS = 20

	// RateLimitBurst is the default limiter burst (10)
	RateLimitBurst = 10
)

// ============================================================================
// SIZES
// ============================================================================

const (
	// MaxBodySize caps how much of a response body a probe inspects (2MB)
	MaxBodySize = 2 * 1024 * 1024

	// MaxRedirects is the redirect limit when a request follows redirects (10)
	MaxRedirects = 10

	// MaxScriptAllocs bounds tengo object allocations per script execution
	MaxScriptAllocs = 50_000

	// HistoryListLimit is the default page size for history listings (20)
	HistoryListLimit = 20
)

// ============================================================================
// USER AGENTS
// ============================================================================

const (
	// UABrowser mimics a desktop browser for probes that expect page markup.
	UABrowser = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// UAScanner identifies the tool honestly.
	UAScanner = "casatester/" + Version
)

// UserAgent returns the casatester user agent with context
func UserAgent(context string) string {
	if context == "" {
		return UAScanner
	}
	return fmt.Sprintf("casatester/%s (%s)", Version, context)
}

// ============================================================================
// HISTORY
// ============================================================================

const (
	// HistoryBackend is the default history storage engine.
	HistoryBackend = "file"

	// HistoryDirName is the directory under the user config dir holding runs.
	HistoryDirName = "scan-results"

	// RedisKeyPrefix namespaces history keys in a shared redis.
	RedisKeyPrefix = "casatester:history:"
)

// ============================================================================
// TELEMETRY
// ============================================================================

const (
	// ServiceName is the OpenTelemetry service.name resource attribute.
	ServiceName = "casatester"
)
