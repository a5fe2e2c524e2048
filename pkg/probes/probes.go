// Package probes holds the built-in assessment probes and the loader for
// scripted probes. Each probe documents its polarity: for most, finding the
// issue yields Fail; CSRF protection is inverted and fails when protection
// is absent.
package probes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/headless"
	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// Built-in probe ids in registry order.
const (
	IDSSLTLS            = "ssl-tls"
	IDSecurityHeaders   = "security-headers"
	IDStorageData       = "storage-data"
	IDAPISecurity       = "api-security"
	IDCodeIntegrity     = "code-integrity"
	IDCookieSecurity    = "cookie-security"
	IDCSRFProtection    = "csrf-protection"
	IDXSS               = "xss"
	IDSQLInjection      = "sql-injection"
	IDDebugMode         = "debug-mode"
	IDDeprecatedClient  = "deprecated-client"
	IDDirectoryBrowsing = "directory-browsing"
	IDURLParameter      = "url-parameter"
)

// StorageInspector reports what a page keeps in client-side storage.
// *headless.Inspector implements it.
type StorageInspector interface {
	Inspect(ctx context.Context, pageURL string) (*headless.Storage, error)
}

// Options configures the built-in probes.
type Options struct {
	// Browser enables live storage inspection in the storage-data probe.
	Browser StorageInspector
	// SubRequests bounds the parallel requests of multi-path probes.
	SubRequests int
	// ScriptDir is a directory of *.tengo probes appended after the
	// built-ins. Empty disables scripts.
	ScriptDir string
	// ScriptMaxAllocs bounds each script execution.
	ScriptMaxAllocs int64
	Logger          *slog.Logger
}

func (o Options) subRequests() int {
	if o.SubRequests <= 0 {
		return defaults.ConcurrencySubRequests
	}
	return o.SubRequests
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Builtins returns the thirteen built-in probes in registry order.
func Builtins(client netclient.Client, opts Options) []probe.Probe {
	return []probe.Probe{
		&SSLTLS{client: client},
		&SecurityHeaders{client: client},
		&StorageData{client: client, browser: opts.Browser, logger: opts.logger()},
		&APISecurity{client: client, limit: opts.subRequests()},
		&CodeIntegrity{client: client},
		&CookieSecurity{client: client},
		&CSRFProtection{client: client},
		&XSS{client: client},
		&SQLInjection{client: client},
		newDebugMode(client),
		newDeprecatedClient(client),
		&DirectoryBrowsing{client: client, limit: opts.subRequests()},
		newURLParameter(client),
	}
}

// Default returns a registry holding the built-ins followed by any script
// probes found in opts.ScriptDir. A script that fails to compile, or whose
// id collides with another probe, is a startup error.
func Default(client netclient.Client, opts Options) (*probe.Registry, error) {
	reg, err := probe.NewRegistry(Builtins(client, opts)...)
	if err != nil {
		return nil, err
	}
	if opts.ScriptDir == "" {
		return reg, nil
	}
	scripts, err := LoadScriptDir(opts.ScriptDir, client, opts.ScriptMaxAllocs)
	if err != nil {
		return nil, err
	}
	for _, s := range scripts {
		if err := reg.Register(s); err != nil {
			return nil, fmt.Errorf("script %s: %w", s.path, err)
		}
	}
	opts.logger().Debug("probes loaded", slog.Int("builtin", reg.Len()-len(scripts)), slog.Int("scripts", len(scripts)))
	return reg, nil
}

// session issues a probe's requests and keeps its trace.
type session struct {
	client netclient.Client
	lines  []string
}

func newSession(c netclient.Client) *session { return &session{client: c} }

// get fetches u and records the exchange. follow mimics curl -L.
func (s *session) get(ctx context.Context, u string, follow bool) (*netclient.Response, error) {
	resp, err := s.client.Request(ctx, netclient.Request{URL: u, FollowRedirects: follow})
	s.record(resp, err)
	return resp, err
}

func (s *session) record(resp *netclient.Response, err error) {
	switch {
	case err != nil:
		if line := netclient.TraceOf(err); line != "" {
			s.lines = append(s.lines, line)
		} else {
			s.lines = append(s.lines, "error: "+err.Error())
		}
	case resp != nil:
		s.lines = append(s.lines, resp.Trace)
	}
}

func (s *session) trace() string { return strings.Join(s.lines, "\n") }

func (s *session) pass(summary, detail string) probe.Result {
	return probe.Pass(summary, detail, s.trace())
}

func (s *session) fail(summary, detail string) probe.Result {
	return probe.Fail(summary, detail, s.trace())
}

func (s *session) error(err error) probe.Result {
	return probe.FromError(err, s.trace())
}

// report renders findings followed by numbered recommendations.
func report(heading string, findings, recommendations []string) string {
	var b strings.Builder
	if len(findings) > 0 {
		b.WriteString(heading)
		b.WriteString(":\n")
		for _, f := range findings {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteByte('\n')
		}
	}
	if len(recommendations) > 0 {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Recommendations:\n")
		for i, r := range recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// findingSet collects unique findings in insertion order.
type findingSet struct {
	seen  map[string]bool
	items []string
}

func (f *findingSet) add(s string) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[s] {
		return
	}
	f.seen[s] = true
	f.items = append(f.items, s)
}

func (f *findingSet) len() int { return len(f.items) }

// count renders n with a singular or plural noun.
func count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
