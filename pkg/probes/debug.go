package probes

import (
	"regexp"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

var debugIndicators = []indicator{
	{regexp.MustCompile(`console\.(log|debug|info)\s*\(`), "Console logging left in page scripts"},
	{regexp.MustCompile(`\bdebugger\s*;`), "debugger statement in page scripts"},
	{regexp.MustCompile(`(DEBUG|DEVELOPMENT)(_MODE)?\s*[=:]\s*["']?true`), "Debug flag enabled in page source"},
	{regexp.MustCompile(`(?i)stack trace|Traceback \(most recent call last\)`), "Stack trace exposed"},
	{regexp.MustCompile(`(?i)debug mode|development mode`), "Page mentions debug or development mode"},
	{regexp.MustCompile(`(?i)verbose error|detailed error`), "Verbose error output"},
}

var debugHeaders = []string{"X-Debug", "Debug-Mode", "X-Debug-Token", "X-Debug-Token-Link"}

// newDebugMode fails when the page or its headers show a framework or
// application running with debugging enabled.
func newDebugMode(client netclient.Client) probe.Probe {
	return &bodyScanner{
		client:     client,
		desc:       probe.Descriptor{ID: IDDebugMode, DisplayName: "Debug Mode"},
		indicators: debugIndicators,
		extra: func(resp *netclient.Response, f *findingSet) {
			for _, h := range debugHeaders {
				if v := resp.Header.Get(h); v != "" {
					f.add(h + " header present: " + v)
				}
			}
		},
		passMsg: "No debug indicators found",
		failMsg: "debug indicator",
		plural:  "debug indicators",
		recs: []string{
			"Disable debug mode in production",
			"Strip console logging and debugger statements from shipped scripts",
			"Return generic error pages without stack traces",
		},
	}
}
