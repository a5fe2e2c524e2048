package probes

import (
	"regexp"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

var deprecatedIndicators = []indicator{
	{regexp.MustCompile(`(?i)jquery[.-]?(v)?[12]\.\d+(\.\d+)?(\.min)?\.js|jQuery v[12]\.\d+`), "jQuery 1.x or 2.x"},
	{regexp.MustCompile(`(?i)bootstrap[.-]?(v)?[123]\.\d+(\.\d+)?(\.min)?\.(js|css)|Bootstrap v[123]\.\d+`), "Bootstrap 1.x to 3.x"},
	{regexp.MustCompile(`(?i)angular(js)?[.-]?1\.\d+(\.\d+)?(\.min)?\.js|AngularJS v1\.\d+|\bng-app\b`), "AngularJS 1.x"},
	{regexp.MustCompile(`(?i)react(-dom)?[.@-]?(0\.\d+|1[0-5])\.\d+(\.\d+)?`), "React older than 16"},
	{regexp.MustCompile(`(?i)prototype\.js|mootools|scriptaculous`), "Prototype, MooTools or script.aculo.us"},
	{regexp.MustCompile(`(?i)moment(\.min)?\.js|moment-with-locales`), "Moment.js (in maintenance mode)"},
	{regexp.MustCompile(`document\.write\s*\(`), "document.write usage"},
	{regexp.MustCompile(`\beval\s*\(`), "eval usage"},
	{regexp.MustCompile(`\.innerHTML\s*=`), "innerHTML assignment"},
}

// newDeprecatedClient fails when the page loads end-of-life libraries or
// uses DOM APIs that invite injection.
func newDeprecatedClient(client netclient.Client) probe.Probe {
	return &bodyScanner{
		client:     client,
		desc:       probe.Descriptor{ID: IDDeprecatedClient, DisplayName: "Deprecated Client"},
		follow:     true,
		indicators: deprecatedIndicators,
		passMsg:    "No deprecated client code found",
		failMsg:    "deprecated component",
		plural:     "deprecated components",
		recs: []string{
			"Upgrade client libraries to supported releases",
			"Replace document.write, eval and innerHTML with safe DOM APIs",
		},
	}
}
