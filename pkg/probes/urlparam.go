package probes

import (
	"regexp"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

var urlParamIndicators = []indicator{
	{regexp.MustCompile(`location\.search`), "location.search read"},
	{regexp.MustCompile(`URLSearchParams`), "URLSearchParams usage"},
	{regexp.MustCompile(`document\.location`), "document.location access"},
	{regexp.MustCompile(`window\.location`), "window.location access"},
}

// newURLParameter fails when page scripts read URL parameters on the
// client, a common source for DOM-based XSS.
func newURLParameter(client netclient.Client) probe.Probe {
	return &bodyScanner{
		client:     client,
		desc:       probe.Descriptor{ID: IDURLParameter, DisplayName: "URL Parameter"},
		follow:     true,
		indicators: urlParamIndicators,
		passMsg:    "No client-side URL parameter handling found",
		failMsg:    "URL parameter sink",
		plural:     "URL parameter sinks",
		recs: []string{
			"Validate and encode URL parameters before use",
			"Avoid writing URL-derived values into the DOM",
		},
	}
}
