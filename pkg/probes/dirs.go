package probes

import (
	"context"
	"net/http"
	"regexp"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// BrowsableDirs are the directories checked for auto-generated listings.
var BrowsableDirs = []string{
	"/images/", "/uploads/", "/assets/", "/backup/", "/files/",
	"/temp/", "/logs/", "/admin/", "/config/", "/includes/",
}

var listingRe = regexp.MustCompile(`(?is)Index of|Directory listing|<pre>.*Parent Directory.*</pre>`)

// DirectoryBrowsing fails when any common directory answers 200 with a
// server-generated file listing.
type DirectoryBrowsing struct {
	client netclient.Client
	limit  int
}

func (p *DirectoryBrowsing) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDDirectoryBrowsing, DisplayName: "Directory Browsing"}
}

func (p *DirectoryBrowsing) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	urls := make([]string, len(BrowsableDirs))
	for i, d := range BrowsableDirs {
		urls[i] = target.Resolve(d)
	}
	resps, err := fetchAll(ctx, s, urls, p.limit)
	if err != nil {
		return s.error(err)
	}

	var listed []string
	for i, resp := range resps {
		if resp.StatusCode == http.StatusOK && listingRe.Match(resp.Body) {
			listed = append(listed, "Directory listing enabled at "+BrowsableDirs[i])
		}
	}
	if len(listed) == 0 {
		return s.pass("No directory listings found", "")
	}
	return s.fail(count(len(listed), "browsable directory", "browsable directories"), report("Findings", listed, []string{
		"Disable automatic directory indexes on the web server",
		"Add an index page or deny access to directories without one",
	}))
}
