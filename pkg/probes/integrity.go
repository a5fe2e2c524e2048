package probes

import (
	"context"
	"net/url"
	"regexp"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

const largePageBytes = 1_000_000

var (
	sourceMapRe = regexp.MustCompile(`sourceMappingURL=\S+|\.js\.map\b`)
	secretRe    = regexp.MustCompile(`(?i)\b(api[_-]?key|secret|password|passwd|access[_-]?token|auth[_-]?token)\b["']?\s*[:=]\s*["'][^"'\s]{8,}["']`)
)

// CodeIntegrity fails on exposed source maps, third-party scripts loaded
// without subresource integrity, a missing CSP, or secrets embedded in
// inline scripts.
type CodeIntegrity struct {
	client netclient.Client
}

func (p *CodeIntegrity) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDCodeIntegrity, DisplayName: "Code Integrity"}
}

func (p *CodeIntegrity) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	resp, err := s.get(ctx, target.String(), true)
	if err != nil {
		return s.error(err)
	}

	var found findingSet
	var recs []string
	body := resp.BodyString()
	doc := parsePage(resp.Body)

	if sourceMapRe.MatchString(body) {
		found.add("Source map reference exposed")
		recs = append(recs, "Do not publish source maps to production")
	}

	base := target.URL()
	unprotected := 0
	for _, sc := range doc.scripts {
		if sc.src != "" && sc.integrity == "" && isThirdParty(base, sc.src) {
			found.add("External script without integrity: " + sc.src)
			unprotected++
		}
		if secretRe.MatchString(sc.inline) {
			found.add("Possible hardcoded secret in inline script")
		}
	}
	if unprotected > 0 {
		recs = append(recs, "Add integrity and crossorigin attributes to third-party scripts")
	}
	if found.seen["Possible hardcoded secret in inline script"] {
		recs = append(recs, "Move secrets to the server and rotate any that were exposed")
	}

	if resp.Header.Get("Content-Security-Policy") == "" {
		found.add("No Content-Security-Policy header")
		recs = append(recs, "Define a Content-Security-Policy restricting script sources")
	}
	if len(resp.Body) >= largePageBytes {
		found.add("Page exceeds 1 MB; scripts may be unminified")
		recs = append(recs, "Minify and bundle scripts")
	}

	if found.len() == 0 {
		return s.pass("Scripts are served with integrity controls", "")
	}
	return s.fail(count(found.len(), "integrity issue", "integrity issues"), report("Findings", found.items, recs))
}

// isThirdParty reports whether src resolves to a host other than base's.
func isThirdParty(base *url.URL, src string) bool {
	u, err := base.Parse(src)
	if err != nil {
		return false
	}
	return u.Host != "" && u.Host != base.Host
}
