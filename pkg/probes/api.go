package probes

import (
	"context"
	"net/http"
	"strings"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// APIEndpoints are the paths the API security probe requests.
var APIEndpoints = []string{"/api/users", "/api/data", "/api/auth", "/api/admin"}

var rateLimitHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "RateLimit-Limit", "RateLimit-Policy", "Retry-After"}

var apiSecurityHeaders = []string{"Content-Security-Policy", "X-Frame-Options", "X-Content-Type-Options", "Strict-Transport-Security"}

// APISecurity requests common API paths and fails when a reachable
// endpoint lacks authentication, rate limiting, a CORS policy, HTTPS or
// security headers. Endpoints answering 404 are skipped.
type APISecurity struct {
	client netclient.Client
	limit  int
}

func (p *APISecurity) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDAPISecurity, DisplayName: "API Security"}
}

func (p *APISecurity) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	urls := make([]string, len(APIEndpoints))
	for i, ep := range APIEndpoints {
		urls[i] = target.Resolve(ep)
	}
	resps, err := fetchAll(ctx, s, urls, p.limit)
	if err != nil {
		return s.error(err)
	}

	var findings []string
	reachable := 0
	for i, resp := range resps {
		if resp.StatusCode == http.StatusNotFound {
			continue
		}
		reachable++
		for _, issue := range apiIssues(resp, target.IsHTTPS()) {
			findings = append(findings, APIEndpoints[i]+": "+issue)
		}
	}

	switch {
	case reachable == 0:
		return s.pass("No API endpoints found", "")
	case len(findings) == 0:
		return s.pass(count(reachable, "API endpoint", "API endpoints")+" properly protected", "")
	}
	return s.fail(count(len(findings), "API issue", "API issues")+" across "+count(reachable, "endpoint", "endpoints"),
		report("Findings", findings, []string{
			"Require authentication on every API endpoint",
			"Apply rate limiting and advertise it with RateLimit headers",
			"Restrict Access-Control-Allow-Origin to trusted origins",
			"Serve APIs only over HTTPS with security headers",
		}))
}

func apiIssues(resp *netclient.Response, https bool) []string {
	var issues []string
	h := resp.Header
	authed := resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		h.Get("WWW-Authenticate") != ""
	if !authed {
		issues = append(issues, "Missing authentication")
	}
	if !anyHeader(h, rateLimitHeaders) {
		issues = append(issues, "Missing rate limiting")
	}
	switch acao := h.Get("Access-Control-Allow-Origin"); {
	case acao == "":
		issues = append(issues, "Missing CORS policy")
	case acao == "*":
		issues = append(issues, "CORS allows any origin")
	}
	if !https {
		issues = append(issues, "Not using HTTPS")
	}
	var missing []string
	for _, name := range apiSecurityHeaders {
		if h.Get(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, "Missing security headers: "+strings.Join(missing, ", "))
	}
	return issues
}

func anyHeader(h http.Header, names []string) bool {
	for _, n := range names {
		if h.Get(n) != "" {
			return true
		}
	}
	return false
}
