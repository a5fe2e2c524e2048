package probes

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// requiredHeaders are checked in this order.
var requiredHeaders = []struct {
	name string
	rec  string
}{
	{"Strict-Transport-Security", "Add Strict-Transport-Security with a max-age of at least one year"},
	{"Content-Security-Policy", "Define a Content-Security-Policy restricting script sources"},
	{"X-Frame-Options", "Set X-Frame-Options to DENY or SAMEORIGIN"},
	{"X-Content-Type-Options", "Set X-Content-Type-Options to nosniff"},
	{"Referrer-Policy", "Set Referrer-Policy, for example strict-origin-when-cross-origin"},
	{"X-XSS-Protection", "Set X-XSS-Protection to 0 or 1; mode=block"},
}

// SecurityHeaders fails when a required response header is absent or set
// to a value that disables its protection. Weak CSP and HSTS settings are
// reported without affecting the outcome.
type SecurityHeaders struct {
	client netclient.Client
}

func (p *SecurityHeaders) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDSecurityHeaders, DisplayName: "Security Headers"}
}

func (p *SecurityHeaders) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	resp, err := s.get(ctx, target.String(), false)
	if err != nil {
		return s.error(err)
	}

	h := resp.Header
	var problems, recs, status []string
	for _, req := range requiredHeaders {
		v := h.Get(req.name)
		if v == "" {
			status = append(status, req.name+": missing")
			problems = append(problems, req.name)
			recs = append(recs, req.rec)
			continue
		}
		if msg := invalidHeaderValue(req.name, v); msg != "" {
			status = append(status, req.name+": "+msg)
			problems = append(problems, req.name)
			recs = append(recs, req.rec)
			continue
		}
		status = append(status, req.name+": "+v)
	}

	weak := weakHeaderSettings(h)
	detail := report("Headers", status, recs)
	if len(weak) > 0 {
		detail += "\n\n" + report("Observations", weak, nil)
	}

	if len(problems) > 0 {
		return s.fail("Missing or invalid: "+strings.Join(problems, ", "), detail)
	}
	return s.pass("All security headers present", detail)
}

func invalidHeaderValue(name, v string) string {
	switch name {
	case "X-Frame-Options":
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "DENY", "SAMEORIGIN":
			return ""
		}
		return "weak value " + v
	case "X-Content-Type-Options":
		if !strings.EqualFold(strings.TrimSpace(v), "nosniff") {
			return "unexpected value " + v
		}
	}
	return ""
}

// weakHeaderSettings lists CSP directives allowing unsafe sources, a short
// HSTS max-age and headers that disclose the server stack.
func weakHeaderSettings(h http.Header) []string {
	var weak []string
	if csp := parseCSP(h.Get("Content-Security-Policy")); len(csp) > 0 {
		directives := make([]string, 0, len(csp))
		for d := range csp {
			directives = append(directives, d)
		}
		sort.Strings(directives)
		for _, d := range directives {
			for _, v := range csp[d] {
				switch v {
				case "'unsafe-inline'", "'unsafe-eval'":
					weak = append(weak, "CSP "+d+" allows "+v)
				case "*":
					weak = append(weak, "CSP "+d+" allows any source")
				}
			}
		}
	}
	if hsts := h.Get("Strict-Transport-Security"); hsts != "" {
		if maxAge, _, _ := parseHSTS(hsts); maxAge < 31536000 {
			weak = append(weak, "HSTS max-age is below one year")
		}
	}
	if v := h.Get("X-Powered-By"); v != "" {
		weak = append(weak, "X-Powered-By discloses "+v)
	}
	if v := h.Get("X-AspNet-Version"); v != "" {
		weak = append(weak, "X-AspNet-Version discloses "+v)
	}
	return weak
}

// parseCSP splits a policy into directive name and source list.
func parseCSP(csp string) map[string][]string {
	directives := make(map[string][]string)
	for _, part := range strings.Split(csp, ";") {
		words := strings.Fields(part)
		if len(words) == 0 {
			continue
		}
		directives[strings.ToLower(words[0])] = words[1:]
	}
	return directives
}

func parseHSTS(hsts string) (maxAge int, includeSubdomains, preload bool) {
	const maxHSTS = 1<<31 - 1
	for _, part := range strings.Split(strings.ToLower(hsts), ";") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "max-age="):
			for _, c := range strings.Trim(strings.TrimPrefix(part, "max-age="), `"'`) {
				if c < '0' || c > '9' {
					break
				}
				maxAge = maxAge*10 + int(c-'0')
				if maxAge > maxHSTS {
					maxAge = maxHSTS
					break
				}
			}
		case part == "includesubdomains":
			includeSubdomains = true
		case part == "preload":
			preload = true
		}
	}
	return
}
