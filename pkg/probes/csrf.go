package probes

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

var (
	csrfNameRe = regexp.MustCompile(`(?i)csrf|xsrf|authenticity_token|anti-?forgery|__requestverificationtoken|csrfmiddlewaretoken`)
	csrfBodyRe = regexp.MustCompile(`(?i)csrf[-_]token|X-CSRF-Token|X-XSRF-Token|authenticity_token|anti-forgery-token|csrfmiddlewaretoken|csrf_(protection|validation|verify)`)
)

var csrfHeaders = []string{"X-CSRF-Token", "X-XSRF-Token", "X-CSRFToken"}

// CSRFProtection has inverted polarity: it fails when no anti-CSRF token
// is found and passes as soon as one mechanism is present.
type CSRFProtection struct {
	client netclient.Client
}

func (p *CSRFProtection) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDCSRFProtection, DisplayName: "CSRF Protection"}
}

func (p *CSRFProtection) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	resp, err := s.get(ctx, target.String(), true)
	if err != nil {
		return s.error(err)
	}

	var found findingSet
	doc := parsePage(resp.Body)
	names := make([]string, 0, len(doc.metas))
	for name := range doc.metas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if csrfNameRe.MatchString(name) {
			found.add("Meta tag " + name)
		}
	}
	for _, in := range doc.inputs {
		if in.kind == "hidden" && csrfNameRe.MatchString(in.name) {
			found.add("Hidden form field " + in.name)
		}
	}
	for _, h := range csrfHeaders {
		if resp.Header.Get(h) != "" {
			found.add("Response header " + h)
		}
	}
	for _, c := range (&http.Response{Header: resp.Header}).Cookies() {
		if csrfNameRe.MatchString(c.Name) {
			found.add("Cookie " + c.Name)
		}
	}
	if m := csrfBodyRe.FindString(resp.BodyString()); m != "" && found.len() == 0 {
		found.add("Token reference " + strings.ToLower(m) + " in page source")
	}

	if found.len() > 0 {
		return s.pass("Anti-CSRF token present", report("Mechanisms", found.items, nil))
	}
	detail := report("Findings", []string{"No anti-CSRF token in meta tags, hidden fields, headers or cookies"}, []string{
		"Issue a per-session anti-CSRF token and require it on state-changing requests",
		"Set SameSite on session cookies",
	})
	if doc.forms > 0 {
		detail = count(doc.forms, "form", "forms") + " without a token.\n\n" + detail
	}
	return s.fail("No anti-CSRF token found", detail)
}
