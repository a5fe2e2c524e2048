package probes

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// XSSParam is the query parameter that carries the reflection canary.
const XSSParam = "q"

var knownXSSPayloads = []string{
	`<script>alert(1)</script>`,
	`"><script>alert(1)</script>`,
	`"><img src=x onerror=alert(1)>`,
	`"><svg onload=alert(1)>`,
	`javascript:alert(1)`,
	`"><iframe src=javascript:alert(1)>`,
	`"><input autofocus onfocus=alert(1)>`,
	`"><details open ontoggle=alert(1)>`,
}

// XSS sends a markup canary in a query parameter and fails when the
// response echoes it unescaped. Known payload strings already present in
// the page are reported as well.
type XSS struct {
	client netclient.Client
	token  func() string
}

func (p *XSS) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDXSS, DisplayName: "XSS Vulnerability"}
}

func (p *XSS) canary() string {
	tok := ""
	if p.token != nil {
		tok = p.token()
	} else {
		tok = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return `"><casa` + tok + `>`
}

func (p *XSS) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	base, err := s.get(ctx, target.String(), true)
	if err != nil {
		return s.error(err)
	}
	var found findingSet
	body := base.BodyString()
	for _, payload := range knownXSSPayloads {
		if strings.Contains(body, payload) {
			found.add("Known XSS payload in page: " + payload)
		}
	}

	canary := p.canary()
	reflected, err := s.get(ctx, target.WithQuery(XSSParam, canary), true)
	if err != nil {
		return s.error(err)
	}
	summary := "No unescaped reflection"
	if strings.Contains(reflected.BodyString(), canary) {
		found.add("Parameter " + XSSParam + " is reflected without encoding")
		summary = "Parameter " + XSSParam + " reflected unescaped"
	}

	if found.len() == 0 {
		return s.pass(summary, "")
	}
	if summary == "No unescaped reflection" {
		summary = count(found.len(), "XSS indicator", "XSS indicators") + " found"
	}
	return s.fail(summary, report("Findings", found.items, []string{
		"HTML-encode user input in every output context",
		"Deploy a Content-Security-Policy that blocks inline script",
	}))
}
