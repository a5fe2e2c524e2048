package probes

import (
	"context"
	"net/http"
	"strings"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// CookieSecurity fails when any Set-Cookie lacks Secure, HttpOnly or
// SameSite. A response that sets no cookies passes.
type CookieSecurity struct {
	client netclient.Client
}

func (p *CookieSecurity) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDCookieSecurity, DisplayName: "Cookie Security"}
}

func (p *CookieSecurity) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	resp, err := s.get(ctx, target.String(), false)
	if err != nil {
		return s.error(err)
	}

	cookies := (&http.Response{Header: resp.Header}).Cookies()
	if len(cookies) == 0 {
		return s.pass("No cookies set", "")
	}

	var findings []string
	flagged := 0
	for _, c := range cookies {
		var missing []string
		if !c.Secure {
			missing = append(missing, "Secure")
		}
		if !c.HttpOnly {
			missing = append(missing, "HttpOnly")
		}
		// A cookie without the attribute parses to zero; a bare "SameSite"
		// parses to SameSiteDefaultMode.
		if c.SameSite == 0 || c.SameSite == http.SameSiteDefaultMode {
			missing = append(missing, "SameSite")
		}
		if c.SameSite == http.SameSiteNoneMode && c.Secure {
			findings = append(findings, c.Name+": SameSite=None allows cross-site sending")
		}
		if len(missing) > 0 {
			flagged++
			findings = append(findings, c.Name+": missing "+strings.Join(missing, ", "))
		}
	}
	if flagged == 0 {
		return s.pass(count(len(cookies), "cookie is", "cookies are")+" properly flagged", report("Notes", findings, nil))
	}
	return s.fail(count(flagged, "insecure cookie", "insecure cookies"), report("Findings", findings, []string{
		"Set the Secure flag so cookies are only sent over HTTPS",
		"Set HttpOnly on cookies scripts do not need",
		"Set SameSite=Lax or Strict",
	}))
}
