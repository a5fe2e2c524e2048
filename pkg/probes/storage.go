package probes

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

var storageIndicators = []indicator{
	{regexp.MustCompile(`localStorage\.`), "localStorage access in page source"},
	{regexp.MustCompile(`sessionStorage\.`), "sessionStorage access in page source"},
	{regexp.MustCompile(`\.setItem\s*\(`), "Storage setItem call"},
	{regexp.MustCompile(`\.getItem\s*\(`), "Storage getItem call"},
	{regexp.MustCompile(`\.removeItem\s*\(`), "Storage removeItem call"},
	{regexp.MustCompile(`document\.cookie`), "document.cookie access"},
}

// StorageData fails when the page keeps data in client-side storage. With
// a browser configured, the live page is rendered and its actual storage
// keys and cookies are reported as well.
type StorageData struct {
	client  netclient.Client
	browser StorageInspector
	logger  *slog.Logger
}

func (p *StorageData) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDStorageData, DisplayName: "Storage Data"}
}

func (p *StorageData) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	resp, err := s.get(ctx, target.String(), true)
	if err != nil {
		return s.error(err)
	}

	var found findingSet
	scan(resp.BodyString(), storageIndicators, &found)

	var notes []string
	if p.browser != nil {
		st, err := p.browser.Inspect(ctx, target.String())
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return s.error(ctx.Err())
			}
			p.logger.Warn("storage inspection failed", slog.String("target", target.String()), slog.String("error", err.Error()))
			notes = append(notes, "Live storage inspection unavailable: "+err.Error())
		default:
			s.lines = append(s.lines, "BROWSER "+target.String()+" -> "+count(len(st.Keys()), "storage key", "storage keys"))
			for _, k := range st.Keys() {
				found.add("Stored key " + k)
			}
			for _, c := range st.Cookies {
				if !c.HTTPOnly {
					found.add("Script-readable cookie " + c.Name)
				}
			}
		}
	}

	if found.len() == 0 {
		return s.pass("No client-side storage usage found", report("Notes", notes, nil))
	}
	detail := report("Findings", found.items, []string{
		"Keep tokens and personal data out of localStorage and sessionStorage",
		"Prefer HttpOnly cookies for session state",
	})
	if len(notes) > 0 {
		detail += "\n\n" + report("Notes", notes, nil)
	}
	return s.fail(count(found.len(), "storage finding", "storage findings"), detail)
}
