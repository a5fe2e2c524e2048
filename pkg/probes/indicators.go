package probes

import (
	"context"
	"regexp"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// indicator is a body pattern and the finding it produces.
type indicator struct {
	re    *regexp.Regexp
	label string
}

func scan(body string, set []indicator, into *findingSet) {
	for _, ind := range set {
		if ind.re.MatchString(body) {
			into.add(ind.label)
		}
	}
}

// bodyScanner is the shape shared by probes that fetch the target page
// and match it against a fixed indicator set.
type bodyScanner struct {
	client     netclient.Client
	desc       probe.Descriptor
	follow     bool
	indicators []indicator
	// extra adds findings beyond the body patterns, such as header checks.
	extra   func(resp *netclient.Response, f *findingSet)
	passMsg string
	failMsg string // singular/plural noun for the finding count
	plural  string
	recs    []string
}

func (b *bodyScanner) Descriptor() probe.Descriptor { return b.desc }

func (b *bodyScanner) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(b.client)
	resp, err := s.get(ctx, target.String(), b.follow)
	if err != nil {
		return s.error(err)
	}
	var found findingSet
	if b.extra != nil {
		b.extra(resp, &found)
	}
	scan(resp.BodyString(), b.indicators, &found)
	if found.len() == 0 {
		return s.pass(b.passMsg, "")
	}
	return s.fail(count(found.len(), b.failMsg, b.plural)+" found",
		report("Findings", found.items, b.recs))
}
