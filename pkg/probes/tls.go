package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// SSLTLS checks the negotiated protocol and the leaf certificate validity.
// Fail when the target is plain http, negotiates below TLS 1.2, or serves
// an expired or not-yet-valid certificate.
type SSLTLS struct {
	client netclient.Client
	now    func() time.Time
}

func (p *SSLTLS) Descriptor() probe.Descriptor {
	return probe.Descriptor{ID: IDSSLTLS, DisplayName: "SSL/TLS"}
}

func (p *SSLTLS) Execute(ctx context.Context, target probe.Target) probe.Result {
	s := newSession(p.client)
	if !target.IsHTTPS() {
		return s.fail("Target does not use HTTPS", report("Findings",
			[]string{"Traffic to " + target.Host() + " is sent unencrypted"},
			[]string{"Serve the site over HTTPS", "Redirect http requests to https"}))
	}

	st, err := p.client.TLSHandshake(ctx, target.Host(), target.Port())
	if err != nil {
		s.lines = append(s.lines, fmt.Sprintf("TLS %s:%s -> error: %v", target.Host(), target.Port(), err))
		return s.error(err)
	}
	s.lines = append(s.lines, st.Trace)

	now := time.Now
	if p.now != nil {
		now = p.now
	}

	var findings, recs []string
	info := []string{"Protocol: " + st.VersionName, "Cipher: " + st.CipherSuite}
	if !st.AtLeastTLS12() {
		findings = append(findings, "Insecure protocol "+st.VersionName)
		recs = append(recs, "Disable protocols older than TLS 1.2")
	}
	leaf := st.Leaf()
	switch {
	case leaf == nil:
		findings = append(findings, "No certificate presented")
		recs = append(recs, "Install a certificate issued by a trusted authority")
	case now().After(leaf.NotAfter):
		findings = append(findings, "Certificate expired on "+leaf.NotAfter.UTC().Format(time.DateOnly))
		recs = append(recs, "Renew the certificate")
	case now().Before(leaf.NotBefore):
		findings = append(findings, "Certificate not valid before "+leaf.NotBefore.UTC().Format(time.DateOnly))
		recs = append(recs, "Check the certificate validity period and server clock")
	}
	if leaf != nil {
		info = append(info,
			"Subject: "+leaf.Subject.CommonName,
			"Issuer: "+leaf.Issuer.CommonName,
			"Valid until: "+leaf.NotAfter.UTC().Format(time.DateOnly))
	}

	if len(findings) > 0 {
		return s.fail(findings[0], report("Findings", append(findings, info...), recs))
	}
	return s.pass(st.VersionName+" with a valid certificate", report("Connection", info, nil))
}
