// Package probe defines the contract every assessment unit satisfies and the
// ordered Registry the run coordinator executes.
//
// A Probe inspects one aspect of a Target and reports a tri-state Outcome:
// Pass (no issue found), Fail (issue found) or Error (could not determine).
// Error is never a finding; it records that the probe could not complete.
//
// Usage:
//
//	reg, err := probe.NewRegistry(tlsProbe, headersProbe)
//	if err != nil {
//	    return err // duplicate or invalid probe
//	}
//	for _, p := range reg.Probes() {
//	    res := p.Execute(ctx, target)
//	}
package probe
