package probe

import "context"

// Descriptor identifies a probe. ID is unique within a Registry.
type Descriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Probe is a single, independently executable assessment unit.
//
// Implementations must capture every internal failure into an Error result
// rather than panicking, should return promptly once ctx is done, and must
// not share mutable state with other probes.
type Probe interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, target Target) Result
}

// ExecuteFunc is the body of a probe built with Func.
type ExecuteFunc func(ctx context.Context, target Target) Result

type funcProbe struct {
	desc Descriptor
	fn   ExecuteFunc
}

// Func adapts a plain function into a Probe.
func Func(desc Descriptor, fn ExecuteFunc) Probe {
	return &funcProbe{desc: desc, fn: fn}
}

func (p *funcProbe) Descriptor() Descriptor { return p.desc }

func (p *funcProbe) Execute(ctx context.Context, target Target) Result {
	return p.fn(ctx, target)
}
