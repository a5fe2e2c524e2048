package probe

import "errors"

// Sentinel errors for probe configuration and target validation.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidTarget indicates the target is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("probe: invalid target")

	// ErrDuplicateProbe indicates two probes share one id in a registry.
	ErrDuplicateProbe = errors.New("probe: duplicate probe id")

	// ErrInvalidProbe indicates a nil probe or a probe with an empty id.
	ErrInvalidProbe = errors.New("probe: invalid probe")

	// ErrUnknownProbe indicates a lookup for an id that is not registered.
	ErrUnknownProbe = errors.New("probe: unknown probe id")
)
