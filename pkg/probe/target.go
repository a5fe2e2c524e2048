package probe

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is a validated absolute http(s) URL. The zero value is invalid;
// build one with ParseTarget.
type Target struct {
	raw string
	u   url.URL
}

// ParseTarget validates raw and returns the Target. The error wraps
// ErrInvalidTarget.
func ParseTarget(raw string) (Target, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Target{}, fmt.Errorf("%w: target URL is required", ErrInvalidTarget)
	}
	u, err := url.Parse(s)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !u.IsAbs() {
		return Target{}, fmt.Errorf("%w: %q is not an absolute URL (e.g. https://example.com)", ErrInvalidTarget, s)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}
	if u.Hostname() == "" {
		return Target{}, fmt.Errorf("%w: %q has no host", ErrInvalidTarget, s)
	}
	u.Scheme = scheme
	u.Fragment = ""
	u.RawFragment = ""
	return Target{raw: s, u: *u}, nil
}

// MustParseTarget is like ParseTarget but panics on error. For tests and
// static configuration.
func MustParseTarget(raw string) Target {
	t, err := ParseTarget(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the normalized URL.
func (t Target) String() string { return t.u.String() }

// Raw returns the string the target was parsed from.
func (t Target) Raw() string { return t.raw }

// URL returns a copy of the parsed URL; callers may modify it freely.
func (t Target) URL() *url.URL {
	u := t.u
	return &u
}

// Host returns the hostname without port.
func (t Target) Host() string { return t.u.Hostname() }

// Port returns the explicit port or the scheme default.
func (t Target) Port() string {
	if p := t.u.Port(); p != "" {
		return p
	}
	if t.IsHTTPS() {
		return "443"
	}
	return "80"
}

// IsHTTPS reports whether the target uses https.
func (t Target) IsHTTPS() bool { return t.u.Scheme == "https" }

// IsZero reports whether t was never parsed.
func (t Target) IsZero() bool { return t.u.Host == "" }

// Resolve returns the absolute URL of path relative to the target origin.
// A path without a leading slash is resolved against the target path.
func (t Target) Resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return t.String()
	}
	return t.u.ResolveReference(ref).String()
}

// WithQuery returns the target URL with key=value added to its query.
func (t Target) WithQuery(key, value string) string {
	u := t.URL()
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
