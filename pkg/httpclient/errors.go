package httpclient

import "errors"

// Sentinel errors for HTTP client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidProxy indicates a malformed proxy URL or unsupported scheme.
	ErrInvalidProxy = errors.New("httpclient: invalid proxy")

	// ErrProxyConnect indicates the client failed to connect through
	// the configured SOCKS5 or HTTP proxy.
	ErrProxyConnect = errors.New("httpclient: proxy connection failed")

	// ErrTooManyRedirects indicates a redirect chain longer than allowed.
	ErrTooManyRedirects = errors.New("httpclient: too many redirects")
)
