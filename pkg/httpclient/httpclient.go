// Package httpclient builds the HTTP clients probes use. Clients share
// connection pooling, honour an optional HTTP or SOCKS proxy and, by
// default, do not follow redirects so a probe sees the first response.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/duration"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: duration.HTTPRequest)
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification. Assessments
	// inspect misconfigured hosts, so this defaults to true.
	InsecureSkipVerify bool

	// Proxy is an http, https, socks4, socks5 or socks5h URL (optional)
	Proxy string

	// MaxIdleConns is the maximum number of idle connections across all hosts
	MaxIdleConns int

	// MaxConnsPerHost is the maximum connections per host
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay in pool
	IdleConnTimeout time.Duration

	// DialTimeout is the timeout for establishing connections
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the timeout for TLS handshake
	TLSHandshakeTimeout time.Duration

	// FollowRedirects follows up to defaults.MaxRedirects redirects.
	FollowRedirects bool
}

// DefaultConfig returns the settings used for assessments.
func DefaultConfig() Config {
	return Config{
		Timeout:             duration.HTTPRequest,
		InsecureSkipVerify:  true,
		MaxIdleConns:        32,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     duration.IdleConnTimeout,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
	}
}

func (cfg Config) withDefaults() Config {
	d := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = d.MaxIdleConns
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = d.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = d.IdleConnTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = d.DialTimeout
	}
	if cfg.TLSHandshakeTimeout <= 0 {
		cfg.TLSHandshakeTimeout = d.TLSHandshakeTimeout
	}
	return cfg
}

// New creates an HTTP client with the given configuration. A malformed
// proxy URL is an error rather than a silent direct connection.
func New(cfg Config) (*http.Client, error) {
	cfg = cfg.withDefaults()

	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if cfg.FollowRedirects {
		client.CheckRedirect = followRedirects
	} else {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client, nil
}

// NewTransport builds the pooled transport behind New.
func NewTransport(cfg Config) (*http.Transport, error) {
	cfg = cfg.withDefaults()

	dialer, err := Dialer(cfg)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,

		DialContext: dialer.DialContext,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // assessments inspect broken certificates
		},
	}

	proxyCfg, err := ParseProxyURL(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if proxyCfg != nil && !proxyCfg.IsSOCKS {
		transport.Proxy = http.ProxyURL(proxyCfg.URL)
	}
	return transport, nil
}

// Dialer returns the dialer for cfg: a SOCKS dialer when a SOCKS proxy is
// configured, a plain net.Dialer otherwise. The TLS inspector dials through
// it so handshakes take the same route as requests.
func Dialer(cfg Config) (ContextDialer, error) {
	cfg = cfg.withDefaults()
	proxyCfg, err := ParseProxyURL(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if proxyCfg != nil && proxyCfg.IsSOCKS {
		return CreateSOCKSDialer(proxyCfg, cfg.DialTimeout)
	}
	return &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}, nil
}

func followRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= defaults.MaxRedirects {
		return fmt.Errorf("%w after %d hops", ErrTooManyRedirects, len(via))
	}
	return nil
}
