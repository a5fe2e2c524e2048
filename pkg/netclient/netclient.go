// Package netclient is the network collaborator probes use for HTTP
// requests and TLS handshakes. Every request is rate limited, tagged with a
// fresh X-Request-ID and summarized as one trace line, so a probe Result can
// show exactly what was sent and what came back.
package netclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
	"golang.org/x/time/rate"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/httpclient"
	"github.com/casatester/casatester/pkg/tls"
)

// Sentinel errors for network operations.
var (
	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("netclient: transport error")

	// ErrTLS indicates the TLS handshake could not be completed.
	ErrTLS = errors.New("netclient: tls handshake failed")
)

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

// Client performs the network operations probes need.
type Client interface {
	Request(ctx context.Context, req Request) (*Response, error)
	TLSHandshake(ctx context.Context, host, port string) (*TLSState, error)
}

// Request describes one HTTP exchange. Method defaults to GET.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	// Timeout bounds this request in addition to the caller's context.
	Timeout time.Duration
	// FollowRedirects follows redirects like curl -L.
	FollowRedirects bool
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Truncated is set when the body exceeded the size cap.
	Truncated bool
	// URL is the final URL after any redirects.
	URL       string
	RequestID string
	BodyHash  uint32
	Trace     string
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string { return string(r.Body) }

// TLSState is the outcome of a handshake plus its trace line.
type TLSState struct {
	tls.State
	Trace string
}

// TransportError is returned when a request fails before a response.
type TransportError struct {
	Method    string
	URL       string
	RequestID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// Trace renders the failed exchange as a trace line.
func (e *TransportError) Trace() string {
	return fmt.Sprintf("%s %s -> error: %v id=%s", e.Method, e.URL, e.Err, e.RequestID)
}

// TraceOf returns the trace line carried by err, if any.
func TraceOf(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Trace()
	}
	return ""
}

// Options configures an HTTPClient.
type Options struct {
	HTTP        httpclient.Config
	TLSProfile  string
	UserAgent   string
	RateLimit   float64 // requests per second; <= 0 disables limiting
	Burst       int
	MaxBodySize int64
	Logger      *slog.Logger
}

// DefaultOptions returns the assessment defaults.
func DefaultOptions() Options {
	return Options{
		HTTP:        httpclient.DefaultConfig(),
		TLSProfile:  tls.DefaultProfile,
		UserAgent:   defaults.UAScanner,
		RateLimit:   defaults.RateLimitRPS,
		Burst:       defaults.RateLimitBurst,
		MaxBodySize: defaults.MaxBodySize,
	}
}

// HTTPClient implements Client over net/http and pkg/tls.
type HTTPClient struct {
	direct    *http.Client
	follow    *http.Client
	inspector *tls.Inspector
	limiter   *rate.Limiter
	userAgent string
	maxBody   int64
	logger    *slog.Logger
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// New builds an HTTPClient.
func New(opts Options) (*HTTPClient, error) {
	httpCfg := opts.HTTP
	httpCfg.FollowRedirects = false
	direct, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, err
	}
	httpCfg.FollowRedirects = true
	follow, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, err
	}
	// share one pool between both redirect policies
	follow.Transport = direct.Transport

	dialer, err := httpclient.Dialer(opts.HTTP)
	if err != nil {
		return nil, err
	}
	inspector, err := tls.NewInspector(opts.TLSProfile, dialer)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaults.MaxBodySize
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaults.UAScanner
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPClient{
		direct:    direct,
		follow:    follow,
		inspector: inspector,
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: ua,
		maxBody:   maxBody,
		logger:    logger,
	}, nil
}

// Request performs req and reads the body up to the size cap.
func (c *HTTPClient) Request(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	id := uuid.NewString()
	fail := func(err error) (*Response, error) {
		return nil, &TransportError{Method: method, URL: req.URL, RequestID: id, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return fail(err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	hreq.Header.Set(RequestIDHeader, id)

	client := c.direct
	if req.FollowRedirects {
		client = c.follow
	}
	resp, err := client.Do(hreq)
	if err != nil {
		c.logger.Debug("request failed", slog.String("method", method),
			slog.String("url", req.URL), slog.String("id", id), slog.String("error", err.Error()))
		return fail(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fail(fmt.Errorf("read body: %w", err))
	}
	truncated := int64(len(body)) > c.maxBody
	if truncated {
		body = bytes.Clone(body[:c.maxBody])
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Truncated:  truncated,
		URL:        resp.Request.URL.String(),
		RequestID:  id,
		BodyHash:   bodyHash(body),
	}
	out.Trace = formatTrace(method, req.URL, out)
	c.logger.Debug("request", slog.String("trace", out.Trace))
	return out, nil
}

// bodyHash returns the murmur3 hash of body. Sum32 does pointer arithmetic
// past the end of an empty slice, so empty bodies hash to 0 directly.
func bodyHash(body []byte) uint32 {
	if len(body) == 0 {
		return 0
	}
	return murmur3.Sum32(body)
}

func formatTrace(method, url string, r *Response) string {
	size := fmt.Sprintf("%d bytes", len(r.Body))
	if r.Truncated {
		size += ", truncated"
	}
	return fmt.Sprintf("%s %s -> %d (%s, mmh3 %08x) id=%s", method, url, r.StatusCode, size, r.BodyHash, r.RequestID)
}

// TLSHandshake inspects the TLS configuration of host:port.
func (c *HTTPClient) TLSHandshake(ctx context.Context, host, port string) (*TLSState, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTLS, err)
	}
	st, err := c.inspector.Handshake(ctx, host, port)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTLS, err)
	}
	trace := fmt.Sprintf("TLS %s:%s -> %s %s (hello %s)", host, port, st.VersionName, st.CipherSuite, st.Profile)
	c.logger.Debug("tls handshake", slog.String("trace", trace))
	return &TLSState{State: *st, Trace: trace}, nil
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.direct.CloseIdleConnections()
}
