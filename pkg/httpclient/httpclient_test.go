package httpclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("done"))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_DoesNotFollowRedirectsByDefault(t *testing.T) {
	srv := redirectServer(t)
	client, err := New(DefaultConfig())
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + "/start")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/end", resp.Header.Get("Location"))
}

func TestNew_FollowRedirects(t *testing.T) {
	srv := redirectServer(t)
	cfg := DefaultConfig()
	cfg.FollowRedirects = true
	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + "/start")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = client.Get(srv.URL + "/loop")
	assert.True(t, errors.Is(err, ErrTooManyRedirects), "got %v", err)
}

func TestNew_InvalidProxy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Proxy = "gopher://proxy"
	_, err := New(cfg)
	assert.True(t, errors.Is(err, ErrInvalidProxy))
}

func TestNewTransport_HTTPProxy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Proxy = "http://127.0.0.1:3128"
	tr, err := NewTransport(cfg)
	require.NoError(t, err)
	require.NotNil(t, tr.Proxy)

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	u, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3128", u.Host)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestNewTransport_SOCKSUsesDialer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Proxy = "socks5://127.0.0.1:1080"
	tr, err := NewTransport(cfg)
	require.NoError(t, err)
	assert.Nil(t, tr.Proxy)
	assert.NotNil(t, tr.DialContext)
}

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{}.withDefaults()
	d := DefaultConfig()
	assert.Equal(t, d.Timeout, got.Timeout)
	assert.Equal(t, d.MaxConnsPerHost, got.MaxConnsPerHost)
	assert.False(t, got.InsecureSkipVerify, "zero-value InsecureSkipVerify is preserved")
}
