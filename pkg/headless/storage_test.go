package headless

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStorage(t *testing.T) {
	assert.Equal(t, map[string]string{"token": "abc", "theme": "dark"}, parseStorage(`{"token":"abc","theme":"dark"}`))
	assert.Empty(t, parseStorage(""))
	assert.Empty(t, parseStorage("{not json"))
	assert.Empty(t, parseStorage("{}"))
}

func TestStorage_KeysAndEmpty(t *testing.T) {
	var nilStorage *Storage
	assert.True(t, nilStorage.Empty())
	assert.Nil(t, nilStorage.Keys())

	s := &Storage{
		LocalStorage:   map[string]string{"jwt": "x", "cart": "y"},
		SessionStorage: map[string]string{"step": "2"},
	}
	assert.False(t, s.Empty())
	assert.Equal(t, []string{"localStorage.cart", "localStorage.jwt", "sessionStorage.step"}, s.Keys())

	assert.False(t, (&Storage{Cookies: []Cookie{{Name: "sid"}}}).Empty())
}

func TestInspect_MissingChrome(t *testing.T) {
	in := NewInspector(Config{ChromePath: filepath.Join(t.TempDir(), "no-such-chrome")})
	_, err := in.Inspect(context.Background(), "http://127.0.0.1/")
	assert.True(t, errors.Is(err, ErrBrowserUnavailable), "got %v", err)
}

func TestNewInspector_Defaults(t *testing.T) {
	in := NewInspector(Config{Settle: -1})
	assert.Equal(t, DefaultConfig().Timeout, in.cfg.Timeout)
	assert.NotEmpty(t, in.cfg.UserAgent)
	assert.Zero(t, in.cfg.Settle)
}

func findChrome() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func TestInspect_LiveBrowser(t *testing.T) {
	chrome := findChrome()
	if chrome == "" {
		t.Skip("no Chrome or Chromium on PATH")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "1", HttpOnly: true})
		_, _ = w.Write([]byte(`<html><body><script>
localStorage.setItem("authToken", "secret");
sessionStorage.setItem("wizardStep", "2");
</script></body></html>`))
	}))
	defer srv.Close()

	in := NewInspector(Config{ChromePath: chrome, Timeout: 30 * time.Second})
	st, err := in.Inspect(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "secret", st.LocalStorage["authToken"])
	assert.Equal(t, "2", st.SessionStorage["wizardStep"])
	require.NotEmpty(t, st.Cookies)
	assert.Equal(t, "sid", st.Cookies[0].Name)
	assert.True(t, st.Cookies[0].HTTPOnly)
}
