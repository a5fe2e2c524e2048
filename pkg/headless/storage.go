// Package headless loads a page in headless Chrome and reports what it
// keeps in client-side storage: localStorage, sessionStorage and cookies.
package headless

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/duration"
)

// Sentinel errors for browser sessions.
var (
	// ErrBrowserUnavailable indicates Chrome could not be started.
	ErrBrowserUnavailable = errors.New("headless: browser unavailable")

	// ErrNavigation indicates the page could not be loaded.
	ErrNavigation = errors.New("headless: navigation failed")
)

// Config configures the browser session.
type Config struct {
	ChromePath string
	Timeout    time.Duration
	Proxy      string
	UserAgent  string
	// Settle is how long to wait after load for scripts to populate storage.
	Settle time.Duration
}

// DefaultConfig returns the default browser settings.
func DefaultConfig() Config {
	return Config{
		Timeout:   duration.BrowserSession,
		UserAgent: defaults.UABrowser,
		Settle:    500 * time.Millisecond,
	}
}

// Cookie is a cookie the page holds after loading.
type Cookie struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"http_only"`
	SameSite string `json:"same_site,omitempty"`
}

// Storage is the client-side state of a loaded page.
type Storage struct {
	LocalStorage   map[string]string `json:"local_storage"`
	SessionStorage map[string]string `json:"session_storage"`
	Cookies        []Cookie          `json:"cookies"`
}

// Empty reports whether nothing was stored.
func (s *Storage) Empty() bool {
	return s == nil || (len(s.LocalStorage) == 0 && len(s.SessionStorage) == 0 && len(s.Cookies) == 0)
}

// Keys returns the storage keys as "localStorage.key" and
// "sessionStorage.key", sorted.
func (s *Storage) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.LocalStorage)+len(s.SessionStorage))
	for k := range s.LocalStorage {
		keys = append(keys, "localStorage."+k)
	}
	for k := range s.SessionStorage {
		keys = append(keys, "sessionStorage."+k)
	}
	sort.Strings(keys)
	return keys
}

// Inspector runs one Chrome instance per Inspect call.
type Inspector struct {
	cfg Config
}

// NewInspector returns an inspector; zero config fields take defaults.
func NewInspector(cfg Config) *Inspector {
	d := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = d.UserAgent
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	return &Inspector{cfg: cfg}
}

func (i *Inspector) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.UserAgent(i.cfg.UserAgent),
	)
	if i.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(i.cfg.ChromePath))
	}
	if i.cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(i.cfg.Proxy))
	}
	return opts
}

// Inspect loads pageURL and collects its storage.
func (i *Inspector) Inspect(ctx context.Context, pageURL string) (*Storage, error) {
	if i.cfg.ChromePath != "" {
		if _, err := os.Stat(i.cfg.ChromePath); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, i.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer shutdown(browserCtx, browserCancel, allocCancel)

	// starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(i.cfg.Settle),
	); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, pageURL, err)
	}

	var localJSON, sessionJSON string
	if err := chromedp.Run(browserCtx,
		chromedp.Evaluate(`JSON.stringify(Object.fromEntries(Object.entries(localStorage)))`, &localJSON),
		chromedp.Evaluate(`JSON.stringify(Object.fromEntries(Object.entries(sessionStorage)))`, &sessionJSON),
	); err != nil {
		return nil, fmt.Errorf("%w: read storage: %v", ErrNavigation, err)
	}

	out := &Storage{
		LocalStorage:   parseStorage(localJSON),
		SessionStorage: parseStorage(sessionJSON),
	}
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out.Cookies = append(out.Cookies, Cookie{
				Name:     c.Name,
				Domain:   c.Domain,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: read cookies: %v", ErrNavigation, err)
	}
	return out, nil
}

// parseStorage decodes the JSON object produced by the storage snapshot.
// Anything unparseable yields an empty map.
func parseStorage(raw string) map[string]string {
	m := map[string]string{}
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]string{}
	}
	return m
}

// shutdown cancels the chromedp contexts, force-killing Chrome if a
// graceful exit takes too long.
func shutdown(browserCtx context.Context, browserCancel, allocCancel context.CancelFunc) {
	var proc *os.Process
	if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
		proc = c.Browser.Process()
	}
	done := make(chan struct{})
	go func() {
		browserCancel()
		allocCancel()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		if proc != nil {
			_ = proc.Kill()
		}
	}
}
