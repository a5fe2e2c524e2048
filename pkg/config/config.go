// Package config loads casatester settings from a YAML file. Command flags
// are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/duration"
	"github.com/casatester/casatester/pkg/headless"
	"github.com/casatester/casatester/pkg/httpclient"
	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/runner"
	"github.com/casatester/casatester/pkg/tls"
)

const (
	// EnvPath names the environment variable holding the config path.
	EnvPath = "CASATESTER_CONFIG"

	// DefaultFile is read from the working directory when present.
	DefaultFile = "casatester.yaml"
)

// History backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full settings tree.
type Config struct {
	Runner    Runner    `yaml:"runner"`
	HTTP      HTTP      `yaml:"http"`
	TLS       TLS       `yaml:"tls"`
	History   History   `yaml:"history"`
	Browser   Browser   `yaml:"browser"`
	Scripts   Scripts   `yaml:"scripts"`
	Telemetry Telemetry `yaml:"telemetry"`
	Report    Report    `yaml:"report"`
}

// Runner controls how probes are scheduled.
type Runner struct {
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"` // 0 = fully parallel
	Probes      []string      `yaml:"probes"`      // allow-list; empty = all
}

// HTTP configures the shared network client.
type HTTP struct {
	Timeout     time.Duration `yaml:"timeout"`
	Proxy       string        `yaml:"proxy"`
	Insecure    bool          `yaml:"insecure"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second; 0 = unlimited
	Burst       int           `yaml:"burst"`
	UserAgent   string        `yaml:"user_agent"`
	MaxBodySize int64         `yaml:"max_body_size"`
}

// TLS selects the ClientHello fingerprint for handshakes.
type TLS struct {
	Profile string `yaml:"profile"`
}

// History selects and configures the run store.
type History struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	DSN       string `yaml:"dsn"`
	RedisURL  string `yaml:"redis_url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Browser configures live storage inspection.
type Browser struct {
	Enabled    bool          `yaml:"enabled"`
	ChromePath string        `yaml:"chrome_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Scripts configures scripted probes.
type Scripts struct {
	Dir       string `yaml:"dir"`
	MaxAllocs int64  `yaml:"max_allocs"`
}

// Telemetry configures metrics and tracing export.
type Telemetry struct {
	MetricsAddr  string `yaml:"metrics_addr"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	ServiceName  string `yaml:"service_name"`
}

// Report sets metadata stamped on exported reports.
type Report struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Runner: Runner{Timeout: duration.ProbeTimeout},
		HTTP: HTTP{
			Timeout:     duration.HTTPRequest,
			Insecure:    true,
			RateLimit:   defaults.RateLimitRPS,
			Burst:       defaults.RateLimitBurst,
			UserAgent:   defaults.UAScanner,
			MaxBodySize: defaults.MaxBodySize,
		},
		TLS:     TLS{Profile: tls.DefaultProfile},
		History: History{Backend: BackendFile, Dir: defaultHistoryDir(), KeyPrefix: defaults.ToolName},
		Browser: Browser{Timeout: duration.BrowserSession},
		Scripts: Scripts{MaxAllocs: defaults.MaxScriptAllocs},
		Telemetry: Telemetry{
			OTLPInsecure: true,
			ServiceName:  defaults.ToolName,
		},
	}
}

func defaultHistoryDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, defaults.ToolName, "history")
	}
	return filepath.Join("."+defaults.ToolName, "history")
}

// ResolvePath picks the config file: the explicit flag value, then
// $CASATESTER_CONFIG, then ./casatester.yaml if it exists. An empty result
// means built-in defaults.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Load reads path over the defaults and validates the result. An empty
// path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidConfig, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and backend requirements.
func (c *Config) Validate() error {
	var problems []string
	if c.Runner.Timeout <= 0 || c.Runner.Timeout > duration.ProbeTimeoutMax {
		problems = append(problems, fmt.Sprintf("runner.timeout must be in (0, %s]", duration.ProbeTimeoutMax))
	}
	if c.Runner.Concurrency < 0 {
		problems = append(problems, "runner.concurrency must not be negative")
	}
	if c.HTTP.Timeout <= 0 {
		problems = append(problems, "http.timeout must be positive")
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.Burst < 0 {
		problems = append(problems, "http.rate_limit and http.burst must not be negative")
	}
	if c.HTTP.MaxBodySize <= 0 {
		problems = append(problems, "http.max_body_size must be positive")
	}
	if _, err := tls.ProfileByName(c.TLS.Profile); err != nil {
		problems = append(problems, fmt.Sprintf("tls.profile %q is unknown", c.TLS.Profile))
	}
	if c.Browser.Timeout <= 0 {
		problems = append(problems, "browser.timeout must be positive")
	}
	if c.Scripts.MaxAllocs <= 0 {
		problems = append(problems, "scripts.max_allocs must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return c.validateHistory()
}

func (c *Config) validateHistory() error {
	h := c.History
	switch h.Backend {
	case BackendFile, BackendSQLite:
		if h.Dir == "" && h.DSN == "" {
			return fmt.Errorf("%w: history.dir", ErrMissingRequired)
		}
	case BackendPostgres:
		if h.DSN == "" {
			return fmt.Errorf("%w: history.dsn", ErrMissingRequired)
		}
	case BackendRedis:
		if h.RedisURL == "" {
			return fmt.Errorf("%w: history.redis_url", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: history.backend %q (want file, sqlite, postgres or redis)", ErrInvalidConfig, h.Backend)
	}
	return nil
}

// SQLitePath is the database file for the sqlite backend: the DSN when
// set, else history.db under Dir.
func (h History) SQLitePath() string {
	if h.DSN != "" {
		return h.DSN
	}
	return filepath.Join(h.Dir, "history.db")
}

// RunnerOptions converts the runner section.
func (c *Config) RunnerOptions() runner.Options {
	return runner.Options{PerProbeTimeout: c.Runner.Timeout, MaxConcurrency: c.Runner.Concurrency}
}

// NetclientOptions converts the http and tls sections.
func (c *Config) NetclientOptions(logger *slog.Logger) netclient.Options {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = c.HTTP.Timeout
	httpCfg.Proxy = c.HTTP.Proxy
	httpCfg.InsecureSkipVerify = c.HTTP.Insecure
	return netclient.Options{
		HTTP:        httpCfg,
		TLSProfile:  c.TLS.Profile,
		UserAgent:   c.HTTP.UserAgent,
		RateLimit:   c.HTTP.RateLimit,
		Burst:       c.HTTP.Burst,
		MaxBodySize: c.HTTP.MaxBodySize,
		Logger:      logger,
	}
}

// HeadlessConfig converts the browser section. The browser shares the
// HTTP proxy.
func (c *Config) HeadlessConfig() headless.Config {
	hc := headless.DefaultConfig()
	hc.ChromePath = c.Browser.ChromePath
	hc.Timeout = c.Browser.Timeout
	hc.Proxy = c.HTTP.Proxy
	return hc
}
