package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/casatester/casatester/pkg/cli"
	"github.com/casatester/casatester/pkg/config"
	"github.com/casatester/casatester/pkg/duration"
	"github.com/casatester/casatester/pkg/headless"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/history/postgres"
	"github.com/casatester/casatester/pkg/history/redis"
	"github.com/casatester/casatester/pkg/history/sqlite"
	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/probes"
	"github.com/casatester/casatester/pkg/ui"
)

// Environment fallbacks for the history store.
const (
	envHistoryBackend = "CASATESTER_HISTORY_BACKEND"
	envHistoryDir     = "CASATESTER_HISTORY_DIR"
	envHistoryDSN     = "CASATESTER_HISTORY_DSN"
	envRedisURL       = "CASATESTER_REDIS_URL"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	verbose    bool
	logJSON    bool
	noColor    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Config file (default $"+config.EnvPath+" or ./"+config.DefaultFile+")")
	fs.BoolVar(&c.verbose, "v", false, "Verbose (debug) logging")
	fs.BoolVar(&c.logJSON, "log-json", false, "Log as JSON")
	fs.BoolVar(&c.noColor, "no-color", false, "Disable colored output")
}

// env is the per-invocation state built from common flags.
type env struct {
	*streams
	cfg    *config.Config
	logger *slog.Logger
}

// setup loads configuration, applies environment fallbacks and builds the
// logger. Config errors map to ExitInternal.
func (c *commonFlags) setup(s *streams) (*env, error) {
	ui.ConfigureColor(s.out, c.noColor)

	cfg, err := config.Load(config.ResolvePath(c.configPath))
	if err != nil {
		return nil, err
	}
	cfg.History.Backend = cli.EnvOrDefault(envHistoryBackend, cfg.History.Backend)
	cfg.History.Dir = cli.EnvOrDefault(envHistoryDir, cfg.History.Dir)
	cfg.History.DSN = cli.EnvOrDefault(envHistoryDSN, cfg.History.DSN)
	cfg.History.RedisURL = cli.EnvOrDefault(envRedisURL, cfg.History.RedisURL)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &env{streams: s, cfg: cfg, logger: newLogger(s.err, c.verbose, c.logJSON)}, nil
}

func newLogger(w io.Writer, verbose, asJSON bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseFlags parses args and reports which flags were given explicitly.
// A -h request returns flag.ErrHelp.
func parseFlags(fs *flag.FlagSet, args []string) (map[string]bool, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set, nil
}

func newFlagSet(name string, s *streams) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(s.err)
	return fs
}

// usageCode maps a flag parse error to an exit code.
func usageCode(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return cli.ExitOK
	}
	return cli.ExitUsage
}

func (e *env) fail(code int, format string, args ...any) int {
	fmt.Fprintln(e.err, ui.FailStyle.Render("error:"), fmt.Sprintf(format, args...))
	return code
}

// openHistory opens the configured history backend.
func (e *env) openHistory(ctx context.Context) (history.Store, error) {
	h := e.cfg.History
	switch h.Backend {
	case config.BackendSQLite:
		path := h.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", history.ErrWrite, err)
		}
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return s.WithLogger(e.logger), nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, h.DSN)
		if err != nil {
			return nil, err
		}
		return s.WithLogger(e.logger), nil
	case config.BackendRedis:
		s, err := redis.Open(ctx, h.RedisURL, h.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return s.WithLogger(e.logger), nil
	default:
		s, err := history.NewFileStore(h.Dir)
		if err != nil {
			return nil, err
		}
		return s.WithLogger(e.logger), nil
	}
}

// newClient builds the network client shared by all probes.
func (e *env) newClient() (*netclient.HTTPClient, error) {
	return netclient.New(e.cfg.NetclientOptions(e.logger))
}

// registry builds the built-in and scripted probes, narrowed to the
// configured allow-list.
func (e *env) registry(client netclient.Client) (*probe.Registry, error) {
	opts := probes.Options{
		ScriptDir:       e.cfg.Scripts.Dir,
		ScriptMaxAllocs: e.cfg.Scripts.MaxAllocs,
		Logger:          e.logger,
	}
	if e.cfg.Browser.Enabled {
		opts.Browser = headless.NewInspector(e.cfg.HeadlessConfig())
	}
	reg, err := probes.Default(client, opts)
	if err != nil {
		return nil, err
	}
	return reg.Select(e.cfg.Runner.Probes...)
}

// serveHTTP listens on addr and serves h until the returned stop function
// is called.
func (e *env) serveHTTP(addr string, h http.Handler) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: duration.ReadHeader,
		IdleTimeout:       duration.ServerIdle,
		MaxHeaderBytes:    1 << 20,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("http server stopped", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), duration.Shutdown)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
