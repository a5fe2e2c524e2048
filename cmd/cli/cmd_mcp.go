package main

import (
	"context"
	"fmt"

	"github.com/casatester/casatester/pkg/cli"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/hooks"
	"github.com/casatester/casatester/pkg/mcpserver"
	"github.com/casatester/casatester/pkg/runner"
)

const envMCPAddr = "CASATESTER_MCP_ADDR"

// runMCP serves the Model Context Protocol over stdio, or over streamable
// HTTP when -http (or $CASATESTER_MCP_ADDR) is set.
func runMCP(ctx context.Context, s *streams, args []string) int {
	var common commonFlags
	fs := newFlagSet("mcp", s)
	common.register(fs)
	httpAddr := fs.String("http", cli.EnvOrDefault(envMCPAddr, ""), "Serve streamable HTTP on this address instead of stdio")
	if _, err := parseFlags(fs, args); err != nil {
		return usageCode(err)
	}

	e, err := common.setup(s)
	if err != nil {
		fmt.Fprintf(s.err, "error: %v\n", err)
		return cli.ExitInternal
	}

	client, err := e.newClient()
	if err != nil {
		return e.fail(cli.ExitInternal, "network client: %v", err)
	}
	defer client.CloseIdleConnections()
	reg, err := e.registry(client)
	if err != nil {
		return e.fail(cli.ExitInternal, "loading probes: %v", err)
	}

	var store history.Store
	if st, err := e.openHistory(ctx); err != nil {
		e.logger.Warn("history unavailable; history tools disabled", "error", err)
	} else {
		store = st
		defer st.Close()
	}

	srv := mcpserver.New(&mcpserver.Config{
		Registry:      reg,
		Store:         store,
		RunnerOptions: e.cfg.RunnerOptions(),
		Hooks:         []runner.Hook{hooks.NewLoggerHook(e.logger)},
		Logger:        e.logger,
	})
	srv.MarkReady()

	if *httpAddr == "" {
		if err := srv.RunStdio(ctx); err != nil && ctx.Err() == nil {
			return e.fail(cli.ExitInternal, "%v", err)
		}
		return cli.ExitOK
	}

	stop, err := e.serveHTTP(*httpAddr, srv.HTTPHandler())
	if err != nil {
		return e.fail(cli.ExitInternal, "%v", err)
	}
	e.logger.Info("MCP server listening", "addr", *httpAddr, "transport", "streamable-http")
	<-ctx.Done()
	e.logger.Info("shutting down MCP server")
	stop()
	return cli.ExitOK
}
