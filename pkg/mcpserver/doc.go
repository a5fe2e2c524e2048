// Package mcpserver exposes casatester as a Model Context Protocol (MCP)
// server, letting AI assistants list probes, run assessments and browse
// saved history.
//
// # Tools
//
//   - list_probes:     the registered probes, in execution order
//   - run_assessment:  run the registry (or a subset) against a target
//   - list_runs:       saved runs, most recent first
//   - get_run:         one saved run by id
//   - clear_history:   delete every saved run (requires confirm=true)
//
// Invalid targets, unknown probe ids and unknown run ids are reported as
// tool errors (IsError) so the client can correct the call.
//
// # Transports
//
//   - stdio:  stdin/stdout (default). Used by IDE integrations.
//   - HTTP:   streamable HTTP, mounted at / and /mcp with a /health probe.
//
// # Usage
//
//	srv := mcpserver.New(&mcpserver.Config{Registry: reg, Store: store})
//	err := srv.RunStdio(ctx)
package mcpserver
