package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/casatester/casatester/pkg/duration"
	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/probe"
	"github.com/casatester/casatester/pkg/runner"
)

const defaultListLimit = 20

func (s *Server) registerTools() {
	s.addListProbesTool()
	s.addRunAssessmentTool()
	s.addListRunsTool()
	s.addGetRunTool()
	s.addClearHistoryTool()
}

// ═══════════════════════════════════════════════════════════════════════════
// list_probes
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addListProbesTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "list_probes",
			Title: "List Probes",
			Description: `List the security probes run_assessment executes, in execution order. No network traffic.

Use the returned ids with run_assessment's "probes" argument to run a subset.`,
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "List Probes",
			},
		},
		s.handleListProbes,
	)
}

type probeList struct {
	Count  int                `json:"count"`
	Probes []probe.Descriptor `json:"probes"`
}

func (s *Server) handleListProbes(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	descs := s.config.Registry.Descriptors()
	return jsonResult(probeList{Count: len(descs), Probes: descs})
}

// ═══════════════════════════════════════════════════════════════════════════
// run_assessment
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addRunAssessmentTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "run_assessment",
			Title: "Run Security Assessment",
			Description: `Run the probe battery against one target URL and return every result with a summary.

Each probe reports pass, fail or error. A probe that times out or cannot reach the target reports error, never pass. The run is saved to history unless save is false.

EXAMPLE INPUTS:
• Full run: {"target": "https://shop.example"}
• Subset: {"target": "https://shop.example", "probes": ["ssl-tls", "security-headers"]}
• Slow host: {"target": "https://legacy.example", "timeout_ms": 30000, "max_concurrency": 2}`,
			InputSchema: map[string]any{
				"type":     "object",
				"required": []string{"target"},
				"properties": map[string]any{
					"target": map[string]any{
						"type":        "string",
						"description": "Absolute http(s) URL to assess.",
					},
					"timeout_ms": map[string]any{
						"type":        "integer",
						"description": "Per-probe timeout in milliseconds.",
						"minimum":     1,
						"maximum":     duration.ProbeTimeoutMax.Milliseconds(),
					},
					"max_concurrency": map[string]any{
						"type":        "integer",
						"description": "Probes executing at once. 0 runs all in parallel.",
						"minimum":     0,
					},
					"probes": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Probe ids to run (see list_probes). Empty runs all.",
					},
					"save": map[string]any{
						"type":        "boolean",
						"description": "Save the run to history.",
						"default":     true,
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   false,
				IdempotentHint: false,
				OpenWorldHint:  boolPtr(true),
				Title:          "Run Security Assessment",
			},
		},
		s.handleRunAssessment,
	)
}

type runAssessmentArgs struct {
	Target         string   `json:"target"`
	TimeoutMs      int64    `json:"timeout_ms"`
	MaxConcurrency int      `json:"max_concurrency"`
	Probes         []string `json:"probes"`
	Save           *bool    `json:"save"`
}

type assessmentResult struct {
	ID    history.RunID `json:"id,omitempty"`
	Saved bool          `json:"saved"`
	Run   *finding.Run  `json:"run"`
}

func (s *Server) handleRunAssessment(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args runAssessmentArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'target' (string) and optional 'timeout_ms', 'max_concurrency', 'probes', 'save'.", err)), nil
	}
	if _, err := probe.ParseTarget(args.Target); err != nil {
		return errorResult(fmt.Sprintf("%v. Provide an absolute http:// or https:// URL, e.g. https://example.com.", err)), nil
	}
	if args.TimeoutMs < 0 || time.Duration(args.TimeoutMs)*time.Millisecond > duration.ProbeTimeoutMax {
		return errorResult(fmt.Sprintf("timeout_ms must be between 1 and %d", duration.ProbeTimeoutMax.Milliseconds())), nil
	}
	if args.MaxConcurrency < 0 {
		return errorResult("max_concurrency must not be negative"), nil
	}

	reg, err := s.config.Registry.Select(args.Probes...)
	if err != nil {
		return errorResult(fmt.Sprintf("%v. Call list_probes for valid ids.", err)), nil
	}

	opts := s.config.RunnerOptions
	if args.TimeoutMs > 0 {
		opts.PerProbeTimeout = time.Duration(args.TimeoutMs) * time.Millisecond
	}
	if args.MaxConcurrency > 0 {
		opts.MaxConcurrency = args.MaxConcurrency
	}

	coord := runner.New(reg, opts,
		runner.WithHooks(s.config.Hooks...),
		runner.WithLogger(s.logger),
		runner.WithProgress(func(completed, total int64, res probe.Result) {
			notifyProgress(ctx, req, float64(completed), float64(total),
				fmt.Sprintf("%s: %s", res.ProbeID, res.Outcome))
		}))

	logToSession(ctx, req, logInfo, fmt.Sprintf("assessing %s with %d probes", args.Target, reg.Len()))
	run, err := coord.Run(ctx, args.Target)
	if err != nil {
		if errors.Is(err, probe.ErrInvalidTarget) {
			return errorResult(err.Error()), nil
		}
		return nil, fmt.Errorf("running assessment: %w", err)
	}

	out := assessmentResult{Run: run}
	save := args.Save == nil || *args.Save
	if save && s.config.Store != nil {
		id, err := s.config.Store.Append(ctx, run)
		if err != nil {
			logToSession(ctx, req, logWarning, fmt.Sprintf("run completed but was not saved: %v", err))
			s.logger.Warn("save run failed", "target", run.Target, "error", err)
		} else {
			out.ID, out.Saved = id, true
		}
	}
	return jsonResult(out)
}

// ═══════════════════════════════════════════════════════════════════════════
// list_runs
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addListRunsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:        "list_runs",
			Title:       "List Saved Runs",
			Description: "List saved assessment runs, most recent first, with their summaries. Use get_run with an id for full results.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum runs to return. 0 returns all.",
						"minimum":     0,
						"default":     defaultListLimit,
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "List Saved Runs",
			},
		},
		s.handleListRuns,
	)
}

type listRunsArgs struct {
	Limit *int `json:"limit"`
}

type runList struct {
	Count int             `json:"count"`
	Runs  []history.Entry `json:"runs"`
}

func (s *Server) handleListRuns(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.config.Store == nil {
		return errorResult(errNoHistory), nil
	}
	var args listRunsArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected optional 'limit' (integer).", err)), nil
	}
	limit := defaultListLimit
	if args.Limit != nil {
		limit = *args.Limit
	}
	if limit < 0 {
		return errorResult("limit must not be negative"), nil
	}
	entries, err := s.config.Store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return jsonResult(runList{Count: len(entries), Runs: entries})
}

// ═══════════════════════════════════════════════════════════════════════════
// get_run
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addGetRunTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:        "get_run",
			Title:       "Get Saved Run",
			Description: "Return one saved run with every probe result. Ids come from list_runs or run_assessment.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []string{"id"},
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Run id, e.g. 20260301T120000.000000000Z-0001",
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Get Saved Run",
			},
		},
		s.handleGetRun,
	)
}

type getRunArgs struct {
	ID string `json:"id"`
}

func (s *Server) handleGetRun(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.config.Store == nil {
		return errorResult(errNoHistory), nil
	}
	var args getRunArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'id' (string).", err)), nil
	}
	id, err := history.ParseID(args.ID)
	if err != nil {
		return errorResult(fmt.Sprintf("%v. Call list_runs for valid ids.", err)), nil
	}
	run, err := s.config.Store.Get(ctx, id)
	switch {
	case errors.Is(err, history.ErrNotFound):
		return errorResult(fmt.Sprintf("no saved run with id %s. Call list_runs for valid ids.", id)), nil
	case err != nil:
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return jsonResult(assessmentResult{ID: id, Saved: true, Run: run})
}

// ═══════════════════════════════════════════════════════════════════════════
// clear_history
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addClearHistoryTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:        "clear_history",
			Title:       "Clear History",
			Description: "Delete every saved run. Irreversible; requires confirm=true. Ask the user before calling.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []string{"confirm"},
				"properties": map[string]any{
					"confirm": map[string]any{
						"type":        "boolean",
						"description": "Must be true.",
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:    false,
				DestructiveHint: boolPtr(true),
				IdempotentHint:  true,
				OpenWorldHint:   boolPtr(false),
				Title:           "Clear History",
			},
		},
		s.handleClearHistory,
	)
}

type clearHistoryArgs struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) handleClearHistory(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.config.Store == nil {
		return errorResult(errNoHistory), nil
	}
	var args clearHistoryArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'confirm' (boolean).", err)), nil
	}
	if !args.Confirm {
		return errorResult("refusing to clear history without confirm=true"), nil
	}
	if err := s.config.Store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clearing history: %w", err)
	}
	s.logger.Info("history cleared via MCP")
	return textResult("History cleared."), nil
}

const errNoHistory = "history is not configured on this server"
