package mcpserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/mcpserver"
	"github.com/casatester/casatester/pkg/probe"
)

func testRegistry(t *testing.T) *probe.Registry {
	t.Helper()
	reg, err := probe.NewRegistry(
		probe.Func(probe.Descriptor{ID: "always-pass", DisplayName: "Always Pass"},
			func(context.Context, probe.Target) probe.Result { return probe.Pass("ok", "", "") }),
		probe.Func(probe.Descriptor{ID: "always-fail", DisplayName: "Always Fail"},
			func(context.Context, probe.Target) probe.Result { return probe.Fail("bad", "detail", "") }),
	)
	require.NoError(t, err)
	return reg
}

// newTestSession connects an in-memory client to a server over store.
func newTestSession(t *testing.T, store history.Store) *mcp.ClientSession {
	t.Helper()

	srv := mcpserver.New(&mcpserver.Config{Registry: testRegistry(t), Store: store})
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.MCPServer().Run(ctx, serverTransport) }()

	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func newStore(t *testing.T) history.Store {
	t.Helper()
	store, err := history.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

type assessment struct {
	ID    string       `json:"id"`
	Saved bool         `json:"saved"`
	Run   *finding.Run `json:"run"`
}

func TestListTools(t *testing.T) {
	cs := newTestSession(t, nil)
	result, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.NotNil(t, tool.Annotations, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_probes", "run_assessment", "list_runs", "get_run", "clear_history"}, names)
}

func TestListProbes(t *testing.T) {
	cs := newTestSession(t, nil)
	res := call(t, cs, "list_probes", nil)
	require.False(t, res.IsError)

	var out struct {
		Count  int                `json:"count"`
		Probes []probe.Descriptor `json:"probes"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "always-pass", out.Probes[0].ID)
	assert.Equal(t, "Always Fail", out.Probes[1].DisplayName)
}

func TestRunAssessmentSavesAndReads(t *testing.T) {
	cs := newTestSession(t, newStore(t))

	res := call(t, cs, "run_assessment", map[string]any{"target": "https://shop.example"})
	require.False(t, res.IsError, text(t, res))

	var got assessment
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.True(t, got.Saved)
	require.NotEmpty(t, got.ID)
	assert.Equal(t, "https://shop.example", got.Run.Target)
	assert.Equal(t, finding.Summary{Total: 2, Passed: 1, Failed: 1, PassRatePercent: 50}, got.Run.Summary)

	list := call(t, cs, "list_runs", nil)
	require.False(t, list.IsError)
	var runs struct {
		Count int             `json:"count"`
		Runs  []history.Entry `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, list)), &runs))
	require.Equal(t, 1, runs.Count)
	assert.Equal(t, got.ID, string(runs.Runs[0].ID))

	fetched := call(t, cs, "get_run", map[string]any{"id": got.ID})
	require.False(t, fetched.IsError)
	var again assessment
	require.NoError(t, json.Unmarshal([]byte(text(t, fetched)), &again))
	assert.Equal(t, got.Run.Results, again.Run.Results)
}

func TestRunAssessmentSubsetWithoutSave(t *testing.T) {
	store := newStore(t)
	cs := newTestSession(t, store)

	res := call(t, cs, "run_assessment", map[string]any{
		"target":          "http://shop.example",
		"probes":          []string{"always-fail"},
		"save":            false,
		"timeout_ms":      500,
		"max_concurrency": 1,
	})
	require.False(t, res.IsError, text(t, res))
	var got assessment
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.False(t, got.Saved)
	require.Len(t, got.Run.Results, 1)
	assert.Equal(t, probe.OutcomeFail, got.Run.Results[0].Outcome)

	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestToolErrors(t *testing.T) {
	cs := newTestSession(t, newStore(t))

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"relative target", "run_assessment", map[string]any{"target": "shop.example"}, "invalid target"},
		{"ftp target", "run_assessment", map[string]any{"target": "ftp://shop.example"}, "invalid target"},
		{"unknown probe", "run_assessment", map[string]any{"target": "https://a.example", "probes": []string{"nope"}}, "unknown probe"},
		{"negative concurrency", "run_assessment", map[string]any{"target": "https://a.example", "max_concurrency": -1}, "max_concurrency"},
		{"malformed id", "get_run", map[string]any{"id": "latest"}, "invalid run id"},
		{"unknown id", "get_run", map[string]any{"id": "20200101T000000.000000000Z-0001"}, "no saved run"},
		{"clear without confirm", "clear_history", map[string]any{"confirm": false}, "confirm=true"},
		{"negative limit", "list_runs", map[string]any{"limit": -2}, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, cs, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text(t, res), tt.want)
		})
	}
}

func TestHistoryToolsWithoutStore(t *testing.T) {
	cs := newTestSession(t, nil)
	for _, tool := range []string{"list_runs", "get_run", "clear_history"} {
		res := call(t, cs, tool, map[string]any{"id": "x", "confirm": true})
		assert.True(t, res.IsError, tool)
		assert.Contains(t, text(t, res), "not configured")
	}

	res := call(t, cs, "run_assessment", map[string]any{"target": "https://shop.example"})
	require.False(t, res.IsError)
	var got assessment
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.False(t, got.Saved)
}

func TestClearHistory(t *testing.T) {
	store := newStore(t)
	cs := newTestSession(t, store)
	call(t, cs, "run_assessment", map[string]any{"target": "https://shop.example"})

	res := call(t, cs, "clear_history", map[string]any{"confirm": true})
	require.False(t, res.IsError)
	assert.Equal(t, "History cleared.", text(t, res))

	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVersionResource(t *testing.T) {
	cs := newTestSession(t, nil)
	res, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "casatester://version"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, `"always-pass"`)
}

func TestHealthEndpoint(t *testing.T) {
	srv := mcpserver.New(nil)
	h := srv.HTTPHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.MarkReady()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := mcpserver.New(nil).HTTPHandler()
	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://ui.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ui.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
