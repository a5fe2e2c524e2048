package probes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/netclient"
	"github.com/casatester/casatester/pkg/probe"
)

// ErrScript indicates a script probe that cannot be loaded.
var ErrScript = errors.New("probes: invalid script")

const dryRunTimeout = time.Second

// scriptModules are the only stdlib modules scripts may import. No file,
// network or OS access.
var scriptModules = stdlib.GetModuleMap("text", "fmt", "math", "times", "json")

// ScriptProbe runs a tengo script against the target page. The script
// reads target, status, headers and body, and sets outcome ("pass" or
// "fail"), summary and detail.
type ScriptProbe struct {
	desc     probe.Descriptor
	path     string
	client   netclient.Client
	compiled *tengo.Compiled
}

// LoadScript compiles the script at path. The probe id is the file stem.
func LoadScript(path string, client netclient.Client, maxAllocs int64) (*ScriptProbe, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrScript, path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if id == "" {
		return nil, fmt.Errorf("%w: %s: empty name", ErrScript, path)
	}
	if maxAllocs <= 0 {
		maxAllocs = defaults.MaxScriptAllocs
	}

	script := tengo.NewScript(src)
	script.SetImports(scriptModules)
	script.SetMaxAllocs(maxAllocs)
	for name, zero := range map[string]any{
		"target":       "",
		"status":       0,
		"headers":      map[string]any{},
		"body":         "",
		"outcome":      "",
		"summary":      "",
		"detail":       "",
		"display_name": "",
	} {
		if err := script.Add(name, zero); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrScript, path, err)
		}
	}
	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", ErrScript, path, err)
	}

	p := &ScriptProbe{
		desc:     probe.Descriptor{ID: id, DisplayName: titleStem(id)},
		path:     path,
		client:   client,
		compiled: compiled,
	}
	// A dry run with empty inputs picks up display_name when the script
	// sets it unconditionally.
	ctx, cancel := context.WithTimeout(context.Background(), dryRunTimeout)
	defer cancel()
	if dry := compiled.Clone(); dry.RunContext(ctx) == nil {
		if name := dry.Get("display_name").String(); name != "" {
			p.desc.DisplayName = name
		}
	}
	return p, nil
}

// LoadScriptDir loads every *.tengo file in dir in name order. Any script
// that fails to load fails the whole directory.
func LoadScriptDir(dir string, client netclient.Client, maxAllocs int64) ([]*ScriptProbe, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %v", ErrScript, dir, err)
	}
	var out []*ScriptProbe
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".tengo" {
			continue
		}
		p, err := LoadScript(filepath.Join(dir, e.Name()), client, maxAllocs)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func titleStem(stem string) string {
	words := strings.FieldsFunc(stem, func(r rune) bool { return r == '-' || r == '_' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func (p *ScriptProbe) Descriptor() probe.Descriptor { return p.desc }

// Path is the file the probe was loaded from.
func (p *ScriptProbe) Path() string { return p.path }

func (p *ScriptProbe) Execute(ctx context.Context, target probe.Target) (res probe.Result) {
	s := newSession(p.client)
	resp, err := s.get(ctx, target.String(), true)
	if err != nil {
		return s.error(err)
	}

	defer func() {
		if r := recover(); r != nil {
			res = probe.Errorf(s.trace(), "script %s panicked: %v", p.desc.ID, r)
		}
	}()

	headers := make(map[string]any, len(resp.Header))
	for k, v := range resp.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	c := p.compiled.Clone()
	for name, v := range map[string]any{
		"target":  target.String(),
		"status":  resp.StatusCode,
		"headers": headers,
		"body":    resp.BodyString(),
	} {
		if err := c.Set(name, v); err != nil {
			return probe.Errorf(s.trace(), "script %s: set %s: %v", p.desc.ID, name, err)
		}
	}
	if err := c.RunContext(ctx); err != nil {
		return probe.Errorf(s.trace(), "script %s: %v", p.desc.ID, err)
	}

	summary, detail := c.Get("summary").String(), c.Get("detail").String()
	switch outcome := strings.ToLower(c.Get("outcome").String()); outcome {
	case "pass":
		return s.pass(summary, detail)
	case "fail":
		return s.fail(summary, detail)
	case "":
		return probe.Errorf(s.trace(), "script %s did not set outcome", p.desc.ID)
	default:
		return probe.Errorf(s.trace(), "script %s set unknown outcome %q", p.desc.ID, outcome)
	}
}
