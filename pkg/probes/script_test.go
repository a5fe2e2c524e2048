package probes

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casatester/casatester/pkg/probe"
)

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const robotsScript = `
text := import("text")
display_name = "Robots Disclosure"
if status == 200 && text.contains(body, "Disallow: /admin") {
	outcome = "fail"
	summary = "robots.txt reveals /admin"
	detail = "served by " + headers["server"]
} else {
	outcome = "pass"
	summary = "nothing disclosed"
}
`

func TestScriptProbe_Outcomes(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadScript(writeScript(t, dir, "robots-disclosure.tengo", robotsScript), newClient(t), 0)
	require.NoError(t, err)
	assert.Equal(t, probe.Descriptor{ID: "robots-disclosure", DisplayName: "Robots Disclosure"}, p.Descriptor())

	res := run(t, p, serve(t, htmlPage(map[string]string{"Server": "nginx"}, "User-agent: *\nDisallow: /admin")))
	require.True(t, res.IsFail(), res.Summary)
	assert.Equal(t, "robots.txt reveals /admin", res.Summary)
	assert.Equal(t, "served by nginx", res.Detail)
	assert.Contains(t, res.Trace, "-> 200")

	res = run(t, p, serve(t, htmlPage(nil, "hello")))
	assert.True(t, res.IsPass())
}

func TestScriptProbe_DefaultDisplayName(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadScript(writeScript(t, dir, "server_banner.tengo", `outcome = "pass"`), newClient(t), 0)
	require.NoError(t, err)
	assert.Equal(t, "Server Banner", p.Descriptor().DisplayName)
}

func TestScriptProbe_RuntimeProblemsAreErrors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"no-outcome.tengo":  `summary = "forgot"`,
		"bad-outcome.tengo": `outcome = "maybe"`,
		"runaway.tengo":     `a := []; for { a = append(a, 1) }`,
	}
	target := serve(t, htmlPage(nil, "ok"))
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := LoadScript(writeScript(t, dir, name, src), newClient(t), 1000)
			require.NoError(t, err)
			res := run(t, p, target)
			assert.True(t, res.IsError(), res.Summary)
			assert.NotEmpty(t, res.Trace)
		})
	}
}

func TestLoadScriptDir(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b.tengo", `outcome = "pass"`)
	writeScript(t, dir, "a.tengo", `outcome = "fail"`)
	writeScript(t, dir, "notes.txt", `not a script`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.tengo"), 0o755))

	scripts, err := LoadScriptDir(dir, newClient(t), 0)
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, "a", scripts[0].Descriptor().ID)
	assert.Equal(t, "b", scripts[1].Descriptor().ID)
	assert.Equal(t, filepath.Join(dir, "a.tengo"), scripts[0].Path())
}

func TestLoadScriptDir_CompileErrorFails(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "ok.tengo", `outcome = "pass"`)
	writeScript(t, dir, "broken.tengo", `outcome = (`)

	_, err := LoadScriptDir(dir, newClient(t), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScript))
	assert.Contains(t, err.Error(), "broken.tengo")

	_, err = LoadScriptDir(filepath.Join(dir, "missing"), newClient(t), 0)
	assert.True(t, errors.Is(err, ErrScript))
}

func TestLoadScript_ForbiddenImport(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadScript(writeScript(t, dir, "os.tengo", `os := import("os")`), newClient(t), 0)
	assert.True(t, errors.Is(err, ErrScript))
}

func TestDefault_AppendsScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "extra.tengo", `outcome = "pass"`)
	reg, err := Default(newClient(t), Options{ScriptDir: dir, Logger: discard()})
	require.NoError(t, err)
	require.Equal(t, 14, reg.Len())
	assert.Equal(t, "extra", reg.Descriptors()[13].ID)

	writeScript(t, dir, "xss.tengo", `outcome = "pass"`)
	_, err = Default(newClient(t), Options{ScriptDir: dir, Logger: discard()})
	assert.True(t, errors.Is(err, probe.ErrDuplicateProbe))
}
