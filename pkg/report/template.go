package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
)

var builtInTemplates = map[string]string{
	FormatText: `{{ .Title }}
{{ repeat (len .Title) "=" }}
Target:    {{ .Target }}
{{- if .RunID }}
Run:       {{ .RunID }}
{{- end }}
Started:   {{ dateInZone "2006-01-02 15:04:05 MST" .Started "UTC" }}
Duration:  {{ .Duration }}
Generated: {{ dateInZone "2006-01-02 15:04:05 MST" .Generated "UTC" }}

Summary
-------
Total: {{ .Summary.Total }}  Passed: {{ .Summary.Passed }}  Failed: {{ .Summary.Failed }}  Errored: {{ .Summary.Errored }}
Pass rate: {{ printf "%.1f" .Summary.PassRatePercent }}%
{{ range .Results }}
[{{ label .Outcome }}] {{ .DisplayName }} ({{ .ProbeID }})
    {{ .Summary }}
{{- if .Detail }}
{{ indent 4 .Detail }}
{{- end }}
{{ end -}}
`,

	FormatMarkdown: `# {{ .Title }}

| | |
|---|---|
| Target | {{ .Target | mdEscape }} |
{{- if .RunID }}
| Run | ` + "`{{ .RunID }}`" + ` |
{{- end }}
| Started | {{ dateInZone "2006-01-02 15:04:05 MST" .Started "UTC" }} |
| Duration | {{ .Duration }} |
| Generated by | {{ .Author }} |

## Summary

| Total | Passed | Failed | Errored | Pass rate |
|---:|---:|---:|---:|---:|
| {{ .Summary.Total }} | {{ .Summary.Passed }} | {{ .Summary.Failed }} | {{ .Summary.Errored }} | {{ printf "%.1f" .Summary.PassRatePercent }}% |

## Results
{{ range .Results }}
### {{ icon .Outcome }} {{ .DisplayName }}

**{{ label .Outcome }}**: {{ .Summary | mdEscape }}
{{ if .Detail }}
` + "```" + `
{{ .Detail }}
` + "```" + `
{{ end -}}
{{ end -}}
`,
}

// TemplateExporter renders a run with text/template and the sprig
// function library.
type TemplateExporter struct {
	format string
	opts   Options
	tmpl   *template.Template
}

type templateData struct {
	Title     string
	Author    string
	RunID     string
	Target    string
	Started   time.Time
	Generated time.Time
	Duration  string
	Summary   finding.Summary
	Results   []probe.Result
}

func newTemplateExporter(format string, opts Options) (*TemplateExporter, error) {
	funcs := sprig.TxtFuncMap()
	funcs["label"] = outcomeLabel
	funcs["icon"] = outcomeIcon
	funcs["mdEscape"] = mdEscape

	tmpl, err := template.New(format).Funcs(funcs).Parse(builtInTemplates[format])
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", format, err)
	}
	return &TemplateExporter{format: format, opts: opts, tmpl: tmpl}, nil
}

func (e *TemplateExporter) Extension() string {
	if e.format == FormatMarkdown {
		return "md"
	}
	return "txt"
}

func (e *TemplateExporter) Export(w io.Writer, run *finding.Run) error {
	if run == nil {
		return ErrNoRun
	}
	data := templateData{
		Title:     e.opts.Title,
		Author:    e.opts.Author,
		RunID:     e.opts.RunID,
		Target:    run.Target,
		Started:   run.StartedAt.UTC(),
		Generated: e.opts.Now().UTC(),
		Duration:  formatDuration(run.Duration()),
		Summary:   run.Summary,
		Results:   run.Results,
	}
	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s report: %w", e.format, err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func outcomeIcon(o probe.Outcome) string {
	switch o {
	case probe.OutcomePass:
		return "✅"
	case probe.OutcomeFail:
		return "❌"
	default:
		return "⚠️"
	}
}

var mdReplacer = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;")

func mdEscape(s string) string { return mdReplacer.Replace(s) }
