// Package report renders a completed run as JSON, plain text, Markdown or
// PDF.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
)

var (
	// ErrUnknownFormat indicates a format name no exporter handles.
	ErrUnknownFormat = errors.New("report: unknown format")

	// ErrNoRun indicates Export was called with a nil run.
	ErrNoRun = errors.New("report: no run to export")
)

// Format names.
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
)

// Exporter writes one run to w.
type Exporter interface {
	Export(w io.Writer, run *finding.Run) error
	// Extension is the conventional file extension, without the dot.
	Extension() string
}

// Options are shared by every exporter.
type Options struct {
	Title  string
	Author string
	// RunID labels the run when it came from history.
	RunID string
	// Now stamps the generation time (default time.Now).
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Security Assessment Report"
	}
	if o.Author == "" {
		o.Author = defaults.ToolName + " " + defaults.Version
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

var formats = map[string]func(Options) (Exporter, error){
	FormatJSON:     func(o Options) (Exporter, error) { return &JSONExporter{opts: o}, nil },
	FormatText:     func(o Options) (Exporter, error) { return newTemplateExporter(FormatText, o) },
	FormatMarkdown: func(o Options) (Exporter, error) { return newTemplateExporter(FormatMarkdown, o) },
	FormatPDF:      func(o Options) (Exporter, error) { return &PDFExporter{opts: o}, nil },
}

// New returns the exporter for format. Names are case-insensitive; "md"
// is accepted for markdown.
func New(format string, opts Options) (Exporter, error) {
	name := strings.ToLower(strings.TrimSpace(format))
	if name == "md" {
		name = FormatMarkdown
	}
	build, ok := formats[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
	return build(opts.withDefaults())
}

// Formats lists the supported format names.
func Formats() []string {
	out := make([]string, 0, len(formats))
	for name := range formats {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// outcomeLabel is the upper-case status word used by every exporter.
func outcomeLabel(o probe.Outcome) string {
	switch o {
	case probe.OutcomePass:
		return "PASS"
	case probe.OutcomeFail:
		return "FAIL"
	default:
		return "ERROR"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
