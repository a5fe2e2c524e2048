package report

import (
	"io"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/finding"
)

// JSONExporter writes the run with report metadata as indented JSON.
type JSONExporter struct {
	opts Options
}

type jsonReport struct {
	Tool        string       `json:"tool"`
	Version     string       `json:"version"`
	GeneratedAt time.Time    `json:"generated_at"`
	ID          string       `json:"id,omitempty"`
	Run         *finding.Run `json:",inline"`
}

func (e *JSONExporter) Extension() string { return "json" }

func (e *JSONExporter) Export(w io.Writer, run *finding.Run) error {
	if run == nil {
		return ErrNoRun
	}
	doc := jsonReport{
		Tool:        defaults.ToolName,
		Version:     defaults.Version,
		GeneratedAt: finding.Timestamp(e.opts.Now()),
		ID:          e.opts.RunID,
		Run:         run,
	}
	out, err := json.Marshal(doc, jsontext.WithIndent("  "), json.Deterministic(true))
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}
