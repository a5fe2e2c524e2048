package history

import (
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
)

// SchemaVersion is written into every record.
const SchemaVersion = 1

// record is the persisted layout shared by every backend.
type record struct {
	SchemaVersion int             `json:"schema_version"`
	ID            RunID           `json:"id"`
	Target        string          `json:"target"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   time.Time       `json:"completed_at"`
	Results       []probe.Result  `json:"results"`
	Summary       finding.Summary `json:"summary"`
}

// EncodeRecord serializes run under id.
func EncodeRecord(id RunID, run *finding.Run) ([]byte, error) {
	if run == nil {
		return nil, ErrInvalidRun
	}
	rec := record{
		SchemaVersion: SchemaVersion,
		ID:            id,
		Target:        run.Target,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
		Results:       run.Results,
		Summary:       run.Summary,
	}
	return json.Marshal(rec, jsontext.WithIndent("  "), json.Deterministic(true))
}

// DecodeRecord parses a record produced by EncodeRecord.
func DecodeRecord(data []byte) (RunID, *finding.Run, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.SchemaVersion > SchemaVersion {
		return "", nil, fmt.Errorf("%w: schema version %d is newer than supported %d", ErrCorrupt, rec.SchemaVersion, SchemaVersion)
	}
	if !rec.ID.Valid() {
		return "", nil, fmt.Errorf("%w: missing or malformed id %q", ErrCorrupt, rec.ID)
	}
	return rec.ID, &finding.Run{
		Target:      rec.Target,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Results:     rec.Results,
		Summary:     rec.Summary,
	}, nil
}
