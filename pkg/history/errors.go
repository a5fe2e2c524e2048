package history

import "errors"

// Sentinel errors for history operations.
// Callers should use errors.Is() to check for these.
var (
	// ErrNotFound indicates the requested run id is not stored.
	ErrNotFound = errors.New("history: run not found")

	// ErrWrite indicates the persistence layer failed; previously stored
	// runs are unaffected.
	ErrWrite = errors.New("history: write failed")

	// ErrInvalidRun indicates a nil or unusable run was passed to Append.
	ErrInvalidRun = errors.New("history: invalid run")

	// ErrInvalidID indicates a string that is not a run id.
	ErrInvalidID = errors.New("history: invalid run id")

	// ErrCorrupt indicates a stored record could not be decoded.
	ErrCorrupt = errors.New("history: corrupt record")
)
