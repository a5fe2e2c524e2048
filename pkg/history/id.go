package history

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RunID identifies a stored run: the UTC completion time at nanosecond
// precision plus a counter that separates runs completing within the same
// clock tick. Lexical order of ids equals chronological order.
type RunID string

const idLayout = "20060102T150405.000000000Z"

var idPattern = regexp.MustCompile(`^\d{8}T\d{6}\.\d{9}Z-\d{4,}$`)

// ParseID validates s as a RunID.
func ParseID(s string) (RunID, error) {
	s = strings.TrimSpace(s)
	if !idPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return RunID(s), nil
}

// Valid reports whether id has the RunID shape.
func (id RunID) Valid() bool { return idPattern.MatchString(string(id)) }

// Time returns the completion timestamp encoded in id.
func (id RunID) Time() (time.Time, error) {
	ts, _, ok := strings.Cut(string(id), "-")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	t, err := time.Parse(idLayout, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return t, nil
}

// Successor returns the id with the same timestamp and the next counter.
func (id RunID) Successor() RunID {
	ts, seq, ok := strings.Cut(string(id), "-")
	if !ok {
		return id
	}
	n, err := strconv.Atoi(seq)
	if err != nil {
		return id
	}
	return formatID(ts, n+1)
}

func (id RunID) String() string { return string(id) }

func formatID(ts string, seq int) RunID {
	return RunID(fmt.Sprintf("%s-%04d", ts, seq))
}

// IDGenerator issues RunIDs. It is safe for concurrent use.
type IDGenerator struct {
	mu   sync.Mutex
	last string
	seq  int
}

// Next returns the id for a run completing at t. Repeated timestamps get
// increasing counters.
func (g *IDGenerator) Next(t time.Time) RunID {
	ts := t.UTC().Format(idLayout)

	g.mu.Lock()
	defer g.mu.Unlock()
	if ts == g.last {
		g.seq++
	} else {
		g.last = ts
		g.seq = 0
	}
	return formatID(ts, g.seq)
}

// CheckID returns nil for a well-formed id. Otherwise it returns an error
// wrapping both ErrNotFound and ErrInvalidID, since no run can be stored
// under a malformed id.
func CheckID(id RunID) error {
	if id.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %w: %q", ErrNotFound, ErrInvalidID, string(id))
}
