package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/casatester/casatester/pkg/probe"
)

// Progress reports probe completion as a run proceeds. On a terminal it
// redraws a single bar in place; elsewhere it streams one line per result.
type Progress struct {
	w           io.Writer
	interactive bool
	width       int

	mu   sync.Mutex
	done bool
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, interactive: IsTerminal(w) && !IsNoColor(), width: 30}
}

// Update matches runner.Coordinator.OnProgress.
func (p *Progress) Update(completed, total int64, res probe.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	icon := OutcomeStyle(res.Outcome).Render(OutcomeIcon(res.Outcome))
	if !p.interactive {
		fmt.Fprintf(p.w, "[%d/%d] %s %s\n", completed, total, icon, res.ProbeID)
		return
	}
	fmt.Fprintf(p.w, "\r\033[K %s %s %d/%d %s", p.bar(completed, total),
		icon, completed, total, MutedStyle.Render(res.ProbeID))
	if completed >= total {
		fmt.Fprintln(p.w)
		p.done = true
	}
}

// Stop ends the in-place line if the run was cut short.
func (p *Progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interactive && !p.done {
		fmt.Fprintln(p.w)
	}
	p.done = true
}

func (p *Progress) bar(completed, total int64) string {
	filled := 0
	if total > 0 {
		filled = int(completed * int64(p.width) / total)
	}
	return PassStyle.Render(strings.Repeat(Icon("█", "#"), filled)) +
		MutedStyle.Render(strings.Repeat(Icon("░", "-"), p.width-filled))
}
