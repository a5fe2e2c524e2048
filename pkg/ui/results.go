package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/probe"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// PrintRun renders every result of run followed by the summary block.
func PrintRun(w io.Writer, run *finding.Run) {
	PrintSection(w, "Assessment of "+run.Target)
	for _, r := range run.Results {
		PrintResult(w, r)
	}
	PrintSummary(w, run)
}

// PrintResult writes one result: icon and name on the first line, then the
// summary and the detail text indented beneath it.
func PrintResult(w io.Writer, r probe.Result) {
	style := OutcomeStyle(r.Outcome)
	name := r.DisplayName
	if name == "" {
		name = r.ProbeID
	}
	fmt.Fprintf(w, "\n %s %s %s\n",
		style.Render(OutcomeIcon(r.Outcome)),
		SectionStyle.Render(SanitizeString(name)),
		MutedStyle.Render(fmt.Sprintf("[%s, %dms]", r.ProbeID, r.DurationMs)))
	if r.Summary != "" {
		fmt.Fprintf(w, "   %s\n", style.Render(SanitizeString(r.Summary)))
	}
	for _, line := range strings.Split(strings.TrimRight(r.Detail, "\n"), "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(w, "     %s\n", SanitizeString(line))
	}
}

// PrintSummary writes the totals of run.
func PrintSummary(w io.Writer, run *finding.Run) {
	s := run.Summary
	PrintSection(w, "Summary")
	printField(w, "Target", URLStyle.Render(run.Target))
	printField(w, "Duration", run.Duration().Round(time.Millisecond).String())
	printField(w, "Total", fmt.Sprint(s.Total))
	printField(w, "Passed", PassStyle.Render(fmt.Sprint(s.Passed)))
	printField(w, "Failed", FailStyle.Render(fmt.Sprint(s.Failed)))
	printField(w, "Errored", ErrorStyle.Render(fmt.Sprint(s.Errored)))
	printField(w, "Pass rate", PassRateStyle(s.PassRatePercent).Render(fmt.Sprintf("%.1f%%", s.PassRatePercent)))
	fmt.Fprintln(w)
}

// PrintHistory writes saved runs as a table, newest first as given.
func PrintHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No saved assessments."))
		return
	}
	header := fmt.Sprintf("%-31s %-23s %5s %5s %5s %5s %8s  %s",
		"ID", "Started", "Total", "Pass", "Fail", "Err", "Rate", "Target")
	fmt.Fprintln(w, HeaderCellStyle.Render(header))
	for _, e := range entries {
		s := e.Summary
		rate := fmt.Sprintf("%7.1f%%", s.PassRatePercent)
		fmt.Fprintf(w, "%-31s %-23s %5d %5d %5d %5d %s  %s\n",
			e.ID, e.StartedAt.UTC().Format(timeLayout),
			s.Total, s.Passed, s.Failed, s.Errored,
			PassRateStyle(s.PassRatePercent).Render(rate),
			SanitizeString(e.Target))
	}
}

// PrintComparison writes how a run differs from an earlier one.
func PrintComparison(w io.Writer, c history.Comparison) {
	PrintSection(w, "Compared with previous run")
	delta := fmt.Sprintf("%+.1f pts", c.PassRateDelta)
	switch {
	case c.Improved:
		delta = PassStyle.Render(delta)
	case c.PassRateDelta < 0 || c.FailedDelta > 0:
		delta = FailStyle.Render(delta)
	}
	printField(w, "Pass rate", delta)
	printField(w, "Failures", fmt.Sprintf("%+d", c.FailedDelta))
	printField(w, "Errors", fmt.Sprintf("%+d", c.ErroredDelta))
	if len(c.Changes) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("  No outcome changes."))
		return
	}
	for _, ch := range c.Changes {
		name := ch.DisplayName
		if name == "" {
			name = ch.ProbeID
		}
		fmt.Fprintf(w, "  %s: %s %s %s\n", SanitizeString(name),
			changeLabel(ch.From), Icon("→", "->"), changeLabel(ch.To))
	}
}

func changeLabel(o probe.Outcome) string {
	if o == "" {
		return MutedStyle.Render("absent")
	}
	return OutcomeStyle(o).Render(o.Label())
}
