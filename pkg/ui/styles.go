package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/casatester/casatester/pkg/probe"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4")
	Secondary = lipgloss.Color("#00D4AA")

	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Danger  = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
	Light   = lipgloss.Color("#FAFAFA")
)

// Pre-configured styles
var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Light).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(11)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Light)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	PassStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	HeaderCellStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Bold(true)
)

// OutcomeStyle returns the style for an outcome: pass green, fail red,
// error amber.
func OutcomeStyle(o probe.Outcome) lipgloss.Style {
	switch o {
	case probe.OutcomePass:
		return PassStyle
	case probe.OutcomeFail:
		return FailStyle
	default:
		return ErrorStyle
	}
}

// OutcomeIcon returns ✓, ✗ or ! (ASCII fallbacks on legacy terminals).
func OutcomeIcon(o probe.Outcome) string {
	switch o {
	case probe.OutcomePass:
		return Icon("✓", "+")
	case probe.OutcomeFail:
		return Icon("✗", "x")
	default:
		return "!"
	}
}

// PassRateStyle colours a pass rate by band.
func PassRateStyle(rate float64) lipgloss.Style {
	switch {
	case rate >= 90:
		return PassStyle
	case rate >= 60:
		return ErrorStyle
	default:
		return FailStyle
	}
}
