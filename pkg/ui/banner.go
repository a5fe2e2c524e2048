package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/casatester/casatester/pkg/defaults"
)

// Version information, overridable at build time via ldflags:
// go build -ldflags "-X github.com/casatester/casatester/pkg/ui.Commit=abc123"
var (
	Version   = defaults.Version
	BuildDate = "unknown"
	Commit    = "dev"
)

const bannerArt = `
                      __            __           
  _________ __________/ /____  _____/ /____  _____
 / ___/ __ ` + "`" + `/ ___/ __ ` + "`" + `/ __/ _ \/ ___/ __/ _ \/ ___/
/ /__/ /_/ (__  ) /_/ / /_/  __(__  ) /_/  __/ /    
\___/\__,_/____/\__,_/\__/\___/____/\__/\___/_/     
`

const bannerSeparator = "__________________________________________________"

// PrintBanner writes the application banner with version info.
func PrintBanner(w io.Writer) {
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                       v%s\n\n", VersionStyle.Render(Version))
}

// VersionString is the one-line form printed by the version command.
func VersionString() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", defaults.ToolName, Version, Commit, BuildDate)
}

// PrintSection writes a section header followed by a divider.
func PrintSection(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("> "+title))
	fmt.Fprintln(w, MutedStyle.Render(bannerSeparator))
}

// printField writes an aligned "Label      value" line.
func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(label), ValueStyle.Render(value))
}
