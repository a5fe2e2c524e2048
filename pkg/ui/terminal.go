package ui

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	stateMu     sync.RWMutex
	noColorMode bool
	unicodeMode = detectUnicode
)

// fder is implemented by *os.File.
type fder interface{ Fd() uintptr }

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(fder)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ConfigureColor decides once per process whether output to w is styled.
// Color is off when noColor is set, NO_COLOR is present in the
// environment, TERM is "dumb", or w is not a terminal.
func ConfigureColor(w io.Writer, noColor bool) {
	_, envNoColor := os.LookupEnv("NO_COLOR")
	SetNoColor(noColor || envNoColor || os.Getenv("TERM") == "dumb" || !IsTerminal(w))
}

// SetNoColor disables or re-enables styled output.
func SetNoColor(noColor bool) {
	stateMu.Lock()
	defer stateMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}
}

// IsNoColor returns whether color is disabled.
func IsNoColor() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return noColorMode
}

var (
	unicodeOnce sync.Once
	unicodeOK   bool
)

// detectUnicode reports whether stdout can render glyphs like ✓ and ✗.
// Legacy Windows consoles cannot; Windows Terminal sets WT_SESSION.
func detectUnicode() bool {
	unicodeOnce.Do(func() {
		if os.Getenv("TERM") == "dumb" {
			return
		}
		if runtime.GOOS == "windows" {
			unicodeOK = os.Getenv("WT_SESSION") != "" || !term.IsTerminal(int(os.Stdout.Fd()))
			return
		}
		unicodeOK = true
	})
	return unicodeOK
}

// Icon returns unicode when the terminal supports it, ascii otherwise.
func Icon(unicode, ascii string) string {
	if unicodeMode() {
		return unicode
	}
	return ascii
}

// SanitizeString strips control characters so remote content cannot inject
// terminal escapes. On legacy terminals it also drops glyphs outside Latin
// Extended-B.
func SanitizeString(s string) string {
	legacy := !unicodeMode()
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '\t':
			b.WriteRune(r)
		case r < 0x20, r == 0x7f, r >= 0x80 && r < 0xa0:
		case r == utf8.RuneError && size == 1:
		case legacy && r > 0x024F:
		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}
