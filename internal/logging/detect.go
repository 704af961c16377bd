package logging

import (
	"os"

	"golang.org/x/term"
)

// ColorEnabled reports whether output to f should carry ANSI styling.
// NO_COLOR and CI disable it, as does any non-terminal destination.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("CI") != "" {
		return false
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}
