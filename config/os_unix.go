//go:build !windows

package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// CleanFileName strips path separators and leading dots so derived document
// names are always usable as plain file names.
func CleanFileName(in string) string {
	var b strings.Builder
	for _, sym := range in {
		if sym == os.PathSeparator || sym == os.PathListSeparator {
			continue
		}
		b.WriteRune(sym)
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) == 0 {
		return "unnamed"
	}
	return out
}

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
