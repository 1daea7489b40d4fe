// Package debug renders document trees in a compact indented text form for
// troubleshooting reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Page transcriptions carry long runs of text, full values would make tree
// dumps unreadable.
const maxTextLen = 120

type TreeWriter struct {
	buf strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

func (tw *TreeWriter) String() string {
	return tw.buf.String()
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.buf.WriteString("  ")
	}
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(&tw.buf, format, args...)
	tw.buf.WriteByte('\n')
}

// TextBlock writes a labeled quoted value, shortening it when it would blow up
// the dump.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.buf.WriteString(label)
	tw.buf.WriteString(": ")
	tw.buf.WriteString(encodeText(value))
	tw.buf.WriteByte('\n')
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	if utf8.RuneCountInString(raw) > maxTextLen {
		runes := []rune(raw)
		raw = string(runes[:maxTextLen]) + "..."
	}
	return strconv.Quote(raw)
}
