package internal

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// RuneLen returns the length of s in code points, not bytes
func RuneLen(s string) int {
	return len([]rune(s))
}

// SliceRunes returns s[from:to] counted in code points. Out-of-range bounds
// are clamped instead of panicking, so callers can slice blindly.
func SliceRunes(s string, from, to int) string {
	runes := []rune(s)
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if from >= to {
		return ""
	}
	return string(runes[from:to])
}

// TruncateRunes cuts s to at most n code points
func TruncateRunes(s string, n int) string {
	return SliceRunes(s, 0, n)
}

// Ellipsize truncates s to at most n code points, ending with "..." when
// anything was cut. Byte-index truncation would split multibyte characters,
// so all cutting here is rune-based.
func Ellipsize(s string, n int) string {
	if RuneLen(s) <= n {
		return s
	}
	if n <= 3 {
		return TruncateRunes(s, n)
	}
	return TruncateRunes(s, n-3) + "..."
}

// TruncateWidth cuts s to at most w terminal cells, accounting for
// double-width characters
func TruncateWidth(s string, w int) string {
	return runewidth.Truncate(s, w, "")
}

// EllipsizeWidth truncates s to at most w terminal cells with a trailing "…"
func EllipsizeWidth(s string, w int) string {
	return runewidth.Truncate(s, w, "…")
}

// PadWidth right-pads s with spaces to exactly w terminal cells
func PadWidth(s string, w int) string {
	return runewidth.FillRight(TruncateWidth(s, w), w)
}

// StringWidth returns the number of terminal cells s occupies
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// FirstLine returns s up to the first newline
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// CompactWhitespace collapses runs of whitespace into single spaces and
// trims the ends. Used when multi-line content has to fit a one-line cell.
func CompactWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
