package ui

import (
	"github.com/mattn/go-runewidth"
)

// truncateLabel truncates a string to max visual width (cells), adding an
// ellipsis if needed. Uses go-runewidth to handle wide characters correctly.
func truncateLabel(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		// Even suffix is too wide, truncate suffix
		return runewidth.Truncate(suffix, maxWidth, "")
	}

	targetWidth := maxWidth - suffixWidth
	return runewidth.Truncate(s, targetWidth, "") + suffix
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
