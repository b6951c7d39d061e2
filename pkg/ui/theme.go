package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// Theme holds the styles for each kind of cell on the canvas.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary lipgloss.AdaptiveColor
	Subtext lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor

	Link         lipgloss.Style
	LinkLeft     lipgloss.Style
	LinkRight    lipgloss.Style
	Node         lipgloss.Style
	Collapsed    lipgloss.Style
	Label        lipgloss.Style
	Selected     lipgloss.Style
	Tooltip      lipgloss.Style
	TooltipFrame lipgloss.Style // box drawing around the tooltip, in Border
	Header       lipgloss.Style
	Status       lipgloss.Style
	Error        lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary: lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Subtext: lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Border:  lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#6272A4"},
	}

	t.Link = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#6272A4"})
	t.LinkLeft = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"})
	t.LinkRight = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"})
	t.Node = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"})
	// lightsteelblue marks a node with hidden children, as in the SVG export.
	t.Collapsed = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#4682B4", Dark: "#B0C4DE"}).Bold(true)
	t.Label = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"})
	t.Selected = r.NewStyle().Foreground(t.Primary).Bold(true).Underline(true)
	t.Tooltip = r.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}).
		Background(ThemeBg("#44475A"))
	t.TooltipFrame = t.Tooltip.Foreground(t.Border)
	t.Header = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.Status = r.NewStyle().Foreground(t.Subtext)
	t.Error = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}).Bold(true)
	return t
}
