package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BgStyle paints text segments onto one background. A lipgloss style resets
// at every space it renders, so rows assembled from several styled segments
// would otherwise show holes in the row color.
type BgStyle struct {
	fill  lipgloss.Style
	space string
}

func NewBgStyle(bgColor string) BgStyle {
	fill := lipgloss.NewStyle().Background(lipgloss.Color(bgColor))
	return BgStyle{fill: fill, space: fill.Render(" ")}
}

// Render draws text in style on the background, spaces included.
func (b BgStyle) Render(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	painted := style.Inherit(b.fill)
	words := strings.Split(text, " ")
	for i, w := range words {
		if w != "" {
			words[i] = painted.Render(w)
		}
	}
	return strings.Join(words, b.space)
}

func (b BgStyle) Space() string {
	return b.space
}

// Spaces returns n filled columns.
func (b BgStyle) Spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return b.fill.Render(strings.Repeat(" ", n))
}

// Join separates parts with a filled separator.
func (b BgStyle) Join(parts []string, sep string) string {
	return strings.Join(parts, b.fill.Render(sep))
}
