// Package theme provides the CRT-style palette and layout styles for the
// terminal monitor. All colors are adaptive so the monitor stays readable on
// light terminals.
//
// NO_COLOR (https://no-color.org/) is respected automatically by lipgloss via
// its color profile detection.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// --- Adaptive Color Palette ---

var (
	ColorPhosphor = lipgloss.AdaptiveColor{Light: "#1b5e20", Dark: "#33ff66"}
	ColorGlow     = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#b9f6ca"}
	ColorAmber    = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffb000"}
	ColorError    = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ff5555"}
	ColorInfo     = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorMuted    = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#5f8f6a"}

	ColorBorder       = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#1f4d2b"}
	ColorBorderActive = lipgloss.AdaptiveColor{Light: "#1b5e20", Dark: "#33ff66"}

	ColorBgAlt = lipgloss.AdaptiveColor{Light: "#f5f5f5", Dark: "#0d1f12"}
	ColorFgDim = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#3c6b47"}
)

// --- Base styles ---

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	Text = lipgloss.NewStyle().Foreground(ColorPhosphor)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorPhosphor).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorAmber).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// --- Layout styles ---

var (
	Title = lipgloss.NewStyle().
		Foreground(ColorGlow).
		Bold(true).
		Padding(0, 1)

	PromptBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorderActive).
			Padding(0, 1)

	StatusBar = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Background(ColorBgAlt).
			Padding(0, 1)

	StatusKey = lipgloss.NewStyle().
			Foreground(ColorPhosphor).
			Bold(true)
)

// MaxContentWidth caps the width of the stream text.
const MaxContentWidth = 120

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
