package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorInk       = lipgloss.Color("#E5E9F0")
	ColorDim       = lipgloss.Color("#7A8291")
	ColorAccent    = lipgloss.Color("#88C0D0")
	ColorAccentAlt = lipgloss.Color("#81A1C1")
	ColorSuccess   = lipgloss.Color("#A3BE8C")
	ColorWarn      = lipgloss.Color("#EBCB8B")
	ColorError     = lipgloss.Color("#BF616A")
)

// ClassColor picks the color a file class is rendered with in scan output.
func ClassColor(class string) lipgloss.Color {
	switch class {
	case "source":
		return ColorAccent
	case "canonical":
		return ColorSuccess
	case "stale":
		return ColorWarn
	default:
		return ColorDim
	}
}
