package ui

import (
	"fmt"

	"resource-downloader/planner"
	"resource-downloader/progress"

	"github.com/charmbracelet/lipgloss"
)

const (
	green  = 0x4caf50
	yellow = 0xffc107
	red    = 0xf44336
	blue   = 0x2196f3
	grey   = 0x9e9e9e
)

var (
	Bold  = lipgloss.NewStyle().Bold(true)
	Faint = lipgloss.NewStyle().Faint(true)
)

// Colorize applies the given color to the text using lipgloss.
// color is an RGB integer, the way Modrinth encodes project colors.
func Colorize(text string, color int) string {
	hexColor := fmt.Sprintf("#%06x", color)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor))
	return style.Render(text)
}

// Action renders a plan action, padded to width.
func Action(a planner.Action, width int) string {
	text := fmt.Sprintf("%-*s", width, a)
	switch a {
	case planner.Install:
		return Colorize(text, blue)
	case planner.Update:
		return Colorize(text, green)
	case planner.Conflict:
		return Colorize(text, yellow)
	case planner.Failed:
		return Colorize(text, red)
	default:
		return Colorize(text, grey)
	}
}

// Phase renders a progress phase.
func Phase(p progress.Phase) string {
	switch p {
	case progress.Installed:
		return Colorize(p.String(), green)
	case progress.Failed:
		return Colorize(p.String(), red)
	case progress.Resolving:
		return Colorize(p.String(), grey)
	default:
		return Colorize(p.String(), blue)
	}
}

// Check is the mark for a finished view.
func Check() string {
	return Colorize("✓", green)
}
