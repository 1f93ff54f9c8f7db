package api

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	barFilledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	barEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3C4048"))
	labelStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8F98"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5A50A"))
)

// ProgressBar renders pct (0-100) as a bar of width cells followed by the
// percentage.
func ProgressBar(pct float64, width int) string {
	if width < 1 {
		width = 1
	}
	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * float64(width))
	bar := barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
	return lipgloss.JoinHorizontal(lipgloss.Top, bar, " ", fmt.Sprintf("%6.2f%%", pct))
}

// Fields renders label/value pairs as aligned lines. An odd trailing label
// is ignored.
func Fields(pairs ...string) string {
	width := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		width = max(width, lipgloss.Width(pairs[i]))
	}
	label := labelStyle.Width(width + 2)
	lines := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label.Render(pairs[i]+":"), pairs[i+1]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Muted renders secondary text.
func Muted(s string) string { return mutedStyle.Render(s) }

// Warn renders text that needs attention.
func Warn(s string) string { return warnStyle.Render(s) }
