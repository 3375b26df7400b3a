// Package tui provides the Bubble Tea library-inspect viewer for the
// weftend CLI. It is read-only and opt-in (`library inspect`); it
// renders exactly the same LibraryViewState payload the non-TUI
// `--static` path prints, never TUI-exclusive data.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(18)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle marks a SAME verdict or a clean (unblocked) target.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle marks a CHANGED verdict.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle marks a blocked target.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// BoxStyle for bordered containers.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// StateStyle returns a style for a library verdict/status string:
// compare.CompareVerdict values (SAME/CHANGED) and the synthetic
// "blocked"/"clean" target states used by the library inspect view.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "SAME", "clean":
		return SuccessStyle
	case "CHANGED":
		return WarningStyle
	case "blocked":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
