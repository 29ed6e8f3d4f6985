// Package render draws the end-of-build console summary.
//
// The summary is printed once, after supervision ends; the build's own
// output has already been echoed verbatim above it. Rendering uses the same
// data payloads as the notification messages, nothing summary-exclusive.
package render

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for summary components.
var (
	// TitleStyle for the summary header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	// WarningStyle for warning states.
	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningColor)

	// ErrorStyle for error states.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	// BoxStyle for the bordered summary container.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 2)

	// LinkStyle for share links.
	LinkStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Underline(true)
)

// StateStyle returns a style for an outcome state string.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "succeeded":
		return SuccessStyle
	case "interrupted":
		return WarningStyle
	case "failed":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
