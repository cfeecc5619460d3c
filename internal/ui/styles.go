package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for the monitor UI
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - settled, healthy
	ErrorColor   = lipgloss.Color("#FF5555") // Red - degraded, faults
	WarningColor = lipgloss.Color("#FFA500") // Orange - moving, env degraded
	MutedColor   = lipgloss.Color("#626262") // Gray - labels, secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - values
)

// Layout constants
const (
	MinTerminalWidth = 60 // Minimum supported terminal width
	MaxContentWidth  = 90 // Maximum content width before capping
)

// Shared styles for the monitor UI
var (
	// TitleStyle is for the monitor title line
	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true).
			PaddingLeft(2)

	// SubtitleStyle is for the device/firmware line under the title
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2)

	// LabelStyle is for field labels (e.g., "Position:")
	LabelStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(14).
			PaddingLeft(2)

	// ValueStyle is for field values
	ValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// MovingStyle marks active motion
	MovingStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// SettledStyle marks settled motion
	SettledStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// DegradedStyle marks stale or failed readings
	DegradedStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// HelpStyle is for the key hint footer
	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2)
)

// Status markers
const (
	MovingMarker   = "●"
	SettledMarker  = "✓"
	DegradedMarker = "✗"
)

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// BorderStyle returns the outer border for the monitor panel
func BorderStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2) // Account for border characters
}
