package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Palette
	accentOrange = lipgloss.Color("#FF8200")
	accentBlue   = lipgloss.Color("#1DA1F2")
	okGreen      = lipgloss.Color("#39FF14")
	alertRed     = lipgloss.Color("#FF3B30")
	highlight    = lipgloss.Color("#FFD60A")
	darkBg       = lipgloss.Color("#0A0E27")
	darkBg2      = lipgloss.Color("#1A1E37")
	dimWhite     = lipgloss.Color("#B0B0B0")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	logoStyle = lipgloss.NewStyle().
			Foreground(accentOrange).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentOrange).
			Background(darkBg2).
			Padding(1, 2)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(accentBlue).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(highlight)

	successStyle = lipgloss.NewStyle().
			Foreground(okGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentOrange).
			Bold(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)

	titleStyle = lipgloss.NewStyle().
			Background(accentOrange).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)
)

// phaseStyle picks the status line style for a phase
func phaseStyle(p Phase) lipgloss.Style {
	switch p {
	case PhaseDone:
		return successStyle
	case PhaseFailed:
		return errorStyle
	case PhaseCancelling:
		return warningStyle
	default:
		return statsValueStyle
	}
}
