package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accentCyan    = lipgloss.Color("#00D7FF")
	accentMagenta = lipgloss.Color("#D75FFF")
	accentGreen   = lipgloss.Color("#5FD75F")
	accentYellow  = lipgloss.Color("#FFD75F")
	accentOrange  = lipgloss.Color("#FF8700")
	accentRed     = lipgloss.Color("#FF5F5F")
	darkBg        = lipgloss.Color("#121212")
	dimWhite      = lipgloss.Color("#B0B0B0")

	logoStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentMagenta).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(accentCyan).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(accentYellow)

	successStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(accentRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentOrange).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	activeItemStyle = lipgloss.NewStyle().
			Foreground(accentGreen)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 0, 0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(accentMagenta).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	speedStyle = lipgloss.NewStyle().
			Foreground(accentCyan)
)
