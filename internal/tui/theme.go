package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorPrimary = lipgloss.Color("#0EA5E9") // Sky blue
	colorSuccess = lipgloss.Color("#10B981") // Green (installed)
	colorDanger  = lipgloss.Color("#EF4444") // Red (errors, corrupted)
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorWarning = lipgloss.Color("#F59E0B") // Amber (update available)
)

// Shared styles.
var (
	logoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 1)

	headerPathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F3F4F6")).
			Padding(0, 1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorMuted)

	skillNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D1D5DB"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	installedBadge = lipgloss.NewStyle().
			Foreground(colorSuccess)

	corruptedBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDanger)

	staleBadge = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)
)
