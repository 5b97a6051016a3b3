package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	attachmentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Italic(true)

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD23F"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))
)
