package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(28)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	ErrorStyle = lipgloss.NewStyle().Foreground(errorColor)
	MutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
	HelpStyle  = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)
)
