package tui

import "github.com/charmbracelet/lipgloss"

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")).Bold(true)
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	logStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true).MarginTop(1)

	statusRunning = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	statusStopped = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00"))
	statusFailed  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))
)
