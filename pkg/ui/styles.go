package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muralikrish9/cyberroomba/pkg/finding"
)

// Color palette matching common security tooling conventions.
var (
	// Severity colors
	Critical = lipgloss.Color("#FF0000")
	High     = lipgloss.Color("#FF6B6B")
	Medium   = lipgloss.Color("#FFD93D")
	Low      = lipgloss.Color("#6BCB77")
	Info     = lipgloss.Color("#4D96FF")

	// Status colors
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA"))

	HostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D4AA"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error)
)

// SeverityColor returns the display color for a severity tier.
func SeverityColor(s finding.Severity) lipgloss.Color {
	switch s {
	case finding.Critical:
		return Critical
	case finding.High:
		return High
	case finding.Medium:
		return Medium
	case finding.Low:
		return Low
	default:
		return Info
	}
}

// SeverityStyle returns a bold style in the severity's color.
func SeverityStyle(s finding.Severity) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(SeverityColor(s))
}
