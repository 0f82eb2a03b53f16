// Package report renders mapping results for the terminal.
package report

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#8BC34A")
	muted   = lipgloss.Color("#6b7785")
	border  = lipgloss.Color("#2a3850")
	warning = lipgloss.Color("#FFC107")
)

// Styles used by the table renderers.
type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Number lipgloss.Style
	Muted  lipgloss.Style
	Warn   lipgloss.Style
	Border lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		Header: lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Number: lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right),
		Muted:  lipgloss.NewStyle().Foreground(muted),
		Warn:   lipgloss.NewStyle().Foreground(warning),
		Border: lipgloss.NewStyle().Foreground(border),
	}
}

// PlainStyles returns styles without colour, for piping and tests.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:  plain.Bold(true),
		Header: plain.Padding(0, 1),
		Cell:   plain.Padding(0, 1),
		Number: plain.Padding(0, 1).Align(lipgloss.Right),
		Muted:  plain,
		Warn:   plain,
		Border: plain,
	}
}
