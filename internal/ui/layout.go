package ui

import "github.com/charmbracelet/lipgloss"

// ComposeLayout joins the peripheral list and payload panel horizontally,
// with menu bar on top and status bar on bottom.
func ComposeLayout(menuBar, peripheralList, payloadPanel, statusBar string) string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top, peripheralList, payloadPanel)
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, middle, statusBar)
}
