package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// RenderStatusBar renders the bottom status bar with the connection status
// string and counters.
func RenderStatusBar(width int, status string, peripherals, payloads int, filter, lastPayload string) string {
	state := StateStyle(status).Render("[" + status + "]")

	info := fmt.Sprintf(" Peripherals: %d  Payloads: %d", peripherals, payloads)
	if lastPayload != "" {
		info += fmt.Sprintf("  Last: %q", lastPayload)
	}
	if filter != "" {
		info += fmt.Sprintf("  Filter: %q", filter)
	}

	content := state + StyleStatusBar.Foreground(ColorGreen).Render(info)

	gap := width - lipgloss.Width(content)
	if gap < 0 {
		gap = 0
	}
	padding := ""
	for i := 0; i < gap; i++ {
		padding += " "
	}

	return StyleStatusBar.Width(width).Render(content + padding)
}
