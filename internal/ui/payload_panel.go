package ui

import (
	"fmt"
	"strings"

	"ble-link.klederson.com/internal/history"
)

// RenderPayloadPanel renders the received-data log, newest at the bottom.
func RenderPayloadPanel(entries []history.Entry, total, width, height int) string {
	innerW := width - 4
	if innerW < 10 {
		innerW = 10
	}

	title := StylePanelTitle.Render(fmt.Sprintf("RECEIVED DATA [%d]", total))
	separator := StyleSeparator.Render(strings.Repeat("-", innerW))
	headerLines := []string{title, separator}

	innerH := height - 2
	if innerH < len(headerLines)+1 {
		innerH = len(headerLines) + 1
	}
	bodySpace := innerH - len(headerLines)

	var lines []string
	if len(entries) == 0 {
		lines = append(lines, "")
		lines = append(lines, StyleHelp.Render(" No payloads yet"))
		lines = append(lines, StyleHelp.Render(" Connect to a peripheral"))
	} else {
		// Keep the newest entries visible
		start := 0
		if len(entries) > bodySpace {
			start = len(entries) - bodySpace
		}
		for _, e := range entries[start:] {
			ts := StylePayloadTime.Render(e.ReceivedAt.Format("15:04:05"))
			body := e.Body
			bodyMax := innerW - 10
			if bodyMax < 4 {
				bodyMax = 4
			}
			if len(body) > bodyMax {
				body = body[:bodyMax]
			}
			lines = append(lines, fmt.Sprintf(" %s %s", ts, StylePayloadBody.Render(body)))
		}
	}

	if len(lines) > bodySpace {
		lines = lines[:bodySpace]
	}
	for len(lines) < bodySpace {
		lines = append(lines, "")
	}

	all := append(headerLines, lines...)
	content := strings.Join(all, "\n")
	rendered := StylePanelBorder.Width(width - 2).Height(innerH).Render(content)
	return clampLines(rendered, height)
}
