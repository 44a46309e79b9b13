package ui

import (
	"fmt"
	"strings"

	"ble-link.klederson.com/internal/bluetooth"
)

// RenderPeripheralList renders the scrollable discovery-set panel. The filter
// bar stays fixed at the top; only the peripheral entries scroll.
func RenderPeripheralList(peripherals []*bluetooth.Peripheral, width, height, cursorIndex int,
	targetID, status, filter string, filterEditing bool) string {

	innerW := width - 4
	if innerW < 10 {
		innerW = 10
	}

	title := StylePanelTitle.Render(fmt.Sprintf("PERIPHERALS [%d]", len(peripherals)))
	separator := StyleSeparator.Render(strings.Repeat("-", innerW))
	filterBar := renderFilterBar(filter, filterEditing)
	headerLines := []string{title, separator, filterBar}

	innerH := height - 2
	if innerH < len(headerLines)+1 {
		innerH = len(headerLines) + 1
	}
	listSpace := innerH - len(headerLines)

	var lines []string
	if len(peripherals) == 0 {
		lines = append(lines, "")
		lines = append(lines, StyleHelp.Render(" No peripherals..."))
		lines = append(lines, StyleHelp.Render(" Waiting for scan"))
	} else {
		linesPerEntry := 3 // 2 content + 1 blank
		maxVisible := listSpace / linesPerEntry
		if maxVisible < 1 {
			maxVisible = 1
		}

		viewStart := 0
		if cursorIndex >= maxVisible {
			viewStart = cursorIndex - maxVisible + 1
		}

		count := 0
		for i := viewStart; i < len(peripherals); i++ {
			entry := renderEntry(peripherals[i], innerW, i == cursorIndex,
				peripherals[i].ID == targetID, status)
			for _, l := range entry {
				if count >= listSpace {
					break
				}
				lines = append(lines, l)
				count++
			}
			if count >= listSpace {
				break
			}
		}
	}

	if len(lines) > listSpace {
		lines = lines[:listSpace]
	}
	for len(lines) < listSpace {
		lines = append(lines, "")
	}

	all := append(headerLines, lines...)
	content := strings.Join(all, "\n")
	rendered := StylePanelBorder.Width(width - 2).Height(innerH).Render(content)
	return clampLines(rendered, height)
}

func renderEntry(p *bluetooth.Peripheral, maxW int, isCursor, isTarget bool, status string) []string {
	name := p.DisplayName()
	nameMax := maxW - 14
	if nameMax < 4 {
		nameMax = 4
	}
	if len(name) > nameMax {
		name = name[:nameMax]
	}

	marker := " "
	badge := ""
	if isTarget {
		marker = ">"
		badge = " [" + status + "]"
	}

	rssiStr := fmt.Sprintf("%ddBm", int(p.RSSI))

	if isCursor {
		raw1 := truncRaw(fmt.Sprintf(">> %s %s%s", marker, name, badge), maxW)
		raw2 := truncRaw(fmt.Sprintf("      %s  %s", p.ID, rssiStr), maxW)
		return []string{StyleCursorRow.Render(raw1), StyleCursorRow.Render(raw2), ""}
	}

	styledBadge := ""
	if isTarget {
		styledBadge = " " + StateStyle(status).Render("["+status+"]")
	}
	line1 := fmt.Sprintf("   %s %s%s", marker, StylePeripheralName.Render(name), styledBadge)
	line2 := fmt.Sprintf("      %s  %s", StylePeripheralID.Render(p.ID), StylePeripheralRSSI.Render(rssiStr))
	return []string{line1, line2, ""}
}

func renderFilterBar(filter string, editing bool) string {
	if editing {
		return " " + StyleFilterActive.Render("/"+filter+"_")
	}
	if filter != "" {
		return " " + StyleFilterInactive.Render("/"+filter)
	}
	return " " + StyleFilterInactive.Render("[no filter]")
}

// truncRaw pads or truncates a raw string to exactly w characters.
func truncRaw(s string, w int) string {
	if len(s) > w {
		return s[:w]
	}
	if len(s) < w {
		return s + strings.Repeat(" ", w-len(s))
	}
	return s
}

// clampLines forces rendered output to exactly h lines.
// lipgloss Height() only sets a minimum; it won't truncate overflow.
func clampLines(rendered string, h int) string {
	lines := strings.Split(rendered, "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
