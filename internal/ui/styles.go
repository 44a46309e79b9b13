package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Matrix color palette
var (
	ColorMatrixGreen = lipgloss.Color("#00FF41")
	ColorGreen       = lipgloss.Color("#00CC33")
	ColorMidGreen    = lipgloss.Color("#008F11")
	ColorDimGreen    = lipgloss.Color("#004A0A")
	ColorPeripheral  = lipgloss.Color("#00FFAA")
	ColorBorderNorm  = lipgloss.Color("#00AA22")
	ColorError       = lipgloss.Color("#FF3300")
	ColorWarning     = lipgloss.Color("#FFAA00")
)

// Pre-built styles
var (
	StyleMenuBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StyleMenuKey = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true)

	StyleMenuLabel = lipgloss.NewStyle().
			Foreground(ColorGreen)

	StyleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#002200")).
			Foreground(ColorGreen).
			Padding(0, 1)

	StyleStatusScanning = lipgloss.NewStyle().
				Foreground(ColorMatrixGreen).
				Bold(true)

	StyleStatusPaused = lipgloss.NewStyle().
				Foreground(ColorWarning).
				Bold(true)

	StyleStateConnected = lipgloss.NewStyle().
				Foreground(ColorMatrixGreen).
				Bold(true)

	StyleStateRetrying = lipgloss.NewStyle().
				Foreground(ColorWarning).
				Bold(true)

	StyleStateFailed = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true)

	StyleStateIdle = lipgloss.NewStyle().
			Foreground(ColorMidGreen)

	StylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorderNorm)

	StylePanelTitle = lipgloss.NewStyle().
			Foreground(ColorMatrixGreen).
			Bold(true).
			Padding(0, 1)

	StylePeripheralName = lipgloss.NewStyle().
				Foreground(ColorMatrixGreen).
				Bold(true)

	StylePeripheralID = lipgloss.NewStyle().
				Foreground(ColorMidGreen)

	StylePeripheralRSSI = lipgloss.NewStyle().
				Foreground(ColorGreen)

	StylePayloadBody = lipgloss.NewStyle().
				Foreground(ColorPeripheral)

	StylePayloadTime = lipgloss.NewStyle().
				Foreground(ColorMidGreen)

	StyleFilterActive = lipgloss.NewStyle().
				Foreground(ColorMatrixGreen).
				Bold(true)

	StyleFilterInactive = lipgloss.NewStyle().
				Foreground(ColorDimGreen)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorDimGreen)

	StyleSeparator = lipgloss.NewStyle().
			Foreground(ColorMidGreen)
)

// Cursor row style: black text on bright green = unmissable highlight
var StyleCursorRow = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#000000")).
	Background(ColorMatrixGreen).
	Bold(true)

// StateStyle picks the style for a connection status string.
func StateStyle(status string) lipgloss.Style {
	switch {
	case strings.HasPrefix(status, "Connected"):
		return StyleStateConnected
	case strings.HasPrefix(status, "Connecting"), strings.HasPrefix(status, "Reconnecting"):
		return StyleStateRetrying
	case strings.HasPrefix(status, "Failed"):
		return StyleStateFailed
	default:
		return StyleStateIdle
	}
}
