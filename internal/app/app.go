package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ble-link.klederson.com/internal/config"
	"ble-link.klederson.com/internal/controller"
	"ble-link.klederson.com/internal/ui"
)

// Model is the root Bubble Tea model. It owns no connection state of its own:
// every frame it polls the controller snapshot and renders it.
type Model struct {
	width  int
	height int

	ctrl    *controller.Controller
	adapter string

	cursor        int
	filterEditing bool
	filterDraft   string

	// Cached snapshot
	snap controller.Snapshot
}

// New creates the root model over a running controller.
func New(ctrl *controller.Controller, adapter string) Model {
	return Model{
		ctrl:    ctrl,
		adapter: adapter,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		m.snap = m.ctrl.Snapshot()
		if m.cursor >= len(m.snap.Peripherals) {
			m.cursor = len(m.snap.Peripherals) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterEditing {
		return m.handleFilterKey(msg)
	}

	switch msg.String() {
	case "q", "Q", "ctrl+c":
		m.ctrl.Close()
		return m, tea.Quit

	case "enter":
		if m.cursor < len(m.snap.Peripherals) {
			m.ctrl.Connect(m.snap.Peripherals[m.cursor].ID)
		}

	case "d", "D":
		m.ctrl.Disconnect()

	case "s", "S":
		m.ctrl.StartScan(m.snap.Filter)

	case "p", "P":
		m.ctrl.StopScan()

	case "/":
		m.filterEditing = true
		m.filterDraft = m.snap.Filter

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.snap.Peripherals)-1 {
			m.cursor++
		}

	case "home":
		m.cursor = 0

	case "end":
		if len(m.snap.Peripherals) > 0 {
			m.cursor = len(m.snap.Peripherals) - 1
		}
	}

	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterEditing = false
		// Restarting the scan applies the new filter to fresh discoveries
		m.ctrl.StartScan(m.filterDraft)

	case "esc":
		m.filterEditing = false
		m.filterDraft = ""

	case "backspace":
		if len(m.filterDraft) > 0 {
			m.filterDraft = m.filterDraft[:len(m.filterDraft)-1]
		}

	default:
		if msg.Type == tea.KeyRunes {
			m.filterDraft += string(msg.Runes)
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing BLE Link..."
	}

	menuH := 1
	statusH := 1
	bodyH := m.height - menuH - statusH
	if bodyH < 5 {
		bodyH = 5
	}

	listW := m.width / 2
	if listW < 25 {
		listW = 25
	}
	payloadW := m.width - listW
	if payloadW < 20 {
		payloadW = 20
		listW = m.width - payloadW
	}

	filter := m.snap.Filter
	if m.filterEditing {
		filter = m.filterDraft
	}

	menuBar := ui.RenderMenuBar(m.width, m.adapter, m.snap.Scanning)
	list := ui.RenderPeripheralList(m.snap.Peripherals, listW, bodyH, m.cursor,
		m.snap.Target, m.snap.State.String(), filter, m.filterEditing)
	payloads := ui.RenderPayloadPanel(m.snap.Payloads, m.snap.PayloadCount, payloadW, bodyH)
	statusBar := ui.RenderStatusBar(m.width, m.snap.Status,
		len(m.snap.Peripherals), m.snap.PayloadCount, m.snap.Filter, m.snap.LastPayload)

	return ui.ComposeLayout(menuBar, list, payloads, statusBar)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(config.TargetFPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
