package bluetooth

import "time"

// ConnState is the lifecycle state of the link to a peripheral.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateFailed:
		return "Failed"
	default:
		return "Disconnected"
	}
}

// Peripheral is a handle to a discovered BLE device. The controller stores
// these; the radio connection itself stays inside the Link implementation.
type Peripheral struct {
	ID       string // adapter address, e.g. "AA:BB:CC:DD:EE:FF"
	Name     string
	RSSI     float64
	LastSeen time.Time
}

// DisplayName returns the advertised name or "[unnamed]" if empty.
func (p *Peripheral) DisplayName() string {
	if p.Name == "" {
		return "[unnamed]"
	}
	return p.Name
}
