package bluetooth

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

var mockTemplates = []string{
	"ZeBLE-01",
	"ZeBLE-02",
	"Thermo Beacon",
	"Ruuvi 4F2A",
	"iPhone 15 Pro",
	"Galaxy Buds Pro",
	"Tile Tracker",
	"Fitbit Charge 6",
	"",
}

type mockPeripheral struct {
	id        string
	name      string
	baseRSSI  float64
	phase     float64
	amplitude float64
}

// MockLink simulates a BLE adapter for demo mode: fake peripherals advertise
// continuously, any of them accepts a connection, and a connected peripheral
// streams temperature-style payloads and occasionally drops the link so the
// reconnect path gets exercised.
type MockLink struct {
	mu          sync.Mutex
	peripherals []mockPeripheral
	scanning    bool
	scanCancel  context.CancelFunc
	connected   string
	feedCancel  context.CancelFunc
	onLink      func(id string, connected bool)

	// DropRate is the per-tick probability of a spontaneous link drop.
	DropRate float64
}

// NewMockLink creates a mock adapter with randomized fake peripherals.
func NewMockLink() *MockLink {
	perm := rand.Perm(len(mockTemplates))
	n := 5 + rand.Intn(4)
	if n > len(perm) {
		n = len(perm)
	}

	peripherals := make([]mockPeripheral, n)
	for i := 0; i < n; i++ {
		peripherals[i] = mockPeripheral{
			id:        randomMAC(),
			name:      mockTemplates[perm[i]],
			baseRSSI:  -40 - rand.Float64()*50, // -40 to -90 dBm
			phase:     rand.Float64() * 2 * math.Pi,
			amplitude: 3 + rand.Float64()*8,
		}
	}

	return &MockLink{
		peripherals: peripherals,
		DropRate:    0.02,
	}
}

// SetLinkHandler registers the connect/disconnect callback.
func (m *MockLink) SetLinkHandler(fn func(id string, connected bool)) {
	m.mu.Lock()
	m.onLink = fn
	m.mu.Unlock()
}

// StartScan begins emitting fake advertisements every 200ms.
func (m *MockLink) StartScan(onFound func(Advertisement)) error {
	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return nil
	}
	m.scanning = true
	ctx, cancel := context.WithCancel(context.Background())
	m.scanCancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		t := 0.0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t += 0.2
				m.mu.Lock()
				peripherals := m.peripherals
				m.mu.Unlock()
				for _, p := range peripherals {
					rssi := p.baseRSSI + p.amplitude*math.Sin(t*0.5+p.phase) + (rand.Float64()-0.5)*4
					onFound(Advertisement{ID: p.id, Name: p.name, RSSI: int16(rssi)})
				}
			}
		}
	}()
	return nil
}

// StopScan halts fake advertisement emission.
func (m *MockLink) StopScan() error {
	m.mu.Lock()
	m.scanning = false
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	m.mu.Unlock()
	return nil
}

// Connect accepts any known peripheral ID after a short settle delay.
func (m *MockLink) Connect(id string) error {
	m.mu.Lock()
	found := false
	for _, p := range m.peripherals {
		if p.id == id {
			found = true
			break
		}
	}
	m.mu.Unlock()
	if !found {
		return fmt.Errorf("peripheral %s not seen in any scan", id)
	}

	time.Sleep(150 * time.Millisecond)

	m.mu.Lock()
	m.connected = id
	onLink := m.onLink
	m.mu.Unlock()

	if onLink != nil {
		onLink(id, true)
	}
	return nil
}

// Disconnect drops the fake link.
func (m *MockLink) Disconnect(id string) error {
	m.dropLink(id)
	return nil
}

// Subscribe starts the payload feed: a temperature reading every 2 seconds,
// with a DropRate chance per tick of losing the link instead.
func (m *MockLink) Subscribe(id string, onData func([]byte)) error {
	m.mu.Lock()
	if m.connected != id {
		m.mu.Unlock()
		return fmt.Errorf("peripheral %s is not connected", id)
	}
	if m.feedCancel != nil {
		m.feedCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.feedCancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		temp := 20 + rand.Float64()*5
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				dropRate := m.DropRate
				still := m.connected == id
				m.mu.Unlock()
				if !still {
					return
				}
				if rand.Float64() < dropRate {
					m.dropLink(id)
					return
				}
				temp += (rand.Float64() - 0.5) * 0.6
				onData([]byte(fmt.Sprintf("%.1fC", temp)))
			}
		}
	}()
	return nil
}

func (m *MockLink) dropLink(id string) {
	m.mu.Lock()
	if m.connected != id {
		m.mu.Unlock()
		return
	}
	m.connected = ""
	if m.feedCancel != nil {
		m.feedCancel()
		m.feedCancel = nil
	}
	onLink := m.onLink
	m.mu.Unlock()

	if onLink != nil {
		onLink(id, false)
	}
}

func randomMAC() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
