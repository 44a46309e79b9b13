package bluetooth

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// Central is the Link implementation backed by the system BLE adapter.
type Central struct {
	adapter     *bluetooth.Adapter
	log         *logrus.Logger
	serviceUUID bluetooth.UUID
	charUUID    bluetooth.UUID

	mu       sync.Mutex
	scanning bool
	addrs    map[string]bluetooth.Address // scan results, keyed by ID
	devices  map[string]bluetooth.Device  // open connections, keyed by ID
}

// NewCentral creates a Central targeting the given service/characteristic pair.
// The UUIDs are the standard dashed string form.
func NewCentral(serviceUUID, charUUID string, log *logrus.Logger) (*Central, error) {
	svc, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("bad service UUID %q: %w", serviceUUID, err)
	}
	char, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, fmt.Errorf("bad characteristic UUID %q: %w", charUUID, err)
	}

	c := &Central{
		adapter:     bluetooth.DefaultAdapter,
		log:         log,
		serviceUUID: svc,
		charUUID:    char,
		addrs:       make(map[string]bluetooth.Address),
		devices:     make(map[string]bluetooth.Device),
	}

	if err := c.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w (try running with sudo or setcap cap_net_admin+ep)", err)
	}
	return c, nil
}

// SetLinkHandler registers a callback fired on adapter-level connect and
// disconnect events for the active peripheral.
func (c *Central) SetLinkHandler(fn func(id string, connected bool)) {
	c.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		fn(device.Address.String(), connected)
	})
}

// StartScan begins BLE discovery in a goroutine. Each advertisement is passed
// to onFound; unnamed devices get a manufacturer-data name fallback.
func (c *Central) StartScan(onFound func(Advertisement)) error {
	c.mu.Lock()
	if c.scanning {
		c.mu.Unlock()
		return nil
	}
	c.scanning = true
	c.mu.Unlock()

	go func() {
		err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			c.mu.Lock()
			running := c.scanning
			c.addrs[result.Address.String()] = result.Address
			c.mu.Unlock()
			if !running {
				return
			}

			name := result.LocalName()
			if name == "" {
				mfrs := result.ManufacturerData()
				if len(mfrs) > 0 {
					if mfrName := LookupManufacturer(mfrs[0].CompanyID); mfrName != "" {
						mac := result.Address.String()
						name = mfrName + " " + mac[12:] // last 2 octets
					}
				}
			}

			onFound(Advertisement{
				ID:   result.Address.String(),
				Name: name,
				RSSI: result.RSSI,
			})
		})
		if err != nil {
			c.log.WithError(err).Warn("ble scan stopped")
		}
	}()

	return nil
}

// StopScan halts discovery.
func (c *Central) StopScan() error {
	c.mu.Lock()
	c.scanning = false
	c.mu.Unlock()
	return c.adapter.StopScan()
}

// Connect establishes a connection to a previously discovered peripheral.
// Blocks until the underlying stack reports success or failure.
func (c *Central) Connect(id string) error {
	c.mu.Lock()
	addr, ok := c.addrs[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("peripheral %s not seen in any scan", id)
	}

	device, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", id, err)
	}

	c.mu.Lock()
	c.devices[id] = device
	c.mu.Unlock()
	return nil
}

// Disconnect tears down the connection to the given peripheral, if open.
func (c *Central) Disconnect(id string) error {
	c.mu.Lock()
	device, ok := c.devices[id]
	delete(c.devices, id)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := device.Disconnect(); err != nil {
		return fmt.Errorf("disconnect %s: %w", id, err)
	}
	return nil
}

// Subscribe discovers the configured service and characteristic on a connected
// peripheral and enables notifications, delivering each value to onData.
func (c *Central) Subscribe(id string, onData func([]byte)) error {
	c.mu.Lock()
	device, ok := c.devices[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("peripheral %s is not connected", id)
	}

	srvs, err := device.DiscoverServices([]bluetooth.UUID{c.serviceUUID})
	if err != nil {
		return fmt.Errorf("discover services on %s: %w", id, err)
	}
	if len(srvs) == 0 {
		return fmt.Errorf("peripheral %s does not expose service %s", id, c.serviceUUID.String())
	}

	chars, err := srvs[0].DiscoverCharacteristics([]bluetooth.UUID{c.charUUID})
	if err != nil {
		return fmt.Errorf("discover characteristics on %s: %w", id, err)
	}
	if len(chars) == 0 {
		return fmt.Errorf("peripheral %s does not expose characteristic %s", id, c.charUUID.String())
	}

	if err := chars[0].EnableNotifications(onData); err != nil {
		return fmt.Errorf("enable notifications on %s: %w", id, err)
	}
	return nil
}
