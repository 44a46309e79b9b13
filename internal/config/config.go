package config

import "time"

const (
	// Connection lifecycle
	ReconnectInterval = 3 * time.Second // retry cadence after a disconnect
	LivenessInterval  = 5 * time.Second // active-link health check cadence

	// Default GATT target: Nordic UART service, TX (notify) characteristic
	DefaultServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	DefaultCharUUID    = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"

	// Discovery set management
	PeripheralTimeout = 30 * time.Second // drop peripherals not seen for this long
	EvictInterval     = 5 * time.Second  // how often to run eviction
	SmoothingAlpha    = 0.3              // RSSI EMA smoothing factor (30% new, 70% old)

	// UI
	TargetFPS      = 30 // render tick rate
	PayloadTailLen = 50 // payload log lines shown in the TUI

	// App
	AppName    = "BLE-LINK"
	AppVersion = "1.0"
)
