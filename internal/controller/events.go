package controller

// Every state transition in the controller happens on its run goroutine;
// BLE callbacks, timer firings and public methods all funnel through events.

type eventKind int

const (
	evDiscovered eventKind = iota
	evScanStart
	evScanStop
	evConnectRequest
	evDisconnectRequest
	evConnectResult
	evLinkUp
	evLinkDown
	evPayload
)

type event struct {
	kind   eventKind
	id     string
	name   string
	rssi   int16
	filter string
	data   []byte
	err    error
}
