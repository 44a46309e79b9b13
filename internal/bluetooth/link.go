package bluetooth

// Advertisement is a single scan callback result.
type Advertisement struct {
	ID   string
	Name string
	RSSI int16
}

// Link is the controller's view of the radio. Implementations are Central
// (real adapter) and MockLink (demo mode / tests).
//
// Connect blocks until the link is established or fails; link drops after a
// successful connect are reported through the handler set with SetLinkHandler.
type Link interface {
	StartScan(onFound func(Advertisement)) error
	StopScan() error
	Connect(id string) error
	Disconnect(id string) error
	Subscribe(id string, onData func([]byte)) error
	SetLinkHandler(fn func(id string, connected bool))
}
