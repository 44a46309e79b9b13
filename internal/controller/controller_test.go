package controller

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"ble-link.klederson.com/internal/bluetooth"
)

// fakeLink is a scriptable Link that records every call.
type fakeLink struct {
	mu          sync.Mutex
	onFound     func(bluetooth.Advertisement)
	onLink      func(id string, connected bool)
	scanning    bool
	connectErr  error
	autoUp      bool          // fire link-up when Connect succeeds
	blockC      chan struct{} // if set, Connect blocks until closed
	connects    []string
	disconnects []string
	subs        map[string]func([]byte)
	active      map[string]bool // radio-level link state
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		autoUp: true,
		subs:   make(map[string]func([]byte)),
		active: make(map[string]bool),
	}
}

func (f *fakeLink) SetLinkHandler(fn func(id string, connected bool)) {
	f.mu.Lock()
	f.onLink = fn
	f.mu.Unlock()
}

func (f *fakeLink) StartScan(onFound func(bluetooth.Advertisement)) error {
	f.mu.Lock()
	f.onFound = onFound
	f.scanning = true
	f.mu.Unlock()
	return nil
}

func (f *fakeLink) StopScan() error {
	f.mu.Lock()
	f.scanning = false
	f.mu.Unlock()
	return nil
}

func (f *fakeLink) Connect(id string) error {
	f.mu.Lock()
	f.connects = append(f.connects, id)
	err := f.connectErr
	up := f.autoUp
	block := f.blockC
	onLink := f.onLink
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.active[id] = true
	f.mu.Unlock()
	if up && onLink != nil {
		onLink(id, true)
	}
	return nil
}

func (f *fakeLink) Disconnect(id string) error {
	f.mu.Lock()
	f.disconnects = append(f.disconnects, id)
	delete(f.active, id)
	onLink := f.onLink
	f.mu.Unlock()
	if onLink != nil {
		onLink(id, false)
	}
	return nil
}

func (f *fakeLink) Subscribe(id string, onData func([]byte)) error {
	f.mu.Lock()
	f.subs[id] = onData
	f.mu.Unlock()
	return nil
}

func (f *fakeLink) advertise(id, name string, rssi int16) {
	f.mu.Lock()
	onFound := f.onFound
	scanning := f.scanning
	f.mu.Unlock()
	if scanning && onFound != nil {
		onFound(bluetooth.Advertisement{ID: id, Name: name, RSSI: rssi})
	}
}

// dropLink simulates a remote disconnect reported by the stack.
func (f *fakeLink) dropLink(id string) {
	f.mu.Lock()
	delete(f.active, id)
	onLink := f.onLink
	f.mu.Unlock()
	if onLink != nil {
		onLink(id, false)
	}
}

func (f *fakeLink) isScanning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanning
}

func (f *fakeLink) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connects)
}

func (f *fakeLink) activeLinks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.active))
	for id := range f.active {
		out = append(out, id)
	}
	return out
}

func (f *fakeLink) pushData(id string, data []byte) bool {
	f.mu.Lock()
	fn, ok := f.subs[id]
	f.mu.Unlock()
	if ok {
		fn(data)
	}
	return ok
}

type fakeNotifier struct {
	mu     sync.Mutex
	bodies []string
	states []string
}

func (n *fakeNotifier) NotifyDataReceived(peripheralID, body string) {
	n.mu.Lock()
	n.bodies = append(n.bodies, body)
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifyStateChanged(peripheralID, state string) {
	n.mu.Lock()
	n.states = append(n.states, state)
	n.mu.Unlock()
}

func (n *fakeNotifier) received() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.bodies))
	copy(out, n.bodies)
	return out
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig(n Notifier) Config {
	return Config{
		ReconnectInterval: 25 * time.Millisecond,
		LivenessInterval:  40 * time.Millisecond,
		PeripheralTimeout: time.Hour,
		EvictInterval:     time.Hour,
		Notifier:          n,
		Log:               quietLogger(),
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestScanFilterAdmitsOnlyMatches(t *testing.T) {
	link := newFakeLink()
	c := New(link, testConfig(nil))
	defer c.Close()

	c.StartScan("ZeBLE")
	waitFor(t, func() bool { return link.isScanning() }, "scan never started")

	link.advertise("AA:AA:AA:AA:AA:01", "ZeBLE-01", -50)
	link.advertise("AA:AA:AA:AA:AA:02", "OtherDevice", -40)
	link.advertise("AA:AA:AA:AA:AA:01", "ZeBLE-01", -55) // duplicate

	waitFor(t, func() bool { return len(c.Snapshot().Peripherals) == 1 },
		"expected exactly one peripheral in the discovery set")

	p := c.Snapshot().Peripherals[0]
	if p.Name != "ZeBLE-01" {
		t.Errorf("expected ZeBLE-01, got %q", p.Name)
	}
}

func TestScanWithoutFilterAdmitsAll(t *testing.T) {
	link := newFakeLink()
	c := New(link, testConfig(nil))
	defer c.Close()

	c.StartScan("")
	waitFor(t, func() bool { return link.isScanning() }, "scan never started")

	link.advertise("AA:AA:AA:AA:AA:01", "ZeBLE-01", -50)
	link.advertise("AA:AA:AA:AA:AA:02", "OtherDevice", -40)
	link.advertise("AA:AA:AA:AA:AA:03", "", -70)

	waitFor(t, func() bool { return len(c.Snapshot().Peripherals) == 3 },
		"expected all three peripherals without a filter")
}

func TestConnectLifecycle(t *testing.T) {
	link := newFakeLink()
	c := New(link, testConfig(nil))
	defer c.Close()

	c.StartScan("")
	waitFor(t, func() bool { return link.isScanning() }, "scan never started")
	link.advertise("AA:AA:AA:AA:AA:01", "ZeBLE-01", -50)
	waitFor(t, func() bool { return len(c.Snapshot().Peripherals) == 1 }, "discovery")

	c.Connect("AA:AA:AA:AA:AA:01")
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateConnected },
		"never reached Connected")

	if link.isScanning() {
		t.Error("scan should stop once connected")
	}
	link.mu.Lock()
	_, subscribed := link.subs["AA:AA:AA:AA:AA:01"]
	link.mu.Unlock()
	if !subscribed {
		t.Error("notification characteristic was not subscribed")
	}
}

func TestReconnectAfterDisconnect(t *testing.T) {
	link := newFakeLink()
	c := New(link, testConfig(nil))
	defer c.Close()

	c.Connect("AA:AA:AA:AA:AA:01")
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateConnected }, "connect")

	// Peripheral goes away: connects now fail until it comes back.
	link.mu.Lock()
	link.connectErr = errors.New("device unreachable")
	link.mu.Unlock()
	before := link.connectCount()
	link.dropLink("AA:AA:AA:AA:AA:01")

	// A retry for the same ID lands within one reconnect interval, and keeps
	// retrying while the peripheral stays away.
	waitFor(t, func() bool { return link.connectCount() >= before+2 },
		"expected repeated reconnect attempts")
	link.mu.Lock()
	last := link.connects[len(link.connects)-1]
	link.mu.Unlock()
	if last != "AA:AA:AA:AA:AA:01" {
		t.Errorf("reconnect targeted %q, want the original peripheral", last)
	}

	// Peripheral returns: next attempt succeeds and the timer is cancelled.
	link.mu.Lock()
	link.connectErr = nil
	link.mu.Unlock()
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateConnected }, "reconnect")

	settled := link.connectCount()
	time.Sleep(120 * time.Millisecond) // several reconnect intervals
	if link.connectCount() > settled {
		t.Errorf("reconnect attempts continued after success: %d -> %d", settled, link.connectCount())
	}
}

func TestSwitchingTargetDisconnectsPrevious(t *testing.T) {
	link := newFakeLink()
	c := New(link, testConfig(nil))
	defer c.Close()

	c.Connect("AA:AA:AA:AA:AA:01")
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateConnected }, "first connect")

	c.Connect("BB:BB:BB:BB:BB:02")
	waitFor(t, func() bool {
		return c.Snapshot().State == bluetooth.StateConnected && c.Snapshot().Target == "BB:BB:BB:BB:BB:02"
	}, "second connect")

	link.mu.Lock()
	defer link.mu.Unlock()
	if len(link.disconnects) == 0 || link.disconnects[0] != "AA:AA:AA:AA:AA:01" {
		t.Fatalf("expected previous target disconnected first, got %v", link.disconnects)
	}
}

func TestPayloadAppendsLogAndNotifiesOnce(t *testing.T) {
	link := newFakeLink()
	notifier := &fakeNotifier{}
	c := New(link, testConfig(notifier))
	defer c.Close()

	c.Connect("AA:AA:AA:AA:AA:01")
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateConnected }, "connect")

	if !link.pushData("AA:AA:AA:AA:AA:01", []byte("42.3C")) {
		t.Fatal("no subscription registered")
	}

	waitFor(t, func() bool { return c.Snapshot().PayloadCount == 1 }, "payload never logged")

	snap := c.Snapshot()
	if got := snap.Payloads[len(snap.Payloads)-1].Body; got != "42.3C" {
		t.Errorf("log tail = %q, want 42.3C", got)
	}
	if snap.LastPayload != "42.3C" {
		t.Errorf("LastPayload = %q, want 42.3C", snap.LastPayload)
	}
	if got := notifier.received(); len(got) != 1 || got[0] != "42.3C" {
		t.Errorf("notifications = %v, want exactly one 42.3C", got)
	}
}

func TestConnectFailureEntersFailedAndKeepsRetrying(t *testing.T) {
	link := newFakeLink()
	link.connectErr = errors.New("connection refused")
	c := New(link, testConfig(nil))
	defer c.Close()

	c.Connect("AA:AA:AA:AA:AA:01")
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateFailed },
		"never entered Failed")
	waitFor(t, func() bool { return link.connectCount() >= 3 },
		"retry loop stopped after failure")

	link.mu.Lock()
	link.connectErr = nil
	link.mu.Unlock()
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateConnected },
		"never recovered from Failed")
}

func TestLivenessRearmsStalledConnect(t *testing.T) {
	link := newFakeLink()
	link.blockC = make(chan struct{}) // first connect hangs inside the stack
	c := New(link, testConfig(nil))
	defer c.Close()

	c.Connect("AA:AA:AA:AA:AA:01")
	waitFor(t, func() bool { return link.connectCount() == 1 }, "no connect issued")

	// The hung attempt arms nothing; the liveness check must notice the
	// target is not Connected and schedule a retry.
	waitFor(t, func() bool { return link.connectCount() >= 2 },
		"liveness check never re-armed reconnect")

	link.mu.Lock()
	block := link.blockC
	link.blockC = nil
	link.mu.Unlock()
	close(block)
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateConnected }, "recover")
}

func TestLateConnectForPreviousTargetIsTornDown(t *testing.T) {
	link := newFakeLink()
	link.blockC = make(chan struct{}) // first target's connect hangs in the stack
	c := New(link, testConfig(nil))
	defer c.Close()

	c.Connect("AA:AA:AA:AA:AA:01")
	waitFor(t, func() bool { return link.connectCount() >= 1 }, "no connect issued")

	// Switch targets while the first connect is still in flight.
	link.mu.Lock()
	block := link.blockC
	link.blockC = nil
	link.mu.Unlock()

	c.Connect("BB:BB:BB:BB:BB:02")
	waitFor(t, func() bool {
		snap := c.Snapshot()
		return snap.State == bluetooth.StateConnected && snap.Target == "BB:BB:BB:BB:BB:02"
	}, "never connected to the new target")

	// The stack now completes the stale connect to the old target; the
	// controller must tear that link down instead of leaking it.
	close(block)
	waitFor(t, func() bool {
		active := link.activeLinks()
		return len(active) == 1 && active[0] == "BB:BB:BB:BB:BB:02"
	}, "stale connect to the previous target was never torn down")
}

func TestFilterChangePrunesDiscoverySet(t *testing.T) {
	link := newFakeLink()
	c := New(link, testConfig(nil))
	defer c.Close()

	c.StartScan("")
	waitFor(t, func() bool { return link.isScanning() }, "scan never started")

	link.advertise("AA:AA:AA:AA:AA:01", "ZeBLE-01", -50)
	link.advertise("AA:AA:AA:AA:AA:02", "OtherDevice", -40)
	waitFor(t, func() bool { return len(c.Snapshot().Peripherals) == 2 }, "discovery")

	// Narrowing the filter must drop previously admitted non-matching
	// peripherals immediately, not leave them for eviction.
	c.StartScan("ZeBLE")
	waitFor(t, func() bool {
		snap := c.Snapshot().Peripherals
		return len(snap) == 1 && snap[0].Name == "ZeBLE-01"
	}, "non-matching peripheral survived the filter change")
}

func TestExplicitDisconnectStopsReconnect(t *testing.T) {
	link := newFakeLink()
	c := New(link, testConfig(nil))
	defer c.Close()

	c.Connect("AA:AA:AA:AA:AA:01")
	waitFor(t, func() bool { return c.Snapshot().State == bluetooth.StateConnected }, "connect")

	c.Disconnect()
	waitFor(t, func() bool {
		snap := c.Snapshot()
		return snap.State == bluetooth.StateDisconnected && snap.Target == ""
	}, "disconnect")

	before := link.connectCount()
	time.Sleep(120 * time.Millisecond)
	if link.connectCount() != before {
		t.Error("reconnect attempts after explicit disconnect")
	}
}
