package controller

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ble-link.klederson.com/internal/bluetooth"
	"ble-link.klederson.com/internal/config"
	"ble-link.klederson.com/internal/history"
)

// Notifier receives outbound events: one per payload, plus state transitions.
type Notifier interface {
	NotifyDataReceived(peripheralID, body string)
	NotifyStateChanged(peripheralID, state string)
}

// Config tunes the controller. Zero durations fall back to package defaults.
type Config struct {
	ReconnectInterval time.Duration
	LivenessInterval  time.Duration
	PeripheralTimeout time.Duration
	EvictInterval     time.Duration
	Notifier          Notifier     // optional
	Sink              history.Sink // optional payload persistence
	Log               *logrus.Logger
}

// Controller owns the discovery set, the active peripheral, connection state
// and the reconnect schedule. It consumes link callbacks and timer firings on
// a single goroutine; the reconnect timer is armed in exactly one place so the
// liveness check and the disconnect path can never race two retry loops.
type Controller struct {
	link     bluetooth.Link
	store    *bluetooth.Store
	payloads *history.PayloadLog
	cfg      Config
	log      *logrus.Logger

	events chan event
	done   chan struct{}
	closed sync.Once

	// Guarded by mu for Snapshot readers; written only by the run goroutine.
	mu       sync.RWMutex
	target   string
	state    bluetooth.ConnState
	scanning bool
	filter   string

	// Loop-owned, never touched outside run().
	reconnect      *time.Timer
	reconnectArmed bool
}

// New creates a Controller over the given link and starts its event loop.
func New(link bluetooth.Link, cfg Config) *Controller {
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = config.ReconnectInterval
	}
	if cfg.LivenessInterval == 0 {
		cfg.LivenessInterval = config.LivenessInterval
	}
	if cfg.PeripheralTimeout == 0 {
		cfg.PeripheralTimeout = config.PeripheralTimeout
	}
	if cfg.EvictInterval == 0 {
		cfg.EvictInterval = config.EvictInterval
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}

	c := &Controller{
		link:     link,
		store:    bluetooth.NewStore(),
		payloads: history.NewPayloadLog(),
		cfg:      cfg,
		log:      cfg.Log,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		state:    bluetooth.StateDisconnected,
	}

	link.SetLinkHandler(func(id string, connected bool) {
		if connected {
			c.enqueue(event{kind: evLinkUp, id: id})
		} else {
			c.enqueue(event{kind: evLinkDown, id: id})
		}
	})

	go c.run()
	return c
}

// StartScan begins discovery. Only peripherals whose advertised name contains
// filter are admitted to the discovery set; an empty filter admits all.
func (c *Controller) StartScan(filter string) {
	c.enqueue(event{kind: evScanStart, filter: filter})
}

// StopScan pauses discovery.
func (c *Controller) StopScan() {
	c.enqueue(event{kind: evScanStop})
}

// Connect targets a peripheral. An already-active peripheral is disconnected
// first; at most one peripheral is ever active.
func (c *Controller) Connect(peripheralID string) {
	c.enqueue(event{kind: evConnectRequest, id: peripheralID})
}

// Disconnect drops the active peripheral and stops reconnecting to it.
func (c *Controller) Disconnect() {
	c.enqueue(event{kind: evDisconnectRequest})
}

// Close stops the event loop and invalidates both timers.
func (c *Controller) Close() {
	c.closed.Do(func() { close(c.done) })
}

// Snapshot is the observable surface consumed by the UI and the state API.
type Snapshot struct {
	Peripherals  []*bluetooth.Peripheral `json:"peripherals"`
	Target       string                  `json:"target,omitempty"`
	TargetName   string                  `json:"target_name,omitempty"`
	State        bluetooth.ConnState     `json:"-"`
	Status       string                  `json:"status"`
	Scanning     bool                    `json:"scanning"`
	Filter       string                  `json:"filter,omitempty"`
	Payloads     []history.Entry         `json:"payloads"`
	PayloadCount int                     `json:"payload_count"`
	LastPayload  string                  `json:"last_payload,omitempty"`
}

// Snapshot returns a consistent copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	target := c.target
	state := c.state
	scanning := c.scanning
	filter := c.filter
	c.mu.RUnlock()

	snap := Snapshot{
		Peripherals:  c.store.Snapshot(),
		Target:       target,
		State:        state,
		Scanning:     scanning,
		Filter:       filter,
		Payloads:     c.payloads.Tail(config.PayloadTailLen),
		PayloadCount: c.payloads.Len(),
	}
	if p, ok := c.store.Get(target); ok {
		snap.TargetName = p.DisplayName()
	}
	if last, ok := c.payloads.Last(); ok {
		snap.LastPayload = last.Body
	}
	snap.Status = statusLine(state, snap.TargetName)
	return snap
}

func statusLine(state bluetooth.ConnState, name string) string {
	if name == "" || state == bluetooth.StateDisconnected {
		return state.String()
	}
	return fmt.Sprintf("%s (%s)", state.String(), name)
}

func (c *Controller) enqueue(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) run() {
	liveness := time.NewTicker(c.cfg.LivenessInterval)
	defer liveness.Stop()
	evict := time.NewTicker(c.cfg.EvictInterval)
	defer evict.Stop()

	c.reconnect = time.NewTimer(c.cfg.ReconnectInterval)
	if !c.reconnect.Stop() {
		<-c.reconnect.C
	}
	defer c.cancelReconnect()

	for {
		select {
		case <-c.done:
			return
		case <-c.reconnect.C:
			c.reconnectArmed = false
			c.onReconnectTick()
		case <-liveness.C:
			c.onLivenessTick()
		case <-evict.C:
			c.store.Evict(c.cfg.PeripheralTimeout, c.targetID())
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// armReconnect is the single reconnect authority: every path that wants a
// retry goes through here, and it is a no-op while the timer is pending.
func (c *Controller) armReconnect() {
	if c.reconnectArmed {
		return
	}
	c.reconnect.Reset(c.cfg.ReconnectInterval)
	c.reconnectArmed = true
}

func (c *Controller) cancelReconnect() {
	if !c.reconnectArmed {
		return
	}
	if !c.reconnect.Stop() {
		select {
		case <-c.reconnect.C:
		default:
		}
	}
	c.reconnectArmed = false
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evDiscovered:
		c.onDiscovered(ev.id, ev.name, ev.rssi)
	case evScanStart:
		c.mu.Lock()
		c.filter = ev.filter
		c.scanning = true
		c.mu.Unlock()
		// Keep the set consistent with the filter: entries admitted under a
		// looser filter must not linger until eviction.
		if ev.filter != "" {
			c.store.Retain(func(p *bluetooth.Peripheral) bool {
				return strings.Contains(p.Name, ev.filter)
			})
		}
		c.startLinkScan()
	case evScanStop:
		c.mu.Lock()
		c.scanning = false
		c.mu.Unlock()
		if err := c.link.StopScan(); err != nil {
			c.log.WithError(err).Warn("stop scan")
		}
	case evConnectRequest:
		c.onConnectRequest(ev.id)
	case evDisconnectRequest:
		c.onDisconnectRequest()
	case evConnectResult:
		c.onConnectResult(ev.id, ev.err)
	case evLinkUp:
		c.onConnected(ev.id)
	case evLinkDown:
		c.onDisconnected(ev.id)
	case evPayload:
		c.onDataReceived(ev.id, ev.data)
	}
}

func (c *Controller) onDiscovered(id, name string, rssi int16) {
	c.mu.RLock()
	scanning := c.scanning
	filter := c.filter
	c.mu.RUnlock()

	if !scanning {
		return
	}
	if filter != "" && !strings.Contains(name, filter) {
		return
	}
	c.store.Upsert(id, name, float64(rssi))
}

func (c *Controller) onConnectRequest(id string) {
	c.mu.RLock()
	target := c.target
	state := c.state
	c.mu.RUnlock()

	if target == id && (state == bluetooth.StateConnecting || state == bluetooth.StateConnected) {
		return
	}

	// One active peripheral at a time: drop the old target first.
	if target != "" && target != id {
		c.cancelReconnect()
		if err := c.link.Disconnect(target); err != nil {
			c.log.WithError(err).WithField("peripheral", target).Warn("disconnect previous target")
		}
	}

	c.mu.Lock()
	c.target = id
	c.mu.Unlock()
	c.setState(bluetooth.StateConnecting)

	go c.attempt(id)
}

// attempt issues the blocking connect off the loop goroutine; the outcome
// comes back as an event so state changes stay serialized.
func (c *Controller) attempt(id string) {
	err := c.link.Connect(id)
	c.enqueue(event{kind: evConnectResult, id: id, err: err})
}

func (c *Controller) onConnectResult(id string, err error) {
	if id != c.targetID() {
		// A late success for a switched-away target holds a live radio
		// link nothing owns; tear it down.
		if err == nil {
			if derr := c.link.Disconnect(id); derr != nil {
				c.log.WithError(derr).WithField("peripheral", id).Warn("disconnect stale target")
			}
		}
		return
	}
	if err == nil {
		// Most stacks also deliver a link-up callback, often before Connect
		// returns; onConnected dedupes on state so both paths are safe.
		c.onConnected(id)
		return
	}
	c.log.WithError(err).WithField("peripheral", id).Warn("connect failed")
	c.setState(bluetooth.StateFailed)
	c.armReconnect()
}

func (c *Controller) onConnected(id string) {
	c.mu.RLock()
	target := c.target
	state := c.state
	c.mu.RUnlock()

	if id != target || state == bluetooth.StateConnected {
		return
	}

	c.mu.Lock()
	c.scanning = false
	c.mu.Unlock()
	if err := c.link.StopScan(); err != nil {
		c.log.WithError(err).Warn("stop scan")
	}

	c.cancelReconnect()
	c.setState(bluetooth.StateConnected)
	c.log.WithField("peripheral", id).Info("connected")

	if err := c.link.Subscribe(id, func(buf []byte) {
		data := make([]byte, len(buf))
		copy(data, buf)
		c.enqueue(event{kind: evPayload, id: id, data: data})
	}); err != nil {
		// Non-fatal: the link stays up, we just receive nothing.
		c.log.WithError(err).WithField("peripheral", id).Warn("subscribe failed")
	}
}

func (c *Controller) onDisconnected(id string) {
	if id != c.targetID() {
		return
	}

	c.log.WithField("peripheral", id).Info("link lost")
	c.setState(bluetooth.StateDisconnected)

	// Resume discovery so the peripheral reappears, then keep retrying.
	c.mu.Lock()
	c.scanning = true
	c.mu.Unlock()
	c.startLinkScan()
	c.armReconnect()
}

func (c *Controller) onDisconnectRequest() {
	c.mu.Lock()
	target := c.target
	c.target = ""
	c.mu.Unlock()

	c.cancelReconnect()
	c.setState(bluetooth.StateDisconnected)

	if target != "" {
		if err := c.link.Disconnect(target); err != nil {
			c.log.WithError(err).WithField("peripheral", target).Warn("disconnect")
		}
	}
}

func (c *Controller) onReconnectTick() {
	c.mu.RLock()
	target := c.target
	state := c.state
	c.mu.RUnlock()

	if target == "" || state == bluetooth.StateConnected {
		return
	}

	c.setState(bluetooth.StateReconnecting)
	c.log.WithField("peripheral", target).Debug("reconnect attempt")
	go c.attempt(target)

	// Re-arm now so attempts repeat every interval until one lands.
	c.armReconnect()
}

// onLivenessTick guards against missed disconnect callbacks: if the target is
// not actually connected and no retry is pending, start one.
func (c *Controller) onLivenessTick() {
	c.mu.RLock()
	target := c.target
	state := c.state
	c.mu.RUnlock()

	if target == "" || state == bluetooth.StateConnected || c.reconnectArmed {
		return
	}
	c.log.WithField("peripheral", target).WithField("state", state.String()).
		Warn("liveness check: target not connected, arming reconnect")
	c.armReconnect()
}

func (c *Controller) onDataReceived(id string, data []byte) {
	body := string(data)
	entry := c.payloads.Append(id, body)

	if c.cfg.Sink != nil {
		if err := c.cfg.Sink.Write(entry); err != nil {
			c.log.WithError(err).Warn("payload persistence")
		}
	}
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.NotifyDataReceived(id, body)
	}
}

func (c *Controller) startLinkScan() {
	if err := c.link.StartScan(func(adv bluetooth.Advertisement) {
		c.enqueue(event{kind: evDiscovered, id: adv.ID, name: adv.Name, rssi: adv.RSSI})
	}); err != nil {
		c.log.WithError(err).Warn("start scan")
	}
}

func (c *Controller) setState(s bluetooth.ConnState) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	target := c.target
	c.mu.Unlock()

	if prev != s && c.cfg.Notifier != nil {
		c.cfg.Notifier.NotifyStateChanged(target, s.String())
	}
}

func (c *Controller) targetID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}
