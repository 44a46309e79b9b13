package history

import (
	"sync"
	"time"
)

// Entry is one decoded payload received from a peripheral.
type Entry struct {
	PeripheralID string
	Body         string
	ReceivedAt   time.Time
}

// Sink receives payload entries as a side effect of appending; used for
// persistence. Sink errors are the caller's problem to log, never fatal.
type Sink interface {
	Write(e Entry) error
	Close() error
}

// PayloadLog is an append-only in-memory log of received payloads, ordered by
// arrival, bounded only by process lifetime.
type PayloadLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewPayloadLog creates an empty PayloadLog.
func NewPayloadLog() *PayloadLog {
	return &PayloadLog{}
}

// Append records a payload from the given peripheral.
func (l *PayloadLog) Append(peripheralID, body string) Entry {
	e := Entry{
		PeripheralID: peripheralID,
		Body:         body,
		ReceivedAt:   time.Now(),
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return e
}

// Len returns the number of logged payloads.
func (l *PayloadLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the most recent entry, or false if the log is empty.
func (l *PayloadLog) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Tail returns up to n most recent entries, oldest first.
func (l *PayloadLog) Tail(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
