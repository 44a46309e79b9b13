package bluetooth

import (
	"sort"
	"sync"
	"time"

	"ble-link.klederson.com/internal/config"
)

// Store is a thread-safe set of discovered peripherals, keyed by ID.
type Store struct {
	mu          sync.RWMutex
	peripherals map[string]*Peripheral
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		peripherals: make(map[string]*Peripheral),
	}
}

// Upsert adds or updates a peripheral. If it already exists, RSSI is smoothed
// using EMA and the name is kept unless the advertisement carries a better one.
func (s *Store) Upsert(id, name string, rssi float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if existing, ok := s.peripherals[id]; ok {
		existing.RSSI = existing.RSSI*(1-config.SmoothingAlpha) + rssi*config.SmoothingAlpha
		existing.LastSeen = now
		if name != "" {
			existing.Name = name
		}
		return
	}

	s.peripherals[id] = &Peripheral{
		ID:       id,
		Name:     name,
		RSSI:     rssi,
		LastSeen: now,
	}
}

// Get returns a copy of the peripheral with the given ID.
func (s *Store) Get(id string) (Peripheral, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peripherals[id]
	if !ok {
		return Peripheral{}, false
	}
	return *p, true
}

// Evict removes peripherals not seen within the timeout duration, except the
// one named by keep (the active target must survive scan gaps while connected).
// Returns the number of evicted peripherals.
func (s *Store) Evict(timeout time.Duration, keep string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	count := 0
	for id, p := range s.peripherals {
		if id == keep {
			continue
		}
		if p.LastSeen.Before(cutoff) {
			delete(s.peripherals, id)
			count++
		}
	}
	return count
}

// Snapshot returns a sorted copy of all peripherals (strongest RSSI first).
func (s *Store) Snapshot() []*Peripheral {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Peripheral, 0, len(s.peripherals))
	for _, p := range s.peripherals {
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RSSI > result[j].RSSI
	})
	return result
}

// Count returns the number of tracked peripherals.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peripherals)
}

// Retain drops every peripheral not accepted by pred, so the set can be
// re-narrowed when the scan filter changes. Returns the number removed.
func (s *Store) Retain(pred func(*Peripheral) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.peripherals {
		if !pred(p) {
			delete(s.peripherals, id)
			removed++
		}
	}
	return removed
}
