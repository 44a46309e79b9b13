package bluetooth

import (
	"testing"
	"time"
)

func TestUpsertDeduplicatesByID(t *testing.T) {
	s := NewStore()
	s.Upsert("AA:BB:CC:DD:EE:01", "ZeBLE-01", -50)
	s.Upsert("AA:BB:CC:DD:EE:01", "ZeBLE-01", -60)
	s.Upsert("AA:BB:CC:DD:EE:02", "ZeBLE-02", -70)

	if s.Count() != 2 {
		t.Fatalf("Count = %d, want 2", s.Count())
	}

	p, ok := s.Get("AA:BB:CC:DD:EE:01")
	if !ok {
		t.Fatal("peripheral missing after upsert")
	}
	// EMA smoothed: between the two raw readings
	if p.RSSI <= -60 || p.RSSI >= -50 {
		t.Errorf("RSSI = %f, want smoothed value in (-60, -50)", p.RSSI)
	}
}

func TestUpsertKeepsKnownName(t *testing.T) {
	s := NewStore()
	s.Upsert("AA:BB:CC:DD:EE:01", "ZeBLE-01", -50)
	s.Upsert("AA:BB:CC:DD:EE:01", "", -55) // advertisement without a name

	p, _ := s.Get("AA:BB:CC:DD:EE:01")
	if p.Name != "ZeBLE-01" {
		t.Errorf("Name = %q, want ZeBLE-01 preserved", p.Name)
	}
}

func TestEvictSparesActiveTarget(t *testing.T) {
	s := NewStore()
	s.Upsert("AA:BB:CC:DD:EE:01", "ZeBLE-01", -50)
	s.Upsert("AA:BB:CC:DD:EE:02", "ZeBLE-02", -70)

	time.Sleep(10 * time.Millisecond)
	evicted := s.Evict(time.Millisecond, "AA:BB:CC:DD:EE:01")

	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if _, ok := s.Get("AA:BB:CC:DD:EE:01"); !ok {
		t.Error("active target was evicted")
	}
	if _, ok := s.Get("AA:BB:CC:DD:EE:02"); ok {
		t.Error("stale peripheral survived eviction")
	}
}

func TestRetainDropsRejectedPeripherals(t *testing.T) {
	s := NewStore()
	s.Upsert("AA:BB:CC:DD:EE:01", "ZeBLE-01", -50)
	s.Upsert("AA:BB:CC:DD:EE:02", "OtherDevice", -40)

	removed := s.Retain(func(p *Peripheral) bool { return p.Name == "ZeBLE-01" })

	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if s.Count() != 1 {
		t.Fatalf("Count = %d, want 1", s.Count())
	}
	if _, ok := s.Get("AA:BB:CC:DD:EE:02"); ok {
		t.Error("rejected peripheral survived Retain")
	}
}

func TestSnapshotSortsByRSSI(t *testing.T) {
	s := NewStore()
	s.Upsert("AA:BB:CC:DD:EE:01", "far", -85)
	s.Upsert("AA:BB:CC:DD:EE:02", "near", -42)

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].Name != "near" {
		t.Errorf("snapshot order wrong: %v", snap)
	}
}

func TestConnStateStrings(t *testing.T) {
	cases := map[ConnState]string{
		StateDisconnected: "Disconnected",
		StateConnecting:   "Connecting",
		StateConnected:    "Connected",
		StateReconnecting: "Reconnecting",
		StateFailed:       "Failed",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
