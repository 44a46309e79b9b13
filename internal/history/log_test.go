package history

import "testing"

func TestAppendOrderAndTail(t *testing.T) {
	l := NewPayloadLog()

	for _, body := range []string{"20.1C", "20.4C", "42.3C"} {
		l.Append("AA:BB:CC:DD:EE:FF", body)
	}

	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}

	last, ok := l.Last()
	if !ok || last.Body != "42.3C" {
		t.Errorf("Last = %q, want 42.3C", last.Body)
	}

	tail := l.Tail(2)
	if len(tail) != 2 || tail[0].Body != "20.4C" || tail[1].Body != "42.3C" {
		t.Errorf("Tail(2) = %v, want oldest-first [20.4C 42.3C]", tail)
	}
}

func TestTailLargerThanLog(t *testing.T) {
	l := NewPayloadLog()
	l.Append("AA:BB:CC:DD:EE:FF", "20.1C")

	tail := l.Tail(10)
	if len(tail) != 1 || tail[0].Body != "20.1C" {
		t.Errorf("Tail(10) = %v, want the single entry", tail)
	}
}

func TestEmptyLog(t *testing.T) {
	l := NewPayloadLog()
	if _, ok := l.Last(); ok {
		t.Error("Last on empty log reported an entry")
	}
	if got := l.Tail(5); len(got) != 0 {
		t.Errorf("Tail on empty log = %v", got)
	}
}
