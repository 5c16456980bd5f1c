package protocol

import (
	"testing"
	"time"
)

func TestFailureWindowEscalates(t *testing.T) {
	f := NewFailureWindow(5, time.Second)
	start := time.Unix(1000, 0)
	for i := 0; i < 4; i++ {
		if f.Record(start.Add(time.Duration(i) * 100 * time.Millisecond)) {
			t.Fatalf("escalated early at failure %d", i+1)
		}
	}
	if !f.Record(start.Add(400 * time.Millisecond)) {
		t.Fatalf("expected escalation at 5 failures within 1s")
	}
}

func TestFailureWindowForgetsOldFailures(t *testing.T) {
	f := NewFailureWindow(5, time.Second)
	start := time.Unix(1000, 0)
	for i := 0; i < 4; i++ {
		f.Record(start)
	}
	if f.Record(start.Add(2 * time.Second)) {
		t.Fatalf("old failures should have expired")
	}
	if f.Count() != 1 {
		t.Fatalf("Count=%d, want 1", f.Count())
	}
}
