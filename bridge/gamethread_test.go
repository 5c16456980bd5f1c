package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestPriorityThenFIFO(t *testing.T) {
	g := NewGameThread(0, zaptest.NewLogger(t))
	var order []string
	push := func(p int, name string) {
		if err := g.RunOnGameThread(p, func() { order = append(order, name) }); err != nil {
			t.Fatalf("RunOnGameThread: %v", err)
		}
	}
	push(PriorityNormal, "n1")
	push(PriorityLow, "l1")
	push(PriorityHigh, "h1")
	push(PriorityNormal, "n2")
	push(PriorityHigh, "h2")

	if ran := g.TickGameThread(16 * time.Millisecond); ran != 5 {
		t.Fatalf("ran=%d, want 5", ran)
	}
	want := []string{"h1", "h2", "n1", "n2", "l1"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order=%v, want %v", order, want)
		}
	}
}

func TestTickDrainsSnapshotOnly(t *testing.T) {
	g := NewGameThread(0, zaptest.NewLogger(t))
	runs := 0
	var again func()
	again = func() {
		runs++
		_ = g.RunOnGameThread(PriorityNormal, again)
	}
	_ = g.RunOnGameThread(PriorityNormal, again)
	other := false
	_ = g.RunOnGameThread(PriorityHigh, func() { other = true })

	if ran := g.TickGameThread(0); ran != 2 {
		t.Fatalf("first tick ran=%d, want 2", ran)
	}
	if runs != 1 || !other {
		t.Fatalf("runs=%d other=%v, want 1 true", runs, other)
	}
	if ran := g.TickGameThread(0); ran != 1 {
		t.Fatalf("second tick ran=%d, want 1", ran)
	}
	if g.Len() != 1 {
		t.Fatalf("Len=%d, want 1", g.Len())
	}
}

func TestSelfRequeueCannotStarveLowerPriority(t *testing.T) {
	g := NewGameThread(0, zaptest.NewLogger(t))
	high := 0
	var again func()
	again = func() {
		high++
		_ = g.RunOnGameThread(PriorityHigh, again)
	}
	_ = g.RunOnGameThread(PriorityHigh, again)
	low := false
	_ = g.RunOnGameThread(PriorityLow, func() { low = true })

	if ran := g.TickGameThread(0); ran != 2 {
		t.Fatalf("ran=%d, want 2", ran)
	}
	if high != 1 || !low {
		t.Fatalf("high=%d low=%v, want 1 true", high, low)
	}
	for i := 0; i < 10; i++ {
		if ran := g.TickGameThread(0); ran != 1 {
			t.Fatalf("tick %d ran=%d, want 1", i, ran)
		}
	}
	if high != 11 {
		t.Fatalf("high=%d, want 11", high)
	}
	if g.Len() != 1 {
		t.Fatalf("Len=%d, want 1", g.Len())
	}
}

func TestQueueFullFailsEnqueue(t *testing.T) {
	g := NewGameThread(2, zaptest.NewLogger(t))
	for i := 0; i < 2; i++ {
		if err := g.RunOnGameThread(PriorityNormal, func() {}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := g.RunOnGameThread(PriorityNormal, func() {}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err=%v, want ErrQueueFull", err)
	}
	if g.Len() != 2 {
		t.Fatalf("Len=%d, want 2", g.Len())
	}
}

func TestShutdownRejectsAndDrains(t *testing.T) {
	g := NewGameThread(0, zaptest.NewLogger(t))
	ran := 0
	for i := 0; i < 3; i++ {
		_ = g.RunOnGameThread(PriorityNormal, func() { ran++ })
	}
	g.BeginShutdown()
	if err := g.RunOnGameThread(PriorityHigh, func() {}); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("err=%v, want ErrShuttingDown", err)
	}
	if n := g.Drain(); n != 3 || ran != 3 {
		t.Fatalf("drained=%d ran=%d, want 3 3", n, ran)
	}
}

func TestWakeHook(t *testing.T) {
	g := NewGameThread(0, zaptest.NewLogger(t))
	woke := 0
	g.SetWakeHook(func() { woke++ })
	_ = g.RunOnGameThread(PriorityNormal, func() {})
	if woke != 1 {
		t.Fatalf("woke=%d, want 1", woke)
	}
	if !g.ConsumeWake() {
		t.Fatalf("expected pending wake")
	}
	if g.ConsumeWake() {
		t.Fatalf("wake should be consumed")
	}
}

func TestPanickingTaskDoesNotStopTick(t *testing.T) {
	g := NewGameThread(0, zaptest.NewLogger(t))
	after := false
	_ = g.RunOnGameThread(PriorityHigh, func() { panic("boom") })
	_ = g.RunOnGameThread(PriorityNormal, func() { after = true })
	g.TickGameThread(0)
	if !after {
		t.Fatalf("task after panic did not run")
	}
}

func TestForceTickWaitsForWork(t *testing.T) {
	g := NewGameThread(0, zaptest.NewLogger(t))
	var mu sync.Mutex
	done := false
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = g.RunOnGameThread(PriorityNormal, func() {
			mu.Lock()
			done = true
			mu.Unlock()
		})
	}()
	g.ForceTick("boot", 200*time.Millisecond, time.Second)
	mu.Lock()
	defer mu.Unlock()
	if !done {
		t.Fatalf("work queued during the slice did not run")
	}
}

func TestForceTickCapsAtMaxSlice(t *testing.T) {
	g := NewGameThread(0, zaptest.NewLogger(t))
	var spin func()
	spin = func() {
		time.Sleep(time.Millisecond)
		_ = g.RunOnGameThread(PriorityNormal, spin)
	}
	_ = g.RunOnGameThread(PriorityNormal, spin)

	start := time.Now()
	g.ForceTick("spin", 0, 20*time.Millisecond)
	if took := time.Since(start); took > 500*time.Millisecond {
		t.Fatalf("ForceTick ran %s, expected to stop near 20ms", took)
	}
}
