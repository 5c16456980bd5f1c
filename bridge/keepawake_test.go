package bridge

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestTokensRenderingAndTicking(t *testing.T) {
	k := NewKeepAwake(zaptest.NewLogger(t))
	a, err := k.Acquire("A", true)
	if err != nil {
		t.Fatalf("Acquire A: %v", err)
	}
	b, err := k.Acquire("B", false)
	if err != nil {
		t.Fatalf("Acquire B: %v", err)
	}
	if !k.IsAwakeForRendering() {
		t.Fatalf("expected awake for rendering")
	}

	a.Release()
	if k.IsAwakeForRendering() {
		t.Fatalf("expected rendering released after A")
	}
	if !k.IsAwakeForTicking() {
		t.Fatalf("expected still ticking for B")
	}

	b.Release()
	if k.IsAwakeForTicking() || k.IsAwakeForRendering() {
		t.Fatalf("expected fully asleep")
	}
}

func TestRenderingFlagMustMatch(t *testing.T) {
	k := NewKeepAwake(zaptest.NewLogger(t))
	if err := k.KeepAwake("menu", true); err != nil {
		t.Fatalf("KeepAwake: %v", err)
	}
	if err := k.KeepAwake("menu", false); !errors.Is(err, ErrRenderingMismatch) {
		t.Fatalf("err=%v, want ErrRenderingMismatch", err)
	}
	if err := k.AllowSleep("other"); !errors.Is(err, ErrNotAwake) {
		t.Fatalf("err=%v, want ErrNotAwake", err)
	}
}

func TestCopyMoveAssignStayBalanced(t *testing.T) {
	k := NewKeepAwake(zaptest.NewLogger(t))

	a, _ := k.Acquire("A", true)
	b, _ := k.Acquire("B", false)

	c, err := a.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if k.Holds("A") != 2 {
		t.Fatalf("Holds(A)=%d, want 2 after copy", k.Holds("A"))
	}

	moved := b.Move()
	if b.Live() || !moved.Live() {
		t.Fatalf("move should leave source inert and target live")
	}
	if k.Holds("B") != 1 {
		t.Fatalf("Holds(B)=%d, want 1 after move", k.Holds("B"))
	}

	// Copy-assign c (holding A) from moved (holding B).
	if err := c.Assign(moved); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if k.Holds("A") != 1 || k.Holds("B") != 2 {
		t.Fatalf("after assign A=%d B=%d, want 1 2", k.Holds("A"), k.Holds("B"))
	}

	// Move-assign a (holding A) from c (holding B).
	a.MoveAssign(c)
	if c.Live() || a.Requester() != "B" {
		t.Fatalf("move-assign: c live=%v a=%q", c.Live(), a.Requester())
	}
	if k.Holds("A") != 0 || k.Holds("B") != 2 {
		t.Fatalf("after move-assign A=%d B=%d, want 0 2", k.Holds("A"), k.Holds("B"))
	}

	for _, tok := range []*KeepAwakeToken{a, b, c, moved, moved, a} {
		tok.Release()
	}
	if k.IsAwakeForTicking() {
		t.Fatalf("registry not empty: %v", k.Requesters())
	}
}

func TestAssignSelfAndInert(t *testing.T) {
	k := NewKeepAwake(zaptest.NewLogger(t))
	a, _ := k.Acquire("A", false)
	if err := a.Assign(a); err != nil {
		t.Fatalf("self assign: %v", err)
	}
	if k.Holds("A") != 1 {
		t.Fatalf("Holds(A)=%d, want 1", k.Holds("A"))
	}
	if err := a.Assign(&KeepAwakeToken{}); err != nil {
		t.Fatalf("assign inert: %v", err)
	}
	if a.Live() || k.IsAwakeForTicking() {
		t.Fatalf("assigning an inert token should release")
	}
}

func TestReleaseAllThenTokenRelease(t *testing.T) {
	k := NewKeepAwake(zaptest.NewLogger(t))
	a, _ := k.Acquire("A", true)
	_, _ = k.Acquire("B", false)
	released := k.ReleaseAll()
	if len(released) != 2 || released[0] != "A" || released[1] != "B" {
		t.Fatalf("released=%v, want [A B]", released)
	}
	a.Release()
	if k.IsAwakeForTicking() {
		t.Fatalf("expected empty registry")
	}
}
