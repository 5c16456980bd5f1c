package systems

import (
	"testing"
	"time"

	"github.com/automoto/coopmod/shared/messages"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestReplicator(t *testing.T) (*Replicator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	r := NewReplicator(ecs.NewECS(donburi.NewWorld()), ReplicatorConfig{
		BufferSize:   16,
		BufferWindow: 500 * time.Millisecond,
		Now:          clock.Now,
	}, zaptest.NewLogger(t))
	return r, clock
}

func spawnAt(peer messages.PeerID, x float32) *messages.HumanSpawn {
	tr := messages.IdentityTransform
	tr.Position[0] = x
	return &messages.HumanSpawn{Peer: peer, SpawnProfile: 7, Transform: tr}
}

func updateAt(peer messages.PeerID, tick uint32, x float32) *messages.HumanUpdate {
	tr := messages.IdentityTransform
	tr.Position[0] = x
	return &messages.HumanUpdate{Peer: peer, Tick: tick, Transform: tr}
}

func TestSpawnCreatesOneActorPerPeer(t *testing.T) {
	r, _ := newTestReplicator(t)
	r.Spawn(spawnAt(5, 1))
	r.Spawn(spawnAt(5, 99))
	r.Spawn(spawnAt(6, 2))

	if r.Count() != 2 {
		t.Fatalf("Count = %d, want 2", r.Count())
	}
	h, ok := r.Actor(5)
	if !ok {
		t.Fatalf("no actor for peer 5")
	}
	if h.Transform.Position[0] != 1 {
		t.Fatalf("duplicate spawn overwrote state: x = %v", h.Transform.Position[0])
	}
	if h.SpawnProfile != 7 {
		t.Fatalf("profile = %d, want 7", h.SpawnProfile)
	}
	if got := r.Peers(); len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("Peers = %v", got)
	}
}

func TestDespawnIsIdempotent(t *testing.T) {
	r, _ := newTestReplicator(t)
	r.Spawn(spawnAt(5, 0))
	r.Despawn(&messages.HumanDespawn{Peer: 5})
	r.Despawn(&messages.HumanDespawn{Peer: 5})
	r.Despawn(&messages.HumanDespawn{Peer: 42})

	if r.Count() != 0 {
		t.Fatalf("Count = %d, want 0", r.Count())
	}
	if _, ok := r.Actor(5); ok {
		t.Fatalf("actor for 5 survived despawn")
	}

	// A respawn after despawn is a fresh actor, not a duplicate.
	r.Spawn(spawnAt(5, 3))
	if h, ok := r.Actor(5); !ok || h.Transform.Position[0] != 3 {
		t.Fatalf("respawn = %+v, %v", h, ok)
	}
}

func TestUpdateMutatesActor(t *testing.T) {
	r, _ := newTestReplicator(t)
	r.Spawn(spawnAt(5, 0))
	r.Advance()
	r.Update(updateAt(5, 40, 2.5))

	h, _ := r.Actor(5)
	if h.Transform.Position[0] != 2.5 || h.ServerTick != 40 || h.LastUpdateTick != 1 {
		t.Fatalf("actor = %+v", h)
	}
}

func TestUpdateBeforeSpawnIsAppliedOnSpawn(t *testing.T) {
	r, clock := newTestReplicator(t)
	r.Update(updateAt(9, 1, 1))
	clock.Advance(100 * time.Millisecond)
	r.Update(updateAt(9, 2, 2))
	if r.Count() != 0 {
		t.Fatalf("update created an actor")
	}
	if r.Pending(9) != 2 {
		t.Fatalf("Pending = %d, want 2", r.Pending(9))
	}

	clock.Advance(100 * time.Millisecond)
	r.Spawn(spawnAt(9, 0))

	h, ok := r.Actor(9)
	if !ok {
		t.Fatalf("spawn did not create actor")
	}
	if h.ServerTick != 2 || h.Transform.Position[0] != 2 {
		t.Fatalf("buffered updates not applied in order: %+v", h)
	}
	if r.Pending(9) != 0 {
		t.Fatalf("buffer not flushed")
	}
}

func TestBufferedUpdatesExpire(t *testing.T) {
	r, clock := newTestReplicator(t)
	r.Update(updateAt(9, 1, 1))
	clock.Advance(600 * time.Millisecond)
	r.ExpirePending()
	if r.Pending(9) != 0 {
		t.Fatalf("Pending = %d after window, want 0", r.Pending(9))
	}

	r.Update(updateAt(9, 2, 2))
	clock.Advance(600 * time.Millisecond)
	r.Spawn(spawnAt(9, 0))
	h, _ := r.Actor(9)
	if h.ServerTick != 0 || h.Transform.Position[0] != 0 {
		t.Fatalf("stale update applied on spawn: %+v", h)
	}
}

func TestBufferDropsOldestBeyondLimit(t *testing.T) {
	r, _ := newTestReplicator(t)
	for i := uint32(1); i <= 20; i++ {
		r.Update(updateAt(9, i, float32(i)))
	}
	if r.Pending(9) != 16 {
		t.Fatalf("Pending = %d, want 16", r.Pending(9))
	}
	r.Spawn(spawnAt(9, 0))
	h, _ := r.Actor(9)
	if h.ServerTick != 20 {
		t.Fatalf("ServerTick = %d, want 20", h.ServerTick)
	}
}

func TestLocalPeerNeverGetsAnActor(t *testing.T) {
	r, _ := newTestReplicator(t)
	r.Spawn(spawnAt(3, 0))
	r.SetLocalPeer(3)
	if r.Count() != 0 {
		t.Fatalf("existing actor for local peer kept")
	}
	r.Spawn(spawnAt(3, 0))
	r.Update(updateAt(3, 1, 1))
	if r.Count() != 0 || r.Pending(3) != 0 {
		t.Fatalf("local peer replicated: count=%d pending=%d", r.Count(), r.Pending(3))
	}
}

func TestDestroyAllClearsActorsAndBuffers(t *testing.T) {
	r, _ := newTestReplicator(t)
	r.Spawn(spawnAt(1, 0))
	r.Spawn(spawnAt(2, 0))
	r.Update(updateAt(3, 1, 0))

	if n := r.DestroyAll(); n != 2 {
		t.Fatalf("DestroyAll = %d, want 2", n)
	}
	if r.Count() != 0 || r.Pending(3) != 0 {
		t.Fatalf("state left after DestroyAll")
	}
	if r.ecs.World.Len() != 0 {
		t.Fatalf("world still has %d entities", r.ecs.World.Len())
	}
	if n := r.DestroyAll(); n != 0 {
		t.Fatalf("second DestroyAll = %d, want 0", n)
	}
}
