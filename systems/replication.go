package systems

import (
	"slices"
	"time"

	"github.com/automoto/coopmod/components"
	"github.com/automoto/coopmod/shared/messages"
	"github.com/automoto/coopmod/systems/factory"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
	"go.uber.org/zap"
)

// ReplicatorConfig bounds the buffer for updates that arrive before their spawn.
type ReplicatorConfig struct {
	BufferSize   int
	BufferWindow time.Duration
	Now          func() time.Time
}

type pendingUpdate struct {
	msg *messages.HumanUpdate
	at  time.Time
}

// Replicator owns the replication actors: one donburi entity per live
// remote peer, created by spawns, mutated by updates, destroyed by despawns.
// Game thread only.
type Replicator struct {
	ecs     *ecs.ECS
	actors  map[messages.PeerID]donburi.Entity
	pending map[messages.PeerID][]pendingUpdate
	warned  map[messages.PeerID]bool
	local   messages.PeerID
	tick    uint64

	bufferSize   int
	bufferWindow time.Duration
	now          func() time.Time

	log *zap.Logger
}

func NewReplicator(e *ecs.ECS, cfg ReplicatorConfig, log *zap.Logger) *Replicator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Replicator{
		ecs:          e,
		actors:       make(map[messages.PeerID]donburi.Entity),
		pending:      make(map[messages.PeerID][]pendingUpdate),
		warned:       make(map[messages.PeerID]bool),
		bufferSize:   cfg.BufferSize,
		bufferWindow: cfg.BufferWindow,
		now:          cfg.Now,
		log:          log.Named("replication"),
	}
}

// SetLocalPeer records the local peer. It never gets an actor.
func (r *Replicator) SetLocalPeer(p messages.PeerID) {
	r.local = p
	if _, ok := r.actors[p]; ok && p != 0 {
		r.destroy(p)
	}
	delete(r.pending, p)
}

// Advance starts a new net tick and returns its number.
func (r *Replicator) Advance() uint64 {
	r.tick++
	return r.tick
}

func (r *Replicator) Tick() uint64 {
	return r.tick
}

// Spawn creates the actor for the peer. A second spawn without a despawn
// in between is a duplicate and changes nothing.
func (r *Replicator) Spawn(m *messages.HumanSpawn) {
	if m.Peer == r.local {
		r.log.Debug("ignoring spawn for local peer", zap.Uint32("peer", uint32(m.Peer)))
		return
	}
	if _, ok := r.actors[m.Peer]; ok {
		if !r.warned[m.Peer] {
			r.warned[m.Peer] = true
			r.log.Warn("duplicate spawn", zap.Uint32("peer", uint32(m.Peer)))
		}
		return
	}
	entry := factory.CreateHuman(r.ecs, m, r.tick)
	r.actors[m.Peer] = entry.Entity()
	r.log.Info("spawned human", zap.Uint32("peer", uint32(m.Peer)), zap.Uint64("profile", m.SpawnProfile))

	buffered := r.pending[m.Peer]
	delete(r.pending, m.Peer)
	cutoff := r.now().Add(-r.bufferWindow)
	for _, p := range buffered {
		if p.at.Before(cutoff) {
			continue
		}
		r.apply(entry, p.msg)
	}
}

// Despawn destroys the actor if there is one. Repeats are ignored.
func (r *Replicator) Despawn(m *messages.HumanDespawn) {
	delete(r.pending, m.Peer)
	if _, ok := r.actors[m.Peer]; !ok {
		return
	}
	r.destroy(m.Peer)
	r.log.Info("despawned human", zap.Uint32("peer", uint32(m.Peer)), zap.Uint8("reason", uint8(m.Reason)))
}

// Update applies to the peer's actor, or buffers the update until the
// spawn arrives.
func (r *Replicator) Update(m *messages.HumanUpdate) {
	if m.Peer == r.local {
		return
	}
	if e, ok := r.actors[m.Peer]; ok {
		r.apply(r.ecs.World.Entry(e), m)
		return
	}
	q := append(r.pending[m.Peer], pendingUpdate{msg: m, at: r.now()})
	if len(q) > r.bufferSize {
		dropped := len(q) - r.bufferSize
		q = slices.Delete(q, 0, dropped)
		r.log.Debug("dropped buffered updates", zap.Uint32("peer", uint32(m.Peer)), zap.Int("dropped", dropped))
	}
	r.pending[m.Peer] = q
}

// ExpirePending drops buffered updates older than the buffer window.
func (r *Replicator) ExpirePending() {
	cutoff := r.now().Add(-r.bufferWindow)
	for peer, q := range r.pending {
		i := 0
		for i < len(q) && q[i].at.Before(cutoff) {
			i++
		}
		if i == 0 {
			continue
		}
		r.log.Debug("expired buffered updates", zap.Uint32("peer", uint32(peer)), zap.Int("dropped", i))
		if i == len(q) {
			delete(r.pending, peer)
			continue
		}
		r.pending[peer] = q[i:]
	}
}

func (r *Replicator) apply(entry *donburi.Entry, m *messages.HumanUpdate) {
	h := components.Human.Get(entry)
	h.Transform = m.Transform
	h.Inputs = m.Inputs
	h.ServerTick = m.Tick
	h.LastUpdateTick = r.tick
}

// Actor returns a copy of the peer's replicated state.
func (r *Replicator) Actor(p messages.PeerID) (components.HumanData, bool) {
	e, ok := r.actors[p]
	if !ok || !r.ecs.World.Valid(e) {
		return components.HumanData{}, false
	}
	return *components.Human.Get(r.ecs.World.Entry(e)), true
}

// Count returns the number of live actors.
func (r *Replicator) Count() int {
	return len(r.actors)
}

// Peers lists the peers with a live actor, sorted.
func (r *Replicator) Peers() []messages.PeerID {
	out := make([]messages.PeerID, 0, len(r.actors))
	for p := range r.actors {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Pending returns how many updates are buffered for p.
func (r *Replicator) Pending(p messages.PeerID) int {
	return len(r.pending[p])
}

// DestroyAll removes every actor and buffered update. It returns the
// number of actors destroyed.
func (r *Replicator) DestroyAll() int {
	n := len(r.actors)
	for p := range r.actors {
		r.destroy(p)
	}
	clear(r.pending)
	clear(r.warned)
	if n > 0 {
		r.log.Info("destroyed all humans", zap.Int("count", n))
	}
	return n
}

func (r *Replicator) destroy(p messages.PeerID) {
	e := r.actors[p]
	delete(r.actors, p)
	delete(r.warned, p)
	if r.ecs.World.Valid(e) {
		r.ecs.World.Remove(e)
	}
}
