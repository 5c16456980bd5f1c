package messages

import "github.com/automoto/coopmod/shared/bitstream"

// DespawnReason says why a remote human went away.
type DespawnReason uint8

const (
	DespawnLeft DespawnReason = iota
	DespawnKicked
	DespawnTimeout
)

// HumanSpawn announces a remote human joining the session.
type HumanSpawn struct {
	Peer         PeerID
	SpawnProfile uint64
	Transform    Transform
	Inputs       Inputs
}

func (*HumanSpawn) ID() ID { return IDHumanSpawn }

func (m *HumanSpawn) Serialize(s *bitstream.Stream) error {
	serializePeer(s, &m.Peer)
	s.Uint64(&m.SpawnProfile)
	m.Transform.serialize(s)
	m.Inputs.serialize(s)
	return s.Err()
}

func (m *HumanSpawn) Valid() bool {
	return m.Peer != 0 && m.Transform.finite() && m.Inputs.finite()
}

// HumanDespawn removes a remote human.
type HumanDespawn struct {
	Peer   PeerID
	Reason DespawnReason
}

func (*HumanDespawn) ID() ID { return IDHumanDespawn }

func (m *HumanDespawn) Serialize(s *bitstream.Stream) error {
	serializePeer(s, &m.Peer)
	reason := uint8(m.Reason)
	s.Uint8(&reason)
	m.Reason = DespawnReason(reason)
	return s.Err()
}

func (m *HumanDespawn) Valid() bool {
	return m.Peer != 0 && m.Reason <= DespawnTimeout
}

// HumanUpdate is the periodic world-state update for one remote human.
type HumanUpdate struct {
	Peer      PeerID
	Tick      uint32 // server tick the state was sampled at
	Transform Transform
	Inputs    Inputs
}

func (*HumanUpdate) ID() ID { return IDHumanUpdate }

func (m *HumanUpdate) Serialize(s *bitstream.Stream) error {
	serializePeer(s, &m.Peer)
	s.Uint32(&m.Tick)
	m.Transform.serialize(s)
	m.Inputs.serialize(s)
	return s.Err()
}

func (m *HumanUpdate) Valid() bool {
	return m.Peer != 0 && m.Transform.finite() && m.Inputs.finite()
}

// HumanSelfUpdate is the local peer's authoritative state, sent every
// self-update tick.
type HumanSelfUpdate struct {
	SpawnProfile uint64
}

func (*HumanSelfUpdate) ID() ID { return IDHumanSelfUpdate }

func (m *HumanSelfUpdate) Serialize(s *bitstream.Stream) error {
	s.Uint64(&m.SpawnProfile)
	return s.Err()
}

func (*HumanSelfUpdate) Valid() bool { return true }

func serializePeer(s *bitstream.Stream, p *PeerID) {
	v := uint32(*p)
	s.Uint32(&v)
	*p = PeerID(v)
}
