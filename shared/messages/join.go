package messages

import "github.com/automoto/coopmod/shared/bitstream"

// Handshake is sent by the client right after the transport connects.
type Handshake struct {
	Version      string
	SpawnProfile uint64
}

func (*Handshake) ID() ID { return IDHandshake }

func (m *Handshake) Serialize(s *bitstream.Stream) error {
	s.String(&m.Version)
	s.Uint64(&m.SpawnProfile)
	return s.Err()
}

func (*Handshake) Valid() bool { return true }

// HandshakeAccepted assigns the client its peer id.
type HandshakeAccepted struct {
	Peer       PeerID
	ServerName string
	TickRate   uint16
}

func (*HandshakeAccepted) ID() ID { return IDHandshakeAccepted }

func (m *HandshakeAccepted) Serialize(s *bitstream.Stream) error {
	peer := uint32(m.Peer)
	s.Uint32(&peer)
	m.Peer = PeerID(peer)
	s.String(&m.ServerName)
	s.Uint16(&m.TickRate)
	return s.Err()
}

func (m *HandshakeAccepted) Valid() bool { return m.Peer != 0 }

// HandshakeRejected ends the connection attempt.
type HandshakeRejected struct {
	Reason string
}

func (*HandshakeRejected) ID() ID { return IDHandshakeRejected }

func (m *HandshakeRejected) Serialize(s *bitstream.Stream) error {
	s.String(&m.Reason)
	return s.Err()
}

func (*HandshakeRejected) Valid() bool { return true }

type Ping struct {
	Nonce uint32
}

func (*Ping) ID() ID { return IDPing }

func (m *Ping) Serialize(s *bitstream.Stream) error {
	s.Uint32(&m.Nonce)
	return s.Err()
}

func (*Ping) Valid() bool { return true }

type Pong struct {
	Nonce uint32
}

func (*Pong) ID() ID { return IDPong }

func (m *Pong) Serialize(s *bitstream.Stream) error {
	s.Uint32(&m.Nonce)
	return s.Err()
}

func (*Pong) Valid() bool { return true }

// Disconnect is sent by the server before it drops the client.
type Disconnect struct {
	Reason string
}

func (*Disconnect) ID() ID { return IDDisconnect }

func (m *Disconnect) Serialize(s *bitstream.Stream) error {
	s.String(&m.Reason)
	return s.Err()
}

func (*Disconnect) Valid() bool { return true }
