// Package messages defines the wire messages exchanged with the session
// server: the framework's game-sync messages and the human replication
// messages layered on top of them.
package messages

import "github.com/automoto/coopmod/shared/bitstream"

// ID identifies a message type on the wire. Changing an ID is a wire break.
type ID uint8

// Framework ids. The game-sync framework reserves 1..IDFrameworkLast; 0 is
// never sent.
const (
	IDInvalid ID = iota
	IDHandshake
	IDHandshakeAccepted
	IDHandshakeRejected
	IDPing
	IDPong
	IDDisconnect

	IDFrameworkLast = IDDisconnect
)

// Human replication ids, at fixed offsets after the framework range.
const (
	IDHumanSpawn ID = IDFrameworkLast + 1 + iota
	IDHumanDespawn
	IDHumanUpdate
	IDHumanSelfUpdate

	IDModLast = IDHumanSelfUpdate
)

// IsFramework reports whether id belongs to the framework's reserved range.
func IsFramework(id ID) bool {
	return id > IDInvalid && id <= IDFrameworkLast
}

// IsMod reports whether id belongs to the human replication range.
func IsMod(id ID) bool {
	return id > IDFrameworkLast && id <= IDModLast
}

var idNames = map[ID]string{
	IDHandshake:         "HANDSHAKE",
	IDHandshakeAccepted: "HANDSHAKE_ACCEPTED",
	IDHandshakeRejected: "HANDSHAKE_REJECTED",
	IDPing:              "PING",
	IDPong:              "PONG",
	IDDisconnect:        "DISCONNECT",
	IDHumanSpawn:        "HUMAN_SPAWN",
	IDHumanDespawn:      "HUMAN_DESPAWN",
	IDHumanUpdate:       "HUMAN_UPDATE",
	IDHumanSelfUpdate:   "HUMAN_SELF_UPDATE",
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "UNKNOWN"
}

// Message is the game-sync message contract. Serialize reads or writes the
// payload depending on the stream's mode, with the same call sequence in
// both directions.
type Message interface {
	ID() ID
	Serialize(s *bitstream.Stream) error
	Valid() bool
}

// PeerID is the stable id the server assigns to each connected client.
// Zero means "no peer".
type PeerID uint32
