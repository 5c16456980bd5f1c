package network

import (
	"errors"

	"github.com/automoto/coopmod/shared/messages"
)

var (
	ErrNotConnected  = errors.New("not connected")
	ErrSendQueueFull = errors.New("send queue full")
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoinedGame:
		return "joined"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Transport is the peer connection the session states drive. Receive and
// Send never block the game thread; I/O happens on the transport's own
// goroutines.
type Transport interface {
	// Connect starts connecting in the background and sends hello once
	// the connection is up.
	Connect(endpoint string, hello *messages.Handshake)
	State() ClientState
	LastError() error
	// PeerID is the id the server assigned, valid once joined.
	PeerID() messages.PeerID
	// Receive drains the inbound human frames, in delivery order.
	Receive() [][]byte
	Send(frame []byte) error
	Disconnect()
}
