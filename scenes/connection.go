package scenes

import (
	"errors"
	"fmt"
	"time"

	"github.com/automoto/coopmod/bridge"
	"github.com/automoto/coopmod/network"
	"github.com/automoto/coopmod/shared/messages"
	"github.com/automoto/coopmod/statemachine"
	"go.uber.org/zap"
)

var ErrConnectTimeout = errors.New("connection timed out")

// ConnectionScene brings up the peer and waits for the server to accept
// the handshake.
type ConnectionScene struct {
	scene
	token   *bridge.KeepAwakeToken
	started time.Time
	done    bool
}

func NewConnectionScene(d *Deps) *ConnectionScene {
	return &ConnectionScene{scene: scene{id: SessionConnection, d: d}}
}

func (cs *ConnectionScene) OnEnter(*statemachine.Machine) error {
	tok, err := cs.d.Bridge.KeepAwake.Acquire(SessionRequester, false)
	if err != nil {
		return fmt.Errorf("connection keep-awake: %w", err)
	}
	cs.token = tok
	cs.done = false
	cs.started = cs.d.Now()

	s := cs.d.Session
	s.Teardown(cs.d.Log)
	t := cs.d.NewTransport()
	s.attach(t, false)
	cs.d.Log.Info("connecting", zap.String("endpoint", s.Endpoint))
	t.Connect(s.Endpoint, &messages.Handshake{
		Version:      cs.d.Config.Version,
		SpawnProfile: s.OwnProfile,
	})
	return nil
}

func (cs *ConnectionScene) OnUpdate(m *statemachine.Machine, _ time.Duration) {
	if cs.done {
		return
	}
	s := cs.d.Session
	t := s.Transport()
	if t == nil {
		cs.fail(m, ErrSessionNotReady)
		return
	}

	switch t.State() {
	case network.StateJoinedGame:
		cs.done = true
		s.LocalPeer = t.PeerID()
		s.holdAwake(cs.token)
		cs.d.Log.Info("session joined", zap.Uint32("peer", uint32(s.LocalPeer)))
		cs.d.request(m, SessionConnected)
		return
	case network.StateError, network.StateDisconnected:
		cs.fail(m, network.DownError(t))
		return
	}

	if cs.d.elapsed(cs.started) >= cs.d.Config.ConnectTimeout {
		cs.fail(m, ErrConnectTimeout)
	}
}

func (cs *ConnectionScene) fail(m *statemachine.Machine, err error) {
	cs.done = true
	cs.d.Session.DisconnectReason = err.Error()
	cs.d.Log.Warn("connection failed", zap.Error(err))
	cs.d.request(m, SessionDisconnection)
}

// OnExit leaves the transport to the next state; Disconnection or the
// shutdown sequence tears it down.
func (cs *ConnectionScene) OnExit(*statemachine.Machine) error {
	cs.token.Release()
	return nil
}
