package scenes

import (
	"time"

	"github.com/automoto/coopmod/bridge"
	"github.com/automoto/coopmod/statemachine"
	"go.uber.org/zap"
)

// ConnectedScene runs the replication pipeline against the live peer.
type ConnectedScene struct {
	scene
	unsubscribe func()
	active      bool
	leaving     bool
}

func NewConnectedScene(d *Deps) *ConnectedScene {
	return &ConnectedScene{scene: scene{id: SessionConnected, d: d}}
}

func (cs *ConnectedScene) OnEnter(m *statemachine.Machine) error {
	s := cs.d.Session
	if !s.Live() {
		return ErrSessionNotReady
	}
	if !s.awake.Live() {
		tok, err := cs.d.Bridge.KeepAwake.Acquire(SessionRequester, false)
		if err != nil {
			return err
		}
		s.holdAwake(tok)
	}
	cs.d.startPipeline(cs.d.Config.CapturePath)

	cs.active = true
	cs.leaving = false
	cs.unsubscribe = cs.d.subscribe(SessionChannel, func() bool { return cs.active }, func(cmd *bridge.Command) {
		switch cmd.Name {
		case "disconnect":
			cs.leave(m, "user disconnect")
			cmd.Complete(map[string]string{"state": stateName(SessionDisconnection)})
		case "status":
			cmd.Complete(s.Status())
		default:
			cmd.Fail(ErrUnknownCommand)
		}
	})
	cs.d.announce(SessionChannel, "connected", s.Status())
	return nil
}

func (cs *ConnectedScene) OnUpdate(m *statemachine.Machine, _ time.Duration) {
	p := cs.d.Session.pipeline
	if cs.leaving || p == nil {
		return
	}
	if err := p.update(); err != nil {
		cs.d.Log.Warn("session lost", zap.Error(err))
		cs.leave(m, err.Error())
	}
}

func (cs *ConnectedScene) leave(m *statemachine.Machine, reason string) {
	if cs.leaving {
		return
	}
	cs.leaving = true
	cs.d.Session.DisconnectReason = reason
	cs.d.request(m, SessionDisconnection)
}

func (cs *ConnectedScene) OnExit(*statemachine.Machine) error {
	cs.active = false
	if cs.unsubscribe != nil {
		cs.unsubscribe()
		cs.unsubscribe = nil
	}
	return nil
}
