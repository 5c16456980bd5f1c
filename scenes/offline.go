package scenes

import (
	"fmt"
	"time"

	"github.com/automoto/coopmod/bridge"
	"github.com/automoto/coopmod/shared/messages"
	"github.com/automoto/coopmod/statemachine"
	"go.uber.org/zap"
)

// OfflineEndpoint is the endpoint recorded for offline sessions.
const OfflineEndpoint = "offline"

// OfflineScene runs the replication pipeline against a local message
// source. Leaving it goes straight back to the menu.
type OfflineScene struct {
	scene
	token       *bridge.KeepAwakeToken
	unsubscribe func()
	active      bool
	leaving     bool
}

func NewOfflineScene(d *Deps) *OfflineScene {
	return &OfflineScene{scene: scene{id: SessionOfflineDebug, d: d}}
}

func (o *OfflineScene) OnEnter(m *statemachine.Machine) error {
	t, err := o.d.NewOfflineTransport()
	if err != nil {
		return fmt.Errorf("offline transport: %w", err)
	}
	tok, err := o.d.Bridge.KeepAwake.Acquire(OfflineRequester, false)
	if err != nil {
		return fmt.Errorf("offline keep-awake: %w", err)
	}
	o.token = tok

	s := o.d.Session
	s.attach(t, true)
	t.Connect(OfflineEndpoint, &messages.Handshake{Version: o.d.Config.Version, SpawnProfile: s.OwnProfile})
	s.LocalPeer = t.PeerID()
	o.d.startPipeline("")

	o.active = true
	o.leaving = false
	o.unsubscribe = o.d.subscribe(SessionChannel, func() bool { return o.active }, func(cmd *bridge.Command) {
		switch cmd.Name {
		case "disconnect":
			o.leave(m)
			cmd.Complete(map[string]string{"state": stateName(Menu)})
		case "status":
			cmd.Complete(s.Status())
		default:
			cmd.Fail(ErrUnknownCommand)
		}
	})
	o.d.Log.Info("offline session started")
	return nil
}

func (o *OfflineScene) OnUpdate(m *statemachine.Machine, _ time.Duration) {
	p := o.d.Session.pipeline
	if o.leaving || p == nil {
		return
	}
	if err := p.update(); err != nil {
		o.d.Log.Info("offline source ended", zap.Error(err))
		o.d.Session.DisconnectReason = err.Error()
		o.leave(m)
	}
}

func (o *OfflineScene) leave(m *statemachine.Machine) {
	if o.leaving {
		return
	}
	o.leaving = true
	o.d.request(m, Menu)
}

func (o *OfflineScene) OnExit(*statemachine.Machine) error {
	o.active = false
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	o.d.Session.Teardown(o.d.Log)
	o.token.Release()
	return nil
}
