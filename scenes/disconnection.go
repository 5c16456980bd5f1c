package scenes

import (
	"strconv"
	"time"

	"github.com/automoto/coopmod/statemachine"
	"go.uber.org/zap"
)

// DisconnectionScene tears the session down and returns to the menu on
// its first tick.
type DisconnectionScene struct {
	scene
	requested bool
}

func NewDisconnectionScene(d *Deps) *DisconnectionScene {
	return &DisconnectionScene{scene: scene{id: SessionDisconnection, d: d}}
}

func (ds *DisconnectionScene) OnEnter(*statemachine.Machine) error {
	s := ds.d.Session
	destroyed := s.Teardown(ds.d.Log)
	s.ReleaseAwake()
	ds.requested = false

	reason := s.DisconnectReason
	if reason == "" {
		reason = "disconnected"
	}
	ds.d.Log.Info("session ended", zap.String("reason", reason), zap.Int("actors", destroyed))
	ds.d.announce(SessionChannel, "disconnected", map[string]string{
		"reason": reason,
		"actors": strconv.Itoa(destroyed),
	})
	return nil
}

func (ds *DisconnectionScene) OnUpdate(m *statemachine.Machine, _ time.Duration) {
	if ds.requested {
		return
	}
	ds.requested = true
	ds.d.request(m, Menu)
}

func (ds *DisconnectionScene) OnExit(*statemachine.Machine) error {
	return nil
}
