// Package scenes holds the client lifecycle states the mod moves through:
// the menu, connecting, a live or offline session, tearing a session down,
// and the terminal shutdown.
package scenes

import (
	"errors"
	"time"

	"github.com/automoto/coopmod/bridge"
	"github.com/automoto/coopmod/config"
	"github.com/automoto/coopmod/network"
	"github.com/automoto/coopmod/shared/protocol"
	"github.com/automoto/coopmod/statemachine"
	"go.uber.org/zap"
)

const (
	Menu statemachine.StateID = iota
	SessionConnection
	SessionOfflineDebug
	SessionConnected
	SessionDisconnection
	Shutdown
)

// Command channel subsystems.
const (
	MenuChannel    = "menu"
	SessionChannel = "session"
)

// Keep-awake requesters owned by the states.
const (
	MenuRequester    = "menu"
	SessionRequester = "session"
	OfflineRequester = "session.offline"
)

var (
	ErrStateInactive   = errors.New("state no longer active")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrSessionNotReady = errors.New("session not ready")
)

// Deps is what every state needs from the mod.
type Deps struct {
	Config   *config.Config
	Bridge   *bridge.Bridge
	Session  *Session
	Registry *protocol.Registry

	NewTransport        func() network.Transport
	NewOfflineTransport func() (network.Transport, error)

	// Shutdown runs the mod's shutdown sequence. Called once, on entering Shutdown.
	Shutdown func()

	Now func() time.Time
	Log *zap.Logger
}

// Build registers every lifecycle state on m and marks Shutdown terminal.
func Build(m *statemachine.Machine, d *Deps) error {
	if d.Now == nil {
		d.Now = time.Now
	}
	err := m.Register(
		NewMenuScene(d),
		NewConnectionScene(d),
		NewOfflineScene(d),
		NewConnectedScene(d),
		NewDisconnectionScene(d),
		NewShutdownScene(d),
	)
	if err != nil {
		return err
	}
	m.SetTerminal(Shutdown)
	m.OnTransition(func(_, to statemachine.State) {
		d.Session.CurrentState = to.Name()
	})
	return nil
}

// request asks for the next state and records it on the session. Failures
// are logged, never fatal.
func (d *Deps) request(m *statemachine.Machine, id statemachine.StateID) {
	if err := m.RequestNextState(id); err != nil {
		d.Log.Warn("state request rejected", zap.Int("state", int(id)), zap.Error(err))
		return
	}
	d.Session.LastRequestedState = stateName(id)
}

// subscribe listens on a native-to-embedded channel and runs each command
// on the game thread. Commands that arrive after the owning state went
// inactive are failed instead of run.
func (d *Deps) subscribe(subsystem string, active func() bool, h func(cmd *bridge.Command)) (unsubscribe func()) {
	return d.Bridge.Commands.NativeToEmbedded(subsystem).Subscribe(func(cmd *bridge.Command) {
		err := d.Bridge.GameThread.RunOnGameThread(bridge.PriorityNormal, func() {
			if !active() {
				cmd.Fail(ErrStateInactive)
				return
			}
			h(cmd)
		})
		if err != nil {
			cmd.Fail(err)
		}
	})
}

// announce emits a notification to the native side. Nobody listening is fine.
func (d *Deps) announce(subsystem, name string, params map[string]string) {
	d.Bridge.Commands.EmbeddedToNative(subsystem).Emit(name, params, func(_ map[string]string, errText string) {
		if errText != "" {
			d.Log.Debug("announcement not handled", zap.String("command", name), zap.String("error", errText))
		}
	})
}

func stateName(id statemachine.StateID) string {
	switch id {
	case Menu:
		return "Menu"
	case SessionConnection:
		return "SessionConnection"
	case SessionOfflineDebug:
		return "SessionOfflineDebug"
	case SessionConnected:
		return "SessionConnected"
	case SessionDisconnection:
		return "SessionDisconnection"
	case Shutdown:
		return "Shutdown"
	}
	return "Unknown"
}

// scene carries the id and name every state reports.
type scene struct {
	id statemachine.StateID
	d  *Deps
}

func (s scene) ID() statemachine.StateID { return s.id }
func (s scene) Name() string             { return stateName(s.id) }
