package scenes

import (
	"fmt"
	"strings"
	"time"

	"github.com/automoto/coopmod/bridge"
	"github.com/automoto/coopmod/statemachine"
	"go.uber.org/zap"
)

// MenuOptions are the choices the menu accepts, in display order.
var MenuOptions = []string{"connect", "offline", "quit"}

// MenuScene waits for the user to pick a session, offline debug or quit.
type MenuScene struct {
	scene
	token       *bridge.KeepAwakeToken
	unsubscribe func()
	active      bool
}

func NewMenuScene(d *Deps) *MenuScene {
	return &MenuScene{scene: scene{id: Menu, d: d}}
}

func (ms *MenuScene) OnEnter(m *statemachine.Machine) error {
	tok, err := ms.d.Bridge.KeepAwake.Acquire(MenuRequester, true)
	if err != nil {
		return fmt.Errorf("menu keep-awake: %w", err)
	}
	ms.token = tok
	ms.active = true
	ms.unsubscribe = ms.d.subscribe(MenuChannel, func() bool { return ms.active }, func(cmd *bridge.Command) {
		ms.choose(m, cmd)
	})

	ms.d.announce(MenuChannel, "show", map[string]string{
		"options": strings.Join(MenuOptions, ","),
		"reason":  ms.d.Session.DisconnectReason,
	})
	return nil
}

func (ms *MenuScene) OnUpdate(*statemachine.Machine, time.Duration) {}

func (ms *MenuScene) OnExit(*statemachine.Machine) error {
	ms.active = false
	if ms.unsubscribe != nil {
		ms.unsubscribe()
		ms.unsubscribe = nil
	}
	ms.token.Release()
	return nil
}

func (ms *MenuScene) choose(m *statemachine.Machine, cmd *bridge.Command) {
	var next statemachine.StateID
	switch cmd.Name {
	case "connect":
		if ep := cmd.Param("endpoint"); ep != "" {
			ms.d.Session.Endpoint = ep
		}
		next = SessionConnection
	case "offline":
		next = SessionOfflineDebug
	case "quit":
		next = Shutdown
	default:
		cmd.Fail(fmt.Errorf("menu %q: %w", cmd.Name, ErrUnknownCommand))
		return
	}

	ms.d.Log.Info("menu choice", zap.String("choice", cmd.Name))
	if err := m.RequestNextState(next); err != nil {
		cmd.Fail(err)
		return
	}
	ms.d.Session.LastRequestedState = stateName(next)
	cmd.Complete(map[string]string{"state": stateName(next)})
}
