package scenes

import (
	"time"

	"github.com/automoto/coopmod/statemachine"
)

// ShutdownScene is terminal. Entering it runs the mod shutdown sequence.
type ShutdownScene struct {
	scene
}

func NewShutdownScene(d *Deps) *ShutdownScene {
	return &ShutdownScene{scene: scene{id: Shutdown, d: d}}
}

func (ss *ShutdownScene) OnEnter(*statemachine.Machine) error {
	if ss.d.Shutdown != nil {
		ss.d.Shutdown()
	}
	return nil
}

func (ss *ShutdownScene) OnUpdate(*statemachine.Machine, time.Duration) {}

func (ss *ShutdownScene) OnExit(*statemachine.Machine) error {
	return nil
}
