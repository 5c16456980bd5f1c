package components

import (
	"github.com/automoto/coopmod/shared/messages"
	"github.com/yohamta/donburi"
)

// HumanData is the replicated state of one remote human.
type HumanData struct {
	Peer           messages.PeerID
	SpawnProfile   uint64
	Transform      messages.Transform
	Inputs         messages.Inputs
	ServerTick     uint32 // tick stamped on the last applied update
	LastUpdateTick uint64 // local net tick the last update was applied on
}

var Human = donburi.NewComponentType[HumanData]()
