package factory

import (
	"github.com/automoto/coopmod/archetypes"
	"github.com/automoto/coopmod/components"
	"github.com/automoto/coopmod/shared/messages"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// CreateHuman spawns the replication actor for a remote peer.
func CreateHuman(ecs *ecs.ECS, spawn *messages.HumanSpawn, tick uint64) *donburi.Entry {
	human := archetypes.Human.Spawn(ecs)
	components.Human.SetValue(human, components.HumanData{
		Peer:           spawn.Peer,
		SpawnProfile:   spawn.SpawnProfile,
		Transform:      spawn.Transform,
		Inputs:         spawn.Inputs,
		LastUpdateTick: tick,
	})
	return human
}
