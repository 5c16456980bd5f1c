package archetypes

import (
	"github.com/automoto/coopmod/components"
	"github.com/automoto/coopmod/tags"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// LayerDefault is the only ecs layer the session world uses.
const LayerDefault ecs.LayerID = 0

var (
	Human = newArchetype(
		tags.Human,
		components.Human,
	)
)

type archetype struct {
	components []donburi.IComponentType
}

func newArchetype(cs ...donburi.IComponentType) *archetype {
	return &archetype{
		components: cs,
	}
}

func (a *archetype) Spawn(ecs *ecs.ECS, cs ...donburi.IComponentType) *donburi.Entry {
	e := ecs.World.Entry(ecs.Create(
		LayerDefault,
		append(a.components, cs...)...,
	))
	return e
}
