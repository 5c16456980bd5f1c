package protocol

import (
	"fmt"

	"github.com/automoto/coopmod/shared/messages"
)

// Factory returns a zero message ready to be read into.
type Factory func() messages.Message

// Registry is the dispatch table from wire id to message factory.
type Registry struct {
	factories map[messages.ID]Factory
}

// NewRegistry returns a registry holding the framework's own messages.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[messages.ID]Factory)}
	framework := []Factory{
		func() messages.Message { return &messages.Handshake{} },
		func() messages.Message { return &messages.HandshakeAccepted{} },
		func() messages.Message { return &messages.HandshakeRejected{} },
		func() messages.Message { return &messages.Ping{} },
		func() messages.Message { return &messages.Pong{} },
		func() messages.Message { return &messages.Disconnect{} },
	}
	for _, f := range framework {
		r.factories[f().ID()] = f
	}
	return r
}

// Register adds a factory. The id is taken from a message the factory
// builds; ids must be unique.
func (r *Registry) Register(f Factory) error {
	id := f().ID()
	if id == messages.IDInvalid {
		return fmt.Errorf("register %s: id 0 is reserved", id)
	}
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("register %s (%d): id already registered", id, id)
	}
	r.factories[id] = f
	return nil
}

// New builds an empty message for id.
func (r *Registry) New(id messages.ID) (messages.Message, bool) {
	f, ok := r.factories[id]
	if !ok {
		return nil, false
	}
	return f(), true
}

// RegisterMessages registers the human replication messages. It must be
// called before any frame is decoded.
func RegisterMessages(r *Registry) error {
	human := []Factory{
		func() messages.Message { return &messages.HumanSpawn{} },
		func() messages.Message { return &messages.HumanDespawn{} },
		func() messages.Message { return &messages.HumanUpdate{} },
		func() messages.Message { return &messages.HumanSelfUpdate{} },
	}
	for _, f := range human {
		if err := r.Register(f); err != nil {
			return err
		}
	}
	return nil
}
