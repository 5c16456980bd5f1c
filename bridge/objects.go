package bridge

import (
	"sort"
	"sync"
)

// NamedObjects lets unrelated subsystems publish and look up shared
// handles by name. The registry never owns what it points to.
type NamedObjects struct {
	mu      sync.RWMutex
	objects map[string]any
}

func NewNamedObjects() *NamedObjects {
	return &NamedObjects{objects: make(map[string]any)}
}

// Set publishes obj under name, replacing any previous value.
func (n *NamedObjects) Set(name string, obj any) {
	n.mu.Lock()
	n.objects[name] = obj
	n.mu.Unlock()
}

func (n *NamedObjects) Get(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	obj, ok := n.objects[name]
	return obj, ok
}

func (n *NamedObjects) Delete(name string) {
	n.mu.Lock()
	delete(n.objects, name)
	n.mu.Unlock()
}

// Clear removes every entry and returns the names that were set.
func (n *NamedObjects) Clear() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]string, 0, len(n.objects))
	for name := range n.objects {
		names = append(names, name)
	}
	clear(n.objects)
	sort.Strings(names)
	return names
}

// Lookup returns the object under name as a T.
func Lookup[T any](n *NamedObjects, name string) (T, bool) {
	var zero T
	obj, ok := n.Get(name)
	if !ok {
		return zero, false
	}
	v, ok := obj.(T)
	return v, ok
}
