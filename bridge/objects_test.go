package bridge

import (
	"sync"
	"testing"
)

func TestNamedObjects(t *testing.T) {
	n := NewNamedObjects()
	first := &struct{ v int }{1}
	n.Set("shared", first)
	n.Set("shared", &struct{ v int }{2})

	got, ok := Lookup[*struct{ v int }](n, "shared")
	if !ok || got.v != 2 {
		t.Fatalf("Lookup=%v %v, want overwrite to win", got, ok)
	}
	if _, ok := Lookup[string](n, "shared"); ok {
		t.Fatalf("Lookup with wrong type should fail")
	}

	n.Set("other", 3)
	names := n.Clear()
	if len(names) != 2 || names[0] != "other" || names[1] != "shared" {
		t.Fatalf("Clear=%v", names)
	}
	if _, ok := n.Get("shared"); ok {
		t.Fatalf("entry survived Clear")
	}
}

func TestNamedObjectsConcurrent(t *testing.T) {
	n := NewNamedObjects()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n.Set("k", i)
				n.Get("k")
			}
		}(i)
	}
	wg.Wait()
	if _, ok := n.Get("k"); !ok {
		t.Fatalf("missing key")
	}
}
