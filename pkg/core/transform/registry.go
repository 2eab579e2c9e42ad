// core/transform/registry.go
package transform

import (
	"fmt"
	"sort"
	"sync"
)

// Transformer rewrites a decoded argument before the server function sees it.
type Transformer[T any] func(T) (T, error)

var (
	mu  sync.RWMutex
	reg = map[string]map[string]any{} // function path -> name -> Transformer[T] (stored as any)
)

// Register binds a named transformer to the server function at path.
func Register[T any](path, name string, fn Transformer[T]) {
	if path == "" || name == "" || fn == nil {
		panic("transform: path, name, fn required")
	}
	mu.Lock()
	defer mu.Unlock()
	m, ok := reg[path]
	if !ok {
		m = make(map[string]any)
		reg[path] = m
	}
	if _, dup := m[name]; dup {
		panic("transform: duplicate " + path + "/" + name)
	}
	m[name] = fn
}

// Resolve returns the concrete transformers for T in the order requested.
func Resolve[T any](path string, names []string) ([]Transformer[T], error) {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := reg[path]
	if !ok {
		return nil, fmt.Errorf("transform: no registry for %q", path)
	}
	out := make([]Transformer[T], 0, len(names))
	for _, n := range names {
		raw, ok := m[n]
		if !ok {
			return nil, fmt.Errorf("transform: %q not found in %q", n, path)
		}
		fn, ok := raw.(Transformer[T])
		if !ok {
			return nil, fmt.Errorf("transform: type mismatch for %q in %q", n, path)
		}
		out = append(out, fn)
	}
	return out, nil
}

// Apply runs chain in order, stopping at the first error.
func Apply[T any](chain []Transformer[T], v T) (T, error) {
	var err error
	for _, fn := range chain {
		if v, err = fn(v); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Names lists the transformers registered for path.
func Names(path string) []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg[path]))
	for n := range reg[path] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
