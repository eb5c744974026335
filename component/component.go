// Package component provides the component-type identifier registry and the
// fixed-size type-set mask used by query descriptors and the result cache.
//
// Component types are interned once at startup into small integer IDs so that
// descriptor hashing, equality and dependency tracking operate on plain
// integers instead of runtime type metadata.
package component

import (
	"errors"
	"fmt"
	"sync"
)

// MaxTypes is the maximum number of distinct component types a registry can
// hold. Fixed at 256 so a type set fits into a four-word Mask.
const MaxTypes = 256

// TypeID identifies a registered component type.
type TypeID uint8

// ErrTooManyTypes is returned when registering more than MaxTypes types.
var ErrTooManyTypes = errors.New("component: too many component types")

// Registry interns component-type names into stable TypeIDs.
//
// IDs are assigned in registration order and never recycled. Registration is
// expected to happen during startup; lookups are safe from any goroutine.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]TypeID
	names  []string
}

// NewRegistry creates an empty component-type registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]TypeID, 16),
	}
}

// Register interns name and returns its TypeID. Registering the same name
// twice returns the ID assigned on first registration.
func (r *Registry) Register(name string) (TypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return id, nil
	}
	if len(r.names) >= MaxTypes {
		return 0, fmt.Errorf("%w: limit is %d", ErrTooManyTypes, MaxTypes)
	}
	id := TypeID(len(r.names))
	r.byName[name] = id
	r.names = append(r.names, name)
	return id, nil
}

// MustRegister is Register that panics on failure. Intended for startup-time
// type tables where running out of IDs is a programming error.
func (r *Registry) MustRegister(name string) TypeID {
	id, err := r.Register(name)
	if err != nil {
		panic(err)
	}
	return id
}

// Lookup returns the TypeID for name, if registered.
func (r *Registry) Lookup(name string) (TypeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Name returns the registered name for id, or "" if id was never assigned.
func (r *Registry) Name(id TypeID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.names) {
		return ""
	}
	return r.names[id]
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
