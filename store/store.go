// Package store defines the component-store boundary the query engine
// consumes, and provides Index, a roaring-bitmap posting-list store that
// implements it.
//
// The engine itself only depends on the Scanner interface: a count primitive
// to size result buffers and an iteration primitive for cache-miss scans. Any
// store implementation must uphold the invalidation contract documented on
// Mutator, or cached query results become silently wrong.
package store

import (
	"iter"

	"github.com/quergo/quergo/component"
	"github.com/quergo/quergo/core"
	"github.com/quergo/quergo/query"
)

// Scanner is the read boundary of a component store.
type Scanner interface {
	// Count returns the number of entities matching desc. It is cheap
	// relative to a scan and is used to size result buffers.
	Count(desc query.Descriptor) int

	// Scan yields the entities matching desc in ascending ID order. The
	// yielded set is a snapshot: mutations during iteration do not corrupt
	// it, but are not reflected either.
	Scan(desc query.Descriptor) iter.Seq[core.EntityID]
}

// Invalidator receives mutation notifications. The result cache implements
// this; a store wired to a cache MUST call it on every entity create/destroy
// and component add/remove. This contract is a precondition for cache
// correctness, not an optimization hint.
type Invalidator interface {
	InvalidateAll()
	InvalidateType(id component.TypeID)
}

// Mutator is the write boundary of a component store.
type Mutator interface {
	CreateEntity(types ...component.TypeID) core.EntityID
	DestroyEntity(id core.EntityID) bool
	AddComponent(id core.EntityID, t component.TypeID) bool
	RemoveComponent(id core.EntityID, t component.TypeID) bool
}
