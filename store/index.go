package store

import (
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quergo/quergo/component"
	"github.com/quergo/quergo/core"
	"github.com/quergo/quergo/query"
)

// Index is an in-memory component store backed by one roaring posting list
// per component type. A structural query resolves to bitmap algebra:
// intersection of the required postings, intersected with the union of the
// any-of postings, minus the excluded postings.
//
// Index is safe for concurrent readers and writers. The lock is held only for
// bitmap operations; Scan snapshots the match set before yielding, so caller
// iteration never blocks mutators.
type Index struct {
	mu       sync.RWMutex
	postings [component.MaxTypes]*roaring.Bitmap
	masks    []component.Mask // per-entity component set, indexed by ID
	live     *roaring.Bitmap
	free     []core.EntityID
	next     uint32

	inv Invalidator // may be nil
}

var (
	_ Scanner = (*Index)(nil)
	_ Mutator = (*Index)(nil)
)

// NewIndex creates an empty Index. inv receives a notification for every
// mutation; pass the result cache (or nil when running uncached).
func NewIndex(inv Invalidator) *Index {
	return &Index{
		live: roaring.New(),
		inv:  inv,
	}
}

// CreateEntity allocates an entity, optionally with an initial component set,
// and notifies the invalidator once.
func (x *Index) CreateEntity(types ...component.TypeID) core.EntityID {
	x.mu.Lock()
	var id core.EntityID
	if n := len(x.free); n > 0 {
		id = x.free[n-1]
		x.free = x.free[:n-1]
	} else {
		id = core.EntityID(x.next)
		x.next++
	}
	x.live.Add(uint32(id))

	for int(id) >= len(x.masks) {
		x.masks = append(x.masks, component.Mask{})
	}
	var m component.Mask
	for _, t := range types {
		m.Set(t)
		x.posting(t).Add(uint32(id))
	}
	x.masks[id] = m
	x.mu.Unlock()

	x.notifyTouched(m)
	return id
}

// DestroyEntity removes id and its components, recycling the identifier.
// Reports false for an entity that is not alive.
func (x *Index) DestroyEntity(id core.EntityID) bool {
	x.mu.Lock()
	if !x.live.Contains(uint32(id)) {
		x.mu.Unlock()
		return false
	}
	m := x.masks[id]
	for _, t := range m.TypeIDs() {
		x.postings[t].Remove(uint32(id))
	}
	x.masks[id] = component.Mask{}
	x.live.Remove(uint32(id))
	x.free = append(x.free, id)
	x.mu.Unlock()

	x.notifyTouched(m)
	return true
}

// AddComponent attaches t to id. Reports false if id is not alive or already
// has t; no notification fires in that case.
func (x *Index) AddComponent(id core.EntityID, t component.TypeID) bool {
	x.mu.Lock()
	if !x.live.Contains(uint32(id)) || x.masks[id].Has(t) {
		x.mu.Unlock()
		return false
	}
	x.masks[id].Set(t)
	x.posting(t).Add(uint32(id))
	x.mu.Unlock()

	if x.inv != nil {
		x.inv.InvalidateType(t)
	}
	return true
}

// RemoveComponent detaches t from id. Reports false if id is not alive or
// does not have t.
func (x *Index) RemoveComponent(id core.EntityID, t component.TypeID) bool {
	x.mu.Lock()
	if !x.live.Contains(uint32(id)) || !x.masks[id].Has(t) {
		x.mu.Unlock()
		return false
	}
	x.masks[id].Unset(t)
	x.postings[t].Remove(uint32(id))
	x.mu.Unlock()

	if x.inv != nil {
		x.inv.InvalidateType(t)
	}
	return true
}

// Alive reports whether id is a live entity.
func (x *Index) Alive(id core.EntityID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.live.Contains(uint32(id))
}

// Has reports whether id currently has component t.
func (x *Index) Has(id core.EntityID, t component.TypeID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.live.Contains(uint32(id)) && x.masks[id].Has(t)
}

// Len returns the number of live entities.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return int(x.live.GetCardinality())
}

// Count returns the number of entities matching desc.
func (x *Index) Count(desc query.Descriptor) int {
	x.mu.RLock()
	m := x.matchLocked(desc)
	x.mu.RUnlock()
	return int(m.GetCardinality())
}

// Scan yields the entities matching desc in ascending ID order. The match
// set is snapshotted under the read lock before the first yield.
func (x *Index) Scan(desc query.Descriptor) iter.Seq[core.EntityID] {
	return func(yield func(core.EntityID) bool) {
		x.mu.RLock()
		m := x.matchLocked(desc)
		x.mu.RUnlock()

		it := m.Iterator()
		for it.HasNext() {
			if !yield(core.EntityID(it.Next())) {
				return
			}
		}
	}
}

// posting returns the posting list for t, creating it on first use.
// Caller holds the write lock.
func (x *Index) posting(t component.TypeID) *roaring.Bitmap {
	if x.postings[t] == nil {
		x.postings[t] = roaring.New()
	}
	return x.postings[t]
}

// matchLocked computes the match set for desc as a fresh bitmap.
// Caller holds at least the read lock.
func (x *Index) matchLocked(desc query.Descriptor) *roaring.Bitmap {
	required := desc.Required()
	inputs := make([]*roaring.Bitmap, 0, len(required))
	for _, t := range required {
		p := x.postings[t]
		if p == nil || p.IsEmpty() {
			return roaring.New()
		}
		inputs = append(inputs, p)
	}

	var m *roaring.Bitmap
	if len(inputs) == 1 {
		m = inputs[0].Clone()
	} else {
		m = roaring.FastAnd(inputs...)
	}

	if anyOf := desc.AnyOf(); len(anyOf) > 0 {
		group := roaring.New()
		for _, t := range anyOf {
			if p := x.postings[t]; p != nil {
				group.Or(p)
			}
		}
		m.And(group)
	}

	for _, t := range desc.Excluded() {
		if p := x.postings[t]; p != nil {
			m.AndNot(p)
		}
	}
	return m
}

// notifyTouched reports each type in m as touched, or the whole store when
// the mutation involved no components (entity bookkeeping only).
func (x *Index) notifyTouched(m component.Mask) {
	if x.inv == nil {
		return
	}
	if m.IsEmpty() {
		x.inv.InvalidateAll()
		return
	}
	for _, t := range m.TypeIDs() {
		x.inv.InvalidateType(t)
	}
}
