package store

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quergo/quergo/component"
	"github.com/quergo/quergo/core"
	"github.com/quergo/quergo/query"
)

const (
	position = component.TypeID(0)
	velocity = component.TypeID(1)
	health   = component.TypeID(2)
	frozen   = component.TypeID(3)
)

// recordingInvalidator captures mutation notifications.
type recordingInvalidator struct {
	mu      sync.Mutex
	all     int
	touched []component.TypeID
}

func (r *recordingInvalidator) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all++
}

func (r *recordingInvalidator) InvalidateType(id component.TypeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, id)
}

func collect(x *Index, d query.Descriptor) []core.EntityID {
	var out []core.EntityID
	for id := range x.Scan(d) {
		out = append(out, id)
	}
	return out
}

func TestIndexCreateDestroy(t *testing.T) {
	x := NewIndex(nil)

	a := x.CreateEntity(position)
	b := x.CreateEntity(position, velocity)
	assert.Equal(t, 2, x.Len())
	assert.True(t, x.Has(b, velocity))
	assert.False(t, x.Has(a, velocity))

	require.True(t, x.DestroyEntity(a))
	assert.False(t, x.Alive(a))
	assert.False(t, x.DestroyEntity(a), "double destroy reports false")
	assert.Equal(t, 1, x.Len())

	// Recycled ID starts with an empty component set.
	c := x.CreateEntity()
	assert.Equal(t, a, c)
	assert.False(t, x.Has(c, position))
}

func TestIndexAddRemoveComponent(t *testing.T) {
	x := NewIndex(nil)
	e := x.CreateEntity(position)

	assert.True(t, x.AddComponent(e, velocity))
	assert.False(t, x.AddComponent(e, velocity), "already present")
	assert.True(t, x.Has(e, velocity))

	assert.True(t, x.RemoveComponent(e, velocity))
	assert.False(t, x.RemoveComponent(e, velocity), "already absent")
	assert.False(t, x.Has(e, velocity))

	assert.False(t, x.AddComponent(9999, position), "dead entity")
}

func TestIndexScanRequired(t *testing.T) {
	x := NewIndex(nil)

	both := x.CreateEntity(position, velocity)
	x.CreateEntity(position)
	x.CreateEntity(velocity)
	x.CreateEntity()

	d := query.MustDescriptor([]component.TypeID{position, velocity}, nil, nil, 2)
	assert.Equal(t, 1, x.Count(d))
	assert.Equal(t, []core.EntityID{both}, collect(x, d))
}

func TestIndexScanExcluded(t *testing.T) {
	x := NewIndex(nil)

	plain := x.CreateEntity(position)
	x.CreateEntity(position, frozen)

	d := query.MustDescriptor([]component.TypeID{position}, []component.TypeID{frozen}, nil, 1)
	assert.Equal(t, []core.EntityID{plain}, collect(x, d))
	assert.Equal(t, 1, x.Count(d))
}

func TestIndexScanAnyOf(t *testing.T) {
	x := NewIndex(nil)

	withVel := x.CreateEntity(position, velocity)
	withHP := x.CreateEntity(position, health)
	x.CreateEntity(position)

	d := query.MustDescriptor(
		[]component.TypeID{position},
		nil,
		[]component.TypeID{velocity, health},
		1,
	)
	got := collect(x, d)
	assert.ElementsMatch(t, []core.EntityID{withVel, withHP}, got)
	assert.Equal(t, 2, x.Count(d))
}

func TestIndexScanAscendingOrder(t *testing.T) {
	x := NewIndex(nil)
	for i := 0; i < 100; i++ {
		x.CreateEntity(position)
	}

	d := query.MustDescriptor([]component.TypeID{position}, nil, nil, 1)
	got := collect(x, d)
	require.Len(t, got, 100)
	assert.True(t, slices.IsSorted(got))
}

func TestIndexScanMissingTypeIsEmpty(t *testing.T) {
	x := NewIndex(nil)
	x.CreateEntity(position)

	d := query.MustDescriptor([]component.TypeID{health}, nil, nil, 1)
	assert.Equal(t, 0, x.Count(d))
	assert.Empty(t, collect(x, d))
}

func TestIndexScanSnapshotSurvivesMutation(t *testing.T) {
	x := NewIndex(nil)
	for i := 0; i < 50; i++ {
		x.CreateEntity(position)
	}

	d := query.MustDescriptor([]component.TypeID{position}, nil, nil, 1)
	var seen int
	for id := range x.Scan(d) {
		// Mutating mid-iteration must not corrupt the snapshot.
		x.DestroyEntity(id)
		seen++
	}
	assert.Equal(t, 50, seen)
	assert.Equal(t, 0, x.Count(d))
}

func TestIndexInvalidationNotifications(t *testing.T) {
	rec := &recordingInvalidator{}
	x := NewIndex(rec)

	e := x.CreateEntity(position, velocity)
	assert.ElementsMatch(t, []component.TypeID{position, velocity}, rec.touched)

	rec.touched = nil
	x.AddComponent(e, health)
	assert.Equal(t, []component.TypeID{health}, rec.touched)

	rec.touched = nil
	x.RemoveComponent(e, health)
	assert.Equal(t, []component.TypeID{health}, rec.touched)

	rec.touched = nil
	x.DestroyEntity(e)
	assert.ElementsMatch(t, []component.TypeID{position, velocity}, rec.touched)

	// An entity with no components still notifies on create/destroy.
	rec.all = 0
	empty := x.CreateEntity()
	x.DestroyEntity(empty)
	assert.Equal(t, 2, rec.all)
}

func TestIndexConcurrentMutateAndScan(t *testing.T) {
	x := NewIndex(nil)
	d := query.MustDescriptor([]component.TypeID{position}, nil, nil, 1)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			id := x.CreateEntity(position)
			if i%3 == 0 {
				x.DestroyEntity(id)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			n := 0
			for range x.Scan(d) {
				n++
			}
			_ = n
		}
	}()
	wg.Wait()
}
