package cache

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/quergo/quergo/component"
)

// Tracker is the process-wide invalidation state consulted lazily by the
// cache: a monotonic global version, a last-touched version per component
// type, and the transient set of types touched since the last checkpoint.
//
// Version bumps use acquire/release ordering (atomic loads and stores), so a
// TryGet that happens after an Invalidate call returns always observes the
// new version. A TryGet racing with an in-flight invalidation may observe
// either version but never a torn intermediate.
type Tracker struct {
	version      atomic.Uint64
	allVersion   atomic.Uint64
	typeVersions [component.MaxTypes]atomic.Uint64

	mu      sync.Mutex
	touched component.Mask
}

// NewTracker creates a Tracker at version zero with an empty touched set.
func NewTracker() *Tracker {
	return &Tracker{}
}

// GlobalVersion returns the current global version.
func (t *Tracker) GlobalVersion() uint64 {
	return t.version.Load()
}

// InvalidateAll bumps the global version and returns the new value. The bump
// is recorded as a blanket invalidation, so it stales entries in every
// automatic mode regardless of their dependent-type sets.
func (t *Tracker) InvalidateAll() uint64 {
	v := t.version.Add(1)
	storeMax(&t.allVersion, v)
	return v
}

// storeMax raises dst to v unless a racing writer already stored a higher
// version. A plain store would let a slower invalidation overwrite a faster
// one's higher version, rolling the counter backwards.
func storeMax(dst *atomic.Uint64, v uint64) {
	for {
		cur := dst.Load()
		if v <= cur {
			return
		}
		if dst.CompareAndSwap(cur, v) {
			return
		}
	}
}

// AllVersion returns the global version at which InvalidateAll was last
// called, or 0 if it never was.
func (t *Tracker) AllVersion() uint64 {
	return t.allVersion.Load()
}

// InvalidateType records id as touched and bumps the global version,
// returning the new value.
func (t *Tracker) InvalidateType(id component.TypeID) uint64 {
	v := t.version.Add(1)
	storeMax(&t.typeVersions[id], v)

	t.mu.Lock()
	t.touched.Set(id)
	t.mu.Unlock()
	return v
}

// TypeVersion returns the global version at which id was last touched, or 0
// if it never was.
func (t *Tracker) TypeVersion(id component.TypeID) uint64 {
	return t.typeVersions[id].Load()
}

// TouchedSince reports whether any type in deps was touched after version
// since. This is the component-scoped staleness predicate.
func (t *Tracker) TouchedSince(deps component.Mask, since uint64) bool {
	for w := 0; w < len(deps); w++ {
		word := deps[w]
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			id := component.TypeID(w<<6 + bit)
			if t.typeVersions[id].Load() > since {
				return true
			}
			word &= word - 1
		}
	}
	return false
}

// Touched returns the set of types touched since the last checkpoint.
func (t *Tracker) Touched() component.Mask {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.touched
}

// Checkpoint clears the touched-type set. Only the owner calls this, at an
// explicit boundary such as frame start; background logic never does.
func (t *Tracker) Checkpoint() {
	t.mu.Lock()
	t.touched = component.Mask{}
	t.mu.Unlock()
}
