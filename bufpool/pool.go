// Package bufpool provides a reusable arena of entity-identifier buffers,
// bucketed by power-of-two capacity class.
//
// Buffers follow a strict ownership-transfer protocol: Rent returns an owned
// handle, Return consumes it. A buffer is never referenced by two live owners
// at once; its contents are undefined after Return and must be overwritten
// before the next logical use.
package bufpool

import (
	"errors"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/quergo/quergo/core"
	"github.com/quergo/quergo/resource"
)

// ErrResourceExhausted is returned by Rent when a fresh allocation would
// exceed the configured memory limit.
var ErrResourceExhausted = errors.New("bufpool: memory limit exceeded")

const (
	// minClassShift is the smallest capacity class (64 entities). Renting
	// below this still returns a 64-capacity buffer; tiny classes only
	// fragment the free lists.
	minClassShift = 6

	// numClasses covers capacities up to 1<<(minClassShift+numClasses-1).
	numClasses = 25

	// maxFreePerClass bounds how many idle buffers each class retains.
	// Returns beyond this are discarded and their memory released.
	maxFreePerClass = 32
)

// Buffer is an owned, growable list of entity identifiers with a fixed
// capacity class. The logical length is the number of appended IDs.
type Buffer struct {
	ids      []core.EntityID
	pool     *Pool
	class    int
	released atomic.Bool
}

// Append adds id to the buffer. Appending past capacity panics; callers size
// the buffer from the store's count primitive before filling it.
func (b *Buffer) Append(id core.EntityID) {
	if len(b.ids) == cap(b.ids) {
		panic("bufpool: append past buffer capacity")
	}
	b.ids = append(b.ids, id)
}

// IDs returns the filled portion of the buffer. The slice aliases the
// buffer's storage and is invalidated by Return.
func (b *Buffer) IDs() []core.EntityID { return b.ids }

// Len returns the logical count of appended IDs.
func (b *Buffer) Len() int { return len(b.ids) }

// Cap returns the buffer's capacity class size.
func (b *Buffer) Cap() int { return cap(b.ids) }

// Reset clears the logical length without touching contents.
func (b *Buffer) Reset() { b.ids = b.ids[:0] }

// CopyFrom replaces the buffer's contents with a copy of src. It panics if
// src exceeds the buffer's capacity.
func (b *Buffer) CopyFrom(src []core.EntityID) {
	if len(src) > cap(b.ids) {
		panic("bufpool: copy past buffer capacity")
	}
	b.ids = b.ids[:len(src)]
	copy(b.ids, src)
}

// Truncate shortens the logical length to n. It panics if n exceeds the
// current length.
func (b *Buffer) Truncate(n int) {
	if n > len(b.ids) {
		panic("bufpool: truncate past buffer length")
	}
	b.ids = b.ids[:n]
}

// sizeBytes is the managed memory charged for this buffer.
func (b *Buffer) sizeBytes() int64 {
	return int64(cap(b.ids)) * core.EntityIDSize
}

// Pool is a concurrent buffer pool. Free lists are per capacity class with
// independent locks, so renting and returning different-sized buffers never
// contends on the same lock.
type Pool struct {
	classes [numClasses]classList
	rc      *resource.Controller

	allocs        atomic.Int64
	reuses        atomic.Int64
	discards      atomic.Int64
	doubleReturns atomic.Int64
}

type classList struct {
	mu   sync.Mutex
	free []*Buffer
}

// New creates a Pool. rc may be nil to disable memory accounting.
func New(rc *resource.Controller) *Pool {
	return &Pool{rc: rc}
}

// classFor returns the class index whose capacity is the smallest power of
// two >= n, clamped to the minimum class.
func classFor(n int) int {
	if n <= 1<<minClassShift {
		return 0
	}
	return bits.Len(uint(n-1)) - minClassShift
}

// classCap returns the buffer capacity of class idx.
func classCap(idx int) int {
	return 1 << (minClassShift + idx)
}

// Rent returns an owned buffer with capacity >= minCapacity, reusing an idle
// buffer of the matching class when one is available. A fresh allocation that
// would exceed the memory limit fails with ErrResourceExhausted; the pool
// never hands out an undersized buffer.
func (p *Pool) Rent(minCapacity int) (*Buffer, error) {
	idx := classFor(minCapacity)
	if idx >= numClasses {
		return nil, ErrResourceExhausted
	}

	cl := &p.classes[idx]
	cl.mu.Lock()
	if n := len(cl.free); n > 0 {
		b := cl.free[n-1]
		cl.free[n-1] = nil
		cl.free = cl.free[:n-1]
		cl.mu.Unlock()

		b.released.Store(false)
		b.ids = b.ids[:0]
		p.reuses.Add(1)
		return b, nil
	}
	cl.mu.Unlock()

	capacity := classCap(idx)
	if !p.rc.TryAcquireMemory(int64(capacity) * core.EntityIDSize) {
		return nil, ErrResourceExhausted
	}
	p.allocs.Add(1)
	return &Buffer{
		ids:   make([]core.EntityID, 0, capacity),
		pool:  p,
		class: idx,
	}, nil
}

// Return places b back into its class's free list. The logical length is
// cleared; contents are left as-is and are undefined to the next renter.
// Returning the same buffer twice is counted and ignored, never a double-free.
func (p *Pool) Return(b *Buffer) {
	if b == nil {
		return
	}
	if b.pool != p || !b.released.CompareAndSwap(false, true) {
		p.doubleReturns.Add(1)
		return
	}
	b.ids = b.ids[:0]

	cl := &p.classes[b.class]
	cl.mu.Lock()
	if len(cl.free) < maxFreePerClass {
		cl.free = append(cl.free, b)
		cl.mu.Unlock()
		return
	}
	cl.mu.Unlock()

	// Free list is full: drop the buffer and give its memory back.
	p.rc.ReleaseMemory(b.sizeBytes())
	p.discards.Add(1)
}

// Stats is a snapshot of pool counters.
type Stats struct {
	// Allocs counts fresh buffer allocations.
	Allocs int64
	// Reuses counts rents served from a free list.
	Reuses int64
	// Discards counts returned buffers dropped due to full free lists.
	Discards int64
	// DoubleReturns counts ignored redundant Return calls.
	DoubleReturns int64
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Allocs:        p.allocs.Load(),
		Reuses:        p.reuses.Load(),
		Discards:      p.discards.Load(),
		DoubleReturns: p.doubleReturns.Load(),
	}
}
