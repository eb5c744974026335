// Package cache implements the query result cache: a lock-striped LRU map
// from query descriptors to cached entity sets, with lazy version-based
// invalidation.
//
// Entries own their buffers. Readers always receive a pool-rented copy sized
// to the logical count, never the live buffer, so no per-entry lock is needed
// on the read path beyond the shard lock. Invalidation never scrubs eagerly:
// a stale entry is reclaimed by the first TryGet that finds it.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/quergo/quergo/bufpool"
	"github.com/quergo/quergo/component"
	"github.com/quergo/quergo/core"
	"github.com/quergo/quergo/query"
)

// entry is a cached result. It is owned by exactly one shard; the buffer is
// owned by the entry until retirement. lastAccess is a tick from the cache's
// access clock, mutated only under the shard lock.
type entry struct {
	desc       query.Descriptor
	buf        *bufpool.Buffer
	count      int
	version    uint64
	deps       component.Mask
	lastAccess uint64
}

func (e *entry) sizeBytes() int64 {
	return int64(e.buf.Cap()) * core.EntityIDSize
}

type shard struct {
	mu sync.Mutex
	// items chains hash-colliding descriptors; chains are almost always
	// length one, but equality is always verified on the full key.
	items map[uint64][]*list.Element
	lru   *list.List // front = most recently accessed
}

// ResultCache is a concurrent descriptor-to-result cache with LRU eviction.
// It is safe for concurrent TryGet, Store and Invalidate calls; no lock is
// held across a store scan or a per-entity dispatch.
type ResultCache struct {
	cfg     Config
	tracker *Tracker
	pool    *bufpool.Pool

	shards    []*shard
	shardMask uint64

	// clock orders accesses for LRU ranking without per-access time reads.
	clock atomic.Uint64

	entries  atomic.Int64
	memBytes atomic.Int64

	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
	stores        atomic.Int64
	rejects       atomic.Int64
}

// New creates a ResultCache. tracker and pool are owned by the caller and
// must outlive the cache; the same tracker is shared with the component
// store's mutation path.
func New(cfg Config, tracker *Tracker, pool *bufpool.Pool) (*ResultCache, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	c := &ResultCache{
		cfg:       cfg,
		tracker:   tracker,
		pool:      pool,
		shards:    make([]*shard, cfg.Shards),
		shardMask: uint64(cfg.Shards - 1),
	}
	for i := range c.shards {
		c.shards[i] = &shard{
			items: make(map[uint64][]*list.Element),
			lru:   list.New(),
		}
	}
	return c, nil
}

// Mode returns the invalidation mode fixed at construction.
func (c *ResultCache) Mode() Mode { return c.cfg.Mode }

// Tracker returns the cache's invalidation tracker.
func (c *ResultCache) Tracker() *Tracker { return c.tracker }

// Pool returns the buffer pool the cache rents copies from and retires
// buffers to. Callers storing into the cache must rent from this pool.
func (c *ResultCache) Pool() *bufpool.Pool { return c.pool }

func (c *ResultCache) shardFor(hash uint64) *shard {
	// Descriptor hashes are xxhash digests; the low bits are well mixed.
	return c.shards[hash&c.shardMask]
}

// findLocked returns the element for desc in sh, or nil. Caller holds sh.mu.
func (sh *shard) findLocked(desc query.Descriptor) *list.Element {
	for _, el := range sh.items[desc.Hash()] {
		if el.Value.(*entry).desc.Equal(desc) {
			return el
		}
	}
	return nil
}

// removeLocked unlinks el from sh and returns its entry with the buffer still
// attached; the caller settles counters and the buffer. Caller holds sh.mu.
func (sh *shard) removeLocked(el *list.Element) *entry {
	e := el.Value.(*entry)
	sh.lru.Remove(el)

	h := e.desc.Hash()
	chain := sh.items[h]
	for i, cand := range chain {
		if cand == el {
			chain[i] = chain[len(chain)-1]
			chain[len(chain)-1] = nil
			chain = chain[:len(chain)-1]
			break
		}
	}
	if len(chain) == 0 {
		delete(sh.items, h)
	} else {
		sh.items[h] = chain
	}
	return e
}

// retire settles counters for a removed entry and returns its buffer to the
// pool. Must be called outside or inside the shard lock exactly once.
func (c *ResultCache) retire(e *entry) {
	c.entries.Add(-1)
	c.memBytes.Add(-e.sizeBytes())
	c.pool.Return(e.buf)
	e.buf = nil
}

// stale applies the mode's staleness predicate to e.
func (c *ResultCache) stale(e *entry) bool {
	switch c.cfg.Mode {
	case ModeComponentScoped:
		// Blanket invalidations override dependent-type filtering.
		return c.tracker.AllVersion() > e.version ||
			c.tracker.TouchedSince(e.deps, e.version)
	case ModeManual:
		return false
	default:
		return e.version < c.tracker.GlobalVersion()
	}
}

// TryGet looks up desc. On a hit it touches the entry's access rank and
// returns a pool-rented copy of the cached entity set, sized to the logical
// count; the caller owns the copy and must return it to the pool. On a miss
// (absent entry, stale entry, or copy allocation failure) it reports false;
// a stale entry is removed and its buffer reclaimed on the spot.
func (c *ResultCache) TryGet(desc query.Descriptor) (*bufpool.Buffer, int, bool) {
	if !c.cfg.Enabled {
		c.misses.Add(1)
		return nil, 0, false
	}

	sh := c.shardFor(desc.Hash())
	sh.mu.Lock()

	el := sh.findLocked(desc)
	if el == nil {
		sh.mu.Unlock()
		c.misses.Add(1)
		return nil, 0, false
	}

	e := el.Value.(*entry)
	if c.stale(e) {
		sh.removeLocked(el)
		c.retire(e)
		sh.mu.Unlock()
		c.misses.Add(1)
		return nil, 0, false
	}

	if e.count != e.buf.Len() || e.count > e.buf.Cap() {
		// A corrupted entry must never reach a caller. Drop it, force a
		// full invalidation and report a miss so the caller re-scans.
		sh.removeLocked(el)
		c.retire(e)
		sh.mu.Unlock()
		c.tracker.InvalidateAll()
		c.invalidations.Add(1)
		c.misses.Add(1)
		return nil, 0, false
	}

	cp, err := c.pool.Rent(e.count)
	if err != nil {
		sh.mu.Unlock()
		c.misses.Add(1)
		return nil, 0, false
	}
	cp.CopyFrom(e.buf.IDs())

	e.lastAccess = c.clock.Add(1)
	sh.lru.MoveToFront(el)
	sh.mu.Unlock()

	c.hits.Add(1)
	return cp, e.count, true
}

// Store inserts the result for desc, taking ownership of buf. The entry is
// stamped with the current global version; use StoreVersioned when the scan
// that produced buf began at an earlier version.
func (c *ResultCache) Store(desc query.Descriptor, buf *bufpool.Buffer, count int, deps component.Mask) {
	c.StoreVersioned(desc, buf, count, deps, c.tracker.GlobalVersion())
}

// StoreVersioned inserts the result for desc, taking ownership of buf, with
// an explicit version stamp. version must be the global version observed
// before the producing scan started: a mutation racing the scan then leaves
// the entry already stale instead of serving pre-mutation data as fresh.
//
// Results below the admission threshold are not cached and buf goes straight
// back to the pool. An existing entry under the same key is retired
// atomically with the insert. Capacity is enforced synchronously before the
// call returns.
func (c *ResultCache) StoreVersioned(desc query.Descriptor, buf *bufpool.Buffer, count int, deps component.Mask, version uint64) {
	if buf == nil {
		return
	}
	if !c.cfg.Enabled || count < c.cfg.MinEntitiesToCache || count != buf.Len() {
		c.pool.Return(buf)
		c.rejects.Add(1)
		return
	}

	e := &entry{
		desc:       desc,
		buf:        buf,
		count:      count,
		version:    version,
		deps:       deps,
		lastAccess: c.clock.Add(1),
	}

	sh := c.shardFor(desc.Hash())
	sh.mu.Lock()
	if old := sh.findLocked(desc); old != nil {
		prev := sh.removeLocked(old)
		c.retire(prev)
	}
	el := sh.lru.PushFront(e)
	sh.items[desc.Hash()] = append(sh.items[desc.Hash()], el)
	sh.mu.Unlock()

	c.entries.Add(1)
	c.memBytes.Add(e.sizeBytes())
	c.stores.Add(1)

	c.enforceBounds()
}

// enforceBounds evicts least-recently-accessed entries until both the entry
// and memory bounds hold. Runs on the storing goroutine; eviction is never
// deferred.
func (c *ResultCache) enforceBounds() {
	for int(c.entries.Load()) > c.cfg.MaxEntries {
		if !c.evictOldest() {
			return
		}
	}
	for c.cfg.MaxMemoryBytes > 0 && c.memBytes.Load() > c.cfg.MaxMemoryBytes {
		if !c.evictOldest() {
			return
		}
	}
}

// evictOldest removes the entry with the globally lowest access rank. Shard
// locks are taken one at a time, never nested.
func (c *ResultCache) evictOldest() bool {
	victimShard := -1
	var victimRank uint64

	for i, sh := range c.shards {
		sh.mu.Lock()
		if back := sh.lru.Back(); back != nil {
			rank := back.Value.(*entry).lastAccess
			if victimShard == -1 || rank < victimRank {
				victimShard = i
				victimRank = rank
			}
		}
		sh.mu.Unlock()
	}
	if victimShard == -1 {
		return false
	}

	sh := c.shards[victimShard]
	sh.mu.Lock()
	back := sh.lru.Back()
	if back == nil {
		sh.mu.Unlock()
		return false
	}
	e := sh.removeLocked(back)
	c.retire(e)
	sh.mu.Unlock()

	c.evictions.Add(1)
	return true
}

// InvalidateAll bumps the global version; every cached entry becomes stale
// under ModeGlobal and is reclaimed lazily on next access. Under ModeManual
// the bump is recorded but entries remain valid; use Remove or Clear there.
func (c *ResultCache) InvalidateAll() {
	c.tracker.InvalidateAll()
	c.invalidations.Add(1)
}

// InvalidateType records id as touched and bumps the global version. Under
// ModeComponentScoped only entries depending on id become stale.
func (c *ResultCache) InvalidateType(id component.TypeID) {
	c.tracker.InvalidateType(id)
	c.invalidations.Add(1)
}

// InvalidateFrame is InvalidateAll intended to be called once per checkpoint
// boundary instead of once per mutation.
//
// Correctness precondition: no structural change may occur between
// checkpoints. The cache cannot detect a violation; entries produced from a
// mid-frame mutation would be served as valid until the next frame. Callers
// that cannot guarantee the precondition must invalidate per mutation.
func (c *ResultCache) InvalidateFrame() {
	c.InvalidateAll()
}

// Remove explicitly drops the entry for desc, returning its buffer to the
// pool. Reports whether an entry existed. This is the invalidation path for
// ModeManual.
func (c *ResultCache) Remove(desc query.Descriptor) bool {
	sh := c.shardFor(desc.Hash())
	sh.mu.Lock()
	el := sh.findLocked(desc)
	if el == nil {
		sh.mu.Unlock()
		return false
	}
	e := sh.removeLocked(el)
	c.retire(e)
	sh.mu.Unlock()

	c.invalidations.Add(1)
	return true
}

// Clear evicts every entry and returns all buffers to the pool.
func (c *ResultCache) Clear() {
	for _, sh := range c.shards {
		sh.mu.Lock()
		for el := sh.lru.Front(); el != nil; el = el.Next() {
			c.retire(el.Value.(*entry))
		}
		sh.items = make(map[uint64][]*list.Element)
		sh.lru.Init()
		sh.mu.Unlock()
	}
}

// Len returns the current entry count.
func (c *ResultCache) Len() int {
	return int(c.entries.Load())
}
