package quergo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/quergo/quergo/bufpool"
	"github.com/quergo/quergo/cache"
	"github.com/quergo/quergo/component"
	"github.com/quergo/quergo/core"
	"github.com/quergo/quergo/query"
	"github.com/quergo/quergo/store"
)

// PerEntityAction is invoked once per matched entity. Returning an error
// marks that entity as failed without stopping the rest of the batch.
// Actions may run concurrently and must be safe for parallel invocation.
type PerEntityAction func(id core.EntityID) error

// minParallel is the match-set size below which dispatch runs inline on the
// calling goroutine. Fan-out overhead dominates for tiny sets.
const minParallel = 32

// Engine executes structural queries against a Scanner, fans the matched
// entities out across a worker pool, and caches match sets in a ResultCache.
type Engine struct {
	scanner store.Scanner
	cache   *cache.ResultCache
	pool    *bufpool.Pool
	workers *WorkerPool
	logger  *Logger
	metrics MetricsCollector

	degraded *rate.Limiter
	closed   atomic.Bool
}

var _ store.Invalidator = (*Engine)(nil)

// New creates an Engine over scanner. Without options the engine runs with
// GOMAXPROCS workers, an unbounded buffer pool, and no result cache; pass
// WithCache or WithResultCache to enable caching.
func New(scanner store.Scanner, opts ...Option) (*Engine, error) {
	if scanner == nil {
		return nil, ErrNilScanner
	}

	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	pool := o.pool
	rcache := o.resultCache
	if rcache != nil {
		// Rented and cached buffers must share one arena so ownership
		// can transfer between engine and cache.
		if pool == nil {
			pool = rcache.Pool()
		} else if pool != rcache.Pool() {
			return nil, fmt.Errorf("quergo: buffer pool differs from the result cache's pool")
		}
	} else {
		if pool == nil {
			pool = bufpool.New(o.rc)
		}
		if o.cacheCfg != nil {
			c, err := cache.New(*o.cacheCfg, cache.NewTracker(), pool)
			if err != nil {
				return nil, err
			}
			rcache = c
		}
	}

	return &Engine{
		scanner:  scanner,
		cache:    rcache,
		pool:     pool,
		workers:  NewWorkerPool(o.numWorkers),
		logger:   o.logger,
		metrics:  o.metrics,
		degraded: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}, nil
}

// NewWithIndex wires a complete stack: buffer pool, result cache, a roaring
// bitmap index whose mutations invalidate the cache, and the engine on top.
func NewWithIndex(cfg cache.Config, opts ...Option) (*Engine, *store.Index, error) {
	var probe options
	for _, opt := range opts {
		opt(&probe)
	}

	pool := probe.pool
	if pool == nil {
		pool = bufpool.New(probe.rc)
	}
	c, err := cache.New(cfg, cache.NewTracker(), pool)
	if err != nil {
		return nil, nil, err
	}
	idx := store.NewIndex(c)

	eng, err := New(idx, append(opts, WithBufferPool(pool), WithResultCache(c))...)
	if err != nil {
		return nil, nil, err
	}
	return eng, idx, nil
}

// Execute runs action over every entity matching desc. With useCache set the
// match set is served from the result cache when fresh and repopulated on a
// miss; without it the engine scans the store directly and never touches the
// cache.
//
// Per-entity failures and panics are collected and returned as *EntityErrors
// after the whole batch has run. Context cancellation stops scheduling of
// further entities; already running actions finish.
func (e *Engine) Execute(ctx context.Context, desc query.Descriptor, action PerEntityAction, useCache bool, opts ...ExecOption) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if action == nil {
		return ErrNilAction
	}

	var eo execOptions
	for _, opt := range opts {
		opt(&eo)
	}
	deps := eo.deps
	if !eo.hasDeps {
		deps = desc.DependentTypes()
	}

	start := time.Now()
	entities, cached, err := e.execute(ctx, desc, action, useCache, deps)
	dur := time.Since(start)

	e.metrics.RecordExecute(dur, entities, cached, err)
	e.logger.LogExecute(ctx, desc, entities, cached, dur, err)
	return err
}

func (e *Engine) execute(ctx context.Context, desc query.Descriptor, action PerEntityAction, useCache bool, deps component.Mask) (int, bool, error) {
	if useCache && e.cache != nil {
		if buf, count, ok := e.cache.TryGet(desc); ok {
			err := e.dispatch(ctx, buf.IDs(), action)
			e.pool.Return(buf)
			return count, true, err
		}

		// Capture the version before scanning so a mutation racing the
		// scan leaves the stored entry stale rather than wrong.
		version := e.cache.Tracker().GlobalVersion()
		buf, n, err := e.collect(desc)
		if err != nil {
			return e.streamDispatch(ctx, desc, action, err)
		}
		derr := e.dispatch(ctx, buf.IDs(), action)
		e.cache.StoreVersioned(desc, buf, n, deps, version)
		return n, false, derr
	}

	buf, n, err := e.collect(desc)
	if err != nil {
		return e.streamDispatch(ctx, desc, action, err)
	}
	derr := e.dispatch(ctx, buf.IDs(), action)
	e.pool.Return(buf)
	return n, false, derr
}

// collect scans the store into a pool-rented buffer. The buffer is sized
// from Count; if the store grows between Count and Scan the extra entities
// are dropped for this execution and picked up by the next scan.
func (e *Engine) collect(desc query.Descriptor) (*bufpool.Buffer, int, error) {
	start := time.Now()
	count := e.scanner.Count(desc)
	buf, err := e.pool.Rent(count)
	if err != nil {
		return nil, 0, err
	}
	for id := range e.scanner.Scan(desc) {
		if buf.Len() == buf.Cap() {
			break
		}
		buf.Append(id)
	}
	e.metrics.RecordScan(time.Since(start), buf.Len())
	return buf, buf.Len(), nil
}

// streamDispatch processes entities sequentially straight off the scan
// iterator. It is the degraded path taken when no buffer can be rented, so
// the execution completes without caching instead of failing.
func (e *Engine) streamDispatch(ctx context.Context, desc query.Descriptor, action PerEntityAction, cause error) (int, bool, error) {
	if e.degraded.Allow() {
		e.logger.LogCacheDegraded(ctx, desc, cause)
	}

	var failures []*EntityError
	n := 0
	for id := range e.scanner.Scan(desc) {
		if ctx.Err() != nil {
			break
		}
		if aerr := runSafe(action, id); aerr != nil {
			failures = append(failures, &EntityError{Entity: id, cause: aerr})
		}
		n++
	}
	return n, false, joinDispatchErr(ctx.Err(), failures)
}

// dispatch fans ids out across the worker pool in chunks. Failures are
// collected per entity; cancellation skips chunks not yet submitted and
// stops chunk loops between entities.
func (e *Engine) dispatch(ctx context.Context, ids []core.EntityID, action PerEntityAction) error {
	if len(ids) == 0 {
		return ctx.Err()
	}

	var (
		mu       sync.Mutex
		failures []*EntityError
	)
	run := func(chunk []core.EntityID) {
		for _, id := range chunk {
			if ctx.Err() != nil {
				return
			}
			if aerr := runSafe(action, id); aerr != nil {
				mu.Lock()
				failures = append(failures, &EntityError{Entity: id, cause: aerr})
				mu.Unlock()
			}
		}
	}

	if len(ids) < minParallel {
		run(ids)
		return joinDispatchErr(ctx.Err(), failures)
	}

	chunk := (len(ids) + e.workers.NumWorkers()*4 - 1) / (e.workers.NumWorkers() * 4)
	if chunk < minParallel {
		chunk = minParallel
	}

	var wg sync.WaitGroup
	for lo := 0; lo < len(ids); lo += chunk {
		part := ids[lo:min(lo+chunk, len(ids))]
		wg.Add(1)
		if err := e.workers.Submit(ctx, func() {
			defer wg.Done()
			run(part)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return joinDispatchErr(err, failures)
		}
	}
	wg.Wait()
	return joinDispatchErr(ctx.Err(), failures)
}

func joinDispatchErr(ctxErr error, failures []*EntityError) error {
	var agg error
	if len(failures) > 0 {
		agg = &EntityErrors{Failures: failures}
	}
	if ctxErr != nil {
		if agg != nil {
			return errors.Join(ctxErr, agg)
		}
		return ctxErr
	}
	return agg
}

// runSafe invokes action and converts a panic into an error so one bad
// entity cannot take down a worker goroutine.
func runSafe(action PerEntityAction, id core.EntityID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("entity action panic: %v", r)
		}
	}()
	return action(id)
}

// InvalidateAll marks every cached result stale. Safe at any time.
func (e *Engine) InvalidateAll() {
	if e.cache == nil {
		return
	}
	e.cache.InvalidateAll()
	e.metrics.RecordInvalidation()
}

// InvalidateType marks results depending on the given component type stale.
// Under ModeComponentScoped only entries whose dependent-type set contains
// id go stale; other modes treat this like InvalidateAll.
func (e *Engine) InvalidateType(id component.TypeID) {
	if e.cache == nil {
		return
	}
	e.cache.InvalidateType(id)
	e.metrics.RecordInvalidation()
}

// BeginCheckpoint marks a frame boundary: the touched-type set is reset and
// every cached result goes stale. Callers using it must not mutate the store
// between checkpoints except through the engine's invalidation methods; see
// ResultCache.InvalidateFrame.
func (e *Engine) BeginCheckpoint() {
	if e.cache == nil {
		return
	}
	e.cache.Tracker().Checkpoint()
	e.cache.InvalidateFrame()
	e.metrics.RecordInvalidation()
}

// Statistics returns a snapshot of cache counters. The zero value is
// returned when no cache is configured.
func (e *Engine) Statistics() cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

// Cache returns the result cache, or nil when caching is disabled.
func (e *Engine) Cache() *cache.ResultCache { return e.cache }

// Pool returns the buffer pool backing executions and cached results.
func (e *Engine) Pool() *bufpool.Pool { return e.pool }

// Close stops the worker pool and releases cached buffers. Close is
// idempotent; Execute returns ErrClosed afterwards.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.workers.Close()
	if e.cache != nil {
		e.cache.Clear()
	}
	return nil
}
