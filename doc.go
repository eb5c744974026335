// Package quergo provides a parallel query execution and result-caching
// engine for entity-component stores.
//
// Quergo matches entities against structural queries (required, excluded and
// any-of component types), fans the matched set out to a fixed worker pool
// for per-entity processing, and memoizes matched-entity sets across repeated
// calls so the store is not re-scanned on every invocation.
//
// # Quick Start
//
// Wire an engine with its reference store:
//
//	eng, idx, err := quergo.NewWithIndex(cache.Config{
//	    Enabled:            true,
//	    MaxEntries:         512,
//	    MinEntitiesToCache: 10,
//	})
//	if err != nil {
//	    panic(err)
//	}
//	defer eng.Close()
//
//	e := idx.CreateEntity(posID, velID) // ... populate the store
//
//	desc := query.MustDescriptor([]component.TypeID{posID, velID}, nil, nil, 2)
//	err = eng.Execute(ctx, desc, func(id core.EntityID) error {
//	    return integrate(id)
//	}, true)
//
// The first Execute scans the store and caches the matched set; repeated
// calls with the same descriptor are served from the cache until a mutation
// invalidates it.
//
// # Invalidation Contract
//
// Any collaborator that mutates the component store MUST notify the cache:
// entity create/destroy and component add/remove each require an
// InvalidateAll or InvalidateType call. The bundled store.Index does this
// automatically when wired through NewWithIndex. Skipping a notification makes
// cached query results silently wrong; this is a hard precondition, not a
// tuning knob.
//
// # Invalidation Modes
//
// The cache supports three modes, fixed at construction: Global (any change
// invalidates everything, the safe default), ComponentScoped (only entries
// depending on a touched type go stale) and Manual (explicit Remove/Clear
// only). See the cache package for the trade-offs, and note the loud
// precondition on InvalidateFrame before using per-frame invalidation.
//
// # Failure Semantics
//
// Per-entity action failures never abort the batch: remaining entities are
// still processed and the failures come back aggregated in an *EntityErrors.
// A buffer-pool exhaustion during cache population degrades to an uncached
// dispatch instead of failing the call.
package quergo
