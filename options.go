package quergo

import (
	"github.com/quergo/quergo/bufpool"
	"github.com/quergo/quergo/cache"
	"github.com/quergo/quergo/component"
	"github.com/quergo/quergo/resource"
)

type options struct {
	cacheCfg    *cache.Config
	resultCache *cache.ResultCache
	pool        *bufpool.Pool
	rc          *resource.Controller
	numWorkers  int
	logger      *Logger
	metrics     MetricsCollector
}

// Option configures the engine constructor.
type Option func(*options)

// WithCache enables result caching with the given configuration. The engine
// owns the cache, tracker and buffer pool it builds; wire the component
// store's mutation path against the engine (it implements store.Invalidator)
// or use NewWithIndex.
func WithCache(cfg cache.Config) Option {
	return func(o *options) {
		o.cacheCfg = &cfg
	}
}

// WithResultCache supplies a pre-built result cache. The engine adopts the
// cache's buffer pool so rented and cached buffers share one arena.
func WithResultCache(c *cache.ResultCache) Option {
	return func(o *options) {
		o.resultCache = c
	}
}

// WithBufferPool overrides the engine's buffer pool. Useful when several
// engines share one arena.
func WithBufferPool(p *bufpool.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithResourceController bounds the memory held by pooled buffers.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithWorkers sets the number of dispatch workers. The default (0) sizes the
// pool to available hardware parallelism.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.numWorkers = n
	}
}

// WithLogger sets the engine logger. The default discards all output.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector sets the metrics collector. The default is a no-op.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}

// ExecOption configures a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	deps    component.Mask
	hasDeps bool
}

// WithDependentTypes overrides the dependent-type set recorded with a cached
// result. By default the set is derived from the descriptor (required,
// excluded and any-of types); callers whose action reads additional
// component types under ComponentScoped invalidation must widen the set here.
func WithDependentTypes(deps component.Mask) ExecOption {
	return func(o *execOptions) {
		o.deps = deps
		o.hasDeps = true
	}
}
