package cache

import (
	"errors"
	"fmt"
)

// Mode selects the staleness predicate applied by TryGet. It is fixed at
// construction for the lifetime of the cache; all modes share the same
// storage and eviction mechanics.
type Mode uint8

const (
	// ModeGlobal treats any global version bump as invalidating every entry.
	// This is the default and the safest mode.
	ModeGlobal Mode = iota

	// ModeComponentScoped invalidates an entry only when a component type it
	// depends on has been touched after the entry was stamped.
	ModeComponentScoped

	// ModeManual never invalidates automatically. Entries are removed only by
	// explicit Remove or Clear calls; version bumps are recorded but not
	// consulted.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeGlobal:
		return "global"
	case ModeComponentScoped:
		return "component-scoped"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ErrInvalidConfig is returned by New for malformed configuration.
var ErrInvalidConfig = errors.New("cache: invalid configuration")

const (
	// DefaultMaxEntries bounds the entry count when Config.MaxEntries is 0.
	DefaultMaxEntries = 1024

	// DefaultMinEntitiesToCache is the admission threshold when
	// Config.MinEntitiesToCache is 0. Tiny result sets are cheaper to
	// re-scan than to churn through the cache.
	DefaultMinEntitiesToCache = 16

	// DefaultShards is the shard count when Config.Shards is 0.
	DefaultShards = 8
)

// Config is the construction-time configuration of a ResultCache.
type Config struct {
	// Enabled turns caching on. A disabled cache reports every lookup as a
	// miss and returns every stored buffer straight to the pool.
	Enabled bool

	// MaxEntries bounds the number of cached entries. 0 selects
	// DefaultMaxEntries; negative is invalid.
	MaxEntries int

	// MaxMemoryBytes bounds the estimated memory held by cached buffers.
	// 0 disables the bound; negative is invalid.
	MaxMemoryBytes int64

	// Mode selects the invalidation mode.
	Mode Mode

	// MinEntitiesToCache is the admission threshold: result sets smaller
	// than this are never cached. 0 selects DefaultMinEntitiesToCache;
	// negative is invalid.
	MinEntitiesToCache int

	// Shards is the number of lock-striped map shards, rounded up to a
	// power of two. 0 selects DefaultShards; negative is invalid.
	Shards int
}

// validate checks cfg and fills in defaults, returning the effective config.
func (c Config) validate() (Config, error) {
	if c.MaxEntries < 0 {
		return c, fmt.Errorf("%w: MaxEntries %d is negative", ErrInvalidConfig, c.MaxEntries)
	}
	if c.MaxMemoryBytes < 0 {
		return c, fmt.Errorf("%w: MaxMemoryBytes %d is negative", ErrInvalidConfig, c.MaxMemoryBytes)
	}
	if c.MinEntitiesToCache < 0 {
		return c, fmt.Errorf("%w: MinEntitiesToCache %d is negative", ErrInvalidConfig, c.MinEntitiesToCache)
	}
	if c.Shards < 0 {
		return c, fmt.Errorf("%w: Shards %d is negative", ErrInvalidConfig, c.Shards)
	}
	if c.Mode > ModeManual {
		return c, fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, c.Mode)
	}

	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.MinEntitiesToCache == 0 {
		c.MinEntitiesToCache = DefaultMinEntitiesToCache
	}
	if c.Shards == 0 {
		c.Shards = DefaultShards
	}
	c.Shards = nextPowerOfTwo(c.Shards)
	return c, nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
