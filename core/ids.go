package core

// EntityID is a dense identifier for an entity within a single store.
// It is strictly 32-bit, allowing for max 4 billion live entities.
// Used for all hot-path structures (posting lists, result buffers).
type EntityID uint32

// MaxEntityID is the maximum possible value for an EntityID.
const MaxEntityID = ^EntityID(0)

// EntityIDSize is the in-memory size of an EntityID in bytes.
// Used for buffer and cache memory accounting.
const EntityIDSize = 4
