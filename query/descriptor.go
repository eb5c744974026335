// Package query defines the immutable descriptor that identifies the shape of
// a structural entity query: which component types must be present, which must
// be absent, an optional any-of group, and the arity of the caller's typed
// output parameters.
//
// Descriptors are the cache key of the result cache. Two descriptors built
// from the same type sets compare equal regardless of the order the caller
// supplied the types in, and their hash is precomputed at construction so the
// hot lookup path never re-hashes.
package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/quergo/quergo/component"
)

// ErrEmptyQuery is returned when a descriptor is constructed without any
// required component types.
var ErrEmptyQuery = errors.New("query: descriptor requires at least one component type")

// Descriptor describes a structural query. It is immutable after construction
// and safe to share across goroutines without synchronization.
type Descriptor struct {
	required []component.TypeID // sorted, deduplicated
	excluded []component.TypeID // sorted, deduplicated
	anyOf    []component.TypeID // sorted, deduplicated
	arity    int
	hash     uint64
}

// NewDescriptor builds a Descriptor from the given type lists. The lists are
// copied, sorted and deduplicated, so callers may reuse their slices. arity is
// the number of distinct typed output parameters the caller expects; it is
// part of the key because generated accessors of different arity read
// different column sets for the same structural shape.
func NewDescriptor(required, excluded, anyOf []component.TypeID, arity int) (Descriptor, error) {
	if len(required) == 0 {
		return Descriptor{}, ErrEmptyQuery
	}
	if arity < 0 {
		return Descriptor{}, fmt.Errorf("query: negative arity %d", arity)
	}

	d := Descriptor{
		required: normalize(required),
		excluded: normalize(excluded),
		anyOf:    normalize(anyOf),
		arity:    arity,
	}
	d.hash = d.computeHash()
	return d, nil
}

// MustDescriptor is NewDescriptor that panics on failure. Intended for
// startup-time query tables.
func MustDescriptor(required, excluded, anyOf []component.TypeID, arity int) Descriptor {
	d, err := NewDescriptor(required, excluded, anyOf, arity)
	if err != nil {
		panic(err)
	}
	return d
}

// normalize returns a sorted, deduplicated copy of ids. A nil or empty input
// yields nil, so absent filter groups always compare equal.
func normalize(ids []component.TypeID) []component.TypeID {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// computeHash digests the four key fields. Section markers keep permutations
// across field boundaries from colliding trivially.
func (d Descriptor) computeHash() uint64 {
	var h xxhash.Digest
	h.Reset()

	var buf [1]byte
	writeSection := func(marker byte, ids []component.TypeID) {
		buf[0] = marker
		_, _ = h.Write(buf[:])
		for _, id := range ids {
			buf[0] = byte(id)
			_, _ = h.Write(buf[:])
		}
	}
	writeSection(0x01, d.required)
	writeSection(0x02, d.excluded)
	writeSection(0x03, d.anyOf)

	buf[0] = byte(d.arity)
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// Hash returns the precomputed key hash.
func (d Descriptor) Hash() uint64 { return d.hash }

// Arity returns the number of typed output parameters.
func (d Descriptor) Arity() int { return d.arity }

// Required returns the sorted required type list. The returned slice is owned
// by the descriptor and must not be modified.
func (d Descriptor) Required() []component.TypeID { return d.required }

// Excluded returns the sorted excluded type list. Read-only.
func (d Descriptor) Excluded() []component.TypeID { return d.excluded }

// AnyOf returns the sorted any-of filter group. Read-only.
func (d Descriptor) AnyOf() []component.TypeID { return d.anyOf }

// Equal reports whether d and other describe the same query. All four fields
// are compared element-wise even when the hashes already match, so a hash
// collision can never alias two distinct queries in the cache.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.arity == other.arity &&
		slices.Equal(d.required, other.required) &&
		slices.Equal(d.excluded, other.excluded) &&
		slices.Equal(d.anyOf, other.anyOf)
}

// DependentTypes returns the set of component types this query's match set
// depends on: everything whose presence or absence changes membership.
func (d Descriptor) DependentTypes() component.Mask {
	var m component.Mask
	for _, id := range d.required {
		m.Set(id)
	}
	for _, id := range d.excluded {
		m.Set(id)
	}
	for _, id := range d.anyOf {
		m.Set(id)
	}
	return m
}

// String renders the descriptor for logs and test failures.
func (d Descriptor) String() string {
	var sb strings.Builder
	sb.WriteString("query{req=")
	writeIDs(&sb, d.required)
	if len(d.excluded) > 0 {
		sb.WriteString(" excl=")
		writeIDs(&sb, d.excluded)
	}
	if len(d.anyOf) > 0 {
		sb.WriteString(" any=")
		writeIDs(&sb, d.anyOf)
	}
	fmt.Fprintf(&sb, " arity=%d}", d.arity)
	return sb.String()
}

func writeIDs(sb *strings.Builder, ids []component.TypeID) {
	sb.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(sb, "%d", id)
	}
	sb.WriteByte(']')
}
