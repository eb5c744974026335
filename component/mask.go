package component

import "math/bits"

// Mask is a set of up to MaxTypes component TypeIDs, packed into four words.
// The zero value is the empty set. Mask is a value type; all set operations
// return a new Mask and never mutate the receiver unless documented.
type Mask [4]uint64

// NewMask builds a Mask containing the given TypeIDs.
func NewMask(ids ...TypeID) Mask {
	var m Mask
	for _, id := range ids {
		m.Set(id)
	}
	return m
}

// Set adds id to the set.
func (m *Mask) Set(id TypeID) {
	m[id>>6] |= uint64(1) << (id & 63)
}

// Unset removes id from the set.
func (m *Mask) Unset(id TypeID) {
	m[id>>6] &^= uint64(1) << (id & 63)
}

// Has reports whether id is in the set.
func (m Mask) Has(id TypeID) bool {
	return m[id>>6]&(uint64(1)<<(id&63)) != 0
}

// ContainsAll reports whether every bit of sub is also set in m.
func (m Mask) ContainsAll(sub Mask) bool {
	return m[0]&sub[0] == sub[0] &&
		m[1]&sub[1] == sub[1] &&
		m[2]&sub[2] == sub[2] &&
		m[3]&sub[3] == sub[3]
}

// Intersects reports whether m and other share at least one bit.
func (m Mask) Intersects(other Mask) bool {
	return m[0]&other[0] != 0 ||
		m[1]&other[1] != 0 ||
		m[2]&other[2] != 0 ||
		m[3]&other[3] != 0
}

// Union returns the set union of m and other.
func (m Mask) Union(other Mask) Mask {
	return Mask{m[0] | other[0], m[1] | other[1], m[2] | other[2], m[3] | other[3]}
}

// IsEmpty reports whether no bits are set.
func (m Mask) IsEmpty() bool {
	return m == Mask{}
}

// Count returns the number of TypeIDs in the set.
func (m Mask) Count() int {
	return bits.OnesCount64(m[0]) + bits.OnesCount64(m[1]) +
		bits.OnesCount64(m[2]) + bits.OnesCount64(m[3])
}

// TypeIDs returns the members of the set in ascending order.
func (m Mask) TypeIDs() []TypeID {
	ids := make([]TypeID, 0, m.Count())
	for w := 0; w < len(m); w++ {
		word := m[w]
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			ids = append(ids, TypeID(w<<6+bit))
			word &= word - 1
		}
	}
	return ids
}
