package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quergo/quergo/component"
)

func TestNewDescriptorEmptyRequired(t *testing.T) {
	_, err := NewDescriptor(nil, nil, nil, 1)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = NewDescriptor([]component.TypeID{}, []component.TypeID{5}, nil, 1)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNewDescriptorNegativeArity(t *testing.T) {
	_, err := NewDescriptor([]component.TypeID{1}, nil, nil, -1)
	assert.Error(t, err)
}

func TestDescriptorOrderIndependence(t *testing.T) {
	a, err := NewDescriptor(
		[]component.TypeID{3, 1, 2},
		[]component.TypeID{9, 7},
		[]component.TypeID{5, 4},
		2,
	)
	require.NoError(t, err)

	b, err := NewDescriptor(
		[]component.TypeID{2, 3, 1},
		[]component.TypeID{7, 9},
		[]component.TypeID{4, 5},
		2,
	)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestDescriptorDeduplicates(t *testing.T) {
	a := MustDescriptor([]component.TypeID{1, 1, 2, 2, 2}, nil, nil, 1)
	b := MustDescriptor([]component.TypeID{2, 1}, nil, nil, 1)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, []component.TypeID{1, 2}, a.Required())
}

func TestDescriptorFieldSensitivity(t *testing.T) {
	base := MustDescriptor([]component.TypeID{1, 2}, []component.TypeID{3}, []component.TypeID{4}, 2)

	cases := []struct {
		name  string
		other Descriptor
	}{
		{"different required", MustDescriptor([]component.TypeID{1, 5}, []component.TypeID{3}, []component.TypeID{4}, 2)},
		{"different excluded", MustDescriptor([]component.TypeID{1, 2}, []component.TypeID{6}, []component.TypeID{4}, 2)},
		{"no excluded", MustDescriptor([]component.TypeID{1, 2}, nil, []component.TypeID{4}, 2)},
		{"different anyOf", MustDescriptor([]component.TypeID{1, 2}, []component.TypeID{3}, []component.TypeID{7}, 2)},
		{"different arity", MustDescriptor([]component.TypeID{1, 2}, []component.TypeID{3}, []component.TypeID{4}, 3)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, base.Equal(tc.other))
		})
	}
}

func TestDescriptorFieldsDoNotCollapse(t *testing.T) {
	// The same IDs distributed differently across fields must not compare
	// equal or (practically) hash equal.
	a := MustDescriptor([]component.TypeID{1, 2}, nil, nil, 1)
	b := MustDescriptor([]component.TypeID{1}, []component.TypeID{2}, nil, 1)

	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestDescriptorDependentTypes(t *testing.T) {
	d := MustDescriptor([]component.TypeID{1, 2}, []component.TypeID{3}, []component.TypeID{4}, 1)

	deps := d.DependentTypes()
	assert.Equal(t, []component.TypeID{1, 2, 3, 4}, deps.TypeIDs())
}

func TestDescriptorCallerSliceReuse(t *testing.T) {
	req := []component.TypeID{2, 1}
	d := MustDescriptor(req, nil, nil, 1)

	// Mutating the caller's slice after construction must not affect the key.
	req[0] = 99
	assert.Equal(t, []component.TypeID{1, 2}, d.Required())
}

func TestDescriptorString(t *testing.T) {
	d := MustDescriptor([]component.TypeID{1, 2}, []component.TypeID{3}, nil, 2)
	assert.Equal(t, "query{req=[1 2] excl=[3] arity=2}", d.String())
}
