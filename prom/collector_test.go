package prom

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quergo/quergo"
	"github.com/quergo/quergo/cache"
	"github.com/quergo/quergo/component"
	"github.com/quergo/quergo/core"
	"github.com/quergo/quergo/query"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExecute(time.Millisecond, 100, false, nil)
	c.RecordExecute(time.Millisecond, 100, true, nil)
	c.RecordScan(time.Millisecond, 100)
	c.RecordInvalidation()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.invalidations))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.errors))

	// One series per metric, plus one extra for the second execute source.
	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestCollectorWiredIntoEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	eng, idx, err := quergo.NewWithIndex(
		cache.Config{Enabled: true, MinEntitiesToCache: 1},
		quergo.WithMetricsCollector(c),
	)
	require.NoError(t, err)
	defer eng.Close()

	const position component.TypeID = 0
	for i := 0; i < 10; i++ {
		idx.CreateEntity(position)
	}

	desc := query.MustDescriptor([]component.TypeID{position}, nil, nil, 0)
	noop := func(core.EntityID) error { return nil }
	require.NoError(t, eng.Execute(context.Background(), desc, noop, true))
	require.NoError(t, eng.Execute(context.Background(), desc, noop, true))
	eng.InvalidateAll()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.invalidations))
	count, err := testutil.GatherAndCount(reg, "quergo_execute_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
