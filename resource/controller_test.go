package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerTracking(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 100))
	assert.Equal(t, int64(100), c.MemoryUsage())

	c.ReleaseMemory(40)
	assert.Equal(t, int64(60), c.MemoryUsage())

	c.ReleaseMemory(60)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestControllerHardLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	assert.True(t, c.TryAcquireMemory(80))
	assert.False(t, c.TryAcquireMemory(30), "would exceed limit")
	assert.Equal(t, int64(80), c.MemoryUsage())

	c.ReleaseMemory(80)
	assert.True(t, c.TryAcquireMemory(100))
}

func TestControllerAcquireBlocksUntilRelease(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 50})
	require.NoError(t, c.AcquireMemory(context.Background(), 50))

	done := make(chan error, 1)
	go func() {
		done <- c.AcquireMemory(context.Background(), 20)
	}()

	select {
	case <-done:
		t.Fatal("acquire should block while limit is exhausted")
	case <-time.After(20 * time.Millisecond):
	}

	c.ReleaseMemory(50)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("acquire did not resume after release")
	}
}

func TestControllerAcquireRespectsContext(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 10})
	require.NoError(t, c.AcquireMemory(context.Background(), 10))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.AcquireMemory(ctx, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(10), c.MemoryUsage())
}

func TestNilControllerIsPassthrough(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireMemory(context.Background(), 100))
	assert.True(t, c.TryAcquireMemory(1<<40))
	c.ReleaseMemory(100)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, int64(0), c.Limit())
}
