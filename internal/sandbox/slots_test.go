package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsAcquireRelease(t *testing.T) {
	slots := NewSlots(2, 20*time.Millisecond)
	ctx := context.Background()

	r1, err := slots.Acquire(ctx)
	require.NoError(t, err)
	r2, err := slots.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, slots.Stats()["in_use"])
	assert.Equal(t, 2, slots.InUse())

	_, err = slots.Acquire(ctx)
	assert.ErrorIs(t, err, ErrBusy)

	r1()
	r1()
	assert.Equal(t, 1, slots.Stats()["in_use"])

	r3, err := slots.Acquire(ctx)
	require.NoError(t, err)
	r2()
	r3()
	assert.Equal(t, 2, slots.Stats()["available"])
}

func TestSlotsContextCancelled(t *testing.T) {
	slots := NewSlots(1, time.Second)
	release, err := slots.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = slots.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlotsClosed(t *testing.T) {
	slots := NewSlots(0, 0)
	assert.Equal(t, 4, slots.Stats()["size"])

	require.NoError(t, slots.Close())
	_, err := slots.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
