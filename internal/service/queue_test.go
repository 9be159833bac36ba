package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingEvictsOldest(t *testing.T) {
	r := newRing[int](3)

	for i := 1; i <= 3; i++ {
		assert.False(t, r.push(i))
	}
	assert.True(t, r.push(4))
	assert.True(t, r.push(5))

	assert.Equal(t, 3, r.len())
	assert.Equal(t, []int{3, 4, 5}, r.lastN(0))
	assert.Equal(t, []int{4, 5}, r.lastN(2))
	assert.Equal(t, []int{3, 4, 5}, r.lastN(10))

	last, ok := r.last()
	require.True(t, ok)
	assert.Equal(t, 5, last)

	empty := newRing[int](2)
	_, ok = empty.last()
	assert.False(t, ok)
	assert.Empty(t, empty.lastN(0))
}

func TestParseOverflowPolicy(t *testing.T) {
	assert.Equal(t, Block, ParseOverflowPolicy("block"))
	assert.Equal(t, DropOldest, ParseOverflowPolicy("drop-oldest"))
	assert.Equal(t, DropOldest, ParseOverflowPolicy("whatever"))
	assert.Equal(t, "block", Block.String())
}

func TestQueueDropOldestCountsDrops(t *testing.T) {
	q := newBoundedQueue[int](2, DropOldest)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Push(ctx, i))
	}
	assert.Equal(t, uint64(3), q.Dropped())
	assert.Equal(t, 2, q.Len())

	q.Close()

	var got []int
	q.Consume(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{4, 5}, got)
}

func TestQueueBlockWaitsForRoom(t *testing.T) {
	q := newBoundedQueue[int](1, Block)
	require.NoError(t, q.Push(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Push(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, q.Dropped())
}

func TestQueueBlockUnblocksOnClose(t *testing.T) {
	q := newBoundedQueue[int](1, Block)
	require.NoError(t, q.Push(context.Background(), 1))

	errCh := make(chan error, 1)
	go func() { errCh <- q.Push(context.Background(), 2) }()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked sender not released by Close")
	}
}

func TestQueuePushAfterClose(t *testing.T) {
	q := newBoundedQueue[string](4, DropOldest)
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Push(context.Background(), "x"), ErrChannelClosed)
}
