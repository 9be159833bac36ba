package service

import (
	"context"
	"sync"
	"sync/atomic"

	"gamevisor/internal/config"
)

// OverflowPolicy decides what a full queue does with a new element.
type OverflowPolicy int

const (
	// DropOldest discards the oldest queued element to make room. Senders
	// never block.
	DropOldest OverflowPolicy = iota
	// Block suspends the sender until the consumer makes room.
	Block
)

// ParseOverflowPolicy maps a configuration value to a policy. Unknown values
// select DropOldest.
func ParseOverflowPolicy(s string) OverflowPolicy {
	if s == config.OverflowBlock {
		return Block
	}
	return DropOldest
}

func (p OverflowPolicy) String() string {
	if p == Block {
		return config.OverflowBlock
	}
	return config.OverflowDropOldest
}

// boundedQueue is a multi-producer, single-consumer queue. The data channel is
// never closed; Close signals done instead so that concurrent senders cannot
// panic.
type boundedQueue[T any] struct {
	ch      chan T
	done    chan struct{}
	once    sync.Once
	policy  OverflowPolicy
	dropped atomic.Uint64
}

func newBoundedQueue[T any](capacity int, policy OverflowPolicy) *boundedQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &boundedQueue[T]{
		ch:     make(chan T, capacity),
		done:   make(chan struct{}),
		policy: policy,
	}
}

// Push enqueues v according to the queue's policy. It returns
// ErrChannelClosed once the queue is closed.
func (q *boundedQueue[T]) Push(ctx context.Context, v T) error {
	select {
	case <-q.done:
		return ErrChannelClosed
	default:
	}

	if q.policy == Block {
		select {
		case q.ch <- v:
			return nil
		case <-q.done:
			return ErrChannelClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case q.ch <- v:
			return nil
		case <-q.done:
			return ErrChannelClosed
		default:
		}

		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Consume calls fn for every element until the queue is closed, then drains
// what is left and returns.
func (q *boundedQueue[T]) Consume(fn func(T)) {
	for {
		select {
		case v := <-q.ch:
			fn(v)
		case <-q.done:
			for {
				select {
				case v := <-q.ch:
					fn(v)
				default:
					return
				}
			}
		}
	}
}

func (q *boundedQueue[T]) Close() {
	q.once.Do(func() { close(q.done) })
}

func (q *boundedQueue[T]) Dropped() uint64 { return q.dropped.Load() }

func (q *boundedQueue[T]) Len() int { return len(q.ch) }
