package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gamevisor/internal/models"
)

// NotificationBus fans notifications from any number of producers into one
// consumer goroutine that appends them to the history. Senders block while
// the queue is full.
type NotificationBus struct {
	queue *boundedQueue[models.Notification]
	now   func() time.Time

	mu      sync.RWMutex
	history []models.Notification

	done chan struct{}
}

func NewNotificationBus(queueSize int) *NotificationBus {
	b := &NotificationBus{
		queue: newBoundedQueue[models.Notification](queueSize, Block),
		now:   time.Now,
		done:  make(chan struct{}),
	}

	go func() {
		defer close(b.done)
		b.queue.Consume(b.store)
	}()

	return b
}

func (b *NotificationBus) store(n models.Notification) {
	b.mu.Lock()
	b.history = append(b.history, n)
	b.mu.Unlock()
}

// Send queues n, filling in a missing id and timestamp. It blocks while the
// queue is full and fails with ErrChannelClosed after Close.
func (b *NotificationBus) Send(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = b.now()
	}
	if n.Level == "" {
		n.Level = models.NotifyInfo
	}
	return b.queue.Push(ctx, n)
}

func (b *NotificationBus) All() []models.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Notification, len(b.history))
	copy(out, b.history)
	return out
}

func (b *NotificationBus) Unread() []models.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := []models.Notification{}
	for _, n := range b.history {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead flags the notification with the given id as read. Unknown ids are
// ignored.
func (b *NotificationBus) MarkRead(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.history {
		if b.history[i].ID == id {
			b.history[i].Read = true
			return
		}
	}
}

func (b *NotificationBus) Clear() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}

// Close stops the consumer after it stored everything already queued.
func (b *NotificationBus) Close() {
	b.queue.Close()
	<-b.done
}
