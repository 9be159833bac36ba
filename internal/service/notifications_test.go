package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamevisor/internal/models"
)

func sendAll(t *testing.T, bus *NotificationBus, titles ...string) {
	t.Helper()
	for _, title := range titles {
		require.NoError(t, bus.Send(context.Background(), models.Notification{Title: title}))
	}
	require.Eventually(t, func() bool { return len(bus.All()) >= len(titles) }, time.Second, 5*time.Millisecond)
}

func TestSendFillsDefaults(t *testing.T) {
	bus := NewNotificationBus(10)
	defer bus.Close()

	sendAll(t, bus, "hello")

	n := bus.All()[0]
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Timestamp.IsZero())
	assert.Equal(t, models.NotifyInfo, n.Level)
	assert.False(t, n.Read)
}

func TestMarkRead(t *testing.T) {
	bus := NewNotificationBus(10)
	defer bus.Close()

	sendAll(t, bus, "a", "b")
	all := bus.All()
	require.Len(t, all, 2)
	assert.Len(t, bus.Unread(), 2)

	bus.MarkRead("does-not-exist")
	assert.Len(t, bus.Unread(), 2)

	bus.MarkRead(all[0].ID)
	bus.MarkRead(all[0].ID)

	unread := bus.Unread()
	require.Len(t, unread, 1)
	assert.Equal(t, all[1].ID, unread[0].ID)
	assert.True(t, bus.All()[0].Read)
}

func TestClear(t *testing.T) {
	bus := NewNotificationBus(10)
	defer bus.Close()

	sendAll(t, bus, "a", "b", "c")
	bus.Clear()

	assert.Empty(t, bus.All())
	assert.Empty(t, bus.Unread())
}

func TestSendAfterClose(t *testing.T) {
	bus := NewNotificationBus(10)
	sendAll(t, bus, "kept")
	bus.Close()

	err := bus.Send(context.Background(), models.Notification{Title: "late"})
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.Len(t, bus.All(), 1)
}

func TestConcurrentProducers(t *testing.T) {
	bus := NewNotificationBus(4)
	defer bus.Close()

	const producers, each = 8, 25
	done := make(chan struct{})
	for p := 0; p < producers; p++ {
		go func() {
			for i := 0; i < each; i++ {
				bus.Send(context.Background(), models.Notification{Title: "n"})
			}
			done <- struct{}{}
		}()
	}
	for p := 0; p < producers; p++ {
		<-done
	}

	assert.Eventually(t, func() bool { return len(bus.All()) == producers*each }, 2*time.Second, 5*time.Millisecond)
}
