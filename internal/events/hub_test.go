package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastPreservesOrderPerSubscriber(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	a := hub.Subscribe()
	b := hub.Subscribe()
	require.Equal(t, 2, hub.SubscriberCount())

	hub.Broadcast(TaskDeleted("t1"))
	hub.Broadcast(TaskDeleted("t2"))
	hub.Broadcast(TaskDeleted("t3"))

	for _, sub := range []*Subscriber{a, b} {
		for _, want := range []string{"t1", "t2", "t3"} {
			ev := <-sub.Events()
			assert.Equal(t, want, ev.TaskID)
		}
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	sub := hub.Subscribe()
	hub.Unsubscribe(sub)

	hub.Broadcast(TaskDeleted("t1"))

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Unsubscribing twice must not panic.
	hub.Unsubscribe(sub)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	sub := hub.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Broadcast(TaskDeleted("t"))
	}

	// The buffer holds the first events; the overflow is gone for good.
	received := 0
	for {
		select {
		case <-sub.Events():
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, received)
}

func TestHubCloseTerminatesSubscribers(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe()
	hub.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)

	assert.Nil(t, hub.Subscribe(), "subscribe after close yields nil")
	hub.Broadcast(TaskDeleted("t1")) // must not panic
}
