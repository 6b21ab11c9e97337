package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"taskflow/internal/events"
)

// Alert is a transient user-facing message.
type Alert struct {
	Title string
	Body  string
}

// AlertFunc receives alerts produced by the bridge.
type AlertFunc func(Alert)

// EventSource is the client end of the event channel as seen by the bridge.
// *events.Conn satisfies it.
type EventSource interface {
	On(kind string, h events.Handler)
	Off(kind string)
	OnReconnect(fn func())
}

// Bridge translates channel events into cache invalidation and alerts for
// one session. It never mutates task or notification data itself; every
// event only makes the relevant cache key refetch from the server.
//
// Task-creation alerts go to every session, not just assignees. That mirrors
// the product behavior of the board; scoping them would be a product change.
type Bridge struct {
	source EventSource
	cache  *Cache
	userID string
	alert  AlertFunc
	logger *slog.Logger
}

// NewBridge wires a bridge for the session identified by userID.
func NewBridge(source EventSource, cache *Cache, userID string, alert AlertFunc, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		source: source,
		cache:  cache,
		userID: userID,
		alert:  alert,
		logger: logger,
	}
}

// Attach registers the bridge's event handlers and returns the matching
// detach function. Each kind holds exactly one handler, so re-attaching
// after detach never accumulates duplicates; the caller must invoke detach
// on session teardown or handlers leak across reconnects.
func (b *Bridge) Attach(ctx context.Context) (detach func()) {
	b.source.On(events.KindTaskCreated, func(ev events.Event) {
		if ev.Task == nil {
			b.logger.Warn("taskCreated event without task payload")
			return
		}
		b.showAlert(Alert{Title: "New Task", Body: fmt.Sprintf("New Task created: %q", ev.Task.Title)})
		b.cache.Invalidate(ctx, CacheKeyTasks)
	})
	b.source.On(events.KindTaskUpdated, func(ev events.Event) {
		b.cache.Invalidate(ctx, CacheKeyTasks)
	})
	b.source.On(events.KindTaskDeleted, func(ev events.Event) {
		b.cache.Invalidate(ctx, CacheKeyTasks)
	})
	b.source.On(events.KindNotification, func(ev events.Event) {
		// Every session receives every notification event; only the
		// recipient's session reacts.
		if ev.UserID != b.userID {
			return
		}
		b.showAlert(Alert{Title: "New Assignment", Body: fmt.Sprintf("New Assignment: %s", ev.Message)})
		b.cache.Invalidate(ctx, CacheKeyNotifications)
	})
	b.source.OnReconnect(func() {
		// The channel has no replay, so a reconnect means anything may have
		// been missed.
		b.cache.Invalidate(ctx, CacheKeyTasks)
		b.cache.Invalidate(ctx, CacheKeyNotifications)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.source.Off(events.KindTaskCreated)
			b.source.Off(events.KindTaskUpdated)
			b.source.Off(events.KindTaskDeleted)
			b.source.Off(events.KindNotification)
			b.source.OnReconnect(nil)
		})
	}
}

func (b *Bridge) showAlert(a Alert) {
	if b.alert != nil {
		b.alert(a)
	}
}
