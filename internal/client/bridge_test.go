package client

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/events"
	"taskflow/internal/models"
)

// fakeSource stands in for the websocket connection so tests can inject
// events directly into the bridge's handlers.
type fakeSource struct {
	handlers  map[string]events.Handler
	reconnect func()
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string]events.Handler)}
}

func (f *fakeSource) On(kind string, h events.Handler) { f.handlers[kind] = h }
func (f *fakeSource) Off(kind string)                  { delete(f.handlers, kind) }
func (f *fakeSource) OnReconnect(fn func())            { f.reconnect = fn }

func (f *fakeSource) emit(ev events.Event) {
	if h, ok := f.handlers[ev.Kind]; ok {
		h(ev)
	}
}

type bridgeFixture struct {
	source      *fakeSource
	cache       *Cache
	alerts      []Alert
	taskFetches *atomic.Int32
	noteFetches *atomic.Int32
}

func newBridgeFixture(t *testing.T, userID string) (*bridgeFixture, *Bridge) {
	t.Helper()
	fx := &bridgeFixture{
		source:      newFakeSource(),
		cache:       NewCache(nil),
		taskFetches: new(atomic.Int32),
		noteFetches: new(atomic.Int32),
	}
	fx.cache.Register(CacheKeyTasks, func(ctx context.Context) (any, error) {
		fx.taskFetches.Add(1)
		return nil, nil
	})
	fx.cache.Register(CacheKeyNotifications, func(ctx context.Context) (any, error) {
		fx.noteFetches.Add(1)
		return nil, nil
	})

	bridge := NewBridge(fx.source, fx.cache, userID, func(a Alert) {
		fx.alerts = append(fx.alerts, a)
	}, nil)
	return fx, bridge
}

func waitFetches(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	require.Eventually(t, func() bool { return counter.Load() == want },
		2*time.Second, 5*time.Millisecond)
}

func TestBridgeTaskCreatedAlertsAndInvalidates(t *testing.T) {
	fx, bridge := newBridgeFixture(t, "userA")
	detach := bridge.Attach(context.Background())
	defer detach()

	fx.source.emit(events.TaskCreated(models.Task{ID: "t1", Title: "Launch checklist"}))

	require.Len(t, fx.alerts, 1)
	assert.Equal(t, "New Task", fx.alerts[0].Title)
	assert.Equal(t, `New Task created: "Launch checklist"`, fx.alerts[0].Body)
	waitFetches(t, fx.taskFetches, 1)
	assert.Equal(t, int32(0), fx.noteFetches.Load())
}

func TestBridgeTaskUpdatedAndDeletedInvalidateSilently(t *testing.T) {
	fx, bridge := newBridgeFixture(t, "userA")
	detach := bridge.Attach(context.Background())
	defer detach()

	fx.source.emit(events.TaskUpdated(models.Task{ID: "t1", Title: "x"}))
	fx.source.emit(events.TaskDeleted("t1"))

	waitFetches(t, fx.taskFetches, 2)
	assert.Empty(t, fx.alerts, "updates and deletes produce no alert")
}

func TestBridgeNotificationForSessionUser(t *testing.T) {
	fx, bridge := newBridgeFixture(t, "userB")
	detach := bridge.Attach(context.Background())
	defer detach()

	fx.source.emit(events.Notification("userB", "You have been assigned to task \"Review\""))

	require.Len(t, fx.alerts, 1)
	assert.Equal(t, "New Assignment", fx.alerts[0].Title)
	assert.Contains(t, fx.alerts[0].Body, "You have been assigned")
	waitFetches(t, fx.noteFetches, 1)
	assert.Equal(t, int32(0), fx.taskFetches.Load())
}

func TestBridgeIgnoresForeignNotification(t *testing.T) {
	fx, bridge := newBridgeFixture(t, "userA")
	detach := bridge.Attach(context.Background())
	defer detach()

	fx.source.emit(events.Notification("userB", "not for this session"))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, fx.alerts, "someone else's notification shows no alert")
	assert.Equal(t, int32(0), fx.noteFetches.Load(), "and invalidates nothing")
	assert.Equal(t, int32(0), fx.taskFetches.Load())
}

func TestBridgeRepeatedEventsRepeatInvalidations(t *testing.T) {
	fx, bridge := newBridgeFixture(t, "userA")
	detach := bridge.Attach(context.Background())
	defer detach()

	for i := 0; i < 3; i++ {
		fx.source.emit(events.TaskCreated(models.Task{ID: "t1", Title: "same"}))
	}

	assert.Len(t, fx.alerts, 3)
	waitFetches(t, fx.taskFetches, 3)
}

func TestBridgeDetachThenReattachHasNoDuplicateHandlers(t *testing.T) {
	fx, bridge := newBridgeFixture(t, "userA")

	detach := bridge.Attach(context.Background())
	detach()
	detach() // double detach is safe

	fx.source.emit(events.TaskCreated(models.Task{ID: "t1", Title: "after detach"}))
	assert.Empty(t, fx.alerts, "detached bridge must not react")

	detach2 := bridge.Attach(context.Background())
	defer detach2()

	fx.source.emit(events.TaskCreated(models.Task{ID: "t2", Title: "after reattach"}))
	assert.Len(t, fx.alerts, 1, "exactly one alert per event after a reconnect cycle")
	waitFetches(t, fx.taskFetches, 1)
}

func TestBridgeReconnectInvalidatesAllManagedKeys(t *testing.T) {
	fx, bridge := newBridgeFixture(t, "userA")
	detach := bridge.Attach(context.Background())
	defer detach()

	require.NotNil(t, fx.source.reconnect)
	fx.source.reconnect()

	waitFetches(t, fx.taskFetches, 1)
	waitFetches(t, fx.noteFetches, 1)
	assert.Empty(t, fx.alerts)
}

func TestBridgeWorksOverRealConn(t *testing.T) {
	// Bridge against the concrete Conn type, proving the EventSource wiring.
	conn := events.Dial(context.Background(), "ws://127.0.0.1:1/api/events", nil)
	defer conn.Close()

	cache := NewCache(nil)
	cache.Register(CacheKeyTasks, func(ctx context.Context) (any, error) { return nil, nil })
	cache.Register(CacheKeyNotifications, func(ctx context.Context) (any, error) { return nil, nil })

	bridge := NewBridge(conn, cache, "userA", nil, nil)
	detach := bridge.Attach(context.Background())
	detach()
}
