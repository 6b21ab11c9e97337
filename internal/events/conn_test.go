package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEventServer(t *testing.T, handle func(ws *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handle(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func mustEncode(t *testing.T, ev Event) []byte {
	t.Helper()
	raw, err := Encode(ev)
	require.NoError(t, err)
	return raw
}

func TestConnDispatchesToRegisteredHandler(t *testing.T) {
	send := make(chan []byte, 8)
	url := startEventServer(t, func(ws *websocket.Conn) {
		for raw := range send {
			if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	})
	defer close(send)

	conn := Dial(context.Background(), url, nil)
	defer conn.Close()

	got := make(chan Event, 8)
	conn.On(KindTaskCreated, func(ev Event) { got <- ev })

	send <- mustEncode(t, TaskCreated(taskFixture("t1")))

	select {
	case ev := <-got:
		require.NotNil(t, ev.Task)
		assert.Equal(t, "t1", ev.Task.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestConnDropsMalformedAndUnknownMessages(t *testing.T) {
	send := make(chan []byte, 8)
	url := startEventServer(t, func(ws *websocket.Conn) {
		for raw := range send {
			if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	})
	defer close(send)

	conn := Dial(context.Background(), url, nil)
	defer conn.Close()

	got := make(chan Event, 8)
	conn.On(KindTaskDeleted, func(ev Event) { got <- ev })

	send <- []byte(`{{{not json`)
	send <- []byte(`{"event":"somethingElse","data":{}}`)
	send <- mustEncode(t, TaskDeleted("t2"))

	// The bad messages are skipped; the connection survives and the good
	// event still arrives.
	select {
	case ev := <-got:
		assert.Equal(t, "t2", ev.TaskID)
	case <-time.After(5 * time.Second):
		t.Fatal("good event after malformed ones was not dispatched")
	}
	assert.Empty(t, got)
}

func TestConnOffRemovesHandler(t *testing.T) {
	send := make(chan []byte, 8)
	url := startEventServer(t, func(ws *websocket.Conn) {
		for raw := range send {
			if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	})
	defer close(send)

	conn := Dial(context.Background(), url, nil)
	defer conn.Close()

	created := make(chan Event, 8)
	deleted := make(chan Event, 8)
	conn.On(KindTaskCreated, func(ev Event) { created <- ev })
	conn.On(KindTaskDeleted, func(ev Event) { deleted <- ev })
	conn.Off(KindTaskCreated)

	send <- mustEncode(t, TaskCreated(taskFixture("t1")))
	send <- mustEncode(t, TaskDeleted("t2"))

	// The deleted event proves the pipeline ran past the created one.
	select {
	case <-deleted:
	case <-time.After(5 * time.Second):
		t.Fatal("taskDeleted was not dispatched")
	}
	assert.Empty(t, created, "handler removed with Off must not fire")
}

func TestConnReconnectsAndSignalsGap(t *testing.T) {
	var conns atomic.Int32
	url := startEventServer(t, func(ws *websocket.Conn) {
		n := conns.Add(1)
		if n == 1 {
			return // drop the first session immediately
		}
		// Keep the second session open until the client goes away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn := Dial(context.Background(), url, nil)
	defer conn.Close()

	var reconnects atomic.Int32
	conn.OnReconnect(func() { reconnects.Add(1) })

	require.Eventually(t, func() bool {
		return reconnects.Load() >= 1
	}, 10*time.Second, 100*time.Millisecond, "reconnect hook should fire after redial")
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestConnCloseStopsDispatch(t *testing.T) {
	url := startEventServer(t, func(ws *websocket.Conn) {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	conn := Dial(context.Background(), url, nil)
	conn.On(KindTaskCreated, func(Event) {})
	require.NoError(t, conn.Close())
	// Close released the handlers and stopped the pump; closing again is
	// not required but must not hang.
}
