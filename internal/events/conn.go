package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	redialMin = time.Second
	redialMax = 30 * time.Second
)

// Handler consumes one decoded event. Handlers run on the connection's single
// dispatch goroutine and must not block; they only schedule work.
type Handler func(Event)

// Conn is one session's end of the event channel. It dials the server,
// decodes envelopes, and dispatches them to at most one handler per kind.
// Disconnects are retried with backoff; after every successful redial the
// reconnect hook fires so the session can refetch anything it may have
// missed while offline.
type Conn struct {
	url    string
	logger *slog.Logger

	mu          sync.Mutex
	handlers    map[string]Handler
	onReconnect func()

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial starts a connection loop against the given websocket URL. The returned
// Conn is live immediately; an unreachable server is retried in the
// background rather than reported as an error.
func Dial(ctx context.Context, url string, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		url:      url,
		logger:   logger,
		handlers: make(map[string]Handler),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// On registers the handler for an event kind, replacing any previous one.
func (c *Conn) On(kind string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = h
}

// Off removes the handler for an event kind.
func (c *Conn) Off(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, kind)
}

// OnReconnect registers the hook invoked after each successful redial.
func (c *Conn) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = fn
}

// Close stops the connection loop and waits for the dispatch goroutine to
// exit. All handlers are released.
func (c *Conn) Close() error {
	c.cancel()
	<-c.done
	c.mu.Lock()
	c.handlers = make(map[string]Handler)
	c.onReconnect = nil
	c.mu.Unlock()
	return nil
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)

	backoff := redialMin
	connectedBefore := false
	for {
		if ctx.Err() != nil {
			return
		}

		ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("event channel dial failed",
				slog.String("url", c.url), slog.String("error", err.Error()))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, redialMax)
			continue
		}
		backoff = redialMin

		if connectedBefore {
			// Anything broadcast while we were away is gone for good, so
			// let the session refetch.
			c.mu.Lock()
			hook := c.onReconnect
			c.mu.Unlock()
			if hook != nil {
				hook()
			}
		}
		connectedBefore = true

		c.readPump(ctx, ws)
		_ = ws.Close()

		select {
		case <-time.After(redialMin):
		case <-ctx.Done():
			return
		}
	}
}

// readPump decodes and dispatches messages until the socket fails or the
// context is cancelled. It is the single dispatch goroutine for this Conn.
func (c *Conn) readPump(ctx context.Context, ws *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Info("event channel disconnected", slog.String("error", err.Error()))
			}
			return
		}

		ev, err := Decode(raw)
		if err != nil {
			c.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Conn) dispatch(ev Event) {
	c.mu.Lock()
	h := c.handlers[ev.Kind]
	c.mu.Unlock()
	if h != nil {
		h(ev)
	}
}
