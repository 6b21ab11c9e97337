package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"taskflow/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEvents upgrades the request to a websocket and streams every hub
// broadcast to the session until it disconnects. There is no replay: a
// session only sees events broadcast while it is attached.
func (s *Server) handleEvents(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade event channel", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	sub := s.hub.Subscribe()
	if sub == nil {
		return
	}
	defer s.hub.Unsubscribe(sub)

	// Drain reads so we notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			raw, err := events.Encode(ev)
			if err != nil {
				s.logger.Error("failed to encode event", slog.String("kind", ev.Kind), slog.String("error", err.Error()))
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
