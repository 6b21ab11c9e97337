package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/events"
	"taskflow/internal/storage/sqlite"
)

// Server provides the REST boundary and the event channel endpoint for the
// shared board.
type Server struct {
	engine *gin.Engine
	store  *sqlite.Store
	hub    *events.Hub
	logger *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured. The
// hub is the single broadcast point for every mutation the server applies.
func New(store *sqlite.Store, hub *events.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api"))

	srv := &Server{
		engine: router,
		store:  store,
		hub:    hub,
		logger: logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/events", s.handleEvents)

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.PATCH(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
		}

		users := api.Group("/users")
		{
			users.GET("", s.handleListUsers)
			users.POST("", s.handleCreateUser)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", s.handleListNotifications)
			notifications.PATCH(":id/read", s.handleMarkNotificationRead)
		}
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// currentUserID extracts the session user from the request. Authentication
// itself lives outside this service; the upstream session layer sets the
// header.
func currentUserID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

// respondError logs the error and returns a JSON payload with a status
// derived from the error when possible.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if errors.Is(err, sqlite.ErrNotFound) {
		status = http.StatusNotFound
	}
	if err != nil {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
