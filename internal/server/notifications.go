package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
)

// handleListNotifications returns the session user's notifications, most
// recent first. Clients poll this on a fixed interval in addition to the push
// channel so that broadcasts missed while disconnected are still recovered.
func (s *Server) handleListNotifications(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("missing X-User-ID header"))
		return
	}

	notes, err := s.store.ListNotifications(c.Request.Context(), userID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	respondSuccess(c, http.StatusOK, notes)
}

// handleMarkNotificationRead marks a notification as read. Marking twice is
// fine; an unknown id is a 404.
func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.MarkNotificationRead(c.Request.Context(), id); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "ok"})
}
