package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
)

type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleListUsers returns all registered board members.
func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondSuccess(c, http.StatusOK, users)
}

// handleCreateUser registers a new board member. Name and email are fixed
// once registered; the core never mutates users afterwards.
func (s *Server) handleCreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := s.store.CreateUser(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	respondSuccess(c, http.StatusCreated, user)
}
