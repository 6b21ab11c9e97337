package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskflow/internal/events"
	"taskflow/internal/models"
	"taskflow/internal/storage/sqlite"
)

type taskRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *string            `json:"status"`
	Priority    *string            `json:"priority"`
	DueDate     *time.Time         `json:"dueDate"`
	AssignedTo  *models.UserIDList `json:"assignedTo"`
}

// handleListTasks fetches tasks, optionally narrowed by status and priority.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.Request.Context(), sqlite.TaskFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	})
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	respondSuccess(c, http.StatusOK, tasks)
}

// handleCreateTask inserts a new task, broadcasts its creation to every
// session, and notifies the assignees.
func (s *Server) handleCreateTask(c *gin.Context) {
	creator := currentUserID(c)
	if creator == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("missing X-User-ID header"))
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Title == nil || *req.Title == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}

	t := models.Task{
		Title:       *req.Title,
		Description: getString(req.Description),
		Status:      getString(req.Status),
		Priority:    getString(req.Priority),
		DueDate:     req.DueDate,
		CreatorID:   creator,
	}
	if req.AssignedTo != nil {
		t.AssignedTo = *req.AssignedTo
	}

	task, err := s.store.CreateTask(c.Request.Context(), t)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	s.hub.Broadcast(events.TaskCreated(task))
	s.notifyAssignees(c.Request.Context(), task, task.AssignedTo)

	respondSuccess(c, http.StatusCreated, task)
}

// handleUpdateTask patches task fields. Assignees added by the patch get a
// notification; the updated record is broadcast to every session either way.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id := c.Param("id")

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	before, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), id, sqlite.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	s.hub.Broadcast(events.TaskUpdated(task))

	var added models.UserIDList
	for _, userID := range task.AssignedTo {
		if !before.AssignedTo.Contains(userID) {
			added = append(added, userID)
		}
	}
	s.notifyAssignees(c.Request.Context(), task, added)

	respondSuccess(c, http.StatusOK, task)
}

// handleDeleteTask removes a task completely and broadcasts the deletion.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteTask(c.Request.Context(), id); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	s.hub.Broadcast(events.TaskDeleted(id))
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// notifyAssignees writes one unread notification per recipient and couples
// each with exactly one notification broadcast. The task creator assigning
// themselves does not produce a notification.
func (s *Server) notifyAssignees(ctx context.Context, task models.Task, recipients models.UserIDList) {
	for _, userID := range recipients {
		if userID == task.CreatorID {
			continue
		}
		message := fmt.Sprintf("You have been assigned to task %q", task.Title)
		if _, err := s.store.CreateNotification(ctx, userID, message); err != nil {
			s.logger.Error("failed to store notification",
				slog.String("user", userID), slog.String("error", err.Error()))
			continue
		}
		s.hub.Broadcast(events.Notification(userID, message))
	}
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
