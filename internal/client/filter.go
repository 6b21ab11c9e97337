package client

import (
	"time"

	"taskflow/internal/models"
)

// View selects which subset of the board a session is looking at.
type View string

const (
	ViewAll     View = "all"
	ViewMine    View = "mine"
	ViewCreated View = "created"
	ViewOverdue View = "overdue"
)

// FilterTasks derives the visible subset of tasks for a user and view. Pure:
// no I/O, no mutation, and the clock is an argument so overdue checks are
// deterministic. An empty userID means the session identity is not resolved
// yet; the result is then empty rather than a flash of someone else's board.
func FilterTasks(tasks []models.Task, userID string, view View, now time.Time) []models.Task {
	if userID == "" {
		return nil
	}

	var out []models.Task
	for _, t := range tasks {
		switch view {
		case ViewMine:
			if !t.AssignedTo.Contains(userID) {
				continue
			}
		case ViewCreated:
			if t.CreatorID != userID {
				continue
			}
		case ViewOverdue:
			if t.DueDate == nil || !t.DueDate.Before(now) || t.Status == models.StatusCompleted {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
