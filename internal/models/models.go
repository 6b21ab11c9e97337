package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task statuses as they appear on the board and on the wire.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)

// ValidTaskStatuses enumerates the statuses supported by the board columns.
var ValidTaskStatuses = map[string]struct{}{
	StatusToDo:       {},
	StatusInProgress: {},
	StatusCompleted:  {},
}

// Task priorities, lowest to highest.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
	PriorityUrgent = "Urgent"
)

// ValidTaskPriorities enumerates the accepted priority levels.
var ValidTaskPriorities = map[string]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
	PriorityUrgent: {},
}

// UserIDList is a set of user identifiers. Older task records stored a single
// bare id for assignedTo, so decoding accepts both a JSON array and a string.
type UserIDList []string

// UnmarshalJSON accepts ["id1","id2"], "id1", or null.
func (l *UserIDList) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		*l = ids
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = UserIDList{single}
		}
		return nil
	}
	return fmt.Errorf("assignedTo must be a string or an array of strings")
}

// Dedupe returns the list with duplicate ids removed, keeping the first
// occurrence order. Assignment is a set; a repeated id carries no meaning.
func (l UserIDList) Dedupe() UserIDList {
	if len(l) < 2 {
		return l
	}
	seen := make(map[string]struct{}, len(l))
	out := make(UserIDList, 0, len(l))
	for _, id := range l {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Contains reports whether the given user id is in the list.
func (l UserIDList) Contains(userID string) bool {
	for _, id := range l {
		if id == userID {
			return true
		}
	}
	return false
}

// Task represents a single card on the shared board.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssignedTo  UserIDList `json:"assignedTo"`
	CreatorID   string     `json:"creatorId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// User is a registered board member. The core only looks users up; it never
// mutates them.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Notification is a per-user assignment message with read tracking.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnreadCount recomputes the number of unread notifications from a freshly
// fetched list. There is deliberately no separately maintained counter.
func UnreadCount(list []Notification) int {
	n := 0
	for _, note := range list {
		if !note.IsRead {
			n++
		}
	}
	return n
}
