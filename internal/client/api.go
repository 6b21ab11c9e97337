package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"taskflow/internal/models"
)

// API talks to the board's REST endpoints on behalf of one session. Any
// non-2xx response is returned as an error naming the attempted action;
// callers surface it as an alert, never as a crash.
type API struct {
	baseURL string
	userID  string
	http    *http.Client
}

// NewAPI creates a client for the server at baseURL acting as userID.
func NewAPI(baseURL, userID string) *API {
	return &API{
		baseURL: baseURL,
		userID:  userID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// TaskDraft is the payload for creating a task.
type TaskDraft struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status,omitempty"`
	Priority    string            `json:"priority,omitempty"`
	DueDate     *time.Time        `json:"dueDate,omitempty"`
	AssignedTo  models.UserIDList `json:"assignedTo,omitempty"`
}

// TaskUpdate is the payload for patching a task. Nil fields are not sent.
type TaskUpdate struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Status      *string            `json:"status,omitempty"`
	Priority    *string            `json:"priority,omitempty"`
	DueDate     *time.Time         `json:"dueDate,omitempty"`
	AssignedTo  *models.UserIDList `json:"assignedTo,omitempty"`
}

// ListTasks fetches the task list, optionally filtered by status/priority.
func (a *API) ListTasks(ctx context.Context, status, priority string) ([]models.Task, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if priority != "" {
		query.Set("priority", priority)
	}
	path := "/api/tasks"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var tasks []models.Task
	if err := a.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListUsers fetches all registered users.
func (a *API) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := a.do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListNotifications fetches the session user's notifications, newest first.
func (a *API) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var notes []models.Notification
	if err := a.do(ctx, http.MethodGet, "/api/notifications", nil, &notes); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notes, nil
}

// MarkNotificationRead marks one notification as read.
func (a *API) MarkNotificationRead(ctx context.Context, id string) error {
	if err := a.do(ctx, http.MethodPatch, "/api/notifications/"+id+"/read", struct{}{}, nil); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// CreateTask creates a new task owned by the session user.
func (a *API) CreateTask(ctx context.Context, draft TaskDraft) (models.Task, error) {
	var task models.Task
	if err := a.do(ctx, http.MethodPost, "/api/tasks", draft, &task); err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// UpdateTask patches an existing task.
func (a *API) UpdateTask(ctx context.Context, id string, update TaskUpdate) (models.Task, error) {
	var task models.Task
	if err := a.do(ctx, http.MethodPatch, "/api/tasks/"+id, update, &task); err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// DeleteTask removes a task.
func (a *API) DeleteTask(ctx context.Context, id string) error {
	if err := a.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", a.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
