package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"taskflow/internal/models"
)

// ErrNotFound is returned when a task, user, or notification id does not
// exist. Handlers map it to a 404.
var ErrNotFound = errors.New("not found")

// Store wraps access to the SQLite database and exposes high level helpers.
// Writes are immediately visible to subsequent reads from the same store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            created_at DATETIME NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'To Do',
            priority TEXT NOT NULL DEFAULT 'Low',
            due_date DATETIME,
            assigned_to TEXT NOT NULL DEFAULT '[]',
            creator_id TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            message TEXT NOT NULL,
            is_read INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateUser registers a new board member.
func (s *Store) CreateUser(ctx context.Context, name, email string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return models.User{}, fmt.Errorf("user name must not be empty")
	}
	if email == "" {
		return models.User{}, fmt.Errorf("user email must not be empty")
	}

	u := models.User{ID: uuid.NewString(), Name: name, Email: email}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(id, name, email, created_at) VALUES(?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, time.Now().UTC())
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// ListUsers returns all registered users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// TaskFilter narrows ListTasks results. Empty fields match everything.
type TaskFilter struct {
	Status   string
	Priority string
}

// ListTasks returns tasks matching the filter, newest first.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	query := `SELECT id, title, description, status, priority, due_date, assigned_to, creator_id, created_at, updated_at FROM tasks`
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, filter.Priority)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	var due sql.NullTime
	var assigned string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&due, &assigned, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	if err := json.Unmarshal([]byte(assigned), &t.AssignedTo); err != nil {
		return models.Task{}, fmt.Errorf("decode assigned_to: %w", err)
	}
	return t, nil
}

// CreateTask inserts a new task. Status and priority fall back to their
// defaults when absent; invalid values are rejected. The id and timestamps
// are assigned here.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}
	if t.CreatorID == "" {
		return models.Task{}, fmt.Errorf("task creator must not be empty")
	}
	if t.Status == "" {
		t.Status = models.StatusToDo
	} else if _, ok := models.ValidTaskStatuses[t.Status]; !ok {
		return models.Task{}, fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Priority == "" {
		t.Priority = models.PriorityLow
	} else if _, ok := models.ValidTaskPriorities[t.Priority]; !ok {
		return models.Task{}, fmt.Errorf("invalid priority %q", t.Priority)
	}
	t.AssignedTo = t.AssignedTo.Dedupe()

	t.ID = uuid.NewString()
	now := time.Now().UTC()

	assigned, err := json.Marshal(t.AssignedTo)
	if err != nil {
		return models.Task{}, fmt.Errorf("encode assigned_to: %w", err)
	}

	var due any
	if t.DueDate != nil {
		due = t.DueDate.UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, title, description, status, priority, due_date, assigned_to, creator_id, created_at, updated_at)
         VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, strings.TrimSpace(t.Description), t.Status, t.Priority, due, string(assigned), t.CreatorID, now, now)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, t.ID)
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, status, priority, due_date, assigned_to, creator_id, created_at, updated_at FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// TaskPatch carries the fields of a partial task update. Nil fields are left
// untouched; the write replaces the whole row (last write wins).
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	AssignedTo  *models.UserIDList
}

// UpdateTask merges the patch into the stored task and returns the result.
func (s *Store) UpdateTask(ctx context.Context, id string, patch TaskPatch) (models.Task, error) {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) != "" {
		current.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		current.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		if _, ok := models.ValidTaskStatuses[*patch.Status]; !ok {
			return models.Task{}, fmt.Errorf("invalid status %q", *patch.Status)
		}
		current.Status = *patch.Status
	}
	if patch.Priority != nil {
		if _, ok := models.ValidTaskPriorities[*patch.Priority]; !ok {
			return models.Task{}, fmt.Errorf("invalid priority %q", *patch.Priority)
		}
		current.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		d := patch.DueDate.UTC()
		current.DueDate = &d
	}
	if patch.AssignedTo != nil {
		current.AssignedTo = patch.AssignedTo.Dedupe()
	}

	assigned, err := json.Marshal(current.AssignedTo)
	if err != nil {
		return models.Task{}, fmt.Errorf("encode assigned_to: %w", err)
	}
	var due any
	if current.DueDate != nil {
		due = current.DueDate.UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, assigned_to = ?, updated_at = ? WHERE id = ?`,
		current.Title, current.Description, current.Status, current.Priority, due, string(assigned), time.Now().UTC(), id)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateNotification appends a new unread record for the recipient.
func (s *Store) CreateNotification(ctx context.Context, userID, message string) (models.Notification, error) {
	if userID == "" {
		return models.Notification{}, fmt.Errorf("notification user must not be empty")
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(id, user_id, message, is_read, created_at) VALUES(?, ?, ?, 0, ?)`,
		n.ID, n.UserID, n.Message, n.CreatedAt)
	if err != nil {
		return models.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the recipient's notifications, most recent first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, message, is_read, created_at FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notes []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkNotificationRead flips is_read to true. Marking an already-read
// notification again is a no-op; an unknown id is ErrNotFound. is_read never
// goes back to false.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}
