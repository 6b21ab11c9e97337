// Package events carries typed board mutations between the server and every
// connected session. The server side broadcasts through a Hub; the client
// side receives through a Conn. Delivery is at-most-once per session: a
// session that is disconnected when an event fires never sees it and has to
// rely on its next fetch.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"taskflow/internal/models"
)

// Event kinds as they appear on the wire.
const (
	KindTaskCreated  = "taskCreated"
	KindTaskUpdated  = "taskUpdated"
	KindTaskDeleted  = "taskDeleted"
	KindNotification = "notification"
)

// ErrUnknownKind marks an envelope whose event name this build does not know.
// Receivers drop such events instead of failing the connection.
var ErrUnknownKind = errors.New("unknown event kind")

// Event is the tagged union broadcast to all sessions. Exactly the fields for
// its kind are set; recipient filtering (for notification) is the receiving
// bridge's job, not the channel's.
type Event struct {
	Kind    string
	Task    *models.Task // taskCreated, taskUpdated
	TaskID  string       // taskDeleted
	UserID  string       // notification
	Message string       // notification
}

// TaskCreated builds a creation event carrying the full task record.
func TaskCreated(t models.Task) Event {
	return Event{Kind: KindTaskCreated, Task: &t}
}

// TaskUpdated builds an update event carrying the post-update task record.
func TaskUpdated(t models.Task) Event {
	return Event{Kind: KindTaskUpdated, Task: &t}
}

// TaskDeleted builds a deletion event carrying only the task id.
func TaskDeleted(taskID string) Event {
	return Event{Kind: KindTaskDeleted, TaskID: taskID}
}

// Notification builds a per-user notification event.
func Notification(userID, message string) Event {
	return Event{Kind: KindNotification, UserID: userID, Message: message}
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type taskDeletedPayload struct {
	TaskID string `json:"taskId"`
}

type notificationPayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Encode serializes an event into its wire envelope.
func Encode(ev Event) ([]byte, error) {
	var payload any
	switch ev.Kind {
	case KindTaskCreated, KindTaskUpdated:
		if ev.Task == nil {
			return nil, fmt.Errorf("encode %s: missing task", ev.Kind)
		}
		payload = ev.Task
	case KindTaskDeleted:
		if ev.TaskID == "" {
			return nil, fmt.Errorf("encode %s: missing task id", ev.Kind)
		}
		payload = taskDeletedPayload{TaskID: ev.TaskID}
	case KindNotification:
		if ev.UserID == "" {
			return nil, fmt.Errorf("encode %s: missing user id", ev.Kind)
		}
		payload = notificationPayload{UserID: ev.UserID, Message: ev.Message}
	default:
		return nil, fmt.Errorf("encode: %w: %q", ErrUnknownKind, ev.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.Kind, err)
	}
	return json.Marshal(envelope{Event: ev.Kind, Data: data})
}

// Decode parses a wire envelope back into an event. Unknown kinds return
// ErrUnknownKind; payloads missing their required fields are rejected so that
// half-formed events never reach handlers.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case KindTaskCreated, KindTaskUpdated:
		var t models.Task
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
		if t.ID == "" {
			return Event{}, fmt.Errorf("decode %s: task id missing", env.Event)
		}
		return Event{Kind: env.Event, Task: &t}, nil
	case KindTaskDeleted:
		var p taskDeletedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
		if p.TaskID == "" {
			return Event{}, fmt.Errorf("decode %s: task id missing", env.Event)
		}
		return Event{Kind: env.Event, TaskID: p.TaskID}, nil
	case KindNotification:
		var p notificationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
		if p.UserID == "" {
			return Event{}, fmt.Errorf("decode %s: user id missing", env.Event)
		}
		return Event{Kind: env.Event, UserID: p.UserID, Message: p.Message}, nil
	default:
		return Event{}, fmt.Errorf("decode: %w: %q", ErrUnknownKind, env.Event)
	}
}
