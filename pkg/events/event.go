package events

import (
	"context"
	"time"
)

const (
	TypeHistoryAdded     = "HISTORY_ADDED"
	TypeCorrelationSaved = "CORRELATION_SAVED"
	TypeSessionClosed    = "SESSION_CLOSED"
)

// Event is anything published on the event bus.
type Event interface {
	// EventType is the subject suffix, e.g. "HISTORY_ADDED".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// UserID returns the "user_id" entry of the payload, or "".
func (e BaseEvent) UserID() string {
	id, _ := e.Data["user_id"].(string)
	return id
}

// Publisher delivers events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
