package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"explore-state-be/pkg/events"
)

const (
	StreamName    = "EVENTS"
	subjectPrefix = "events."
)

// envelope keeps the event type and time with the payload so subscribers
// do not have to derive them from the subject.
type envelope struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func Subject(eventType string) string {
	return subjectPrefix + eventType
}

func encode(e events.Event) ([]byte, error) {
	return json.Marshal(envelope{
		Type:       e.EventType(),
		OccurredAt: e.Timestamp(),
		Data:       e.Payload(),
	})
}

func decode(subject string, data []byte) (events.BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.BaseEvent{}, fmt.Errorf("decode event on %s: %w", subject, err)
	}
	if env.Type == "" && len(subject) > len(subjectPrefix) {
		env.Type = subject[len(subjectPrefix):]
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now()
	}
	return events.BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}, nil
}
