package rabbitmq

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventTrainRequested = "endpoint.train.requested"
	EventTrainCompleted = "endpoint.train.completed"
)

type EventPayload struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEvent(eventType string, v any) (EventPayload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return EventPayload{}, err
	}
	return EventPayload{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}
