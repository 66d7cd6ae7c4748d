package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

type HandlerFunc func(ctx context.Context, event EventPayload) error

// EventHandler routes deliveries to a handler by event type. Unknown types
// are acknowledged and dropped.
type EventHandler struct {
	handlers map[string]HandlerFunc
}

func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]HandlerFunc),
	}
}

func (h *EventHandler) On(eventType string, fn HandlerFunc) *EventHandler {
	h.handlers[eventType] = fn
	return h
}

func (h *EventHandler) Handle(ctx context.Context, msg amqp091.Delivery) error {
	var event EventPayload
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	fn, ok := h.handlers[event.Type]
	if !ok {
		return nil
	}
	return fn(ctx, event)
}
