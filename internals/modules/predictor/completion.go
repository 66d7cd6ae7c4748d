package predictor

import (
	"context"
	"encoding/json"
	"fmt"

	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/rabbitmq"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Observer receives fresh predictions, typically the alert engine.
type Observer interface {
	ObservePrediction(ctx context.Context, endpointID uuid.UUID, p Prediction) error
}

// CompletionHandler reacts to training-completed events by fetching the new
// prediction for that endpoint.
type CompletionHandler struct {
	predictor FailurePredictor
	observer  Observer
	logger    *zerolog.Logger
}

func NewCompletionHandler(p FailurePredictor, o Observer, logger *zerolog.Logger) *CompletionHandler {
	return &CompletionHandler{predictor: p, observer: o, logger: logger}
}

func (h *CompletionHandler) Handle(ctx context.Context, event rabbitmq.EventPayload) error {
	var done TrainDone
	if err := json.Unmarshal(event.Payload, &done); err != nil {
		return fmt.Errorf("decode train result: %w", err)
	}
	if done.EndpointID == uuid.Nil {
		return fmt.Errorf("train result %v has no endpoint id", done.TaskID)
	}

	if !done.Success {
		h.logger.Warn().
			Str("endpoint_id", done.EndpointID.String()).
			Str("task_id", done.TaskID.String()).
			Str("error", done.Error).
			Msg("training failed")
		return nil
	}

	p, err := h.predictor.Predict(ctx, done.EndpointID)
	if apperror.IsKind(err, apperror.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return h.observer.ObservePrediction(ctx, done.EndpointID, p)
}
