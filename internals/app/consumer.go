package app

import (
	"context"
	"fmt"

	"pulsewatch/internals/metrics"
	"pulsewatch/internals/modules/alert"
	"pulsewatch/internals/modules/predictor"
	"pulsewatch/internals/modules/status"
	"pulsewatch/pkg/rabbitmq"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func StartConsumer(ctx context.Context, c *Container) {
	eventHandler := rabbitmq.NewEventHandler().
		On(rabbitmq.EventTrainCompleted, c.Completion.Handle)

	// Consume ranges over the delivery channel, so it gets its own goroutine
	go func() {
		if err := c.Consumer.Consume(ctx, eventHandler); err != nil {
			c.Logger.Error().
				Err(err).
				Msg("rabbitmq consumer stopped")
		}
	}()
}

// predictionObserver loads the endpoint a fresh prediction belongs to and
// feeds it to the alert engine.
type predictionObserver struct {
	endpoints status.EndpointReader
	engine    *alert.Engine
	metrics   *metrics.Metrics
	logger    *zerolog.Logger
}

func (o *predictionObserver) ObservePrediction(ctx context.Context, endpointID uuid.UUID, p predictor.Prediction) error {
	ep, err := o.endpoints.Get(ctx, endpointID)
	if err != nil {
		return fmt.Errorf("load endpoint %v: %w", endpointID, err)
	}
	tr, err := o.engine.ObservePrediction(ctx, ep, p)
	if err != nil {
		return err
	}
	o.metrics.ObserveTransition(string(tr.Kind), string(tr.Action))
	o.logger.Debug().
		Str("endpoint_id", endpointID.String()).
		Float64("failure_probability", p.FailureProbability).
		Str("action", string(tr.Action)).
		Msg("prediction observed")
	return nil
}
