package predictor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pulsewatch/internals/modules/monitor"
	"pulsewatch/pkg/rabbitmq"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTrainingInterval = 20 * time.Minute
	DefaultMinRecords       = 50
)

type Publisher interface {
	Publish(ctx context.Context, event rabbitmq.EventPayload) error
}

type RecordCounter interface {
	Count(ctx context.Context, endpointID uuid.UUID) (int, error)
}

// Trainer hands training to the external worker. It never trains inline:
// it only publishes a TrainTask, at most once per endpoint per interval and
// only once enough history exists.
type Trainer struct {
	pub        Publisher
	counter    RecordCounter
	interval   time.Duration
	minRecords int

	mu   sync.Mutex
	last map[uuid.UUID]time.Time

	logger *zerolog.Logger
}

func NewTrainer(pub Publisher, counter RecordCounter, interval time.Duration, minRecords int, logger *zerolog.Logger) *Trainer {
	if interval <= 0 {
		interval = DefaultTrainingInterval
	}
	if minRecords <= 0 {
		minRecords = DefaultMinRecords
	}
	return &Trainer{
		pub:        pub,
		counter:    counter,
		interval:   interval,
		minRecords: minRecords,
		last:       make(map[uuid.UUID]time.Time),
		logger:     logger,
	}
}

// MaybeSubmit reports whether a task was published.
func (t *Trainer) MaybeSubmit(ctx context.Context, ep monitor.Endpoint, now time.Time) (bool, error) {
	if !t.reserve(ep.ID, now) {
		return false, nil
	}

	count, err := t.counter.Count(ctx, ep.ID)
	if err != nil {
		t.release(ep.ID)
		return false, fmt.Errorf("count records: %w", err)
	}
	if count < t.minRecords {
		t.release(ep.ID)
		return false, nil
	}

	task := TrainTask{
		TaskID:      uuid.New(),
		EndpointID:  ep.ID,
		OwnerID:     ep.OwnerID,
		Category:    ep.Category,
		Records:     count,
		RequestedAt: now.UTC(),
	}
	event, err := rabbitmq.NewEvent(rabbitmq.EventTrainRequested, task)
	if err != nil {
		t.release(ep.ID)
		return false, err
	}
	if err := t.pub.Publish(ctx, event); err != nil {
		t.release(ep.ID)
		return false, fmt.Errorf("publish train task: %w", err)
	}

	t.logger.Debug().
		Str("endpoint_id", ep.ID.String()).
		Str("task_id", task.TaskID.String()).
		Int("records", count).
		Msg("training task submitted")
	return true, nil
}

func (t *Trainer) reserve(id uuid.UUID, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.last[id]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.last[id] = now
	return true
}

func (t *Trainer) release(id uuid.UUID) {
	t.mu.Lock()
	delete(t.last, id)
	t.mu.Unlock()
}
