package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pulsewatch/internals/modules/monitor"
	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/logger"
	"pulsewatch/pkg/rabbitmq"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientPredict(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/predictions/"+id.String() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"failure_probability":1.4,"confidence":0.66,"risk_factors":["5xx rate rising"],"model":{"name":"category-gb","version":"3"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", srv.Client())
	p, err := c.Predict(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, p.EndpointID)
	assert.Equal(t, 1.0, p.FailureProbability)
	assert.Equal(t, 0.66, p.Confidence)
	assert.Equal(t, []string{"5xx rate rising"}, p.RiskFactors)
	assert.Equal(t, "category-gb", p.Model.Name)

	_, err = c.Predict(context.Background(), uuid.New())
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestHTTPClientUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, srv.Client()).Predict(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Dependency))
	assert.Contains(t, err.Error(), "503")
}

type fakePublisher struct {
	events []rabbitmq.EventPayload
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e rabbitmq.EventPayload) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

type fixedCounter int

func (c fixedCounter) Count(context.Context, uuid.UUID) (int, error) { return int(c), nil }

func TestTrainerSubmitsAtMostOncePerInterval(t *testing.T) {
	pub := &fakePublisher{}
	tr := NewTrainer(pub, fixedCounter(50), 20*time.Minute, 50, logger.Nop())
	ep := monitor.Endpoint{ID: uuid.New(), OwnerID: uuid.New(), Category: "payments"}
	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	ctx := context.Background()

	ok, err := tr.MaybeSubmit(ctx, ep, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.MaybeSubmit(ctx, ep, now.Add(19*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tr.MaybeSubmit(ctx, ep, now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, pub.events, 2)
	assert.Equal(t, rabbitmq.EventTrainRequested, pub.events[0].Type)
	var task TrainTask
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &task))
	assert.Equal(t, ep.ID, task.EndpointID)
	assert.Equal(t, "payments", task.Category)
	assert.Equal(t, 50, task.Records)
}

func TestTrainerNeedsEnoughHistory(t *testing.T) {
	pub := &fakePublisher{}
	tr := NewTrainer(pub, fixedCounter(49), 0, 0, logger.Nop())
	ep := monitor.Endpoint{ID: uuid.New()}

	ok, err := tr.MaybeSubmit(context.Background(), ep, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, pub.events)
}

func TestTrainerRetriesAfterPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	tr := NewTrainer(pub, fixedCounter(80), time.Hour, 50, logger.Nop())
	ep := monitor.Endpoint{ID: uuid.New()}
	now := time.Now()

	ok, err := tr.MaybeSubmit(context.Background(), ep, now)
	assert.ErrorContains(t, err, "channel closed")
	assert.False(t, ok)

	pub.err = nil
	ok, err = tr.MaybeSubmit(context.Background(), ep, now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
}

type stubPredictor struct {
	p   Prediction
	err error
}

func (s stubPredictor) Predict(context.Context, uuid.UUID) (Prediction, error) { return s.p, s.err }

type recordingObserver struct {
	got []Prediction
}

func (o *recordingObserver) ObservePrediction(_ context.Context, _ uuid.UUID, p Prediction) error {
	o.got = append(o.got, p)
	return nil
}

func completedEvent(t *testing.T, done TrainDone) rabbitmq.EventPayload {
	t.Helper()
	e, err := rabbitmq.NewEvent(rabbitmq.EventTrainCompleted, done)
	require.NoError(t, err)
	return e
}

func TestCompletionHandler(t *testing.T) {
	id := uuid.New()
	obs := &recordingObserver{}
	h := NewCompletionHandler(stubPredictor{p: Prediction{EndpointID: id, FailureProbability: 0.8}}, obs, logger.Nop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, completedEvent(t, TrainDone{EndpointID: id, Success: true})))
	require.Len(t, obs.got, 1)
	assert.Equal(t, 0.8, obs.got[0].FailureProbability)

	require.NoError(t, h.Handle(ctx, completedEvent(t, TrainDone{EndpointID: id, Success: false, Error: "not enough data"})))
	assert.Len(t, obs.got, 1)

	assert.Error(t, h.Handle(ctx, completedEvent(t, TrainDone{Success: true})))

	missing := NewCompletionHandler(stubPredictor{err: &apperror.Error{Kind: apperror.NotFound}}, obs, logger.Nop())
	assert.NoError(t, missing.Handle(ctx, completedEvent(t, TrainDone{EndpointID: id, Success: true})))
	assert.Len(t, obs.got, 1)
}

func TestPredictionNormalized(t *testing.T) {
	p := Prediction{FailureProbability: -0.2, Confidence: 3}.Normalized()
	assert.Equal(t, 0.0, p.FailureProbability)
	assert.Equal(t, 1.0, p.Confidence)
}
