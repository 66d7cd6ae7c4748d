package predictor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FailurePredictor is the opaque failure-prediction service. It is only read
// from; training happens elsewhere.
type FailurePredictor interface {
	Predict(ctx context.Context, endpointID uuid.UUID) (Prediction, error)
}

type Model struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Category  string     `json:"category,omitempty"`
	Samples   int        `json:"samples,omitempty"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
}

type Prediction struct {
	EndpointID         uuid.UUID `json:"endpoint_id"`
	FailureProbability float64   `json:"failure_probability"`
	Confidence         float64   `json:"confidence"`
	RiskFactors        []string  `json:"risk_factors"`
	Recommendations    []string  `json:"recommendations,omitempty"`
	Model              Model     `json:"model"`
	PredictedAt        time.Time `json:"predicted_at"`
}

// Normalized clamps probability and confidence into [0,1].
func (p Prediction) Normalized() Prediction {
	p.FailureProbability = clampUnit(p.FailureProbability)
	p.Confidence = clampUnit(p.Confidence)
	return p
}

func clampUnit(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// TrainTask asks the external training worker to retrain the model for one
// endpoint.
type TrainTask struct {
	TaskID      uuid.UUID `json:"task_id"`
	EndpointID  uuid.UUID `json:"endpoint_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Category    string    `json:"category,omitempty"`
	Records     int       `json:"records"`
	RequestedAt time.Time `json:"requested_at"`
}

// TrainDone is published by the training worker when a task finishes.
type TrainDone struct {
	TaskID     uuid.UUID `json:"task_id"`
	EndpointID uuid.UUID `json:"endpoint_id"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
