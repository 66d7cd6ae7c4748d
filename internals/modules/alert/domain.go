package alert

import (
	"context"
	"time"

	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/result"
	"pulsewatch/internals/modules/rootcause"

	"github.com/google/uuid"
)

type Kind string

const (
	KindDowntime   Kind = "downtime"
	KindBurnRate   Kind = "burn_rate"
	KindPrediction Kind = "ai_prediction"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type IncidentStatus string

const (
	IncidentOpen     IncidentStatus = "open"
	IncidentResolved IncidentStatus = "resolved"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
)

const (
	ResolutionRecovered  = "Recovery detected after sustained healthy checks"
	ResolutionNormalized = "Burn rate normalized"
	ResolutionStabilized = "API stabilized, prediction did not materialize"
)

// Incident groups consecutive downtime for one endpoint. At most one is open
// per endpoint.
type Incident struct {
	ID               uuid.UUID       `json:"id"`
	Code             string          `json:"code"`
	EndpointID       uuid.UUID       `json:"endpoint_id"`
	OwnerID          uuid.UUID       `json:"owner_id"`
	Status           IncidentStatus  `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	LastSeenAt       time.Time       `json:"last_seen_at"`
	FailureEvents    int             `json:"failure_events"`
	SuppressedAlerts int             `json:"suppressed_alerts"`
	RootCause        rootcause.Cause `json:"root_cause_hint"`
	Reason           string          `json:"reason"`
	Resolution       string          `json:"resolution,omitempty"`
	DowntimeDuration string          `json:"downtime_duration,omitempty"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
}

// Record is one alert. At most one is open per (endpoint, kind).
type Record struct {
	ID                 uuid.UUID  `json:"id"`
	EndpointID         uuid.UUID  `json:"endpoint_id"`
	OwnerID            uuid.UUID  `json:"owner_id"`
	IncidentID         *uuid.UUID `json:"incident_id,omitempty"`
	Kind               Kind       `json:"kind"`
	Status             Status     `json:"status"`
	Severity           Severity   `json:"severity"`
	ChannelRef         string     `json:"channel_ref,omitempty"`
	Reason             string     `json:"reason"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	Resolution         string     `json:"resolution,omitempty"`
	BurnRate1h         *float64   `json:"burn_rate_1h,omitempty"`
	BurnRate6h         *float64   `json:"burn_rate_6h,omitempty"`
	FailureProbability *float64   `json:"failure_probability,omitempty"`
}

func (r *Record) close(at time.Time, resolution string) {
	r.Status = StatusClosed
	r.UpdatedAt = at
	r.ResolvedAt = &at
	r.Resolution = resolution
}

// Action is what one evaluation did to the alert state of an endpoint.
type Action string

const (
	ActionNone       Action = "none"
	ActionOpened     Action = "opened"
	ActionUpdated    Action = "updated"
	ActionSuppressed Action = "suppressed"
	ActionResolved   Action = "resolved"
)

type Transition struct {
	Kind     Kind      `json:"kind"`
	Action   Action    `json:"action"`
	Reason   string    `json:"reason,omitempty"`
	Alert    *Record   `json:"alert,omitempty"`
	Closed   []Record  `json:"closed,omitempty"`
	Incident *Incident `json:"incident,omitempty"`
}

func none(kind Kind) Transition {
	return Transition{Kind: kind, Action: ActionNone}
}

type Event string

const (
	EventOpened    Event = "opened"
	EventUpdated   Event = "updated"
	EventRecovered Event = "recovered"
	EventResolved  Event = "resolved"
)

// Notification is what the router formats and delivers.
type Notification struct {
	Event    Event            `json:"event"`
	Alert    Record           `json:"alert"`
	Closed   []Record         `json:"closed,omitempty"`
	Endpoint monitor.Endpoint `json:"endpoint"`
	Reason   string           `json:"reason"`
	Payload  map[string]any   `json:"payload,omitempty"`
}

// Delivery is the outcome of one notification on one channel.
type Delivery struct {
	Channel  string `json:"channel"`
	OK       bool   `json:"ok"`
	Attempts int    `json:"attempts"`
	Ref      string `json:"ref,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) []Delivery
}

// Queue accepts notifications for asynchronous delivery.
type Queue interface {
	Enqueue(n Notification)
}

type Store interface {
	OpenIncident(ctx context.Context, endpointID uuid.UUID) (*Incident, error)
	CreateIncident(ctx context.Context, inc *Incident) error
	UpdateIncident(ctx context.Context, inc *Incident) error

	OpenAlerts(ctx context.Context, endpointID uuid.UUID, kind Kind) ([]Record, error)
	// LatestAlert returns the most recently created alert of kind in any
	// status, or nil.
	LatestAlert(ctx context.Context, endpointID uuid.UUID, kind Kind) (*Record, error)
	CreateAlert(ctx context.Context, rec *Record) error
	UpdateAlert(ctx context.Context, rec *Record) error
	SetChannelRef(ctx context.Context, alertID uuid.UUID, ref string) error
}

// StreakCounter counts consecutive outcomes per endpoint. Counting the same
// record twice is a no-op.
type StreakCounter interface {
	RecordFailure(ctx context.Context, endpointID, recordID uuid.UUID) (int, error)
	RecordSuccess(ctx context.Context, endpointID, recordID uuid.UUID) (int, error)
}

type Locker interface {
	Lock(ctx context.Context, endpointID uuid.UUID) (func(), error)
}

type History interface {
	Recent(ctx context.Context, endpointID uuid.UUID, limit int) ([]result.Record, error)
}
