package result

import (
	"time"

	"pulsewatch/internals/modules/netgate"
	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/rootcause"

	"github.com/google/uuid"
)

// Record is one persisted probe result. Records are append-only.
type Record struct {
	ID         uuid.UUID `json:"id"`
	EndpointID uuid.UUID `json:"endpoint_id"`
	CheckedAt  time.Time `json:"checked_at"`
	probe.Outcome
	RootCause  rootcause.Cause `json:"root_cause,omitempty"`
	Skipped    bool            `json:"skipped"`
	SkipReason string          `json:"skip_reason,omitempty"`
	Network    *netgate.Status `json:"network,omitempty"`
}

// Status is the endpoint-level label derived from a record.
func (r Record) Status() string {
	switch {
	case r.Skipped:
		return StatusSkipped
	case r.Up:
		return StatusUp
	default:
		return StatusDown
	}
}

// TotalLatency returns 0 when the probe never completed a measurement.
func (r Record) TotalLatency() float64 {
	if r.Phases.TotalMs == nil {
		return 0
	}
	return *r.Phases.TotalMs
}

func (r Record) ClassifierInput() rootcause.Input {
	in := rootcause.Input{
		Up:         r.Up,
		StatusCode: r.StatusCode,
		Error:      r.Error,
		DNSMs:      r.Phases.DNSMs,
		TLSMs:      r.Phases.TLSMs,
		Skipped:    r.Skipped,
		SkipReason: r.SkipReason,
	}
	if r.Network != nil {
		up := r.Network.Reachable()
		in.NetworkUp = &up
	}
	return in
}

const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusSkipped = "skipped"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)
