// Package status is the read-only query surface over endpoint state.
package status

import (
	"context"
	"time"

	"pulsewatch/internals/modules/alert"
	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/result"
	"pulsewatch/internals/modules/slo"
	"pulsewatch/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EndpointReader interface {
	Get(ctx context.Context, id uuid.UUID) (monitor.Endpoint, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, endpointID uuid.UUID, limit int) ([]result.Record, error)
}

type SnapshotReader interface {
	Snapshot(ctx context.Context, endpointID uuid.UUID, now time.Time) (slo.Snapshot, error)
}

type AlertReader interface {
	OpenIncident(ctx context.Context, endpointID uuid.UUID) (*alert.Incident, error)
	OpenAlertsForEndpoint(ctx context.Context, endpointID uuid.UUID) ([]alert.Record, error)
}

type Service struct {
	endpoints EndpointReader
	history   HistoryReader
	snapshots SnapshotReader
	alerts    AlertReader
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewService(endpoints EndpointReader, history HistoryReader, snapshots SnapshotReader, alerts AlertReader, logger *zerolog.Logger) *Service {
	return &Service{
		endpoints: endpoints,
		history:   history,
		snapshots: snapshots,
		alerts:    alerts,
		now:       time.Now,
		logger:    logger,
	}
}

// endpoint hides endpoints of other owners behind the same not-found error
// as missing ones.
func (s *Service) endpoint(ctx context.Context, ownerID, id uuid.UUID) (monitor.Endpoint, error) {
	const op string = "service.status.endpoint"

	ep, err := s.endpoints.Get(ctx, id)
	if apperror.IsKind(err, apperror.NotFound) || (err == nil && ep.OwnerID != ownerID) {
		return monitor.Endpoint{}, &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "endpoint not found"}
	}
	if err != nil {
		return monitor.Endpoint{}, err
	}
	return ep, nil
}

func (s *Service) Status(ctx context.Context, ownerID, id uuid.UUID) (StatusView, error) {
	ep, err := s.endpoint(ctx, ownerID, id)
	if err != nil {
		return StatusView{}, err
	}

	view := StatusView{Endpoint: ep, LastStatus: ep.LastStatus, LastCheckedAt: ep.LastCheckedAt}
	recs, err := s.history.Recent(ctx, id, 1)
	if err != nil {
		// last-known state from the endpoint row is still served
		s.logger.Warn().Err(err).Str("endpoint_id", id.String()).Msg("latest record unavailable")
		view.Error = "latest record unavailable"
		return view, nil
	}
	if len(recs) > 0 {
		view.Latest = &recs[0]
	}
	return view, nil
}

// ClampLimit applies the history page bounds.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return result.DefaultHistoryLimit
	case limit > result.MaxHistoryLimit:
		return result.MaxHistoryLimit
	default:
		return limit
	}
}

func (s *Service) History(ctx context.Context, ownerID, id uuid.UUID, limit int) ([]result.Record, error) {
	if _, err := s.endpoint(ctx, ownerID, id); err != nil {
		return nil, err
	}
	recs, err := s.history.Recent(ctx, id, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []result.Record{}
	}
	return recs, nil
}

func (s *Service) SLO(ctx context.Context, ownerID, id uuid.UUID) (slo.Snapshot, error) {
	if _, err := s.endpoint(ctx, ownerID, id); err != nil {
		return slo.Snapshot{}, err
	}
	return s.snapshots.Snapshot(ctx, id, s.now())
}

func (s *Service) Alerts(ctx context.Context, ownerID, id uuid.UUID) (AlertsView, error) {
	if _, err := s.endpoint(ctx, ownerID, id); err != nil {
		return AlertsView{}, err
	}
	inc, err := s.alerts.OpenIncident(ctx, id)
	if err != nil {
		return AlertsView{}, err
	}
	open, err := s.alerts.OpenAlertsForEndpoint(ctx, id)
	if err != nil {
		return AlertsView{}, err
	}
	if open == nil {
		open = []alert.Record{}
	}
	return AlertsView{Incident: inc, Alerts: open}, nil
}
