package monitor

import (
	"context"
	"fmt"

	"pulsewatch/internals/modules/user"
	"pulsewatch/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type EndpointWriter interface {
	Create(ctx context.Context, e Endpoint) error
}

type OwnerStore interface {
	TierOf(ctx context.Context, ownerID uuid.UUID) (user.Tier, error)
	IncrementMonitorCount(ctx context.Context, ownerID uuid.UUID) error
}

// Service is the management boundary: bad URLs and intervals the owner's
// tier does not allow are rejected here and never reach the scheduler.
type Service struct {
	endpoints EndpointWriter
	owners    OwnerStore
	validator *validator.Validate
}

func NewService(endpoints EndpointWriter, owners OwnerStore, v *validator.Validate) *Service {
	if v == nil {
		v = validator.New()
	}
	return &Service{
		endpoints: endpoints,
		owners:    owners,
		validator: v,
	}
}

func (s *Service) Register(ctx context.Context, cmd CreateEndpointCmd) (Endpoint, error) {
	const op string = "service.monitor.register"

	if err := s.validator.Struct(cmd); err != nil {
		return Endpoint{}, &apperror.Error{Kind: apperror.InvalidInput, Op: op, Err: err, Message: "invalid endpoint"}
	}

	tier, err := s.owners.TierOf(ctx, cmd.OwnerID)
	if err != nil {
		return Endpoint{}, err
	}
	if !IntervalAllowed(cmd.IntervalSec, tier) {
		return Endpoint{}, &apperror.Error{
			Kind:    apperror.Forbidden,
			Op:      op,
			Message: fmt.Sprintf("interval %ds is not available on the %s tier", cmd.IntervalSec, tier),
		}
	}

	if err := s.owners.IncrementMonitorCount(ctx, cmd.OwnerID); err != nil {
		return Endpoint{}, err
	}

	e := Endpoint{
		ID:           uuid.New(),
		OwnerID:      cmd.OwnerID,
		URL:          cmd.URL,
		Category:     cmd.Category,
		HeaderName:   cmd.HeaderName,
		HeaderValue:  cmd.HeaderValue,
		RequiredText: cmd.RequiredText,
		IntervalSec:  cmd.IntervalSec,
		Active:       true,
	}
	if err := s.endpoints.Create(ctx, e); err != nil {
		return Endpoint{}, err
	}
	return e, nil
}
