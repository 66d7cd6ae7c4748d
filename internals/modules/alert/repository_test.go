package alert_test

import (
	"context"
	"testing"
	"time"

	"pulsewatch/internals/modules/alert"
	"pulsewatch/internals/modules/rootcause"
	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/db/dbtest"
	"pulsewatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryOneOpenAlertPerKind(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := alert.NewRepository(pool, logger.Nop())
	ctx := context.Background()
	ownerID, endpointID := dbtest.Endpoint(t, pool)

	none, err := repo.LatestAlert(ctx, endpointID, alert.KindDowntime)
	require.NoError(t, err)
	assert.Nil(t, none)

	inc := &alert.Incident{
		ID: uuid.New(), Code: "INC-1", EndpointID: endpointID, OwnerID: ownerID,
		Status: alert.IncidentOpen, CreatedAt: t0, LastSeenAt: t0, FailureEvents: 3,
		RootCause: rootcause.Timeout, Reason: "API Down",
	}
	require.NoError(t, repo.CreateIncident(ctx, inc))

	first := &alert.Record{
		ID: uuid.New(), EndpointID: endpointID, OwnerID: ownerID, IncidentID: &inc.ID,
		Kind: alert.KindDowntime, Status: alert.StatusOpen, Severity: alert.SeverityCritical,
		Reason: "API Down", CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, repo.CreateAlert(ctx, first))

	dup := *first
	dup.ID = uuid.New()
	err = repo.CreateAlert(ctx, &dup)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Conflict), "got %v", err)

	burn := &alert.Record{
		ID: uuid.New(), EndpointID: endpointID, OwnerID: ownerID,
		Kind: alert.KindBurnRate, Status: alert.StatusOpen, Severity: alert.SeverityWarning,
		CreatedAt: t0.Add(time.Minute), UpdatedAt: t0.Add(time.Minute), BurnRate1h: ptr(14.4),
	}
	require.NoError(t, repo.CreateAlert(ctx, burn), "another kind may be open alongside")

	open, err := repo.OpenAlertsForEndpoint(ctx, endpointID)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	require.NoError(t, repo.SetChannelRef(ctx, first.ID, "msg-42"))
	closedAt := t0.Add(5 * time.Minute)
	first.Status = alert.StatusClosed
	first.UpdatedAt = closedAt
	first.ResolvedAt = &closedAt
	first.Resolution = "recovered"
	require.NoError(t, repo.UpdateAlert(ctx, first))

	latest, err := repo.LatestAlert(ctx, endpointID, alert.KindDowntime)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, first.ID, latest.ID)
	assert.Equal(t, alert.StatusClosed, latest.Status)
	assert.Equal(t, "msg-42", latest.ChannelRef, "update keeps the channel ref")
	require.NotNil(t, latest.IncidentID)
	assert.Equal(t, inc.ID, *latest.IncidentID)

	open, err = repo.OpenAlerts(ctx, endpointID, alert.KindDowntime)
	require.NoError(t, err)
	assert.Empty(t, open)

	dup.CreatedAt = closedAt
	dup.UpdatedAt = closedAt
	require.NoError(t, repo.CreateAlert(ctx, &dup), "a new alert may open once the old one closed")

	got, err := repo.OpenIncident(ctx, endpointID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.FailureEvents)
	assert.Equal(t, rootcause.Timeout, got.RootCause)

	missing := &alert.Record{ID: uuid.New(), UpdatedAt: t0}
	assert.True(t, apperror.IsKind(repo.UpdateAlert(ctx, missing), apperror.NotFound))
}

func ptr[T any](v T) *T { return &v }
