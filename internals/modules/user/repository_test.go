package user_test

import (
	"context"
	"testing"

	"pulsewatch/internals/modules/user"
	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/db/dbtest"
	"pulsewatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryTiers(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := user.NewRepository(pool, logger.Nop())
	ctx := context.Background()

	tier, err := repo.TierOf(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, user.TierFree, tier, "unknown owners are free")

	_, err = repo.Get(ctx, uuid.New())
	assert.True(t, apperror.IsKind(err, apperror.NotFound))

	id := uuid.New()
	require.NoError(t, repo.Upsert(ctx, user.Owner{ID: id, Tier: user.TierFree}))
	require.NoError(t, repo.Upsert(ctx, user.Owner{ID: id, Tier: user.TierSubscriber}))

	tier, err = repo.TierOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user.TierSubscriber, tier)
}

func TestRepositoryFreeQuota(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := user.NewRepository(pool, logger.Nop())
	ctx := context.Background()

	free := uuid.New()
	require.NoError(t, repo.Upsert(ctx, user.Owner{ID: free, Tier: user.TierFree}))
	_, err := pool.Exec(ctx, `UPDATE owners SET monitors_count = $2 WHERE id = $1`, free, user.FreeMaxMonitors-1)
	require.NoError(t, err)

	require.NoError(t, repo.IncrementMonitorCount(ctx, free))
	err = repo.IncrementMonitorCount(ctx, free)
	assert.True(t, apperror.IsKind(err, apperror.Forbidden), "got %v", err)

	o, err := repo.Get(ctx, free)
	require.NoError(t, err)
	assert.Equal(t, user.FreeMaxMonitors, o.MonitorsCount)

	paid := uuid.New()
	require.NoError(t, repo.Upsert(ctx, user.Owner{ID: paid, Tier: user.TierSubscriber}))
	_, err = pool.Exec(ctx, `UPDATE owners SET monitors_count = $2 WHERE id = $1`, paid, user.FreeMaxMonitors)
	require.NoError(t, err)
	require.NoError(t, repo.IncrementMonitorCount(ctx, paid), "subscribers have no cap")
}
