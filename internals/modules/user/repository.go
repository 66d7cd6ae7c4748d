package user

import (
	"context"

	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/db"
	"pulsewatch/pkg/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Repository struct {
	db     db.DBTX
	logger *zerolog.Logger
}

func NewRepository(dbExecutor db.DBTX, logger *zerolog.Logger) *Repository {
	return &Repository{
		db:     dbExecutor,
		logger: logger,
	}
}

func (r *Repository) Upsert(ctx context.Context, o Owner) error {
	const op string = "repo.user.upsert"

	_, err := r.db.Exec(ctx, `INSERT INTO owners (id, tier) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET tier = EXCLUDED.tier`,
		utils.ToPgUUID(o.ID), string(ParseTier(string(o.Tier))))
	return utils.WrapRepoError(op, err, false, r.logger)
}

func (r *Repository) Get(ctx context.Context, ownerID uuid.UUID) (Owner, error) {
	const op string = "repo.user.get"

	o := Owner{ID: ownerID}
	var tier string
	err := r.db.QueryRow(ctx, `SELECT tier, monitors_count FROM owners WHERE id = $1`,
		utils.ToPgUUID(ownerID)).Scan(&tier, &o.MonitorsCount)
	if err != nil {
		return Owner{}, utils.WrapRepoError(op, err, true, r.logger)
	}
	o.Tier = ParseTier(tier)
	return o, nil
}

// TierOf treats unknown owners as free.
func (r *Repository) TierOf(ctx context.Context, ownerID uuid.UUID) (Tier, error) {
	o, err := r.Get(ctx, ownerID)
	if err != nil {
		if apperror.IsKind(err, apperror.NotFound) {
			return TierFree, nil
		}
		return TierFree, err
	}
	return o.Tier, nil
}

// IncrementMonitorCount enforces FreeMaxMonitors for free owners.
func (r *Repository) IncrementMonitorCount(ctx context.Context, ownerID uuid.UUID) error {
	const op string = "repo.user.increment_monitor_count"

	tag, err := r.db.Exec(ctx, `UPDATE owners SET monitors_count = monitors_count + 1
		WHERE id = $1 AND (tier = $2 OR monitors_count < $3)`,
		utils.ToPgUUID(ownerID), string(TierSubscriber), FreeMaxMonitors)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return &apperror.Error{
			Kind:    apperror.Forbidden,
			Op:      op,
			Message: "monitor quota exceeded",
		}
	}
	return nil
}
