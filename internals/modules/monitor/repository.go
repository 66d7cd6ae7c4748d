package monitor

import (
	"context"
	"time"

	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/db"
	"pulsewatch/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
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

const endpointColumns = `id, owner_id, url, category, header_name, header_value,
	required_text, interval_sec, active, last_checked_at, last_status`

func (r *Repository) Create(ctx context.Context, e Endpoint) error {
	const op string = "repo.monitor.create"

	_, err := r.db.Exec(ctx, `INSERT INTO endpoints (`+endpointColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		utils.ToPgUUID(e.ID),
		utils.ToPgUUID(e.OwnerID),
		e.URL,
		utils.ToPgText(e.Category),
		utils.ToPgText(e.HeaderName),
		utils.ToPgText(e.HeaderValue),
		utils.ToPgText(e.RequiredText),
		e.IntervalSec,
		e.Active,
		utils.ToPgTimestamptz(e.LastCheckedAt),
		e.LastStatus,
	)
	return utils.WrapRepoError(op, err, false, r.logger)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Endpoint, error) {
	const op string = "repo.monitor.get"

	rows, err := r.db.Query(ctx, `SELECT `+endpointColumns+` FROM endpoints
		WHERE id = $1 AND deleted_at IS NULL`, utils.ToPgUUID(id))
	if err != nil {
		return Endpoint{}, utils.WrapRepoError(op, err, false, r.logger)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEndpoint)
	if err != nil {
		return Endpoint{}, utils.WrapRepoError(op, err, true, r.logger)
	}
	return e, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]Endpoint, error) {
	const op string = "repo.monitor.list_active"

	rows, err := r.db.Query(ctx, `SELECT `+endpointColumns+` FROM endpoints
		WHERE active AND deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	eps, err := pgx.CollectRows(rows, scanEndpoint)
	return eps, utils.WrapRepoError(op, err, false, r.logger)
}

func (r *Repository) MarkChecked(ctx context.Context, id uuid.UUID, at time.Time, status string) error {
	const op string = "repo.monitor.mark_checked"

	tag, err := r.db.Exec(ctx, `UPDATE endpoints SET last_checked_at = $2, last_status = $3
		WHERE id = $1`, utils.ToPgUUID(id), at.UTC(), status)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "endpoint not found"}
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error {
	const op string = "repo.monitor.soft_delete"

	tag, err := r.db.Exec(ctx, `UPDATE endpoints SET active = FALSE, deleted_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`,
		utils.ToPgUUID(id), utils.ToPgUUID(ownerID))
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "endpoint not found"}
	}
	return nil
}

func scanEndpoint(row pgx.CollectableRow) (Endpoint, error) {
	var (
		e                                 Endpoint
		id, owner                         pgtype.UUID
		category, hName, hValue, required pgtype.Text
		checked                           pgtype.Timestamptz
	)
	err := row.Scan(&id, &owner, &e.URL, &category, &hName, &hValue,
		&required, &e.IntervalSec, &e.Active, &checked, &e.LastStatus)
	if err != nil {
		return Endpoint{}, err
	}
	e.ID = utils.FromPgUUID(id)
	e.OwnerID = utils.FromPgUUID(owner)
	e.Category = utils.FromPgText(category)
	e.HeaderName = utils.FromPgText(hName)
	e.HeaderValue = utils.FromPgText(hValue)
	e.RequiredText = utils.FromPgText(required)
	e.LastCheckedAt = utils.FromPgTimestamptz(checked)
	return e, nil
}
