package alert

import (
	"context"
	"errors"

	"pulsewatch/internals/modules/rootcause"
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

const incidentColumns = `id, code, endpoint_id, owner_id, status, created_at, last_seen_at,
	failure_events, suppressed_alerts, root_cause, reason, resolution, downtime_duration, resolved_at`

const alertColumns = `id, endpoint_id, owner_id, incident_id, kind, status, severity, channel_ref,
	reason, created_at, updated_at, resolved_at, resolution, burn_rate_1h, burn_rate_6h, failure_probability`

func (r *Repository) OpenIncident(ctx context.Context, endpointID uuid.UUID) (*Incident, error) {
	const op string = "repo.alert.open_incident"

	rows, err := r.db.Query(ctx, `SELECT `+incidentColumns+` FROM incidents
		WHERE endpoint_id = $1 AND status = $2`,
		utils.ToPgUUID(endpointID), string(IncidentOpen))
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	inc, err := pgx.CollectExactlyOneRow(rows, scanIncident)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return &inc, nil
}

func (r *Repository) CreateIncident(ctx context.Context, inc *Incident) error {
	const op string = "repo.alert.create_incident"

	_, err := r.db.Exec(ctx, `INSERT INTO incidents (`+incidentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		utils.ToPgUUID(inc.ID),
		inc.Code,
		utils.ToPgUUID(inc.EndpointID),
		utils.ToPgUUID(inc.OwnerID),
		string(inc.Status),
		inc.CreatedAt.UTC(),
		inc.LastSeenAt.UTC(),
		inc.FailureEvents,
		inc.SuppressedAlerts,
		string(inc.RootCause),
		inc.Reason,
		inc.Resolution,
		inc.DowntimeDuration,
		utils.ToPgTimestamptz(inc.ResolvedAt),
	)
	return utils.WrapRepoError(op, err, false, r.logger)
}

func (r *Repository) UpdateIncident(ctx context.Context, inc *Incident) error {
	const op string = "repo.alert.update_incident"

	tag, err := r.db.Exec(ctx, `UPDATE incidents SET status = $2, last_seen_at = $3,
		failure_events = $4, suppressed_alerts = $5, root_cause = $6, reason = $7,
		resolution = $8, downtime_duration = $9, resolved_at = $10
		WHERE id = $1`,
		utils.ToPgUUID(inc.ID),
		string(inc.Status),
		inc.LastSeenAt.UTC(),
		inc.FailureEvents,
		inc.SuppressedAlerts,
		string(inc.RootCause),
		inc.Reason,
		inc.Resolution,
		inc.DowntimeDuration,
		utils.ToPgTimestamptz(inc.ResolvedAt),
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "incident not found"}
	}
	return nil
}

func (r *Repository) OpenAlerts(ctx context.Context, endpointID uuid.UUID, kind Kind) ([]Record, error) {
	const op string = "repo.alert.open_alerts"

	rows, err := r.db.Query(ctx, `SELECT `+alertColumns+` FROM alert_records
		WHERE endpoint_id = $1 AND kind = $2 AND status = $3 ORDER BY created_at`,
		utils.ToPgUUID(endpointID), string(kind), string(StatusOpen))
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	recs, err := pgx.CollectRows(rows, scanAlert)
	return recs, utils.WrapRepoError(op, err, false, r.logger)
}

// OpenAlertsForEndpoint lists open alerts of every kind.
func (r *Repository) OpenAlertsForEndpoint(ctx context.Context, endpointID uuid.UUID) ([]Record, error) {
	const op string = "repo.alert.open_alerts_for_endpoint"

	rows, err := r.db.Query(ctx, `SELECT `+alertColumns+` FROM alert_records
		WHERE endpoint_id = $1 AND status = $2 ORDER BY created_at`,
		utils.ToPgUUID(endpointID), string(StatusOpen))
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	recs, err := pgx.CollectRows(rows, scanAlert)
	return recs, utils.WrapRepoError(op, err, false, r.logger)
}

func (r *Repository) LatestAlert(ctx context.Context, endpointID uuid.UUID, kind Kind) (*Record, error) {
	const op string = "repo.alert.latest_alert"

	rows, err := r.db.Query(ctx, `SELECT `+alertColumns+` FROM alert_records
		WHERE endpoint_id = $1 AND kind = $2 ORDER BY created_at DESC LIMIT 1`,
		utils.ToPgUUID(endpointID), string(kind))
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanAlert)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return &rec, nil
}

// CreateAlert relies on the partial unique index to reject a second open
// alert of the same kind; that surfaces as apperror.Conflict.
func (r *Repository) CreateAlert(ctx context.Context, rec *Record) error {
	const op string = "repo.alert.create_alert"

	var incidentID pgtype.UUID
	if rec.IncidentID != nil {
		incidentID = utils.ToPgUUID(*rec.IncidentID)
	}
	_, err := r.db.Exec(ctx, `INSERT INTO alert_records (`+alertColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		utils.ToPgUUID(rec.ID),
		utils.ToPgUUID(rec.EndpointID),
		utils.ToPgUUID(rec.OwnerID),
		incidentID,
		string(rec.Kind),
		string(rec.Status),
		string(rec.Severity),
		rec.ChannelRef,
		rec.Reason,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
		utils.ToPgTimestamptz(rec.ResolvedAt),
		rec.Resolution,
		utils.ToPgFloat8(rec.BurnRate1h),
		utils.ToPgFloat8(rec.BurnRate6h),
		utils.ToPgFloat8(rec.FailureProbability),
	)
	return utils.WrapRepoError(op, err, false, r.logger)
}

// UpdateAlert leaves channel_ref alone; the dispatcher owns that column.
func (r *Repository) UpdateAlert(ctx context.Context, rec *Record) error {
	const op string = "repo.alert.update_alert"

	tag, err := r.db.Exec(ctx, `UPDATE alert_records SET status = $2, severity = $3, reason = $4,
		updated_at = $5, resolved_at = $6, resolution = $7,
		burn_rate_1h = $8, burn_rate_6h = $9, failure_probability = $10
		WHERE id = $1`,
		utils.ToPgUUID(rec.ID),
		string(rec.Status),
		string(rec.Severity),
		rec.Reason,
		rec.UpdatedAt.UTC(),
		utils.ToPgTimestamptz(rec.ResolvedAt),
		rec.Resolution,
		utils.ToPgFloat8(rec.BurnRate1h),
		utils.ToPgFloat8(rec.BurnRate6h),
		utils.ToPgFloat8(rec.FailureProbability),
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return &apperror.Error{Kind: apperror.NotFound, Op: op, Message: "alert not found"}
	}
	return nil
}

func (r *Repository) SetChannelRef(ctx context.Context, alertID uuid.UUID, ref string) error {
	const op string = "repo.alert.set_channel_ref"

	_, err := r.db.Exec(ctx, `UPDATE alert_records SET channel_ref = $2 WHERE id = $1`,
		utils.ToPgUUID(alertID), ref)
	return utils.WrapRepoError(op, err, false, r.logger)
}

func scanIncident(row pgx.CollectableRow) (Incident, error) {
	var (
		inc                 Incident
		id, endpoint, owner pgtype.UUID
		status, cause       string
		resolvedAt          pgtype.Timestamptz
	)
	err := row.Scan(&id, &inc.Code, &endpoint, &owner, &status, &inc.CreatedAt, &inc.LastSeenAt,
		&inc.FailureEvents, &inc.SuppressedAlerts, &cause, &inc.Reason, &inc.Resolution,
		&inc.DowntimeDuration, &resolvedAt)
	if err != nil {
		return Incident{}, err
	}
	inc.ID = utils.FromPgUUID(id)
	inc.EndpointID = utils.FromPgUUID(endpoint)
	inc.OwnerID = utils.FromPgUUID(owner)
	inc.Status = IncidentStatus(status)
	inc.RootCause = rootcause.Cause(cause)
	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.LastSeenAt = inc.LastSeenAt.UTC()
	inc.ResolvedAt = utils.FromPgTimestamptz(resolvedAt)
	return inc, nil
}

func scanAlert(row pgx.CollectableRow) (Record, error) {
	var (
		rec                         Record
		id, endpoint, owner, incID  pgtype.UUID
		kind, status, severity      string
		resolvedAt                  pgtype.Timestamptz
		burn1h, burn6h, probability pgtype.Float8
	)
	err := row.Scan(&id, &endpoint, &owner, &incID, &kind, &status, &severity, &rec.ChannelRef,
		&rec.Reason, &rec.CreatedAt, &rec.UpdatedAt, &resolvedAt, &rec.Resolution,
		&burn1h, &burn6h, &probability)
	if err != nil {
		return Record{}, err
	}
	rec.ID = utils.FromPgUUID(id)
	rec.EndpointID = utils.FromPgUUID(endpoint)
	rec.OwnerID = utils.FromPgUUID(owner)
	if incID.Valid {
		v := utils.FromPgUUID(incID)
		rec.IncidentID = &v
	}
	rec.Kind = Kind(kind)
	rec.Status = Status(status)
	rec.Severity = Severity(severity)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	rec.ResolvedAt = utils.FromPgTimestamptz(resolvedAt)
	rec.BurnRate1h = utils.FromPgFloat8(burn1h)
	rec.BurnRate6h = utils.FromPgFloat8(burn6h)
	rec.FailureProbability = utils.FromPgFloat8(probability)
	return rec, nil
}
