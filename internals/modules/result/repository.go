package result

import (
	"context"
	"time"

	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/rootcause"
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

const recordColumns = `id, endpoint_id, checked_at, status_code, up,
	dns_ms, tcp_ms, tls_ms, server_ms, download_ms, total_ms,
	content_type, url_type, body_snippet, certificate, error, root_cause,
	skipped, skip_reason, network`

func (r *Repository) Append(ctx context.Context, rec Record) error {
	const op string = "repo.result.append"

	p := rec.Phases
	_, err := r.db.Exec(ctx, `INSERT INTO probe_results (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO NOTHING`,
		utils.ToPgUUID(rec.ID),
		utils.ToPgUUID(rec.EndpointID),
		rec.CheckedAt.UTC(),
		utils.ToPgInt4(rec.StatusCode),
		rec.Up,
		utils.ToPgFloat8(p.DNSMs),
		utils.ToPgFloat8(p.TCPMs),
		utils.ToPgFloat8(p.TLSMs),
		utils.ToPgFloat8(p.ServerMs),
		utils.ToPgFloat8(p.DownloadMs),
		utils.ToPgFloat8(p.TotalMs),
		rec.ContentType,
		string(rec.URLType),
		rec.BodySnippet,
		rec.Certificate,
		utils.ToPgText(rec.Error),
		utils.ToPgText(string(rec.RootCause)),
		rec.Skipped,
		utils.ToPgText(rec.SkipReason),
		rec.Network,
	)
	return utils.WrapRepoError(op, err, false, r.logger)
}

// Recent returns the newest records first.
func (r *Repository) Recent(ctx context.Context, endpointID uuid.UUID, limit int) ([]Record, error) {
	const op string = "repo.result.recent"

	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+` FROM probe_results
		WHERE endpoint_id = $1 ORDER BY checked_at DESC LIMIT $2`,
		utils.ToPgUUID(endpointID), limit)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	recs, err := collect(rows)
	return recs, utils.WrapRepoError(op, err, false, r.logger)
}

// Since returns records at or after since, oldest first.
func (r *Repository) Since(ctx context.Context, endpointID uuid.UUID, since time.Time) ([]Record, error) {
	const op string = "repo.result.since"

	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+` FROM probe_results
		WHERE endpoint_id = $1 AND checked_at >= $2 ORDER BY checked_at ASC`,
		utils.ToPgUUID(endpointID), since.UTC())
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	recs, err := collect(rows)
	return recs, utils.WrapRepoError(op, err, false, r.logger)
}

func (r *Repository) Count(ctx context.Context, endpointID uuid.UUID) (int, error) {
	const op string = "repo.result.count"

	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM probe_results WHERE endpoint_id = $1`,
		utils.ToPgUUID(endpointID)).Scan(&n)
	return n, utils.WrapRepoError(op, err, false, r.logger)
}

func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const op string = "repo.result.delete_before"

	tag, err := r.db.Exec(ctx, `DELETE FROM probe_results WHERE checked_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, utils.WrapRepoError(op, err, false, r.logger)
	}
	return tag.RowsAffected(), nil
}

func collect(rows pgx.Rows) ([]Record, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec                                  Record
			id, endpointID                       pgtype.UUID
			status                               pgtype.Int4
			dns, tcp, tls, server, download, tot pgtype.Float8
			urlType                              string
			errText, cause, skipReason           pgtype.Text
			cert                                 *probe.Certificate
		)
		err := row.Scan(&id, &endpointID, &rec.CheckedAt, &status, &rec.Up,
			&dns, &tcp, &tls, &server, &download, &tot,
			&rec.ContentType, &urlType, &rec.BodySnippet, &cert, &errText, &cause,
			&rec.Skipped, &skipReason, &rec.Network)
		if err != nil {
			return Record{}, err
		}

		rec.ID = utils.FromPgUUID(id)
		rec.EndpointID = utils.FromPgUUID(endpointID)
		rec.CheckedAt = rec.CheckedAt.UTC()
		rec.StatusCode = utils.FromPgInt4(status)
		rec.Phases = probe.Phases{
			DNSMs:      utils.FromPgFloat8(dns),
			TCPMs:      utils.FromPgFloat8(tcp),
			TLSMs:      utils.FromPgFloat8(tls),
			ServerMs:   utils.FromPgFloat8(server),
			DownloadMs: utils.FromPgFloat8(download),
			TotalMs:    utils.FromPgFloat8(tot),
		}
		rec.URLType = probe.URLType(urlType)
		rec.Certificate = cert
		rec.Error = utils.FromPgText(errText)
		rec.RootCause = rootcause.Cause(utils.FromPgText(cause))
		rec.SkipReason = utils.FromPgText(skipReason)
		return rec, nil
	})
}
