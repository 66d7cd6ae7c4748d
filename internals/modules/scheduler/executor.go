package scheduler

import (
	"context"
	"fmt"
	"time"

	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/netgate"
	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/result"
	"pulsewatch/internals/modules/rootcause"
	"pulsewatch/pkg/apperror"

	"github.com/google/uuid"
)

// LowNetworkPrefix marks a failed probe that was discarded because the
// monitor's own network was unreachable.
const LowNetworkPrefix = "Low network: "

// BuildRecord turns a probe outcome into the record that gets persisted,
// applying the tick's gate verdict and the root-cause hint.
func BuildRecord(endpointID uuid.UUID, out probe.Outcome, gate netgate.Status, at time.Time) result.Record {
	rec := result.Record{
		ID:         uuid.New(),
		EndpointID: endpointID,
		CheckedAt:  at.UTC(),
		Outcome:    out,
		Network:    &gate,
	}

	if !out.Up && !gate.Reachable() {
		rec.Skipped = true
		rec.SkipReason = rootcause.SkipReasonNetwork
		rec.URLType = probe.URLTypeNetwork
		rec.Error = LowNetworkPrefix + failureText(out, gate)
	}

	rec.RootCause = rootcause.Classify(rec.ClassifierInput())
	return rec
}

func failureText(out probe.Outcome, gate netgate.Status) string {
	switch {
	case out.Error != "":
		return out.Error
	case out.StatusCode != nil:
		return fmt.Sprintf("HTTP %d", *out.StatusCode)
	case gate.Error != "":
		return gate.Error
	default:
		return "network unavailable"
	}
}

// check runs the whole pipeline for one endpoint. Every stage after the
// probe logs and continues on error; nothing here aborts the tick. The
// record carries the completion time; the endpoint keeps the tick slot so
// its cadence does not drift with probe latency.
func (s *Scheduler) check(ctx context.Context, ep monitor.Endpoint, gate netgate.Status, now, started time.Time) {
	log := s.logger.With().Str("endpoint_id", ep.ID.String()).Logger()

	out := s.deps.Prober.Probe(ctx, ep.Target())
	checkedAt := now.Add(s.elapsed(started))
	rec := BuildRecord(ep.ID, out, gate, checkedAt)
	s.deps.Metrics.ObserveProbe(rec.Status(), rec.TotalLatency())

	if err := s.deps.Results.Append(ctx, rec); err != nil {
		s.persistFailed(rec, err)
	}

	if err := s.deps.Endpoints.MarkChecked(ctx, ep.ID, now.UTC(), rec.Status()); err != nil {
		log.Error().Err(err).Msg("failed to mark endpoint checked")
	}

	tr, err := s.deps.Engine.ObserveProbe(ctx, ep, rec)
	if err != nil {
		log.Error().Err(err).Msg("downtime evaluation failed")
	} else {
		s.deps.Metrics.ObserveTransition(string(tr.Kind), string(tr.Action))
	}

	if s.deps.SLO != nil {
		snap, err := s.deps.SLO.Refresh(ctx, ep.ID, checkedAt)
		if err != nil {
			log.Error().Err(err).Msg("slo snapshot failed")
		} else if tr, err := s.deps.Engine.SyncBurnRate(ctx, ep, snap); err != nil {
			log.Error().Err(err).Msg("burn rate sync failed")
		} else {
			s.deps.Metrics.ObserveTransition(string(tr.Kind), string(tr.Action))
		}
	}

	if s.deps.Trainer != nil && !rec.Skipped {
		if _, err := s.deps.Trainer.MaybeSubmit(ctx, ep, checkedAt); err != nil {
			log.Warn().Err(err).Msg("training handoff failed")
		}
	}
}

// persistFailed buffers a record the store could not take right now and
// drops one it refused for good.
func (s *Scheduler) persistFailed(rec result.Record, err error) {
	evt := s.logger.Error().Err(err).
		Str("record_id", rec.ID.String()).
		Str("endpoint_id", rec.EndpointID.String())

	if !apperror.Retryable(err) {
		s.deps.Metrics.RecordDropped()
		evt.Msg("store rejected probe record, dropping it")
		return
	}

	if s.pending.push(rec) {
		s.deps.Metrics.RecordDropped()
		evt = evt.Bool("dropped_oldest", true)
	}
	s.deps.Metrics.SetPending(s.pending.size())
	evt.Msg("failed to persist probe record, buffered for retry")
}

// flushPending replays buffered records in order. A rejected record is
// dropped and the flush moves on; a transient failure puts it and
// everything after it back for the next tick.
func (s *Scheduler) flushPending(ctx context.Context) int {
	recs := s.pending.drain()
	if len(recs) == 0 {
		return 0
	}

	flushed := 0
	for i, rec := range recs {
		err := s.deps.Results.Append(ctx, rec)
		if err == nil {
			flushed++
			s.invalidateSLO(ctx, rec.EndpointID)
			continue
		}
		if !apperror.Retryable(err) {
			s.deps.Metrics.RecordDropped()
			s.logger.Error().Err(err).
				Str("record_id", rec.ID.String()).
				Str("endpoint_id", rec.EndpointID.String()).
				Msg("store rejected pending record, dropping it")
			continue
		}
		s.pending.requeue(recs[i:])
		s.logger.Warn().Err(err).Int("remaining", len(recs)-i).Msg("store still unavailable, keeping pending records")
		break
	}
	s.deps.Metrics.SetPending(s.pending.size())
	return flushed
}

// invalidateSLO drops the cached snapshot once a late record lands, since
// it was computed without it.
func (s *Scheduler) invalidateSLO(ctx context.Context, endpointID uuid.UUID) {
	if s.deps.SLO != nil {
		s.deps.SLO.Invalidate(ctx, endpointID)
	}
}

// Pending reports how many records wait for persistence.
func (s *Scheduler) Pending() int {
	return s.pending.size()
}
