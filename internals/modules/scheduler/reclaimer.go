package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultReclaimInterval = 10 * time.Second
	DefaultReclaimLimit    = 100
)

type LeaseReclaimer interface {
	ReclaimInflight(ctx context.Context, now time.Time, limit int) (int64, error)
}

// Reclaimer drops in-flight leases left behind by a scheduler that died
// mid-check, so the endpoint becomes due again.
type Reclaimer struct {
	// lifecycle
	interval time.Duration
	limit    int

	// services
	leases LeaseReclaimer

	// misc
	logger *zerolog.Logger
}

func NewReclaimer(leases LeaseReclaimer, interval time.Duration, limit int, logger *zerolog.Logger) *Reclaimer {
	if interval <= 0 {
		interval = DefaultReclaimInterval
	}
	if limit <= 0 {
		limit = DefaultReclaimLimit
	}
	return &Reclaimer{
		interval: interval,
		limit:    limit,
		leases:   leases,
		logger:   logger,
	}
}

// Run blocks until ctx is done.
func (r *Reclaimer) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("reclaimer started")
	ticker := time.NewTicker(r.interval)
	defer func() {
		ticker.Stop()
		r.logger.Info().Msg("reclaimer stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReclaimOnce(ctx, time.Now())
		}
	}
}

func (r *Reclaimer) ReclaimOnce(ctx context.Context, now time.Time) int64 {
	count, err := r.leases.ReclaimInflight(ctx, now, r.limit)
	if err != nil {
		// transient redis error, next tick retries
		r.logger.Error().Err(err).Msg("failed to reclaim inflight leases")
		return 0
	}
	if count > 0 {
		r.logger.Info().Int64("count", count).Msg("reclaimed expired inflight leases")
	}
	return count
}
