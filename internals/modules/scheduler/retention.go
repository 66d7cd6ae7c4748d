package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const DefaultRetentionDays = 90

type HistoryPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention purges probe history older than the retention window on a cron
// schedule.
type Retention struct {
	cron    *cron.Cron
	purger  HistoryPurger
	window  time.Duration
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewRetention(purger HistoryPurger, days int, schedule string, logger *zerolog.Logger) (*Retention, error) {
	if days < 1 {
		days = DefaultRetentionDays
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	r := &Retention{
		cron:    cron.New(),
		purger:  purger,
		window:  time.Duration(days) * 24 * time.Hour,
		timeout: 5 * time.Minute,
		logger:  logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Retention) Start() {
	r.cron.Start()
}

// Stop waits for a running purge to finish.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Retention) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.Purge(ctx, time.Now()); err != nil {
		r.logger.Error().Err(err).Msg("retention purge failed")
	}
}

// Purge deletes records checked before now minus the window.
func (r *Retention) Purge(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-r.window)
	n, err := r.purger.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("retention purge")
	return n, nil
}
