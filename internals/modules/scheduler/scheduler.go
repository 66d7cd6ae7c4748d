// Package scheduler drives the probing loop: one gate check per tick, then a
// bounded pool of per-endpoint checks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"pulsewatch/internals/metrics"
	"pulsewatch/internals/modules/alert"
	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/netgate"
	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/result"
	"pulsewatch/internals/modules/slo"
	"pulsewatch/internals/modules/user"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTick          = 30 * time.Second
	DefaultWorkers       = 16
	DefaultInflightLease = 2 * time.Minute
	DefaultPendingLimit  = 10000
)

type EndpointStore interface {
	ListActive(ctx context.Context) ([]monitor.Endpoint, error)
	MarkChecked(ctx context.Context, id uuid.UUID, at time.Time, status string) error
}

type ResultStore interface {
	Append(ctx context.Context, rec result.Record) error
}

type TierResolver interface {
	TierOf(ctx context.Context, ownerID uuid.UUID) (user.Tier, error)
}

type Prober interface {
	Probe(ctx context.Context, t probe.Target) probe.Outcome
}

type Gate interface {
	Check(ctx context.Context) netgate.Status
}

type AlertEngine interface {
	ObserveProbe(ctx context.Context, ep monitor.Endpoint, rec result.Record) (alert.Transition, error)
	SyncBurnRate(ctx context.Context, ep monitor.Endpoint, snap slo.Snapshot) (alert.Transition, error)
}

type SLORefresher interface {
	Refresh(ctx context.Context, endpointID uuid.UUID, now time.Time) (slo.Snapshot, error)
	Invalidate(ctx context.Context, endpointID uuid.UUID)
}

type TrainingSubmitter interface {
	MaybeSubmit(ctx context.Context, ep monitor.Endpoint, now time.Time) (bool, error)
}

// Leases is the cross-process in-flight guard, backed by Redis when
// several schedulers share one store.
type Leases interface {
	ClaimInflight(ctx context.Context, endpointID uuid.UUID, now time.Time, lease time.Duration) (bool, error)
	ReleaseInflight(ctx context.Context, endpointID uuid.UUID) error
}

// Deps are the collaborators of one scheduler. SLO, Trainer, Leases and
// Metrics are optional.
type Deps struct {
	Endpoints EndpointStore
	Results   ResultStore
	Tiers     TierResolver
	Prober    Prober
	Gate      Gate
	Engine    AlertEngine
	SLO       SLORefresher
	Trainer   TrainingSubmitter
	Leases    Leases
	Metrics   *metrics.Metrics
}

type Options struct {
	Tick          time.Duration
	Workers       int
	InflightLease time.Duration
	PendingLimit  int
}

// TickReport summarises what one tick dispatched.
type TickReport struct {
	At          time.Time
	Network     netgate.Status
	Active      int
	Due         int
	Dispatched  int
	SkippedBusy int
	Flushed     int
	Err         error
}

type Scheduler struct {
	// lifecycle
	tick     time.Duration
	lease    time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	loopWG   sync.WaitGroup
	checkWG  sync.WaitGroup

	// concurrency
	sem      chan struct{}
	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}

	deps    Deps
	pending *pendingBuffer
	now     func() time.Time
	elapsed func(time.Time) time.Duration

	// misc
	logger *zerolog.Logger
}

func New(deps Deps, opts Options, logger *zerolog.Logger) *Scheduler {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.InflightLease <= 0 {
		opts.InflightLease = DefaultInflightLease
	}
	if opts.PendingLimit <= 0 {
		opts.PendingLimit = DefaultPendingLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{
		tick:     opts.Tick,
		lease:    opts.InflightLease,
		stop:     make(chan struct{}),
		sem:      make(chan struct{}, opts.Workers),
		inflight: make(map[uuid.UUID]struct{}),
		deps:     deps,
		pending:  newPendingBuffer(opts.PendingLimit),
		now:      time.Now,
		elapsed:  time.Since,
		logger:   logger,
	}
}

// Start runs the tick loop until ctx is done or Stop is called. The first
// tick fires immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.loopWG.Add(1)
	go func() {
		defer s.loopWG.Done()

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		s.logger.Info().Dur("tick", s.tick).Int("workers", cap(s.sem)).Msg("scheduler started")
		defer s.logger.Info().Msg("scheduler stopped")

		s.runTick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.runTick(ctx)
			}
		}
	}()
}

func (s *Scheduler) runTick(ctx context.Context) {
	report := s.RunOnce(ctx, s.now())
	evt := s.logger.Debug()
	if report.Err != nil {
		evt = s.logger.Error().Err(report.Err)
	}
	evt.Int("active", report.Active).
		Int("due", report.Due).
		Int("dispatched", report.Dispatched).
		Int("skipped_busy", report.SkippedBusy).
		Int("flushed", report.Flushed).
		Bool("network_up", report.Network.Reachable()).
		Msg("tick")
}

// Stop ends the loop and waits for running checks to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.loopWG.Wait()
	s.checkWG.Wait()
}

// Wait blocks until every dispatched check has finished.
func (s *Scheduler) Wait() {
	s.checkWG.Wait()
}

// RunOnce performs one tick at now. It returns once every due endpoint has
// been handed to a worker; checks keep running in the background.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) TickReport {
	start := time.Now()
	defer func() { s.deps.Metrics.ObserveTick(time.Since(start)) }()

	report := TickReport{At: now}
	report.Flushed = s.flushPending(ctx)

	report.Network = s.deps.Gate.Check(ctx)
	s.deps.Metrics.ObserveGate(report.Network.Reachable())
	if !report.Network.Reachable() {
		s.logger.Warn().Str("error", report.Network.Error).Str("test_url", report.Network.TestURL).
			Msg("network degraded, failed probes this tick are skipped")
	}

	endpoints, err := s.deps.Endpoints.ListActive(ctx)
	if err != nil {
		report.Err = err
		return report
	}
	report.Active = len(endpoints)

	tiers := make(map[uuid.UUID]user.Tier)
	for _, ep := range endpoints {
		if !ep.Due(now, s.tierOf(ctx, tiers, ep.OwnerID)) {
			continue
		}
		report.Due++

		if !s.acquire(ctx, ep.ID, now) {
			report.SkippedBusy++
			s.deps.Metrics.InflightSkipped()
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			s.release(ep.ID)
			report.Err = ctx.Err()
			return report
		}

		report.Dispatched++
		s.checkWG.Add(1)
		go func(ep monitor.Endpoint, gate netgate.Status) {
			defer func() {
				<-s.sem
				s.release(ep.ID)
				s.checkWG.Done()
			}()
			s.check(ctx, ep, gate, now, start)
		}(ep, report.Network)
	}
	return report
}

// tierOf resolves each owner once per tick. Lookup failures fall back to the
// free tier, which only ever lengthens an interval.
func (s *Scheduler) tierOf(ctx context.Context, cache map[uuid.UUID]user.Tier, ownerID uuid.UUID) user.Tier {
	if t, ok := cache[ownerID]; ok {
		return t
	}
	t := user.TierFree
	if s.deps.Tiers != nil {
		var err error
		if t, err = s.deps.Tiers.TierOf(ctx, ownerID); err != nil {
			s.logger.Warn().Err(err).Str("owner_id", ownerID.String()).Msg("tier lookup failed, using free tier")
			t = user.TierFree
		}
	}
	cache[ownerID] = t
	return t
}

func (s *Scheduler) acquire(ctx context.Context, id uuid.UUID, now time.Time) bool {
	s.mu.Lock()
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return false
	}
	s.inflight[id] = struct{}{}
	s.mu.Unlock()

	if s.deps.Leases == nil {
		return true
	}
	ok, err := s.deps.Leases.ClaimInflight(ctx, id, now, s.lease)
	if err != nil {
		s.logger.Warn().Err(err).Str("endpoint_id", id.String()).Msg("inflight lease unavailable, using local guard only")
		return true
	}
	if !ok {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}
	return ok
}

func (s *Scheduler) release(id uuid.UUID) {
	if s.deps.Leases != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.deps.Leases.ReleaseInflight(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("endpoint_id", id.String()).Msg("failed to release inflight lease")
		}
		cancel()
	}
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Busy reports whether a check for the endpoint is running.
func (s *Scheduler) Busy(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[id]
	return ok
}
