// Package alert owns the per-endpoint incident and alert state machines:
// downtime with recovery, burn rate, and failure prediction.
package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/predictor"
	"pulsewatch/internals/modules/result"
	"pulsewatch/internals/modules/rootcause"
	"pulsewatch/internals/modules/slo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultFailureThreshold    = 3
	MinFailureThreshold        = 2
	DefaultRecoveryThreshold   = 3
	DefaultCooldown            = 30 * time.Minute
	DefaultPredictionThreshold = 0.7
	// consecutive non-skipped up probes that close a prediction alert
	StableWindow = 10
)

type Options struct {
	FailureThreshold    int
	RecoveryThreshold   int
	Cooldown            time.Duration
	BurnRateCooldown    time.Duration
	PredictionThreshold float64
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold == 0 {
		o.FailureThreshold = DefaultFailureThreshold
	}
	if o.FailureThreshold < MinFailureThreshold {
		o.FailureThreshold = MinFailureThreshold
	}
	if o.RecoveryThreshold < 1 {
		o.RecoveryThreshold = DefaultRecoveryThreshold
	}
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.BurnRateCooldown <= 0 {
		o.BurnRateCooldown = o.Cooldown
	}
	if o.PredictionThreshold <= 0 {
		o.PredictionThreshold = DefaultPredictionThreshold
	}
	return o
}

type Engine struct {
	store   Store
	streaks StreakCounter
	locker  Locker
	history History
	queue   Queue
	opts    Options
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewEngine(store Store, streaks StreakCounter, locker Locker, history History, queue Queue, opts Options, logger *zerolog.Logger) *Engine {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if streaks == nil {
		streaks = NewMemoryStreaks()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Engine{
		store:   store,
		streaks: streaks,
		locker:  locker,
		history: history,
		queue:   queue,
		opts:    opts.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

func (e *Engine) Options() Options { return e.opts }

// ObserveProbe advances the downtime and recovery paths with one persisted
// probe result. Skipped results leave every counter untouched.
func (e *Engine) ObserveProbe(ctx context.Context, ep monitor.Endpoint, rec result.Record) (Transition, error) {
	if rec.Skipped {
		return none(KindDowntime), nil
	}

	unlock, err := e.locker.Lock(ctx, ep.ID)
	if err != nil {
		return none(KindDowntime), fmt.Errorf("lock endpoint %v: %w", ep.ID, err)
	}
	defer unlock()

	if !rec.Up {
		count, err := e.streaks.RecordFailure(ctx, ep.ID, rec.ID)
		if err != nil {
			return none(KindDowntime), fmt.Errorf("record failure: %w", err)
		}
		if count < e.opts.FailureThreshold {
			return none(KindDowntime), nil
		}
		return e.onFailure(ctx, ep, rec, count)
	}

	count, err := e.streaks.RecordSuccess(ctx, ep.ID, rec.ID)
	if err != nil {
		return none(KindDowntime), fmt.Errorf("record success: %w", err)
	}

	if err := e.closeStablePrediction(ctx, ep, rec.CheckedAt); err != nil {
		e.logger.Warn().Err(err).Str("endpoint_id", ep.ID.String()).Msg("prediction stability check failed")
	}

	if count < e.opts.RecoveryThreshold {
		return none(KindDowntime), nil
	}
	return e.onRecovery(ctx, ep, rec)
}

func downtimeReason(rec result.Record) (string, rootcause.Cause) {
	cause := rec.RootCause
	if cause == "" {
		cause = rootcause.Unknown
	}
	msg := rec.Error
	if msg == "" && rec.StatusCode != nil {
		msg = fmt.Sprintf("status %d", *rec.StatusCode)
	}
	if msg == "" {
		msg = "unreachable"
	}
	return fmt.Sprintf("API Down: %s (root cause hint: %s)", msg, cause), cause
}

func (e *Engine) onFailure(ctx context.Context, ep monitor.Endpoint, rec result.Record, streak int) (Transition, error) {
	now := rec.CheckedAt.UTC()
	reason, cause := downtimeReason(rec)

	inc, err := e.store.OpenIncident(ctx, ep.ID)
	if err != nil {
		return none(KindDowntime), fmt.Errorf("load open incident: %w", err)
	}
	created := inc == nil
	if created {
		inc = &Incident{
			ID:            uuid.New(),
			Code:          fmt.Sprintf("INC-%d", now.Unix()),
			EndpointID:    ep.ID,
			OwnerID:       ep.OwnerID,
			Status:        IncidentOpen,
			CreatedAt:     now,
			FailureEvents: streak,
		}
	} else {
		inc.FailureEvents++
	}
	inc.LastSeenAt = now
	inc.RootCause = cause
	inc.Reason = reason

	tr := Transition{Kind: KindDowntime, Incident: inc}

	open, err := e.store.OpenAlerts(ctx, ep.ID, KindDowntime)
	if err != nil {
		return none(KindDowntime), fmt.Errorf("load open downtime alerts: %w", err)
	}
	if len(open) > 0 {
		inc.SuppressedAlerts++
		tr.Action = ActionSuppressed
		tr.Reason = "grouped into open incident"
		tr.Alert = &open[0]
		return tr, e.saveIncident(ctx, inc, created)
	}

	latest, err := e.store.LatestAlert(ctx, ep.ID, KindDowntime)
	if err != nil {
		return none(KindDowntime), fmt.Errorf("load latest downtime alert: %w", err)
	}
	if latest != nil && withinCooldown(latest.CreatedAt, now, e.opts.Cooldown) {
		inc.SuppressedAlerts++
		tr.Action = ActionSuppressed
		tr.Reason = fmt.Sprintf("suppressed by cooldown (%s)", e.opts.Cooldown)
		return tr, e.saveIncident(ctx, inc, created)
	}

	if err := e.saveIncident(ctx, inc, created); err != nil {
		return none(KindDowntime), err
	}

	alert := &Record{
		ID:         uuid.New(),
		EndpointID: ep.ID,
		OwnerID:    ep.OwnerID,
		IncidentID: &inc.ID,
		Kind:       KindDowntime,
		Status:     StatusOpen,
		Severity:   SeverityCritical,
		Reason:     reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return none(KindDowntime), fmt.Errorf("create downtime alert: %w", err)
	}

	payload := map[string]any{
		"incident_code":  inc.Code,
		"root_cause":     string(cause),
		"failure_events": inc.FailureEvents,
		"error":          rec.Error,
	}
	if rec.StatusCode != nil {
		payload["status_code"] = *rec.StatusCode
	}
	e.enqueue(Notification{Event: EventOpened, Alert: *alert, Endpoint: ep, Reason: reason, Payload: payload})

	tr.Action = ActionOpened
	tr.Reason = reason
	tr.Alert = alert
	return tr, nil
}

func (e *Engine) saveIncident(ctx context.Context, inc *Incident, created bool) error {
	if created {
		if err := e.store.CreateIncident(ctx, inc); err != nil {
			return fmt.Errorf("create incident: %w", err)
		}
		return nil
	}
	if err := e.store.UpdateIncident(ctx, inc); err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

func (e *Engine) onRecovery(ctx context.Context, ep monitor.Endpoint, rec result.Record) (Transition, error) {
	now := rec.CheckedAt.UTC()

	open, err := e.store.OpenAlerts(ctx, ep.ID, KindDowntime)
	if err != nil {
		return none(KindDowntime), fmt.Errorf("load open downtime alerts: %w", err)
	}
	inc, err := e.store.OpenIncident(ctx, ep.ID)
	if err != nil {
		return none(KindDowntime), fmt.Errorf("load open incident: %w", err)
	}

	if len(open) == 0 {
		if inc == nil {
			return none(KindDowntime), nil
		}
		// incident whose alert was suppressed by cooldown: resolve without notifying
		resolveIncident(inc, now, FormatDowntime(now.Sub(inc.CreatedAt)))
		if err := e.store.UpdateIncident(ctx, inc); err != nil {
			return none(KindDowntime), fmt.Errorf("resolve incident: %w", err)
		}
		return Transition{Kind: KindDowntime, Action: ActionResolved, Reason: ResolutionRecovered, Incident: inc}, nil
	}

	earliest := open[0].CreatedAt
	for _, a := range open[1:] {
		if a.CreatedAt.Before(earliest) {
			earliest = a.CreatedAt
		}
	}
	duration := FormatDowntime(now.Sub(earliest))

	for i := range open {
		open[i].close(now, ResolutionRecovered)
		if err := e.store.UpdateAlert(ctx, &open[i]); err != nil {
			return none(KindDowntime), fmt.Errorf("close downtime alert %v: %w", open[i].ID, err)
		}
	}

	if inc != nil {
		resolveIncident(inc, now, duration)
		if err := e.store.UpdateIncident(ctx, inc); err != nil {
			return none(KindDowntime), fmt.Errorf("resolve incident: %w", err)
		}
	}

	reason := fmt.Sprintf("API recovered after %s of downtime", duration)
	refs := make([]string, 0, len(open))
	for _, a := range open {
		refs = append(refs, a.ID.String())
	}
	e.enqueue(Notification{
		Event:    EventRecovered,
		Alert:    open[0],
		Closed:   open,
		Endpoint: ep,
		Reason:   reason,
		Payload: map[string]any{
			"downtime_duration": duration,
			"closed_alerts":     refs,
		},
	})

	return Transition{Kind: KindDowntime, Action: ActionResolved, Reason: reason, Closed: open, Incident: inc}, nil
}

func resolveIncident(inc *Incident, at time.Time, duration string) {
	inc.Status = IncidentResolved
	inc.ResolvedAt = &at
	inc.Resolution = ResolutionRecovered
	inc.DowntimeDuration = duration
}

// FormatDowntime renders whole minutes under an hour, tenths of hours above.
func FormatDowntime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}

func withinCooldown(created, now time.Time, cooldown time.Duration) bool {
	return !created.Before(now.Add(-cooldown))
}

// SyncBurnRate reconciles the burn-rate alert with the latest SLO snapshot.
func (e *Engine) SyncBurnRate(ctx context.Context, ep monitor.Endpoint, snap slo.Snapshot) (Transition, error) {
	unlock, err := e.locker.Lock(ctx, ep.ID)
	if err != nil {
		return none(KindBurnRate), fmt.Errorf("lock endpoint %v: %w", ep.ID, err)
	}
	defer unlock()

	now := snap.ComputedAt
	if now.IsZero() {
		now = e.now()
	}

	open, err := e.store.OpenAlerts(ctx, ep.ID, KindBurnRate)
	if err != nil {
		return none(KindBurnRate), fmt.Errorf("load open burn-rate alerts: %w", err)
	}

	if snap.Level == slo.LevelNone || snap.Level == "" {
		if len(open) == 0 {
			return none(KindBurnRate), nil
		}
		for i := range open {
			open[i].close(now, ResolutionNormalized)
			if err := e.store.UpdateAlert(ctx, &open[i]); err != nil {
				return none(KindBurnRate), fmt.Errorf("close burn-rate alert %v: %w", open[i].ID, err)
			}
		}
		e.enqueue(Notification{Event: EventResolved, Alert: open[0], Closed: open, Endpoint: ep, Reason: ResolutionNormalized})
		return Transition{Kind: KindBurnRate, Action: ActionResolved, Reason: ResolutionNormalized, Closed: open}, nil
	}

	severity := Severity(snap.Level)
	b1, b6 := snap.BurnRate1h, snap.BurnRate6h
	payload := map[string]any{
		"burn_rate_1h":               b1,
		"burn_rate_6h":               b6,
		"error_budget_remaining_pct": snap.ErrorBudgetRemainingPct,
		"slo_target_uptime_pct":      snap.TargetPct,
	}

	if len(open) > 0 {
		a := open[0]
		escalated := a.Severity != severity
		a.Severity = severity
		a.Reason = snap.Message
		a.BurnRate1h = &b1
		a.BurnRate6h = &b6
		a.UpdatedAt = now
		if err := e.store.UpdateAlert(ctx, &a); err != nil {
			return none(KindBurnRate), fmt.Errorf("update burn-rate alert: %w", err)
		}
		if escalated {
			e.enqueue(Notification{Event: EventUpdated, Alert: a, Endpoint: ep, Reason: snap.Message, Payload: payload})
		}
		return Transition{Kind: KindBurnRate, Action: ActionUpdated, Reason: snap.Message, Alert: &a}, nil
	}

	latest, err := e.store.LatestAlert(ctx, ep.ID, KindBurnRate)
	if err != nil {
		return none(KindBurnRate), fmt.Errorf("load latest burn-rate alert: %w", err)
	}
	if latest != nil && withinCooldown(latest.CreatedAt, now, e.opts.BurnRateCooldown) {
		return Transition{
			Kind:   KindBurnRate,
			Action: ActionSuppressed,
			Reason: fmt.Sprintf("suppressed by cooldown (%s)", e.opts.BurnRateCooldown),
		}, nil
	}

	alert := &Record{
		ID:         uuid.New(),
		EndpointID: ep.ID,
		OwnerID:    ep.OwnerID,
		Kind:       KindBurnRate,
		Status:     StatusOpen,
		Severity:   severity,
		Reason:     snap.Message,
		CreatedAt:  now,
		UpdatedAt:  now,
		BurnRate1h: &b1,
		BurnRate6h: &b6,
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return none(KindBurnRate), fmt.Errorf("create burn-rate alert: %w", err)
	}
	e.enqueue(Notification{Event: EventOpened, Alert: *alert, Endpoint: ep, Reason: snap.Message, Payload: payload})
	return Transition{Kind: KindBurnRate, Action: ActionOpened, Reason: snap.Message, Alert: alert}, nil
}

func predictionReason(p predictor.Prediction) string {
	reason := fmt.Sprintf("AI predicted failure probability %.1f%% (confidence %.1f%%)",
		p.FailureProbability*100, p.Confidence*100)
	if len(p.RiskFactors) > 0 {
		reason += ": " + strings.Join(p.RiskFactors, "; ")
	}
	return reason
}

func predictionSeverity(probability float64) Severity {
	if probability >= 0.9 {
		return SeverityCritical
	}
	return SeverityHigh
}

// ObservePrediction opens or refreshes the prediction alert when the failure
// probability crosses the threshold. Below it, an open alert is closed only
// once the endpoint has been stable.
func (e *Engine) ObservePrediction(ctx context.Context, ep monitor.Endpoint, p predictor.Prediction) (Transition, error) {
	p = p.Normalized()

	unlock, err := e.locker.Lock(ctx, ep.ID)
	if err != nil {
		return none(KindPrediction), fmt.Errorf("lock endpoint %v: %w", ep.ID, err)
	}
	defer unlock()

	now := p.PredictedAt
	if now.IsZero() {
		now = e.now()
	}

	open, err := e.store.OpenAlerts(ctx, ep.ID, KindPrediction)
	if err != nil {
		return none(KindPrediction), fmt.Errorf("load open prediction alerts: %w", err)
	}

	if p.FailureProbability < e.opts.PredictionThreshold {
		if len(open) == 0 {
			return none(KindPrediction), nil
		}
		return e.closePrediction(ctx, ep, open, now)
	}

	probability := p.FailureProbability
	reason := predictionReason(p)
	payload := map[string]any{
		"failure_probability": probability,
		"confidence":          p.Confidence,
		"risk_factors":        p.RiskFactors,
		"recommendations":     p.Recommendations,
		"model":               p.Model,
	}

	if len(open) > 0 {
		a := open[0]
		a.FailureProbability = &probability
		a.Severity = predictionSeverity(probability)
		a.Reason = reason
		a.UpdatedAt = now
		if err := e.store.UpdateAlert(ctx, &a); err != nil {
			return none(KindPrediction), fmt.Errorf("update prediction alert: %w", err)
		}
		return Transition{Kind: KindPrediction, Action: ActionUpdated, Reason: reason, Alert: &a}, nil
	}

	latest, err := e.store.LatestAlert(ctx, ep.ID, KindPrediction)
	if err != nil {
		return none(KindPrediction), fmt.Errorf("load latest prediction alert: %w", err)
	}
	if latest != nil && withinCooldown(latest.CreatedAt, now, e.opts.Cooldown) {
		return Transition{
			Kind:   KindPrediction,
			Action: ActionSuppressed,
			Reason: fmt.Sprintf("suppressed by cooldown (%s)", e.opts.Cooldown),
		}, nil
	}

	alert := &Record{
		ID:                 uuid.New(),
		EndpointID:         ep.ID,
		OwnerID:            ep.OwnerID,
		Kind:               KindPrediction,
		Status:             StatusOpen,
		Severity:           predictionSeverity(probability),
		Reason:             reason,
		CreatedAt:          now,
		UpdatedAt:          now,
		FailureProbability: &probability,
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return none(KindPrediction), fmt.Errorf("create prediction alert: %w", err)
	}
	e.enqueue(Notification{Event: EventOpened, Alert: *alert, Endpoint: ep, Reason: reason, Payload: payload})
	return Transition{Kind: KindPrediction, Action: ActionOpened, Reason: reason, Alert: alert}, nil
}

// closeStablePrediction runs under the endpoint lock.
func (e *Engine) closeStablePrediction(ctx context.Context, ep monitor.Endpoint, at time.Time) error {
	open, err := e.store.OpenAlerts(ctx, ep.ID, KindPrediction)
	if err != nil || len(open) == 0 {
		return err
	}
	_, err = e.closePrediction(ctx, ep, open, at)
	return err
}

func (e *Engine) closePrediction(ctx context.Context, ep monitor.Endpoint, open []Record, at time.Time) (Transition, error) {
	stable, err := e.stable(ctx, ep.ID)
	if err != nil {
		return none(KindPrediction), err
	}
	if !stable {
		return none(KindPrediction), nil
	}

	for i := range open {
		open[i].close(at, ResolutionStabilized)
		if err := e.store.UpdateAlert(ctx, &open[i]); err != nil {
			return none(KindPrediction), fmt.Errorf("close prediction alert %v: %w", open[i].ID, err)
		}
	}
	e.enqueue(Notification{Event: EventResolved, Alert: open[0], Closed: open, Endpoint: ep, Reason: ResolutionStabilized})
	return Transition{Kind: KindPrediction, Action: ActionResolved, Reason: ResolutionStabilized, Closed: open}, nil
}

// stable reports whether the last StableWindow non-skipped probes were all up.
func (e *Engine) stable(ctx context.Context, endpointID uuid.UUID) (bool, error) {
	if e.history == nil {
		return false, nil
	}
	recent, err := e.history.Recent(ctx, endpointID, StableWindow*3)
	if err != nil {
		return false, fmt.Errorf("load recent history: %w", err)
	}

	seen := 0
	for _, r := range recent {
		if r.Skipped {
			continue
		}
		if !r.Up {
			return false, nil
		}
		seen++
		if seen == StableWindow {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) enqueue(n Notification) {
	if e.queue == nil {
		return
	}
	e.queue.Enqueue(n)
}
