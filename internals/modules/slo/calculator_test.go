package slo

import (
	"context"
	"testing"
	"time"

	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/result"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func rec(ago time.Duration, up bool, latency float64) result.Record {
	l := latency
	return result.Record{
		ID:        uuid.New(),
		CheckedAt: refTime.Add(-ago),
		Outcome:   probe.Outcome{Up: up, Phases: probe.Phases{TotalMs: &l}},
	}
}

func TestComputeEmptyHistory(t *testing.T) {
	snap := Compute(nil, Params{}, refTime)

	assert.Equal(t, DefaultTargetPct, snap.TargetPct)
	assert.Equal(t, DefaultWindowDays, snap.WindowDays)
	assert.Equal(t, 100.0, snap.Uptime24hPct)
	assert.Equal(t, 100.0, snap.ErrorBudgetRemainingPct)
	assert.Equal(t, 0.0, snap.ErrorBudgetConsumedPct)
	assert.Equal(t, 0.1, snap.AllowedErrorRatePct)
	assert.Equal(t, LevelNone, snap.Level)
	assert.Equal(t, NoAlertMessage, snap.Message)
}

func TestComputeCriticalBurnRate(t *testing.T) {
	var history []result.Record
	// 3/3 failed in the last hour, 6/6 failed in the last six hours
	for _, ago := range []time.Duration{5, 20, 40} {
		history = append(history, rec(ago*time.Minute, false, 100))
	}
	for _, ago := range []time.Duration{2, 3, 5} {
		history = append(history, rec(ago*time.Hour, false, 100))
	}

	snap := Compute(history, Params{TargetPct: 99.9, WindowDays: 30}, refTime)

	assert.Equal(t, 3, snap.Checks1h)
	assert.Equal(t, 6, snap.Checks6h)
	assert.GreaterOrEqual(t, snap.BurnRate1h, Critical1h)
	assert.GreaterOrEqual(t, snap.BurnRate6h, Critical6h)
	assert.Equal(t, 1000.0, snap.BurnRate1h)
	assert.Equal(t, LevelCritical, snap.Level)
	assert.Equal(t, "Critical burn rate: 1h=1000.00x, 6h=1000.00x error budget consumption", snap.Message)
	assert.Equal(t, 0.0, snap.Uptime24hPct)
	assert.Equal(t, 100.0, snap.ErrorBudgetConsumedPct)
	assert.Equal(t, 0.0, snap.ErrorBudgetRemainingPct)
}

func TestComputeWarningBurnRate(t *testing.T) {
	var history []result.Record
	for _, ago := range []time.Duration{5, 20, 40} {
		history = append(history, rec(ago*time.Minute, false, 100))
	}
	for _, ago := range []time.Duration{2, 3, 5} {
		history = append(history, rec(ago*time.Hour, true, 100))
	}

	// allowed error rate is 10%: burn_1h = 10x, burn_6h = 5x
	snap := Compute(history, Params{TargetPct: 90, WindowDays: 30}, refTime)

	assert.Equal(t, 10.0, snap.BurnRate1h)
	assert.Equal(t, 5.0, snap.BurnRate6h)
	assert.Equal(t, LevelWarning, snap.Level)
	assert.Contains(t, snap.Message, "Warning burn rate: 1h=10.00x, 6h=5.00x")
}

func TestComputeSparseWindowsDoNotAlert(t *testing.T) {
	history := []result.Record{
		rec(5*time.Minute, false, 100),
		rec(10*time.Minute, false, 100),
		rec(2*time.Hour, false, 100),
		rec(3*time.Hour, false, 100),
		rec(4*time.Hour, false, 100),
		rec(5*time.Hour, false, 100),
	}

	snap := Compute(history, Params{TargetPct: 99.9}, refTime)

	assert.Equal(t, 2, snap.Checks1h)
	assert.Greater(t, snap.BurnRate1h, Critical1h)
	assert.Equal(t, LevelNone, snap.Level, "fewer than 3 samples in the last hour")
}

func TestComputeExcludesSkippedAndFuture(t *testing.T) {
	skipped := rec(time.Minute, false, 5000)
	skipped.Skipped = true
	future := rec(-time.Minute, false, 5000)
	old := rec(31*24*time.Hour, false, 5000)

	history := []result.Record{skipped, future, old, rec(2*time.Minute, true, 120)}
	snap := Compute(history, Params{}, refTime)

	assert.Equal(t, 1, snap.Checks24h)
	assert.Equal(t, 100.0, snap.Uptime24hPct)
	assert.Equal(t, 120.0, snap.AvgLatency24hMs)
	assert.Equal(t, 0.0, snap.ObservedErrorRatePct)
}

func TestComputeErrorBudgetAndLatency(t *testing.T) {
	var history []result.Record
	for i := 0; i < 2000; i++ {
		history = append(history, rec(time.Duration(i)*10*time.Minute, i != 500, float64(i%10+1)))
	}

	snap := Compute(history, Params{TargetPct: 99.9, WindowDays: 30}, refTime)

	// 2000 samples over ~13.9 days, one failure: 0.05% against a 0.1% budget
	assert.Equal(t, 0.05, snap.ObservedErrorRatePct)
	assert.Equal(t, 50.0, snap.ErrorBudgetConsumedPct)
	assert.Equal(t, 50.0, snap.ErrorBudgetRemainingPct)
	assert.Equal(t, 145, snap.Checks24h)
	assert.Equal(t, 100.0, snap.Uptime24hPct)
	assert.Greater(t, snap.P95Latency24hMs, snap.AvgLatency24hMs)
}

func TestComputeIsIdempotent(t *testing.T) {
	var history []result.Record
	for i := 0; i < 300; i++ {
		history = append(history, rec(time.Duration(i)*7*time.Minute, i%13 != 0, float64(50+i%40)))
	}

	first := Compute(history, Params{TargetPct: 99.5, WindowDays: 7}, refTime)
	second := Compute(history, Params{TargetPct: 99.5, WindowDays: 7}, refTime)

	assert.Equal(t, first, second)
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}

	assert.InDelta(t, 9.55, Percentile(values, 95), 1e-9)
	assert.Equal(t, 5.5, Percentile(values, 50))
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 10.0, Percentile(values, 100))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 95))
	assert.Equal(t, 0.0, Percentile(nil, 95))
	assert.Equal(t, 10.0, values[0], "input is not reordered")
}

type countingHistory struct {
	calls   int
	records []result.Record
}

func (h *countingHistory) Since(_ context.Context, _ uuid.UUID, _ time.Time) ([]result.Record, error) {
	h.calls++
	return h.records, nil
}

func TestServiceCachesSnapshots(t *testing.T) {
	h := &countingHistory{records: []result.Record{rec(time.Minute, true, 10)}}
	svc := NewService(h, NewMemoryCache(), Params{}, time.Minute, nil)
	id := uuid.New()

	first, err := svc.Snapshot(context.Background(), id, refTime)
	require.NoError(t, err)
	second, err := svc.Snapshot(context.Background(), id, refTime)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.calls)

	_, err = svc.Refresh(context.Background(), id, refTime)
	require.NoError(t, err)
	assert.Equal(t, 2, h.calls)

	svc.Invalidate(context.Background(), id)
	_, err = svc.Snapshot(context.Background(), id, refTime)
	require.NoError(t, err)
	assert.Equal(t, 3, h.calls, "invalidated snapshot is recomputed")
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := refTime
	c.now = func() time.Time { return now }
	id := uuid.New()

	c.Set(context.Background(), id, Snapshot{Checks24h: 7}, 30*time.Second)
	got, ok := c.Get(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, 7, got.Checks24h)

	now = now.Add(31 * time.Second)
	_, ok = c.Get(context.Background(), id)
	assert.False(t, ok)

	c.Set(context.Background(), id, Snapshot{}, time.Minute)
	c.Invalidate(context.Background(), id)
	_, ok = c.Get(context.Background(), id)
	assert.False(t, ok)
}
