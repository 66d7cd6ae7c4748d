// Package slo computes uptime, latency percentiles, error-budget use and
// multi-window burn rate from probe history.
package slo

import (
	"fmt"
	"math"
	"sort"
	"time"

	"pulsewatch/internals/modules/result"
)

type window struct {
	total, failed int
}

func (w *window) add(up bool) {
	w.total++
	if !up {
		w.failed++
	}
}

func (w window) errorRate() float64 {
	if w.total == 0 {
		return 0
	}
	return float64(w.failed) / float64(w.total)
}

// Compute is deterministic for a given history, params and reference time.
// Skipped records and records after now are ignored.
func Compute(records []result.Record, params Params, now time.Time) Snapshot {
	params = params.normalized()
	now = now.UTC()

	startBudget := now.Add(-params.Window())
	start24h := now.Add(-24 * time.Hour)
	start6h := now.Add(-6 * time.Hour)
	start1h := now.Add(-time.Hour)

	var budget, day, six, hour window
	var latencies []float64

	for _, r := range records {
		if r.Skipped {
			continue
		}
		ts := r.CheckedAt.UTC()
		if ts.Before(startBudget) || ts.After(now) {
			continue
		}

		budget.add(r.Up)
		if !ts.Before(start24h) {
			day.add(r.Up)
			if r.Phases.TotalMs != nil && *r.Phases.TotalMs >= 0 {
				latencies = append(latencies, *r.Phases.TotalMs)
			}
		}
		if !ts.Before(start6h) {
			six.add(r.Up)
		}
		if !ts.Before(start1h) {
			hour.add(r.Up)
		}
	}

	snap := Snapshot{
		TargetPct:               params.TargetPct,
		WindowDays:              params.WindowDays,
		Uptime24hPct:            100,
		ErrorBudgetRemainingPct: 100,
		Level:                   LevelNone,
		Message:                 NoAlertMessage,
		ComputedAt:              now,
		Checks1h:                hour.total,
		Checks6h:                six.total,
	}

	if day.total > 0 {
		snap.Checks24h = day.total
		snap.Uptime24hPct = round(float64(day.total-day.failed)/float64(day.total)*100, 2)
		if len(latencies) > 0 {
			snap.AvgLatency24hMs = round(mean(latencies), 2)
			snap.P95Latency24hMs = round(Percentile(latencies, 95), 2)
		}
	}

	allowed := math.Max(1e-9, 1-params.TargetPct/100)
	observed := budget.errorRate()
	snap.ObservedErrorRatePct = round(observed*100, 4)
	snap.AllowedErrorRatePct = round(allowed*100, 4)

	consumed := clamp(observed/allowed*100, 0, 100)
	snap.ErrorBudgetConsumedPct = round(consumed, 2)
	snap.ErrorBudgetRemainingPct = round(math.Max(0, 100-consumed), 2)

	burn1h := hour.errorRate() / allowed
	burn6h := six.errorRate() / allowed
	snap.BurnRate1h = round(burn1h, 2)
	snap.BurnRate6h = round(burn6h, 2)

	snap.Level = level(hour.total, six.total, burn1h, burn6h)
	switch snap.Level {
	case LevelCritical:
		snap.Message = fmt.Sprintf("Critical burn rate: 1h=%.2fx, 6h=%.2fx error budget consumption", burn1h, burn6h)
	case LevelWarning:
		snap.Message = fmt.Sprintf("Warning burn rate: 1h=%.2fx, 6h=%.2fx error budget consumption", burn1h, burn6h)
	}

	return snap
}

// level requires both windows to agree and to hold enough samples.
func level(total1h, total6h int, burn1h, burn6h float64) Level {
	if total1h < MinSamples1h || total6h < MinSamples6h {
		return LevelNone
	}
	switch {
	case burn1h >= Critical1h && burn6h >= Critical6h:
		return LevelCritical
	case burn1h >= Warning1h && burn6h >= Warning6h:
		return LevelWarning
	default:
		return LevelNone
	}
}

// Percentile interpolates linearly between closest ranks, rank = (n-1)*p/100.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	ordered := append([]float64(nil), values...)
	sort.Float64s(ordered)
	if len(ordered) == 1 {
		return ordered[0]
	}

	rank := float64(len(ordered)-1) * p / 100
	low := int(math.Floor(rank))
	high := int(math.Ceil(rank))
	if low == high {
		return ordered[low]
	}
	weight := rank - float64(low)
	return ordered[low] + (ordered[high]-ordered[low])*weight
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
