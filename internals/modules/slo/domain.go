package slo

import "time"

type Level string

const (
	LevelNone     Level = "none"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

const (
	DefaultTargetPct  = 99.9
	DefaultWindowDays = 30

	Critical1h = 14.4
	Critical6h = 6.0
	Warning1h  = 6.0
	Warning6h  = 3.0

	// minimum samples per window before a burn rate can raise an alert
	MinSamples1h = 3
	MinSamples6h = 6

	NoAlertMessage = "No burn-rate alert"
)

type Params struct {
	TargetPct  float64
	WindowDays int
}

func (p Params) normalized() Params {
	if p.TargetPct <= 0 || p.TargetPct > 100 {
		p.TargetPct = DefaultTargetPct
	}
	if p.WindowDays < 1 {
		p.WindowDays = DefaultWindowDays
	}
	return p
}

func (p Params) Window() time.Duration {
	return time.Duration(p.normalized().WindowDays) * 24 * time.Hour
}

type Snapshot struct {
	TargetPct               float64   `json:"slo_target_uptime_pct"`
	WindowDays              int       `json:"error_budget_window_days"`
	Uptime24hPct            float64   `json:"uptime_pct_24h"`
	Checks24h               int       `json:"checks_24h"`
	AvgLatency24hMs         float64   `json:"avg_latency_24h"`
	P95Latency24hMs         float64   `json:"p95_latency_24h"`
	ErrorBudgetConsumedPct  float64   `json:"error_budget_consumed_pct"`
	ErrorBudgetRemainingPct float64   `json:"error_budget_remaining_pct"`
	ObservedErrorRatePct    float64   `json:"observed_error_rate_pct_window"`
	AllowedErrorRatePct     float64   `json:"allowed_error_rate_pct"`
	BurnRate1h              float64   `json:"burn_rate_1h"`
	BurnRate6h              float64   `json:"burn_rate_6h"`
	Checks1h                int       `json:"checks_1h"`
	Checks6h                int       `json:"checks_6h"`
	Level                   Level     `json:"burn_rate_alert_level"`
	Message                 string    `json:"burn_rate_alert_message"`
	ComputedAt              time.Time `json:"computed_at"`
}
