// Package metrics holds the prometheus collectors for the probing loop, the
// alert pipeline and the query surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	probes        *prometheus.CounterVec
	probeLatency  prometheus.Histogram
	gate          *prometheus.CounterVec
	tickDuration  prometheus.Histogram
	inflightSkips prometheus.Counter
	pending       prometheus.Gauge
	dropped       prometheus.Counter
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpResponses *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_probes_total",
				Help: "Count the number of probe results by status.",
			},
			[]string{"status"}),
		probeLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pulsewatch_probe_latency_seconds",
				Help:    "Total latency of completed probes.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			}),
		gate: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_network_gate_checks_total",
				Help: "Count the number of network gate checks by verdict.",
			},
			[]string{"reachable"}),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pulsewatch_tick_dispatch_seconds",
				Help:    "Time spent dispatching one scheduler tick.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			}),
		inflightSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulsewatch_inflight_skips_total",
				Help: "Count the number of due endpoints skipped because a check was still running.",
			}),
		pending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulsewatch_pending_records",
				Help: "Probe records waiting to be persisted.",
			}),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulsewatch_dropped_records_total",
				Help: "Count the number of probe records the store rejected permanently.",
			}),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_alert_transitions_total",
				Help: "Count the number of alert state machine transitions.",
			},
			[]string{"kind", "action"}),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_notifications_total",
				Help: "Count the number of notification deliveries by channel and outcome.",
			},
			[]string{"channel", "event", "ok"}),
		httpResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_responses_total",
				Help: "Count the number of HTTP responses.",
			},
			[]string{"method", "status", "path"}),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_requests_duration_second",
				Help:    "Time to execute http requests",
				Buckets: []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1, 1.5, 2, 3, 5},
			},
			[]string{"method", "path"}),
	}

	collectors := []prometheus.Collector{
		m.probes, m.probeLatency, m.gate, m.tickDuration, m.inflightSkips,
		m.pending, m.dropped, m.transitions, m.notifications, m.httpResponses, m.httpDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// The observe methods are safe on a nil *Metrics so components can run
// without a registry in tests and one-shot commands.

func (m *Metrics) ObserveProbe(status string, totalMs float64) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(status).Inc()
	if totalMs > 0 {
		m.probeLatency.Observe(totalMs / 1000)
	}
}

func (m *Metrics) ObserveGate(reachable bool) {
	if m == nil {
		return
	}
	m.gate.WithLabelValues(strconv.FormatBool(reachable)).Inc()
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) InflightSkipped() {
	if m == nil {
		return
	}
	m.inflightSkips.Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) ObserveTransition(kind, action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, action).Inc()
}

func (m *Metrics) ObserveDelivery(channel, event string, ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, event, strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if status == 404 {
		path = "?"
	}
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
	m.httpResponses.WithLabelValues(method, strconv.Itoa(status), path).Inc()
}
