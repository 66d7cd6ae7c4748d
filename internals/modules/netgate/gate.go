// Package netgate decides whether the monitor's own network is healthy
// enough to trust a failed probe.
package netgate

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"pulsewatch/pkg/httpclient"
)

const (
	DefaultTestURL         = "https://www.gstatic.com/generate_204"
	DefaultTimeout         = 6 * time.Second
	DefaultMinDownloadMbps = 0.05
	DefaultMaxLatencyMs    = 3000.0

	// MinSpeedSampleBytes is the payload size below which throughput is
	// informational only; connectivity endpoints often return empty bodies.
	MinSpeedSampleBytes = 1024
)

type Status struct {
	NetworkUp    bool      `json:"network_up"`
	LatencyMs    *float64  `json:"latency_ms"`
	DownloadMbps *float64  `json:"download_mbps"`
	StatusCode   *int      `json:"status_code"`
	Error        string    `json:"error,omitempty"`
	TestURL      string    `json:"test_url,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Reachable is the verdict shared with every check of a tick: the network
// counts as up unless the gate recorded an explicit error.
func (s Status) Reachable() bool {
	return s.NetworkUp || s.Error == ""
}

type Options struct {
	URLs            string
	Timeout         time.Duration
	MinDownloadMbps float64
	MaxLatencyMs    float64
	Client          *http.Client
}

type Gate struct {
	urls       []string
	timeout    time.Duration
	minMbps    float64
	maxLatency float64
	client     *http.Client
}

func New(opts Options) *Gate {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxLatencyMs <= 0 {
		opts.MaxLatencyMs = DefaultMaxLatencyMs
	}
	if opts.Client == nil {
		opts.Client = httpclient.NewProbeClient(opts.Timeout)
	}
	return &Gate{
		urls:       ParseURLs(opts.URLs),
		timeout:    opts.Timeout,
		minMbps:    opts.MinDownloadMbps,
		maxLatency: opts.MaxLatencyMs,
		client:     opts.Client,
	}
}

// ParseURLs splits a comma-separated list, falling back to DefaultTestURL.
func ParseURLs(raw string) []string {
	var urls []string
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		urls = []string{DefaultTestURL}
	}
	return urls
}

// Check tries each test URL in order and returns the first healthy result,
// or the last failing one.
func (g *Gate) Check(ctx context.Context) Status {
	var last Status
	for _, u := range g.urls {
		st := g.checkOne(ctx, u)
		if st.NetworkUp {
			return st
		}
		last = st
		if ctx.Err() != nil {
			break
		}
	}
	return last
}

func (g *Gate) checkOne(ctx context.Context, url string) Status {
	st := Status{TestURL: url, CheckedAt: time.Now().UTC()}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	size, err := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		st.Error = err.Error()
		return st
	}

	seconds := math.Max(time.Since(start).Seconds(), 1e-6)
	latency := seconds * 1000
	mbps := float64(size) * 8 / (seconds * 1_000_000)
	code := resp.StatusCode

	st.LatencyMs = ptr(round(latency, 2))
	st.DownloadMbps = ptr(round(mbps, 3))
	st.StatusCode = &code

	enforceSpeed := size >= MinSpeedSampleBytes && g.minMbps > 0
	speedOK := !enforceSpeed || mbps >= g.minMbps
	latencyOK := latency <= g.maxLatency
	statusOK := code >= 200 && code < 500

	st.NetworkUp = statusOK && latencyOK && speedOK
	switch {
	case st.NetworkUp:
	case !statusOK:
		st.Error = fmt.Sprintf("status %d", code)
	case !latencyOK:
		st.Error = fmt.Sprintf("high latency %.1fms", latency)
	default:
		st.Error = fmt.Sprintf("low speed %.3fMbps", mbps)
	}
	return st
}

func ptr[T any](v T) *T { return &v }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
