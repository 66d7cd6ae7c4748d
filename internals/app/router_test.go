package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pulsewatch/config"
	"pulsewatch/internals/modules/monitor"
	"pulsewatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:         config.EnvTest,
		ServiceName: "pulsewatch",
		Port:        8080,
		Store:       &config.StoreConfig{Driver: "memory"},
		Auth:        &config.AuthConfig{Secret: "0123456789abcdef0123", Issuer: "pulsewatch", TokenTTL: time.Hour},
		Scheduler:   &config.SchedulerConfig{Tick: time.Minute, Workers: 2},
		Probe:       &config.ProbeConfig{Timeout: time.Second},
		Network:     &config.NetworkConfig{TestURLs: "http://127.0.0.1:1/", Timeout: time.Second, MaxLatencyMs: 3000},
		Alert:       &config.AlertConfig{FailureThreshold: 2, RecoveryThreshold: 1, DispatchWorkers: 1, DispatchBuffer: 8},
		SLO:         &config.SLOConfig{TargetPct: 99.9, WindowDays: 30},
		Predictor:   &config.PredictorConfig{Threshold: 0.7},
		Notify:      &config.NotifyConfig{Attempts: 1, Timeout: time.Second},
		Retention:   &config.RetentionConfig{Days: 90, Schedule: "@hourly"},
	}
}

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	c, err := NewContainer(context.Background(), memoryConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c
}

func TestMemoryContainerSkipsOptionalInfra(t *testing.T) {
	c := newTestContainer(t)

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Rabbit)
	assert.Nil(t, c.Trainer)
	assert.Nil(t, c.Consumer)
	assert.Nil(t, c.Reclaimer)
	assert.NotNil(t, c.Scheduler)
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	c := newTestContainer(t)
	h := RegisterRoutes(c)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusRequiresBearerToken(t *testing.T) {
	c := newTestContainer(t)
	h := RegisterRoutes(c)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/endpoints/"+uuid.NewString()+"/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusWithOwnerToken(t *testing.T) {
	c := newTestContainer(t)
	h := RegisterRoutes(c)
	ctx := context.Background()

	owner := uuid.New()
	ep := monitor.Endpoint{ID: uuid.New(), OwnerID: owner, URL: "https://api.example.com", IntervalSec: 60, Active: true}
	require.NoError(t, c.Stores.Endpoints.Create(ctx, ep))

	get := func(subject uuid.UUID) *httptest.ResponseRecorder {
		token, err := c.Tokens.GenerateAccessToken(subject)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/v1/endpoints/"+ep.ID.String()+"/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := get(owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&body))
	assert.True(t, body.Success)

	assert.Equal(t, http.StatusNotFound, get(uuid.New()).Code)
}
