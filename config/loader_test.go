package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
env: test
store:
  driver: memory
auth:
  secret: "0123456789abcdef0123"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Scheduler.Tick)
	assert.Equal(t, 10*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 1000, cfg.Probe.BodySnippetLen)
	assert.Equal(t, "https://www.gstatic.com/generate_204", cfg.Network.TestURLs)
	assert.Equal(t, 6*time.Second, cfg.Network.Timeout)
	assert.InDelta(t, 0.05, cfg.Network.MinDownloadMbps, 1e-9)
	assert.Equal(t, 3, cfg.Alert.FailureThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Alert.Cooldown)
	assert.InDelta(t, 99.9, cfg.SLO.TargetPct, 1e-9)
	assert.Equal(t, 30, cfg.SLO.WindowDays)
	assert.InDelta(t, 0.7, cfg.Predictor.Threshold, 1e-9)
	assert.Equal(t, 20*time.Minute, cfg.Predictor.TrainingInterval)
	assert.False(t, cfg.UsesRedis())
	assert.False(t, cfg.UsesRabbitMQ())
	assert.False(t, cfg.UsesPostgres())
}

func TestLoadConfigEnvOverridesAndFloors(t *testing.T) {
	path := writeConfig(t, `
env: test
store:
  driver: memory
auth:
  secret: "0123456789abcdef0123"
alert:
  failure_threshold: 1
`)
	t.Setenv("SCHEDULER_TICK", "5s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Scheduler.Tick)
	assert.Equal(t, 2, cfg.Alert.FailureThreshold)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		path := writeConfig(t, `
env: test
store:
  driver: memory
auth:
  secret: "short"
`)
		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Config.Auth.Secret")
	})

	t.Run("postgres without url", func(t *testing.T) {
		path := writeConfig(t, `
env: test
auth:
  secret: "0123456789abcdef0123"
`)
		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Config.DB.URL")
	})

	t.Run("bad webhook kind", func(t *testing.T) {
		path := writeConfig(t, `
env: test
store:
  driver: memory
auth:
  secret: "0123456789abcdef0123"
notify:
  webhooks:
    - name: ops
      kind: pager
      url: https://hooks.example.com/x
`)
		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Kind")
	})
}
