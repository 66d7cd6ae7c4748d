package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoadConfig reads an optional YAML file and overlays environment variables
// (db.url -> DB_URL). An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	normalize(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("service_name", "pulsewatch")
	v.SetDefault("port", 8080)

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.auto_migrate", false)

	v.SetDefault("db.url", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.min_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "1h")
	v.SetDefault("db.conn_max_idle_time", "30m")
	v.SetDefault("db.health_timeout", "5s")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.conn_max_lifetime", "2m")
	v.SetDefault("redis.conn_max_idle_time", "30s")
	v.SetDefault("redis.lock_ttl", "15s")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "pulsewatch.training")
	v.SetDefault("rabbitmq.exchange_type", "direct")
	v.SetDefault("rabbitmq.train_queue", "training.requests")
	v.SetDefault("rabbitmq.train_routing_key", "training.requested")
	v.SetDefault("rabbitmq.done_queue", "training.completions")
	v.SetDefault("rabbitmq.done_routing_key", "training.completed")
	v.SetDefault("rabbitmq.consumer_workers", 4)
	v.SetDefault("rabbitmq.prefetch", 10)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "pulsewatch")
	v.SetDefault("auth.token_ttl", "30m")

	v.SetDefault("scheduler.tick", "30s")
	v.SetDefault("scheduler.workers", 16)
	v.SetDefault("scheduler.inflight_lease", "2m")
	v.SetDefault("scheduler.reclaim_interval", "10s")
	v.SetDefault("scheduler.reclaim_limit", 100)
	v.SetDefault("scheduler.pending_limit", 10000)

	v.SetDefault("probe.timeout", "10s")
	v.SetDefault("probe.body_snippet_len", 1000)
	v.SetDefault("probe.cert_timeout", "5s")

	v.SetDefault("network.test_urls", "https://www.gstatic.com/generate_204")
	v.SetDefault("network.timeout", "6s")
	v.SetDefault("network.min_download_mbps", 0.05)
	v.SetDefault("network.max_latency_ms", 3000)

	v.SetDefault("alert.failure_threshold", 3)
	v.SetDefault("alert.recovery_threshold", 3)
	v.SetDefault("alert.cooldown", "30m")
	v.SetDefault("alert.burn_rate_cooldown", "30m")
	v.SetDefault("alert.dispatch_workers", 4)
	v.SetDefault("alert.dispatch_buffer", 256)

	v.SetDefault("slo.target_pct", 99.9)
	v.SetDefault("slo.window_days", 30)
	v.SetDefault("slo.cache_ttl", "30s")

	v.SetDefault("predictor.base_url", "")
	v.SetDefault("predictor.timeout", "10s")
	v.SetDefault("predictor.threshold", 0.7)
	v.SetDefault("predictor.training_interval", "20m")
	v.SetDefault("predictor.min_records", 50)

	v.SetDefault("notify.attempts", 3)
	v.SetDefault("notify.backoff", "500ms")
	v.SetDefault("notify.timeout", "10s")

	v.SetDefault("retention.days", 90)
	v.SetDefault("retention.schedule", "@hourly")
}

// normalize applies floors that are not expressed as validation failures.
func normalize(cfg *Config) {
	if cfg.Alert.FailureThreshold < 2 {
		cfg.Alert.FailureThreshold = 2
	}
}

func validateConfig(cfg *Config) error {

	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return formatValidationErrors(ve)
		}
		return err
	}

	if cfg.UsesPostgres() && (cfg.DB == nil || cfg.DB.URL == "") {
		return errors.New("config validation failed:\n- field 'Config.DB.URL' failed on 'required'\n")
	}
	return nil
}

func formatValidationErrors(ve validator.ValidationErrors) error {
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")

	for _, fe := range ve {
		fmt.Fprintf(&sb, "- field '%s' failed on '%s'\n", fe.Namespace(), fe.Tag())
	}
	return errors.New(sb.String())
}
