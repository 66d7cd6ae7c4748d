package config

import "time"

type StoreConfig struct {
	Driver      string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type DBConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns" validate:"min=1"`
	MinIdleConns    int32         `mapstructure:"min_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	HealthTimeout   time.Duration `mapstructure:"health_timeout" validate:"required"`
}

// RedisConfig is optional; an empty URL keeps streaks, locks and caches in process.
type RedisConfig struct {
	URL             string        `mapstructure:"url"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
}

// RabbitMQConfig is optional; an empty URL disables the training handoff.
type RabbitMQConfig struct {
	URL             string `mapstructure:"url"`
	Exchange        string `mapstructure:"exchange"`
	ExchangeType    string `mapstructure:"exchange_type"`
	TrainQueue      string `mapstructure:"train_queue"`
	TrainRoutingKey string `mapstructure:"train_routing_key"`
	DoneQueue       string `mapstructure:"done_queue"`
	DoneRoutingKey  string `mapstructure:"done_routing_key"`
	ConsumerWorkers int    `mapstructure:"consumer_workers" validate:"min=0"`
	Prefetch        int    `mapstructure:"prefetch" validate:"min=0"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret" validate:"required,min=16"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type SchedulerConfig struct {
	Tick            time.Duration `mapstructure:"tick" validate:"required"`
	Workers         int           `mapstructure:"workers" validate:"required,min=1"`
	InflightLease   time.Duration `mapstructure:"inflight_lease"`
	ReclaimInterval time.Duration `mapstructure:"reclaim_interval"`
	ReclaimLimit    int           `mapstructure:"reclaim_limit" validate:"min=0"`
	PendingLimit    int           `mapstructure:"pending_limit" validate:"min=0"`
}

type ProbeConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" validate:"required"`
	BodySnippetLen int           `mapstructure:"body_snippet_len" validate:"min=0"`
	CertTimeout    time.Duration `mapstructure:"cert_timeout"`
}

type NetworkConfig struct {
	TestURLs        string        `mapstructure:"test_urls" validate:"required"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"required"`
	MinDownloadMbps float64       `mapstructure:"min_download_mbps" validate:"min=0"`
	MaxLatencyMs    float64       `mapstructure:"max_latency_ms" validate:"gt=0"`
}

type AlertConfig struct {
	FailureThreshold  int           `mapstructure:"failure_threshold" validate:"min=1"`
	RecoveryThreshold int           `mapstructure:"recovery_threshold" validate:"min=1"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	BurnRateCooldown  time.Duration `mapstructure:"burn_rate_cooldown"`
	DispatchWorkers   int           `mapstructure:"dispatch_workers" validate:"min=1"`
	DispatchBuffer    int           `mapstructure:"dispatch_buffer" validate:"min=1"`
}

type SLOConfig struct {
	TargetPct  float64       `mapstructure:"target_pct" validate:"gt=0,lte=100"`
	WindowDays int           `mapstructure:"window_days" validate:"min=1"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type PredictorConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Threshold        float64       `mapstructure:"threshold" validate:"gt=0,lte=1"`
	TrainingInterval time.Duration `mapstructure:"training_interval"`
	MinRecords       int           `mapstructure:"min_records" validate:"min=0"`
}

type NotifyConfig struct {
	Attempts int              `mapstructure:"attempts" validate:"min=1"`
	Backoff  time.Duration    `mapstructure:"backoff"`
	Timeout  time.Duration    `mapstructure:"timeout"`
	Webhooks []WebhookChannel `mapstructure:"webhooks" validate:"dive"`
	Email    *EmailChannel    `mapstructure:"email"`
}

type WebhookChannel struct {
	Name   string `mapstructure:"name" validate:"required"`
	Kind   string `mapstructure:"kind" validate:"required,oneof=webhook slack discord"`
	URL    string `mapstructure:"url" validate:"required,url"`
	Secret string `mapstructure:"secret"`
}

type EmailChannel struct {
	Host     string   `mapstructure:"host" validate:"required"`
	Port     int      `mapstructure:"port" validate:"required"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from" validate:"required,email"`
	To       []string `mapstructure:"to" validate:"required,min=1,dive,email"`
}

type RetentionConfig struct {
	Days     int    `mapstructure:"days" validate:"min=1"`
	Schedule string `mapstructure:"schedule" validate:"required"`
}
