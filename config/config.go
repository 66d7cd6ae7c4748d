package config

import "time"

type Config struct {
	Env         string           `mapstructure:"env" validate:"required,oneof=development staging production test"`
	ServiceName string           `mapstructure:"service_name" validate:"required"`
	Port        int              `mapstructure:"port" validate:"required,min=1,max=65535"`
	Store       *StoreConfig     `mapstructure:"store" validate:"required"`
	DB          *DBConfig        `mapstructure:"db"`
	Redis       *RedisConfig     `mapstructure:"redis"`
	RabbitMQ    *RabbitMQConfig  `mapstructure:"rabbitmq"`
	Auth        *AuthConfig      `mapstructure:"auth" validate:"required"`
	Scheduler   *SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Probe       *ProbeConfig     `mapstructure:"probe" validate:"required"`
	Network     *NetworkConfig   `mapstructure:"network" validate:"required"`
	Alert       *AlertConfig     `mapstructure:"alert" validate:"required"`
	SLO         *SLOConfig       `mapstructure:"slo" validate:"required"`
	Predictor   *PredictorConfig `mapstructure:"predictor" validate:"required"`
	Notify      *NotifyConfig    `mapstructure:"notify" validate:"required"`
	Retention   *RetentionConfig `mapstructure:"retention" validate:"required"`
}

// RequestTimeout bounds every query-surface request.
const RequestTimeout = 15 * time.Second
