package config

import "time"

type DBConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns"`
	MinIdleConns    int32         `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	HealthTimeout   time.Duration `mapstructure:"health_timeout"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type RabbitMQConfig struct {
	BrokerLink     string        `mapstructure:"broker_link"`
	ExchangeName   string        `mapstructure:"exchange_name" validate:"required_with=BrokerLink"`
	ExchangeType   string        `mapstructure:"exchange_type"`
	QueueName      string        `mapstructure:"queue_name" validate:"required_with=BrokerLink"`
	RoutingKey     string        `mapstructure:"routing_key" validate:"required_with=BrokerLink"`
	WorkerCount    int           `mapstructure:"worker_count" validate:"min=1"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type AuthConfig struct {
	Secret    string `mapstructure:"secret" validate:"required"`
	ExpiryMin int    `mapstructure:"expiry_min"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SchedulerConfig struct {
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" validate:"required"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// ActionConfig declares one named remediation action. Type selects the
// implementation, the remaining fields parameterize it.
type ActionConfig struct {
	Type    string   `mapstructure:"type" validate:"required,oneof=restart_service run_command"`
	Unit    string   `mapstructure:"unit" validate:"required_if=Type restart_service"`
	Command []string `mapstructure:"command" validate:"required_if=Type run_command"`
}

type RemediationConfig struct {
	BackoffBase   time.Duration           `mapstructure:"backoff_base" validate:"required"`
	BackoffMax    time.Duration           `mapstructure:"backoff_max" validate:"required"`
	ActionTimeout time.Duration           `mapstructure:"action_timeout" validate:"required"`
	Actions       map[string]ActionConfig `mapstructure:"actions" validate:"dive"`
	ByKind        map[string][]string     `mapstructure:"by_kind"`
}

type TargetConfig struct {
	ID               string        `mapstructure:"id" validate:"required"`
	Kind             string        `mapstructure:"kind" validate:"required,oneof=host service port"`
	Address          string        `mapstructure:"address" validate:"required"`
	CheckInterval    time.Duration `mapstructure:"check_interval" validate:"min=1s"`
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"min=1"`
	SuccessThreshold int           `mapstructure:"success_threshold" validate:"min=1"`
	ExpectedStatusLo int           `mapstructure:"expected_status_lo"`
	ExpectedStatusHi int           `mapstructure:"expected_status_hi"`
	Actions          []string      `mapstructure:"actions"`
}

type Config struct {
	Env         string            `mapstructure:"env"`
	ServiceName string            `mapstructure:"service_name"`
	Port        int               `mapstructure:"port" validate:"min=1,max=65535"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	RabbitMQ    RabbitMQConfig    `mapstructure:"rabbitmq"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Remediation RemediationConfig `mapstructure:"remediation"`
	Targets     []TargetConfig    `mapstructure:"targets" validate:"min=1,dive"`
}
