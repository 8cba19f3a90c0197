package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// default first
	setDefaults(v)

	// File Config
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Env Config
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read File
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyTargetDefaults(&cfg)

	// Validate
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("service_name", "watchtower")
	v.SetDefault("port", 8080)

	v.SetDefault("auth.expiry_min", 60)

	v.SetDefault("scheduler.probe_timeout", "5s")
	v.SetDefault("scheduler.shutdown_grace", "15s")

	v.SetDefault("remediation.backoff_base", "2s")
	v.SetDefault("remediation.backoff_max", "1m")
	v.SetDefault("remediation.action_timeout", "30s")

	v.SetDefault("rabbitmq.exchange_type", "direct")
	v.SetDefault("rabbitmq.worker_count", 5)
	v.SetDefault("rabbitmq.publish_timeout", "5s")

	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.min_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "1h")
	v.SetDefault("db.conn_max_idle_time", "30m")
	v.SetDefault("db.health_timeout", "5s")
}

// applyTargetDefaults fills per-target fields that have a documented default:
// thresholds of 2 keep a single noisy sample from opening or closing an
// incident, HTTP checks accept any 2xx/3xx unless the target narrows it.
func applyTargetDefaults(cfg *Config) {
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		if t.FailureThreshold == 0 {
			t.FailureThreshold = 2
		}
		if t.SuccessThreshold == 0 {
			t.SuccessThreshold = 2
		}
		if t.ExpectedStatusLo == 0 {
			t.ExpectedStatusLo = 200
		}
		if t.ExpectedStatusHi == 0 {
			t.ExpectedStatusHi = 400
		}
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

	return validateRemediation(cfg)
}

// validateRemediation checks the cross references the struct tags cannot:
// every action name listed per kind or per target must resolve to a declared
// action, and target ids must be unique. Unknown names refuse startup.
func validateRemediation(cfg *Config) error {
	for kind, names := range cfg.Remediation.ByKind {
		for _, name := range names {
			if _, ok := cfg.Remediation.Actions[name]; !ok {
				return fmt.Errorf("config validation failed: remediation.by_kind.%s references unknown action %q", kind, name)
			}
		}
	}

	seen := make(map[string]struct{}, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("config validation failed: duplicate target id %q", t.ID)
		}
		seen[t.ID] = struct{}{}

		for _, name := range t.Actions {
			if _, ok := cfg.Remediation.Actions[name]; !ok {
				return fmt.Errorf("config validation failed: target %q references unknown action %q", t.ID, name)
			}
		}
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
