// Package config loads the service configuration from YAML and APP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/bufemit/internal/config/dto"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables. A missing
// file is not an error; defaults and the environment still apply.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only expand values containing ${...}
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	l.v.SetDefault("application.name", "bufemit")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", true)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.consumer.channel_buffer_size", 256)
	l.v.SetDefault("kafka.dlq.enabled", true)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")
	l.v.SetDefault("kafka.dlq.max_retries", 3)

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.format", "parquet")
	l.v.SetDefault("storage.version", "v1")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)

	// Emitter defaults
	l.v.SetDefault("emitter.size", 1000)
	l.v.SetDefault("emitter.send_value", true)
	l.v.SetDefault("emitter.clip", false)
	l.v.SetDefault("emitter.sampler.kind", "none")
	l.v.SetDefault("emitter.mode", "thread")
	l.v.SetDefault("emitter.pool_size", 4)
	l.v.SetDefault("emitter.close_wait", true)

	// Sink defaults
	l.v.SetDefault("sink.write_timeout_seconds", 300)
	l.v.SetDefault("sink.max_attempts", 3)
	l.v.SetDefault("sink.retry_backoff_ms", 500)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")
	l.v.SetDefault("observability.health.stats_path", "/debug/emitters")

	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	// Kafka validation
	if len(config.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required")
	}
	if len(config.Kafka.Consumer.Topics) == 0 {
		return errors.New("kafka.consumer.topics is required")
	}
	if config.Kafka.Consumer.GroupID == "" {
		return errors.New("kafka.consumer.group_id is required")
	}
	switch config.Kafka.Consumer.AutoOffsetReset {
	case "", "earliest", "latest":
	default:
		return fmt.Errorf("unsupported auto_offset_reset: %s", config.Kafka.Consumer.AutoOffsetReset)
	}

	// Storage validation
	var err error
	switch config.Storage.Backend {
	case "s3":
		err = config.Storage.S3.Validate()
	case "azure":
		err = config.Storage.Azure.Validate()
	case "gcs":
		err = config.Storage.GCS.Validate()
	case "file":
		err = config.Storage.File.Validate()
	default:
		err = fmt.Errorf("unsupported storage backend: %s", config.Storage.Backend)
	}
	if err != nil {
		return err
	}

	if config.Storage.Format != "parquet" && config.Storage.Format != "avro" {
		return fmt.Errorf("unsupported storage format: %s", config.Storage.Format)
	}

	if err := config.Emitter.Validate(); err != nil {
		return err
	}
	if config.Sink.MaxAttempts < 0 {
		return fmt.Errorf("sink.max_attempts must not be negative: %d", config.Sink.MaxAttempts)
	}

	// Port validation
	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}
	if config.Observability.Health.Port == config.Observability.Metrics.Port {
		return fmt.Errorf("health and metrics ports must differ: %d", config.Observability.Health.Port)
	}

	return nil
}
