package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Emitter       EmitterConfig       `mapstructure:"emitter"`
	Validation    ValidationConfig    `mapstructure:"validation"`
	Sink          SinkConfig          `mapstructure:"sink"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers   []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol   string         `mapstructure:"security_protocol"`
	SASLMechanism      string         `mapstructure:"sasl_mechanism"`
	SASLUsername       string         `mapstructure:"sasl_username"`
	SASLPassword       string         `mapstructure:"sasl_password"`
	AWSRegion          string         `mapstructure:"aws_region"`
	InsecureSkipVerify bool           `mapstructure:"insecure_skip_verify"`
	Consumer           ConsumerConfig `mapstructure:"consumer"`
	DLQ                DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
	ChannelBufferSize   int      `mapstructure:"channel_buffer_size"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend     string      `mapstructure:"backend"`
	Format      string      `mapstructure:"format"`
	Compression string      `mapstructure:"compression"`
	Version     string      `mapstructure:"version"`
	S3          S3Config    `mapstructure:"s3"`
	Azure       AzureConfig `mapstructure:"azure"`
	GCS         GCSConfig   `mapstructure:"gcs"`
	File        FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	BasePath    string `mapstructure:"base_path"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	Endpoint             string `mapstructure:"endpoint"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// EmitterConfig configures the per-partition buffered emitters.
type EmitterConfig struct {
	// Size is the number of records that triggers a batch.
	Size         int           `mapstructure:"size"`
	SendValue    bool          `mapstructure:"send_value"`
	Clip         bool          `mapstructure:"clip"`
	Sampler      SamplerConfig `mapstructure:"sampler"`
	Mode         string        `mapstructure:"mode"`
	PoolSize     int           `mapstructure:"pool_size"`
	SpareBuffers int           `mapstructure:"spare_buffers"`
	// CloseWait makes shutdown and rebalances wait for in-flight batches.
	CloseWait bool `mapstructure:"close_wait"`
}

// SamplerConfig selects the cooldown after each batch. Kind is "none",
// "fixed" (Seconds) or "uniform" (MinSeconds to MaxSeconds).
type SamplerConfig struct {
	Kind       string  `mapstructure:"kind"`
	Seconds    float64 `mapstructure:"seconds"`
	MinSeconds float64 `mapstructure:"min_seconds"`
	MaxSeconds float64 `mapstructure:"max_seconds"`
}

// ValidationConfig controls which records are accepted.
type ValidationConfig struct {
	MaxRecordBytes  int      `mapstructure:"max_record_bytes"`
	RequireKey      bool     `mapstructure:"require_key"`
	RequiredHeaders []string `mapstructure:"required_headers"`
}

// SinkConfig contains batch persistence settings
type SinkConfig struct {
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
	MaxAttempts         int `mapstructure:"max_attempts"`
	RetryBackoffMS      int `mapstructure:"retry_backoff_ms"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	AddSource bool   `mapstructure:"add_source"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
	StatsPath     string `mapstructure:"stats_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// GracePeriod returns the shutdown grace period.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// WriteTimeout returns the per-attempt storage write timeout.
func (c SinkConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// RetryBackoff returns the base delay between write attempts.
func (c SinkConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// Seconds converts a fractional number of seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Kafka.Consumer.GroupID == "" {
		return fmt.Errorf("kafka consumer group ID is required")
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage backend is required")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}

// Validate validates the emitter configuration.
func (c *EmitterConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("emitter size must be positive, got %d", c.Size)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("emitter pool size must not be negative, got %d", c.PoolSize)
	}
	switch c.Mode {
	case "", "inline", "thread", "process":
	default:
		return fmt.Errorf("unsupported emitter mode: %s", c.Mode)
	}
	return c.Sampler.Validate()
}

// Validate validates the sampler configuration.
func (c *SamplerConfig) Validate() error {
	switch c.Kind {
	case "", "none":
	case "fixed":
		if c.Seconds < 0 {
			return fmt.Errorf("fixed sampler seconds must not be negative")
		}
	case "uniform":
		if c.MinSeconds < 0 || c.MaxSeconds < c.MinSeconds {
			return fmt.Errorf("uniform sampler needs 0 <= min_seconds <= max_seconds")
		}
	default:
		return fmt.Errorf("unsupported sampler kind: %s", c.Kind)
	}
	return nil
}
