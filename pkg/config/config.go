package config

import "time"

// Retry policy constants
const (
	// RetryPolicyAll retries every failed store call
	RetryPolicyAll = "all"
	// RetryPolicyTransient retries only network, timeout and server selection failures
	RetryPolicyTransient = "transient"
)

// Config is the root configuration structure for taskdesk
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Store         StoreConfig         `mapstructure:"store"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Management    ManagementConfig    `mapstructure:"management"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StoreConfig configures the document store connection and its retry budget.
type StoreConfig struct {
	URI              string        `mapstructure:"uri"`
	Database         string        `mapstructure:"database"`
	Collection       string        `mapstructure:"collection"`
	MaxPoolSize      uint64        `mapstructure:"max_pool_size"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BaseDelay        time.Duration `mapstructure:"base_delay"`
	RetryPolicy      string        `mapstructure:"retry_policy"` // all, transient
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// LoggingConfig configures console verbosity and the rotating log files.
type LoggingConfig struct {
	Dir            string             `mapstructure:"dir"`
	AppName        string             `mapstructure:"app_name"`
	RotationInMins int                `mapstructure:"rotation_in_mins"`
	RetentionDays  int                `mapstructure:"retention_days"`
	ConsoleLevel   string             `mapstructure:"console_level"`
	Format         string             `mapstructure:"format"` // json, text
	ErrorFileMaxMB int                `mapstructure:"error_file_max_mb"`
	Async          AsyncLoggingConfig `mapstructure:"async"`
}

// RotationInterval returns the main log file rotation period.
func (c LoggingConfig) RotationInterval() time.Duration {
	return time.Duration(c.RotationInMins) * time.Minute
}

// AsyncLoggingConfig configures optional asynchronous logger dispatching.
type AsyncLoggingConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	QueueSize    int  `mapstructure:"queue_size"`
	WorkerCount  int  `mapstructure:"worker_count"`
	DropWhenFull bool `mapstructure:"drop_when_full"`
}

// HTTPConfig configures the public server hosting the task form and API
type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size"`

	// Compression enables gzip and brotli responses; bodies below CompressionMinSize stay plain.
	Compression        bool `mapstructure:"compression"`
	CompressionMinSize int  `mapstructure:"compression_min_size"`
	SecurityHeaders    bool `mapstructure:"security_headers"`
}

// ManagementConfig configures the management server (health, metrics, version)
type ManagementConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
}

// RateLimitConfig configures the per-client rate limit of the public server.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second"`
	Burst             int  `mapstructure:"burst"`
}

// DefaultConfig returns a Config with every default applied
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "taskdesk",
			Environment: "development",
		},
		Store: StoreConfig{
			URI:              "mongodb://localhost:27017",
			Database:         "taskdesk",
			Collection:       "tasks",
			MaxPoolSize:      10,
			MaxRetries:       3,
			BaseDelay:        time.Second,
			RetryPolicy:      RetryPolicyAll,
			ConnectTimeout:   5 * time.Second,
			OperationTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Dir:            "logs",
			AppName:        "MBSR-TASK",
			RotationInMins: 15,
			RetentionDays:  7,
			ConsoleLevel:   "INFO",
			Format:         "text",
			ErrorFileMaxMB: 500,
			Async: AsyncLoggingConfig{
				Enabled:      true,
				QueueSize:    1024,
				WorkerCount:  1,
				DropWhenFull: true,
			},
		},
		HTTP: HTTPConfig{
			Port:               8080,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        120 * time.Second,
			MaxRequestSize:     1 << 20,
			Compression:        true,
			CompressionMinSize: 512,
			SecurityHeaders:    true,
		},
		Management: ManagementConfig{
			Enabled: true,
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:    true,
			TracingEnabled:    false,
			TracingSampleRate: 0.1,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}
