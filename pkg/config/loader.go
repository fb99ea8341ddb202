package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix is used when the loader is created without a prefix.
const DefaultEnvPrefix = "TASKDESK"

// DefaultDotEnvFile is read when present and no explicit dotenv path was configured.
const DefaultDotEnvFile = ".env"

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile     string
	envPrefix      string
	dotEnvFile     string
	dotEnvExplicit bool
	flags          *pflag.FlagSet
	settings       map[string]interface{}
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "TASKDESK")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
		dotEnvFile: DefaultDotEnvFile,
	}
}

// WithDotEnv sets the dotenv file merged into the process environment before binding.
// An explicitly configured file must exist.
func (l *ViperLoader) WithDotEnv(path string) *ViperLoader {
	if l == nil || strings.TrimSpace(path) == "" {
		return l
	}
	l.dotEnvFile = path
	l.dotEnvExplicit = true
	return l
}

// WithFlags binds the well-known command line flags (see flagBindings) over env and file values.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	if l == nil {
		return l
	}
	l.flags = flags
	return l
}

// AllSettings returns the effective settings of the last successful Load.
func (l *ViperLoader) AllSettings() map[string]interface{} {
	if l == nil || l.settings == nil {
		return map[string]interface{}{}
	}
	return l.settings
}

// Load loads configuration with precedence: flags > ENV > file > .env > defaults
func (l *ViperLoader) Load() (*Config, error) {
	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	l.bindEnvVars(v)
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	l.settings = v.AllSettings()
	return &cfg, nil
}

// loadDotEnv copies entries of the dotenv file into the process environment without
// overriding variables that are already set.
func (l *ViperLoader) loadDotEnv() error {
	if l.dotEnvFile == "" {
		return nil
	}
	if _, err := os.Stat(l.dotEnvFile); err != nil {
		if !l.dotEnvExplicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("dotenv file %s is not accessible: %w", l.dotEnvFile, err)
	}

	dv := viper.New()
	dv.SetConfigFile(l.dotEnvFile)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read dotenv file %s: %w", l.dotEnvFile, err)
	}
	for _, key := range dv.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, dv.GetString(key)); err != nil {
			return fmt.Errorf("set %s from dotenv: %w", name, err)
		}
	}
	return nil
}

// bindEnvVars explicitly binds environment variables for nested structs. The second name
// of a binding is the unprefixed variable legacy deployment scripts export.
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// Store
	v.BindEnv("store.uri", l.prefixedEnv("STORE_URI"), "MONGO_URI")
	v.BindEnv("store.database", l.prefixedEnv("STORE_DATABASE"), "MONGO_PROJECT_DB", "MONGO_DB")
	v.BindEnv("store.collection", l.prefixedEnv("STORE_COLLECTION"))
	v.BindEnv("store.max_pool_size", l.prefixedEnv("STORE_MAX_POOL_SIZE"))
	v.BindEnv("store.max_retries", l.prefixedEnv("STORE_MAX_RETRIES"))
	v.BindEnv("store.base_delay", l.prefixedEnv("STORE_BASE_DELAY"))
	v.BindEnv("store.retry_policy", l.prefixedEnv("STORE_RETRY_POLICY"))
	v.BindEnv("store.connect_timeout", l.prefixedEnv("STORE_CONNECT_TIMEOUT"))
	v.BindEnv("store.operation_timeout", l.prefixedEnv("STORE_OPERATION_TIMEOUT"))

	// Logging
	v.BindEnv("logging.dir", l.prefixedEnv("LOG_DIR"), "LOG_DIR")
	v.BindEnv("logging.app_name", l.prefixedEnv("APP_NAME"), "APP_NAME")
	v.BindEnv("logging.rotation_in_mins", l.prefixedEnv("LOG_ROTATION_IN_MINS"), "LOG_ROTATION_IN_MINS")
	v.BindEnv("logging.retention_days", l.prefixedEnv("LOG_RETENTION"), "LOG_RETENTION")
	v.BindEnv("logging.console_level", l.prefixedEnv("LOG_CONSOLE_LEVEL"), "LOG_CONSOLE_LEVEL")
	v.BindEnv("logging.format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("logging.error_file_max_mb", l.prefixedEnv("LOG_ERROR_FILE_MAX_MB"))
	v.BindEnv("logging.async.enabled", l.prefixedEnv("LOG_ASYNC_ENABLED"))
	v.BindEnv("logging.async.queue_size", l.prefixedEnv("LOG_ASYNC_QUEUE_SIZE"))
	v.BindEnv("logging.async.worker_count", l.prefixedEnv("LOG_ASYNC_WORKER_COUNT"))
	v.BindEnv("logging.async.drop_when_full", l.prefixedEnv("LOG_ASYNC_DROP_WHEN_FULL"))

	// HTTP
	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"))
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.max_request_size", l.prefixedEnv("HTTP_MAX_REQUEST_SIZE"))
	v.BindEnv("http.compression", l.prefixedEnv("HTTP_COMPRESSION"))
	v.BindEnv("http.compression_min_size", l.prefixedEnv("HTTP_COMPRESSION_MIN_SIZE"))
	v.BindEnv("http.security_headers", l.prefixedEnv("HTTP_SECURITY_HEADERS"))

	// Management
	v.BindEnv("management.enabled", l.prefixedEnv("MGMT_ENABLED"))
	v.BindEnv("management.port", l.prefixedEnv("MGMT_PORT"))

	// Observability
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("METRICS_ENABLED"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))

	// Rate limit
	v.BindEnv("rate_limit.enabled", l.prefixedEnv("RATE_LIMIT_ENABLED"))
	v.BindEnv("rate_limit.requests_per_second", l.prefixedEnv("RATE_LIMIT_RPS"))
	v.BindEnv("rate_limit.burst", l.prefixedEnv("RATE_LIMIT_BURST"))
}

// flagBindings maps command line flag names to configuration keys.
var flagBindings = map[string]string{
	"mongo-uri":   "store.uri",
	"database":    "store.database",
	"collection":  "store.collection",
	"max-retries": "store.max_retries",
	"log-level":   "logging.console_level",
	"log-dir":     "logging.dir",
	"port":        "http.port",
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range flagBindings {
		flag := l.flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	// Store defaults
	v.SetDefault("store.uri", cfg.Store.URI)
	v.SetDefault("store.database", cfg.Store.Database)
	v.SetDefault("store.collection", cfg.Store.Collection)
	v.SetDefault("store.max_pool_size", cfg.Store.MaxPoolSize)
	v.SetDefault("store.max_retries", cfg.Store.MaxRetries)
	v.SetDefault("store.base_delay", cfg.Store.BaseDelay)
	v.SetDefault("store.retry_policy", cfg.Store.RetryPolicy)
	v.SetDefault("store.connect_timeout", cfg.Store.ConnectTimeout)
	v.SetDefault("store.operation_timeout", cfg.Store.OperationTimeout)

	// Logging defaults
	v.SetDefault("logging.dir", cfg.Logging.Dir)
	v.SetDefault("logging.app_name", cfg.Logging.AppName)
	v.SetDefault("logging.rotation_in_mins", cfg.Logging.RotationInMins)
	v.SetDefault("logging.retention_days", cfg.Logging.RetentionDays)
	v.SetDefault("logging.console_level", cfg.Logging.ConsoleLevel)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.error_file_max_mb", cfg.Logging.ErrorFileMaxMB)
	v.SetDefault("logging.async.enabled", cfg.Logging.Async.Enabled)
	v.SetDefault("logging.async.queue_size", cfg.Logging.Async.QueueSize)
	v.SetDefault("logging.async.worker_count", cfg.Logging.Async.WorkerCount)
	v.SetDefault("logging.async.drop_when_full", cfg.Logging.Async.DropWhenFull)

	// HTTP defaults
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.max_request_size", cfg.HTTP.MaxRequestSize)
	v.SetDefault("http.compression", cfg.HTTP.Compression)
	v.SetDefault("http.compression_min_size", cfg.HTTP.CompressionMinSize)
	v.SetDefault("http.security_headers", cfg.HTTP.SecurityHeaders)

	// Management defaults
	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)

	// Observability defaults
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)
}

// Validate validates the configuration and returns detailed errors
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	// Store
	uri := strings.TrimSpace(cfg.Store.URI)
	if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		errs = append(errs, fmt.Errorf("store.uri must use the mongodb:// or mongodb+srv:// scheme, got %q", cfg.Store.URI))
	}
	if strings.TrimSpace(cfg.Store.Database) == "" {
		errs = append(errs, errors.New("store.database is required"))
	}
	if strings.TrimSpace(cfg.Store.Collection) == "" {
		errs = append(errs, errors.New("store.collection is required"))
	}
	if cfg.Store.MaxPoolSize == 0 {
		errs = append(errs, errors.New("store.max_pool_size must be at least 1"))
	}
	if cfg.Store.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("store.max_retries must be at least 1, got %d", cfg.Store.MaxRetries))
	}
	if cfg.Store.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("store.base_delay must be positive, got %s", cfg.Store.BaseDelay))
	}
	policy := strings.ToLower(strings.TrimSpace(cfg.Store.RetryPolicy))
	if !contains([]string{RetryPolicyAll, RetryPolicyTransient}, policy) {
		errs = append(errs, fmt.Errorf("invalid store.retry_policy: %s (must be one of: %s, %s)", cfg.Store.RetryPolicy, RetryPolicyAll, RetryPolicyTransient))
	}
	cfg.Store.RetryPolicy = policy
	if cfg.Store.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("store.connect_timeout must be positive"))
	}
	if cfg.Store.OperationTimeout < 0 {
		errs = append(errs, errors.New("store.operation_timeout must not be negative"))
	}

	// Logging
	validLevels := []string{"debug", "info", "warn", "warning", "error", "critical"}
	if !contains(validLevels, strings.ToLower(strings.TrimSpace(cfg.Logging.ConsoleLevel))) {
		errs = append(errs, fmt.Errorf("invalid logging.console_level: %s (must be one of: %v)", cfg.Logging.ConsoleLevel, validLevels))
	}
	validFormats := []string{"json", "text", "console"}
	if !contains(validFormats, strings.ToLower(strings.TrimSpace(cfg.Logging.Format))) {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (must be one of: %v)", cfg.Logging.Format, validFormats))
	}
	if cfg.Logging.RotationInMins <= 0 {
		errs = append(errs, errors.New("logging.rotation_in_mins must be positive"))
	}
	if cfg.Logging.RetentionDays <= 0 {
		errs = append(errs, errors.New("logging.retention_days must be positive"))
	}
	if strings.TrimSpace(cfg.Logging.AppName) == "" {
		errs = append(errs, errors.New("logging.app_name is required"))
	}

	// HTTP / management
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", cfg.HTTP.Port))
	}
	if cfg.Management.Enabled {
		if cfg.Management.Port < 1 || cfg.Management.Port > 65535 {
			errs = append(errs, fmt.Errorf("management.port must be between 1 and 65535, got %d", cfg.Management.Port))
		}
		if cfg.Management.Port == cfg.HTTP.Port {
			errs = append(errs, errors.New("management.port must differ from http.port"))
		}
	}

	// Observability
	if cfg.Observability.TracingEnabled {
		if strings.TrimSpace(cfg.Observability.TracingEndpoint) == "" {
			errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
		}
		if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
			errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
		}
	}

	// Rate limit
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, errors.New("rate_limit.requests_per_second must be positive when rate limiting is enabled"))
		}
		if cfg.RateLimit.Burst <= 0 {
			errs = append(errs, errors.New("rate_limit.burst must be positive when rate limiting is enabled"))
		}
	}

	return errors.Join(errs...)
}

// contains checks if a string slice contains a specific item
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
