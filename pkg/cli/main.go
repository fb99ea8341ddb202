// Package cli builds the taskdesk command tree: serve, healthcheck, config, version and the
// task subcommands that talk to the document store directly.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/nimburion/taskdesk/pkg/config"
	"github.com/nimburion/taskdesk/pkg/docstore"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/server"
	"github.com/nimburion/taskdesk/pkg/task"
	"github.com/nimburion/taskdesk/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// TasksFactory opens the task service used by the task subcommands. The returned close
// function releases whatever the service holds.
type TasksFactory func(ctx context.Context, cfg *config.Config, log logger.Logger) (server.TaskService, func() error, error)

// Options configures NewRootCommand.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// Optional: overrides how serve runs (tests).
	RunServer func(ctx context.Context, cfg *config.Config, log logger.Logger) error
	// Optional: overrides how task subcommands reach the store (tests).
	OpenTasks TasksFactory
}

// NewRootCommand creates the CLI with serve, healthcheck, config, version and task subcommands.
// serve is also the default action.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "taskdesk"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.RunServer == nil {
		opts.RunServer = RunServer
	}
	if opts.OpenTasks == nil {
		opts.OpenTasks = OpenTasks
	}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath, envFile string
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	flags.StringVar(&envFile, "env-file", "", "dotenv file merged into the environment (default .env when present)")
	registerConfigFlags(flags)

	loadConfig := func(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
		return LoadConfigAndLogger(cfgPath, opts.EnvPrefix, envFile, cmd.Flags())
	}

	// version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout(), version.Current(opts.Name))
		},
	})

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the task web page, JSON API and management server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer closeLogger(log)
			return opts.RunServer(cmd.Context(), cfg, log)
		},
	}
	serveCmd.Flags().Int("port", 0, "public HTTP port")
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = serveCmd.RunE

	// healthcheck command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer closeLogger(log)
			return CheckDependencies(cmd.Context(), cmd.OutOrStdout(), cfg, log)
		},
	})

	rootCmd.AddCommand(newConfigCommand(opts, &cfgPath, &envFile))
	rootCmd.AddCommand(newTaskCommand(opts.OpenTasks, loadConfig))

	return rootCmd
}

func registerConfigFlags(flags *pflag.FlagSet) {
	flags.String("mongo-uri", "", "MongoDB connection string")
	flags.String("database", "", "database name")
	flags.String("collection", "", "task collection name")
	flags.Int("max-retries", 0, "retry budget per store operation")
	flags.String("log-level", "", "console log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	flags.String("log-dir", "", "log directory")
}

func newConfigCommand(opts Options, cfgPath, envFile *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewViperLoader(*cfgPath, opts.EnvPrefix).WithDotEnv(*envFile).WithFlags(cmd.Flags())
			if _, err := loader.Load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewViperLoader(*cfgPath, opts.EnvPrefix).WithDotEnv(*envFile).WithFlags(cmd.Flags())
			if _, err := loader.Load(); err != nil {
				return err
			}
			settings := loader.AllSettings()
			if !showSecrets {
				settings = redactSettings(settings)
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("format settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show credentials embedded in the MongoDB URI")
	configCmd.AddCommand(showCmd)

	return configCmd
}

// LoadConfigAndLogger loads configuration with precedence flags > env > file > dotenv > defaults
// and builds the process logger from its logging section.
func LoadConfigAndLogger(cfgPath, envPrefix, envFile string, flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	loader := config.NewViperLoader(cfgPath, envPrefix).WithDotEnv(envFile).WithFlags(flags)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logConfigIfDebug(log, cfg)
	return cfg, log, nil
}

// NewLogger builds the zap logger described by cfg, wrapped for asynchronous dispatch when enabled.
func NewLogger(cfg config.LoggingConfig) (logger.Logger, error) {
	level, err := logger.ParseLogLevel(cfg.ConsoleLevel)
	if err != nil {
		return nil, err
	}
	format := logger.TextFormat
	if strings.EqualFold(strings.TrimSpace(cfg.Format), string(logger.JSONFormat)) {
		format = logger.JSONFormat
	}

	base, err := logger.NewZapLogger(logger.Config{
		Level:            level,
		Format:           format,
		Dir:              cfg.Dir,
		FileName:         cfg.AppName,
		RotationInterval: cfg.RotationInterval(),
		RetentionDays:    cfg.RetentionDays,
		ErrorFileMaxMB:   cfg.ErrorFileMaxMB,
	})
	if err != nil {
		return nil, err
	}

	return logger.WrapAsync(base, logger.AsyncConfig{
		Enabled:      cfg.Async.Enabled,
		QueueSize:    cfg.Async.QueueSize,
		WorkerCount:  cfg.Async.WorkerCount,
		DropWhenFull: cfg.Async.DropWhenFull,
	}), nil
}

func closeLogger(log logger.Logger) {
	if closer, ok := log.(io.Closer); ok {
		_ = closer.Close()
	}
}

func logConfigIfDebug(log logger.Logger, cfg *config.Config) {
	if log == nil || cfg == nil {
		return
	}
	level, err := logger.ParseLogLevel(cfg.Logging.ConsoleLevel)
	if err != nil || level != logger.DebugLevel {
		return
	}
	log.Debug("effective configuration",
		"service", cfg.Service.Name,
		"store_uri", redactURI(cfg.Store.URI),
		"database", cfg.Store.Database,
		"collection", cfg.Store.Collection,
		"max_retries", cfg.Store.MaxRetries,
		"base_delay", cfg.Store.BaseDelay.String(),
		"retry_policy", cfg.Store.RetryPolicy,
	)
}

func printVersion(w io.Writer, info version.Info) {
	fmt.Fprintf(w, "Service:    %s\n", info.Service)
	fmt.Fprintf(w, "Version:    %s\n", info.Version)
	fmt.Fprintf(w, "Channel:    %s\n", info.Channel)
	fmt.Fprintf(w, "Commit:     %s\n", info.Commit)
	fmt.Fprintf(w, "Build Time: %s\n", info.BuildTime)
}

// redactSettings masks the password of the store URI.
func redactSettings(settings map[string]interface{}) map[string]interface{} {
	store, ok := settings["store"].(map[string]interface{})
	if !ok {
		return settings
	}
	uri, ok := store["uri"].(string)
	if !ok {
		return settings
	}

	out := make(map[string]interface{}, len(settings))
	for key, value := range settings {
		out[key] = value
	}
	redacted := make(map[string]interface{}, len(store))
	for key, value := range store {
		redacted[key] = value
	}
	redacted["uri"] = redactURI(uri)
	out["store"] = redacted
	return out
}

func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}

// OpenTasks connects to MongoDB and returns a task manager over the configured collection.
func OpenTasks(ctx context.Context, cfg *config.Config, log logger.Logger) (server.TaskService, func() error, error) {
	client, err := docstore.New(ctx, docstore.ConfigFromStore(cfg.Store), log)
	if err != nil {
		return nil, nil, err
	}
	return task.NewManager(client, cfg.Store.Collection, log), client.Close, nil
}

// ExitCode maps an error returned by the command tree to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, docstore.ErrValidation), errors.Is(err, task.ErrNotFound):
		return 2
	default:
		return 1
	}
}
