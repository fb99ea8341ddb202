package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimburion/taskdesk/pkg/config"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/observability/tracing"
	"github.com/nimburion/taskdesk/pkg/version"
)

// LifecycleHook defines a named shutdown action.
type LifecycleHook struct {
	Name string
	Fn   func(context.Context) error
}

// RunOptions defines the inputs of Run.
type RunOptions struct {
	Config *config.Config
	Logger logger.Logger

	Public *PublicServer
	// Management is optional.
	Management *ManagementServer

	ShutdownHooks       []LifecycleHook
	ShutdownHookTimeout time.Duration
}

// Run initializes tracing, starts the servers and blocks until ctx is cancelled or a server
// fails. Shutdown hooks run in order once the servers have stopped, and also when startup fails.
func Run(ctx context.Context, opts RunOptions) error {
	if opts.Public == nil {
		return errors.New("public server is required")
	}
	if opts.Logger == nil {
		return errors.New("logger is required")
	}
	if opts.Config == nil {
		return errors.New("config is required")
	}

	defer func() {
		if err := runShutdownHooks(opts); err != nil {
			opts.Logger.Error("shutdown hooks completed with errors", "error", err)
		}
	}()

	info := version.Current(opts.Config.Service.Name)
	opts.Logger.Info("application version metadata",
		"service", info.Service,
		"version", info.Version,
		"channel", info.Channel,
		"commit", info.Commit,
		"build_time", info.BuildTime,
	)

	provider, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    info.Service,
		ServiceVersion: info.Version,
		Environment:    normalizeEnvironment(opts.Config.Service.Environment),
		Endpoint:       opts.Config.Observability.TracingEndpoint,
		SampleRate:     opts.Config.Observability.TracingSampleRate,
		Enabled:        opts.Config.Observability.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("initialize tracing provider: %w", err)
	}
	defer shutdownTracerProvider(provider, opts.Logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverCount := 1
	if opts.Management != nil {
		serverCount = 2
	}

	errCh := make(chan error, serverCount)
	go func() { errCh <- opts.Public.Start(runCtx) }()
	if opts.Management != nil {
		go func() { errCh <- opts.Management.Start(runCtx) }()
	}

	var firstErr error
	for i := 0; i < serverCount; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		// One server stopping, for any reason, stops the other.
		cancel()
	}
	return firstErr
}

// RunWithSignals runs the servers until SIGINT or SIGTERM.
func RunWithSignals(opts RunOptions, signals ...os.Signal) error {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()
	return Run(ctx, opts)
}

func shutdownTracerProvider(provider *tracing.TracerProvider, log logger.Logger) {
	if provider == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown tracing provider", "error", err)
	}
}

func normalizeEnvironment(env string) string {
	trimmed := strings.TrimSpace(env)
	if trimmed == "" {
		return version.Unknown
	}
	return trimmed
}

func runShutdownHooks(opts RunOptions) error {
	timeout := opts.ShutdownHookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var errs []error
	for _, hook := range opts.ShutdownHooks {
		if hook.Fn == nil {
			continue
		}
		name := strings.TrimSpace(hook.Name)
		if name == "" {
			name = "unnamed"
		}

		hookCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := hook.Fn(hookCtx)
		cancel()

		if err != nil {
			opts.Logger.Error("shutdown hook failed", "hook", name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %q failed: %w", name, err))
			continue
		}
		opts.Logger.Info("shutdown hook complete", "hook", name)
	}
	return errors.Join(errs...)
}
