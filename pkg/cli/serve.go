package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/nimburion/taskdesk/pkg/config"
	"github.com/nimburion/taskdesk/pkg/docstore"
	"github.com/nimburion/taskdesk/pkg/health"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"github.com/nimburion/taskdesk/pkg/observability/metrics"
	"github.com/nimburion/taskdesk/pkg/server"
	"github.com/nimburion/taskdesk/pkg/task"
	"github.com/nimburion/taskdesk/pkg/version"
)

const storeCheckName = "mongodb"

// RunServer connects to the store and runs the public and management servers until ctx is done.
func RunServer(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	client, err := docstore.New(ctx, docstore.ConfigFromStore(cfg.Store), log)
	if err != nil {
		log.Critical("cannot start without the document store", "error", err)
		return err
	}

	tasks := task.NewManager(client, cfg.Store.Collection, log)

	public := server.NewPublicServer(server.PublicOptions{
		HTTP:      cfg.HTTP,
		RateLimit: cfg.RateLimit,
		Tracing:   cfg.Observability.TracingEnabled,
	}, tasks, log)

	var management *server.ManagementServer
	if cfg.Management.Enabled {
		var metricsRegistry *metrics.Registry
		if cfg.Observability.MetricsEnabled {
			metricsRegistry = metrics.NewRegistry()
		}
		management = server.NewManagementServer(
			cfg.Management,
			newHealthRegistry(cfg, client),
			metricsRegistry,
			version.Current(cfg.Service.Name),
			log,
		)
	}

	return server.Run(ctx, server.RunOptions{
		Config:     cfg,
		Logger:     log,
		Public:     public,
		Management: management,
		ShutdownHooks: []server.LifecycleHook{
			{Name: "docstore", Fn: func(context.Context) error { return client.Close() }},
		},
	})
}

func newHealthRegistry(cfg *config.Config, store health.Checkable) *health.Registry {
	registry := health.NewRegistry()
	registry.Register(health.NewStoreChecker(storeCheckName, store,
		health.WithTimeout(cfg.Store.OperationTimeout),
		health.WithMetadata("database", cfg.Store.Database),
	))
	return registry
}

// CheckDependencies pings MongoDB once and prints the result. It fails when the store is
// unreachable or unhealthy.
func CheckDependencies(ctx context.Context, out io.Writer, cfg *config.Config, log logger.Logger) error {
	return docstore.WithClient(ctx, docstore.ConfigFromStore(cfg.Store), log, func(client *docstore.Client) error {
		result := newHealthRegistry(cfg, client).Check(ctx)
		for _, check := range result.Checks {
			fmt.Fprintf(out, "%s: %s (%s)", check.Name, check.Status, check.Duration)
			if check.Error != "" {
				fmt.Fprintf(out, ": %s", check.Error)
			}
			fmt.Fprintln(out)
		}
		if result.Status == health.StatusUnhealthy {
			return fmt.Errorf("dependency check failed: %s", result.Status)
		}
		return nil
	})
}
