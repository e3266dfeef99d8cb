// Command server runs the Fluxion workflow automation server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fluxionhq/fluxion/internal/application/importer"
	"github.com/fluxionhq/fluxion/internal/application/trigger"
	"github.com/fluxionhq/fluxion/internal/config"
	"github.com/fluxionhq/fluxion/internal/infrastructure/api/rest"
	"github.com/fluxionhq/fluxion/internal/infrastructure/cache"
	"github.com/fluxionhq/fluxion/internal/infrastructure/locker"
	"github.com/fluxionhq/fluxion/internal/infrastructure/logger"
	"github.com/fluxionhq/fluxion/internal/infrastructure/metrics"
	"github.com/fluxionhq/fluxion/internal/infrastructure/storage"
	"github.com/fluxionhq/fluxion/internal/infrastructure/tracing"
	"github.com/fluxionhq/fluxion/pkg/engine"
	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/handler/builtin"
	"github.com/fluxionhq/fluxion/pkg/models"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Infrastructure.
	db, err := storage.Connect(storage.Config{
		URL:            cfg.Database.URL,
		MaxConnections: cfg.Database.MaxConnections,
		Debug:          cfg.Database.Debug,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}

	redisCache, err := cache.NewRedisCache(cache.Config{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return err
	}
	defer redisCache.Close()

	tracerProvider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	// Repositories.
	workflowRepo := storage.NewWorkflowRepository(db)
	executionRepo := storage.NewExecutionRepository(db)

	// Event bus and metrics.
	bus := events.NewBus(log)
	promRegistry := prometheus.NewRegistry()
	metrics.NewCollector(promRegistry).Observe(bus)

	// AI providers: daily quota counters live in Redis so they are shared
	// across replicas.
	quota := builtin.QuotaFunc(func(ctx context.Context, key string) (int64, error) {
		return redisCache.Increment(ctx, key, 48*time.Hour)
	})
	pool := builtin.NewProviderPool(quota)
	for _, pc := range cfg.AI.Providers {
		pool.Register(builtin.NewOpenAIProvider(builtin.OpenAIConfig{
			Name:         pc.Name,
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.Model,
			CostPer1K:    pc.CostPer1K,
		}), pc.DailyLimit)
	}

	// Task-type routing policy: each task type gets its provider fallback
	// chain; unrouted task types fall back to all providers in
	// registration order.
	for taskType, chain := range cfg.AI.Routes {
		pool.Route(taskType, chain...)
	}

	// Handlers.
	registry := handler.NewRegistry()
	if err := builtin.RegisterBuiltins(registry, builtin.Dependencies{
		Bus:          bus,
		Logger:       log,
		HTTPClient:   &http.Client{Timeout: cfg.Engine.HTTPTimeout},
		Email:        logAdapterEmail{log},
		Database:     storage.NewActionWriter(db),
		Files:        logAdapter{log, "file_operations"},
		Forms:        logAdapter{log, "form_builder"},
		Push:         logAdapter{log, "push_notification"},
		Mailer:       logAdapter{log, "email_automation"},
		ProviderPool: pool,
	}); err != nil {
		return err
	}

	// Engine.
	eng := engine.New(
		workflowRepo,
		executionRepo,
		redisCache,
		locker.NewRedisLocker(redisCache.Client(), locker.WithAcquireTimeout(cfg.Engine.LockTimeout)),
		bus,
		registry,
		engine.WithLogger(log),
		engine.WithTracer(tracerProvider.Tracer()),
		engine.WithCacheTTL(cfg.Engine.CacheTTL),
	)
	defer eng.Shutdown()

	// Boot-time workflow import, then recovery of paused executions.
	imp := importer.New(workflowRepo, log)
	if count, err := imp.ImportDir(ctx, cfg.Workflows.ImportDir); err != nil {
		log.Warn("workflow import failed", "error", err)
	} else if count > 0 {
		log.Info("imported workflows", "count", count)
	}

	if err := eng.Recover(ctx); err != nil {
		return fmt.Errorf("recovery of paused executions failed: %w", err)
	}

	// Trigger layer: register every active workflow's schedule and webhook
	// trigger nodes, then start firing.
	webhooks := trigger.NewWebhookRegistry(eng)
	scheduler := trigger.NewCronScheduler(eng, log)
	triggers := trigger.NewManager(scheduler, webhooks, log)

	workflows, err := listAllWorkflows(ctx, workflowRepo)
	if err != nil {
		return fmt.Errorf("failed to load workflows for trigger registration: %w", err)
	}
	schedules, hooks := triggers.Sync(workflows)
	log.Info("trigger layer ready", "schedules", schedules, "webhooks", hooks)

	scheduler.Start()
	defer scheduler.Stop()

	// HTTP surface.
	router := rest.NewRouter(eng, webhooks, bus, promRegistry, log)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// listAllWorkflows pages through the workflow repository.
func listAllWorkflows(ctx context.Context, repo *storage.WorkflowRepository) ([]*models.Workflow, error) {
	const pageSize = 200

	var all []*models.Workflow
	for offset := 0; ; offset += pageSize {
		page, err := repo.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// logAdapter is the default operation adapter: it records the operation and
// succeeds. Deployments plug real integrations in via builtin.Dependencies.
type logAdapter struct {
	log  *slog.Logger
	kind string
}

func (a logAdapter) Execute(_ context.Context, operation string, config map[string]interface{}) (map[string]interface{}, error) {
	a.log.Info("adapter operation", "kind", a.kind, "operation", operation)
	return map[string]interface{}{"operation": operation, "completed": true}, nil
}

// logAdapterEmail is the default email sender: it logs the message and
// reports it as sent.
type logAdapterEmail struct {
	log *slog.Logger
}

func (a logAdapterEmail) Send(_ context.Context, to, subject, _ string) (bool, error) {
	a.log.Info("email sent", "to", to, "subject", subject)
	return true, nil
}
