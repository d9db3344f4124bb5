package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scout-api/internal/config"
	"github.com/phrazzld/scout-api/internal/events"
	"github.com/phrazzld/scout-api/internal/platform/memory"
	"github.com/phrazzld/scout-api/internal/platform/postgres"
	"github.com/phrazzld/scout-api/internal/platform/scraper"
	"github.com/phrazzld/scout-api/internal/platform/telemetry"
	"github.com/phrazzld/scout-api/internal/service"
	"github.com/phrazzld/scout-api/internal/store"
	"github.com/phrazzld/scout-api/internal/task"
)

const tracerName = "scout/server"

// application holds all dependencies of the server.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	db        *sql.DB
	telemetry *telemetry.Providers

	taskStore   store.TaskStore
	presetStore store.PresetStore

	scraper       *scraper.Client
	scheduler     *task.Scheduler
	eventEmitter  *events.InMemoryEventEmitter
	taskService   service.TaskService
	presetService service.PresetService
}

// storeKind names the store selected by cfg.
func storeKind(cfg *config.Config) string {
	if cfg.Database.URL == "" {
		return "memory"
	}
	return "postgres"
}

// newApplication wires every component in dependency order. On failure the
// components built so far are released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	app.telemetry = providers

	if err := app.setupStores(ctx); err != nil {
		_ = app.cleanup(ctx)
		return nil, err
	}

	app.scraper, err = scraper.NewClient(cfg.Scraper, logger)
	if err != nil {
		_ = app.cleanup(ctx)
		return nil, fmt.Errorf("failed to create scraper client: %w", err)
	}

	metrics, err := task.NewMetrics(providers.MeterProvider)
	if err != nil {
		_ = app.cleanup(ctx)
		return nil, fmt.Errorf("failed to create task metrics: %w", err)
	}

	app.scheduler = task.NewScheduler(
		app.taskStore,
		app.scraper,
		app.scraper,
		task.ConfigFromPolling(cfg.Polling),
		logger,
		task.WithTracer(providers.Tracer(tracerName)),
		task.WithMetrics(metrics),
	)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(app.scheduler)

	app.taskService, err = service.NewTaskService(app.taskStore, app.presetStore, app.scraper, app.eventEmitter, logger)
	if err != nil {
		_ = app.cleanup(ctx)
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.presetService, err = service.NewPresetService(app.presetStore, logger)
	if err != nil {
		_ = app.cleanup(ctx)
		return nil, fmt.Errorf("failed to create preset service: %w", err)
	}

	return app, nil
}

// setupStores opens Postgres and applies migrations when a database URL is
// configured, and falls back to the in-memory stores otherwise.
func (app *application) setupStores(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.logger.Warn("database url not configured, tasks will not survive a restart")
		app.taskStore = memory.NewTaskStore()
		app.presetStore = memory.NewPresetStore()
		return nil
	}

	db, err := postgres.Open(ctx, app.config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	app.db = db
	app.logger.Info("database connection established")

	if err := postgres.Migrate(ctx, db, app.logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	app.taskStore = postgres.NewPostgresTaskStore(db, app.logger)
	app.presetStore = postgres.NewPostgresPresetStore(db, app.logger)
	return nil
}

// cleanup releases the database and flushes telemetry.
func (app *application) cleanup(ctx context.Context) error {
	var errs []error

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}

	if app.telemetry != nil {
		if err := app.telemetry.Shutdown(ctx); err != nil {
			app.logger.Error("failed to shut down telemetry", "error", err)
			errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
		}
	}

	return errors.Join(errs...)
}
