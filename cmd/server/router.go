package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phrazzld/scout-api/internal/api"
	apiMiddleware "github.com/phrazzld/scout-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
// The otelhttp handler wraps the router so request spans exist before the
// trace middleware reads them.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	taskHandler := api.NewTaskHandler(app.taskService, app.scheduler, app.logger)
	presetHandler := api.NewPresetHandler(app.presetService, app.logger)

	// A nil *sql.DB must not become a non-nil Pinger.
	var pinger api.Pinger
	if app.db != nil {
		pinger = app.db
	}
	healthHandler := api.NewHealthHandler(pinger, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/tasks", taskHandler.Routes())
		r.Mount("/presets", presetHandler.Routes())
	})

	r.Get("/health", healthHandler.Health)

	return otelhttp.NewHandler(r, app.config.Telemetry.ServiceName,
		otelhttp.WithTracerProvider(app.telemetry.TracerProvider),
		otelhttp.WithMeterProvider(app.telemetry.MeterProvider),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)
}
