package router

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"citypulse/internal/config"
	"citypulse/internal/dashboards"
	"citypulse/internal/domain"
	"citypulse/internal/endpoints"
	"citypulse/internal/metrics"
	"citypulse/internal/util"
)

const (
	APIPrefix   = "/api/v1"
	MetricsPath = "/internal/metrics"
)

// NewRouter wires every handler over store. The returned handler applies
// CORS before routing so preflight requests never reach mux.
func NewRouter(store domain.Store, cfg config.Config, webLogger *util.ServiceLogger) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(endpoints.NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(endpoints.MethodNotAllowedHandler)

	addRoutes(r, store, cfg, webLogger)
	r.Handle(MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(webLogger))
	r.Use(newHTTPMetrics(reg).middleware)

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", util.RequestIDHeader},
		ExposedHeaders:   []string{util.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})(r)
}

func addRoutes(r *mux.Router, store domain.Store, cfg config.Config, webLogger *util.ServiceLogger) {
	engine := metrics.NewEngine(store, metrics.WithMaxLimit(cfg.Query.MaxLimit))
	metricsHandler := &endpoints.Metrics{}
	metricsHandler.Init(engine, webLogger)

	dashboardsHandler := &endpoints.Dashboards{}
	dashboardsHandler.Init(dashboards.NewService(store, nil), webLogger)

	healthHandler := &endpoints.Health{}
	healthHandler.Init(store, webLogger)

	r.HandleFunc("/", healthHandler.RootHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler.HealthHandler).Methods(http.MethodGet)

	api := r.PathPrefix(APIPrefix).Subrouter()

	// Fixed paths are registered before /metrics/{id}.
	api.HandleFunc("/metrics", metricsHandler.ListMetricsHandler).Methods(http.MethodGet)
	api.HandleFunc("/metrics", metricsHandler.RecordMetricHandler).Methods(http.MethodPost)
	api.HandleFunc("/metrics/cities", metricsHandler.ListCitiesHandler).Methods(http.MethodGet)
	api.HandleFunc("/metrics/types", metricsHandler.ListTypesHandler).Methods(http.MethodGet)
	api.HandleFunc("/metrics/aggregate", metricsHandler.AggregateHandler).Methods(http.MethodGet)
	api.HandleFunc("/metrics/latest", metricsHandler.LatestHandler).Methods(http.MethodGet)
	api.HandleFunc("/metrics/{id:[0-9]+}", metricsHandler.GetMetricHandler).Methods(http.MethodGet)

	api.HandleFunc("/users", dashboardsHandler.ListUsersHandler).Methods(http.MethodGet)
	api.HandleFunc("/users", dashboardsHandler.CreateUserHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", dashboardsHandler.GetUserHandler).Methods(http.MethodGet)

	api.HandleFunc("/dashboards", dashboardsHandler.ListDashboardsHandler).Methods(http.MethodGet)
	api.HandleFunc("/dashboards", dashboardsHandler.CreateDashboardHandler).Methods(http.MethodPost)
	api.HandleFunc("/dashboards/{id:[0-9]+}", dashboardsHandler.GetDashboardHandler).Methods(http.MethodGet)
	api.HandleFunc("/dashboards/{id:[0-9]+}", dashboardsHandler.UpdateDashboardHandler).Methods(http.MethodPut)
	api.HandleFunc("/dashboards/{id:[0-9]+}", dashboardsHandler.DeleteDashboardHandler).Methods(http.MethodDelete)
	api.HandleFunc("/dashboards/{id:[0-9]+}/widgets", dashboardsHandler.ListWidgetsHandler).Methods(http.MethodGet)
	api.HandleFunc("/dashboards/{id:[0-9]+}/widgets", dashboardsHandler.CreateWidgetHandler).Methods(http.MethodPost)

	api.HandleFunc("/widgets/{id:[0-9]+}", dashboardsHandler.GetWidgetHandler).Methods(http.MethodGet)
	api.HandleFunc("/widgets/{id:[0-9]+}", dashboardsHandler.UpdateWidgetHandler).Methods(http.MethodPut)
	api.HandleFunc("/widgets/{id:[0-9]+}", dashboardsHandler.DeleteWidgetHandler).Methods(http.MethodDelete)
}

func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Run serves until SIGINT/SIGTERM and then shuts down within
// cfg.HTTP.ShutdownTimeout.
func Run(store domain.Store, cfg config.Config, webLogger *util.ServiceLogger) error {
	server := NewServer(cfg.HTTP, NewRouter(store, cfg, webLogger))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		webLogger.Info("Listening", zap.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-quit:
		webLogger.Info("Shutting down server...", zap.String("signal", sig.String()))
	}

	if err := gracefulShutdown(server, cfg.HTTP.ShutdownTimeout); err != nil {
		webLogger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	webLogger.Info("Server stopped gracefully.")
	return nil
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}
