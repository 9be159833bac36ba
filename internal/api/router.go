package api

import (
	"net/http"

	"github.com/gorilla/mux"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gamevisor/internal/handlers"
	"gamevisor/internal/middleware"
	"gamevisor/internal/service"
)

type Router struct {
	*mux.Router
}

// NewRouter builds the HTTP API around sv. gatherer may be nil, in which case
// /metrics is not served.
func NewRouter(sv *service.Supervisor, gatherer prom.Gatherer, logger *zap.SugaredLogger) *Router {
	r := mux.NewRouter()

	health := handlers.NewHealthHandler(sv, logger)
	server := handlers.NewServerHandler(sv, logger)
	metrics := handlers.NewMetricsHandler(sv.Metrics(), logger)
	tasks := handlers.NewTaskHandler(sv.Scheduler(), logger)
	notifications := handlers.NewNotificationHandler(sv.Notifications(), sv.Security(), logger)

	// Health check endpoints (no middleware for faster response)
	r.HandleFunc("/health", health.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ready", health.ReadyCheck).Methods(http.MethodGet)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// API routes sit on the root router with full paths so that a method
	// mismatch still reaches mux's 405 handler.
	wrap := func(h http.HandlerFunc) http.Handler {
		return middleware.Recovery(logger)(middleware.Logging(logger.Named("http"))(h))
	}
	api := func(method, path string, h http.HandlerFunc) {
		r.Handle("/api"+path, wrap(h)).Methods(method)
	}

	api(http.MethodGet, "/status", server.GetStatus)
	api(http.MethodPost, "/server/start", server.Start)
	api(http.MethodPost, "/server/stop", server.Stop)
	api(http.MethodPost, "/server/restart", server.Restart)
	api(http.MethodPost, "/server/command", server.SendCommand)
	api(http.MethodGet, "/logs", server.GetLogs)
	api(http.MethodGet, "/runtimes", server.GetRuntimes)

	api(http.MethodGet, "/metrics/latest", metrics.Latest)
	api(http.MethodGet, "/metrics/history", metrics.History)
	api(http.MethodGet, "/metrics/average", metrics.Average)
	api(http.MethodGet, "/metrics/peak", metrics.Peak)
	api(http.MethodPost, "/metrics/tick", metrics.ReportTick)

	api(http.MethodGet, "/tasks", tasks.List)
	api(http.MethodPost, "/tasks", tasks.Create)
	api(http.MethodGet, "/tasks/{id}", tasks.Get)
	api(http.MethodDelete, "/tasks/{id}", tasks.Delete)

	api(http.MethodGet, "/notifications", notifications.List)
	api(http.MethodDelete, "/notifications", notifications.Clear)
	api(http.MethodPost, "/notifications/{id}/read", notifications.MarkRead)
	api(http.MethodGet, "/security/events", notifications.SecurityEvents)

	return &Router{Router: r}
}
