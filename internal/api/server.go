// Package api provides the DriftWatch HTTP server: the intake webhook,
// the model serving surface, and the drift query endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/infra/gateway"
	"github.com/driftwatch/driftwatch/internal/infra/monitor"
	"github.com/driftwatch/driftwatch/internal/infra/registry"
)

// Server is the DriftWatch HTTP API server.
type Server struct {
	models         *registry.Manager
	gateway        *gateway.Gateway
	deployer       *Deployer
	monitor        *monitor.Scheduler
	logs           domain.LogStore
	baselines      domain.BaselineStore
	reports        domain.ReportStore
	alerts         domain.AlertStore
	log            *zap.Logger
	metricsEnabled bool
	corsOrigins    []string
}

// NewServer creates a new API server.
func NewServer(models *registry.Manager, gw *gateway.Gateway, deployer *Deployer,
	mon *monitor.Scheduler, logs domain.LogStore, baselines domain.BaselineStore,
	reports domain.ReportStore, alerts domain.AlertStore, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		models:    models,
		gateway:   gw,
		deployer:  deployer,
		monitor:   mon,
		logs:      logs,
		baselines: baselines,
		reports:   reports,
		alerts:    alerts,
		log:       log,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetCORSOrigins restricts cross-origin requests to the given origins.
// Empty, or any entry of "*", allows every origin.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware(s.corsOrigins))

	// Intake webhook for pushed model artifacts
	r.Post("/webhook", s.handleWebhook)

	// Health check for container orchestrators
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/logs", s.handleLogs)

		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.handleListModels)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetModel)
				r.Delete("/", s.handleDeleteModel)
				r.Get("/info", s.handleModelInfo)
				r.Get("/health", s.handleModelHealth)
				r.Post("/predict", s.handlePredict)
				r.Get("/baseline", s.handleBaseline)
				r.Get("/drift", s.handleLatestDrift)
				r.Get("/drift/history", s.handleDriftHistory)
				r.Post("/drift/check", s.handleDriftCheck)
			})
		})

		r.Route("/drift", func(r chi.Router) {
			r.Get("/summary", s.handleDriftSummary)
			r.Post("/check-all", s.handleDriftCheckAll)
			r.Get("/alerts", s.handleAlerts)
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	deployed := 0
	for i := range models {
		if models[i].Deployed() {
			deployed++
		}
	}
	stats := s.gateway.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "running",
		"models":          len(models),
		"deployed_models": deployed,
		"log_queue_depth": stats.QueueDepth,
		"dropped_logs":    stats.DroppedLogs,
	})
}

// ─── Response Helpers ────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrNoBaseline),
		errors.Is(err, domain.ErrReportNotFound),
		errors.Is(err, domain.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrModelExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrCheckInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrModelNotDeployed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for the configured origins. An empty
// list or a "*" entry allows every origin; otherwise only a matching
// request origin is echoed back.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch origin := r.Header.Get("Origin"); {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
