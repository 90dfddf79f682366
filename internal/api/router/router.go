package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicware/clinicops/internal/doctors"
	httpmiddleware "github.com/clinicware/clinicops/internal/http/middleware"
	"github.com/clinicware/clinicops/internal/identity"
	"github.com/clinicware/clinicops/internal/queue"
	"github.com/clinicware/clinicops/internal/reporting"
	"github.com/clinicware/clinicops/internal/scheduling"
	"github.com/clinicware/clinicops/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AuthSecret          string
	CORSAllowedOrigins  []string
	RateLimitPerSecond  float64
	RateLimitBurst      int
	AppointmentsHandler *scheduling.Handler
	QueueHandler        *queue.Handler
	DoctorsHandler      *doctors.Handler
	StatsHandler        *reporting.StatsHandler
	MetricsHandler      http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints.
	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Authenticated API.
	r.Group(func(api chi.Router) {
		api.Use(identity.Middleware(cfg.AuthSecret))

		api.Route("/api/v1", func(v1 chi.Router) {
			v1.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.AppointmentsHandler.Create)
				r.Get("/", cfg.AppointmentsHandler.List)
				r.Get("/{id}", cfg.AppointmentsHandler.Get)
				r.Put("/{id}", cfg.AppointmentsHandler.Update)
				r.Patch("/{id}", cfg.AppointmentsHandler.Update)
				r.Delete("/{id}", cfg.AppointmentsHandler.Delete)
			})
			v1.Route("/queues", func(r chi.Router) {
				r.Post("/", cfg.QueueHandler.Create)
				r.Get("/", cfg.QueueHandler.List)
				r.Get("/{id}", cfg.QueueHandler.Get)
				r.Put("/{id}", cfg.QueueHandler.Update)
				r.Patch("/{id}", cfg.QueueHandler.Update)
				r.Delete("/{id}", cfg.QueueHandler.Delete)
			})
			v1.Route("/doctors", func(r chi.Router) {
				r.Get("/", cfg.DoctorsHandler.List)
				r.Get("/{id}", cfg.DoctorsHandler.Get)
				r.Put("/{id}/availability", cfg.DoctorsHandler.UpdateAvailability)
			})
		})

		if cfg.StatsHandler != nil {
			api.Get("/admin/stats", cfg.StatsHandler.GetStats)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
