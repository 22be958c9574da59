package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-scheduling/internal/appointments"
	httpmiddleware "github.com/wolfman30/clinic-scheduling/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Appointments       *appointments.Handler
	StaffAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Applied to the appointments API when set.
	RateLimiter *httpmiddleware.RateLimiter

	// Checked by /ready when set.
	Readiness map[string]Pinger
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", health)
	r.Get("/ready", readiness(cfg.Readiness))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Appointments == nil {
		return r
	}
	h := cfg.Appointments

	r.Group(func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware)
		}

		api.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.Schedule)
			r.Get("/", h.List)
			r.Get("/search", h.Search)
			r.Get("/today", h.Today)
			r.Get("/upcoming", h.Upcoming)
			r.Get("/summary", h.Summary)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Group(func(staff chi.Router) {
					staff.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))
					staff.Patch("/", h.Reschedule)
					staff.Post("/complete", h.Complete)
					staff.Post("/cancel", h.Cancel)
				})
			})
		})
		api.Get("/doctors/{doctorID}/slots", h.DaySlots)
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readiness(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		status := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		body := map[string]any{"status": "ok", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		writeStatus(w, status, body)
	}
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
