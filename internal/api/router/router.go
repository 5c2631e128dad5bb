// Package router assembles the portal's HTTP API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esthetix/clinic-portal/internal/http/handlers"
	httpmiddleware "github.com/esthetix/clinic-portal/internal/http/middleware"
	"github.com/esthetix/clinic-portal/internal/observability/metrics"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger  *logging.Logger
	Metrics *metrics.BookingMetrics

	Booking    *handlers.BookingHandler
	Admin      *handlers.AdminHandler
	Treatments *handlers.TreatmentHandler
	Chat       *handlers.ChatHandler
	Profile    *handlers.ProfileHandler
	Gallery    *handlers.GalleryHandler

	AuthJWTSecret      string
	AdminChecker       httpmiddleware.AdminChecker
	CORSAllowedOrigins []string
	MetricsHandler     http.Handler
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
		r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.Metrics))
	}
	r.Use(httpmiddleware.UserJWT(cfg.AuthJWTSecret))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api", func(api chi.Router) {
		// Public booking surface.
		api.Get("/slots", cfg.Booking.Grid)
		api.Get("/availability", cfg.Booking.Availability)
		api.Get("/treatments", cfg.Treatments.List)
		api.Get("/treatments/{pageName}", cfg.Treatments.Get)
		api.Get("/gallery/image", cfg.Gallery.Image)
		api.With(httpmiddleware.RateLimit(1, 5)).Post("/chat", cfg.Chat.Ask)

		// Signed-in patients.
		api.Group(func(user chi.Router) {
			user.Use(httpmiddleware.RequireUser)
			user.Post("/bookings", cfg.Booking.Create)
			user.Get("/bookings/me", cfg.Booking.Mine)
			user.Get("/profile", cfg.Profile.Get)
			user.Put("/profile", cfg.Profile.Put)
		})

		// Admin dashboard.
		api.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireAdmin(cfg.AdminChecker))
			admin.Get("/appointments", cfg.Admin.ListAppointments)
			admin.Patch("/appointments/{id}/status", cfg.Admin.SetStatus)
			admin.Post("/appointments/status", cfg.Admin.SetStatusBatch)
			admin.Post("/appointments/delete", cfg.Admin.DeleteAppointmentBatch)
			admin.Delete("/appointments/{id}", cfg.Admin.DeleteAppointment)
			admin.Post("/slots/{id}/toggle", cfg.Admin.ToggleSlot)
			admin.Post("/dates/{date}/toggle", cfg.Admin.ToggleDate)
			admin.Get("/schedule", cfg.Admin.GetSchedule)
			admin.Put("/schedule", cfg.Admin.ApplySchedule)
			admin.Put("/treatments", cfg.Treatments.Upsert)
			admin.Post("/gallery/prefetch", cfg.Gallery.Prefetch)
		})
	})

	return r
}
