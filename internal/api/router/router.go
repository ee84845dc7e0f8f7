package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KhichiDushyant/voice-agent/internal/http/handlers"
	httpmiddleware "github.com/KhichiDushyant/voice-agent/internal/http/middleware"
	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	Health       *handlers.HealthHandler
	Calls        *handlers.CallsHandler
	MediaStream  *handlers.MediaStreamHandler
	Directory    *handlers.DirectoryHandler
	Appointments *handlers.AppointmentsHandler

	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Requests per second allowed on the outbound-call endpoint, per client IP.
	CallRateLimit float64
	CallRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
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

	// Public endpoints (webhooks, health checks, the media stream itself)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Check)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Calls != nil {
			public.Post("/calls/incoming", cfg.Calls.Incoming)
		}
		if cfg.MediaStream != nil {
			public.Get("/ws/media-stream", cfg.MediaStream.Handle)
		}
	})

	// Admin endpoints require a bearer token signed with the admin secret.
	r.Group(func(admin chi.Router) {
		if cfg.AdminAuthSecret != "" {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		}

		if cfg.Calls != nil {
			rate := cfg.CallRateLimit
			burst := cfg.CallRateBurst
			if rate <= 0 {
				rate = 1
			}
			if burst <= 0 {
				burst = 3
			}
			admin.With(httpmiddleware.RateLimit(rate, burst)).Post("/calls", cfg.Calls.StartCall)
			admin.Get("/calls", cfg.Calls.List)
			admin.Get("/calls/{callID}", cfg.Calls.Get)
			admin.Get("/calls/{callID}/transcript", cfg.Calls.Transcript)
			admin.Get("/calls/{callID}/live", cfg.Calls.Live)
			admin.Get("/calls/{callID}/audio/{speaker}", cfg.Calls.Audio)
		}

		if cfg.Directory != nil {
			admin.Post("/patients", cfg.Directory.CreatePatient)
			admin.Get("/patients", cfg.Directory.ListPatients)
			admin.Get("/patients/{patientID}", cfg.Directory.GetPatient)
			admin.Get("/patients/{patientID}/assignment", cfg.Directory.GetAssignment)
			admin.Post("/nurses", cfg.Directory.CreateNurse)
			admin.Get("/nurses", cfg.Directory.ListNurses)
			admin.Get("/nurses/{nurseID}", cfg.Directory.GetNurse)
			admin.Put("/assignments", cfg.Directory.UpsertAssignment)
		}

		if cfg.Appointments != nil {
			admin.Get("/nurses/{nurseID}/availability", cfg.Appointments.Availability)
			admin.Post("/appointments", cfg.Appointments.Book)
			admin.Get("/appointments/{appointmentID}", cfg.Appointments.Get)
			admin.Delete("/appointments/{appointmentID}", cfg.Appointments.Cancel)
		}
	})

	return r
}
