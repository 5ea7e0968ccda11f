package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/podology-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/podology-booking/internal/http/middleware"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Bookings           *handlers.BookingsHandler
	Flows              *handlers.FlowsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests per second per client on POST /sync and /flows/actions; 0 disables.
	WriteRateLimit float64
	WriteBurst     int
}

// New creates a new Chi router with all routes configured
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

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.WriteRateLimit <= 0 {
			return h
		}
		return httpmiddleware.RateLimit(cfg.WriteRateLimit, cfg.WriteBurst)(h)
	}

	if cfg.Bookings != nil {
		r.Get("/slots", cfg.Bookings.ListSlots)
		r.Route("/patients", func(p chi.Router) {
			p.Get("/lookup", cfg.Bookings.LookupPatient)
			p.Get("/{patientID}/appointments", cfg.Bookings.PatientHistory)
		})
		r.Method(http.MethodPost, "/sync", limited(cfg.Bookings.Sync))
		r.Get("/dashboard/kpis", cfg.Bookings.DashboardKPIs)
	}
	if cfg.Flows != nil {
		r.Method(http.MethodPost, "/flows/actions", limited(cfg.Flows.HandleAction))
	}

	return r
}
