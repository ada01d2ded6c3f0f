package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/upilink/upilink/internal/clients"
	httpmiddleware "github.com/upilink/upilink/internal/http/middleware"
	"github.com/upilink/upilink/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ClientsHandler     *clients.Handler
	ContentDir         string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	r.Use(httpmiddleware.Recoverer(cfg.Logger))

	r.Post("/update", cfg.ClientsHandler.Upsert)
	r.Get("/payment-details", cfg.ClientsHandler.Lookup)
	r.Get("/health", healthCheck)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Read-only static serving of the content directory.
	if cfg.ContentDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.ContentDir)))
		r.Method(http.MethodGet, "/uploads/*", fs)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Route not found")
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"success":true,"message":"service is healthy"}`))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
}
