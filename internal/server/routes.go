package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// APIToken guards the /api routes. Empty disables authentication.
	APIToken string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/videos", h.SubmitVideo)
	api.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	api.HandleFunc("POST /api/jobs/{id}/cancel", h.CancelJob)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	// Health stays open; everything under /api requires the token.
	mux.Handle("/api/", BearerAuthMiddleware(cfg.APIToken)(api))

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
