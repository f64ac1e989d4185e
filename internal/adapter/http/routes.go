package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds everything the dashboard router mounts.
type RouterConfig struct {
	CORSOrigin string
	Handlers   *Handlers
	WS         http.Handler // live event stream
	MCP        http.Handler // optional streamable MCP transport
	Metrics    http.Handler // optional Prometheus exposition

	// Middleware runs after the built-in stack, e.g. tracing and request metrics.
	Middleware []func(http.Handler) http.Handler
}

// NewRouter builds the chi router for the dashboard server.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(CORS(cfg.CORSOrigin))
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	for _, mw := range cfg.Middleware {
		r.Use(mw)
	}

	r.Get("/health", cfg.Handlers.Health)

	// Long-lived connections must not sit behind the request timeout.
	r.Get("/ws", cfg.WS.ServeHTTP)
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, req, http.StatusOK, map[string]string{"version": cfg.Handlers.Version})
		})
		r.Get("/dashboard", cfg.Handlers.GetDashboard)
		r.Get("/metrics", cfg.Handlers.GetMetrics)
		r.Get("/sessions", cfg.Handlers.ListSessions)
		r.Get("/sessions/{id}", cfg.Handlers.GetSession)
		if cfg.Handlers.History != nil {
			r.Get("/sessions/{id}/history", cfg.Handlers.GetHistory)
		}
	})

	return r
}
