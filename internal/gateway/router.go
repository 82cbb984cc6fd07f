package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the handlers the router mounts.
type RouterConfig struct {
	Stream *Handler
	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler
}

// NewRouter builds the HTTP surface: health, metrics, and the voice stream.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Group(func(public chi.Router) {
		public.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		if cfg.Stream != nil {
			public.Get("/v1/voice/stream", cfg.Stream.Stream)
		}
	})

	return r
}
