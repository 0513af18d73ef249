package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/trunov/mediaconv/internal/transport/handler"
)

// NewRouter mounts the API. metrics may be nil.
func NewRouter(h *handler.Handler, rps float64, burst int, metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/hc", h.HealthCheck)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(handler.RateLimit(rps, burst))
		r.Use(h.RequireAuth)
		r.Post("/convert", h.Convert)
		r.Get("/convert", h.Convert)
		r.Get("/results/{name}", h.FetchResult)
	})

	return r
}
