package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the API HTTP router.
//
// This is intentionally a thin adapter: handlers decode and validate request
// shapes, delegate to the booking engine, and render its results. Business
// invariants live in the engine.
func NewRouter(api *Server) http.Handler {
	r := chi.NewRouter()

	// Baseline production-safe middleware (minimal but useful).
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Unversioned health endpoint for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/tours", func(r chi.Router) {
		r.Post("/", api.CreateTour)
		r.Get("/", api.ListTours)
		r.Get("/{tourID}", api.GetTour)
		r.Delete("/{tourID}", api.CancelTour)
	})

	return r
}
