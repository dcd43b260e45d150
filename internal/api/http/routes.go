package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP router for the download service.
func NewRouter(handler *JobHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", handler.SubmitJob)
		r.Get("/", handler.ListJobs)
		r.Get("/{jobID}", handler.GetJob)
		r.Post("/{jobID}/pause", handler.PauseJob)
		r.Post("/{jobID}/resume", handler.ResumeJob)
		r.Post("/{jobID}/cancel", handler.CancelJob)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
