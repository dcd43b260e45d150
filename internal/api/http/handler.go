package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/uupq/yutto-plus-sub000/internal/domain"
	errpkg "github.com/uupq/yutto-plus-sub000/internal/errors"
	"github.com/uupq/yutto-plus-sub000/internal/validation"
)

// SchedulerI defines the scheduler operations the API exposes.
type SchedulerI interface {
	Submit(spec domain.JobSpec) (uuid.UUID, error)
	Job(id uuid.UUID) (domain.JobSnapshot, error)
	Jobs() []domain.JobSnapshot
	Status() domain.FleetSnapshot
	Pause(id uuid.UUID) error
	Resume(id uuid.UUID) error
	Cancel(id uuid.UUID) error
}

// JobHandler handles HTTP requests for download jobs.
type JobHandler struct {
	scheduler SchedulerI
	validator *validator.Validate
	logger    *slog.Logger
}

// NewJobHandler creates a JobHandler with the provided scheduler and logger.
func NewJobHandler(scheduler SchedulerI, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		scheduler: scheduler,
		validator: validation.Validator(),
		logger:    logger,
	}
}

// SubmitJob handles the HTTP POST /jobs request to submit a new job.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	urls := make([]string, len(req.Sources))
	for i, src := range req.Sources {
		urls[i] = src.URL
	}
	if err := validation.ValidateURLs(urls); err != nil {
		h.logger.Warn("unsafe stream URL rejected", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.scheduler.Submit(req.ToSpec())
	if err != nil {
		if errpkg.KindOf(err) == errpkg.KindScheduling {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to submit job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("job submitted", "job_id", id, "streams", len(req.Sources))

	writeJSON(w, http.StatusCreated, map[string]any{
		"job_id": id,
	})
}

// GetJob handles the HTTP GET /jobs/{jobID} request.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	snap, err := h.scheduler.Job(id)
	if err != nil {
		if errors.Is(err, errpkg.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// ListJobs handles the HTTP GET /jobs request, returning the fleet
// status and a snapshot of every known job.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": h.scheduler.Status(),
		"jobs":   h.scheduler.Jobs(),
	})
}

// PauseJob handles POST /jobs/{jobID}/pause.
func (h *JobHandler) PauseJob(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.scheduler.Pause, "paused")
}

// ResumeJob handles POST /jobs/{jobID}/resume.
func (h *JobHandler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.scheduler.Resume, "resumed")
}

// CancelJob handles POST /jobs/{jobID}/cancel.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.scheduler.Cancel, "canceled")
}

func (h *JobHandler) control(w http.ResponseWriter, r *http.Request, op func(uuid.UUID) error, verb string) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	switch err := op(id); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": verb})
	case errors.Is(err, errpkg.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, errpkg.ErrJobTerminal), errors.Is(err, errpkg.ErrJobNotPaused):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("job control failed", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *JobHandler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
