package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/threadsight/threadsight/internal/models"
	"github.com/threadsight/threadsight/internal/scheduler"
)

// PipelineHandler exposes job submission and status endpoints.
type PipelineHandler struct {
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// NewPipelineHandler creates the job control handler.
func NewPipelineHandler(sched *scheduler.Scheduler, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{scheduler: sched, logger: logger}
}

// Run accepts a job configuration and enqueues a pipeline run.
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var cfg models.JobConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	job, err := h.scheduler.Submit(cfg)
	if err != nil {
		if errors.Is(err, scheduler.ErrQueueFull) {
			writeError(w, h.logger, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, h.logger, http.StatusAccepted, job)
}

// Status returns one job by ID.
func (h *PipelineHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := h.scheduler.Get(id)
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "job not found: "+id)
			return
		}
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, h.logger, http.StatusOK, job)
}

// Jobs lists all known jobs, newest first.
func (h *PipelineHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"jobs": h.scheduler.List(),
	})
}
