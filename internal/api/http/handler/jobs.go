package handler

import (
	"context"
	"net/http"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/service"
)

// JobsService posts and lists jobs.
type JobsService interface {
	Post(ctx context.Context, posting service.JobPosting) (service.PostedJob, error)
	List(ctx context.Context) ([]model.JobRecord, error)
}

type Jobs struct {
	jobs   JobsService
	logger *logger.Logger
}

func NewJobs(jobs JobsService, logger *logger.Logger) *Jobs {
	return &Jobs{jobs: jobs, logger: logger}
}

// Create handles POST /api/jobs.
func (h *Jobs) Create(w http.ResponseWriter, r *http.Request) {
	var req service.JobPosting
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	job, err := h.jobs.Post(r.Context(), req)
	if err != nil {
		h.logger.Error("Jobs handler: failed to post job",
			"employer_id", req.EmployerID,
			"error", err.Error())
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// List handles GET /api/jobs.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context())
	if err != nil {
		h.logger.Error("Jobs handler: failed to list jobs",
			"error", err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
