package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/queue"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
)

type Extractor interface {
	Extract(ctx context.Context, dataURI, source string) (*document.Content, error)
}

type JobStore interface {
	SaveJob(ctx context.Context, job *cache.Job) error
	GetJob(ctx context.Context, id string) (*cache.Job, error)
}

type Enqueuer interface {
	EnqueueExtract(ctx context.Context, payload queue.ExtractPayload) error
}

type ExtractHandler struct {
	docs   Extractor
	jobs   JobStore
	queue  Enqueuer
	logger *slog.Logger
}

// NewExtractHandler serves synchronous extraction; jobs and queue may be nil,
// which disables the asynchronous endpoints.
func NewExtractHandler(docs Extractor, jobs JobStore, q Enqueuer, logger *slog.Logger) *ExtractHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractHandler{docs: docs, jobs: jobs, queue: q, logger: logger}
}

type extractRequest struct {
	Data string `json:"data"`
}

// Extract runs the pipeline inline. ?images=false drops page images from
// the response.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	content, err := h.docs.Extract(r.Context(), req.Data, models.SourceAPI)
	if err != nil {
		writeExtractionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, withoutImages(content, r.URL.Query().Get("images") == "false"))
}

func withoutImages(c *document.Content, drop bool) *document.Content {
	if !drop || len(c.Images) == 0 {
		return c
	}
	out := *c
	out.Images = [][]byte{}
	return &out
}

func (h *ExtractHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil || h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "async extraction not configured")
		return
	}

	var req extractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	file, err := datauri.Decode(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if file.MIMEType != document.MIMETypePDF {
		writeError(w, http.StatusBadRequest, "only application/pdf can be extracted")
		return
	}

	job := &cache.Job{ID: uuid.NewString(), Status: cache.JobPending}
	if err := h.jobs.SaveJob(r.Context(), job); err != nil {
		h.logger.Error("failed to save job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	if err := h.queue.EnqueueExtract(r.Context(), queue.ExtractPayload{JobID: job.ID, DataURI: req.Data}); err != nil {
		h.logger.Error("failed to enqueue extraction", "job_id", job.ID, "error", err)
		job.Status = cache.JobFailed
		job.Error = "enqueue failed"
		h.jobs.SaveJob(context.WithoutCancel(r.Context()), job)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": job.Status})
}

func (h *ExtractHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "async extraction not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id.String())
	if errors.Is(err, cache.ErrMiss) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if job.Content != nil {
		job.Content = withoutImages(job.Content, r.URL.Query().Get("images") == "false")
	}
	writeJSON(w, http.StatusOK, job)
}
