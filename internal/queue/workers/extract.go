package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/queue"
)

type Extractor interface {
	Extract(ctx context.Context, dataURI, source string) (*document.Content, error)
}

type JobStore interface {
	SaveJob(ctx context.Context, job *cache.Job) error
	GetJob(ctx context.Context, id string) (*cache.Job, error)
}

type ExtractWorker struct {
	extractor Extractor
	jobs      JobStore
	logger    *slog.Logger
}

func NewExtractWorker(extractor Extractor, jobs JobStore, logger *slog.Logger) *ExtractWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractWorker{extractor: extractor, jobs: jobs, logger: logger}
}

func (w *ExtractWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ExtractPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("payload missing job id: %w", asynq.SkipRetry)
	}
	logger := w.logger.With("job_id", payload.JobID)

	job, err := w.jobs.GetJob(ctx, payload.JobID)
	if errors.Is(err, cache.ErrMiss) {
		job = &cache.Job{ID: payload.JobID}
	} else if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	job.Status = cache.JobProcessing
	job.Attempts++
	if err := w.jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	logger.Info("extracting document", "attempt", job.Attempts)
	content, err := w.extractor.Extract(ctx, payload.DataURI, models.SourceJob)
	if err != nil {
		return w.fail(ctx, logger, job, err)
	}

	job.Status = cache.JobReady
	job.Content = content
	job.Error, job.ErrorKind = "", ""
	if err := w.jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	logger.Info("document extracted", "pages", content.Metadata.PageCount, "ocr_used", content.Metadata.OCRUsed)
	return nil
}

// fail records the error on the job. Input the extractor rejected outright is
// not retried; for other errors the job stays pending until the last attempt.
func (w *ExtractWorker) fail(ctx context.Context, logger *slog.Logger, job *cache.Job, extractErr error) error {
	final := !retryable(extractErr) || lastAttempt(ctx)

	job.Error = extractErr.Error()
	job.ErrorKind = document.KindName(extractErr)
	job.Status = cache.JobPending
	if final {
		job.Status = cache.JobFailed
	}
	if err := w.jobs.SaveJob(ctx, job); err != nil {
		logger.Error("failed to save job state", "error", err)
	}

	logger.Warn("extraction failed", "error", extractErr, "kind", job.ErrorKind, "final", final)
	if !retryable(extractErr) {
		return fmt.Errorf("extract: %w: %w", extractErr, asynq.SkipRetry)
	}
	return fmt.Errorf("extract: %w", extractErr)
}

func retryable(err error) bool {
	switch document.Kind(err) {
	case document.ErrMalformedInput, document.ErrDocumentParse:
		return false
	default:
		return true
	}
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	limit, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= limit
}
