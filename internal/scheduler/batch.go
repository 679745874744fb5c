package scheduler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/blobstore"
	"github.com/gosom/vectorprint/internal/config"
	"github.com/gosom/vectorprint/internal/kvcache"
	"github.com/gosom/vectorprint/internal/layout"
	"github.com/gosom/vectorprint/internal/mac"
	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/models"
	"github.com/gosom/vectorprint/internal/queue"
	"github.com/gosom/vectorprint/internal/queue/tasks"
)

// auditEveryNPages rate-limits PAGE_RENDERED audit writes within a
// batch; the merge job's own progress events are similarly throttled
// in merge.go.
const auditEveryNPages = 5

// processBatch renders one contiguous slice of pages for a job.
func (h *Handler) processBatch(ctx context.Context, task *asynq.Task) error {
	var payload tasks.BatchPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal batch payload: %w", err)
	}

	job, err := h.jobs.Get(ctx, payload.PrintJobID)
	if err != nil {
		return fmt.Errorf("load print job %s: %w", payload.PrintJobID, err)
	}

	// Step 1: skip without side effects if the job has already expired.
	if job.Status == models.JobExpired {
		return writeResult(task, tasks.BatchResult{Skipped: true})
	}

	// Step 2: validate shape and verify the payload-integrity MAC.
	ok, err := mac.Verify(h.cfg.PayloadMACSecret, job.Metadata, job.MAC)
	if err != nil {
		return fmt.Errorf("verify mac: %w", err)
	}
	if !ok {
		cause := apperrors.New(apperrors.KindMACMismatch, "metadata MAC does not match stored job")
		h.deps.fail(ctx, job, taskID(ctx), cause)
		return fmt.Errorf("%w", asynq.SkipRetry)
	}

	if err := layout.Validate(job.Metadata, layout.EnqueueBounds{MaxPages: h.cfg.MaxPages, MaxSeriesEnd: h.cfg.MaxSeriesEnd}); err != nil {
		h.deps.fail(ctx, job, taskID(ctx), err)
		return fmt.Errorf("%w", asynq.SkipRetry)
	}

	if job.Status == models.JobPending {
		job.Status = models.JobRunning
	}

	sourceBytes, err := h.resolveSourceBytes(ctx, job.Metadata)
	if err != nil {
		if isFinalAttempt(ctx) {
			h.deps.fail(ctx, job, taskID(ctx), err)
		}
		return err
	}

	rendered := make([]tasks.RenderedPage, 0, payload.EndPage-payload.StartPage)
	for page := payload.StartPage; page < payload.EndPage; page++ {
		pdfBytes, err := h.engine.RenderPage(ctx, job.Metadata, sourceBytes, page)
		if err != nil {
			// Layout-engine errors surface verbatim and terminalize the
			// job immediately: a bad crop ratio or forbidden SVG
			// construct will never succeed on retry.
			h.deps.fail(ctx, job, taskID(ctx), err)
			return fmt.Errorf("%w", asynq.SkipRetry)
		}

		rendered = append(rendered, tasks.RenderedPage{
			PageIndex: page,
			PDFBase64: base64.StdEncoding.EncodeToString(pdfBytes),
		})

		renderedSoFar := page + 1
		progress := int(math.Floor(float64(renderedSoFar) / float64(job.TotalPages) * 80))
		if progress > job.Progress {
			job.Progress = progress
		}

		if (page+1)%auditEveryNPages == 0 || page == payload.EndPage-1 {
			job.AppendAudit(models.EventPageRendered, map[string]any{
				"batchIndex": payload.BatchIndex,
				"pageIndex":  page,
			})
			if err := h.jobs.Update(ctx, job); err != nil {
				h.log.Warn("failed to persist batch progress", zap.String("jobId", job.ID), zap.Error(err))
			}
		}
	}

	pageFields := make(map[string]string, len(rendered))
	for _, p := range rendered {
		pageFields[fmt.Sprintf("%d", p.PageIndex)] = p.PDFBase64
	}
	if err := h.cache.StoreBatchPages(ctx, job.ID, pageFields); err != nil {
		return fmt.Errorf("store batch pages: %w", err)
	}

	remaining, err := h.cache.DecrementBatchRemaining(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("decrement batch remaining: %w", err)
	}
	if remaining <= 0 {
		if err := enqueueMerge(ctx, h.queueClient, job, h.cfg.MergeDeadline); err != nil {
			return fmt.Errorf("enqueue merge after last batch: %w", err)
		}
	}

	return writeResult(task, tasks.BatchResult{Pages: rendered})
}

// writeResult marshals v and writes it as task's asynq result, the
// shape both the batch and merge handlers report {skipped:true} or
// their real payload through per the queue's result contract.
func writeResult(task *asynq.Task, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}
	if rw := task.ResultWriter; rw != nil {
		_, _ = rw.Write(body)
	}
	return nil
}

// resolveSourceBytes downloads the source artifact, resolving a
// "document:{id}" reference through the metadata store before falling
// back to a plain blob key.
func (h *Handler) resolveSourceBytes(ctx context.Context, metadata models.VectorMetadata) ([]byte, error) {
	key := metadata.SourcePdfKey
	const docPrefix = "document:"
	if strings.HasPrefix(key, docPrefix) {
		docID := strings.TrimPrefix(key, docPrefix)
		doc, err := h.docs.Get(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("resolve document %s: %w", docID, err)
		}
		key = doc.BlobKey
	}

	b, err := h.blobs.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download source %s: %w", key, err)
	}
	return b, nil
}

// Handler dispatches asynq tasks for both halves of the fan-out/fan-in
// pipeline through a single ProcessTask entry point keyed by task type.
type Handler struct {
	deps
	docs        *metadatastore.DocumentRepository
	blobs       *blobstore.Store
	queueClient *queue.Client
	engine      *layout.Engine
	cfg         *config.VectorConfig
}

func NewHandler(
	jobs *metadatastore.PrintJobRepository,
	docs *metadatastore.DocumentRepository,
	cache *kvcache.Client,
	blobs *blobstore.Store,
	queueClient *queue.Client,
	engine *layout.Engine,
	cfg *config.VectorConfig,
	log *zap.Logger,
) *Handler {
	return &Handler{
		deps:        deps{jobs: jobs, cache: cache, log: log},
		docs:        docs,
		blobs:       blobs,
		queueClient: queueClient,
		engine:      engine,
		cfg:         cfg,
	}
}

// ProcessTask routes a task by its registered type.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	switch task.Type {
	case tasks.TypeRenderBatch:
		return h.processBatch(ctx, task)
	case tasks.TypeRenderMerge:
		return h.processMerge(ctx, task)
	case tasks.TypeHealthCheck:
		return nil
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}
