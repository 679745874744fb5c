package scheduler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/layout"
	"github.com/gosom/vectorprint/internal/models"
	"github.com/gosom/vectorprint/internal/queue/tasks"
)

// finalKeyFor names the blob under which a job's assembled artifact is
// stored, in the deletable "documents/final/" namespace the reaper is
// permitted to purge (blobstore.deletablePrefixes).
func finalKeyFor(jobID string) string {
	return fmt.Sprintf("documents/final/%s.pdf", jobID)
}

// processMerge gathers every batch's rendered pages, asserts
// completeness, concatenates them in ascending page order, uploads the
// result, and marks the job DONE.
func (h *Handler) processMerge(ctx context.Context, task *asynq.Task) error {
	var payload tasks.MergePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal merge payload: %w", err)
	}

	job, err := h.jobs.Get(ctx, payload.PrintJobID)
	if err != nil {
		return fmt.Errorf("load print job %s: %w", payload.PrintJobID, err)
	}
	if job.Status == models.JobExpired || job.Status == models.JobDone {
		return writeResult(task, tasks.MergeResult{Skipped: true})
	}

	start := time.Now()
	if h.cfg.MergeDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.MergeDeadline)
		defer cancel()
	}

	// bumpProgress persists a merge-phase progress value in the [80,95]
	// band batch.go's per-page progress hands off to; jobs.Update uses a
	// deadline-free copy of ctx so a progress write racing the merge
	// deadline never itself gets canceled mid-write.
	bumpProgress := func(p int) {
		if p <= job.Progress {
			return
		}
		job.Progress = p
		if err := h.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
			h.log.Warn("failed to persist merge progress", zap.String("jobId", job.ID), zap.Int("progress", p), zap.Error(err))
		}
	}

	// failDeadlineExceeded terminalizes the job on a background context:
	// by the time maxMergeMs has elapsed, ctx is already canceled, and a
	// canceled context must never be used to persist the FAILED status
	// or release the render lock.
	failDeadlineExceeded := func() error {
		cause := apperrors.Wrap(apperrors.KindTimeBudgetExceeded, "merge exceeded maxMergeMs deadline", ctx.Err())
		h.deps.fail(context.WithoutCancel(ctx), job, taskID(ctx), cause)
		return fmt.Errorf("%w", asynq.SkipRetry)
	}

	pageMap, err := h.cache.AllBatchPages(ctx, job.ID)
	if err != nil {
		if ctx.Err() != nil {
			return failDeadlineExceeded()
		}
		return fmt.Errorf("collect batch pages: %w", err)
	}
	if len(pageMap) != job.TotalPages {
		cause := apperrors.New(apperrors.KindMissingPages,
			fmt.Sprintf("expected %d rendered pages, found %d", job.TotalPages, len(pageMap)))
		h.deps.fail(ctx, job, taskID(ctx), cause)
		return fmt.Errorf("%w", asynq.SkipRetry)
	}
	bumpProgress(85)

	tmpDir, err := os.MkdirTemp("", "vectorprint-merge-*")
	if err != nil {
		return fmt.Errorf("create merge tmp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pagePaths, err := writeOrderedPages(tmpDir, pageMap)
	if err != nil {
		h.deps.fail(ctx, job, taskID(ctx), err)
		return fmt.Errorf("%w", asynq.SkipRetry)
	}
	bumpProgress(90)

	if ctx.Err() != nil {
		return failDeadlineExceeded()
	}

	// Progress 95 marks serialize start: layout.MergePages calls
	// pdfcpu's api.MergeCreateFile, which does not accept a context and
	// so cannot itself be interrupted by the deadline; the check right
	// after it is what actually enforces maxMergeMs against this step.
	bumpProgress(95)
	outPath := filepath.Join(tmpDir, "final.pdf")
	if err := layout.MergePages(pagePaths, outPath); err != nil {
		h.deps.fail(ctx, job, taskID(ctx), err)
		return fmt.Errorf("%w", asynq.SkipRetry)
	}
	if ctx.Err() != nil {
		return failDeadlineExceeded()
	}

	finalBytes, err := os.ReadFile(outPath)
	if err != nil {
		return fmt.Errorf("read merged pdf: %w", err)
	}

	key := finalKeyFor(job.ID)
	if err := h.blobs.Upload(ctx, key, bytes.NewReader(finalBytes)); err != nil {
		if ctx.Err() != nil {
			return failDeadlineExceeded()
		}
		return fmt.Errorf("upload final pdf: %w", err)
	}

	job.Output = &models.JobOutput{
		Key:       key,
		ExpiresAt: time.Now().UTC().Add(h.cfg.FinalPDFTTL),
	}
	job.Status = models.JobDone
	job.Progress = 100
	job.AppendAudit(models.EventMergeTime, map[string]any{
		"durationMs": time.Since(start).Milliseconds(),
	})
	job.AppendAudit(models.EventJobDone, map[string]any{"key": key})

	if err := h.jobs.Update(ctx, job); err != nil {
		h.log.Error("failed to persist DONE job", zap.String("jobId", job.ID), zap.Error(err))
		return fmt.Errorf("persist done job: %w", err)
	}

	if err := h.cache.ReleaseRenderLock(ctx, job.DocumentID, job.ID); err != nil {
		h.log.Warn("release render lock after merge failed, ignoring", zap.String("jobId", job.ID), zap.Error(err))
	}
	if err := h.cache.ClearBatchFanIn(ctx, job.ID); err != nil {
		h.log.Warn("clear batch fan-in state failed, ignoring", zap.String("jobId", job.ID), zap.Error(err))
	}

	return writeResult(task, tasks.MergeResult{OK: true, Key: key})
}

// writeOrderedPages decodes pageMap's base64 PDF bytes to disk in
// ascending page-index order, satisfying MergePages' ordering contract
// regardless of which batch finished the corresponding page first.
func writeOrderedPages(dir string, pageMap map[string]string) ([]string, error) {
	indices := make([]int, 0, len(pageMap))
	for k := range pageMap {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("page index key %q is not numeric: %w", k, err)
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	paths := make([]string, 0, len(indices))
	for _, idx := range indices {
		raw, err := base64.StdEncoding.DecodeString(pageMap[strconv.Itoa(idx)])
		if err != nil {
			return nil, fmt.Errorf("decode page %d: %w", idx, err)
		}
		p := filepath.Join(dir, fmt.Sprintf("page-%06d.pdf", idx))
		if err := os.WriteFile(p, raw, 0o600); err != nil {
			return nil, fmt.Errorf("write page %d: %w", idx, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
