package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/config"
	"github.com/gosom/vectorprint/internal/kvcache"
	"github.com/gosom/vectorprint/internal/layout"
	"github.com/gosom/vectorprint/internal/mac"
	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/models"
	"github.com/gosom/vectorprint/internal/queue"
)

// Admission validates and admits render requests: acquiring the
// per-document render lock, persisting the PrintJob, and triggering
// fan-out.
type Admission struct {
	jobs  *metadatastore.PrintJobRepository
	cache *kvcache.Client
	queue *queue.Client
	cfg   *config.VectorConfig
	log   *zap.Logger
}

func NewAdmission(jobs *metadatastore.PrintJobRepository, cache *kvcache.Client, q *queue.Client, cfg *config.VectorConfig, log *zap.Logger) *Admission {
	return &Admission{jobs: jobs, cache: cache, queue: q, cfg: cfg, log: log}
}

func (a *Admission) bounds() layout.EnqueueBounds {
	return layout.EnqueueBounds{MaxPages: a.cfg.MaxPages, MaxSeriesEnd: a.cfg.MaxSeriesEnd}
}

// Admit validates metadata, attempts to acquire the render lock for
// its document, and on success persists and enqueues a new PrintJob.
// A busy lock returns the existing holder's job (idempotent
// admission); a throttled cap returns a retryable error.
func (a *Admission) Admit(ctx context.Context, ownerID string, metadata models.VectorMetadata) (*models.PrintJob, error) {
	if err := layout.Validate(metadata, a.bounds()); err != nil {
		return nil, err
	}

	documentID := metadata.EffectiveDocumentID()
	jobID := uuid.NewString()

	macValue, err := mac.Sign(a.cfg.PayloadMACSecret, metadata)
	if err != nil {
		return nil, fmt.Errorf("sign payload mac: %w", err)
	}

	lockHeld, err := a.tryAcquireLock(ctx, documentID, jobID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &models.PrintJob{
		ID:         jobID,
		OwnerID:    ownerID,
		DocumentID: documentID,
		SourceKey:  metadata.SourcePdfKey,
		Metadata:   metadata,
		MAC:        macValue,
		Status:     models.JobPending,
		TotalPages: metadata.Layout.TotalPages,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	job.AppendAudit(models.EventJobCreated, nil)

	if err := a.jobs.Create(ctx, job); err != nil {
		if lockHeld {
			_ = a.cache.ReleaseRenderLock(ctx, documentID, jobID)
		}
		return nil, fmt.Errorf("persist print job: %w", err)
	}

	if err := EnqueueFanOut(ctx, a.queue, a.cache, job, a.cfg.BatchSize, a.cfg.BatchAttempts, a.cfg.LockTTL); err != nil {
		if lockHeld {
			_ = a.cache.ReleaseRenderLock(ctx, documentID, jobID)
		}
		return nil, fmt.Errorf("enqueue fan-out: %w", err)
	}

	job.AppendAudit(models.EventJobEnqueued, map[string]any{"batchSize": a.cfg.BatchSize})
	if err := a.jobs.Update(ctx, job); err != nil {
		a.log.Warn("failed to persist JOB_ENQUEUED audit", zap.String("jobId", job.ID), zap.Error(err))
	}

	return job, nil
}

// tryAcquireLock resolves the three-way lock outcome. On acquired it
// returns lockHeld=true. On busy it returns a *BusyError carrying the
// holder's job id; AdmitOrJoin resolves that into the holder's job for
// idempotent admission.
func (a *Admission) tryAcquireLock(ctx context.Context, documentID, jobID string) (lockHeld bool, err error) {
	res, err := a.cache.AcquireRenderLock(ctx, documentID, jobID, int64(a.cfg.LockTTL.Seconds()), int64(a.cfg.MaxActiveJobs))
	if err != nil {
		if errors.Is(err, kvcache.ErrUnavailable) {
			// KV cache unavailable: admission proceeds without a lock;
			// callers accept weaker exclusivity.
			return false, nil
		}
		return false, fmt.Errorf("acquire render lock: %w", err)
	}

	switch res.Outcome {
	case kvcache.LockAcquired:
		return true, nil
	case kvcache.LockBusy:
		return false, &BusyError{HolderJobID: res.Holder}
	case kvcache.LockThrottled:
		return false, apperrors.New(apperrors.KindLockThrottled, fmt.Sprintf("active job cap reached (%d active)", res.Active))
	default:
		return false, fmt.Errorf("unexpected lock outcome %q", res.Outcome)
	}
}

// BusyError is returned by Admit when a document's render lock is
// already held. Callers should look up HolderJobID to return the
// existing pending job.
type BusyError struct {
	HolderJobID string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("document render lock held by job %s", e.HolderJobID)
}

// AdmitOrJoin is the caller-facing entry point: it resolves a busy
// lock into the holder's existing PrintJob rather than surfacing
// BusyError, so admitting the same document twice returns the same
// job id both times.
func (a *Admission) AdmitOrJoin(ctx context.Context, ownerID string, metadata models.VectorMetadata) (*models.PrintJob, error) {
	job, err := a.Admit(ctx, ownerID, metadata)
	if err == nil {
		return job, nil
	}

	var busy *BusyError
	if errors.As(err, &busy) {
		holder, getErr := a.jobs.Get(ctx, busy.HolderJobID)
		if getErr != nil {
			return nil, fmt.Errorf("load lock holder %s: %w", busy.HolderJobID, getErr)
		}
		return holder, nil
	}

	return nil, err
}
