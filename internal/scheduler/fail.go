package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/models"
)

// deps bundles the collaborators every scheduler task handler needs.
// Kept as a plain struct (not an interface) since every implementation
// in this service is the concrete adapter; tests substitute real
// adapters against testcontainers rather than mocks.
type deps struct {
	jobs  *metadatastore.PrintJobRepository
	cache cacheReleaser
	log   *zap.Logger
}

// cacheReleaser is the narrow slice of kvcache.Client the failure path
// needs, named so fail.go doesn't import kvcache directly.
type cacheReleaser interface {
	ReleaseRenderLock(ctx context.Context, documentID, jobID string) error
}

// fail marks job FAILED with cause, releases the render lock
// unconditionally regardless of which phase failed, and persists.
// Lock-release failures are logged and swallowed.
func (d *deps) fail(ctx context.Context, job *models.PrintJob, queueTaskID string, cause error) {
	job.Status = models.JobFailed
	job.Error = &models.JobError{
		Message: cause.Error(),
		Stack:   fmt.Sprintf("%+v", cause),
	}
	job.AppendAudit(models.EventJobFailed, map[string]any{
		"queueJobId": queueTaskID,
		"errorKind":  string(apperrors.KindOf(cause)),
	})

	if err := d.jobs.Update(ctx, job); err != nil {
		d.log.Error("failed to persist FAILED job", zap.String("jobId", job.ID), zap.Error(err))
	}

	if err := d.cache.ReleaseRenderLock(ctx, job.DocumentID, job.ID); err != nil {
		d.log.Warn("release render lock after failure failed, ignoring", zap.String("jobId", job.ID), zap.Error(err))
	}
}
