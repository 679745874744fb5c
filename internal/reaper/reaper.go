// Package reaper implements the periodic job sweep: four independent,
// idempotent queries against the metadata store that expire stale or
// finished PrintJobs and reclaim their output blobs.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gosom/vectorprint/internal/blobstore"
	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/models"
)

// Reaper sweeps the print_jobs table for expired output, stale running
// jobs, and old failures.
type Reaper struct {
	jobs        *metadatastore.PrintJobRepository
	blobs       *blobstore.Store
	staleAfter  time.Duration
	failedAfter time.Duration
	log         *zap.Logger
}

func New(jobs *metadatastore.PrintJobRepository, blobs *blobstore.Store, staleAfter, failedAfter time.Duration, log *zap.Logger) *Reaper {
	return &Reaper{jobs: jobs, blobs: blobs, staleAfter: staleAfter, failedAfter: failedAfter, log: log}
}

// Run ticks Sweep every interval until ctx is canceled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.log.Error("reaper sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs the four queries concurrently. Their predicates are
// mutually exclusive by status/output combination, so none of the
// four ever touches a record another is updating, and each record's
// update is independent and idempotent: running the sweep twice
// back-to-back leaves the same terminal state, since every query only
// selects records that still satisfy its predicate.
func (r *Reaper) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.expireRunningWithOutput(ctx, now) })
	g.Go(func() error { return r.expireStaleRunning(ctx, now) })
	g.Go(func() error { return r.expireDoneWithOutput(ctx, now) })
	g.Go(func() error { return r.archiveOldFailed(ctx, now) })
	return g.Wait()
}

// expireRunningWithOutput is query 1: RUNNING jobs whose materialized
// output (from a pull-to-device fetch mid-render) has passed its
// expiry get the blob deleted and the job EXPIRED.
func (r *Reaper) expireRunningWithOutput(ctx context.Context, now time.Time) error {
	jobs, err := r.jobs.ExpiredOutputCandidates(ctx, []models.JobStatus{models.JobRunning}, now)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		r.deleteOutputAndExpire(ctx, job, models.EventRunningJobExpiredOutputDeleted)
	}
	return nil
}

// expireStaleRunning is query 2: RUNNING jobs with no output that
// haven't been updated within staleAfter are presumed abandoned
// (worker crash, lost queue message) and moved straight to EXPIRED.
func (r *Reaper) expireStaleRunning(ctx context.Context, now time.Time) error {
	jobs, err := r.jobs.StaleRunningCandidates(ctx, now.Add(-r.staleAfter))
	if err != nil {
		return err
	}
	for _, job := range jobs {
		job.Status = models.JobExpired
		job.AppendAudit("STALE_RUNNING_JOB_EXPIRED", map[string]any{"staleAfter": r.staleAfter.String()})
		if err := r.jobs.Update(ctx, job); err != nil {
			r.log.Warn("failed to expire stale running job", zap.String("jobId", job.ID), zap.Error(err))
		}
	}
	return nil
}

// expireDoneWithOutput is query 3: DONE jobs past their output's
// expiry get the blob deleted and the job EXPIRED.
func (r *Reaper) expireDoneWithOutput(ctx context.Context, now time.Time) error {
	jobs, err := r.jobs.ExpiredOutputCandidates(ctx, []models.JobStatus{models.JobDone}, now)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		r.deleteOutputAndExpire(ctx, job, models.EventDoneJobExpiredOutputDeleted)
	}
	return nil
}

// archiveOldFailed is query 4: FAILED jobs older than failedAfter
// (default 7 days) are archived to EXPIRED. No blob action: a FAILED
// job never has an output.
func (r *Reaper) archiveOldFailed(ctx context.Context, now time.Time) error {
	jobs, err := r.jobs.StaleFailedCandidates(ctx, now.Add(-r.failedAfter))
	if err != nil {
		return err
	}
	for _, job := range jobs {
		job.Status = models.JobExpired
		job.AppendAudit(models.EventFailedJobArchived, nil)
		if err := r.jobs.Update(ctx, job); err != nil {
			r.log.Warn("failed to archive old failed job", zap.String("jobId", job.ID), zap.Error(err))
		}
	}
	return nil
}

// deleteOutputAndExpire deletes job's output blob, swallowing delete
// failures so cleanup always still nulls the output, appends
// auditEvent, and persists EXPIRED status.
func (r *Reaper) deleteOutputAndExpire(ctx context.Context, job *models.PrintJob, auditEvent string) {
	if job.Output != nil && job.Output.Key != "" {
		if err := r.blobs.Delete(ctx, job.Output.Key); err != nil {
			r.log.Warn("reaper blob delete failed, continuing", zap.String("jobId", job.ID), zap.String("key", job.Output.Key), zap.Error(err))
		}
	}
	job.Output = nil
	job.Status = models.JobExpired
	job.AppendAudit(auditEvent, nil)
	if err := r.jobs.Update(ctx, job); err != nil {
		r.log.Warn("failed to persist expired job", zap.String("jobId", job.ID), zap.Error(err))
	}
}
