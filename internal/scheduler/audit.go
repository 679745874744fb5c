package scheduler

import (
	"context"
	"fmt"

	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/models"
)

// AuditTrail is a read accessor over a PrintJob's append-only audit
// timeline, grounded in the "ordered log of value records" design note:
// the job's Audit slice is never mutated in place, only extended, so
// slicing it for support tooling never races a concurrent append.
type AuditTrail struct {
	jobs *metadatastore.PrintJobRepository
}

func NewAuditTrail(jobs *metadatastore.PrintJobRepository) *AuditTrail {
	return &AuditTrail{jobs: jobs}
}

// Events returns jobID's full audit timeline in append order.
func (a *AuditTrail) Events(ctx context.Context, jobID string) ([]models.AuditEvent, error) {
	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load print job %s: %w", jobID, err)
	}
	return job.Audit, nil
}

// EventsSince returns jobID's audit events whose Event name matches
// kind, e.g. filtering down to every PAGE_RENDERED entry for a given
// job when diagnosing a slow render.
func (a *AuditTrail) EventsSince(ctx context.Context, jobID, kind string) ([]models.AuditEvent, error) {
	all, err := a.Events(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditEvent, 0, len(all))
	for _, e := range all {
		if e.Event == kind {
			out = append(out, e)
		}
	}
	return out, nil
}
