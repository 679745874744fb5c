package reaper_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/models"
	"github.com/gosom/vectorprint/internal/reaper"
	"github.com/gosom/vectorprint/internal/testcontainers"
)

func newBareJob(id string, status models.JobStatus) *models.PrintJob {
	now := time.Now().UTC()
	return &models.PrintJob{
		ID:         id,
		OwnerID:    "user-1",
		DocumentID: "doc-1",
		SourceKey:  "sources/doc-1.pdf",
		Metadata:   models.VectorMetadata{SourcePdfKey: "sources/doc-1.pdf"},
		MAC:        "deadbeef",
		Status:     status,
		TotalPages: 1,
		Audit:      []models.AuditEvent{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Reaper sweeps involving output-bearing jobs need a real blob store to
// exercise deletion; these tests exercise the two output-free queries
// (stale RUNNING, old FAILED) that never touch the blob store, leaving
// blobs nil the way a unit test of a pure metadata transition should.
func newBareReaper(jobs *metadatastore.PrintJobRepository, staleAfter, failedAfter time.Duration) *reaper.Reaper {
	return reaper.New(jobs, nil, staleAfter, failedAfter, zap.NewNop())
}

func TestSweepExpiresStaleRunningJobsWithoutOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		jobs := metadatastore.NewPrintJobRepository(db)

		stale := newBareJob("job-stale", models.JobRunning)
		require.NoError(t, jobs.Create(context.Background(), stale))
		_, err := db.Exec(`UPDATE print_jobs SET updated_at = $1 WHERE id = $2`,
			time.Now().UTC().Add(-2*time.Hour), "job-stale")
		require.NoError(t, err)

		fresh := newBareJob("job-fresh", models.JobRunning)
		require.NoError(t, jobs.Create(context.Background(), fresh))

		r := newBareReaper(jobs, time.Hour, 7*24*time.Hour)
		require.NoError(t, r.Sweep(context.Background()))

		got, err := jobs.Get(context.Background(), "job-stale")
		require.NoError(t, err)
		assert.Equal(t, models.JobExpired, got.Status)

		still, err := jobs.Get(context.Background(), "job-fresh")
		require.NoError(t, err)
		assert.Equal(t, models.JobRunning, still.Status)
	})
}

func TestSweepArchivesOldFailedJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		jobs := metadatastore.NewPrintJobRepository(db)

		old := newBareJob("job-old-failed", models.JobFailed)
		require.NoError(t, jobs.Create(context.Background(), old))
		_, err := db.Exec(`UPDATE print_jobs SET updated_at = $1 WHERE id = $2`,
			time.Now().UTC().Add(-10*24*time.Hour), "job-old-failed")
		require.NoError(t, err)

		recent := newBareJob("job-recent-failed", models.JobFailed)
		require.NoError(t, jobs.Create(context.Background(), recent))

		r := newBareReaper(jobs, time.Hour, 7*24*time.Hour)
		require.NoError(t, r.Sweep(context.Background()))

		got, err := jobs.Get(context.Background(), "job-old-failed")
		require.NoError(t, err)
		assert.Equal(t, models.JobExpired, got.Status)
		require.Len(t, got.Audit, 1)
		assert.Equal(t, models.EventFailedJobArchived, got.Audit[0].Event)

		still, err := jobs.Get(context.Background(), "job-recent-failed")
		require.NoError(t, err)
		assert.Equal(t, models.JobFailed, still.Status)
	})
}

func TestSweepIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		jobs := metadatastore.NewPrintJobRepository(db)

		stale := newBareJob("job-stale", models.JobRunning)
		require.NoError(t, jobs.Create(context.Background(), stale))
		_, err := db.Exec(`UPDATE print_jobs SET updated_at = $1 WHERE id = $2`,
			time.Now().UTC().Add(-2*time.Hour), "job-stale")
		require.NoError(t, err)

		r := newBareReaper(jobs, time.Hour, 7*24*time.Hour)
		require.NoError(t, r.Sweep(context.Background()))
		require.NoError(t, r.Sweep(context.Background()))

		got, err := jobs.Get(context.Background(), "job-stale")
		require.NoError(t, err)
		assert.Equal(t, models.JobExpired, got.Status)
		assert.Len(t, got.Audit, 1) // second sweep found nothing to re-expire
	})
}
