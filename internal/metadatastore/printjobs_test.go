package metadatastore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/models"
	"github.com/gosom/vectorprint/internal/testcontainers"
)

func newJob(id string) *models.PrintJob {
	now := time.Now().UTC()
	return &models.PrintJob{
		ID:         id,
		OwnerID:    "user-1",
		DocumentID: "doc-1",
		SourceKey:  "sources/doc-1.pdf",
		Metadata: models.VectorMetadata{
			SourcePdfKey: "sources/doc-1.pdf",
			Layout:       models.Layout{PageSize: "A4", TotalPages: 1, RepeatPerPage: 1},
		},
		MAC:        "deadbeef",
		Status:     models.JobPending,
		TotalPages: 1,
		Audit:      []models.AuditEvent{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPrintJobCreateAndGetRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		repo := metadatastore.NewPrintJobRepository(db)

		job := newJob("job-1")
		require.NoError(t, repo.Create(context.Background(), job))

		got, err := repo.Get(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, job.OwnerID, got.OwnerID)
		assert.Equal(t, job.DocumentID, got.DocumentID)
		assert.Equal(t, models.JobPending, got.Status)
		assert.Equal(t, 1, got.TotalPages)
		assert.Nil(t, got.Output)
		assert.Nil(t, got.Error)
	})
}

func TestPrintJobGetMissingReturnsErrNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		repo := metadatastore.NewPrintJobRepository(db)

		_, err := repo.Get(context.Background(), "does-not-exist")
		require.ErrorIs(t, err, metadatastore.ErrNotFound)
	})
}

func TestPrintJobUpdatePersistsOutputAndAudit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		repo := metadatastore.NewPrintJobRepository(db)

		job := newJob("job-2")
		require.NoError(t, repo.Create(context.Background(), job))

		job.Status = models.JobDone
		job.Progress = 1
		job.Output = &models.JobOutput{Key: "outputs/job-2.pdf", ExpiresAt: time.Now().UTC().Add(time.Hour)}
		job.AppendAudit(models.EventJobDone, nil)
		require.NoError(t, repo.Update(context.Background(), job))

		got, err := repo.Get(context.Background(), "job-2")
		require.NoError(t, err)
		assert.Equal(t, models.JobDone, got.Status)
		assert.Equal(t, 1, got.Progress)
		require.NotNil(t, got.Output)
		assert.Equal(t, "outputs/job-2.pdf", got.Output.Key)
		require.Len(t, got.Audit, 1)
		assert.Equal(t, models.EventJobDone, got.Audit[0].Event)
	})
}

func TestPrintJobSetExpiredClearsOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		repo := metadatastore.NewPrintJobRepository(db)

		job := newJob("job-3")
		job.Status = models.JobDone
		job.Output = &models.JobOutput{Key: "outputs/job-3.pdf", ExpiresAt: time.Now().UTC()}
		require.NoError(t, repo.Create(context.Background(), job))

		require.NoError(t, repo.SetExpired(context.Background(), "job-3"))

		got, err := repo.Get(context.Background(), "job-3")
		require.NoError(t, err)
		assert.Equal(t, models.JobExpired, got.Status)
		assert.Nil(t, got.Output)
	})
}

func TestExpiredOutputCandidatesFiltersByExpiryAndStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		repo := metadatastore.NewPrintJobRepository(db)

		past := newJob("job-expired")
		past.Status = models.JobDone
		past.Output = &models.JobOutput{Key: "outputs/job-expired.pdf", ExpiresAt: time.Now().UTC().Add(-time.Hour)}
		require.NoError(t, repo.Create(context.Background(), past))

		future := newJob("job-fresh")
		future.Status = models.JobDone
		future.Output = &models.JobOutput{Key: "outputs/job-fresh.pdf", ExpiresAt: time.Now().UTC().Add(time.Hour)}
		require.NoError(t, repo.Create(context.Background(), future))

		noOutput := newJob("job-no-output")
		noOutput.Status = models.JobDone
		require.NoError(t, repo.Create(context.Background(), noOutput))

		got, err := repo.ExpiredOutputCandidates(context.Background(), []models.JobStatus{models.JobDone, models.JobRunning}, time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "job-expired", got[0].ID)
	})
}

func TestStaleRunningCandidatesRequiresNoOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		repo := metadatastore.NewPrintJobRepository(db)

		stale := newJob("job-stale")
		stale.Status = models.JobRunning
		require.NoError(t, repo.Create(context.Background(), stale))
		_, err := db.Exec(`UPDATE print_jobs SET updated_at = $1 WHERE id = $2`,
			time.Now().UTC().Add(-24*time.Hour), "job-stale")
		require.NoError(t, err)

		withOutput := newJob("job-running-with-output")
		withOutput.Status = models.JobRunning
		withOutput.Output = &models.JobOutput{Key: "outputs/x.pdf"}
		require.NoError(t, repo.Create(context.Background(), withOutput))
		_, err = db.Exec(`UPDATE print_jobs SET updated_at = $1 WHERE id = $2`,
			time.Now().UTC().Add(-24*time.Hour), "job-running-with-output")
		require.NoError(t, err)

		got, err := repo.StaleRunningCandidates(context.Background(), time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "job-stale", got[0].ID)
	})
}

func TestStaleFailedCandidatesFiltersByCutoff(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		repo := metadatastore.NewPrintJobRepository(db)

		old := newJob("job-old-failed")
		old.Status = models.JobFailed
		require.NoError(t, repo.Create(context.Background(), old))
		_, err := db.Exec(`UPDATE print_jobs SET updated_at = $1 WHERE id = $2`,
			time.Now().UTC().Add(-30*24*time.Hour), "job-old-failed")
		require.NoError(t, err)

		recent := newJob("job-recent-failed")
		recent.Status = models.JobFailed
		require.NoError(t, repo.Create(context.Background(), recent))

		got, err := repo.StaleFailedCandidates(context.Background(), time.Now().UTC().Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "job-old-failed", got[0].ID)
	})
}
