package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gosom/vectorprint/internal/apperrors"
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

type fakeCacheReleaser struct {
	released   bool
	releaseErr error
}

func (f *fakeCacheReleaser) ReleaseRenderLock(ctx context.Context, documentID, jobID string) error {
	f.released = true
	return f.releaseErr
}

func TestFailMarksJobFailedAndReleasesLock(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		jobs := metadatastore.NewPrintJobRepository(db)
		releaser := &fakeCacheReleaser{}
		d := &deps{jobs: jobs, cache: releaser, log: zap.NewNop()}

		job := newJob("job-1")
		require.NoError(t, jobs.Create(context.Background(), job))

		d.fail(context.Background(), job, "queue-task-1", apperrors.New(apperrors.KindMACMismatch, "mac mismatch"))

		got, err := jobs.Get(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, models.JobFailed, got.Status)
		require.NotNil(t, got.Error)
		assert.Contains(t, got.Error.Message, "mac mismatch")
		require.Len(t, got.Audit, 1)
		assert.Equal(t, models.EventJobFailed, got.Audit[0].Event)
		assert.Equal(t, "MAC_MISMATCH", got.Audit[0].Details["errorKind"])
		assert.True(t, releaser.released)
	})
}

func TestFailSwallowsLockReleaseFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		db := tc.DB
		jobs := metadatastore.NewPrintJobRepository(db)
		releaser := &fakeCacheReleaser{releaseErr: errors.New("redis down")}
		d := &deps{jobs: jobs, cache: releaser, log: zap.NewNop()}

		job := newJob("job-2")
		require.NoError(t, jobs.Create(context.Background(), job))

		assert.NotPanics(t, func() {
			d.fail(context.Background(), job, "queue-task-2", errors.New("boom"))
		})

		got, err := jobs.Get(context.Background(), "job-2")
		require.NoError(t, err)
		assert.Equal(t, models.JobFailed, got.Status)
	})
}
