package kvcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosom/vectorprint/internal/testcontainers"
)

func TestBatchFanInCountdownAndAssembly(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		c := newTestClient(tc)
		ctx := context.Background()

		require.NoError(t, c.InitBatchFanIn(ctx, "job-1", 2, time.Minute))

		require.NoError(t, c.StoreBatchPages(ctx, "job-1", map[string]string{"0": "aGVsbG8="}))
		remaining, err := c.DecrementBatchRemaining(ctx, "job-1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, remaining)

		require.NoError(t, c.StoreBatchPages(ctx, "job-1", map[string]string{"1": "d29ybGQ="}))
		remaining, err = c.DecrementBatchRemaining(ctx, "job-1")
		require.NoError(t, err)
		assert.EqualValues(t, 0, remaining)

		pages, err := c.AllBatchPages(ctx, "job-1")
		require.NoError(t, err)
		assert.Len(t, pages, 2)
		assert.NotContains(t, pages, "_seed")
		assert.Equal(t, "aGVsbG8=", pages["0"])

		require.NoError(t, c.ClearBatchFanIn(ctx, "job-1"))
		pages, err = c.AllBatchPages(ctx, "job-1")
		require.NoError(t, err)
		assert.Empty(t, pages)
	})
}
