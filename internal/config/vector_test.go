package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearVectorEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"VECTOR_PAYLOAD_MAC_SECRET", "VECTOR_MAX_ACTIVE_JOBS", "VECTOR_MAX_PAGES",
		"VECTOR_MAX_SERIES_END", "VECTOR_BATCH_SIZE", "VECTOR_BATCH_ATTEMPTS",
		"VECTOR_RENDER_LOCK_TTL_SECONDS", "VECTOR_MERGE_MAX_MS", "FINAL_PDF_TTL_HOURS",
		"JOB_CLEANUP_INTERVAL_MS", "PRINT_JOB_STALE_MS", "VECTOR_REAPER_FAILED_AFTER",
		"VECTOR_IDEMPOTENCY_TTL",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestNewVectorConfigRequiresSecret(t *testing.T) {
	clearVectorEnv(t)

	_, err := NewVectorConfig()
	assert.Error(t, err)
}

func TestNewVectorConfigDefaults(t *testing.T) {
	clearVectorEnv(t)
	os.Setenv("VECTOR_PAYLOAD_MAC_SECRET", "test-secret")
	defer os.Unsetenv("VECTOR_PAYLOAD_MAC_SECRET")

	cfg, err := NewVectorConfig()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxActiveJobs)
	assert.Equal(t, 700, cfg.MaxPages)
	assert.EqualValues(t, 1000000000, cfg.MaxSeriesEnd)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 3, cfg.BatchAttempts)
	assert.Equal(t, 1800*time.Second, cfg.LockTTL)
	assert.Equal(t, time.Duration(0), cfg.MergeDeadline)
	assert.Equal(t, 24*time.Hour, cfg.FinalPDFTTL)
	assert.Equal(t, "test-secret", cfg.PayloadMACSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.ReaperFailedAfter)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestNewVectorConfigBatchSizeCappedByEnvValidation(t *testing.T) {
	clearVectorEnv(t)
	os.Setenv("VECTOR_PAYLOAD_MAC_SECRET", "test-secret")
	os.Setenv("VECTOR_BATCH_SIZE", "51")
	defer os.Unsetenv("VECTOR_PAYLOAD_MAC_SECRET")
	defer os.Unsetenv("VECTOR_BATCH_SIZE")

	_, err := NewVectorConfig()
	assert.Error(t, err)
}
