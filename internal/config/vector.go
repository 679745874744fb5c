package config

import (
	"fmt"
	"os"
	"time"
)

// VectorConfig holds the render-pipeline-specific knobs: global
// concurrency cap, batch/lock/merge timing, validation bounds, and the
// payload-integrity secret.
type VectorConfig struct {
	MaxActiveJobs     int           // VECTOR_MAX_ACTIVE_JOBS, 0 disables the cap
	MaxPages          int           // VECTOR_MAX_PAGES
	MaxSeriesEnd      int64         // VECTOR_MAX_SERIES_END
	BatchSize         int           // VECTOR_BATCH_SIZE, cap 50
	BatchAttempts     int           // VECTOR_BATCH_ATTEMPTS
	LockTTL           time.Duration // VECTOR_RENDER_LOCK_TTL_SECONDS
	MergeDeadline     time.Duration // VECTOR_MERGE_MAX_MS, 0 disables
	FinalPDFTTL       time.Duration // FINAL_PDF_TTL_HOURS
	PayloadMACSecret  string
	ReaperInterval    time.Duration // JOB_CLEANUP_INTERVAL_MS
	ReaperStaleAfter  time.Duration // PRINT_JOB_STALE_MS
	ReaperFailedAfter time.Duration // archive window for FAILED jobs, default 7 days
	IdempotencyTTL    time.Duration
}

// NewVectorConfig loads render-pipeline configuration from the
// environment. PayloadMACSecret is required; everything else falls
// back to a default. Values are read once here; nothing re-reads them
// from the dynamic config.Service at runtime.
func NewVectorConfig() (*VectorConfig, error) {
	secret := os.Getenv("VECTOR_PAYLOAD_MAC_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("VECTOR_PAYLOAD_MAC_SECRET is required")
	}

	maxActive, err := validateRange("VECTOR_MAX_ACTIVE_JOBS", "0", 0, 100000)
	if err != nil {
		return nil, fmt.Errorf("invalid max active jobs: %w", err)
	}
	maxPages, err := validateRange("VECTOR_MAX_PAGES", "700", 1, 1000000)
	if err != nil {
		return nil, fmt.Errorf("invalid max pages: %w", err)
	}
	maxSeriesEnd, err := validateRange("VECTOR_MAX_SERIES_END", "1000000000", 1, 1<<62)
	if err != nil {
		return nil, fmt.Errorf("invalid max series end: %w", err)
	}
	batchSize, err := validateRange("VECTOR_BATCH_SIZE", "25", 1, 50)
	if err != nil {
		return nil, fmt.Errorf("invalid batch size: %w", err)
	}
	batchAttempts, err := validateRange("VECTOR_BATCH_ATTEMPTS", "3", 1, 10)
	if err != nil {
		return nil, fmt.Errorf("invalid batch attempts: %w", err)
	}
	lockTTLSeconds, err := validateRange("VECTOR_RENDER_LOCK_TTL_SECONDS", "1800", 60, 24*3600)
	if err != nil {
		return nil, fmt.Errorf("invalid render lock ttl: %w", err)
	}
	mergeMaxMS, err := validateRange("VECTOR_MERGE_MAX_MS", "0", 0, 24*3600*1000)
	if err != nil {
		return nil, fmt.Errorf("invalid merge max ms: %w", err)
	}
	finalTTLHours, err := validateRange("FINAL_PDF_TTL_HOURS", "24", 1, 8760)
	if err != nil {
		return nil, fmt.Errorf("invalid final pdf ttl: %w", err)
	}
	reaperIntervalMS, err := validateRange("JOB_CLEANUP_INTERVAL_MS", "300000", 1000, 24*3600*1000)
	if err != nil {
		return nil, fmt.Errorf("invalid reaper interval: %w", err)
	}
	staleMS, err := validateRange("PRINT_JOB_STALE_MS", "900000", 60000, 24*3600*1000)
	if err != nil {
		return nil, fmt.Errorf("invalid stale-after: %w", err)
	}
	reaperFailedAfter, err := validateDuration("VECTOR_REAPER_FAILED_AFTER", 7*24*time.Hour, time.Hour, 90*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid reaper failed-after: %w", err)
	}
	idempotencyTTL, err := validateDuration("VECTOR_IDEMPOTENCY_TTL", 24*time.Hour, time.Minute, 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid idempotency ttl: %w", err)
	}

	return &VectorConfig{
		MaxActiveJobs:     maxActive,
		MaxPages:          maxPages,
		MaxSeriesEnd:      int64(maxSeriesEnd),
		BatchSize:         batchSize,
		BatchAttempts:     batchAttempts,
		LockTTL:           time.Duration(lockTTLSeconds) * time.Second,
		MergeDeadline:     time.Duration(mergeMaxMS) * time.Millisecond,
		FinalPDFTTL:       time.Duration(finalTTLHours) * time.Hour,
		PayloadMACSecret:  secret,
		ReaperInterval:    time.Duration(reaperIntervalMS) * time.Millisecond,
		ReaperStaleAfter:  time.Duration(staleMS) * time.Millisecond,
		ReaperFailedAfter: reaperFailedAfter,
		IdempotencyTTL:    idempotencyTTL,
	}, nil
}
