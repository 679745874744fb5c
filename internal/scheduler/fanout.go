package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gosom/vectorprint/internal/kvcache"
	"github.com/gosom/vectorprint/internal/models"
	"github.com/gosom/vectorprint/internal/queue"
	"github.com/gosom/vectorprint/internal/queue/tasks"
)

// EnqueueFanOut splits job into ceil(totalPages/batchSize) batch child
// tasks and seeds the fan-in countdown the last-finishing batch uses
// to trigger the merge task. No merge task is enqueued here: it is
// enqueued by whichever batch handler observes the countdown reach
// zero, guaranteeing the merge never starts before every batch has
// reported.
func EnqueueFanOut(ctx context.Context, q *queue.Client, cache *kvcache.Client, job *models.PrintJob, batchSize, attempts int, lockTTL time.Duration) error {
	batchCount := ceilDiv(job.TotalPages, batchSize)

	if err := cache.InitBatchFanIn(ctx, job.ID, batchCount, lockTTL); err != nil {
		return fmt.Errorf("init batch fan-in: %w", err)
	}

	for i := 0; i < batchCount; i++ {
		start := i * batchSize
		end := start + batchSize
		if end > job.TotalPages {
			end = job.TotalPages
		}

		payload := tasks.BatchPayload{
			PrintJobID: job.ID,
			DocumentID: job.DocumentID,
			StartPage:  start,
			EndPage:    end,
			TotalPages: job.TotalPages,
			BatchIndex: i,
			BatchCount: batchCount,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal batch payload: %w", err)
		}

		opts := []asynq.Option{
			asynq.Queue(tasks.PriorityBatch),
			asynq.MaxRetry(attempts),
			asynq.Timeout(5 * time.Minute),
		}
		if _, err := q.Enqueue(ctx, tasks.TypeRenderBatch, body, opts...); err != nil {
			return fmt.Errorf("enqueue batch %d: %w", i, err)
		}
	}

	return nil
}

// enqueueMerge is called by the last batch handler to finish a job's
// fan-out, i.e. the one that observes the fan-in countdown reach zero.
func enqueueMerge(ctx context.Context, q *queue.Client, job *models.PrintJob, mergeDeadline time.Duration) error {
	payload := tasks.MergePayload{PrintJobID: job.ID, DocumentID: job.DocumentID}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal merge payload: %w", err)
	}

	opts := []asynq.Option{asynq.Queue(tasks.PriorityMerge), asynq.MaxRetry(1)}
	if mergeDeadline > 0 {
		opts = append(opts, asynq.Timeout(mergeDeadline+time.Minute))
	}

	if _, err := q.Enqueue(ctx, tasks.TypeRenderMerge, body, opts...); err != nil {
		return fmt.Errorf("enqueue merge: %w", err)
	}
	return nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 1
	}
	return (a + b - 1) / b
}
