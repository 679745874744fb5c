// Package scheduler implements the render job scheduler: admission
// through a per-document render lock and global active-job cap,
// fan-out into page batches, per-page rendering, fan-in merge, and the
// PENDING -> RUNNING -> {DONE, FAILED} -> EXPIRED state machine.
package scheduler

import (
	"context"

	"github.com/hibiken/asynq"
)

// isFinalAttempt reports whether the current invocation is the last
// retry asynq will make for this task, used to decide when a
// transient failure must terminalize the job rather than be retried
// silently: only the final failed attempt marks the job FAILED.
func isFinalAttempt(ctx context.Context) bool {
	retry, okR := asynq.GetRetryCount(ctx)
	max, okM := asynq.GetMaxRetry(ctx)
	if !okR || !okM {
		return true
	}
	return retry >= max
}

func taskID(ctx context.Context) string {
	id, _ := asynq.GetTaskID(ctx)
	return id
}
