package kvcache

import (
	"context"
	"fmt"
	"time"
)

// The scheduler's batch/merge fan-out has no native BullMQ-style flow
// producer to pass children's return values to the parent (asynq has
// no equivalent): each batch child instead writes its rendered pages
// into a job-scoped hash here, and the last child to finish (tracked
// by an atomic countdown) enqueues the merge task itself, which reads
// the assembled hash back out.
func resultsKey(jobID string) string { return fmt.Sprintf("vector:render:results:%s", jobID) }

func remainingKey(jobID string) string { return fmt.Sprintf("vector:render:remaining:%s", jobID) }

// InitBatchFanIn seeds the remaining-batch countdown for jobID, TTL-bound
// so an abandoned job's bookkeeping keys expire rather than leak. The
// results hash doesn't exist yet at this point, so a seed field is
// written first: EXPIRE on a not-yet-created key is a silent no-op, and
// the hash would otherwise leak past ClearBatchFanIn if the job is
// abandoned before any batch reports in.
func (c *Client) InitBatchFanIn(ctx context.Context, jobID string, batchCount int, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, remainingKey(jobID), batchCount, ttl).Err(); err != nil {
		return wrapTransportErr(err)
	}
	if err := c.rdb.HSet(ctx, resultsKey(jobID), "_seed", "1").Err(); err != nil {
		return wrapTransportErr(err)
	}
	if err := c.rdb.Expire(ctx, resultsKey(jobID), ttl).Err(); err != nil {
		return wrapTransportErr(err)
	}
	return nil
}

// StoreBatchPages writes one batch child's rendered pages into the
// job's results hash, keyed by absolute page index.
func (c *Client) StoreBatchPages(ctx context.Context, jobID string, pages map[string]string) error {
	if len(pages) == 0 {
		return nil
	}
	fields := make([]any, 0, len(pages)*2)
	for k, v := range pages {
		fields = append(fields, k, v)
	}
	if err := c.rdb.HSet(ctx, resultsKey(jobID), fields...).Err(); err != nil {
		return wrapTransportErr(err)
	}
	return nil
}

// DecrementBatchRemaining decrements jobID's countdown and returns the
// post-decrement value. A batch handler that observes 0 is the last
// sibling to finish and is responsible for triggering the merge.
func (c *Client) DecrementBatchRemaining(ctx context.Context, jobID string) (int64, error) {
	n, err := c.rdb.Decr(ctx, remainingKey(jobID)).Result()
	if err != nil {
		return 0, wrapTransportErr(err)
	}
	return n, nil
}

// AllBatchPages returns the full page-index -> base64-PDF map assembled
// so far for jobID, excluding the bookkeeping seed field InitBatchFanIn
// writes to give the results hash a TTL before any batch reports in.
func (c *Client) AllBatchPages(ctx context.Context, jobID string) (map[string]string, error) {
	m, err := c.rdb.HGetAll(ctx, resultsKey(jobID)).Result()
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	delete(m, "_seed")
	return m, nil
}

// ClearBatchFanIn removes a job's results hash and countdown, called by
// the merge handler once it has read everything back out.
func (c *Client) ClearBatchFanIn(ctx context.Context, jobID string) error {
	if err := c.rdb.Del(ctx, resultsKey(jobID), remainingKey(jobID)).Err(); err != nil {
		return wrapTransportErr(err)
	}
	return nil
}
