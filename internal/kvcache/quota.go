package kvcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func quotaKey(documentID, userID string) string {
	return fmt.Sprintf("print_quota:%s:%s", documentID, userID)
}

func reqKey(documentID, userID, requestID string) string {
	return fmt.Sprintf("print_req:%s:%s:%s", documentID, userID, requestID)
}

const idempotencyWindow = 300 * time.Second

// DecrementOutcome discriminates the atomic decrement script's result.
type DecrementOutcome int

const (
	DecrementOK DecrementOutcome = iota
	DecrementDenied
	DecrementCacheMiss
)

// decrementScript is the atomic decrement recipe: read the remaining
// count, deny if exhausted, otherwise decrement and return the new
// value. A nil hash field is reported distinctly from a
// zero-or-negative remaining count so the caller can trigger cache-miss
// recovery instead of a spurious denial.
var decrementScript = redis.NewScript(`
local quota_key = KEYS[1]
local remaining = redis.call("HGET", quota_key, "remaining")
if not remaining then
	return -2
end
remaining = tonumber(remaining)
if remaining <= 0 then
	return -1
end
redis.call("HINCRBY", quota_key, "remaining", -1)
return remaining - 1
`)

// AcquireIdempotencyGate sets req_key NX EX 300. ok=false with a nil
// error means the key was already held (this is a replay: the caller
// must return success without side effects).
func (c *Client) AcquireIdempotencyGate(ctx context.Context, documentID, userID, requestID string) (ok bool, err error) {
	set, err := c.rdb.SetNX(ctx, reqKey(documentID, userID, requestID), "1", idempotencyWindow).Result()
	if err != nil {
		return false, wrapTransportErr(err)
	}
	return set, nil
}

// DeleteIdempotencyGate removes req_key so a denied requestID may be
// retried once quota is increased.
func (c *Client) DeleteIdempotencyGate(ctx context.Context, documentID, userID, requestID string) error {
	if err := c.rdb.Del(ctx, reqKey(documentID, userID, requestID)).Err(); err != nil {
		return wrapTransportErr(err)
	}
	return nil
}

// DecrementQuota runs the atomic decrement script for (documentID,
// userID). The returned remaining value is only meaningful when
// outcome == DecrementOK.
func (c *Client) DecrementQuota(ctx context.Context, documentID, userID string) (outcome DecrementOutcome, remaining int64, err error) {
	res, err := decrementScript.Run(ctx, c.rdb, []string{quotaKey(documentID, userID)}).Int64()
	if err != nil {
		return 0, 0, wrapTransportErr(err)
	}
	switch res {
	case -2:
		return DecrementCacheMiss, 0, nil
	case -1:
		return DecrementDenied, 0, nil
	default:
		return DecrementOK, res, nil
	}
}

// SeedQuota writes the computed remaining count into the quota hash,
// used during cache-miss recovery after reading the durable access
// record.
func (c *Client) SeedQuota(ctx context.Context, documentID, userID string, remaining int64) error {
	if err := c.rdb.HSet(ctx, quotaKey(documentID, userID), "remaining", remaining).Err(); err != nil {
		return wrapTransportErr(err)
	}
	return nil
}
