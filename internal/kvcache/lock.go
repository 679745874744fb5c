package kvcache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LockOutcome discriminates the three-way result of an admission
// attempt at acquiring the per-document render lock.
type LockOutcome string

const (
	LockAcquired  LockOutcome = "acquired"
	LockBusy      LockOutcome = "busy"
	LockThrottled LockOutcome = "throttled"
)

// LockResult is the outcome of AcquireRenderLock.
type LockResult struct {
	Outcome LockOutcome
	Holder  string // set when Outcome == LockBusy
	Active  int64  // set when Outcome == LockThrottled
}

// acquireScript implements the admission compare-and-swap recipe:
// refuse if the lock is held, refuse if the global active counter is
// at cap, otherwise atomically set the lock, bump the counter, and
// mark membership so release is idempotent under retries.
var acquireScript = redis.NewScript(`
local lock_key = KEYS[1]
local active_ctr = KEYS[2]
local member_key = KEYS[3]
local job_id = ARGV[1]
local ttl = tonumber(ARGV[2])
local max_active = tonumber(ARGV[3])

local holder = redis.call("GET", lock_key)
if holder then
	return {"busy", holder}
end

if max_active > 0 then
	local active = tonumber(redis.call("GET", active_ctr) or "0")
	if active >= max_active then
		return {"throttled", tostring(active)}
	end
end

redis.call("SET", lock_key, job_id, "EX", ttl)
redis.call("INCR", active_ctr)
redis.call("SET", member_key, "1", "EX", ttl)
return {"acquired", job_id}
`)

func lockKey(documentID string) string { return fmt.Sprintf("vector:render:lock:%s", documentID) }

func memberKey(jobID string) string { return fmt.Sprintf("vector:render:active:%s", jobID) }

const activeCounterKey = "vector:render:active"

// AcquireRenderLock runs the acquire script for documentID/jobID. A
// non-nil error means the cache is unavailable; callers must proceed
// without exclusivity.
func (c *Client) AcquireRenderLock(ctx context.Context, documentID, jobID string, ttl int64, maxActive int64) (LockResult, error) {
	res, err := acquireScript.Run(ctx, c.rdb, []string{lockKey(documentID), activeCounterKey, memberKey(jobID)}, jobID, ttl, maxActive).Slice()
	if err != nil {
		return LockResult{}, wrapTransportErr(err)
	}
	if len(res) != 2 {
		return LockResult{}, fmt.Errorf("kvcache: unexpected acquire script result shape: %v", res)
	}

	outcome, _ := res[0].(string)
	second, _ := res[1].(string)

	switch LockOutcome(outcome) {
	case LockAcquired:
		return LockResult{Outcome: LockAcquired, Holder: second}, nil
	case LockBusy:
		return LockResult{Outcome: LockBusy, Holder: second}, nil
	case LockThrottled:
		var active int64
		fmt.Sscanf(second, "%d", &active)
		return LockResult{Outcome: LockThrottled, Active: active}, nil
	default:
		return LockResult{}, fmt.Errorf("kvcache: unknown acquire outcome %q", outcome)
	}
}

// releaseScript deletes the lock only if it's still held by the caller
// (owner-checked release) and decrements the active counter only if
// the membership key is still present, guarding against
// double-decrement under retries.
var releaseScript = redis.NewScript(`
local lock_key = KEYS[1]
local active_ctr = KEYS[2]
local member_key = KEYS[3]
local job_id = ARGV[1]

local holder = redis.call("GET", lock_key)
if holder == job_id then
	redis.call("DEL", lock_key)
end

if redis.call("GET", member_key) then
	redis.call("DEL", member_key)
	local active = tonumber(redis.call("GET", active_ctr) or "0")
	if active > 0 then
		redis.call("DECR", active_ctr)
	end
end

return "ok"
`)

// ReleaseRenderLock releases the lock for documentID if held by jobID,
// unconditionally clearing the active counter's membership. Called on
// both success and failure paths; errors are logged and swallowed by
// callers so the reaper still guarantees eventual progress.
func (c *Client) ReleaseRenderLock(ctx context.Context, documentID, jobID string) error {
	_, err := releaseScript.Run(ctx, c.rdb, []string{lockKey(documentID), activeCounterKey, memberKey(jobID)}, jobID).Result()
	if err != nil {
		return wrapTransportErr(err)
	}
	return nil
}
