// Package quota implements the two-tier print-quota consumption
// engine: an atomic Redis-scripted fast path with request-id
// idempotency and cache-miss recovery, falling back to a durable
// conditional-update path when the cache is unavailable.
package quota

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/kvcache"
	"github.com/gosom/vectorprint/internal/metadatastore"
)

// Engine consumes prints against a DocumentAccess grant.
type Engine struct {
	cache *kvcache.Client
	store *metadatastore.DocumentAccessRepository
	log   *zap.Logger
}

func New(cache *kvcache.Client, store *metadatastore.DocumentAccessRepository, log *zap.Logger) *Engine {
	return &Engine{cache: cache, store: store, log: log}
}

// Consume performs one at-most-once print consumption for
// (documentID, userID, requestID).
func (e *Engine) Consume(ctx context.Context, documentID, userID, requestID string) error {
	if requestID == "" {
		return apperrors.New(apperrors.KindBadRequest, "missing requestId")
	}

	// Step 1: idempotency gate.
	gateOK, err := e.cache.AcquireIdempotencyGate(ctx, documentID, userID, requestID)
	if err != nil {
		if errors.Is(err, kvcache.ErrUnavailable) {
			return e.consumeDurable(ctx, documentID, userID)
		}
		return fmt.Errorf("acquire idempotency gate: %w", err)
	}
	if !gateOK {
		// Replay: same requestId seen within the window, no side effects.
		return nil
	}

	// Step 2: atomic decrement.
	outcome, _, err := e.cache.DecrementQuota(ctx, documentID, userID)
	if err != nil {
		if errors.Is(err, kvcache.ErrUnavailable) {
			return e.consumeDurable(ctx, documentID, userID)
		}
		return fmt.Errorf("decrement quota: %w", err)
	}

	denied := false

	switch outcome {
	case kvcache.DecrementCacheMiss:
		// Step 3: cache-miss recovery.
		if err := e.recoverAndDecrement(ctx, documentID, userID); err != nil {
			if errors.Is(err, kvcache.ErrUnavailable) {
				return e.consumeDurable(ctx, documentID, userID)
			}
			if apperrors.Is(err, apperrors.KindLimit) {
				denied = true
				break
			}
			return err
		}
	case kvcache.DecrementDenied:
		denied = true
	case kvcache.DecrementOK:
		// fallthrough to write-behind below
	}

	if denied {
		// Step 4: quota exceeded, however it was discovered. Delete the
		// gate so a future quota increase lets this requestId succeed on
		// retry instead of permanently replaying as a denial.
		if delErr := e.cache.DeleteIdempotencyGate(ctx, documentID, userID, requestID); delErr != nil {
			e.log.Warn("failed to delete idempotency gate after denial",
				zap.String("documentId", documentID), zap.String("userId", userID), zap.Error(delErr))
		}
		return apperrors.New(apperrors.KindLimit, "print quota exhausted")
	}

	// Step 5: write-behind durable increment.
	if err := e.store.IncrementUsed(ctx, documentID, userID); err != nil {
		e.log.Warn("write-behind increment failed", zap.String("documentId", documentID), zap.String("userId", userID), zap.Error(err))
	}

	return nil
}

// recoverAndDecrement loads the durable access record, seeds the
// cache's remaining count, and re-executes the decrement once. It
// returns apperrors.KindLimit if the seeded remaining is already
// exhausted.
func (e *Engine) recoverAndDecrement(ctx context.Context, documentID, userID string) error {
	access, err := e.store.Get(ctx, documentID, userID)
	if err != nil {
		if errors.Is(err, metadatastore.ErrNotFound) {
			return apperrors.New(apperrors.KindNoAccess, "no grant for document")
		}
		return fmt.Errorf("load access for recovery: %w", err)
	}
	if access.Revoked {
		return apperrors.New(apperrors.KindRevoked, "grant revoked")
	}

	used := access.EffectiveUsed()
	remaining := access.PrintQuota - used
	if remaining < 0 {
		remaining = 0
	}

	if bfErr := e.store.BackfillCanonicalFields(ctx, documentID, userID, access.PrintQuota, used); bfErr != nil {
		e.log.Warn("backfill canonical fields failed", zap.Error(bfErr))
	}

	if err := e.cache.SeedQuota(ctx, documentID, userID, int64(remaining)); err != nil {
		return fmt.Errorf("seed quota cache: %w", err)
	}

	outcome, _, err := e.cache.DecrementQuota(ctx, documentID, userID)
	if err != nil {
		return fmt.Errorf("re-execute decrement: %w", err)
	}
	if outcome == kvcache.DecrementDenied {
		return apperrors.New(apperrors.KindLimit, "print quota exhausted")
	}
	return nil
}

// consumeDurable is the fallback path used when the cache is
// unavailable at any transport boundary above.
func (e *Engine) consumeDurable(ctx context.Context, documentID, userID string) error {
	return e.store.ConsumeOptimistic(ctx, documentID, userID)
}
