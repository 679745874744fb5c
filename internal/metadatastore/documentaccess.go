package metadatastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/models"
)

// DocumentAccessRepository is the durable store for per-(document,user)
// print grants, and the fallback path the quota engine uses when the
// cache is unavailable.
type DocumentAccessRepository struct {
	db *sql.DB
}

func NewDocumentAccessRepository(db *sql.DB) *DocumentAccessRepository {
	return &DocumentAccessRepository{db: db}
}

// Get retrieves a grant by (documentID, userID).
func (r *DocumentAccessRepository) Get(ctx context.Context, documentID, userID string) (*models.DocumentAccess, error) {
	const q = `SELECT document_id, user_id, print_quota, prints_used, used_prints, revoked, last_print_at
		FROM document_access WHERE document_id = $1 AND user_id = $2`
	var a models.DocumentAccess
	err := r.db.QueryRowContext(ctx, q, documentID, userID).Scan(
		&a.DocumentID, &a.UserID, &a.PrintQuota, &a.PrintsUsed, &a.UsedPrints, &a.Revoked, &a.LastPrintAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document access: %w", err)
	}
	return &a, nil
}

// BackfillCanonicalFields lazily writes PrintQuota/PrintsUsed when a
// legacy record predates the canonical fields, without touching
// UsedPrints, which stays read-only once set.
func (r *DocumentAccessRepository) BackfillCanonicalFields(ctx context.Context, documentID, userID string, printQuota, printsUsed int) error {
	const q = `UPDATE document_access SET print_quota = $1, prints_used = $2 WHERE document_id = $3 AND user_id = $4`
	_, err := r.db.ExecContext(ctx, q, printQuota, printsUsed, documentID, userID)
	if err != nil {
		return fmt.Errorf("backfill document access: %w", err)
	}
	return nil
}

// IncrementUsed increments PrintsUsed and sets LastPrintAt=now, on the
// write-behind path after a successful cache decrement. This does not
// itself enforce the quota bound; the cache script already did.
func (r *DocumentAccessRepository) IncrementUsed(ctx context.Context, documentID, userID string) error {
	const q = `UPDATE document_access SET prints_used = prints_used + 1, last_print_at = NOW()
		WHERE document_id = $1 AND user_id = $2 AND revoked = FALSE`
	_, err := r.db.ExecContext(ctx, q, documentID, userID)
	if err != nil {
		return fmt.Errorf("increment prints_used: %w", err)
	}
	return nil
}

// ConsumeOptimistic is the durable fallback consume path: a single
// conditional UPDATE requiring revoked=false and
// prints_used < print_quota, incrementing prints_used and setting
// last_print_at, generalized from a numeric balance decrement to an
// integer counter with an explicit revoked guard.
func (r *DocumentAccessRepository) ConsumeOptimistic(ctx context.Context, documentID, userID string) error {
	const q = `UPDATE document_access
		SET prints_used = prints_used + 1, last_print_at = NOW()
		WHERE document_id = $1 AND user_id = $2 AND revoked = FALSE AND prints_used < print_quota`
	result, err := r.db.ExecContext(ctx, q, documentID, userID)
	if err != nil {
		return fmt.Errorf("consume optimistic: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		// Differentiate limit/revoked/no-access with a follow-up read.
		access, getErr := r.Get(ctx, documentID, userID)
		if getErr != nil {
			if errors.Is(getErr, ErrNotFound) {
				return apperrors.New(apperrors.KindNoAccess, "no grant for document")
			}
			return fmt.Errorf("differentiate consume failure: %w", getErr)
		}
		if access.Revoked {
			return apperrors.New(apperrors.KindRevoked, "grant revoked")
		}
		return apperrors.New(apperrors.KindLimit, "print quota exhausted")
	}
	return nil
}
