package metadatastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gosom/vectorprint/internal/models"
)

// DocumentRepository is the durable store for stored-artifact metadata.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get retrieves a Document by id, used by the scheduler's batch handler to resolve
// a "document:{id}" source reference to a blob key.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	const q = `SELECT id, title, blob_key, mime, color_mode, export_version FROM documents WHERE id = $1`
	var d models.Document
	err := r.db.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.Title, &d.BlobKey, &d.MIME, &d.ColorMode, &d.ExportVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// BumpExportVersion increments ExportVersion, invalidating any cached
// materialized export for this document.
func (r *DocumentRepository) BumpExportVersion(ctx context.Context, id string) error {
	const q = `UPDATE documents SET export_version = export_version + 1 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("bump export version: %w", err)
	}
	return nil
}
