package metadatastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gosom/vectorprint/internal/models"
)

// PrintJobRepository is the durable store for PrintJob records.
type PrintJobRepository struct {
	db *sql.DB
}

// NewPrintJobRepository wraps db.
func NewPrintJobRepository(db *sql.DB) *PrintJobRepository {
	return &PrintJobRepository{db: db}
}

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("metadatastore: not found")

// Create inserts a new PrintJob.
func (r *PrintJobRepository) Create(ctx context.Context, job *models.PrintJob) error {
	metaJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	auditJSON, err := json.Marshal(job.Audit)
	if err != nil {
		return fmt.Errorf("marshal audit: %w", err)
	}
	var outputJSON, errorJSON []byte
	if job.Output != nil {
		if outputJSON, err = json.Marshal(job.Output); err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
	}
	if job.Error != nil {
		if errorJSON, err = json.Marshal(job.Error); err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
	}

	const q = `INSERT INTO print_jobs
		(id, owner_id, document_id, source_key, metadata, mac, status, progress, total_pages, output, error, audit, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err = r.db.ExecContext(ctx, q, job.ID, job.OwnerID, job.DocumentID, job.SourceKey,
		metaJSON, job.MAC, job.Status, job.Progress, job.TotalPages, nullableJSON(outputJSON), nullableJSON(errorJSON),
		auditJSON, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create print job: %w", err)
	}
	return nil
}

// Get retrieves a PrintJob by id.
func (r *PrintJobRepository) Get(ctx context.Context, id string) (*models.PrintJob, error) {
	const q = `SELECT id, owner_id, document_id, source_key, metadata, mac, status, progress, total_pages,
		output, error, audit, created_at, updated_at FROM print_jobs WHERE id = $1`
	return scanPrintJob(r.db.QueryRowContext(ctx, q, id))
}

// Update persists the full mutable state of job (progress, status,
// output, error, audit). Called by batch/merge handlers after each
// state transition.
func (r *PrintJobRepository) Update(ctx context.Context, job *models.PrintJob) error {
	auditJSON, err := json.Marshal(job.Audit)
	if err != nil {
		return fmt.Errorf("marshal audit: %w", err)
	}
	var outputJSON, errorJSON []byte
	if job.Output != nil {
		if outputJSON, err = json.Marshal(job.Output); err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
	}
	if job.Error != nil {
		if errorJSON, err = json.Marshal(job.Error); err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
	}

	const q = `UPDATE print_jobs SET status=$1, progress=$2, output=$3, error=$4, audit=$5, updated_at=$6 WHERE id=$7`
	_, err = r.db.ExecContext(ctx, q, job.Status, job.Progress, nullableJSON(outputJSON), nullableJSON(errorJSON), auditJSON, job.UpdatedAt, job.ID)
	if err != nil {
		return fmt.Errorf("update print job: %w", err)
	}
	return nil
}

// SetExpired sets status=EXPIRED and clears output, used by the reaper.
func (r *PrintJobRepository) SetExpired(ctx context.Context, id string) error {
	const q = `UPDATE print_jobs SET status=$1, output=NULL, updated_at=NOW() WHERE id=$2`
	_, err := r.db.ExecContext(ctx, q, models.JobExpired, id)
	if err != nil {
		return fmt.Errorf("expire print job: %w", err)
	}
	return nil
}

// ExpiredOutputCandidates returns RUNNING or DONE jobs whose output has
// passed its expiry, for reaper query 1 and 3.
func (r *PrintJobRepository) ExpiredOutputCandidates(ctx context.Context, statuses []models.JobStatus, now time.Time) ([]*models.PrintJob, error) {
	const q = `SELECT id, owner_id, document_id, source_key, metadata, mac, status, progress, total_pages,
		output, error, audit, created_at, updated_at FROM print_jobs
		WHERE status = ANY($1) AND output IS NOT NULL AND (output->>'expiresAt')::timestamptz <= $2`
	return r.queryJobs(ctx, q, pqStatusArray(statuses), now)
}

// StaleRunningCandidates returns RUNNING jobs with no output whose
// updated_at is at or before staleBefore, for reaper query 2.
func (r *PrintJobRepository) StaleRunningCandidates(ctx context.Context, staleBefore time.Time) ([]*models.PrintJob, error) {
	const q = `SELECT id, owner_id, document_id, source_key, metadata, mac, status, progress, total_pages,
		output, error, audit, created_at, updated_at FROM print_jobs
		WHERE status = $1 AND output IS NULL AND updated_at <= $2`
	return r.queryJobs(ctx, q, models.JobRunning, staleBefore)
}

// StaleFailedCandidates returns FAILED jobs older than cutoff, for
// reaper query 4 (archive).
func (r *PrintJobRepository) StaleFailedCandidates(ctx context.Context, cutoff time.Time) ([]*models.PrintJob, error) {
	const q = `SELECT id, owner_id, document_id, source_key, metadata, mac, status, progress, total_pages,
		output, error, audit, created_at, updated_at FROM print_jobs
		WHERE status = $1 AND updated_at <= $2`
	return r.queryJobs(ctx, q, models.JobFailed, cutoff)
}

func (r *PrintJobRepository) queryJobs(ctx context.Context, q string, args ...any) ([]*models.PrintJob, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query print jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.PrintJob
	for rows.Next() {
		job, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPrintJob(row scannable) (*models.PrintJob, error) {
	var (
		j          models.PrintJob
		metaJSON   []byte
		auditJSON  []byte
		outputJSON sql.NullString
		errorJSON  sql.NullString
	)
	err := row.Scan(&j.ID, &j.OwnerID, &j.DocumentID, &j.SourceKey, &metaJSON, &j.MAC, &j.Status,
		&j.Progress, &j.TotalPages, &outputJSON, &errorJSON, &auditJSON, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan print job: %w", err)
	}

	if err := json.Unmarshal(metaJSON, &j.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(auditJSON, &j.Audit); err != nil {
		return nil, fmt.Errorf("unmarshal audit: %w", err)
	}
	if outputJSON.Valid {
		var out models.JobOutput
		if err := json.Unmarshal([]byte(outputJSON.String), &out); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
		j.Output = &out
	}
	if errorJSON.Valid {
		var jerr models.JobError
		if err := json.Unmarshal([]byte(errorJSON.String), &jerr); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
		j.Error = &jerr
	}
	return &j, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func pqStatusArray(statuses []models.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
