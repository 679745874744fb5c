// Package models holds the domain entities shared across the scheduler,
// quota engine, layout engine, and metadata store: PrintJob,
// DocumentAccess, Document, and the VectorMetadata render specification.
package models

import "time"

// JobStatus is a PrintJob's position in the PENDING -> RUNNING ->
// {DONE, FAILED} -> EXPIRED state machine.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobRunning JobStatus = "RUNNING"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
	JobExpired JobStatus = "EXPIRED"
)

// Audit event names, referenced verbatim by the scheduler and reaper.
const (
	EventJobCreated                     = "JOB_CREATED"
	EventJobEnqueued                    = "JOB_ENQUEUED"
	EventPageRendered                   = "PAGE_RENDERED"
	EventJobDone                        = "JOB_DONE"
	EventMergeTime                      = "MERGE_TIME"
	EventJobFailed                      = "JOB_FAILED"
	EventRunningJobExpiredOutputDeleted = "RUNNING_JOB_EXPIRED_AND_OUTPUT_DELETED"
	EventDoneJobExpiredOutputDeleted    = "DONE_JOB_EXPIRED_AND_OUTPUT_DELETED"
	EventFailedJobArchived              = "FAILED_JOB_ARCHIVED"
)

// AuditEvent is one entry in a PrintJob's append-only timeline. Modeled
// as a flat ordered log of value records rather than a graph, since the
// job only ever references its own timeline.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	Event     string         `json:"event" bson:"event"`
	Details   map[string]any `json:"details,omitempty" bson:"details,omitempty"`
}

// JobOutput is the materialized render artifact. Present only in DONE,
// or briefly during RUNNING for pull-to-device fetches.
type JobOutput struct {
	Key       string    `json:"key,omitempty" bson:"key,omitempty"`
	URL       string    `json:"url,omitempty" bson:"url,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
}

// JobError carries the terminal failure reason for a FAILED job.
type JobError struct {
	Message string `json:"message" bson:"message"`
	Stack   string `json:"stack,omitempty" bson:"stack,omitempty"`
}

// PrintJob is a render request moving through admission, fan-out,
// rendering, and merge.
type PrintJob struct {
	ID         string         `json:"id" bson:"_id"`
	OwnerID    string         `json:"ownerId" bson:"ownerId"`
	DocumentID string         `json:"documentId" bson:"documentId"`
	SourceKey  string         `json:"sourceKey" bson:"sourceKey"`
	Metadata   VectorMetadata `json:"metadata" bson:"metadata"`
	MAC        string         `json:"mac" bson:"mac"`
	Status     JobStatus      `json:"status" bson:"status"`
	Progress   int            `json:"progress" bson:"progress"`
	TotalPages int            `json:"totalPages" bson:"totalPages"`
	Output     *JobOutput     `json:"output,omitempty" bson:"output,omitempty"`
	Error      *JobError      `json:"error,omitempty" bson:"error,omitempty"`
	Audit      []AuditEvent   `json:"audit" bson:"audit"`
	CreatedAt  time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// AppendAudit appends an audit event and bumps UpdatedAt, mirroring the
// append-only design note: the job never mutates its own history, only
// extends it.
func (j *PrintJob) AppendAudit(event string, details map[string]any) {
	j.Audit = append(j.Audit, AuditEvent{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Details:   details,
	})
	j.UpdatedAt = time.Now().UTC()
}

// DocumentAccess is a user's print grant against a document.
type DocumentAccess struct {
	DocumentID string `json:"documentId" bson:"documentId"`
	UserID     string `json:"userId" bson:"userId"`
	PrintQuota int    `json:"printQuota" bson:"printQuota"`
	PrintsUsed int    `json:"printsUsed" bson:"printsUsed"`
	// UsedPrints is the legacy duplicate field the source carried
	// alongside PrintsUsed. Canonical policy (spec design note, Open
	// Questions): PrintsUsed is the only field ever written; UsedPrints
	// is read-only input to cache-miss backfill computations, for
	// grants that predate the canonical field.
	UsedPrints  int        `json:"usedPrints,omitempty" bson:"usedPrints,omitempty"`
	Revoked     bool       `json:"revoked" bson:"revoked"`
	LastPrintAt *time.Time `json:"lastPrintAt,omitempty" bson:"lastPrintAt,omitempty"`
}

// EffectiveUsed returns the greater of PrintsUsed and the legacy
// UsedPrints field, used only when backfilling a cache-miss recovery.
func (d *DocumentAccess) EffectiveUsed() int {
	if d.UsedPrints > d.PrintsUsed {
		return d.UsedPrints
	}
	return d.PrintsUsed
}

// ColorMode is a Document's color space.
type ColorMode string

const (
	ColorRGB  ColorMode = "RGB"
	ColorCMYK ColorMode = "CMYK"
)

// Document describes a stored source artifact.
type Document struct {
	ID            string    `json:"id" bson:"_id"`
	Title         string    `json:"title" bson:"title"`
	BlobKey       string    `json:"blobKey" bson:"blobKey"`
	MIME          string    `json:"mime" bson:"mime"`
	ColorMode     ColorMode `json:"colorMode" bson:"colorMode"`
	ExportVersion int       `json:"exportVersion" bson:"exportVersion"`
}
