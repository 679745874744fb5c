// Package tasks defines the asynq task type constants and wire payloads
// for the render pipeline's batch/merge fan-out.
package tasks

const (
	TypeRenderBatch = "vector:render:batch"
	TypeRenderMerge = "vector:render:merge"
	TypeHealthCheck = "health:check"
)

const (
	PriorityMerge = "merge"
	PriorityBatch = "batch"
)

// BatchPayload is the child batch task's input: render pages
// [StartPage, EndPage) of PrintJobID. DocumentID travels alongside the
// job id so the handler can log and key blob storage without a
// separate lookup.
type BatchPayload struct {
	PrintJobID string `json:"printJobId"`
	DocumentID string `json:"documentId"`
	StartPage  int    `json:"startPage"`
	EndPage    int    `json:"endPage"`
	TotalPages int    `json:"totalPages"`
	BatchIndex int    `json:"batchIndex"`
	BatchCount int    `json:"batchCount"`
}

// RenderedPage is one page's output, base64-encoded single-page PDF
// bytes keyed by its absolute page index.
type RenderedPage struct {
	PageIndex int    `json:"pageIndex"`
	PDFBase64 string `json:"pdfBase64"`
}

// BatchResult is the child batch task's return value.
type BatchResult struct {
	Skipped bool           `json:"skipped,omitempty"`
	Pages   []RenderedPage `json:"pages,omitempty"`
}

// MergePayload is the parent merge task's input.
type MergePayload struct {
	PrintJobID string `json:"printJobId"`
	DocumentID string `json:"documentId"`
}

// MergeResult is the parent merge task's return value.
type MergeResult struct {
	Skipped bool   `json:"skipped,omitempty"`
	OK      bool   `json:"ok,omitempty"`
	Key     string `json:"key,omitempty"`
}
