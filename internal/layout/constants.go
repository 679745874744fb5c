// Package layout implements the deterministic vector layout engine: a
// pure transformation from (VectorMetadata, source bytes) to A4 PDF
// bytes with pixel-stable placement of cropped content, watermarks,
// and serial numbers. Geometry (this file, grid.go) is plain Go and
// independently testable against golden-render snapshots; PDF assembly
// (pdf.go) delegates all page/content-stream writing to pdfcpu rather
// than a custom PDF writer.
package layout

import "math"

// A4 dimensions in points, fixed regardless of source page size.
const (
	A4WidthPt    = 595.28
	A4HeightPt   = 841.89
	SafeMarginPt = 28.35
)

// Snap rounds v to three decimal places, the coordinate-snapping rule
// every placement computation in this package uses to keep renders
// reproducible across runs.
func Snap(v float64) float64 {
	return math.Round(v*1000) / 1000
}
