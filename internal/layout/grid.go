package layout

import (
	"math"

	"github.com/gosom/vectorprint/internal/models"
)

// Rect is an axis-aligned rectangle in PDF points, origin bottom-left.
type Rect struct {
	X, Y, W, H float64
}

// Slot is one vertical tile of an A4 page where a cropped copy of the
// source is placed.
type Slot struct {
	Origin Rect // the slot's full rectangle
}

// SlotGrid computes the vertical stack of slots for repeatPerPage
// copies on one A4 page. When spacing collapses the usable area to
// zero or less, spacing is treated as zero.
func SlotGrid(repeatPerPage int, spacingPt float64) []Slot {
	usable := A4HeightPt - 2*SafeMarginPt
	g := spacingPt
	if usable-float64(repeatPerPage-1)*g <= 0 {
		g = 0
	}
	slotH := (usable - float64(repeatPerPage-1)*g) / float64(repeatPerPage)

	slots := make([]Slot, repeatPerPage)
	for i := 0; i < repeatPerPage; i++ {
		y := SafeMarginPt + float64(i)*(slotH+g)
		slots[i] = Slot{Origin: Rect{
			X: Snap(SafeMarginPt),
			Y: Snap(y),
			W: Snap(A4WidthPt - 2*SafeMarginPt),
			H: Snap(slotH),
		}}
	}
	return slots
}

// CropRect resolves a TicketCrop's ratios against the source page's
// point dimensions.
func CropRect(crop models.TicketCrop, srcW, srcH float64) Rect {
	return Rect{
		X: Snap(crop.XRatio * srcW),
		Y: Snap(crop.YRatio * srcH),
		W: Snap(crop.WidthRatio * srcW),
		H: Snap(crop.HeightRatio * srcH),
	}
}

// ClipBox converts a top-down crop rect into a PDF bottom-up clipping
// box: {left, bottom = srcH - cropY - cropH, right, top}.
func ClipBox(crop Rect, srcH float64) Rect {
	bottom := Snap(srcH - crop.Y - crop.H)
	return Rect{X: crop.X, Y: bottom, W: crop.W, H: crop.H}
}

// ContentBox is the sub-rectangle inside a slot actually occupied by
// the scaled cropped source, plus the uniform scale factor applied.
type ContentBox struct {
	Rect
	Scale float64
}

// FitContent computes the aspect-preserving, top-aligned placement of
// a cropW x cropH object inside a slot.
func FitContent(slot Slot, cropW, cropH float64) ContentBox {
	scale := math.Min(slot.Origin.W/cropW, slot.Origin.H/cropH)
	drawY := slot.Origin.Y + (slot.Origin.H - cropH*scale)
	return ContentBox{
		Rect: Rect{
			X: Snap(slot.Origin.X),
			Y: Snap(drawY),
			W: Snap(cropW * scale),
			H: Snap(cropH * scale),
		},
		Scale: Snap(scale),
	}
}

// ObjectTopY returns the page-space Y of the object's top edge, used
// as the origin for series baseline math:
// objectTopY = contentBottom + objH*slotScale.
func ObjectTopY(content ContentBox, objH float64) float64 {
	return Snap(content.Y + objH*content.Scale)
}
