package layout

import "github.com/gosom/vectorprint/internal/models"

// WatermarkDraw is one resolved watermark placement.
type WatermarkDraw struct {
	Watermark models.Watermark
	X, Y      float64 // page points
}

// PlaceWatermark resolves a watermark's page-space position for one
// slot's content box. Object-relative watermarks replicate per slot
// with a top-down-to-bottom-up y-flip, since the watermark's
// position ratios are authored top-down but PDF space is bottom-up;
// absolute watermarks are placed once at their given point and ignore
// per-slot content boxes entirely (callers only invoke this once for
// those).
func PlaceWatermark(w models.Watermark, content ContentBox) WatermarkDraw {
	if w.RelativeTo != "object" {
		return WatermarkDraw{Watermark: w, X: Snap(w.Position.X), Y: Snap(w.Position.Y)}
	}
	posX := content.X + w.Position.X*content.W
	posY := content.Y + (1-w.Position.Y)*content.H
	return WatermarkDraw{Watermark: w, X: Snap(posX), Y: Snap(posY)}
}
