package layout

import (
	"fmt"
	"regexp"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/models"
)

// colorPattern matches hex, rgb(), or a bare CSS color name; the same
// pattern validates both series and watermark colors.
var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|rgb\([\d,\s]+\)|[a-zA-Z]+)$`)

// EnqueueBounds carries the configuration-derived limits validated at
// enqueue time, beyond the metadata's own shape invariants.
type EnqueueBounds struct {
	MaxPages     int
	MaxSeriesEnd int64
}

// Validate checks a VectorMetadata against its shape and bound
// invariants. Every failure returns a KindValidation error; none of
// these are fatal to an in-flight job, since validation always runs
// before admission.
func Validate(m models.VectorMetadata, bounds EnqueueBounds) error {
	if err := validateRatios(m.TicketCrop); err != nil {
		return err
	}
	if err := validateLayout(m.Layout, bounds); err != nil {
		return err
	}
	if m.ColorMode != "" && m.ColorMode != models.ColorRGB && m.ColorMode != models.ColorCMYK {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("colorMode %q must be RGB or CMYK", m.ColorMode))
	}
	for _, s := range m.Series {
		if err := validateSeries(s, m.Layout, bounds); err != nil {
			return err
		}
	}
	for _, w := range m.Watermarks {
		if err := validateWatermark(w); err != nil {
			return err
		}
	}
	return nil
}

func validateRatios(c models.TicketCrop) error {
	if c.PageIndex < 0 {
		return apperrors.New(apperrors.KindValidation, "ticketCrop.pageIndex must be >= 0")
	}
	if c.WidthRatio <= 0 || c.WidthRatio > 1 {
		return apperrors.New(apperrors.KindValidation, "ticketCrop.widthRatio must be in (0,1]")
	}
	if c.HeightRatio <= 0 || c.HeightRatio > 1 {
		return apperrors.New(apperrors.KindValidation, "ticketCrop.heightRatio must be in (0,1]")
	}
	if c.XRatio < 0 || c.YRatio < 0 {
		return apperrors.New(apperrors.KindValidation, "ticketCrop ratios must be non-negative")
	}
	return nil
}

func validateLayout(l models.Layout, bounds EnqueueBounds) error {
	if l.PageSize != "A4" {
		return apperrors.New(apperrors.KindValidation, "layout.pageSize must be A4")
	}
	if l.TotalPages < 1 {
		return apperrors.New(apperrors.KindValidation, "layout.totalPages must be >= 1")
	}
	if bounds.MaxPages > 0 && l.TotalPages > bounds.MaxPages {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("layout.totalPages %d exceeds max %d", l.TotalPages, bounds.MaxPages))
	}
	if l.RepeatPerPage < 1 || l.RepeatPerPage > 16 {
		return apperrors.New(apperrors.KindValidation, "layout.repeatPerPage must be in [1,16]")
	}
	if l.SlotSpacingPt < 0 {
		return apperrors.New(apperrors.KindValidation, "layout.slotSpacingPt must be >= 0")
	}
	return nil
}

func validateSeries(s models.Series, l models.Layout, bounds EnqueueBounds) error {
	if s.Step < 1 {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("series %q: step must be >= 1", s.ID))
	}
	if s.FontSize < 6 || s.FontSize > 72 {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("series %q: fontSize must be in [6,72]", s.ID))
	}
	if len(s.Slots) != 1 && len(s.Slots) != l.RepeatPerPage {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("series %q: slots length must be 1 or repeatPerPage", s.ID))
	}
	if s.Color != "" && !colorPattern.MatchString(s.Color) {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("series %q: invalid color %q", s.ID, s.Color))
	}
	if bounds.MaxSeriesEnd > 0 {
		if end := s.End(l.TotalPages, l.RepeatPerPage); end > bounds.MaxSeriesEnd {
			return apperrors.New(apperrors.KindValidation, fmt.Sprintf("series %q: end %d exceeds max %d", s.ID, end, bounds.MaxSeriesEnd))
		}
	}
	return nil
}

func validateWatermark(w models.Watermark) error {
	if w.Type != models.WatermarkText && w.Type != models.WatermarkSVG {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("watermark %q: type must be text or svg", w.ID))
	}
	if w.Opacity < 0 || w.Opacity > 1 {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("watermark %q: opacity must be in [0,1]", w.ID))
	}
	if !isFinite(w.Rotate) || !isFinite(w.Position.X) || !isFinite(w.Position.Y) {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("watermark %q: rotate/position must be finite", w.ID))
	}
	if w.Color != "" && !colorPattern.MatchString(w.Color) {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("watermark %q: invalid color %q", w.ID, w.Color))
	}
	if w.Type == models.WatermarkText && w.Value == "" {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("watermark %q: text watermark requires value", w.ID))
	}
	if w.Type == models.WatermarkSVG && w.SVGPath == "" {
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("watermark %q: svg watermark requires svgPath", w.ID))
	}
	return nil
}

func isFinite(f float64) bool {
	return f == f && f < 1e308 && f > -1e308
}
