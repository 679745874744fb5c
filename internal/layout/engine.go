package layout

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/font"

	"github.com/gosom/vectorprint/internal/apperrors"
	"github.com/gosom/vectorprint/internal/models"
)

// coreFontUnitsPerEm is the glyph-space scale pdfcpu's core-14 AFM
// metrics are expressed in, per the Adobe Font Metrics spec.
const coreFontUnitsPerEm = 1000.0

// Engine is the deterministic vector layout engine: a pure function of
// (VectorMetadata, source bytes) to single-page PDF bytes, with the
// SVG parse cache and font-metric cache as explicit collaborators
// rather than package-level state.
type Engine struct {
	Converter Converter
	SVGCache  *ContentCache
	FontCache *ContentCache
	TempDir   string
}

func NewEngine(converter Converter, tempDir string) *Engine {
	return &Engine{
		Converter: converter,
		SVGCache:  NewContentCache(256),
		FontCache: NewContentCache(64),
		TempDir:   tempDir,
	}
}

// RenderPage renders page p (0-based, within [0, totalPages)) of
// metadata against sourceBytes, producing a single A4 PDF page's
// bytes with all slots, watermarks, and series numbers stamped.
func (e *Engine) RenderPage(ctx context.Context, metadata models.VectorMetadata, sourceBytes []byte, p int) ([]byte, error) {
	workdir, err := os.MkdirTemp(e.TempDir, "vectorprint-page-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	// Resolve the source to PDF bytes, converting SVG once per unique
	// content via the cache.
	srcPDFPath := tempPath(workdir, "source.pdf")
	if err := e.resolveSource(ctx, sourceBytes, srcPDFPath); err != nil {
		return nil, err
	}

	crop := metadata.TicketCrop
	srcW, srcH, err := pageDimsPt(srcPDFPath, crop.PageIndex)
	if err != nil {
		return nil, err
	}

	cropRectPt := CropRect(crop, srcW, srcH)
	clip := ClipBox(cropRectPt, srcH)
	slots := SlotGrid(metadata.Layout.RepeatPerPage, metadata.Layout.SlotSpacingPt)

	// Crop the source page exactly once; every slot stamps this same
	// single-page PDF onto the canvas.
	croppedPath := tempPath(workdir, "cropped.pdf")
	if err := cropSourcePage(srcPDFPath, crop.PageIndex, clip, croppedPath); err != nil {
		return nil, err
	}

	canvasPath := tempPath(workdir, "canvas.pdf")
	if err := blankA4(canvasPath, 1); err != nil {
		return nil, err
	}

	contentBoxes := make([]ContentBox, len(slots))
	for i, slot := range slots {
		content := FitContent(slot, cropRectPt.W, cropRectPt.H)
		contentBoxes[i] = content

		cx, cy := CenterAnchorOffset(content.X, content.Y, content.W, content.H)
		desc := fmt.Sprintf("scale:%s abs, pos:bl, offset:%s %s", f(content.Scale), f(cx), f(cy))
		if err := stampPDFOnto(canvasPath, croppedPath, desc, []string{"1"}, true); err != nil {
			return nil, fmt.Errorf("stamp slot %d: %w", i, err)
		}
	}

	for _, w := range metadata.Watermarks {
		if err := e.stampWatermark(ctx, canvasPath, w, contentBoxes, workdir); err != nil {
			return nil, err
		}
	}

	for _, s := range metadata.Series {
		for i, content := range contentBoxes {
			draws := PlaceSeries(s, p, metadata.Layout.RepeatPerPage, content, cropRectPt.W, cropRectPt.H, e.fontAscent, e.fontWidth)
			// PlaceSeries returns one draw per physical slot already;
			// only the i-th belongs to this content box.
			if i >= len(draws) {
				continue
			}
			d := draws[i]
			if len(d.Letters) > 0 {
				for li, letter := range d.Letters {
					if err := stampText(canvasPath, letter.Ch, letter.X, letter.Y, letter.FontSize, d.Color, d.Font, []string{"1"}); err != nil {
						return nil, fmt.Errorf("stamp series %s slot %d letter %d: %w", s.ID, i, li, err)
					}
				}
				continue
			}
			if err := stampText(canvasPath, d.Text, d.X, d.Y, d.FontSize, d.Color, d.Font, []string{"1"}); err != nil {
				return nil, fmt.Errorf("stamp series %s slot %d: %w", s.ID, i, err)
			}
		}
	}

	out, err := os.ReadFile(canvasPath)
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	if err := AssertPDFHeader(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) resolveSource(ctx context.Context, sourceBytes []byte, outPath string) error {
	switch {
	case len(sourceBytes) >= 5 && string(sourceBytes[:5]) == "%PDF-":
		return os.WriteFile(outPath, sourceBytes, 0o644)
	case containsSVGTag(sourceBytes):
		pdfBytes, err := e.svgToPDF(ctx, sourceBytes)
		if err != nil {
			return err
		}
		return os.WriteFile(outPath, pdfBytes, 0o644)
	default:
		return apperrors.New(apperrors.KindBadPDFHeader, "source is neither PDF nor SVG")
	}
}

func (e *Engine) svgToPDF(ctx context.Context, svg []byte) ([]byte, error) {
	key := KeyOf(svg)
	if cached, ok := e.SVGCache.Get(key); ok {
		return cached.([]byte), nil
	}

	normalized, err := Normalize(svg)
	if err != nil {
		return nil, err
	}
	pdfBytes, err := e.Converter.Convert(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if err := AssertPDFHeader(pdfBytes); err != nil {
		return nil, err
	}

	e.SVGCache.Put(key, pdfBytes)
	return pdfBytes, nil
}

func (e *Engine) stampWatermark(ctx context.Context, canvasPath string, w models.Watermark, boxes []ContentBox, workdir string) error {
	switch w.Type {
	case models.WatermarkText:
		return e.stampTextWatermark(canvasPath, w, boxes)
	case models.WatermarkSVG:
		return e.stampSVGWatermark(ctx, canvasPath, w, boxes, workdir)
	default:
		return apperrors.New(apperrors.KindValidation, fmt.Sprintf("unknown watermark type %q", w.Type))
	}
}

func (e *Engine) stampTextWatermark(canvasPath string, w models.Watermark, boxes []ContentBox) error {
	if w.RelativeTo != "object" {
		d := PlaceWatermark(w, ContentBox{})
		return stampRotatedText(canvasPath, w.Value, d.X, d.Y, w.FontSize, w.Rotate, w.Opacity, defaultColor(w.Color), w.FontFamily, []string{"1"})
	}
	for _, box := range boxes {
		d := PlaceWatermark(w, box)
		if err := stampRotatedText(canvasPath, w.Value, d.X, d.Y, w.FontSize, w.Rotate, w.Opacity, defaultColor(w.Color), w.FontFamily, []string{"1"}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) stampSVGWatermark(ctx context.Context, canvasPath string, w models.Watermark, boxes []ContentBox, workdir string) error {
	sanitized, err := SanitizeWatermarkSVG([]byte(w.SVGPath))
	if err != nil {
		return err
	}
	if err := AssertForbiddenRefs(sanitized); err != nil {
		return err
	}
	normalized, err := Normalize(sanitized)
	if err != nil {
		return err
	}
	pdfBytes, err := e.Converter.Convert(ctx, normalized)
	if err != nil {
		return err
	}

	wmPath := tempPath(workdir, fmt.Sprintf("wm-%s.pdf", w.ID))
	if err := os.WriteFile(wmPath, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("write watermark pdf: %w", err)
	}

	scale := w.Scale
	if scale == 0 {
		scale = 1
	}

	// wmW/wmH are the watermark PDF's own page dims before scale;
	// CenterAnchorOffset needs the final rendered size to compensate
	// for pdfcpu centering the stamped object on pos+offset.
	wmW, wmH, err := pageDimsPt(wmPath, 0)
	if err != nil {
		return fmt.Errorf("read watermark pdf dims: %w", err)
	}

	if w.RelativeTo != "object" {
		cx, cy := CenterAnchorOffset(w.Position.X, w.Position.Y, wmW*scale, wmH*scale)
		desc := fmt.Sprintf("scale:%s abs, pos:bl, offset:%s %s, rotation:%s, opacity:%s",
			f(scale), f(cx), f(cy), f(w.Rotate), f(w.Opacity))
		return stampPDFOnto(canvasPath, wmPath, desc, []string{"1"}, true)
	}
	for _, box := range boxes {
		d := PlaceWatermark(w, box)
		cx, cy := CenterAnchorOffset(d.X, d.Y, wmW*scale*box.Scale, wmH*scale*box.Scale)
		desc := fmt.Sprintf("scale:%s abs, pos:bl, offset:%s %s, rotation:%s, opacity:%s",
			f(scale*box.Scale), f(cx), f(cy), f(w.Rotate), f(w.Opacity))
		if err := stampPDFOnto(canvasPath, wmPath, desc, []string{"1"}, true); err != nil {
			return err
		}
	}
	return nil
}

// fontAscent returns fontName's ascent at a given size, read from
// pdfcpu's core-14 AFM font descriptor and cached by (font, size).
func (e *Engine) fontAscent(fontName string, size float64) float64 {
	key := fmt.Sprintf("a:%s:%g", fontName, size)
	if cached, ok := e.FontCache.Get(key); ok {
		return cached.(float64)
	}
	ascent := float64(font.Descriptor(fontName).Ascent) / coreFontUnitsPerEm * size
	e.FontCache.Put(key, ascent)
	return ascent
}

// fontWidth returns a single glyph's advance width in fontName at a
// given size, read from pdfcpu's core-14 AFM width table and cached by
// (font, glyph, size). Used to accumulate the cursor across a
// per-letter series draw.
func (e *Engine) fontWidth(fontName string, ch rune, size float64) float64 {
	key := fmt.Sprintf("w:%s:%d:%g", fontName, ch, size)
	if cached, ok := e.FontCache.Get(key); ok {
		return cached.(float64)
	}
	width := float64(font.CharWidth(fontName, ch)) / coreFontUnitsPerEm * size
	e.FontCache.Put(key, width)
	return width
}

func containsSVGTag(b []byte) bool {
	const needle = "<svg"
	for i := 0; i+len(needle) <= len(b); i++ {
		if string(b[i:i+len(needle)]) == needle {
			return true
		}
	}
	return false
}
