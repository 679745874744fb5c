package layout

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfont "github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/gosom/vectorprint/internal/apperrors"
)

// pdfConf returns a relaxed-validation pdfcpu configuration, so
// source documents of uncertain provenance don't fail hard on minor
// spec violations.
func pdfConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// AssertPDFHeader enforces the "%PDF-" header check required before
// any source bytes are trusted as a PDF.
func AssertPDFHeader(b []byte) error {
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		return apperrors.New(apperrors.KindBadPDFHeader, "bytes do not begin with %PDF-")
	}
	return nil
}

// pageDimsPt returns the width/height in points of page pageIndex
// (0-based) of the PDF at path.
func pageDimsPt(path string, pageIndex int) (w, h float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	dims, err := api.PageDims(f, pdfConf())
	if err != nil {
		return 0, 0, fmt.Errorf("read page dimensions: %w", err)
	}
	if pageIndex < 0 || pageIndex >= len(dims) {
		return 0, 0, apperrors.New(apperrors.KindMissingPages, fmt.Sprintf("page index %d out of range (0..%d)", pageIndex, len(dims)-1))
	}
	return dims[pageIndex].Width, dims[pageIndex].Height, nil
}

// cropSourcePage crops srcPath's pageIndex page down to clip and writes
// a single-page PDF at outPath. pdfcpu's page-level crop is the only
// content-stream operation performed directly on the source; all
// remaining placement work happens by repeated watermark-stamping of
// the resulting single-page PDF (see stampPDFOnto), never by hand-built
// content streams.
func cropSourcePage(srcPath string, pageIndex int, clip Rect, outPath string) error {
	desc := fmt.Sprintf("dim: %s %s, pos: bl, offset: %s %s", f(clip.W), f(clip.H), f(clip.X), f(clip.Y))
	selected := []string{fmt.Sprintf("%d", pageIndex+1)}
	if err := api.CropFile(srcPath, outPath, selected, desc, pdfConf()); err != nil {
		return fmt.Errorf("crop source page: %w", err)
	}
	return nil
}

// blankA4 writes an empty A4-sized PDF with pageCount pages at path,
// used as the canvas each output page's slots are stamped onto. It is
// assembled directly rather than through pdfcpu's JSON "create"
// pipeline, so the MediaBox every pos:bl offset resolves against is
// guaranteed to be exactly A4WidthPt x A4HeightPt.
func blankA4(path string, pageCount int) error {
	if pageCount < 1 {
		pageCount = 1
	}

	var buf bytes.Buffer
	offsets := make([]int, 0, pageCount+3)

	buf.WriteString("%PDF-1.4\n")

	writeObj := func(n int, body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	kids := make([]string, pageCount)
	for i := 0; i < pageCount; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", i+4)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pageCount))
	writeObj(3, "<< /Length 0 >>\nstream\nendstream")
	for i := 0; i < pageCount; i++ {
		writeObj(i+4, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << >> /Contents 3 0 R >>",
			f(A4WidthPt), f(A4HeightPt),
		))
	}

	total := pageCount + 4 // objects 1..pageCount+3 plus the free entry at 0
	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", total)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n", total, xrefStart)
	buf.WriteString("%%EOF\n")

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write blank canvas: %w", err)
	}
	return nil
}

// CenterAnchorOffset converts an intended bottom-left corner point
// (x, y) for a w x h stamped object into the offset pdfcpu's pos:bl
// placement actually expects: pdfcpu always centers a stamped
// object's own bounding box on the pos+offset point, regardless of
// pos, rather than aligning the box's own corner to it.
func CenterAnchorOffset(x, y, w, h float64) (float64, float64) {
	return x + w/2, y + h/2
}

// stampPDFOnto stamps wmPath's single page onto every page in
// selectedPages of basePath, in place, positioned per desc.
func stampPDFOnto(basePath, wmPath, desc string, selectedPages []string, onTop bool) error {
	if err := api.AddPDFWatermarksFile(basePath, "", selectedPages, onTop, false, wmPath, desc, pdfConf()); err != nil {
		return fmt.Errorf("stamp pdf watermark: %w", err)
	}
	return nil
}

// textCenterOffset returns the (dx, dy) pdfcpu needs added to a text
// stamp's intended baseline-left point so its own glyph bounding box
// (from pdfcpu's core-14 AFM metrics) centers there instead of
// pdfcpu's default page-anchor centering shifting it away.
func textCenterOffset(fontName, text string, size float64) (dx, dy float64) {
	desc := pdfont.Descriptor(fontName)
	dy = float64(desc.Ascent+desc.Descent) / coreFontUnitsPerEm * size / 2

	var width float64
	for _, ch := range text {
		width += float64(pdfont.CharWidth(fontName, ch)) / coreFontUnitsPerEm * size
	}
	dx = width / 2
	return dx, dy
}

// stampText stamps a text string onto basePath at an absolute
// bottom-left-anchored offset.
func stampText(basePath, text string, x, y, fontSize float64, color, font string, selectedPages []string) error {
	cx, cy := textCenterOffset(font, text, fontSize)
	desc := fmt.Sprintf("font:%s, points:%s, pos:bl, offset:%s %s, color:%s", font, f(fontSize), f(x+cx), f(y+cy), color)
	if err := api.AddTextWatermarksFile(basePath, "", selectedPages, true, false, text, desc, pdfConf()); err != nil {
		return fmt.Errorf("stamp text watermark: %w", err)
	}
	return nil
}

// stampRotatedText is stampText with an explicit rotation, used for
// diagonal text watermarks (series numbers are never rotated).
func stampRotatedText(basePath, text string, x, y, fontSize, rotate, opacity float64, color, font string, selectedPages []string) error {
	cx, cy := textCenterOffset(font, text, fontSize)
	desc := fmt.Sprintf("font:%s, points:%s, pos:bl, offset:%s %s, rotation:%s, opacity:%s, color:%s",
		font, f(fontSize), f(x+cx), f(y+cy), f(rotate), f(opacity), color)
	if err := api.AddTextWatermarksFile(basePath, "", selectedPages, true, false, text, desc, pdfConf()); err != nil {
		return fmt.Errorf("stamp rotated text watermark: %w", err)
	}
	return nil
}

func tempPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// MergePages concatenates the single-page PDFs at pagePaths, in the
// given order, into one multi-page PDF at outPath. Callers are
// responsible for ordering pagePaths by ascending pageIndex: page
// order in the final artifact equals ascending pageIndex regardless
// of batch completion order.
func MergePages(pagePaths []string, outPath string) error {
	if len(pagePaths) == 0 {
		return apperrors.New(apperrors.KindMissingPages, "no pages to merge")
	}
	if err := api.MergeCreateFile(pagePaths, outPath, false, pdfConf()); err != nil {
		return fmt.Errorf("merge pages: %w", err)
	}
	return nil
}
