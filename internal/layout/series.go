package layout

import "github.com/gosom/vectorprint/internal/models"

// SeriesDraw is one resolved series-number draw: its text and page
// baseline position, ready to hand to the PDF stamping layer. Letters
// is non-nil when the series specifies letterFontSizes, in which case
// the caller stamps Letters individually instead of Text as a whole.
type SeriesDraw struct {
	Text     string
	X, Y     float64 // page points, baseline origin
	FontSize float64
	Color    string
	Font     string
	Letters  []LetterDraw
}

// LetterDraw is one glyph of a per-letter series draw, already advanced
// past every glyph before it and offset per letterOffsets.
type LetterDraw struct {
	Ch       string
	X, Y     float64
	FontSize float64
}

// PlaceSeries resolves every (series, slot) draw for page p (0-based),
// given the fitted content box and object bounding size in source
// points. The series value at slot i on page p is
// n = p*repeatPerPage + i. ascentFn returns the embedded font's ascent
// at a given size; widthFn returns a single glyph's advance width at a
// given size. Both are backed by the caller's font-metric cache.
func PlaceSeries(series models.Series, p, repeatPerPage int, content ContentBox, objW, objH float64, ascentFn func(font string, size float64) float64, widthFn func(font string, ch rune, size float64) float64) []SeriesDraw {
	objectTopY := ObjectTopY(content, objH)
	ascent := ascentFn(series.Font, series.FontSize)

	draws := make([]SeriesDraw, 0, repeatPerPage)
	for i := 0; i < repeatPerPage; i++ {
		ratioSlot := series.Slots[0]
		if len(series.Slots) == repeatPerPage {
			ratioSlot = series.Slots[i]
		}

		n := int64(p*repeatPerPage + i)
		text := series.ValueAt(n)

		baselineYObj := ratioSlot.YRatio*objH + ascent
		drawX := content.X + ratioSlot.XRatio*objW*content.Scale
		drawY := objectTopY - baselineYObj*content.Scale

		draw := SeriesDraw{
			Text:     text,
			X:        Snap(drawX),
			Y:        Snap(drawY),
			FontSize: Snap(series.FontSize * content.Scale),
			Color:    defaultColor(series.Color),
			Font:     series.Font,
		}

		if len(series.LetterFontSizes) > 0 {
			draw.Letters = placeLetters(series, text, drawX, drawY, content.Scale, widthFn)
		}

		draws = append(draws, draw)
	}
	return draws
}

// placeLetters advances a cursor across text glyph-by-glyph, giving
// each letter its own font size (falling back to the series' base size
// past the end of letterFontSizes) and an optional per-letter baseline
// offset from letterOffsets. Both letterFontSizes and letterOffsets are
// expressed in the same source-space units as fontSize, so they get the
// same slotScale applied as everything else in the object's box.
func placeLetters(series models.Series, text string, startX, baseY, slotScale float64, widthFn func(font string, ch rune, size float64) float64) []LetterDraw {
	runes := []rune(text)
	letters := make([]LetterDraw, 0, len(runes))
	cursorX := startX
	for i, ch := range runes {
		size := series.FontSize
		if i < len(series.LetterFontSizes) {
			size = series.LetterFontSizes[i]
		}
		size *= slotScale

		y := baseY
		if i < len(series.LetterOffsets) {
			y += series.LetterOffsets[i] * slotScale
		}

		letters = append(letters, LetterDraw{
			Ch:       string(ch),
			X:        Snap(cursorX),
			Y:        Snap(y),
			FontSize: Snap(size),
		})

		cursorX += widthFn(series.Font, ch, size)
	}
	return letters
}

func defaultColor(c string) string {
	if c == "" {
		return "#000000"
	}
	return c
}
