package layout

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gosom/vectorprint/internal/apperrors"
)

// forbiddenPatterns lists the SVG constructs that make a watermark or
// content SVG untrusted: any match is fatal, since scripts, external
// references, and embedded images all open avenues to leak render-host
// state or fetch outside resources during conversion.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[\s>]`),
	regexp.MustCompile(`(?is)<foreignobject[\s>]`),
	regexp.MustCompile(`(?is)<image[\s>]`),
	regexp.MustCompile(`(?is)<use[\s>]`),
	regexp.MustCompile(`(?is)\bhref\s*=`),
	regexp.MustCompile(`(?is)\bxlink:href\s*=`),
	regexp.MustCompile(`(?is)url\s*\(`),
	regexp.MustCompile(`(?is)javascript:`),
	regexp.MustCompile(`(?is)data:`),
	regexp.MustCompile(`(?is)\son\w+\s*=`),
}

var svgOpenTag = regexp.MustCompile(`(?is)<svg[^>]*>`)

type svgRoot struct {
	XMLName xml.Name `xml:"svg"`
	ViewBox string   `xml:"viewBox,attr"`
	Width   string   `xml:"width,attr"`
	Height  string   `xml:"height,attr"`
}

// CheckForbidden returns a validation error if svg contains any
// disallowed construct.
func CheckForbidden(svg []byte) error {
	for _, pat := range forbiddenPatterns {
		if pat.Match(svg) {
			return apperrors.New(apperrors.KindValidation, fmt.Sprintf("svg contains forbidden construct matching %s", pat.String()))
		}
	}
	return nil
}

// ExtractViewBox returns (x, y, w, h) from the SVG's viewBox attribute,
// or derives it from width/height when viewBox is absent. Only raw
// numbers or "pt" units are accepted in the width/height fallback.
func ExtractViewBox(svg []byte) (x, y, w, h float64, err error) {
	var root svgRoot
	if err := xml.Unmarshal(svg, &root); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("parse svg root: %w", err)
	}

	if root.ViewBox != "" {
		parts := strings.Fields(root.ViewBox)
		if len(parts) != 4 {
			return 0, 0, 0, 0, apperrors.New(apperrors.KindValidation, "svg viewBox must have 4 components")
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			vals[i], err = strconv.ParseFloat(p, 64)
			if err != nil {
				return 0, 0, 0, 0, apperrors.New(apperrors.KindValidation, "svg viewBox contains non-numeric component")
			}
		}
		return vals[0], vals[1], vals[2], vals[3], nil
	}

	if root.Width == "" || root.Height == "" {
		return 0, 0, 0, 0, apperrors.New(apperrors.KindValidation, "svg missing viewBox and width/height")
	}
	w, err = parseLengthPt(root.Width)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	h, err = parseLengthPt(root.Height)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return 0, 0, w, h, nil
}

func parseLengthPt(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "pt")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, apperrors.New(apperrors.KindValidation, fmt.Sprintf("invalid svg length %q: only raw numbers or pt units accepted", s))
	}
	return v, nil
}

// Normalize canonicalizes an SVG source into an A4-framed document:
// the content is scaled and centered to fit within the A4 canvas and
// wrapped in a single group, producing bytes ready to hand to the
// external SVG->PDF converter.
func Normalize(svg []byte) ([]byte, error) {
	if err := CheckForbidden(svg); err != nil {
		return nil, err
	}

	vbX, vbY, vbW, vbH, err := ExtractViewBox(svg)
	if err != nil {
		return nil, err
	}
	if vbW <= 0 || vbH <= 0 {
		return nil, apperrors.New(apperrors.KindValidation, "svg viewBox has non-positive dimensions")
	}

	scale := A4WidthPt / vbW
	if A4HeightPt/vbH < scale {
		scale = A4HeightPt / vbH
	}
	tx := -vbX*scale + (A4WidthPt-vbW*scale)/2
	ty := -vbY*scale + (A4HeightPt-vbH*scale)/2

	loc := svgOpenTag.FindIndex(svg)
	if loc == nil {
		return nil, apperrors.New(apperrors.KindValidation, "svg missing opening <svg> tag")
	}

	canonicalOpen := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %g %g" width="%gpt" height="%gpt">`,
		A4WidthPt, A4HeightPt, A4WidthPt, A4HeightPt,
	)
	injectedStyle := `<style>*{vector-effect:non-scaling-stroke;}</style>`
	wrapOpen := fmt.Sprintf(`<g id="A4_NORMALIZED_ROOT" transform="translate(%s %s) scale(%s)">`,
		formatNum(tx), formatNum(ty), formatNum(scale))

	body := svg[loc[1]:]
	closeIdx := strings.LastIndex(string(body), "</svg>")
	if closeIdx < 0 {
		return nil, apperrors.New(apperrors.KindValidation, "svg missing closing tag")
	}
	children := body[:closeIdx]

	var out strings.Builder
	out.WriteString(canonicalOpen)
	out.WriteString(injectedStyle)
	out.WriteString(wrapOpen)
	out.Write(children)
	out.WriteString("</g></svg>")

	return []byte(out.String()), nil
}

func formatNum(f float64) string {
	return strconv.FormatFloat(Snap(f), 'f', -1, 64)
}
