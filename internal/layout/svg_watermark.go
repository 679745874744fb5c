package layout

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gosom/vectorprint/internal/apperrors"
)

// allowedPathAttrs is the attribute allowlist the watermark-SVG path
// elements are reduced to by the stricter sanitization pass below.
var allowedPathAttrs = map[string]bool{
	"d": true, "fill": true, "fill-opacity": true, "stroke": true,
	"stroke-opacity": true, "stroke-width": true, "stroke-linecap": true,
	"stroke-linejoin": true, "stroke-dasharray": true, "stroke-dashoffset": true,
	"opacity": true,
}

var (
	rectTag     = regexp.MustCompile(`(?is)<rect\b([^>]*)/?>`)
	circleTag   = regexp.MustCompile(`(?is)<circle\b([^>]*)/?>`)
	ellipseTag  = regexp.MustCompile(`(?is)<ellipse\b([^>]*)/?>`)
	lineTag     = regexp.MustCompile(`(?is)<line\b([^>]*)/?>`)
	polylineTag = regexp.MustCompile(`(?is)<polyline\b([^>]*)/?>`)
	polygonTag  = regexp.MustCompile(`(?is)<polygon\b([^>]*)/?>`)
	attrPattern = regexp.MustCompile(`([\w:-]+)\s*=\s*"([^"]*)"`)
)

// SanitizeWatermarkSVG applies the stricter watermark-only sanitization
// pass: basic shapes are converted to path-equivalent `d=` strings,
// and only the path attribute allowlist survives.
func SanitizeWatermarkSVG(svg []byte) ([]byte, error) {
	if err := CheckForbidden(svg); err != nil {
		return nil, err
	}

	s := string(svg)
	s = rectTag.ReplaceAllStringFunc(s, func(m string) string { return convertRect(m) })
	s = circleTag.ReplaceAllStringFunc(s, func(m string) string { return convertCircle(m) })
	s = ellipseTag.ReplaceAllStringFunc(s, func(m string) string { return convertEllipse(m) })
	s = lineTag.ReplaceAllStringFunc(s, func(m string) string { return convertLine(m) })
	s = polylineTag.ReplaceAllStringFunc(s, func(m string) string { return convertPoly(m, false) })
	s = polygonTag.ReplaceAllStringFunc(s, func(m string) string { return convertPoly(m, true) })
	s = stripDisallowedAttrs(s)
	return []byte(s), nil
}

func parseAttrs(tag string) map[string]string {
	out := map[string]string{}
	for _, m := range attrPattern.FindAllStringSubmatch(tag, -1) {
		out[m[1]] = m[2]
	}
	return out
}

func attrFloat(attrs map[string]string, key string, def float64) float64 {
	if v, ok := attrs[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func rebuildPath(d string, attrs map[string]string) string {
	var b strings.Builder
	b.WriteString(`<path d="`)
	b.WriteString(d)
	b.WriteString(`"`)
	for _, k := range []string{"fill", "fill-opacity", "stroke", "stroke-opacity", "stroke-width",
		"stroke-linecap", "stroke-linejoin", "stroke-dasharray", "stroke-dashoffset", "opacity"} {
		if v, ok := attrs[k]; ok {
			fmt.Fprintf(&b, ` %s="%s"`, k, v)
		}
	}
	b.WriteString("/>")
	return b.String()
}

func convertRect(tag string) string {
	attrs := parseAttrs(tag)
	x := attrFloat(attrs, "x", 0)
	y := attrFloat(attrs, "y", 0)
	w := attrFloat(attrs, "width", 0)
	h := attrFloat(attrs, "height", 0)
	d := fmt.Sprintf("M%s %s H%s V%s H%s Z", f(x), f(y), f(x+w), f(y+h), f(x))
	return rebuildPath(d, attrs)
}

func convertCircle(tag string) string {
	attrs := parseAttrs(tag)
	return rebuildPath(ellipsePath(attrFloat(attrs, "cx", 0), attrFloat(attrs, "cy", 0), attrFloat(attrs, "r", 0), attrFloat(attrs, "r", 0)), attrs)
}

func convertEllipse(tag string) string {
	attrs := parseAttrs(tag)
	return rebuildPath(ellipsePath(attrFloat(attrs, "cx", 0), attrFloat(attrs, "cy", 0), attrFloat(attrs, "rx", 0), attrFloat(attrs, "ry", 0)), attrs)
}

func ellipsePath(cx, cy, rx, ry float64) string {
	return fmt.Sprintf("M%s %s A%s %s 0 1 0 %s %s A%s %s 0 1 0 %s %s Z",
		f(cx-rx), f(cy), f(rx), f(ry), f(cx+rx), f(cy), f(rx), f(ry), f(cx-rx), f(cy))
}

func convertLine(tag string) string {
	attrs := parseAttrs(tag)
	x1, y1 := attrFloat(attrs, "x1", 0), attrFloat(attrs, "y1", 0)
	x2, y2 := attrFloat(attrs, "x2", 0), attrFloat(attrs, "y2", 0)
	d := fmt.Sprintf("M%s %s L%s %s", f(x1), f(y1), f(x2), f(y2))
	return rebuildPath(d, attrs)
}

func convertPoly(tag string, closed bool) string {
	attrs := parseAttrs(tag)
	points := strings.Fields(strings.ReplaceAll(attrs["points"], ",", " "))
	var b strings.Builder
	for i := 0; i+1 < len(points); i += 2 {
		if i == 0 {
			fmt.Fprintf(&b, "M%s %s ", points[i], points[i+1])
		} else {
			fmt.Fprintf(&b, "L%s %s ", points[i], points[i+1])
		}
	}
	if closed {
		b.WriteString("Z")
	}
	return rebuildPath(strings.TrimSpace(b.String()), attrs)
}

func f(v float64) string {
	return strconv.FormatFloat(Snap(v), 'f', -1, 64)
}

// stripDisallowedAttrs removes any attribute on a <path> element not in
// allowedPathAttrs and writes the survivors in sorted name order.
func stripDisallowedAttrs(s string) string {
	pathTag := regexp.MustCompile(`(?is)<path\b([^>]*)/?>`)
	return pathTag.ReplaceAllStringFunc(s, func(tag string) string {
		attrs := parseAttrs(tag)
		var b strings.Builder
		b.WriteString("<path")
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			if allowedPathAttrs[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, ` %s="%s"`, k, attrs[k])
		}
		b.WriteString("/>")
		return b.String()
	})
}

// AssertForbiddenRefs is a final guard: after conversion, no url(...)
// reference may remain.
func AssertForbiddenRefs(svg []byte) error {
	if regexp.MustCompile(`(?is)url\s*\(`).Match(svg) {
		return apperrors.New(apperrors.KindValidation, "watermark svg contains forbidden url reference")
	}
	return nil
}
