package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeWatermarkSVGConvertsRectToPath(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><rect x="1" y="2" width="3" height="4" fill="#f00"/></svg>`)
	out, err := SanitizeWatermarkSVG(svg)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "<path")
	assert.NotContains(t, s, "<rect")
	assert.Contains(t, s, `fill="#f00"`)
}

func TestSanitizeWatermarkSVGConvertsCircleToPath(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><circle cx="5" cy="5" r="3"/></svg>`)
	out, err := SanitizeWatermarkSVG(svg)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "<path")
	assert.NotContains(t, s, "<circle")
}

func TestSanitizeWatermarkSVGStripsDisallowedAttrs(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><path d="M0 0" style="evil" fill="red"/></svg>`)
	out, err := SanitizeWatermarkSVG(svg)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `fill="red"`)
	assert.NotContains(t, s, "style=")
}

func TestSanitizeWatermarkSVGRejectsForbiddenConstructs(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><script>evil()</script></svg>`)
	_, err := SanitizeWatermarkSVG(svg)
	require.Error(t, err)
}

func TestAssertForbiddenRefsRejectsURLFunction(t *testing.T) {
	svg := []byte(`<path fill="url(#grad)"/>`)
	require.Error(t, AssertForbiddenRefs(svg))
}

func TestAssertForbiddenRefsAllowsCleanSVG(t *testing.T) {
	svg := []byte(`<path fill="#000"/>`)
	require.NoError(t, AssertForbiddenRefs(svg))
}

func TestConvertPolygonClosesPath(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><polygon points="0,0 1,1 2,0"/></svg>`)
	out, err := SanitizeWatermarkSVG(svg)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "<path")
	assert.Contains(t, s, "Z")
}
