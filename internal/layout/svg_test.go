package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckForbiddenDetectsScriptTag(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><script>alert(1)</script></svg>`)
	err := CheckForbidden(svg)
	require.Error(t, err)
}

func TestCheckForbiddenDetectsUseHref(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><use href="#a"/></svg>`)
	require.Error(t, CheckForbidden(svg))
}

func TestCheckForbiddenDetectsOnHandler(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><rect onclick="evil()"/></svg>`)
	require.Error(t, CheckForbidden(svg))
}

func TestCheckForbiddenAllowsCleanSVG(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 10 10"><rect x="0" y="0" width="5" height="5" fill="red"/></svg>`)
	require.NoError(t, CheckForbidden(svg))
}

func TestExtractViewBoxFromAttribute(t *testing.T) {
	svg := []byte(`<svg viewBox="1 2 100 200"></svg>`)
	x, y, w, h, err := ExtractViewBox(svg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 2.0, y)
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 200.0, h)
}

func TestExtractViewBoxFallsBackToWidthHeight(t *testing.T) {
	svg := []byte(`<svg width="300pt" height="400pt"></svg>`)
	x, y, w, h, err := ExtractViewBox(svg)
	require.NoError(t, err)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
	assert.Equal(t, 300.0, w)
	assert.Equal(t, 400.0, h)
}

func TestExtractViewBoxMissingIsFatal(t *testing.T) {
	svg := []byte(`<svg></svg>`)
	_, _, _, _, err := ExtractViewBox(svg)
	require.Error(t, err)
}

func TestExtractViewBoxRejectsNonPtUnits(t *testing.T) {
	svg := []byte(`<svg width="300px" height="400px"></svg>`)
	_, _, _, _, err := ExtractViewBox(svg)
	require.Error(t, err)
}

func TestNormalizeInjectsStyleAndWrapsRoot(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 100 100"><circle cx="50" cy="50" r="10"/></svg>`)
	out, err := Normalize(svg)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `xmlns="http://www.w3.org/2000/svg"`)
	assert.Contains(t, s, "vector-effect:non-scaling-stroke")
	assert.Contains(t, s, `id="A4_NORMALIZED_ROOT"`)
	assert.True(t, strings.HasPrefix(s, "<svg "))
	assert.True(t, strings.HasSuffix(s, "</svg>"))
}

func TestNormalizeRejectsForbiddenConstructs(t *testing.T) {
	svg := []byte(`<svg viewBox="0 0 100 100"><image href="x.png"/></svg>`)
	_, err := Normalize(svg)
	require.Error(t, err)
}

func TestNormalizeRejectsMissingViewBoxNoFallback(t *testing.T) {
	svg := []byte(`<svg><rect/></svg>`)
	_, err := Normalize(svg)
	require.Error(t, err)
}
