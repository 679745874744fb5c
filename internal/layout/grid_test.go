package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gosom/vectorprint/internal/models"
)

func TestSlotGridSingleSlotFillsUsableArea(t *testing.T) {
	slots := SlotGrid(1, 0)
	assert.Len(t, slots, 1)
	usable := A4HeightPt - 2*SafeMarginPt
	assert.InDelta(t, usable, slots[0].Origin.H, 0.001)
	assert.InDelta(t, SafeMarginPt, slots[0].Origin.Y, 0.001)
}

func TestSlotGridStacksVerticallyWithSpacing(t *testing.T) {
	slots := SlotGrid(4, 10)
	assert.Len(t, slots, 4)
	for i := 1; i < len(slots); i++ {
		assert.Greater(t, slots[i].Origin.Y, slots[i-1].Origin.Y)
	}
	// Top slot's rectangle must stay within the printable page.
	top := slots[len(slots)-1]
	assert.LessOrEqual(t, top.Origin.Y+top.Origin.H, A4HeightPt-SafeMarginPt+0.001)
}

func TestSlotGridCollapsedSpacingTreatedAsZero(t *testing.T) {
	// A spacing large enough to make usable-(S-1)*G <= 0 must fall back
	// to G=0 boundary behavior.
	huge := SlotGrid(16, 1000)
	tight := SlotGrid(16, 0)
	for i := range huge {
		assert.InDelta(t, tight[i].Origin.H, huge[i].Origin.H, 0.001)
		assert.InDelta(t, tight[i].Origin.Y, huge[i].Origin.Y, 0.001)
	}
}

func TestCropRectResolvesRatiosAgainstSourcePage(t *testing.T) {
	crop := models.TicketCrop{XRatio: 0.1, YRatio: 0.2, WidthRatio: 0.5, HeightRatio: 0.4}
	rect := CropRect(crop, 1000, 2000)
	assert.Equal(t, Rect{X: 100, Y: 400, W: 500, H: 800}, rect)
}

func TestClipBoxFlipsToBottomUp(t *testing.T) {
	crop := Rect{X: 100, Y: 400, W: 500, H: 800}
	clip := ClipBox(crop, 2000)
	assert.Equal(t, 100.0, clip.X)
	assert.Equal(t, 800.0, clip.Y) // 2000 - 400 - 800
	assert.Equal(t, 500.0, clip.W)
	assert.Equal(t, 800.0, clip.H)
}

func TestFitContentTopAlignsAndPreservesAspect(t *testing.T) {
	slot := Slot{Origin: Rect{X: 28.35, Y: 28.35, W: 538.58, H: 785.19}}
	content := FitContent(slot, 500, 800)

	// scale = min(538.58/500, 785.19/800)
	expectedScale := 785.19 / 800
	if 538.58/500 < expectedScale {
		expectedScale = 538.58 / 500
	}
	assert.InDelta(t, expectedScale, content.Scale, 0.001)

	// Top-aligned: drawY + scaledH should reach the slot's top edge.
	assert.InDelta(t, slot.Origin.Y+slot.Origin.H, content.Y+content.H, 0.01)
}

func TestFitContentFullSlotWhenAspectMatches(t *testing.T) {
	slot := Slot{Origin: Rect{X: 0, Y: 0, W: 200, H: 100}}
	content := FitContent(slot, 200, 100)
	assert.InDelta(t, 1.0, content.Scale, 0.0001)
	assert.InDelta(t, 200.0, content.W, 0.001)
	assert.InDelta(t, 100.0, content.H, 0.001)
}

func TestObjectTopY(t *testing.T) {
	content := ContentBox{Rect: Rect{Y: 50}, Scale: 2}
	assert.InDelta(t, 250.0, ObjectTopY(content, 100), 0.001)
}

func TestSnapRoundsToThreeDecimals(t *testing.T) {
	assert.Equal(t, 1.235, Snap(1.23456))
	assert.Equal(t, 1.0, Snap(0.9999999))
}
