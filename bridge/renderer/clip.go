package renderer

import (
	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/chewxy/math32"
)

// ClipToScissor converts a draw command's clip rectangle from UI logical
// coordinates to a device scissor rectangle in framebuffer pixels. The origin
// is floored and the far edge is ceiled so fractional clips never cut off
// covered pixels, then the result is clamped to the framebuffer.
//
// Parameters:
//   - clip: the clip rectangle in UI logical coordinates
//   - displayPos: the UI viewport origin the clip rectangle is relative to
//   - fbScale: the logical-to-pixel scale factors
//   - fbWidth, fbHeight: the framebuffer extent in pixels
//
// Returns:
//   - common.Scissor: the scissor rectangle in pixels
//   - bool: false if the clip is degenerate or entirely off screen
func ClipToScissor(clip common.Rect, displayPos, fbScale [2]float32, fbWidth, fbHeight uint32) (common.Scissor, bool) {
	minX := math32.Floor((clip.Left - displayPos[0]) * fbScale[0])
	minY := math32.Floor((clip.Top - displayPos[1]) * fbScale[1])
	maxX := math32.Ceil((clip.Right - displayPos[0]) * fbScale[0])
	maxY := math32.Ceil((clip.Bottom - displayPos[1]) * fbScale[1])

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > float32(fbWidth) {
		maxX = float32(fbWidth)
	}
	if maxY > float32(fbHeight) {
		maxY = float32(fbHeight)
	}
	if maxX <= minX || maxY <= minY {
		return common.Scissor{}, false
	}

	return common.Scissor{
		X:      uint32(minX),
		Y:      uint32(minY),
		Width:  uint32(maxX - minX),
		Height: uint32(maxY - minY),
	}, true
}
