package pipeline

import (
	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// UniformsSize is the byte size of the Uniforms block as laid out for the
// shader: a 4x4 float matrix, one float, and 12 bytes of tail padding to the
// 16-byte uniform alignment boundary.
const UniformsSize = 80

// Uniforms is the per-frame uniform block shared by the vertex and fragment
// stages. The memory layout matches the WGSL Uniforms struct exactly.
type Uniforms struct {
	// MVP is the orthographic projection matrix, column-major.
	MVP [16]float32
	// Gamma is the exponent applied to the fragment RGB output. 1.0 is a
	// no-op for linear targets, 2.2 compensates for sRGB targets.
	Gamma float32

	_ [3]float32
}

// NewUniforms returns a uniform block with an identity matrix and neutral gamma.
func NewUniforms() Uniforms {
	var u Uniforms
	common.Identity(u.MVP[:])
	u.Gamma = 1.0
	return u
}

// SetOrthographic rebuilds the MVP matrix to map the UI viewport rectangle
// (origin displayPos, extent displaySize, Y down) to clip space.
//
// Parameters:
//   - displayPos: top-left origin of the UI viewport in logical coordinates
//   - displaySize: size of the UI viewport in logical coordinates
func (u *Uniforms) SetOrthographic(displayPos, displaySize [2]float32) {
	left := displayPos[0]
	right := displayPos[0] + displaySize[0]
	top := displayPos[1]
	bottom := displayPos[1] + displaySize[1]
	common.Orthographic(u.MVP[:], left, right, top, bottom)
}

// Bytes returns the uniform block as a byte slice suitable for a buffer write.
// The slice aliases the struct's memory.
//
// Returns:
//   - []byte: UniformsSize bytes viewing the struct
func (u *Uniforms) Bytes() []byte {
	return common.StructToBytes(u)
}

// GammaForFormat returns the gamma exponent to use when rendering into the
// given target format. sRGB formats apply their own encoding on store, so the
// shader pre-compensates with 2.2; linear formats need no correction.
//
// Parameters:
//   - format: the render target's texture format
//
// Returns:
//   - float32: 2.2 for sRGB target formats, 1.0 otherwise
func GammaForFormat(format wgpu.TextureFormat) float32 {
	switch format {
	case wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8UnormSrgb:
		return 2.2
	default:
		return 1.0
	}
}
