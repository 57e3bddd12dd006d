// package common contains common types that are used throughout this module. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data pending GPU upload.
// This is primarily used in the texture manager to stage converted pixel rows before writing them into a device image.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the staged region in pixels.
	Width uint32
	// Height is the height of the staged region in pixels.
	Height uint32
	// BytesPerRow is the row pitch of Pixels in bytes. Zero means tightly packed (Width * 4).
	BytesPerRow uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// This is primarily used in the pipeline cache to stage sampler configuration before creating the GPU sampler.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering, which can improve texture quality at oblique viewing angles.
	MaxAnisotropy uint16
}

// Rect is an axis-aligned rectangle expressed as left/top/right/bottom edges in UI logical coordinates.
// Draw commands carry their clip rectangles in this form.
type Rect struct {
	Left, Top, Right, Bottom float32
}

// Empty reports whether the rectangle has zero or negative area.
//
// Returns:
//   - bool: true if Right <= Left or Bottom <= Top
func (r Rect) Empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// Scissor is a device scissor rectangle in framebuffer pixel coordinates.
type Scissor struct {
	// X, Y are the top-left origin of the scissor in pixels.
	X, Y uint32
	// Width, Height are the scissor extents in pixels.
	Width, Height uint32
}
