// package drawdata defines the producer-facing contract of the bridge: the
// vertex/index/command structures a UI library emits each frame, and the
// texture lifecycle records that accompany them. Everything in this package is
// plain data with no GPU dependencies so producers can be tested in isolation.
package drawdata

import (
	"encoding/binary"
	"math"
)

// DrawVertex layout constants. The byte offsets are a wire contract with the
// render pipeline's vertex attribute layout and must not change.
const (
	// VertexStride is the size of one DrawVertex in bytes.
	VertexStride = 20
	// VertexPosOffset is the byte offset of the position attribute.
	VertexPosOffset = 0
	// VertexUVOffset is the byte offset of the texture coordinate attribute.
	VertexUVOffset = 8
	// VertexColorOffset is the byte offset of the packed color attribute.
	VertexColorOffset = 16

	// IndexStride is the size of one DrawIndex in bytes.
	IndexStride = 2
)

// DrawVertex is a single UI vertex: position and texture coordinates in
// logical UI space plus a packed 32-bit RGBA color (8 bits per channel,
// red in the lowest byte).
type DrawVertex struct {
	// Pos is the vertex position in UI logical coordinates.
	Pos [2]float32
	// UV is the texture coordinate, usually in [0, 1].
	UV [2]float32
	// Color is the packed RGBA color, interpreted as Unorm8x4 by the pipeline.
	Color uint32
}

// DrawIndex is a vertex index into a draw list's vertex slice.
type DrawIndex = uint16

// Marshal packs the vertex into its 20-byte little-endian wire form matching
// the pipeline's vertex buffer layout.
//
// Returns:
//   - []byte: 20 bytes (pos x/y, uv x/y as float32, packed color as uint32)
func (v *DrawVertex) Marshal() []byte {
	buf := make([]byte, VertexStride)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(v.Pos[0]))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(v.Pos[1]))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(v.UV[0]))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(v.UV[1]))
	binary.LittleEndian.PutUint32(buf[16:], v.Color)
	return buf
}
