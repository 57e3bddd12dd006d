package drawdata

import (
	"fmt"

	"github.com/Carmen-Shannon/imdraw-go/common"
)

// CommandKind discriminates the variants of a DrawCommand.
type CommandKind uint8

const (
	// CommandElements draws a contiguous run of indexed triangles.
	CommandElements CommandKind = iota
	// CommandResetRenderState asks the consumer to re-apply its baseline
	// render state before processing further commands.
	CommandResetRenderState
	// CommandRawCallback invokes a producer-supplied callback against the
	// consumer's raw encoding context. Consumers that cannot expose such a
	// context skip the command.
	CommandRawCallback
)

// RawCallback is invoked for CommandRawCallback commands with the consumer's
// raw encoding context (backend-specific) and the opaque value the producer
// attached to the command.
type RawCallback func(encoder any, userData any)

// DrawCommand is one entry in a draw list's command stream. Only the fields
// relevant to its Kind are populated.
type DrawCommand struct {
	// Kind selects the command variant.
	Kind CommandKind

	// ClipRect is the clip rectangle in UI logical coordinates, relative to
	// the draw data origin (not pre-translated by DisplayPos).
	ClipRect common.Rect
	// TextureID identifies the texture sampled by this run. Zero selects the
	// consumer's default texture.
	TextureID uint64
	// IndexOffset is the first index within this list's index slice.
	IndexOffset uint32
	// VertexOffset is the base vertex added to each index within this list.
	VertexOffset uint32
	// ElemCount is the number of indices to draw (a multiple of 3).
	ElemCount uint32

	// Callback and UserData carry the payload of a CommandRawCallback.
	Callback RawCallback
	UserData any
}

// DrawList is one independently clipped batch of UI geometry: a vertex slice,
// an index slice, and an ordered command stream referencing them.
type DrawList struct {
	Vertices []DrawVertex
	Indices  []DrawIndex
	Commands []DrawCommand
}

// DrawData is the complete output of one UI frame. The consumer treats it as
// read-only for the duration of rendering.
type DrawData struct {
	// Lists are rendered strictly in order.
	Lists []*DrawList

	// DisplayPos is the top-left origin of the UI viewport in logical
	// coordinates. Clip rectangles are translated by this value.
	DisplayPos [2]float32
	// DisplaySize is the UI viewport size in logical coordinates.
	DisplaySize [2]float32
	// FramebufferScale maps logical coordinates to framebuffer pixels
	// (for example 2.0 on a HiDPI display).
	FramebufferScale [2]float32

	// TotalVtxCount and TotalIdxCount are the summed lengths of the per-list
	// vertex and index slices. Producers fill them so consumers can size
	// buffers without a pre-pass; Valid verifies them.
	TotalVtxCount uint32
	TotalIdxCount uint32

	// Textures are the lifecycle requests accompanying this frame, processed
	// before any geometry is drawn.
	Textures []*TextureData
}

// Empty reports whether the frame produces no visible output.
// Texture lifecycle requests are still processed for empty frames.
//
// Returns:
//   - bool: true if there is no geometry or the framebuffer area is zero
func (d *DrawData) Empty() bool {
	if d.TotalVtxCount == 0 || d.TotalIdxCount == 0 {
		return true
	}
	fbW := d.DisplaySize[0] * d.FramebufferScale[0]
	fbH := d.DisplaySize[1] * d.FramebufferScale[1]
	return fbW <= 0 || fbH <= 0
}

// Valid checks the structural invariants of the frame: the declared totals
// match the per-list slice lengths, and every Elements command stays within
// its list's bounds.
//
// Returns:
//   - error: nil if the frame is well-formed, otherwise a description of the
//     first violation found
func (d *DrawData) Valid() error {
	var vtx, idx uint32
	for li, list := range d.Lists {
		vtx += uint32(len(list.Vertices))
		idx += uint32(len(list.Indices))
		for ci, cmd := range list.Commands {
			if cmd.Kind != CommandElements {
				continue
			}
			if cmd.ElemCount%3 != 0 {
				return fmt.Errorf("list %d command %d: element count %d is not a multiple of 3", li, ci, cmd.ElemCount)
			}
			end := uint64(cmd.IndexOffset) + uint64(cmd.ElemCount)
			if end > uint64(len(list.Indices)) {
				return fmt.Errorf("list %d command %d: index range [%d, %d) exceeds %d indices", li, ci, cmd.IndexOffset, end, len(list.Indices))
			}
			if cmd.VertexOffset > uint32(len(list.Vertices)) {
				return fmt.Errorf("list %d command %d: vertex offset %d exceeds %d vertices", li, ci, cmd.VertexOffset, len(list.Vertices))
			}
		}
	}
	if vtx != d.TotalVtxCount {
		return fmt.Errorf("declared vertex total %d does not match actual %d", d.TotalVtxCount, vtx)
	}
	if idx != d.TotalIdxCount {
		return fmt.Errorf("declared index total %d does not match actual %d", d.TotalIdxCount, idx)
	}
	return nil
}
