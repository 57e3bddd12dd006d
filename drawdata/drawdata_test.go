package drawdata

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/imdraw-go/common"
)

func TestDrawVertexMarshalLayout(t *testing.T) {
	v := DrawVertex{
		Pos:   [2]float32{1.5, -2.25},
		UV:    [2]float32{0.25, 0.75},
		Color: 0xFF00FF00,
	}
	buf := v.Marshal()
	require.Len(t, buf, VertexStride)

	assert.Equal(t, math.Float32bits(1.5), binary.LittleEndian.Uint32(buf[VertexPosOffset:]))
	assert.Equal(t, math.Float32bits(-2.25), binary.LittleEndian.Uint32(buf[VertexPosOffset+4:]))
	assert.Equal(t, math.Float32bits(0.25), binary.LittleEndian.Uint32(buf[VertexUVOffset:]))
	assert.Equal(t, math.Float32bits(0.75), binary.LittleEndian.Uint32(buf[VertexUVOffset+4:]))
	assert.Equal(t, uint32(0xFF00FF00), binary.LittleEndian.Uint32(buf[VertexColorOffset:]))
}

func quadList(texID uint64) *DrawList {
	return &DrawList{
		Vertices: make([]DrawVertex, 4),
		Indices:  []DrawIndex{0, 1, 2, 2, 3, 0},
		Commands: []DrawCommand{{
			Kind:      CommandElements,
			ClipRect:  common.Rect{Left: 0, Top: 0, Right: 100, Bottom: 100},
			TextureID: texID,
			ElemCount: 6,
		}},
	}
}

func TestDrawDataValid(t *testing.T) {
	d := &DrawData{
		Lists:            []*DrawList{quadList(0), quadList(1)},
		DisplaySize:      [2]float32{800, 600},
		FramebufferScale: [2]float32{1, 1},
		TotalVtxCount:    8,
		TotalIdxCount:    12,
	}
	require.NoError(t, d.Valid())

	d.TotalVtxCount = 7
	assert.ErrorContains(t, d.Valid(), "vertex total")
	d.TotalVtxCount = 8

	d.TotalIdxCount = 13
	assert.ErrorContains(t, d.Valid(), "index total")
	d.TotalIdxCount = 12

	d.Lists[0].Commands[0].IndexOffset = 3
	assert.ErrorContains(t, d.Valid(), "index range")
	d.Lists[0].Commands[0].IndexOffset = 0

	d.Lists[0].Commands[0].ElemCount = 4
	assert.ErrorContains(t, d.Valid(), "multiple of 3")
}

func TestDrawDataEmpty(t *testing.T) {
	d := &DrawData{
		DisplaySize:      [2]float32{800, 600},
		FramebufferScale: [2]float32{1, 1},
	}
	assert.True(t, d.Empty(), "no geometry")

	d.Lists = []*DrawList{quadList(0)}
	d.TotalVtxCount = 4
	d.TotalIdxCount = 6
	assert.False(t, d.Empty())

	d.DisplaySize = [2]float32{0, 600}
	assert.True(t, d.Empty(), "zero framebuffer area")
}

func TestTextureSizeInBytes(t *testing.T) {
	tex := &TextureData{Width: 512, Height: 128, Format: FormatRGBA32}
	n, err := tex.SizeInBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(512*128*4), n)

	tex.Format = FormatAlpha8
	n, err = tex.SizeInBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(512*128), n)

	tex = &TextureData{Width: math.MaxUint32, Height: math.MaxUint32, Format: FormatRGBA32}
	_, err = tex.SizeInBytes()
	assert.ErrorIs(t, err, ErrPixelSizeOverflow)
}

func TestStatusTransitions(t *testing.T) {
	tex := &TextureData{ID: 3, Status: StatusWantCreate}
	require.NoError(t, tex.SetStatus(StatusOK))
	require.NoError(t, tex.SetStatus(StatusWantUpdates))
	require.NoError(t, tex.SetStatus(StatusOK))
	require.NoError(t, tex.SetStatus(StatusWantDestroy))
	assert.Error(t, tex.SetStatus(StatusOK), "destroy request cannot be withdrawn")
	require.NoError(t, tex.SetStatus(StatusDestroyed))
	assert.Error(t, tex.SetStatus(StatusWantCreate), "destroyed is terminal")
}
