package texture_manager

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/Carmen-Shannon/imdraw-go/drawdata"
)

type imageWrite struct {
	img           *Image
	x, y          uint32
	width, height uint32
	data          []byte
	bytesPerRow   uint32
}

// fakeImageBackend records all device calls without touching a GPU.
type fakeImageBackend struct {
	created    []*Image
	writes     []imageWrite
	destroyed  []*Image
	failCreate bool
}

func (f *fakeImageBackend) CreateImage(label string, width, height uint32) (*Image, error) {
	if f.failCreate {
		return nil, fmt.Errorf("device out of memory")
	}
	img := &Image{Width: width, Height: height}
	f.created = append(f.created, img)
	return img, nil
}

func (f *fakeImageBackend) WriteImage(img *Image, x, y uint32, staged common.TextureStagingData) error {
	cp := make([]byte, len(staged.Pixels))
	copy(cp, staged.Pixels)
	f.writes = append(f.writes, imageWrite{
		img: img, x: x, y: y,
		width: staged.Width, height: staged.Height,
		data: cp, bytesPerRow: staged.BytesPerRow,
	})
	return nil
}

func (f *fakeImageBackend) DestroyImage(img *Image) {
	f.destroyed = append(f.destroyed, img)
}

func rgbaTexture(id uint64, w, h uint32) *drawdata.TextureData {
	pixels := make([]byte, w*h*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	return &drawdata.TextureData{
		ID:     id,
		Status: drawdata.StatusWantCreate,
		Format: drawdata.FormatRGBA32,
		Width:  w,
		Height: h,
		Pixels: pixels,
	}
}

func TestEnsureDefaultIsWhiteAndIdempotent(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)

	img, err := m.EnsureDefault()
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, uint32(1), img.Width)

	require.Len(t, backend.writes, 1)
	w := backend.writes[0]
	assert.Equal(t, uint32(RowAlignment), w.bytesPerRow)
	assert.Equal(t, []byte{255, 255, 255, 255}, w.data[:4])

	again, err := m.EnsureDefault()
	require.NoError(t, err)
	assert.Same(t, img, again)
	assert.Len(t, backend.created, 1)
}

func TestCreateUploadsFullContents(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)

	tex := rgbaTexture(7, 8, 4)
	changed, err := m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)

	assert.Equal(t, []uint64{7}, changed)
	assert.Equal(t, drawdata.StatusOK, tex.Status)
	assert.True(t, m.Has(7))

	require.Len(t, backend.writes, 1)
	w := backend.writes[0]
	assert.Equal(t, uint32(0), w.x)
	assert.Equal(t, uint32(8), w.width)
	assert.Equal(t, uint32(4), w.height)
	assert.Equal(t, uint32(RowAlignment), w.bytesPerRow, "8*4=32 bytes rounded up to alignment")
	// Row 2 of the staged data matches row 2 of the source.
	assert.Equal(t, tex.Pixels[2*8*4:2*8*4+32], w.data[2*RowAlignment:2*RowAlignment+32])
}

func TestAlpha8ExpandsToWhiteRGBA(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)

	tex := &drawdata.TextureData{
		ID:     3,
		Status: drawdata.StatusWantCreate,
		Format: drawdata.FormatAlpha8,
		Width:  2,
		Height: 1,
		Pixels: []byte{0x40, 0x80},
	}
	_, err := m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)

	require.Len(t, backend.writes, 1)
	data := backend.writes[0].data
	assert.Equal(t, []byte{255, 255, 255, 0x40, 255, 255, 255, 0x80}, data[:8])
}

func TestUpdateUnknownIDImplicitlyCreates(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)

	tex := rgbaTexture(9, 4, 4)
	tex.Status = drawdata.StatusWantUpdates
	tex.Updates = []drawdata.UpdateRect{{X: 0, Y: 0, Width: 1, Height: 1}}

	changed, err := m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)
	assert.Equal(t, []uint64{9}, changed)
	assert.Equal(t, drawdata.StatusOK, tex.Status)
	assert.True(t, m.Has(9))
	// Full contents were uploaded, not just the dirty rect.
	require.Len(t, backend.writes, 1)
	assert.Equal(t, uint32(4), backend.writes[0].height)
}

func TestOverlappingRectsLastWriteWins(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)

	tex := rgbaTexture(5, 8, 8)
	_, err := m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)

	require.NoError(t, tex.SetStatus(drawdata.StatusWantUpdates))
	tex.Updates = []drawdata.UpdateRect{
		{X: 0, Y: 0, Width: 4, Height: 4},
		{X: 2, Y: 2, Width: 4, Height: 4},
	}
	_, err = m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)

	// Rects are applied in order, so the second write lands after the first
	// and owns the overlap.
	require.Len(t, backend.writes, 3)
	assert.Equal(t, uint32(0), backend.writes[1].x)
	assert.Equal(t, uint32(2), backend.writes[2].x)
	assert.Equal(t, uint32(2), backend.writes[2].y)
	// The second rect's staged row 0 starts at source pixel (2, 2).
	srcOff := (2*8 + 2) * 4
	assert.Equal(t, tex.Pixels[srcOff:srcOff+16], backend.writes[2].data[:16])
	assert.Equal(t, drawdata.StatusOK, tex.Status)
}

func TestDestroyDeferredUntilUnused(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)
	_, err := m.EnsureDefault()
	require.NoError(t, err)

	tex := rgbaTexture(11, 4, 4)
	_, err = m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)
	live := m.Resolve(11)

	// Still referenced by an in-flight frame: the request is deferred.
	require.NoError(t, tex.SetStatus(drawdata.StatusWantDestroy))
	tex.UnusedFrames = 0
	changed, err := m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, drawdata.StatusWantDestroy, tex.Status)
	assert.True(t, m.Has(11))
	assert.Same(t, live, m.Resolve(11))

	// One completed frame without a reference: now it goes.
	tex.UnusedFrames = 1
	changed, err = m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)
	assert.Equal(t, []uint64{11}, changed)
	assert.Equal(t, drawdata.StatusDestroyed, tex.Status)
	assert.False(t, m.Has(11))
	assert.Contains(t, backend.destroyed, live)

	// The id now resolves to the default texture.
	def, err := m.EnsureDefault()
	require.NoError(t, err)
	assert.Same(t, def, m.Resolve(11))
}

func TestDestroyedIDCannotBeReused(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)

	tex := rgbaTexture(13, 2, 2)
	_, err := m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)
	require.NoError(t, tex.SetStatus(drawdata.StatusWantDestroy))
	tex.UnusedFrames = 2
	_, err = m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)

	fresh := rgbaTexture(13, 2, 2)
	_, err = m.Process([]*drawdata.TextureData{fresh})
	assert.ErrorContains(t, err, "must not be reused")
}

func TestAllocFailureSurfacesAllocError(t *testing.T) {
	backend := &fakeImageBackend{failCreate: true}
	m := NewTextureManager(backend)

	tex := rgbaTexture(21, 16, 16)
	_, err := m.Process([]*drawdata.TextureData{tex})
	require.Error(t, err)

	var allocErr *AllocError
	require.True(t, errors.As(err, &allocErr))
	assert.Equal(t, uint64(21), allocErr.ID)
	assert.Equal(t, uint32(16), allocErr.Width)
	// The texture stays unregistered so the producer may retry.
	assert.False(t, m.Has(21))
	assert.Equal(t, drawdata.StatusWantCreate, tex.Status)
}

func TestPixelOverflowRejected(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)

	tex := &drawdata.TextureData{
		ID:     31,
		Status: drawdata.StatusWantCreate,
		Format: drawdata.FormatRGBA32,
		Width:  0xFFFFFFFF,
		Height: 0xFFFFFFFF,
	}
	_, err := m.Process([]*drawdata.TextureData{tex})
	assert.ErrorIs(t, err, drawdata.ErrPixelSizeOverflow)
	assert.Empty(t, backend.created)
}

func TestOutOfBoundsRectSkipped(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)

	tex := rgbaTexture(41, 4, 4)
	_, err := m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)

	require.NoError(t, tex.SetStatus(drawdata.StatusWantUpdates))
	tex.Updates = []drawdata.UpdateRect{{X: 3, Y: 3, Width: 4, Height: 4}}
	_, err = m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)
	assert.Len(t, backend.writes, 1, "only the create upload happened")
	assert.Equal(t, drawdata.StatusOK, tex.Status)
}

func TestParallelPackingMatchesSource(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend, WithPackWorkers(4))

	// Tall enough to cross the parallel threshold.
	tex := rgbaTexture(51, 16, 256)
	_, err := m.Process([]*drawdata.TextureData{tex})
	require.NoError(t, err)

	require.Len(t, backend.writes, 1)
	w := backend.writes[0]
	rowBytes := 16 * 4
	for row := 0; row < 256; row++ {
		src := tex.Pixels[row*rowBytes : (row+1)*rowBytes]
		dst := w.data[row*int(w.bytesPerRow) : row*int(w.bytesPerRow)+rowBytes]
		require.Equal(t, src, dst, "row %d", row)
	}
}

func TestRelease(t *testing.T) {
	backend := &fakeImageBackend{}
	m := NewTextureManager(backend)
	_, err := m.EnsureDefault()
	require.NoError(t, err)
	_, err = m.Process([]*drawdata.TextureData{rgbaTexture(61, 2, 2)})
	require.NoError(t, err)

	m.Release()
	assert.Len(t, backend.destroyed, 2)
	assert.False(t, m.Has(61))
}
