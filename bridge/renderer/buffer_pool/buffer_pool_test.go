package buffer_pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/imdraw-go/drawdata"
	"github.com/cogentcore/webgpu/wgpu"
)

type createdBuffer struct {
	label string
	size  uint64
	usage wgpu.BufferUsage
	buf   *wgpu.Buffer
}

type bufferWrite struct {
	buf    *wgpu.Buffer
	offset uint64
	data   []byte
}

// fakeBufferBackend records all device calls without touching a GPU.
type fakeBufferBackend struct {
	created  []createdBuffer
	writes   []bufferWrite
	released []*wgpu.Buffer
}

func (f *fakeBufferBackend) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf := &wgpu.Buffer{}
	f.created = append(f.created, createdBuffer{label: label, size: size, usage: usage, buf: buf})
	return buf, nil
}

func (f *fakeBufferBackend) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, bufferWrite{buf: buf, offset: offset, data: cp})
	return nil
}

func (f *fakeBufferBackend) ReleaseBuffer(buf *wgpu.Buffer) {
	f.released = append(f.released, buf)
}

func frame(listSizes ...[2]int) *drawdata.DrawData {
	d := &drawdata.DrawData{
		DisplaySize:      [2]float32{800, 600},
		FramebufferScale: [2]float32{1, 1},
	}
	for _, sz := range listSizes {
		list := &drawdata.DrawList{
			Vertices: make([]drawdata.DrawVertex, sz[0]),
			Indices:  make([]drawdata.DrawIndex, sz[1]),
		}
		d.Lists = append(d.Lists, list)
		d.TotalVtxCount += uint32(sz[0])
		d.TotalIdxCount += uint32(sz[1])
	}
	return d
}

func TestSlotRotation(t *testing.T) {
	p := NewBufferPool(&fakeBufferBackend{}, WithSlotCount(3))
	assert.Equal(t, 3, p.SlotCount())
	assert.Equal(t, 0, p.CurrentSlot())
	p.Advance()
	assert.Equal(t, 1, p.CurrentSlot())
	p.Advance()
	p.Advance()
	assert.Equal(t, 0, p.CurrentSlot())
}

func TestSlotCountClamped(t *testing.T) {
	p := NewBufferPool(&fakeBufferBackend{}, WithSlotCount(1))
	assert.Equal(t, MinSlotCount, p.SlotCount())
}

func TestUploadGrowsToPowerOfTwo(t *testing.T) {
	backend := &fakeBufferBackend{}
	p := NewBufferPool(backend)

	// 100 vertices = 2000 bytes, 300 indices = 600 bytes.
	_, err := p.Upload(frame([2]int{100, 300}))
	require.NoError(t, err)

	require.Len(t, backend.created, 2)
	assert.Equal(t, uint64(2048), p.VertexCapacity())
	assert.Equal(t, uint64(1024), p.IndexCapacity())
	assert.NotZero(t, backend.created[0].usage&wgpu.BufferUsageVertex)
	assert.NotZero(t, backend.created[1].usage&wgpu.BufferUsageIndex)
}

func TestCapacityIsMonotonic(t *testing.T) {
	backend := &fakeBufferBackend{}
	p := NewBufferPool(backend)

	_, err := p.Upload(frame([2]int{100, 300}))
	require.NoError(t, err)
	grown := len(backend.created)

	// A smaller frame reuses the existing buffers.
	_, err = p.Upload(frame([2]int{10, 30}))
	require.NoError(t, err)
	assert.Len(t, backend.created, grown, "no new buffers for a smaller frame")
	assert.Equal(t, uint64(2048), p.VertexCapacity())

	// A larger frame grows and releases the outgrown buffers.
	_, err = p.Upload(frame([2]int{2000, 6000}))
	require.NoError(t, err)
	assert.Equal(t, uint64(65536), p.VertexCapacity(), "2000 vertices * 20 bytes rounded up")
	assert.Equal(t, uint64(16384), p.IndexCapacity())
	assert.Len(t, backend.released, 2)
}

func TestSlotsGrowIndependently(t *testing.T) {
	backend := &fakeBufferBackend{}
	p := NewBufferPool(backend, WithSlotCount(2))

	_, err := p.Upload(frame([2]int{100, 300}))
	require.NoError(t, err)
	firstSlotVtx := p.VertexBuffer()

	p.Advance()
	assert.Nil(t, p.VertexBuffer(), "slot 1 has no buffers yet")
	_, err = p.Upload(frame([2]int{100, 300}))
	require.NoError(t, err)
	assert.NotSame(t, firstSlotVtx, p.VertexBuffer())

	p.Advance()
	assert.Same(t, firstSlotVtx, p.VertexBuffer(), "back to slot 0")
}

func TestUploadOffsetsAreCumulative(t *testing.T) {
	backend := &fakeBufferBackend{}
	p := NewBufferPool(backend)

	offsets, err := p.Upload(frame([2]int{4, 6}, [2]int{10, 30}, [2]int{2, 3}))
	require.NoError(t, err)
	require.Len(t, offsets, 3)
	assert.Equal(t, ListOffsets{VertexBase: 0, IndexBase: 0}, offsets[0])
	assert.Equal(t, ListOffsets{VertexBase: 4, IndexBase: 6}, offsets[1])
	assert.Equal(t, ListOffsets{VertexBase: 14, IndexBase: 36}, offsets[2])
}

func TestUploadPadsIndexData(t *testing.T) {
	backend := &fakeBufferBackend{}
	p := NewBufferPool(backend)

	// 3 indices = 6 bytes, padded to 8 for the queue's write alignment.
	_, err := p.Upload(frame([2]int{3, 3}))
	require.NoError(t, err)
	require.Len(t, backend.writes, 2)
	assert.Equal(t, 60, len(backend.writes[0].data))
	assert.Equal(t, 8, len(backend.writes[1].data))
}

func TestUploadEmptyFrameFails(t *testing.T) {
	p := NewBufferPool(&fakeBufferBackend{})
	_, err := p.Upload(frame())
	assert.Error(t, err)
}

func TestRelease(t *testing.T) {
	backend := &fakeBufferBackend{}
	p := NewBufferPool(backend, WithSlotCount(2))
	_, err := p.Upload(frame([2]int{4, 6}))
	require.NoError(t, err)

	p.Release()
	assert.Len(t, backend.released, 2)
	assert.Nil(t, p.VertexBuffer())
	assert.Zero(t, p.VertexCapacity())
}
