// package buffer_pool manages the per-frame-slot vertex and index buffers the
// renderer uploads draw data into. Slots rotate so the CPU never writes a
// buffer the GPU may still be reading; capacities grow to the next power of
// two and never shrink. Device calls go through the BufferBackend interface
// so the pool's sizing and rotation logic is testable without a GPU.
package buffer_pool

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/Carmen-Shannon/imdraw-go/drawdata"
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultSlotCount is the number of frame slots when none is configured.
// It matches the usual number of frames in flight.
const DefaultSlotCount = 3

// MinSlotCount is the smallest legal slot count. With fewer than two slots a
// CPU write could race a GPU read of the same buffer.
const MinSlotCount = 2

// BufferBackend abstracts the device operations the pool needs. The wgpu
// implementation lives in the renderer package; tests substitute a fake.
type BufferBackend interface {
	// CreateBuffer allocates a device buffer.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - size: buffer size in bytes
	//   - usage: buffer usage flags
	//
	// Returns:
	//   - *wgpu.Buffer: the created buffer
	//   - error: error if allocation fails
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error)

	// WriteBuffer copies data into a buffer at the given byte offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: byte offset within the buffer
	//   - data: the bytes to write (length must be a multiple of 4)
	//
	// Returns:
	//   - error: error if the write fails
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error

	// ReleaseBuffer releases a device buffer.
	//
	// Parameters:
	//   - buf: the buffer to release
	ReleaseBuffer(buf *wgpu.Buffer)
}

// ListOffsets locates one draw list's geometry within the concatenated
// per-slot buffers.
type ListOffsets struct {
	// VertexBase is the list's first vertex, counted in vertices from the
	// start of the vertex buffer. Passed as the base vertex to indexed draws.
	VertexBase uint32
	// IndexBase is the list's first index, counted in indices from the start
	// of the index buffer.
	IndexBase uint32
}

// slot is one frame slot's pair of device buffers with their current capacities.
type slot struct {
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	vertexCap    uint64
	indexCap     uint64
}

// bufferPool is the implementation of the BufferPool interface.
type bufferPool struct {
	mu *sync.Mutex

	backend BufferBackend
	slots   []slot
	current int

	// scratch staging slices reused across frames to avoid per-frame allocation
	vertexScratch []byte
	indexScratch  []byte
}

// BufferPool owns the rotating vertex/index buffer slots for a renderer.
type BufferPool interface {
	// SlotCount returns the number of frame slots.
	//
	// Returns:
	//   - int: the slot count
	SlotCount() int

	// CurrentSlot returns the index of the slot the next upload targets.
	//
	// Returns:
	//   - int: the current slot index
	CurrentSlot() int

	// Advance rotates to the next frame slot.
	Advance()

	// Upload concatenates all draw lists' geometry and writes it into the
	// current slot's buffers, growing them if needed. Growth is to the next
	// power of two and never shrinks.
	//
	// Parameters:
	//   - data: the frame's draw data (must have non-zero totals)
	//
	// Returns:
	//   - []ListOffsets: per-list base offsets, index-aligned with data.Lists
	//   - error: error if buffer allocation or writing fails
	Upload(data *drawdata.DrawData) ([]ListOffsets, error)

	// VertexBuffer returns the current slot's vertex buffer, or nil before
	// the first upload into it.
	//
	// Returns:
	//   - *wgpu.Buffer: the current vertex buffer
	VertexBuffer() *wgpu.Buffer

	// IndexBuffer returns the current slot's index buffer, or nil before the
	// first upload into it.
	//
	// Returns:
	//   - *wgpu.Buffer: the current index buffer
	IndexBuffer() *wgpu.Buffer

	// VertexCapacity returns the current slot's vertex buffer capacity in bytes.
	//
	// Returns:
	//   - uint64: the capacity in bytes
	VertexCapacity() uint64

	// IndexCapacity returns the current slot's index buffer capacity in bytes.
	//
	// Returns:
	//   - uint64: the capacity in bytes
	IndexCapacity() uint64

	// Release frees all slots' device buffers.
	Release()
}

var _ BufferPool = &bufferPool{}

// NewBufferPool creates a buffer pool backed by the given device backend.
//
// Parameters:
//   - backend: the device operations implementation
//   - opts: a variadic list of BufferPoolBuilderOption functions to configure the pool
//
// Returns:
//   - BufferPool: a new BufferPool instance
func NewBufferPool(backend BufferBackend, opts ...BufferPoolBuilderOption) BufferPool {
	p := &bufferPool{
		mu:      &sync.Mutex{},
		backend: backend,
		slots:   make([]slot, DefaultSlotCount),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *bufferPool) SlotCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

func (p *bufferPool) CurrentSlot() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *bufferPool) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = (p.current + 1) % len(p.slots)
}

func (p *bufferPool) Upload(data *drawdata.DrawData) ([]ListOffsets, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vtxBytes := uint64(data.TotalVtxCount) * drawdata.VertexStride
	// Index data is padded to the 4-byte write alignment the queue requires.
	idxBytes := uint64(common.AlignUp(uint32(data.TotalIdxCount)*drawdata.IndexStride, 4))
	if vtxBytes == 0 || idxBytes == 0 {
		return nil, fmt.Errorf("upload called with empty draw data")
	}

	s := &p.slots[p.current]
	if err := p.ensureCapacity(s, vtxBytes, idxBytes); err != nil {
		return nil, err
	}

	if uint64(cap(p.vertexScratch)) < vtxBytes {
		p.vertexScratch = make([]byte, vtxBytes)
	}
	if uint64(cap(p.indexScratch)) < idxBytes {
		p.indexScratch = make([]byte, idxBytes)
	}
	vtxData := p.vertexScratch[:vtxBytes]
	idxData := p.indexScratch[:idxBytes]

	offsets := make([]ListOffsets, len(data.Lists))
	var vtxCursor, idxCursor uint32
	for i, list := range data.Lists {
		offsets[i] = ListOffsets{VertexBase: vtxCursor, IndexBase: idxCursor}
		copy(vtxData[uint64(vtxCursor)*drawdata.VertexStride:], common.SliceToBytes(list.Vertices))
		copy(idxData[uint64(idxCursor)*drawdata.IndexStride:], common.SliceToBytes(list.Indices))
		vtxCursor += uint32(len(list.Vertices))
		idxCursor += uint32(len(list.Indices))
	}

	if err := p.backend.WriteBuffer(s.vertexBuffer, 0, vtxData); err != nil {
		return nil, fmt.Errorf("failed to write vertex buffer: %w", err)
	}
	if err := p.backend.WriteBuffer(s.indexBuffer, 0, idxData); err != nil {
		return nil, fmt.Errorf("failed to write index buffer: %w", err)
	}
	return offsets, nil
}

// ensureCapacity grows a slot's buffers to hold the required byte counts.
// Capacities only ever increase, to the next power of two.
func (p *bufferPool) ensureCapacity(s *slot, vtxBytes, idxBytes uint64) error {
	if s.vertexBuffer == nil || s.vertexCap < vtxBytes {
		newCap := common.NextPowerOfTwo(vtxBytes)
		buf, err := p.backend.CreateBuffer("ui vertex buffer", newCap, wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst)
		if err != nil {
			return fmt.Errorf("failed to grow vertex buffer to %d bytes: %w", newCap, err)
		}
		if s.vertexBuffer != nil {
			p.backend.ReleaseBuffer(s.vertexBuffer)
		}
		s.vertexBuffer = buf
		s.vertexCap = newCap
	}
	if s.indexBuffer == nil || s.indexCap < idxBytes {
		newCap := common.NextPowerOfTwo(idxBytes)
		buf, err := p.backend.CreateBuffer("ui index buffer", newCap, wgpu.BufferUsageIndex|wgpu.BufferUsageCopyDst)
		if err != nil {
			return fmt.Errorf("failed to grow index buffer to %d bytes: %w", newCap, err)
		}
		if s.indexBuffer != nil {
			p.backend.ReleaseBuffer(s.indexBuffer)
		}
		s.indexBuffer = buf
		s.indexCap = newCap
	}
	return nil
}

func (p *bufferPool) VertexBuffer() *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[p.current].vertexBuffer
}

func (p *bufferPool) IndexBuffer() *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[p.current].indexBuffer
}

func (p *bufferPool) VertexCapacity() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[p.current].vertexCap
}

func (p *bufferPool) IndexCapacity() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[p.current].indexCap
}

func (p *bufferPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		s := &p.slots[i]
		if s.vertexBuffer != nil {
			p.backend.ReleaseBuffer(s.vertexBuffer)
			s.vertexBuffer = nil
			s.vertexCap = 0
		}
		if s.indexBuffer != nil {
			p.backend.ReleaseBuffer(s.indexBuffer)
			s.indexBuffer = nil
			s.indexCap = 0
		}
	}
}
