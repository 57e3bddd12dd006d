package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/buffer_pool"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/pipeline"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/texture_manager"
	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/Carmen-Shannon/imdraw-go/drawdata"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDraw struct {
	indexCount uint32
	firstIndex uint32
	baseVertex uint32
	scissor    common.Scissor
	bindGroup  *wgpu.BindGroup
}

type fakeBufferBackend struct{}

func (f *fakeBufferBackend) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	return &wgpu.Buffer{}, nil
}

func (f *fakeBufferBackend) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error {
	return nil
}

func (f *fakeBufferBackend) ReleaseBuffer(buf *wgpu.Buffer) {}

type fakeImageBackend struct{}

func (f *fakeImageBackend) CreateImage(label string, width, height uint32) (*texture_manager.Image, error) {
	return &texture_manager.Image{Width: width, Height: height}, nil
}

func (f *fakeImageBackend) WriteImage(img *texture_manager.Image, x, y uint32, staged common.TextureStagingData) error {
	return nil
}

func (f *fakeImageBackend) DestroyImage(img *texture_manager.Image) {}

// fakeRendererBackend records the pass commands the renderer encodes so tests
// can assert on frame structure without a GPU.
type fakeRendererBackend struct {
	buffers fakeBufferBackend
	images  fakeImageBackend

	rawSupported   bool
	rawEncoder     any
	failBindGroups bool

	beginFrames        int
	endFrames          int
	abandonedFrames    int
	setupCalls         int
	createdBindGroups  int
	releasedBindGroups int

	currentBindGroup *wgpu.BindGroup
	currentScissor   common.Scissor
	clear            *wgpu.Color
	draws            []fakeDraw
}

var _ RendererBackend = &fakeRendererBackend{}

func (f *fakeRendererBackend) Device() *wgpu.Device             { return nil }
func (f *fakeRendererBackend) Queue() *wgpu.Queue               { return nil }
func (f *fakeRendererBackend) Instance() *wgpu.Instance         { return nil }
func (f *fakeRendererBackend) Adapter() *wgpu.Adapter           { return nil }
func (f *fakeRendererBackend) CompatibleSurface() *wgpu.Surface { return nil }

func (f *fakeRendererBackend) CreateSurface(descriptor *wgpu.SurfaceDescriptor) *wgpu.Surface {
	return nil
}

func (f *fakeRendererBackend) Init(p pipeline.Pipeline) error { return nil }

func (f *fakeRendererBackend) Buffers() buffer_pool.BufferBackend { return &f.buffers }

func (f *fakeRendererBackend) Images() texture_manager.ImageBackend { return &f.images }

func (f *fakeRendererBackend) CreateImageBindGroup(p pipeline.Pipeline, img *texture_manager.Image) (*wgpu.BindGroup, error) {
	if f.failBindGroups {
		return nil, assert.AnError
	}
	f.createdBindGroups++
	return &wgpu.BindGroup{}, nil
}

func (f *fakeRendererBackend) ReleaseBindGroup(bg *wgpu.BindGroup) { f.releasedBindGroups++ }

func (f *fakeRendererBackend) BeginFrame(target *wgpu.TextureView, clear *wgpu.Color) error {
	f.beginFrames++
	f.clear = clear
	return nil
}

func (f *fakeRendererBackend) SetupRenderState(p pipeline.Pipeline, uniforms *pipeline.Uniforms, vertexBuffer, indexBuffer *wgpu.Buffer, fbWidth, fbHeight uint32) {
	f.setupCalls++
}

func (f *fakeRendererBackend) SetImageBindGroup(bg *wgpu.BindGroup) { f.currentBindGroup = bg }

func (f *fakeRendererBackend) SetScissor(s common.Scissor) { f.currentScissor = s }

func (f *fakeRendererBackend) DrawIndexed(indexCount, firstIndex, baseVertex uint32) {
	f.draws = append(f.draws, fakeDraw{
		indexCount: indexCount,
		firstIndex: firstIndex,
		baseVertex: baseVertex,
		scissor:    f.currentScissor,
		bindGroup:  f.currentBindGroup,
	})
}

func (f *fakeRendererBackend) SupportsRawCallbacks() bool { return f.rawSupported }

func (f *fakeRendererBackend) RawEncoder() any { return f.rawEncoder }

func (f *fakeRendererBackend) EndFrame() error {
	f.endFrames++
	return nil
}

func (f *fakeRendererBackend) AbandonFrame() { f.abandonedFrames++ }

func (f *fakeRendererBackend) Release() {}

func newTestRenderer(t *testing.T) (Renderer, *fakeRendererBackend) {
	t.Helper()
	backend := &fakeRendererBackend{}
	r := NewRenderer(BackendTypeWGPU, nil, WithBackend(backend))
	require.NoError(t, r.Init())
	return r, backend
}

// triangleList builds one draw list holding count triangles, each with its own
// three vertices, and one Elements command per triangle.
func triangleList(count int, texID uint64) *drawdata.DrawList {
	list := &drawdata.DrawList{}
	for i := 0; i < count; i++ {
		base := uint32(len(list.Vertices))
		for j := 0; j < 3; j++ {
			list.Vertices = append(list.Vertices, drawdata.DrawVertex{
				Pos:   [2]float32{float32(i), float32(j)},
				Color: 0xFFFFFFFF,
			})
		}
		list.Commands = append(list.Commands, drawdata.DrawCommand{
			Kind:         drawdata.CommandElements,
			ClipRect:     common.Rect{Left: 0, Top: 0, Right: 100, Bottom: 100},
			TextureID:    texID,
			IndexOffset:  uint32(len(list.Indices)),
			VertexOffset: base,
			ElemCount:    3,
		})
		list.Indices = append(list.Indices, 0, 1, 2)
	}
	return list
}

func frameData(lists ...*drawdata.DrawList) *drawdata.DrawData {
	d := &drawdata.DrawData{
		Lists:            lists,
		DisplaySize:      [2]float32{100, 100},
		FramebufferScale: [2]float32{1, 1},
	}
	for _, list := range lists {
		d.TotalVtxCount += uint32(len(list.Vertices))
		d.TotalIdxCount += uint32(len(list.Indices))
	}
	return d
}

func TestRenderDrawDataEncodesDraws(t *testing.T) {
	r, backend := newTestRenderer(t)

	data := frameData(triangleList(2, 0))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))

	assert.Equal(t, 1, backend.beginFrames)
	assert.Equal(t, 1, backend.endFrames)
	require.Len(t, backend.draws, 2)
	assert.Equal(t, uint32(3), backend.draws[0].indexCount)
	assert.Equal(t, uint32(0), backend.draws[0].firstIndex)
	assert.Equal(t, uint32(3), backend.draws[1].firstIndex)
	assert.Equal(t, uint32(3), backend.draws[1].baseVertex)
}

func TestRenderDrawDataCumulativeListOffsets(t *testing.T) {
	r, backend := newTestRenderer(t)

	// Two lists: the second list's draws must be offset past the first list's
	// geometry in the shared frame buffers.
	data := frameData(triangleList(1, 0), triangleList(1, 0))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))

	require.Len(t, backend.draws, 2)
	assert.Equal(t, uint32(0), backend.draws[0].firstIndex)
	assert.Equal(t, uint32(0), backend.draws[0].baseVertex)
	assert.Equal(t, uint32(3), backend.draws[1].firstIndex)
	assert.Equal(t, uint32(3), backend.draws[1].baseVertex)
}

func TestRenderDrawDataEmptyFrameStillProcessesTextures(t *testing.T) {
	r, backend := newTestRenderer(t)

	tex := &drawdata.TextureData{
		ID:     7,
		Status: drawdata.StatusWantCreate,
		Format: drawdata.FormatRGBA32,
		Width:  2,
		Height: 2,
		Pixels: make([]byte, 16),
	}
	data := &drawdata.DrawData{Textures: []*drawdata.TextureData{tex}}
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))

	assert.Equal(t, 0, backend.beginFrames)
	assert.True(t, r.Textures().Has(7))
	assert.Equal(t, drawdata.StatusOK, tex.Status)
}

func TestRenderDrawDataZeroFramebufferSkipsEncoding(t *testing.T) {
	r, backend := newTestRenderer(t)

	data := frameData(triangleList(1, 0))
	require.NoError(t, r.RenderDrawData(data, nil, 0, 0))
	assert.Equal(t, 0, backend.beginFrames)
}

func TestRenderDrawDataInvalidDataRejected(t *testing.T) {
	r, backend := newTestRenderer(t)

	data := frameData(triangleList(1, 0))
	data.TotalVtxCount++
	err := r.RenderDrawData(data, nil, 100, 100)
	require.Error(t, err)
	assert.Equal(t, 0, backend.beginFrames)
}

func TestRenderDrawDataSharedBindGroupCache(t *testing.T) {
	r, backend := newTestRenderer(t)

	// Two draws against the default texture reuse one bind group, across frames too.
	data := frameData(triangleList(2, 0))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	assert.Equal(t, 1, backend.createdBindGroups)
}

func TestRenderDrawDataUnknownTextureSharesDefault(t *testing.T) {
	r, backend := newTestRenderer(t)

	data := frameData(triangleList(1, 0), triangleList(1, 42))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))

	require.Len(t, backend.draws, 2)
	assert.Equal(t, 1, backend.createdBindGroups)
	assert.Same(t, backend.draws[0].bindGroup, backend.draws[1].bindGroup)
}

func TestRenderDrawDataChangedTextureDropsCachedBindGroup(t *testing.T) {
	r, backend := newTestRenderer(t)

	tex := &drawdata.TextureData{
		ID:     5,
		Status: drawdata.StatusWantCreate,
		Format: drawdata.FormatRGBA32,
		Width:  2,
		Height: 2,
		Pixels: make([]byte, 16),
	}
	data := frameData(triangleList(1, 5))
	data.Textures = []*drawdata.TextureData{tex}
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	assert.Equal(t, 1, backend.createdBindGroups)

	// Recreating the texture's backing image must invalidate the cached bind
	// group so the next draw binds the new image.
	require.NoError(t, tex.SetStatus(drawdata.StatusWantCreate))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	assert.Equal(t, 1, backend.releasedBindGroups)
	assert.Equal(t, 2, backend.createdBindGroups)
}

func TestRenderDrawDataResetRenderState(t *testing.T) {
	r, backend := newTestRenderer(t)

	list := triangleList(1, 0)
	list.Commands = append(list.Commands, drawdata.DrawCommand{Kind: drawdata.CommandResetRenderState})
	data := frameData(list)
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))

	// Once at frame start, once for the reset command.
	assert.Equal(t, 2, backend.setupCalls)
}

func TestRenderDrawDataRawCallbackSkippedWhenUnsupported(t *testing.T) {
	r, backend := newTestRenderer(t)
	backend.rawSupported = false

	invoked := false
	list := triangleList(1, 0)
	list.Commands = append(list.Commands, drawdata.DrawCommand{
		Kind:     drawdata.CommandRawCallback,
		Callback: func(encoder any, userData any) { invoked = true },
	})
	data := frameData(list)
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))

	assert.False(t, invoked)
	assert.Equal(t, 1, backend.setupCalls)
}

func TestRenderDrawDataRawCallbackInvoked(t *testing.T) {
	r, backend := newTestRenderer(t)
	backend.rawSupported = true
	backend.rawEncoder = "encoder"

	var gotEncoder, gotUser any
	list := triangleList(1, 0)
	list.Commands = append(list.Commands, drawdata.DrawCommand{
		Kind: drawdata.CommandRawCallback,
		Callback: func(encoder any, userData any) {
			gotEncoder = encoder
			gotUser = userData
		},
		UserData: 99,
	})
	data := frameData(list)
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))

	assert.Equal(t, "encoder", gotEncoder)
	assert.Equal(t, 99, gotUser)
	// The callback may clobber pass state, so the baseline is re-applied.
	assert.Equal(t, 2, backend.setupCalls)
}

func TestRenderDrawDataOffscreenClipSkipsDraw(t *testing.T) {
	r, backend := newTestRenderer(t)

	list := triangleList(1, 0)
	list.Commands[0].ClipRect = common.Rect{Left: -50, Top: -50, Right: -10, Bottom: -10}
	data := frameData(list)
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))

	assert.Empty(t, backend.draws)
	assert.Equal(t, 1, backend.endFrames)
}

func TestRenderDrawDataSlotAdvance(t *testing.T) {
	r, _ := newTestRenderer(t)

	data := frameData(triangleList(1, 0))
	start := r.Buffers().CurrentSlot()
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	assert.NotEqual(t, start, r.Buffers().CurrentSlot())

	after := r.Buffers().CurrentSlot()
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100, WithoutSlotAdvance()))
	assert.Equal(t, after, r.Buffers().CurrentSlot())
}

func TestRenderDrawDataClearColor(t *testing.T) {
	r, backend := newTestRenderer(t)

	data := frameData(triangleList(1, 0))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100, WithClearColor(wgpu.Color{R: 1})))
	require.NotNil(t, backend.clear)
	assert.Equal(t, 1.0, backend.clear.R)

	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	assert.Nil(t, backend.clear)
}

func TestRenderDrawDataTextureErrorAbortsBeforeEncoding(t *testing.T) {
	r, backend := newTestRenderer(t)

	tex := &drawdata.TextureData{
		ID:     3,
		Status: drawdata.StatusWantCreate,
		Format: drawdata.FormatRGBA32,
		Width:  2,
		Height: 2,
		// Pixel payload too small for the declared extent.
		Pixels: make([]byte, 4),
	}
	data := frameData(triangleList(1, 0))
	data.Textures = []*drawdata.TextureData{tex}

	err := r.RenderDrawData(data, nil, 100, 100)
	require.Error(t, err)
	assert.Equal(t, 0, backend.beginFrames)

	// The renderer stays usable after a failed frame.
	data.Textures = nil
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	assert.Equal(t, 1, backend.endFrames)
}

func TestRenderDrawDataBindGroupFailureAbandonsFrame(t *testing.T) {
	r, backend := newTestRenderer(t)
	backend.failBindGroups = true

	data := frameData(triangleList(1, 0))
	err := r.RenderDrawData(data, nil, 100, 100)
	require.Error(t, err)

	// The partially encoded frame is dropped, never submitted.
	assert.Equal(t, 1, backend.beginFrames)
	assert.Equal(t, 0, backend.endFrames)
	assert.Equal(t, 1, backend.abandonedFrames)

	backend.failBindGroups = false
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	assert.Equal(t, 1, backend.endFrames)
}

func TestInvalidateResources(t *testing.T) {
	r, backend := newTestRenderer(t)

	data := frameData(triangleList(1, 0))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	require.Equal(t, 1, backend.createdBindGroups)

	r.InvalidateResources()
	assert.Equal(t, 1, backend.releasedBindGroups)

	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	assert.Equal(t, 2, backend.createdBindGroups)
}

func TestReleaseDropsEverything(t *testing.T) {
	r, backend := newTestRenderer(t)

	data := frameData(triangleList(1, 0))
	require.NoError(t, r.RenderDrawData(data, nil, 100, 100))
	r.Release()
	assert.Equal(t, backend.createdBindGroups, backend.releasedBindGroups)
}
