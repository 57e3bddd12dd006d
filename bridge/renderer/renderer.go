// package renderer turns per-frame UI draw data into GPU work: it drives the
// texture lifecycle, uploads geometry through the rotating buffer pool, and
// walks the command stream encoding scissored indexed draws through a backend.
package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/buffer_pool"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/pipeline"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/texture_manager"
	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/Carmen-Shannon/imdraw-go/drawdata"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipeline pipeline.Pipeline
	buffers  buffer_pool.BufferPool
	textures texture_manager.TextureManager

	// resourceSets caches the per-texture image bind group, keyed by texture
	// id. Id 0 holds the default texture's bind group; unknown ids share it.
	resourceSets map[uint64]*wgpu.BindGroup

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	pendingPipelineOpts  []pipeline.PipelineBuilderOption
	pendingSlotCount     *int
	pendingPackWorkers   *int
	forceFallbackAdapter bool
}

// Renderer renders immediate-mode UI draw data into caller-supplied render
// targets. One renderer owns one pipeline, one buffer pool and one texture
// manager; frames on the same renderer are serialized.
type Renderer interface {
	// Init creates the GPU objects the renderer needs: the render pipeline,
	// the common uniform/sampler resources, and the default texture. Must be
	// called once before the first RenderDrawData.
	//
	// Returns:
	//   - error: error if pipeline or resource creation fails
	Init() error

	// Pipeline returns the fixed render pipeline configuration.
	//
	// Returns:
	//   - pipeline.Pipeline: the pipeline
	Pipeline() pipeline.Pipeline

	// Buffers returns the rotating vertex/index buffer pool.
	//
	// Returns:
	//   - buffer_pool.BufferPool: the buffer pool
	Buffers() buffer_pool.BufferPool

	// Textures returns the texture lifecycle manager.
	//
	// Returns:
	//   - texture_manager.TextureManager: the texture manager
	Textures() texture_manager.TextureManager

	// Backend returns the underlying GPU backend.
	//
	// Returns:
	//   - RendererBackend: the backend
	Backend() RendererBackend

	// RenderDrawData renders one frame of draw data into the given target
	// view. Texture lifecycle requests are processed even for frames with no
	// visible geometry. A failure aborts only this frame; the renderer stays
	// usable.
	//
	// Parameters:
	//   - data: the frame's draw data (treated as read-only until this returns)
	//   - target: the render target view to draw into
	//   - fbWidth, fbHeight: the target's framebuffer extent in pixels
	//   - opts: a variadic list of FrameOption functions for per-frame behavior
	//
	// Returns:
	//   - error: error if validation, texture processing, upload, or encoding fails
	RenderDrawData(data *drawdata.DrawData, target *wgpu.TextureView, fbWidth, fbHeight uint32, opts ...FrameOption) error

	// InvalidateResources drops every cached per-texture bind group. Call
	// after a pipeline rebuild or device loss; bind groups are recreated
	// lazily on the next frame.
	InvalidateResources()

	// Release frees all GPU resources owned by the renderer.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend type.
// Init must be called before rendering.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - surfaceDescriptor: platform surface descriptor used for adapter
//     selection, typically from Window.SurfaceDescriptor(); nil requests a
//     headless adapter
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new Renderer instance
func NewRenderer(backendType RendererBackendType, surfaceDescriptor *wgpu.SurfaceDescriptor, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:           &sync.Mutex{},
		resourceSets: make(map[uint64]*wgpu.BindGroup),
		backendType:  backendType,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			r.backend = newWGPURendererBackend(surfaceDescriptor, r.forceFallbackAdapter)
		}
	}

	r.pipeline = pipeline.NewPipeline(r.pendingPipelineOpts...)

	var poolOpts []buffer_pool.BufferPoolBuilderOption
	if r.pendingSlotCount != nil {
		poolOpts = append(poolOpts, buffer_pool.WithSlotCount(*r.pendingSlotCount))
	}
	r.buffers = buffer_pool.NewBufferPool(r.backend.Buffers(), poolOpts...)

	var texOpts []texture_manager.TextureManagerBuilderOption
	if r.pendingPackWorkers != nil {
		texOpts = append(texOpts, texture_manager.WithPackWorkers(*r.pendingPackWorkers))
	}
	r.textures = texture_manager.NewTextureManager(r.backend.Images(), texOpts...)

	return r
}

func (r *renderer) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.backend.Init(r.pipeline); err != nil {
		return fmt.Errorf("failed to initialize render pipeline: %w", err)
	}
	if _, err := r.textures.EnsureDefault(); err != nil {
		return fmt.Errorf("failed to create default texture: %w", err)
	}
	return nil
}

func (r *renderer) Pipeline() pipeline.Pipeline {
	return r.pipeline
}

func (r *renderer) Buffers() buffer_pool.BufferPool {
	return r.buffers
}

func (r *renderer) Textures() texture_manager.TextureManager {
	return r.textures
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) RenderDrawData(data *drawdata.DrawData, target *wgpu.TextureView, fbWidth, fbHeight uint32, opts ...FrameOption) error {
	cfg := frameConfig{advanceSlot: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Serializing frames on the renderer mutex doubles as the borrow guard:
	// draw data handed to this call is only read while the lock is held.
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := data.Valid(); err != nil {
		return fmt.Errorf("invalid draw data: %w", err)
	}

	changed, texErr := r.textures.Process(data.Textures)
	for _, id := range changed {
		r.dropResourceSet(id)
	}
	if texErr != nil {
		return texErr
	}

	if data.Empty() || fbWidth == 0 || fbHeight == 0 {
		return nil
	}

	if cfg.advanceSlot {
		r.buffers.Advance()
	}
	offsets, err := r.buffers.Upload(data)
	if err != nil {
		return err
	}

	uniforms := pipeline.NewUniforms()
	uniforms.SetOrthographic(data.DisplayPos, data.DisplaySize)
	uniforms.Gamma = r.pipeline.Gamma()

	if err := r.backend.BeginFrame(target, cfg.clear); err != nil {
		return err
	}

	setup := func() {
		r.backend.SetupRenderState(r.pipeline, &uniforms, r.buffers.VertexBuffer(), r.buffers.IndexBuffer(), fbWidth, fbHeight)
	}
	setup()

	for li, list := range data.Lists {
		base := offsets[li]
		for _, cmd := range list.Commands {
			switch cmd.Kind {
			case drawdata.CommandResetRenderState:
				setup()
			case drawdata.CommandRawCallback:
				if r.backend.SupportsRawCallbacks() && cmd.Callback != nil {
					cmd.Callback(r.backend.RawEncoder(), cmd.UserData)
					// The callback may have clobbered any pass state.
					setup()
				} else {
					common.Logger().Debug("raw draw callback not supported by backend, skipping")
				}
			case drawdata.CommandElements:
				if cmd.ElemCount == 0 {
					continue
				}
				scissor, visible := ClipToScissor(cmd.ClipRect, data.DisplayPos, data.FramebufferScale, fbWidth, fbHeight)
				if !visible {
					continue
				}
				bg, bgErr := r.resourceSet(cmd.TextureID)
				if bgErr != nil {
					// The frame is abandoned, never submitted.
					r.backend.AbandonFrame()
					return bgErr
				}
				r.backend.SetImageBindGroup(bg)
				r.backend.SetScissor(scissor)
				r.backend.DrawIndexed(cmd.ElemCount, base.IndexBase+cmd.IndexOffset, base.VertexBase+cmd.VertexOffset)
			}
		}
	}

	return r.backend.EndFrame()
}

// resourceSet returns the cached image bind group for a texture id, creating
// it on first use. Ids with no live texture share the default texture's entry.
func (r *renderer) resourceSet(id uint64) (*wgpu.BindGroup, error) {
	key := id
	if key != 0 && !r.textures.Has(key) {
		key = 0
	}
	if bg, ok := r.resourceSets[key]; ok {
		return bg, nil
	}

	img := r.textures.Resolve(key)
	if img == nil {
		return nil, fmt.Errorf("no texture available for id %d", id)
	}
	bg, err := r.backend.CreateImageBindGroup(r.pipeline, img)
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group for texture %d: %w", id, err)
	}
	r.resourceSets[key] = bg
	return bg, nil
}

// dropResourceSet releases the cached bind group for a texture id, if any.
func (r *renderer) dropResourceSet(id uint64) {
	if bg, ok := r.resourceSets[id]; ok {
		r.backend.ReleaseBindGroup(bg)
		delete(r.resourceSets, id)
	}
}

func (r *renderer) InvalidateResources() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, bg := range r.resourceSets {
		r.backend.ReleaseBindGroup(bg)
		delete(r.resourceSets, id)
	}
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, bg := range r.resourceSets {
		r.backend.ReleaseBindGroup(bg)
		delete(r.resourceSets, id)
	}
	r.buffers.Release()
	r.textures.Release()
	r.pipeline.Release()
	r.backend.Release()
}
