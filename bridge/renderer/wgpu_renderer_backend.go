package renderer

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/buffer_pool"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/pipeline"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/texture_manager"
	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter

	// compatSurface is the surface created from the constructor's descriptor,
	// used for adapter compatibility and adoptable by the surface manager.
	compatSurface *wgpu.Surface

	// Common resources shared by every frame: the uniform block, the sampler
	// and the group 0 bind group tying them together.
	uniformBuffer   *wgpu.Buffer
	sampler         *wgpu.Sampler
	commonBindGroup *wgpu.BindGroup

	// Frame state for the render pass currently being encoded
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
}

type wgpuRendererBackend interface {
	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter

	// CompatibleSurface returns the surface created during construction, or
	// nil for a headless backend. The surface manager adopts it for the
	// primary window.
	//
	// Returns:
	//   - *wgpu.Surface: the constructor-created surface
	CompatibleSurface() *wgpu.Surface

	// CreateSurface creates an additional surface from a platform descriptor,
	// for secondary windows.
	//
	// Parameters:
	//   - descriptor: the platform-specific surface descriptor
	//
	// Returns:
	//   - *wgpu.Surface: the created surface
	CreateSurface(descriptor *wgpu.SurfaceDescriptor) *wgpu.Surface

	// Init creates the GPU objects for the fixed pipeline: the shader module,
	// both bind group layouts, the render pipeline, the uniform buffer, the
	// sampler and the common bind group.
	//
	// Parameters:
	//   - p: the pipeline configuration to realize on the device
	//
	// Returns:
	//   - error: an error if any object could not be created
	Init(p pipeline.Pipeline) error

	// Buffers returns the device operations used by the buffer pool.
	//
	// Returns:
	//   - buffer_pool.BufferBackend: the buffer backend
	Buffers() buffer_pool.BufferBackend

	// Images returns the device operations used by the texture manager.
	//
	// Returns:
	//   - texture_manager.ImageBackend: the image backend
	Images() texture_manager.ImageBackend

	// CreateImageBindGroup creates a group 1 bind group sampling the given image.
	//
	// Parameters:
	//   - p: the pipeline whose image layout the bind group targets
	//   - img: the image to bind
	//
	// Returns:
	//   - *wgpu.BindGroup: the created bind group
	//   - error: an error if creation fails
	CreateImageBindGroup(p pipeline.Pipeline, img *texture_manager.Image) (*wgpu.BindGroup, error)

	// ReleaseBindGroup releases a bind group created by CreateImageBindGroup.
	//
	// Parameters:
	//   - bg: the bind group to release
	ReleaseBindGroup(bg *wgpu.BindGroup)

	// BeginFrame creates a command encoder and begins a render pass targeting
	// the given view. Must be paired with EndFrame.
	//
	// Parameters:
	//   - target: the render target view
	//   - clear: the clear color, or nil to load the target's existing contents
	//
	// Returns:
	//   - error: an error if the encoder could not be created
	BeginFrame(target *wgpu.TextureView, clear *wgpu.Color) error

	// SetupRenderState applies the baseline pass state: pipeline, common bind
	// group, uploaded uniforms, geometry buffers, and a viewport/scissor
	// covering the whole framebuffer. Called at pass start and again after
	// any command that may have clobbered state.
	//
	// Parameters:
	//   - p: the pipeline to bind
	//   - uniforms: the frame's uniform block, written to the uniform buffer
	//   - vertexBuffer: the frame slot's vertex buffer
	//   - indexBuffer: the frame slot's index buffer
	//   - fbWidth, fbHeight: the framebuffer extent in pixels
	SetupRenderState(p pipeline.Pipeline, uniforms *pipeline.Uniforms, vertexBuffer, indexBuffer *wgpu.Buffer, fbWidth, fbHeight uint32)

	// SetImageBindGroup binds a texture's group 1 bind group on the current pass.
	//
	// Parameters:
	//   - bg: the image bind group
	SetImageBindGroup(bg *wgpu.BindGroup)

	// SetScissor applies a scissor rectangle on the current pass.
	//
	// Parameters:
	//   - s: the scissor rectangle in framebuffer pixels
	SetScissor(s common.Scissor)

	// DrawIndexed encodes one indexed draw on the current pass.
	//
	// Parameters:
	//   - indexCount: the number of indices to draw
	//   - firstIndex: the first index within the bound index buffer
	//   - baseVertex: the base vertex added to each index
	DrawIndexed(indexCount, firstIndex, baseVertex uint32)

	// SupportsRawCallbacks reports whether this backend exposes a raw
	// encoding context to producer callbacks.
	//
	// Returns:
	//   - bool: true if raw callbacks are supported
	SupportsRawCallbacks() bool

	// RawEncoder returns the backend-specific encoding context handed to raw
	// callbacks, or nil when unsupported.
	//
	// Returns:
	//   - any: the raw encoding context
	RawEncoder() any

	// EndFrame ends the current render pass and submits the command buffer.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	EndFrame() error

	// AbandonFrame ends the current render pass and discards the encoder
	// without submitting, dropping everything encoded this frame. A no-op
	// when no frame is open.
	AbandonFrame()

	// Release frees the backend's device objects.
	Release()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}
var _ buffer_pool.BufferBackend = &wgpuRendererBackendImpl{}
var _ texture_manager.ImageBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) wgpuRendererBackend {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
	}
	if surfaceDescriptor != nil {
		b.compatSurface = b.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.compatSurface,
	})
	if err != nil {
		panic(err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "UI Device",
	})
	if err != nil {
		panic(err)
	}
	b.device = d
	b.queue = d.GetQueue()

	return b
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance {
	return b.instance
}

func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter {
	return b.adapter
}

func (b *wgpuRendererBackendImpl) CompatibleSurface() *wgpu.Surface {
	return b.compatSurface
}

func (b *wgpuRendererBackendImpl) CreateSurface(descriptor *wgpu.SurfaceDescriptor) *wgpu.Surface {
	return b.instance.CreateSurface(descriptor)
}

func (b *wgpuRendererBackendImpl) Init(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "UI Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.ShaderSource(),
		},
	})
	if err != nil {
		return err
	}
	p.SetShaderModule(module)

	commonLayout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "UI Common Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: pipeline.UniformsSize,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create common bind group layout: %w", err)
	}

	imageLayout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "UI Image Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create image bind group layout: %w", err)
	}
	p.SetBindGroupLayouts(commonLayout, imageLayout)

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "UI Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{commonLayout, imageLayout},
	})
	if err != nil {
		return err
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "UI Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: pipeline.VSEntryPoint,
			Buffers:    []wgpu.VertexBufferLayout{p.VertexLayout()},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: pipeline.FSEntryPoint,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    p.TargetFormat(),
					Blend:     p.BlendState(),
					WriteMask: p.WriteMask(),
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: p.SampleCount(),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: func() *wgpu.DepthStencilState {
			if p.DepthFormat() == wgpu.TextureFormatUndefined {
				return nil
			}
			// UI draws over whatever is already in the target, so depth is
			// never written and always passes.
			return &wgpu.DepthStencilState{
				Format:            p.DepthFormat(),
				DepthWriteEnabled: false,
				DepthCompare:      wgpu.CompareFunctionAlways,
				StencilFront: wgpu.StencilFaceState{
					Compare: wgpu.CompareFunctionAlways,
				},
				StencilBack: wgpu.StencilFaceState{
					Compare: wgpu.CompareFunctionAlways,
				},
			}
		}(),
	})
	if err != nil {
		return err
	}
	p.SetRenderPipeline(created)

	return b.initCommonResources(p)
}

// initCommonResources creates the uniform buffer, sampler and group 0 bind
// group shared by every frame.
func (b *wgpuRendererBackendImpl) initCommonResources(p pipeline.Pipeline) error {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "UI Uniform Buffer",
		Size:  pipeline.UniformsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create uniform buffer: %w", err)
	}
	b.uniformBuffer = buf

	samplerData := p.Sampler()
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "UI Sampler",
		AddressModeU:  common.Coalesce(samplerData.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(samplerData.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(samplerData.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(samplerData.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(samplerData.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(samplerData.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   samplerData.LodMinClamp,
		LodMaxClamp:   common.Coalesce(samplerData.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(samplerData.MaxAnisotropy, 1),
	})
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}
	b.sampler = samp

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "UI Common Bind Group",
		Layout: p.CommonLayout(),
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  b.uniformBuffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			},
			{
				Binding: 1,
				Sampler: b.sampler,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create common bind group: %w", err)
	}
	b.commonBindGroup = bg

	return nil
}

func (b *wgpuRendererBackendImpl) Buffers() buffer_pool.BufferBackend {
	return b
}

func (b *wgpuRendererBackendImpl) Images() texture_manager.ImageBackend {
	return b
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.queue.WriteBuffer(buf, offset, data)
}

func (b *wgpuRendererBackendImpl) ReleaseBuffer(buf *wgpu.Buffer) {
	buf.Release()
}

func (b *wgpuRendererBackendImpl) CreateImage(label string, width, height uint32) (*texture_manager.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}

	return &texture_manager.Image{
		Texture: tex,
		View:    view,
		Width:   width,
		Height:  height,
	}, nil
}

func (b *wgpuRendererBackendImpl) WriteImage(img *texture_manager.Image, x, y uint32, staged common.TextureStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  img.Texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: x, Y: y},
			Aspect:   wgpu.TextureAspectAll,
		},
		staged.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  common.Coalesce(staged.BytesPerRow, staged.Width*4),
			RowsPerImage: staged.Height,
		},
		&wgpu.Extent3D{
			Width:              staged.Width,
			Height:             staged.Height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (b *wgpuRendererBackendImpl) DestroyImage(img *texture_manager.Image) {
	if img.View != nil {
		img.View.Release()
		img.View = nil
	}
	if img.Texture != nil {
		img.Texture.Release()
		img.Texture = nil
	}
}

func (b *wgpuRendererBackendImpl) CreateImageBindGroup(p pipeline.Pipeline, img *texture_manager.Image) (*wgpu.BindGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "UI Image Bind Group",
		Layout: p.ImageLayout(),
		Entries: []wgpu.BindGroupEntry{
			{
				Binding:     0,
				TextureView: img.View,
			},
		},
	})
}

func (b *wgpuRendererBackendImpl) ReleaseBindGroup(bg *wgpu.BindGroup) {
	bg.Release()
}

func (b *wgpuRendererBackendImpl) BeginFrame(target *wgpu.TextureView, clear *wgpu.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass != nil {
		return fmt.Errorf("previous frame pass not yet ended")
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}

	attachment := wgpu.RenderPassColorAttachment{
		View:    target,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if clear != nil {
		attachment.LoadOp = wgpu.LoadOpClear
		attachment.ClearValue = *clear
	}

	b.framePass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            "UI Render Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{attachment},
	})
	b.frameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) SetupRenderState(p pipeline.Pipeline, uniforms *pipeline.Uniforms, vertexBuffer, indexBuffer *wgpu.Buffer, fbWidth, fbHeight uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}

	b.queue.WriteBuffer(b.uniformBuffer, 0, uniforms.Bytes())

	b.framePass.SetPipeline(p.RenderPipeline())
	b.framePass.SetBindGroup(0, b.commonBindGroup, nil)
	b.framePass.SetVertexBuffer(0, vertexBuffer, 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(indexBuffer, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
	b.framePass.SetViewport(0, 0, float32(fbWidth), float32(fbHeight), 0, 1)
	b.framePass.SetScissorRect(0, 0, fbWidth, fbHeight)
}

func (b *wgpuRendererBackendImpl) SetImageBindGroup(bg *wgpu.BindGroup) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.SetBindGroup(1, bg, nil)
}

func (b *wgpuRendererBackendImpl) SetScissor(s common.Scissor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.SetScissorRect(s.X, s.Y, s.Width, s.Height)
}

func (b *wgpuRendererBackendImpl) DrawIndexed(indexCount, firstIndex, baseVertex uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.DrawIndexed(indexCount, 1, firstIndex, int32(baseVertex), 0)
}

func (b *wgpuRendererBackendImpl) SupportsRawCallbacks() bool {
	// Mid-pass encoder state is owned by this backend and not safe to hand
	// out; raw callback commands are skipped.
	return false
}

func (b *wgpuRendererBackendImpl) RawEncoder() any {
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return fmt.Errorf("no frame pass to end")
	}

	b.framePass.End()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	return nil
}

func (b *wgpuRendererBackendImpl) AbandonFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass = nil
	b.frameEncoder.Release()
	b.frameEncoder = nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.commonBindGroup != nil {
		b.commonBindGroup.Release()
		b.commonBindGroup = nil
	}
	if b.sampler != nil {
		b.sampler.Release()
		b.sampler = nil
	}
	if b.uniformBuffer != nil {
		b.uniformBuffer.Release()
		b.uniformBuffer = nil
	}
	// compatSurface is not released here: the presenter that adopted it via
	// CompatibleSurface owns it and releases it with its surface.
	b.compatSurface = nil
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
