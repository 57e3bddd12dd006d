// package pipeline holds the fixed render pipeline configuration for UI
// draw-data rendering: the embedded WGSL shader pair, the vertex layout
// matching drawdata.DrawVertex, the two bind group layouts (common
// uniforms+sampler, per-texture image) and the blend/raster state. The
// package carries configuration and created GPU object handles; device calls
// happen in the renderer backend.
package pipeline

import (
	_ "embed"

	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/Carmen-Shannon/imdraw-go/drawdata"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/ui.wgsl
var uiShaderSource string

const (
	// VSEntryPoint is the vertex shader entry point name in the WGSL source.
	VSEntryPoint = "vs_main"
	// FSEntryPoint is the fragment shader entry point name in the WGSL source.
	FSEntryPoint = "fs_main"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the fixed configuration plus the WebGPU objects created from it.
type pipeline struct {
	// targetFormat is the color format of the render targets this pipeline draws into.
	targetFormat wgpu.TextureFormat
	// depthFormat is the depth attachment format, or TextureFormatUndefined when depth is disabled.
	depthFormat wgpu.TextureFormat
	// sampleCount is the MSAA sample count of the render targets.
	sampleCount uint32

	blendState *wgpu.BlendState
	cullMode   wgpu.CullMode
	topology   wgpu.PrimitiveTopology
	frontFace  wgpu.FrontFace
	writeMask  wgpu.ColorWriteMask
	sampler    common.SamplerStagingData

	// The following handles are populated by the renderer backend after device creation.

	shaderModule   *wgpu.ShaderModule
	renderPipeline *wgpu.RenderPipeline
	commonLayout   *wgpu.BindGroupLayout
	imageLayout    *wgpu.BindGroupLayout
}

// Pipeline describes the fixed UI render pipeline: shader source, vertex
// layout, bind group layouts and raster/blend state. Created GPU objects are
// attached via the Set* methods by whichever backend owns the device.
type Pipeline interface {
	// ShaderSource returns the WGSL source containing both entry points.
	//
	// Returns:
	//   - string: the embedded WGSL shader source
	ShaderSource() string

	// TargetFormat returns the color format this pipeline renders into.
	//
	// Returns:
	//   - wgpu.TextureFormat: the render target format
	TargetFormat() wgpu.TextureFormat

	// DepthFormat returns the depth attachment format, or
	// wgpu.TextureFormatUndefined when depth testing is disabled.
	//
	// Returns:
	//   - wgpu.TextureFormat: the depth format
	DepthFormat() wgpu.TextureFormat

	// SampleCount returns the MSAA sample count of the render targets.
	//
	// Returns:
	//   - uint32: the sample count (1 means no multisampling)
	SampleCount() uint32

	// Gamma returns the gamma exponent matching the target format.
	//
	// Returns:
	//   - float32: 2.2 for sRGB targets, 1.0 otherwise
	Gamma() float32

	// BlendState returns the blend state applied to the color target.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state
	BlendState() *wgpu.BlendState

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask
	WriteMask() wgpu.ColorWriteMask

	// Sampler returns the sampler configuration used by the common bind group.
	//
	// Returns:
	//   - common.SamplerStagingData: the sampler configuration
	Sampler() common.SamplerStagingData

	// VertexLayout returns the vertex buffer layout matching drawdata.DrawVertex.
	//
	// Returns:
	//   - wgpu.VertexBufferLayout: the single vertex buffer layout
	VertexLayout() wgpu.VertexBufferLayout

	// ShaderModule returns the compiled shader module, or nil before creation.
	//
	// Returns:
	//   - *wgpu.ShaderModule: the shader module
	ShaderModule() *wgpu.ShaderModule

	// RenderPipeline returns the created render pipeline, or nil before creation.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the render pipeline
	RenderPipeline() *wgpu.RenderPipeline

	// CommonLayout returns the bind group layout for group 0 (uniforms + sampler),
	// or nil before creation.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the common bind group layout
	CommonLayout() *wgpu.BindGroupLayout

	// ImageLayout returns the bind group layout for group 1 (sampled texture),
	// or nil before creation.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the image bind group layout
	ImageLayout() *wgpu.BindGroupLayout

	// SetShaderModule attaches the compiled shader module.
	//
	// Parameters:
	//   - m: the shader module
	SetShaderModule(m *wgpu.ShaderModule)

	// SetRenderPipeline attaches the created render pipeline.
	//
	// Parameters:
	//   - p: the render pipeline
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// SetBindGroupLayouts attaches the created bind group layouts.
	//
	// Parameters:
	//   - common: the group 0 layout (uniforms + sampler)
	//   - image: the group 1 layout (sampled texture)
	SetBindGroupLayouts(common, image *wgpu.BindGroupLayout)

	// Release drops the attached GPU objects, returning the pipeline to its
	// pre-creation state so a backend can rebuild it after device loss.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates the fixed UI pipeline configuration. Defaults match UI
// rendering conventions: premultiplied-style alpha blending, no culling,
// clockwise front faces, triangle lists, no depth, linear clamping sampler.
//
// Parameters:
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance
func NewPipeline(opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		targetFormat: wgpu.TextureFormatBGRA8Unorm,
		depthFormat:  wgpu.TextureFormatUndefined,
		sampleCount:  1,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCW,
		writeMask:    wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
		sampler: common.SamplerStagingData{
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeLinear,
			LodMinClamp:   0,
			LodMaxClamp:   32,
			MaxAnisotropy: 1,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) ShaderSource() string {
	return uiShaderSource
}

func (p *pipeline) TargetFormat() wgpu.TextureFormat {
	return p.targetFormat
}

func (p *pipeline) DepthFormat() wgpu.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) SampleCount() uint32 {
	return p.sampleCount
}

func (p *pipeline) Gamma() float32 {
	return GammaForFormat(p.targetFormat)
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) Sampler() common.SamplerStagingData {
	return p.sampler
}

func (p *pipeline) VertexLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: drawdata.VertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x2, Offset: drawdata.VertexPosOffset, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: drawdata.VertexUVOffset, ShaderLocation: 1},
			{Format: wgpu.VertexFormatUnorm8x4, Offset: drawdata.VertexColorOffset, ShaderLocation: 2},
		},
	}
}

func (p *pipeline) ShaderModule() *wgpu.ShaderModule {
	return p.shaderModule
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) CommonLayout() *wgpu.BindGroupLayout {
	return p.commonLayout
}

func (p *pipeline) ImageLayout() *wgpu.BindGroupLayout {
	return p.imageLayout
}

func (p *pipeline) SetShaderModule(m *wgpu.ShaderModule) {
	p.shaderModule = m
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetBindGroupLayouts(commonLayout, imageLayout *wgpu.BindGroupLayout) {
	p.commonLayout = commonLayout
	p.imageLayout = imageLayout
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.shaderModule != nil {
		p.shaderModule.Release()
		p.shaderModule = nil
	}
	if p.commonLayout != nil {
		p.commonLayout.Release()
		p.commonLayout = nil
	}
	if p.imageLayout != nil {
		p.imageLayout.Release()
		p.imageLayout = nil
	}
}
