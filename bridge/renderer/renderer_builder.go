package renderer

import (
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBuilderOption is a functional option used to configure a Renderer during construction.
type RendererBuilderOption func(*renderer)

// FrameOption is a functional option controlling a single RenderDrawData call.
type FrameOption func(*frameConfig)

// frameConfig carries the per-frame flags applied by FrameOptions.
type frameConfig struct {
	advanceSlot bool
	clear       *wgpu.Color
}

// WithForceFallbackAdapter forces selection of a software/fallback GPU adapter.
// Useful for headless environments and CI.
//
// Returns:
//   - RendererBuilderOption: a function that enables fallback adapter selection
func WithForceFallbackAdapter() RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = true
	}
}

// WithPipelineOptions forwards options to the renderer's pipeline, for
// example WithTargetFormat to match a surface's format.
//
// Parameters:
//   - opts: pipeline builder options to apply
//
// Returns:
//   - RendererBuilderOption: a function that stores the pipeline options
func WithPipelineOptions(opts ...pipeline.PipelineBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPipelineOpts = append(r.pendingPipelineOpts, opts...)
	}
}

// WithBufferSlots sets the number of frame slots in the buffer pool.
//
// Parameters:
//   - count: the slot count (clamped to the pool's minimum)
//
// Returns:
//   - RendererBuilderOption: a function that sets the buffer slot count
func WithBufferSlots(count int) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingSlotCount = &count
	}
}

// WithTexturePackWorkers sets the worker count for parallel texture staging.
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - RendererBuilderOption: a function that sets the texture pack worker count
func WithTexturePackWorkers(workers int) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPackWorkers = &workers
	}
}

// WithBackend substitutes a custom RendererBackend implementation, bypassing
// backend construction from the backend type.
//
// Parameters:
//   - backend: the backend to use
//
// Returns:
//   - RendererBuilderOption: a function that sets the backend for this renderer
func WithBackend(backend RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = backend
	}
}

// WithoutSlotAdvance renders the frame into the current buffer slot instead of
// rotating first. Used when replicating one frame's geometry to several
// surfaces: the first surface advances, the rest reuse the uploaded slot.
//
// Returns:
//   - FrameOption: a function that disables the slot advance for this frame
func WithoutSlotAdvance() FrameOption {
	return func(c *frameConfig) {
		c.advanceSlot = false
	}
}

// WithClearColor clears the target to the given color before drawing instead
// of loading its existing contents.
//
// Parameters:
//   - color: the clear color
//
// Returns:
//   - FrameOption: a function that sets the clear color for this frame
func WithClearColor(color wgpu.Color) FrameOption {
	return func(c *frameConfig) {
		c.clear = &color
	}
}
