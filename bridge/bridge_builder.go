package bridge

import (
	"time"

	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/pipeline"
	"github.com/Carmen-Shannon/imdraw-go/bridge/surface"
	"github.com/Carmen-Shannon/imdraw-go/bridge/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// BridgeBuilderOption is a functional option for configuring a Bridge.
// Use the With* functions to create options that are applied directly to the bridge instance.
type BridgeBuilderOption func(*bridge)

// WithProfiling enables or disables frame statistics output.
//
// Parameters:
//   - enabled: if true, enables frame statistics
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithProfiling(enabled bool) BridgeBuilderOption {
	return func(b *bridge) {
		b.profilingEnabled = enabled
	}
}

// WithTickRate sets the update tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - tps: target ticks per second (default 60)
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithTickRate(tps float64) BridgeBuilderOption {
	return func(b *bridge) {
		if tps <= 0 {
			tps = 60.0
		}
		b.tickRate = time.Second / time.Duration(tps)
	}
}

// WithWindow sets a custom configured window for the bridge to use rather
// than allowing the bridge to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithWindow(w window.Window) BridgeBuilderOption {
	return func(b *bridge) {
		b.window = w
	}
}

// WithRenderer sets a pre-built renderer, bypassing renderer construction in
// Init.
//
// Parameters:
//   - r: a pre-configured Renderer instance
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) BridgeBuilderOption {
	return func(b *bridge) {
		b.renderer = r
	}
}

// WithPipelineOptions forwards pipeline options to the renderer the bridge
// constructs in Init. Ignored when WithRenderer is used.
//
// Parameters:
//   - opts: pipeline builder options to apply
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithPipelineOptions(opts ...pipeline.PipelineBuilderOption) BridgeBuilderOption {
	return func(b *bridge) {
		b.pipelineOpts = append(b.pipelineOpts, opts...)
	}
}

// WithPresentMode sets the present mode for the window's surface.
//
// Parameters:
//   - mode: the present mode (default vsync)
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithPresentMode(mode surface.PresentMode) BridgeBuilderOption {
	return func(b *bridge) {
		b.presentMode = mode
	}
}

// WithClearColor clears every frame's target to the given color before UI
// drawing. Without it the UI is composited over the target's existing
// contents.
//
// Parameters:
//   - color: the clear color
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithClearColor(color wgpu.Color) BridgeBuilderOption {
	return func(b *bridge) {
		b.clearColor = &color
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) BridgeBuilderOption {
	return func(b *bridge) {
		if fps <= 0 {
			b.renderFrameLimit = 0
			return
		}
		b.renderFrameLimit = time.Second / time.Duration(fps)
	}
}
