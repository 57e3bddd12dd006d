// package bridge wires the pieces together: a window producing a surface, a
// renderer consuming per-frame draw data, and a run loop that pulls draw data
// from the producer callback each frame and presents it.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/imdraw-go/bridge/profiler"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer"
	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer/pipeline"
	"github.com/Carmen-Shannon/imdraw-go/bridge/surface"
	"github.com/Carmen-Shannon/imdraw-go/bridge/window"
	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/Carmen-Shannon/imdraw-go/drawdata"
	"github.com/cogentcore/webgpu/wgpu"
)

// PrimarySurface is the name the bridge registers the window's surface under.
const PrimarySurface = "primary"

// bridge is the implementation of the Bridge interface.
// Coordinates the window thread, the render loop and the update tick loop.
type bridge struct {
	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window   window.Window
	renderer renderer.Renderer
	surfaces surface.Manager

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickRate      time.Duration
	tickCallback  func(deltaTime float32)
	frameCallback func(deltaTime float32) *drawdata.DrawData

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	clearColor       *wgpu.Color
	presentMode      surface.PresentMode
	pipelineOpts     []pipeline.PipelineBuilderOption
}

// Bridge is the main entry point: it owns the run loop that turns the
// producer's per-frame draw data into presented frames.
type Bridge interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the draw-data renderer, valid after Init.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Surfaces returns the surface manager, valid after Init. The window's
	// surface is registered under PrimarySurface.
	//
	// Returns:
	//   - surface.Manager: the surface manager
	Surfaces() surface.Manager

	// Init creates the renderer, configures the window's surface and wires
	// resize events. Must be called once before Run.
	//
	// Returns:
	//   - error: error if renderer or surface setup fails
	Init() error

	// EnableProfiler enables frame statistics output through the logger.
	EnableProfiler()

	// DisableProfiler disables frame statistics output.
	DisableProfiler()

	// SetTickRate sets the update tick rate in ticks per second.
	// The tick callback fires at this rate, independent of rendering.
	//
	// Parameters:
	//   - tps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(tps float64)

	// SetTickCallback registers the function called each update tick.
	// Use this for input processing and UI state updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the producer function called each render
	// frame. It returns the frame's draw data, or nil to skip the frame.
	//
	// Parameters:
	//   - callback: function producing the frame's draw data
	SetFrameCallback(callback func(deltaTime float32) *drawdata.DrawData)

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the render and tick loops and blocks until the window closes.
	Run()

	// Quit signals all bridge goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Bridge = &bridge{}

// NewBridge creates a new Bridge with the provided options. Call Init before
// Run.
//
// Parameters:
//   - options: functional options for bridge configuration
//
// Returns:
//   - Bridge: the newly created bridge
func NewBridge(options ...BridgeBuilderOption) Bridge {
	b := &bridge{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		running:          false,
		wg:               sync.WaitGroup{},
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
		tickRate:         time.Second / 60,
		presentMode:      surface.PresentModeVSync,
	}

	for _, opt := range options {
		opt(b)
	}

	if b.window == nil {
		b.window = window.NewWindow()
	}

	return b
}

func (b *bridge) Window() window.Window {
	return b.window
}

func (b *bridge) Renderer() renderer.Renderer {
	return b.renderer
}

func (b *bridge) Surfaces() surface.Manager {
	return b.surfaces
}

func (b *bridge) Init() error {
	if b.renderer == nil {
		b.renderer = renderer.NewRenderer(
			renderer.BackendTypeWGPU,
			b.window.SurfaceDescriptor(),
			renderer.WithPipelineOptions(b.pipelineOpts...),
		)
	}
	if err := b.renderer.Init(); err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	backend := b.renderer.Backend()
	presenter := surface.NewWGPUPresenter(
		backend.CompatibleSurface(),
		backend.Adapter(),
		backend.Device(),
		surface.WithPreferredFormat(b.renderer.Pipeline().TargetFormat()),
	)
	s := surface.NewSurface(presenter, uint32(b.window.Width()), uint32(b.window.Height()),
		surface.WithPresentMode(b.presentMode))
	if err := s.Configure(); err != nil {
		return err
	}
	if s.Format() != b.renderer.Pipeline().TargetFormat() {
		common.Logger().Warn("surface format differs from pipeline target format",
			"surface", s.Format(), "pipeline", b.renderer.Pipeline().TargetFormat())
	}

	b.surfaces = surface.NewManager(b.renderer)
	b.surfaces.Add(PrimarySurface, s)

	b.window.SetResizeCallback(func(width, height int) {
		s.Resize(uint32(width), uint32(height))
	})

	return nil
}

func (b *bridge) Run() {
	b.running = true
	b.handle()
	b.window.ProcessMessages()
	b.signalQuit()
	b.wg.Wait()
}

// Quit signals all bridge goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (b *bridge) Quit() {
	b.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (b *bridge) signalQuit() {
	b.quitOnce.Do(func() {
		b.running = false
		close(b.quitChannel)
	})
}

// handle launches the tick and render goroutines.
// Each goroutine is tracked by the bridge's WaitGroup.
func (b *bridge) handle() {
	b.wg.Add(2)
	go b.handleTick()
	go b.handleRender()
}

// handleTick runs the fixed-rate update loop in its own goroutine.
// Fires the tick callback at the configured rate and listens for dynamic rate
// changes via tickRateChannel. Exits when the quit channel is closed.
func (b *bridge) handleTick() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.tickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-b.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if b.tickCallback != nil {
				b.tickCallback(dt)
			}
		case newRate := <-b.tickRateChannel:
			ticker.Reset(newRate)
			b.tickRate = newRate
		}
	}
}

// handleRender runs the render loop in its own goroutine: pull a frame of
// draw data from the producer, fan it out to every surface, tick the
// profiler, and optionally sleep to honor the frame cap.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (b *bridge) handleRender() {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", "panic", r)
			b.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-b.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if b.frameCallback != nil {
				if data := b.frameCallback(dt); data != nil {
					var opts []renderer.FrameOption
					if b.clearColor != nil {
						opts = append(opts, renderer.WithClearColor(*b.clearColor))
					}
					if err := b.surfaces.RenderAll(data, opts...); err != nil {
						// A failed frame is dropped; the loop keeps going.
						common.Logger().Error("frame render failed", "error", err)
					}
				}
			}

			if b.profilingEnabled && b.profiler != nil {
				b.profiler.Tick()
			}

			// Frame rate limiting
			if b.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := b.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// EnableProfiler enables frame statistics output through the logger.
func (b *bridge) EnableProfiler() {
	b.profilingEnabled = true
}

// DisableProfiler disables frame statistics output.
func (b *bridge) DisableProfiler() {
	b.profilingEnabled = false
}

// SetTickRate sets the update tick rate in ticks per second.
// If the bridge is running, the change takes effect immediately.
func (b *bridge) SetTickRate(tps float64) {
	if tps <= 0 {
		tps = 60
	}
	newRate := time.Second / time.Duration(tps)

	if b.running {
		// Non-blocking send - if the channel is full, replace the pending value
		select {
		case b.tickRateChannel <- newRate:
		default:
			select {
			case <-b.tickRateChannel:
			default:
			}
			b.tickRateChannel <- newRate
		}
	} else {
		b.tickRate = newRate
	}
}

// SetTickCallback registers the function called each update tick.
func (b *bridge) SetTickCallback(callback func(deltaTime float32)) {
	b.tickCallback = callback
}

// SetFrameCallback registers the producer function called each render frame.
func (b *bridge) SetFrameCallback(callback func(deltaTime float32) *drawdata.DrawData) {
	b.frameCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (b *bridge) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		b.renderFrameLimit = 0
		return
	}
	b.renderFrameLimit = time.Second / time.Duration(fps)
}
