package surface

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuPresenter implements Presenter over a wgpu surface.
type wgpuPresenter struct {
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device

	// preferredFormat is used when the surface supports it; otherwise the
	// surface's first reported format wins.
	preferredFormat wgpu.TextureFormat

	// frameTexture and frameView hold the acquired swapchain image between
	// Acquire and Present.
	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ Presenter = &wgpuPresenter{}

// PresenterOption is a functional option for configuring a wgpu presenter.
type PresenterOption func(p *wgpuPresenter)

// WithPreferredFormat requests a surface format, used when the surface
// supports it. Pass the renderer pipeline's target format so the surface and
// pipeline agree.
//
// Parameters:
//   - format: the requested surface format
//
// Returns:
//   - PresenterOption: option function to apply
func WithPreferredFormat(format wgpu.TextureFormat) PresenterOption {
	return func(p *wgpuPresenter) {
		p.preferredFormat = format
	}
}

// NewWGPUPresenter creates a Presenter over a wgpu surface. The adapter and
// device typically come from the renderer backend that owns the wgpu instance.
//
// Parameters:
//   - surface: the wgpu surface to present to
//   - adapter: the adapter the surface is compatible with
//   - device: the device rendering into the surface
//   - options: a variadic list of PresenterOption functions to configure the presenter
//
// Returns:
//   - Presenter: a new Presenter instance
func NewWGPUPresenter(surface *wgpu.Surface, adapter *wgpu.Adapter, device *wgpu.Device, options ...PresenterOption) Presenter {
	p := &wgpuPresenter{
		surface: surface,
		adapter: adapter,
		device:  device,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *wgpuPresenter) Configure(width, height uint32, mode wgpu.PresentMode) (wgpu.TextureFormat, error) {
	// Reconfiguring invalidates any acquired swapchain image, so drop a frame
	// that was acquired but never presented (e.g. after a failed render).
	p.dropFrame()

	capabilities := p.surface.GetCapabilities(p.adapter)
	if len(capabilities.Formats) == 0 {
		return wgpu.TextureFormatUndefined, fmt.Errorf("surface reports no supported formats")
	}
	format := capabilities.Formats[0]
	if p.preferredFormat != wgpu.TextureFormatUndefined {
		for _, f := range capabilities.Formats {
			if f == p.preferredFormat {
				format = f
				break
			}
		}
	}

	p.surface.Configure(p.adapter, p.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       width,
		Height:      height,
		PresentMode: mode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return format, nil
}

func (p *wgpuPresenter) Acquire() (*wgpu.TextureView, error) {
	if p.frameTexture != nil {
		return nil, fmt.Errorf("previous frame not yet presented")
	}

	texture, err := p.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, err
	}

	p.frameTexture = texture
	p.frameView = view
	return view, nil
}

func (p *wgpuPresenter) Present() {
	if p.frameTexture == nil {
		return
	}
	p.surface.Present()
	p.frameView.Release()
	p.frameView = nil
	p.frameTexture.Release()
	p.frameTexture = nil
}

// dropFrame releases a held swapchain image without presenting it.
func (p *wgpuPresenter) dropFrame() {
	if p.frameView != nil {
		p.frameView.Release()
		p.frameView = nil
	}
	if p.frameTexture != nil {
		p.frameTexture.Release()
		p.frameTexture = nil
	}
}

func (p *wgpuPresenter) Release() {
	p.dropFrame()
	if p.surface != nil {
		p.surface.Release()
		p.surface = nil
	}
}
