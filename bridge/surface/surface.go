// package surface tracks the presentable state of each render target surface.
// A surface moves between Unconfigured, Configured, Stale and TornDown; frames
// are only acquired while Configured, and a stale surface is reconfigured
// before the next frame instead of failing the current one.
package surface

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrSurfaceStale is returned by AcquireFrame when the underlying surface no
// longer matches the window (resized, occluded, or lost). The caller should
// reconfigure and skip the frame.
var ErrSurfaceStale = errors.New("surface is stale and must be reconfigured")

// State is the lifecycle state of a surface.
type State int

const (
	// StateUnconfigured means the surface exists but has never been configured.
	StateUnconfigured State = iota
	// StateConfigured means the surface matches the window and can present.
	StateConfigured
	// StateStale means the surface no longer matches the window and must be
	// reconfigured before the next frame.
	StateStale
	// StateTornDown means the surface has been released and is unusable.
	StateTornDown
)

// String returns a human-readable name for the state.
//
// Returns:
//   - string: the state name
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "Unconfigured"
	case StateConfigured:
		return "Configured"
	case StateStale:
		return "Stale"
	case StateTornDown:
		return "TornDown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PresentMode controls how presented frames are delivered to the display.
type PresentMode int

const (
	// PresentModeVSync synchronizes presentation with the display refresh.
	PresentModeVSync PresentMode = iota
	// PresentModeUncapped presents immediately without waiting for vsync.
	PresentModeUncapped
	// PresentModeTripleBuffered uses mailbox presentation where supported.
	PresentModeTripleBuffered
)

// wgpuMode maps the present mode to its wgpu constant.
func (m PresentMode) wgpuMode() wgpu.PresentMode {
	switch m {
	case PresentModeVSync:
		return wgpu.PresentModeFifo
	case PresentModeTripleBuffered:
		return wgpu.PresentModeMailbox
	case PresentModeUncapped:
		fallthrough
	default:
		return wgpu.PresentModeImmediate
	}
}

// Presenter abstracts the device-side surface operations. The wgpu
// implementation lives in this package; tests substitute a fake.
type Presenter interface {
	// Configure (re)configures the surface for the given pixel extent.
	//
	// Parameters:
	//   - width, height: the surface extent in pixels
	//   - mode: the present mode to configure
	//
	// Returns:
	//   - wgpu.TextureFormat: the configured surface format
	//   - error: error if configuration fails
	Configure(width, height uint32, mode wgpu.PresentMode) (wgpu.TextureFormat, error)

	// Acquire acquires the next presentable texture and returns its view.
	//
	// Parameters: none
	//
	// Returns:
	//   - *wgpu.TextureView: the view to render into
	//   - error: error if the surface image could not be acquired
	Acquire() (*wgpu.TextureView, error)

	// Present presents the most recently acquired texture. A no-op when no
	// texture is held.
	Present()

	// Release frees the underlying surface resources.
	Release()
}

// uiSurface is the implementation of the Surface interface.
type uiSurface struct {
	mu *sync.Mutex

	presenter Presenter
	state     State

	width, height uint32
	format        wgpu.TextureFormat
	presentMode   PresentMode
}

// Surface is one presentable render target with its lifecycle state.
type Surface interface {
	// Configure (re)configures the surface to its stored extent, moving it to
	// Configured. Legal from Unconfigured, Stale and Configured.
	//
	// Returns:
	//   - error: error if the surface is torn down or configuration fails
	Configure() error

	// Resize records a new pixel extent and marks the surface stale. The
	// surface is reconfigured before the next frame.
	//
	// Parameters:
	//   - width, height: the new extent in pixels
	Resize(width, height uint32)

	// AcquireFrame acquires the next presentable view. If the surface is not
	// Configured, or acquisition fails, it is marked stale and ErrSurfaceStale
	// is returned.
	//
	// Returns:
	//   - *wgpu.TextureView: the view to render into
	//   - error: ErrSurfaceStale, or an error if the surface is torn down
	AcquireFrame() (*wgpu.TextureView, error)

	// Present presents the acquired frame. A no-op unless the surface is
	// Configured.
	Present()

	// State returns the current lifecycle state.
	//
	// Returns:
	//   - State: the current state
	State() State

	// Width returns the surface width in pixels.
	//
	// Returns:
	//   - uint32: the width
	Width() uint32

	// Height returns the surface height in pixels.
	//
	// Returns:
	//   - uint32: the height
	Height() uint32

	// Format returns the configured surface format, valid after the first
	// successful Configure.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format
	Format() wgpu.TextureFormat

	// Release frees the surface, moving it to TornDown. Further use fails.
	Release()
}

var _ Surface = &uiSurface{}

// NewSurface creates a surface wrapping the given presenter. The surface
// starts Unconfigured; call Configure before the first frame.
//
// Parameters:
//   - presenter: the device-side surface operations
//   - width, height: the initial extent in pixels
//   - options: a variadic list of SurfaceBuilderOption functions to configure the surface
//
// Returns:
//   - Surface: a new Surface instance
func NewSurface(presenter Presenter, width, height uint32, options ...SurfaceBuilderOption) Surface {
	s := &uiSurface{
		mu:          &sync.Mutex{},
		presenter:   presenter,
		state:       StateUnconfigured,
		width:       width,
		height:      height,
		presentMode: PresentModeVSync,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *uiSurface) Configure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTornDown {
		return fmt.Errorf("cannot configure a torn down surface")
	}
	if s.width == 0 || s.height == 0 {
		// A minimized window has a zero extent; stay stale until it has area.
		s.state = StateStale
		return nil
	}

	format, err := s.presenter.Configure(s.width, s.height, s.presentMode.wgpuMode())
	if err != nil {
		s.state = StateStale
		return fmt.Errorf("failed to configure surface %dx%d: %w", s.width, s.height, err)
	}
	s.format = format
	s.state = StateConfigured
	common.Logger().Debug("surface configured", "width", s.width, "height", s.height, "format", format)
	return nil
}

func (s *uiSurface) Resize(width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTornDown {
		return
	}
	s.width = width
	s.height = height
	s.state = StateStale
}

func (s *uiSurface) AcquireFrame() (*wgpu.TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateTornDown:
		return nil, fmt.Errorf("cannot acquire a frame from a torn down surface")
	case StateUnconfigured, StateStale:
		return nil, ErrSurfaceStale
	}

	view, err := s.presenter.Acquire()
	if err != nil {
		// The window changed underneath us; reconfigure before the next frame.
		common.Logger().Debug("surface acquire failed, marking stale", "error", err)
		s.state = StateStale
		return nil, ErrSurfaceStale
	}
	return view, nil
}

func (s *uiSurface) Present() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigured {
		return
	}
	s.presenter.Present()
}

func (s *uiSurface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *uiSurface) Width() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

func (s *uiSurface) Height() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *uiSurface) Format() wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *uiSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTornDown {
		return
	}
	s.presenter.Release()
	s.state = StateTornDown
}
