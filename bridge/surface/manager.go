package surface

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/imdraw-go/bridge/renderer"
	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/Carmen-Shannon/imdraw-go/drawdata"
)

// surfaceManager is the implementation of the Manager interface.
type surfaceManager struct {
	mu *sync.Mutex

	renderer renderer.Renderer

	// names preserves registration order so the first surface advances the
	// buffer slot and the rest replicate it.
	names    []string
	surfaces map[string]Surface
}

// Manager fans one frame of draw data out to every registered surface through
// a shared renderer. The first surface rendered each frame uploads the
// geometry; the remaining surfaces reuse the same buffer slot.
type Manager interface {
	// Add registers a surface under a name. Re-adding a name replaces the
	// previous surface without releasing it.
	//
	// Parameters:
	//   - name: the surface name
	//   - s: the surface
	Add(name string, s Surface)

	// Remove unregisters a surface and releases it.
	//
	// Parameters:
	//   - name: the surface name
	Remove(name string)

	// Surface returns a registered surface, or nil if unknown.
	//
	// Parameters:
	//   - name: the surface name
	//
	// Returns:
	//   - Surface: the surface, or nil
	Surface(name string) Surface

	// RenderAll renders one frame of draw data to every registered surface in
	// registration order. Stale surfaces are reconfigured and skipped for this
	// frame; they present again on the next. Failures on one surface do not
	// stop the others. A frame with no geometry only runs the texture
	// lifecycle: no surface acquires or presents, so the last presented
	// contents stay on screen.
	//
	// Parameters:
	//   - data: the frame's draw data
	//   - opts: frame options forwarded to every surface's render call
	//
	// Returns:
	//   - error: the joined errors of every surface that failed
	RenderAll(data *drawdata.DrawData, opts ...renderer.FrameOption) error

	// Release releases every registered surface. The shared renderer is not
	// released; its owner does that.
	Release()
}

var _ Manager = &surfaceManager{}

// NewManager creates a surface manager over a shared renderer.
//
// Parameters:
//   - r: the renderer all surfaces share
//
// Returns:
//   - Manager: a new Manager instance
func NewManager(r renderer.Renderer) Manager {
	return &surfaceManager{
		mu:       &sync.Mutex{},
		renderer: r,
		surfaces: make(map[string]Surface),
	}
}

func (m *surfaceManager) Add(name string, s Surface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.surfaces[name]; !ok {
		m.names = append(m.names, name)
	}
	m.surfaces[name] = s
}

func (m *surfaceManager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.surfaces[name]
	if !ok {
		return
	}
	delete(m.surfaces, name)
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
	s.Release()
}

func (m *surfaceManager) Surface(name string) Surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.surfaces[name]
}

func (m *surfaceManager) RenderAll(data *drawdata.DrawData, opts ...renderer.FrameOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if data.Empty() {
		// Nothing would be encoded, so presenting would push an unwritten
		// swapchain image. Run the texture lifecycle once and leave every
		// surface's last presented frame up.
		return m.renderer.RenderDrawData(data, nil, 0, 0, opts...)
	}

	var errs []error
	uploaded := false
	for _, name := range m.names {
		s := m.surfaces[name]

		if s.State() != StateConfigured {
			// Reconfigure now, present on the next frame.
			if err := s.Configure(); err != nil {
				errs = append(errs, fmt.Errorf("surface %q: %w", name, err))
			}
			continue
		}

		view, err := s.AcquireFrame()
		if err != nil {
			if errors.Is(err, ErrSurfaceStale) {
				common.Logger().Debug("surface outdated, reconfiguring", "surface", name)
				if cfgErr := s.Configure(); cfgErr != nil {
					errs = append(errs, fmt.Errorf("surface %q: %w", name, cfgErr))
				}
				continue
			}
			errs = append(errs, fmt.Errorf("surface %q: %w", name, err))
			continue
		}

		frameOpts := opts
		if uploaded {
			// The frame's geometry is already in the current buffer slot.
			frameOpts = append(append([]renderer.FrameOption{}, opts...), renderer.WithoutSlotAdvance())
		}
		if err := m.renderer.RenderDrawData(data, view, s.Width(), s.Height(), frameOpts...); err != nil {
			errs = append(errs, fmt.Errorf("surface %q: %w", name, err))
			continue
		}
		uploaded = true
		s.Present()
	}
	return errors.Join(errs...)
}

func (m *surfaceManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, s := range m.surfaces {
		s.Release()
		delete(m.surfaces, name)
	}
	m.names = nil
}
