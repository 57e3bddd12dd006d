package surface

// SurfaceBuilderOption is a functional option for configuring a Surface.
// Use the With* functions to create options.
type SurfaceBuilderOption func(s *uiSurface)

// WithPresentMode sets the present mode used when the surface is configured.
//
// Parameters:
//   - mode: the present mode
//
// Returns:
//   - SurfaceBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) SurfaceBuilderOption {
	return func(s *uiSurface) {
		s.presentMode = mode
	}
}
