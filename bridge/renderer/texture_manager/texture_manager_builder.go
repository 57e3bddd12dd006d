package texture_manager

// TextureManagerBuilderOption is a functional option used to configure a TextureManager during construction.
type TextureManagerBuilderOption func(*textureManager)

// WithPackWorkers sets the number of workers used to stage pixel rows for
// large texture updates. A count of 1 runs packing inline; values below 1
// are clamped to 1.
//
// Parameters:
//   - workers: the worker count for the packing pool
//
// Returns:
//   - TextureManagerBuilderOption: a function that sets the worker count for this manager
func WithPackWorkers(workers int) TextureManagerBuilderOption {
	return func(m *textureManager) {
		m.packWorkers = max(workers, 1)
	}
}
