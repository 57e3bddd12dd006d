package buffer_pool

// BufferPoolBuilderOption is a functional option used to configure a BufferPool during construction.
type BufferPoolBuilderOption func(*bufferPool)

// WithSlotCount sets the number of frame slots. Values below MinSlotCount are
// clamped to MinSlotCount.
//
// Parameters:
//   - count: the number of slots to rotate through
//
// Returns:
//   - BufferPoolBuilderOption: a function that sets the slot count for this pool
func WithSlotCount(count int) BufferPoolBuilderOption {
	return func(p *bufferPool) {
		if count < MinSlotCount {
			count = MinSlotCount
		}
		p.slots = make([]slot, count)
	}
}
