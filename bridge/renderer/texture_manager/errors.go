package texture_manager

import "fmt"

// AllocError reports a failed device texture allocation. The frame that
// carried the create request is aborted; the texture stays unregistered so
// the producer may retry or shrink the request.
type AllocError struct {
	// ID is the texture id whose allocation failed.
	ID uint64
	// Width and Height are the requested dimensions in pixels.
	Width, Height uint32
	// Err is the underlying device error.
	Err error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("failed to allocate texture %d (%dx%d): %v", e.ID, e.Width, e.Height, e.Err)
}

func (e *AllocError) Unwrap() error {
	return e.Err
}
