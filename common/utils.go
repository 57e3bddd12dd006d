package common

// Coalesce picks the first of values that differs from T's zero value, falling
// back to the zero value when every candidate is zero. Handy for layering
// defaults under optional configuration fields.
//
// Parameters:
//   - values: candidate values in priority order
//
// Returns:
//   - T: the first non-zero candidate, or the zero value of T
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
