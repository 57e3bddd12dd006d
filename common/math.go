package common

import (
	"unsafe"
)

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// Orthographic builds a 4x4 orthographic projection matrix mapping the given
// logical rectangle to WebGPU clip space (x/y in [-1, 1], z in [0, 1]).
// The matrix is stored in column-major order. Top may be smaller than bottom
// to flip the Y axis, which is the usual convention for UI coordinates with
// the origin at the top-left corner.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - left, right: horizontal extent of the projected region
//   - top, bottom: vertical extent of the projected region
func Orthographic(out []float32, left, right, top, bottom float32) {
	Identity(out)
	out[0] = 2.0 / (right - left)
	out[5] = 2.0 / (top - bottom)
	out[10] = 0.5
	out[12] = (right + left) / (left - right)
	out[13] = (top + bottom) / (bottom - top)
	out[14] = 0.5
}

// NextPowerOfTwo returns the smallest power of two greater than or equal to v.
// Zero maps to 1.
//
// Parameters:
//   - v: the value to round up
//
// Returns:
//   - uint64: the next power-of-two capacity
func NextPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}

// AlignUp rounds v up to the next multiple of align. Align must be a power of two.
//
// Parameters:
//   - v: the value to align
//   - align: the alignment, a power of two
//
// Returns:
//   - uint32: the smallest multiple of align that is >= v
func AlignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
