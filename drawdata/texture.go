package drawdata

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrPixelSizeOverflow is returned when width * height * bytes-per-pixel does
// not fit the platform's addressable range.
var ErrPixelSizeOverflow = errors.New("texture pixel size overflows")

// TextureStatus is the producer-written, consumer-acknowledged state of a
// texture lifecycle request.
type TextureStatus uint8

const (
	// StatusOK means the texture is live on the device and needs no work.
	StatusOK TextureStatus = iota
	// StatusWantCreate asks the consumer to allocate the device texture and
	// upload the full pixel contents.
	StatusWantCreate
	// StatusWantUpdates asks the consumer to re-upload the listed dirty
	// regions of an existing texture.
	StatusWantUpdates
	// StatusWantDestroy asks the consumer to release the device texture once
	// no in-flight frame still references it.
	StatusWantDestroy
	// StatusDestroyed means the consumer has released the device texture.
	// The id must not be reused.
	StatusDestroyed
)

// String returns the status name for logging.
func (s TextureStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWantCreate:
		return "want-create"
	case StatusWantUpdates:
		return "want-updates"
	case StatusWantDestroy:
		return "want-destroy"
	case StatusDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// TextureFormat is the CPU-side pixel format of a texture's data.
type TextureFormat uint8

const (
	// FormatRGBA32 is 8-bit RGBA, four bytes per pixel.
	FormatRGBA32 TextureFormat = iota
	// FormatAlpha8 is a single 8-bit coverage channel, one byte per pixel.
	// Consumers expand it to opaque white RGBA on upload.
	FormatAlpha8
)

// BytesPerPixel returns the per-pixel byte size of the format.
func (f TextureFormat) BytesPerPixel() uint32 {
	if f == FormatAlpha8 {
		return 1
	}
	return 4
}

// UpdateRect is a dirty region of a texture, in pixels.
type UpdateRect struct {
	X, Y          uint32
	Width, Height uint32
}

// TextureData is one texture lifecycle request attached to a frame. The
// producer owns the struct and its pixel memory; the consumer reads it during
// rendering and acknowledges by writing Status.
type TextureData struct {
	// ID is the opaque 64-bit texture identifier, unique for the lifetime of
	// the producer. Zero is reserved for the consumer's default texture.
	ID uint64
	// Status is the lifecycle request for this frame.
	Status TextureStatus
	// Format is the CPU-side pixel format of Pixels.
	Format TextureFormat
	// Width and Height are the full texture dimensions in pixels.
	Width, Height uint32
	// Pixels is the full texture contents, tightly packed rows of
	// Width * BytesPerPixel bytes each.
	Pixels []byte
	// Updates lists the dirty regions for StatusWantUpdates. Regions may
	// overlap; later entries win.
	Updates []UpdateRect
	// UnusedFrames counts completed frames since the texture was last
	// referenced by a draw command. Destroy requests are honored only once
	// this is positive.
	UnusedFrames int
}

// Pitch returns the byte length of one full row of Pixels.
func (t *TextureData) Pitch() uint32 {
	return t.Width * t.Format.BytesPerPixel()
}

// SizeInBytes computes Width * Height * BytesPerPixel with overflow checking.
//
// Returns:
//   - uint64: the total pixel byte size
//   - error: ErrPixelSizeOverflow if the product exceeds 64 bits or the
//     addressable range of int
func (t *TextureData) SizeInBytes() (uint64, error) {
	hi, area := bits.Mul64(uint64(t.Width), uint64(t.Height))
	if hi != 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrPixelSizeOverflow, t.Width, t.Height)
	}
	hi, total := bits.Mul64(area, uint64(t.Format.BytesPerPixel()))
	if hi != 0 || total > uint64(maxInt) {
		return 0, fmt.Errorf("%w: %dx%d", ErrPixelSizeOverflow, t.Width, t.Height)
	}
	return total, nil
}

const maxInt = int(^uint(0) >> 1)

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Producers request work by moving OK to a Want state; consumers
// acknowledge by moving Want states back to OK or on to Destroyed. A
// want-updates request against a texture the consumer has never seen is
// handled as an implicit create, so WantUpdates to OK is legal from either
// side.
//
// Parameters:
//   - next: the proposed new status
//
// Returns:
//   - bool: true if the transition is allowed
func (s TextureStatus) CanTransition(next TextureStatus) bool {
	switch s {
	case StatusOK:
		return next == StatusWantCreate || next == StatusWantUpdates || next == StatusWantDestroy
	case StatusWantCreate:
		return next == StatusOK
	case StatusWantUpdates:
		return next == StatusOK
	case StatusWantDestroy:
		return next == StatusDestroyed || next == StatusWantDestroy
	case StatusDestroyed:
		return false
	default:
		return false
	}
}

// SetStatus applies a lifecycle transition, rejecting illegal ones.
//
// Parameters:
//   - next: the proposed new status
//
// Returns:
//   - error: nil on success, otherwise a description of the illegal transition
func (t *TextureData) SetStatus(next TextureStatus) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("texture %d: illegal status transition %s -> %s", t.ID, t.Status, next)
	}
	t.Status = next
	return nil
}
