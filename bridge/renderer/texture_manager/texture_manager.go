// package texture_manager owns the device-texture lifecycle driven by the
// per-frame TextureData requests: creation, sub-rect updates, deferred
// destruction and the reserved default texture that unknown ids fall back to.
// Device calls go through the ImageBackend interface so the state machine is
// testable without a GPU.
package texture_manager

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/imdraw-go/common"
	"github.com/Carmen-Shannon/imdraw-go/drawdata"
	"github.com/cogentcore/webgpu/wgpu"
)

// RowAlignment is the byte alignment WebGPU requires for the row pitch of
// texture writes.
const RowAlignment = 256

// parallelRowThreshold is the minimum number of staged rows before packing is
// fanned out to the worker pool instead of running inline.
const parallelRowThreshold = 64

// Image is a device texture with its sampling view.
type Image struct {
	// Texture is the underlying device texture.
	Texture *wgpu.Texture
	// View is the 2D sampling view over the whole texture.
	View *wgpu.TextureView
	// Width and Height are the texture dimensions in pixels.
	Width, Height uint32
}

// ImageBackend abstracts the device operations the manager needs. The wgpu
// implementation lives in the renderer package; tests substitute a fake.
type ImageBackend interface {
	// CreateImage allocates an RGBA device texture with a sampling view.
	//
	// Parameters:
	//   - label: debug label for the texture
	//   - width: texture width in pixels
	//   - height: texture height in pixels
	//
	// Returns:
	//   - *Image: the created image
	//   - error: error if allocation fails
	CreateImage(label string, width, height uint32) (*Image, error)

	// WriteImage uploads staged RGBA pixel rows into a sub-rectangle of an
	// image.
	//
	// Parameters:
	//   - img: the destination image
	//   - x, y: top-left corner of the destination rectangle in pixels
	//   - staged: the staged rows with their extent and row pitch (the pitch
	//     is a multiple of RowAlignment)
	//
	// Returns:
	//   - error: error if the upload fails
	WriteImage(img *Image, x, y uint32, staged common.TextureStagingData) error

	// DestroyImage releases an image's texture and view.
	//
	// Parameters:
	//   - img: the image to release
	DestroyImage(img *Image)
}

// textureManager is the implementation of the TextureManager interface.
type textureManager struct {
	mu *sync.Mutex

	backend      ImageBackend
	images       map[uint64]*Image
	destroyed    map[uint64]struct{}
	defaultImage *Image

	packWorkers int
	packPool    worker.DynamicWorkerPool
}

// TextureManager tracks every producer texture's device state and applies the
// per-frame lifecycle requests attached to draw data.
type TextureManager interface {
	// EnsureDefault creates the reserved 1x1 opaque white texture if it does
	// not exist yet. Unknown and zero texture ids resolve to it.
	//
	// Returns:
	//   - *Image: the default image
	//   - error: error if allocation fails
	EnsureDefault() (*Image, error)

	// Process applies one frame's texture lifecycle requests in order:
	// creations, sub-rect updates, and deferred destructions. Statuses are
	// acknowledged in place. An allocation failure aborts processing and
	// returns an AllocError; already-applied requests stay applied.
	//
	// Parameters:
	//   - textures: the frame's lifecycle requests
	//
	// Returns:
	//   - []uint64: ids whose device image was created, replaced, or
	//     destroyed this call, so cached per-texture resources can be dropped
	//   - error: an *AllocError or upload error
	Process(textures []*drawdata.TextureData) ([]uint64, error)

	// Resolve maps a draw command's texture id to a live image. Id zero and
	// ids with no live image resolve to the default texture.
	//
	// Parameters:
	//   - id: the texture id referenced by a draw command
	//
	// Returns:
	//   - *Image: the image to sample (never nil once EnsureDefault succeeded)
	Resolve(id uint64) *Image

	// Has reports whether a live device image exists for the id.
	//
	// Parameters:
	//   - id: the texture id to look up
	//
	// Returns:
	//   - bool: true if the id has a live image
	Has(id uint64) bool

	// Release destroys all live images including the default texture.
	Release()
}

var _ TextureManager = &textureManager{}

// NewTextureManager creates a texture manager backed by the given device backend.
//
// Parameters:
//   - backend: the device operations implementation
//   - opts: a variadic list of TextureManagerBuilderOption functions to configure the manager
//
// Returns:
//   - TextureManager: a new TextureManager instance
func NewTextureManager(backend ImageBackend, opts ...TextureManagerBuilderOption) TextureManager {
	m := &textureManager{
		mu:          &sync.Mutex{},
		backend:     backend,
		images:      make(map[uint64]*Image),
		destroyed:   make(map[uint64]struct{}),
		packWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.packPool = worker.NewDynamicWorkerPool(m.packWorkers, 256, 1*time.Second)
	return m
}

func (m *textureManager) EnsureDefault() (*Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureDefaultLocked()
}

func (m *textureManager) ensureDefaultLocked() (*Image, error) {
	if m.defaultImage != nil {
		return m.defaultImage, nil
	}
	img, err := m.backend.CreateImage("ui default texture", 1, 1)
	if err != nil {
		return nil, &AllocError{ID: 0, Width: 1, Height: 1, Err: err}
	}
	white := make([]byte, RowAlignment)
	white[0], white[1], white[2], white[3] = 255, 255, 255, 255
	staged := common.TextureStagingData{Pixels: white, Width: 1, Height: 1, BytesPerRow: RowAlignment}
	if err := m.backend.WriteImage(img, 0, 0, staged); err != nil {
		m.backend.DestroyImage(img)
		return nil, fmt.Errorf("failed to initialize default texture: %w", err)
	}
	m.defaultImage = img
	return img, nil
}

func (m *textureManager) Process(textures []*drawdata.TextureData) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []uint64
	for _, t := range textures {
		switch t.Status {
		case drawdata.StatusWantCreate:
			if err := m.createLocked(t); err != nil {
				return changed, err
			}
			changed = append(changed, t.ID)
		case drawdata.StatusWantUpdates:
			if _, ok := m.images[t.ID]; !ok {
				// Update for a texture never seen is an implicit create.
				common.Logger().Debug("texture update for unknown id, creating", "id", t.ID)
				if err := m.createLocked(t); err != nil {
					return changed, err
				}
				changed = append(changed, t.ID)
				continue
			}
			if err := m.updateLocked(t); err != nil {
				return changed, err
			}
		case drawdata.StatusWantDestroy:
			if t.UnusedFrames <= 0 {
				// An in-flight frame may still sample the texture. Keep it
				// alive; the producer repeats the request next frame.
				continue
			}
			if img, ok := m.images[t.ID]; ok {
				m.backend.DestroyImage(img)
				delete(m.images, t.ID)
				changed = append(changed, t.ID)
			}
			m.destroyed[t.ID] = struct{}{}
			if err := t.SetStatus(drawdata.StatusDestroyed); err != nil {
				return changed, err
			}
			common.Logger().Debug("texture destroyed", "id", t.ID)
		case drawdata.StatusOK, drawdata.StatusDestroyed:
			// Nothing to do.
		}
	}
	return changed, nil
}

// createLocked allocates the device image for t and uploads the full pixel
// contents, then acknowledges the request.
func (m *textureManager) createLocked(t *drawdata.TextureData) error {
	need, err := t.SizeInBytes()
	if err != nil {
		return err
	}
	if uint64(len(t.Pixels)) < need {
		return fmt.Errorf("texture %d pixel payload is %d bytes, extent needs %d", t.ID, len(t.Pixels), need)
	}
	if _, gone := m.destroyed[t.ID]; gone {
		return fmt.Errorf("texture id %d was destroyed and must not be reused", t.ID)
	}

	img, err := m.backend.CreateImage(fmt.Sprintf("ui texture %d", t.ID), t.Width, t.Height)
	if err != nil {
		return &AllocError{ID: t.ID, Width: t.Width, Height: t.Height, Err: err}
	}
	full := drawdata.UpdateRect{X: 0, Y: 0, Width: t.Width, Height: t.Height}
	if err := m.uploadRect(img, t, full); err != nil {
		m.backend.DestroyImage(img)
		return err
	}

	if old, ok := m.images[t.ID]; ok {
		m.backend.DestroyImage(old)
	}
	m.images[t.ID] = img
	if err := t.SetStatus(drawdata.StatusOK); err != nil {
		return err
	}
	common.Logger().Debug("texture created", "id", t.ID, "width", t.Width, "height", t.Height)
	return nil
}

// updateLocked applies t's dirty rects in order, so overlapping rects resolve
// last-write-wins, then acknowledges the request.
func (m *textureManager) updateLocked(t *drawdata.TextureData) error {
	img := m.images[t.ID]
	for _, rect := range t.Updates {
		if rect.Width == 0 || rect.Height == 0 {
			continue
		}
		if rect.X+rect.Width > t.Width || rect.Y+rect.Height > t.Height {
			common.Logger().Warn("texture update rect out of bounds, skipping",
				"id", t.ID, "x", rect.X, "y", rect.Y, "width", rect.Width, "height", rect.Height)
			continue
		}
		if err := m.uploadRect(img, t, rect); err != nil {
			return err
		}
	}
	return t.SetStatus(drawdata.StatusOK)
}

// uploadRect stages the rect's rows as RGBA with aligned pitch and writes
// them to the device.
func (m *textureManager) uploadRect(img *Image, t *drawdata.TextureData, rect drawdata.UpdateRect) error {
	pitch := common.AlignUp(rect.Width*4, RowAlignment)
	rows := make([]byte, uint64(pitch)*uint64(rect.Height))
	m.packRect(t, rect, rows, pitch)
	staged := common.TextureStagingData{
		Pixels:      rows,
		Width:       rect.Width,
		Height:      rect.Height,
		BytesPerRow: pitch,
	}
	if err := m.backend.WriteImage(img, rect.X, rect.Y, staged); err != nil {
		return fmt.Errorf("failed to upload texture %d rect (%d,%d %dx%d): %w",
			t.ID, rect.X, rect.Y, rect.Width, rect.Height, err)
	}
	return nil
}

// packRect converts the rect's source rows into tightly staged RGBA rows with
// the destination pitch. Large rects are split across the worker pool; a
// WaitGroup provides the barrier since the rows partition the destination
// without overlap.
func (m *textureManager) packRect(t *drawdata.TextureData, rect drawdata.UpdateRect, dst []byte, pitch uint32) {
	if rect.Height < parallelRowThreshold || m.packWorkers <= 1 {
		packRows(t, rect, dst, pitch, 0, rect.Height)
		return
	}

	var wg sync.WaitGroup
	chunk := (rect.Height + uint32(m.packWorkers) - 1) / uint32(m.packWorkers)
	taskID := 0
	for start := uint32(0); start < rect.Height; start += chunk {
		end := min(start+chunk, rect.Height)
		wg.Add(1)
		startCap, endCap := start, end
		id := taskID
		taskID++
		m.packPool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				packRows(t, rect, dst, pitch, startCap, endCap)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// packRows stages rows [rowStart, rowEnd) of the rect, expanding Alpha8
// sources to opaque white RGBA.
func packRows(t *drawdata.TextureData, rect drawdata.UpdateRect, dst []byte, pitch uint32, rowStart, rowEnd uint32) {
	bpp := t.Format.BytesPerPixel()
	srcPitch := uint64(t.Pitch())
	for row := rowStart; row < rowEnd; row++ {
		srcOff := uint64(rect.Y+row)*srcPitch + uint64(rect.X)*uint64(bpp)
		dstRow := dst[uint64(row)*uint64(pitch):]
		switch t.Format {
		case drawdata.FormatRGBA32:
			copy(dstRow, t.Pixels[srcOff:srcOff+uint64(rect.Width)*4])
		case drawdata.FormatAlpha8:
			src := t.Pixels[srcOff : srcOff+uint64(rect.Width)]
			for i, a := range src {
				dstRow[i*4+0] = 255
				dstRow[i*4+1] = 255
				dstRow[i*4+2] = 255
				dstRow[i*4+3] = a
			}
		}
	}
}

func (m *textureManager) Resolve(id uint64) *Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != 0 {
		if img, ok := m.images[id]; ok {
			return img
		}
		common.Logger().Debug("unknown texture id, using default", "id", id)
	}
	return m.defaultImage
}

func (m *textureManager) Has(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.images[id]
	return ok
}

func (m *textureManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, img := range m.images {
		m.backend.DestroyImage(img)
		delete(m.images, id)
	}
	if m.defaultImage != nil {
		m.backend.DestroyImage(m.defaultImage)
		m.defaultImage = nil
	}
}
