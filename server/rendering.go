package server

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// DrawableID identifies a drawable registered with a Rendering server. The
// zero value is never allocated.
type DrawableID uint32

// Drawable is the declarative render state of one instance.
type Drawable struct {
	Mesh      string // canonical resource path
	Material  string // material name in the mesh's library; "" uses per-surface materials
	Transform mgl64.Mat4
	Color     Color
	Visible   bool
	Layer     uint32
}

// Camera is the active view.
type Camera struct {
	Transform mgl64.Mat4 // camera world transform; the view matrix is its inverse
	FOV       float64    // vertical field of view, radians
	Near, Far float64
}

// Projection returns the perspective projection for the given aspect ratio.
func (c Camera) Projection(aspect float64) mgl64.Mat4 {
	return mgl64.Perspective(c.FOV, aspect, c.Near, c.Far)
}

// View returns the inverse of the camera transform.
func (c Camera) View() mgl64.Mat4 {
	return c.Transform.Inv()
}

// DrawableUpdate is a buffered drawable write.
type DrawableUpdate = Update[DrawableID, Drawable]

// RenderFrame is the batch handed to a RenderingBackend. The backend must
// not retain the slices after SubmitRender returns.
type RenderFrame struct {
	Frame     uint64
	Drawables []DrawableUpdate
	Removed   []DrawableID
	Camera    *Camera // nil when the camera did not change this frame

	// CameraCleared reports that no camera is current any more. Backends
	// fall back to their default view.
	CameraCleared bool
}

// RenderingBackend receives one batch per frame.
type RenderingBackend interface {
	SubmitRender(f *RenderFrame) error
}

// Rendering buffers drawable and camera submissions for a RenderingBackend.
type Rendering struct {
	backend RenderingBackend
	log     *zap.Logger
	nextID  DrawableID
	live    map[DrawableID]struct{}
	pending *batch[DrawableID, Drawable]
	camera  *Camera
	clear   bool
	frames  [2]RenderFrame
	cur     int
	frame   uint64
}

// NewRendering returns a server submitting to backend. A nil backend
// discards every frame.
func NewRendering(backend RenderingBackend, log *zap.Logger) *Rendering {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rendering{
		backend: backend,
		log:     log.Named("rendering"),
		live:    make(map[DrawableID]struct{}),
		pending: newBatch[DrawableID, Drawable](),
	}
}

// CreateDrawable allocates a drawable id. Nothing is sent to the backend
// until the first SetDrawable.
func (r *Rendering) CreateDrawable() DrawableID {
	r.nextID++
	id := r.nextID
	r.live[id] = struct{}{}
	r.pending.create(id)
	return id
}

// SetDrawable submits the state of id for this frame. Later calls in the
// same frame replace earlier ones.
func (r *Rendering) SetDrawable(id DrawableID, d Drawable) error {
	if _, ok := r.live[id]; !ok {
		return fmt.Errorf("set drawable %d: %w", id, ErrUnknownID)
	}
	r.pending.put(id, d)
	return nil
}

// RemoveDrawable releases id and cancels any write pending for it.
func (r *Rendering) RemoveDrawable(id DrawableID) error {
	if _, ok := r.live[id]; !ok {
		return fmt.Errorf("remove drawable %d: %w", id, ErrUnknownID)
	}
	delete(r.live, id)
	r.pending.remove(id)
	return nil
}

// SetCamera submits the active camera for this frame.
func (r *Rendering) SetCamera(c Camera) {
	r.camera = &c
	r.clear = false
}

// ClearCamera reports that no camera is current. It cancels a SetCamera
// made earlier in the same frame.
func (r *Rendering) ClearCamera() {
	r.camera = nil
	r.clear = true
}

// Live returns the number of registered drawables.
func (r *Rendering) Live() int {
	return len(r.live)
}

// Frame returns the number of completed flushes.
func (r *Rendering) Frame() uint64 {
	return r.frame
}

// Flush hands the buffered frame to the backend and resets the buffer.
// Empty frames are still counted but not submitted.
func (r *Rendering) Flush() error {
	r.frame++
	if r.pending.empty() && r.camera == nil && !r.clear {
		return nil
	}
	f := &r.frames[r.cur]
	r.cur ^= 1
	f.Frame = r.frame
	f.Drawables, f.Removed = r.pending.drain(f.Drawables[:0], f.Removed[:0])
	f.Camera, f.CameraCleared = r.camera, r.clear
	r.camera, r.clear = nil, false

	if r.backend == nil {
		return nil
	}
	r.log.Debug("submit",
		zap.Uint64("frame", f.Frame),
		zap.Int("drawables", len(f.Drawables)),
		zap.Int("removed", len(f.Removed)))
	if err := r.backend.SubmitRender(f); err != nil {
		return fmt.Errorf("rendering flush: %w", err)
	}
	return nil
}
