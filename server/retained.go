package server

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// Retained is an in-memory backend for all three servers. It keeps the
// latest state of every drawable and collider and answers overlap queries
// on collider bounds. It is used for headless runs and tests.
type Retained struct {
	Drawables map[DrawableID]Drawable
	Colliders map[ColliderID]Collider
	Camera    *Camera
	Title     string
	Width     int
	Height    int
	Mouse     MouseMode
	Quit      bool
	Frames    uint64
}

// NewRetained returns an empty backend reporting the given window size.
func NewRetained(w, h int) *Retained {
	return &Retained{
		Drawables: make(map[DrawableID]Drawable),
		Colliders: make(map[ColliderID]Collider),
		Width:     w,
		Height:    h,
	}
}

// Backends returns b plugged into every server slot.
func (b *Retained) Backends() Backends {
	return Backends{Rendering: b, Physics: b, Display: b}
}

// SubmitRender implements RenderingBackend.
func (b *Retained) SubmitRender(f *RenderFrame) error {
	b.Frames = f.Frame
	for _, id := range f.Removed {
		delete(b.Drawables, id)
	}
	for _, u := range f.Drawables {
		b.Drawables[u.ID] = u.Value
	}
	switch {
	case f.Camera != nil:
		c := *f.Camera
		b.Camera = &c
	case f.CameraCleared:
		b.Camera = nil
	}
	return nil
}

// SubmitPhysics implements PhysicsBackend.
func (b *Retained) SubmitPhysics(f *PhysicsFrame) error {
	for _, id := range f.Removed {
		delete(b.Colliders, id)
	}
	for _, u := range f.Colliders {
		b.Colliders[u.ID] = u.Value
	}
	return nil
}

// ApplyDisplay implements DisplayBackend.
func (b *Retained) ApplyDisplay(c DisplayChanges) error {
	if c.Title != nil {
		b.Title = *c.Title
	}
	if c.Size != nil {
		b.Width, b.Height = c.Size[0], c.Size[1]
	}
	if c.MouseMode != nil {
		b.Mouse = *c.MouseMode
	}
	return nil
}

// DisplaySize implements DisplayBackend.
func (b *Retained) DisplaySize() (int, int) {
	return b.Width, b.Height
}

// QuitRequested implements DisplayBackend.
func (b *Retained) QuitRequested() bool {
	return b.Quit
}

// Overlapping returns the enabled colliders whose bounds intersect id's and
// whose layer is in id's mask, sorted by id.
func (b *Retained) Overlapping(id ColliderID) []ColliderID {
	c, ok := b.Colliders[id]
	if !ok || c.Disabled {
		return nil
	}
	box := c.Shape.Bounds(c.Transform)
	var out []ColliderID
	for other, o := range b.Colliders {
		if other == id || o.Disabled || c.Mask&o.Layer == 0 {
			continue
		}
		if box.Overlaps(o.Shape.Bounds(o.Transform)) {
			out = append(out, other)
		}
	}
	slices.Sort(out)
	return out
}

// VisibleAt returns the visible drawables on layer whose translation is
// within radius of p, sorted by id.
func (b *Retained) VisibleAt(layer uint32, p mgl64.Vec3, radius float64) []DrawableID {
	var out []DrawableID
	for id, d := range b.Drawables {
		if !d.Visible || d.Layer != layer {
			continue
		}
		if d.Transform.Col(3).Vec3().Sub(p).Len() <= radius {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
