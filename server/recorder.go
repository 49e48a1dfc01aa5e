package server

// Recorder is a backend that keeps a copy of every batch it receives. It
// is meant for tests asserting exactly what a frame submitted.
type Recorder struct {
	Render  []RenderFrame
	Physics []PhysicsFrame
	Display []DisplayChanges

	// Err, when set, is returned from every submission.
	Err error

	Width, Height int
	Quit          bool
}

// Backends returns r plugged into every server slot.
func (r *Recorder) Backends() Backends {
	return Backends{Rendering: r, Physics: r, Display: r}
}

// SubmitRender implements RenderingBackend.
func (r *Recorder) SubmitRender(f *RenderFrame) error {
	c := RenderFrame{
		Frame:     f.Frame,
		Drawables: append([]DrawableUpdate(nil), f.Drawables...),
		Removed:   append([]DrawableID(nil), f.Removed...),

		CameraCleared: f.CameraCleared,
	}
	if f.Camera != nil {
		cam := *f.Camera
		c.Camera = &cam
	}
	r.Render = append(r.Render, c)
	return r.Err
}

// SubmitPhysics implements PhysicsBackend.
func (r *Recorder) SubmitPhysics(f *PhysicsFrame) error {
	r.Physics = append(r.Physics, PhysicsFrame{
		Frame:     f.Frame,
		Colliders: append([]ColliderUpdate(nil), f.Colliders...),
		Removed:   append([]ColliderID(nil), f.Removed...),
	})
	return r.Err
}

// ApplyDisplay implements DisplayBackend.
func (r *Recorder) ApplyDisplay(c DisplayChanges) error {
	r.Display = append(r.Display, c)
	if c.Size != nil {
		r.Width, r.Height = c.Size[0], c.Size[1]
	}
	return r.Err
}

// DisplaySize implements DisplayBackend.
func (r *Recorder) DisplaySize() (int, int) {
	return r.Width, r.Height
}

// QuitRequested implements DisplayBackend.
func (r *Recorder) QuitRequested() bool {
	return r.Quit
}

// LastRender returns the most recent render batch, or nil.
func (r *Recorder) LastRender() *RenderFrame {
	if len(r.Render) == 0 {
		return nil
	}
	return &r.Render[len(r.Render)-1]
}

// LastPhysics returns the most recent physics batch, or nil.
func (r *Recorder) LastPhysics() *PhysicsFrame {
	if len(r.Physics) == 0 {
		return nil
	}
	return &r.Physics[len(r.Physics)-1]
}
