package server

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSetDrawableLastWriteWins(t *testing.T) {
	rec := &Recorder{}
	r := NewRendering(rec, nil)
	id := r.CreateDrawable()

	if err := r.SetDrawable(id, Drawable{Mesh: "a.obj", Visible: true}); err != nil {
		t.Fatal(err)
	}
	if err := r.SetDrawable(id, Drawable{Mesh: "b.obj", Visible: true}); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}

	f := rec.LastRender()
	if f == nil || len(f.Drawables) != 1 {
		t.Fatalf("frame = %+v, want one drawable", f)
	}
	if got := f.Drawables[0].Value.Mesh; got != "b.obj" {
		t.Errorf("Mesh = %q, want b.obj", got)
	}
}

func TestFlushClearsBuffer(t *testing.T) {
	rec := &Recorder{}
	r := NewRendering(rec, nil)
	id := r.CreateDrawable()
	_ = r.SetDrawable(id, Drawable{})
	_ = r.Flush()
	_ = r.Flush()

	if len(rec.Render) != 1 {
		t.Errorf("submitted %d frames, want 1 (second frame empty)", len(rec.Render))
	}
	if r.Frame() != 2 {
		t.Errorf("Frame = %d, want 2", r.Frame())
	}
}

func TestFlushSortsByID(t *testing.T) {
	rec := &Recorder{}
	r := NewRendering(rec, nil)
	ids := make([]DrawableID, 5)
	for i := range ids {
		ids[i] = r.CreateDrawable()
	}
	for i := len(ids) - 1; i >= 0; i-- {
		_ = r.SetDrawable(ids[i], Drawable{Layer: uint32(i)})
	}
	_ = r.Flush()

	f := rec.LastRender()
	for i := 1; i < len(f.Drawables); i++ {
		if f.Drawables[i-1].ID >= f.Drawables[i].ID {
			t.Fatalf("drawables not sorted: %v", f.Drawables)
		}
	}
}

func TestRemoveCancelsPendingSet(t *testing.T) {
	rec := &Recorder{}
	r := NewRendering(rec, nil)
	id := r.CreateDrawable()
	_ = r.SetDrawable(id, Drawable{})
	_ = r.Flush()

	_ = r.SetDrawable(id, Drawable{Mesh: "late.obj"})
	if err := r.RemoveDrawable(id); err != nil {
		t.Fatal(err)
	}
	_ = r.Flush()

	f := rec.LastRender()
	if len(f.Drawables) != 0 {
		t.Errorf("Drawables = %v, want none", f.Drawables)
	}
	if len(f.Removed) != 1 || f.Removed[0] != id {
		t.Errorf("Removed = %v, want [%d]", f.Removed, id)
	}
	if r.Live() != 0 {
		t.Errorf("Live = %d, want 0", r.Live())
	}
}

func TestCreateAndRemoveInSameFrameIsDropped(t *testing.T) {
	rec := &Recorder{}
	r := NewRendering(rec, nil)
	id := r.CreateDrawable()
	_ = r.SetDrawable(id, Drawable{})
	_ = r.RemoveDrawable(id)
	_ = r.Flush()

	if len(rec.Render) != 0 {
		t.Errorf("submitted %v, want nothing", rec.Render)
	}
}

func TestUnknownIDs(t *testing.T) {
	r := NewRendering(nil, nil)
	if err := r.SetDrawable(42, Drawable{}); !errors.Is(err, ErrUnknownID) {
		t.Errorf("SetDrawable err = %v, want ErrUnknownID", err)
	}
	id := r.CreateDrawable()
	_ = r.RemoveDrawable(id)
	if err := r.RemoveDrawable(id); !errors.Is(err, ErrUnknownID) {
		t.Errorf("second RemoveDrawable err = %v, want ErrUnknownID", err)
	}

	p := NewPhysics(nil, nil)
	if err := p.SetCollider(7, Collider{}); !errors.Is(err, ErrUnknownID) {
		t.Errorf("SetCollider err = %v, want ErrUnknownID", err)
	}
}

func TestCameraOnlySentWhenChanged(t *testing.T) {
	rec := &Recorder{}
	r := NewRendering(rec, nil)
	r.SetCamera(Camera{FOV: 1, Near: 0.1, Far: 100})
	_ = r.Flush()
	id := r.CreateDrawable()
	_ = r.SetDrawable(id, Drawable{})
	_ = r.Flush()

	if len(rec.Render) != 2 {
		t.Fatalf("frames = %d, want 2", len(rec.Render))
	}
	if rec.Render[0].Camera == nil || rec.Render[0].Camera.FOV != 1 {
		t.Errorf("frame 1 camera = %v", rec.Render[0].Camera)
	}
	if rec.Render[1].Camera != nil {
		t.Error("frame 2 should carry no camera change")
	}
}

func TestClearCamera(t *testing.T) {
	ret := NewRetained(64, 64)
	r := NewRendering(ret, nil)
	r.SetCamera(Camera{FOV: 1})
	_ = r.Flush()
	if ret.Camera == nil {
		t.Fatal("camera not retained")
	}

	r.SetCamera(Camera{FOV: 2})
	r.ClearCamera()
	_ = r.Flush()
	if ret.Camera != nil {
		t.Errorf("camera = %+v after clear, want nil", ret.Camera)
	}

	r.ClearCamera()
	r.SetCamera(Camera{FOV: 3})
	_ = r.Flush()
	if ret.Camera == nil || ret.Camera.FOV != 3 {
		t.Errorf("camera = %+v, want the one set after the clear", ret.Camera)
	}
}

func TestBackendErrorIsWrapped(t *testing.T) {
	boom := errors.New("device lost")
	rec := &Recorder{Err: boom}
	s := NewSet(rec.Backends(), nil)
	id := s.Rendering.CreateDrawable()
	_ = s.Rendering.SetDrawable(id, Drawable{})
	cid := s.Physics.CreateCollider()
	_ = s.Physics.SetCollider(cid, Collider{})

	err := s.Flush()
	if !errors.Is(err, boom) {
		t.Fatalf("Flush err = %v, want %v", err, boom)
	}
	if len(rec.Render) != 1 || len(rec.Physics) != 1 {
		t.Error("a failing backend should not stop other servers from flushing")
	}
}

func TestDoubleBufferedFramesAreReused(t *testing.T) {
	var seen []*RenderFrame
	b := renderFunc(func(f *RenderFrame) error {
		seen = append(seen, f)
		return nil
	})
	r := NewRendering(b, nil)
	id := r.CreateDrawable()
	for i := 0; i < 3; i++ {
		_ = r.SetDrawable(id, Drawable{})
		_ = r.Flush()
	}
	if len(seen) != 3 {
		t.Fatalf("frames = %d, want 3", len(seen))
	}
	if seen[0] == seen[1] {
		t.Error("consecutive frames should use different buffers")
	}
	if seen[0] != seen[2] {
		t.Error("buffers should alternate")
	}
}

type renderFunc func(*RenderFrame) error

func (f renderFunc) SubmitRender(fr *RenderFrame) error { return f(fr) }

func TestDisplay(t *testing.T) {
	rec := &Recorder{Width: 640, Height: 480}
	d := NewDisplay(rec, nil)
	if err := d.SetSize(0, 10); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("SetSize(0, 10) err = %v, want ErrInvalidSize", err)
	}
	d.SetTitle("arbor")
	_ = d.SetSize(800, 600)
	d.SetMouseMode(MouseCaptured)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(rec.Display) != 1 {
		t.Fatalf("display changes = %d, want 1", len(rec.Display))
	}
	c := rec.Display[0]
	if *c.Title != "arbor" || *c.MouseMode != MouseCaptured {
		t.Errorf("changes = %+v", c)
	}
	if w, h := d.Size(); w != 800 || h != 600 {
		t.Errorf("Size = %dx%d, want 800x600", w, h)
	}
	_ = d.Flush()
	if len(rec.Display) != 1 {
		t.Error("empty flush should not reach the backend")
	}

	if d.QuitRequested() {
		t.Error("QuitRequested should be false")
	}
	rec.Quit = true
	if !d.QuitRequested() {
		t.Error("QuitRequested should follow the backend")
	}
}

func TestHeadlessDisplay(t *testing.T) {
	d := NewDisplay(nil, nil)
	_ = d.SetSize(320, 200)
	_ = d.Flush()
	if w, h := d.Size(); w != 320 || h != 200 {
		t.Errorf("Size = %dx%d, want 320x200", w, h)
	}
	d.RequestQuit()
	if !d.QuitRequested() {
		t.Error("RequestQuit should be observed")
	}
}

func TestShapeBounds(t *testing.T) {
	box := Shape{Kind: ShapeBox, Extents: mgl64.Vec3{1, 2, 3}}
	b := box.Bounds(mgl64.Translate3D(10, 0, 0))
	if b.Min != (mgl64.Vec3{9, -2, -3}) || b.Max != (mgl64.Vec3{11, 2, 3}) {
		t.Errorf("box bounds = %v", b)
	}

	// A 90 degree turn about Y swaps the X and Z extents.
	rb := box.Bounds(mgl64.HomogRotate3DY(math.Pi / 2))
	if math.Abs(rb.Max[0]-3) > 1e-9 || math.Abs(rb.Max[2]-1) > 1e-9 {
		t.Errorf("rotated bounds = %v", rb)
	}

	capsule := Shape{Kind: ShapeCapsule, Radius: 0.5, Height: 2}
	cb := capsule.Bounds(mgl64.Ident4())
	if cb.Max != (mgl64.Vec3{0.5, 1.5, 0.5}) {
		t.Errorf("capsule bounds = %v", cb)
	}
}

func TestRetainedOverlapping(t *testing.T) {
	rt := NewRetained(640, 480)
	s := NewSet(rt.Backends(), nil)

	unit := Shape{Kind: ShapeSphere, Radius: 1}
	a := s.Physics.CreateCollider()
	b := s.Physics.CreateCollider()
	c := s.Physics.CreateCollider()
	d := s.Physics.CreateCollider()
	_ = s.Physics.SetCollider(a, Collider{Shape: unit, Layer: 1, Mask: 1 | 2, Transform: mgl64.Ident4()})
	_ = s.Physics.SetCollider(b, Collider{Shape: unit, Layer: 1, Transform: mgl64.Translate3D(1.5, 0, 0)})
	_ = s.Physics.SetCollider(c, Collider{Shape: unit, Layer: 4, Transform: mgl64.Translate3D(0.5, 0, 0)})
	_ = s.Physics.SetCollider(d, Collider{Shape: unit, Layer: 1, Transform: mgl64.Translate3D(5, 0, 0)})
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	got := rt.Overlapping(a)
	if len(got) != 1 || got[0] != b {
		t.Errorf("Overlapping(a) = %v, want [%d] (c masked out, d too far)", got, b)
	}

	_ = s.Physics.RemoveCollider(b)
	_ = s.Flush()
	if got := rt.Overlapping(a); len(got) != 0 {
		t.Errorf("Overlapping after remove = %v, want none", got)
	}
}

func TestRetainedKeepsLatestState(t *testing.T) {
	rt := NewRetained(640, 480)
	s := NewSet(rt.Backends(), nil)
	id := s.Rendering.CreateDrawable()
	_ = s.Rendering.SetDrawable(id, Drawable{Mesh: "a.obj", Visible: true, Transform: mgl64.Translate3D(0, 0, 1)})
	s.Display.SetTitle("demo")
	_ = s.Flush()

	if rt.Drawables[id].Mesh != "a.obj" {
		t.Errorf("Drawables[%d] = %+v", id, rt.Drawables[id])
	}
	if rt.Title != "demo" {
		t.Errorf("Title = %q, want demo", rt.Title)
	}
	if got := rt.VisibleAt(0, mgl64.Vec3{}, 1.5); len(got) != 1 {
		t.Errorf("VisibleAt = %v, want [%d]", got, id)
	}
}
