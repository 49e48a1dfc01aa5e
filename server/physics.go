package server

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// ColliderID identifies a collider registered with a Physics server. The
// zero value is never allocated.
type ColliderID uint32

// ShapeKind selects the collision primitive.
type ShapeKind uint8

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCapsule
	ShapePlane // infinite plane through the origin with normal +Y
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCapsule:
		return "capsule"
	case ShapePlane:
		return "plane"
	default:
		return fmt.Sprintf("ShapeKind(%d)", uint8(k))
	}
}

// Shape is a collision primitive in local space.
type Shape struct {
	Kind    ShapeKind
	Extents mgl64.Vec3 // box half extents
	Radius  float64    // sphere and capsule
	Height  float64    // capsule, along local Y, excluding the caps
}

// AABB is an axis-aligned box in world space.
type AABB struct {
	Min, Max mgl64.Vec3
}

// Overlaps reports whether the boxes intersect, touching edges included.
func (a AABB) Overlaps(b AABB) bool {
	for i := 0; i < 3; i++ {
		if a.Max[i] < b.Min[i] || b.Max[i] < a.Min[i] {
			return false
		}
	}
	return true
}

// Bounds returns the world-space box enclosing the shape under transform m.
func (s Shape) Bounds(m mgl64.Mat4) AABB {
	var half mgl64.Vec3
	switch s.Kind {
	case ShapeBox:
		half = s.Extents
	case ShapeSphere:
		half = mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	case ShapeCapsule:
		half = mgl64.Vec3{s.Radius, s.Radius + s.Height/2, s.Radius}
	case ShapePlane:
		inf := math.Inf(1)
		return AABB{Min: mgl64.Vec3{-inf, -inf, -inf}, Max: mgl64.Vec3{inf, m.Col(3)[1], inf}}
	}
	// Transform the local box by taking the absolute value of the linear part.
	center := m.Col(3).Vec3()
	var ext mgl64.Vec3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ext[i] += math.Abs(m.At(i, j)) * half[j]
		}
	}
	return AABB{Min: center.Sub(ext), Max: center.Add(ext)}
}

// BodyKind selects how the backend simulates a collider.
type BodyKind uint8

const (
	BodyStatic BodyKind = iota
	BodyKinematic
	BodyRigid
	BodyArea // detects overlaps, no collision response
)

func (k BodyKind) String() string {
	switch k {
	case BodyStatic:
		return "static"
	case BodyKinematic:
		return "kinematic"
	case BodyRigid:
		return "rigid"
	case BodyArea:
		return "area"
	default:
		return fmt.Sprintf("BodyKind(%d)", uint8(k))
	}
}

// Collider is the declarative physics state of one body.
type Collider struct {
	Shape     Shape
	Body      BodyKind
	Transform mgl64.Mat4
	Layer     uint32 // layers this collider occupies
	Mask      uint32 // layers this collider detects
	Disabled  bool
}

// ColliderUpdate is a buffered collider write.
type ColliderUpdate = Update[ColliderID, Collider]

// PhysicsFrame is the batch handed to a PhysicsBackend. The backend must
// not retain the slices after SubmitPhysics returns.
type PhysicsFrame struct {
	Frame     uint64
	Colliders []ColliderUpdate
	Removed   []ColliderID
}

// PhysicsBackend receives one batch per frame.
type PhysicsBackend interface {
	SubmitPhysics(f *PhysicsFrame) error
}

// Physics buffers collider submissions for a PhysicsBackend.
type Physics struct {
	backend PhysicsBackend
	log     *zap.Logger
	nextID  ColliderID
	live    map[ColliderID]struct{}
	pending *batch[ColliderID, Collider]
	frames  [2]PhysicsFrame
	cur     int
	frame   uint64
}

// NewPhysics returns a server submitting to backend. A nil backend
// discards every frame.
func NewPhysics(backend PhysicsBackend, log *zap.Logger) *Physics {
	if log == nil {
		log = zap.NewNop()
	}
	return &Physics{
		backend: backend,
		log:     log.Named("physics"),
		live:    make(map[ColliderID]struct{}),
		pending: newBatch[ColliderID, Collider](),
	}
}

// CreateCollider allocates a collider id.
func (p *Physics) CreateCollider() ColliderID {
	p.nextID++
	id := p.nextID
	p.live[id] = struct{}{}
	p.pending.create(id)
	return id
}

// SetCollider submits the state of id for this frame.
func (p *Physics) SetCollider(id ColliderID, c Collider) error {
	if _, ok := p.live[id]; !ok {
		return fmt.Errorf("set collider %d: %w", id, ErrUnknownID)
	}
	p.pending.put(id, c)
	return nil
}

// RemoveCollider releases id and cancels any write pending for it.
func (p *Physics) RemoveCollider(id ColliderID) error {
	if _, ok := p.live[id]; !ok {
		return fmt.Errorf("remove collider %d: %w", id, ErrUnknownID)
	}
	delete(p.live, id)
	p.pending.remove(id)
	return nil
}

// Live returns the number of registered colliders.
func (p *Physics) Live() int {
	return len(p.live)
}

// Frame returns the number of completed flushes.
func (p *Physics) Frame() uint64 {
	return p.frame
}

// Flush hands the buffered frame to the backend and resets the buffer.
func (p *Physics) Flush() error {
	p.frame++
	if p.pending.empty() {
		return nil
	}
	f := &p.frames[p.cur]
	p.cur ^= 1
	f.Frame = p.frame
	f.Colliders, f.Removed = p.pending.drain(f.Colliders[:0], f.Removed[:0])

	if p.backend == nil {
		return nil
	}
	p.log.Debug("submit",
		zap.Uint64("frame", f.Frame),
		zap.Int("colliders", len(f.Colliders)),
		zap.Int("removed", len(f.Removed)))
	if err := p.backend.SubmitPhysics(f); err != nil {
		return fmt.Errorf("physics flush: %w", err)
	}
	return nil
}
