package arbor

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/phanxgames/arbor/resource"
	"github.com/phanxgames/arbor/server"
)

// Renderable draws a mesh resource at the node's world transform.
type Renderable struct {
	Mesh     string // resource path of an .obj mesh; "" registers an empty drawable
	Material string // material override from the mesh's library
	Color    Color
	Hidden   bool
	Layer    uint32
}

// NewRenderable returns a visible, untinted renderable for mesh.
func NewRenderable(mesh string) *Renderable {
	return &Renderable{Mesh: mesh, Color: ColorWhite}
}

// Body registers a collider with the physics server at the node's world
// transform.
type Body struct {
	Shape    server.Shape
	Kind     server.BodyKind
	Layer    uint32
	Mask     uint32
	Disabled bool
}

// NewBody returns a static body on layer 1 colliding with every layer.
func NewBody(shape server.Shape) *Body {
	return &Body{Shape: shape, Layer: 1, Mask: ^uint32(0)}
}

// Camera makes the node a viewpoint. The first current camera in tree order
// is the one submitted to the rendering server.
type Camera struct {
	FOV     float64 // vertical field of view, radians
	Near    float64
	Far     float64
	Current bool
}

// Camera defaults.
const (
	DefaultFOVDegrees = 70.0
	DefaultNear       = 0.05
	DefaultFar        = 1000.0
)

// NewCamera returns a current camera with the default projection.
func NewCamera() *Camera {
	return &Camera{
		FOV:     mgl64.DegToRad(DefaultFOVDegrees),
		Near:    DefaultNear,
		Far:     DefaultFar,
		Current: true,
	}
}

// componentState tracks what a node's components registered with the
// servers. The last submitted values are compared each sync so unchanged
// state is not resubmitted.
type componentState struct {
	drawable server.DrawableID
	mesh     string // canonical path of the loaded mesh resource
	meshReq  string // Renderable.Mesh the mesh was loaded for
	lastDraw server.Drawable
	drawn    bool

	collider server.ColliderID
	lastBody server.Collider
	bodySent bool
}

// setupComponents registers the node's components with the servers.
func (t *Tree) setupComponents(n *Node) {
	if n.Renderable != nil && n.comp.drawable == 0 {
		n.comp.drawable = t.engine.Servers.Rendering.CreateDrawable()
		t.loadMesh(n)
	}
	if n.Body != nil && n.comp.collider == 0 {
		n.comp.collider = t.engine.Servers.Physics.CreateCollider()
	}
}

func (t *Tree) loadMesh(n *Node) {
	req := n.Renderable.Mesh
	n.comp.meshReq = req
	if req == "" {
		return
	}
	res, err := t.engine.Resources.Load(req)
	if err != nil {
		t.log.Warn("mesh load failed",
			zap.String("node", t.describe(n)),
			zap.String("path", req),
			zap.Error(err))
		return
	}
	n.comp.mesh = res.Path()
}

func (t *Tree) unloadMesh(n *Node) {
	if n.comp.mesh == "" {
		return
	}
	if err := t.engine.Resources.Unload(n.comp.mesh); err != nil {
		t.log.Warn("mesh unload failed", zap.String("path", n.comp.mesh), zap.Error(err))
	}
	n.comp.mesh = ""
}

func (t *Tree) teardownRenderable(n *Node) {
	if n.comp.drawable == 0 {
		return
	}
	_ = t.engine.Servers.Rendering.RemoveDrawable(n.comp.drawable)
	t.unloadMesh(n)
	n.comp.drawable = 0
	n.comp.meshReq = ""
	n.comp.drawn = false
}

func (t *Tree) teardownBody(n *Node) {
	if n.comp.collider == 0 {
		return
	}
	_ = t.engine.Servers.Physics.RemoveCollider(n.comp.collider)
	n.comp.collider = 0
	n.comp.bodySent = false
}

// teardownComponents releases every server object and resource held by n.
func (t *Tree) teardownComponents(n *Node) {
	t.teardownRenderable(n)
	t.teardownBody(n)
}

// syncComponents pushes the state of every linked node's components into
// the servers. Components attached after the node entered the tree are set
// up here, and components set to nil are torn down.
func (t *Tree) syncComponents() {
	root := t.get(t.root)
	if root == nil {
		return
	}
	var cam *server.Camera
	t.walk(root, func(n *Node) bool {
		t.syncRenderable(n)
		t.syncBody(n)
		if cam == nil && n.Camera != nil && n.Camera.Current {
			cam = &server.Camera{
				Transform: t.world(n),
				FOV:       n.Camera.FOV,
				Near:      n.Camera.Near,
				Far:       n.Camera.Far,
			}
		}
		return true
	})
	switch {
	case cam != nil && (!t.cameraSent || *cam != t.lastCamera):
		t.engine.Servers.Rendering.SetCamera(*cam)
		t.lastCamera = *cam
		t.cameraSent = true
	case cam == nil && t.cameraSent:
		t.engine.Servers.Rendering.ClearCamera()
		t.cameraSent = false
		t.log.Debug("current camera lost", zap.Uint64("frame", t.frame))
	}
}

func (t *Tree) syncRenderable(n *Node) {
	r := n.Renderable
	if r == nil {
		t.teardownRenderable(n)
		return
	}
	if n.comp.drawable == 0 {
		n.comp.drawable = t.engine.Servers.Rendering.CreateDrawable()
		t.loadMesh(n)
	} else if r.Mesh != n.comp.meshReq {
		t.unloadMesh(n)
		t.loadMesh(n)
	}
	d := server.Drawable{
		Mesh:      n.comp.mesh,
		Material:  r.Material,
		Transform: t.world(n),
		Color:     r.Color,
		Visible:   !r.Hidden,
		Layer:     r.Layer,
	}
	if n.comp.drawn && d == n.comp.lastDraw {
		return
	}
	if err := t.engine.Servers.Rendering.SetDrawable(n.comp.drawable, d); err != nil {
		t.log.Warn("drawable update failed", zap.String("node", t.describe(n)), zap.Error(err))
		return
	}
	n.comp.lastDraw = d
	n.comp.drawn = true
}

func (t *Tree) syncBody(n *Node) {
	b := n.Body
	if b == nil {
		t.teardownBody(n)
		return
	}
	if n.comp.collider == 0 {
		n.comp.collider = t.engine.Servers.Physics.CreateCollider()
	}
	c := server.Collider{
		Shape:     b.Shape,
		Body:      b.Kind,
		Transform: t.world(n),
		Layer:     b.Layer,
		Mask:      b.Mask,
		Disabled:  b.Disabled,
	}
	if n.comp.bodySent && c == n.comp.lastBody {
		return
	}
	if err := t.engine.Servers.Physics.SetCollider(n.comp.collider, c); err != nil {
		t.log.Warn("collider update failed", zap.String("node", t.describe(n)), zap.Error(err))
		return
	}
	n.comp.lastBody = c
	n.comp.bodySent = true
}

// DrawableID returns the rendering server id of h's Renderable, or 0.
func (t *Tree) DrawableID(h Handle) server.DrawableID {
	if n := t.get(h); n != nil {
		return n.comp.drawable
	}
	return 0
}

// ColliderID returns the physics server id of h's Body, or 0.
func (t *Tree) ColliderID(h Handle) server.ColliderID {
	if n := t.get(h); n != nil {
		return n.comp.collider
	}
	return 0
}

// MeshResource returns the loaded mesh of h's Renderable.
func (t *Tree) MeshResource(h Handle) (*resource.Mesh, bool) {
	n := t.get(h)
	if n == nil || n.comp.mesh == "" {
		return nil, false
	}
	res, ok := t.engine.Resources.Peek(n.comp.mesh)
	if !ok {
		return nil, false
	}
	m, ok := res.Payload().(*resource.Mesh)
	return m, ok
}
