package arbor

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/phanxgames/arbor/resource"
	"github.com/phanxgames/arbor/server"
)

// LoadScene loads a .scene file through the resource cache and builds a
// detached node subtree from it. The scene descriptor is released once
// the nodes are built; mesh resources are loaded when the nodes enter a
// tree.
func (e *Engine) LoadScene(path string) (*Node, error) {
	desc, res, err := resource.LoadAs[*resource.SceneDesc](e.Resources, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = e.Resources.Unload(res.Path()) }()
	root, err := e.Instantiate(desc.Root)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", res.Path(), err)
	}
	e.Log.Debug("scene loaded", zap.String("path", res.Path()), zap.String("root", root.Name()))
	return root, nil
}

// LoadMainScene loads the scene at path and creates a tree around it. Any
// failure is an *InitializationError.
func (e *Engine) LoadMainScene(path string) (*Tree, error) {
	root, err := e.LoadScene(path)
	if err != nil {
		return nil, &InitializationError{Stage: "main scene", Err: err}
	}
	t, err := NewTree(e, root)
	if err != nil {
		return nil, &InitializationError{Stage: "main scene", Err: err}
	}
	return t, nil
}

// Instantiate builds a detached node from desc, with its children staged.
func (e *Engine) Instantiate(desc resource.NodeDesc) (*Node, error) {
	var behavior any
	if desc.Behavior != "" {
		factory, ok := e.behaviors[desc.Behavior]
		if !ok {
			return nil, fmt.Errorf("%w %q on node %q", ErrUnknownBehavior, desc.Behavior, desc.Name)
		}
		behavior = factory()
	}
	n := NewNode(desc.Name, behavior)

	tr := IdentityTransform()
	tr.Position = mgl64.Vec3(desc.Position)
	tr.Rotation = eulerDegrees(desc.Rotation)
	if desc.Scale != nil {
		tr.Scale = mgl64.Vec3(*desc.Scale)
	}
	n.local = tr
	n.topLevel = desc.TopLevel
	n.notifyTransform = desc.NotifyTransform

	mode, err := ParseProcessMode(desc.ProcessMode)
	if err != nil {
		return nil, err
	}
	n.mode = mode
	for _, g := range desc.Groups {
		n.AddToGroup(g)
	}
	for k, v := range desc.Meta {
		n.SetMeta(k, v)
	}

	if m := desc.Mesh; m != nil {
		r := NewRenderable(m.Path)
		r.Material = m.Material
		r.Hidden = m.Hidden
		r.Layer = m.Layer
		if m.Color != nil {
			r.Color = Color{R: float64(m.Color[0]), G: float64(m.Color[1]), B: float64(m.Color[2]), A: float64(m.Color[3])}
		}
		n.Renderable = r
	}
	if c := desc.Collider; c != nil {
		b, err := bodyFromDesc(c)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", desc.Name, err)
		}
		n.Body = b
	}
	if c := desc.Camera; c != nil {
		cam := NewCamera()
		if c.FOV > 0 {
			cam.FOV = mgl64.DegToRad(c.FOV)
		}
		if c.Near > 0 {
			cam.Near = c.Near
		}
		if c.Far > 0 {
			cam.Far = c.Far
		}
		cam.Current = c.Current
		n.Camera = cam
	}

	for _, cd := range desc.Children {
		child, err := e.Instantiate(cd)
		if err != nil {
			return nil, err
		}
		if err := n.AddChild(child); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// eulerDegrees converts scene-file Euler angles (x, y, z in degrees,
// applied Y then X then Z) to a quaternion.
func eulerDegrees(r [3]float64) mgl64.Quat {
	if r == [3]float64{} {
		return mgl64.QuatIdent()
	}
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(r[1]),
		mgl64.DegToRad(r[0]),
		mgl64.DegToRad(r[2]),
		mgl64.YXZ)
}

func bodyFromDesc(c *resource.ColliderDesc) (*Body, error) {
	var shape server.Shape
	switch c.Shape {
	case "box":
		shape = server.Shape{Kind: server.ShapeBox, Extents: mgl64.Vec3(c.Extents)}
	case "sphere":
		shape = server.Shape{Kind: server.ShapeSphere, Radius: c.Radius}
	case "capsule":
		shape = server.Shape{Kind: server.ShapeCapsule, Radius: c.Radius, Height: c.Height}
	case "plane":
		shape = server.Shape{Kind: server.ShapePlane}
	default:
		return nil, fmt.Errorf("unknown collider shape %q", c.Shape)
	}
	b := NewBody(shape)
	switch c.Body {
	case "", "static":
		b.Kind = server.BodyStatic
	case "kinematic":
		b.Kind = server.BodyKinematic
	case "rigid":
		b.Kind = server.BodyRigid
	case "area":
		b.Kind = server.BodyArea
	default:
		return nil, fmt.Errorf("unknown body kind %q", c.Body)
	}
	if c.Layer != 0 {
		b.Layer = c.Layer
	}
	if c.Mask != 0 {
		b.Mask = c.Mask
	}
	b.Disabled = c.Disabled
	return b, nil
}
