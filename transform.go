package arbor

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a local transform: scale, then rotate, then translate.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat // the zero quaternion is treated as identity
	Scale    mgl64.Vec3
}

// IdentityTransform returns the transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.QuatIdent(), Scale: mgl64.Vec3{1, 1, 1}}
}

// Translate returns an identity transform moved to (x, y, z).
func Translate(x, y, z float64) Transform {
	t := IdentityTransform()
	t.Position = mgl64.Vec3{x, y, z}
	return t
}

// Mat4 returns T * R * S.
func (t Transform) Mat4() mgl64.Mat4 {
	rot := t.Rotation
	if rot == (mgl64.Quat{}) {
		rot = mgl64.QuatIdent()
	}
	m := rot.Normalize().Mat4()
	// Scale the basis columns, then set the translation column.
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			m[c*4+r] *= t.Scale[c]
		}
	}
	m[12], m[13], m[14] = t.Position[0], t.Position[1], t.Position[2]
	return m
}

// --- Dirty propagation ---

// markDirty invalidates the cached world transform of n and its
// descendants. A dirty node always has dirty descendants, so the walk stops
// at nodes that are already dirty.
func (t *Tree) markDirty(n *Node) {
	if n.dirty {
		return
	}
	n.dirty = true
	if n.notifyTransform && n.state.inTree() {
		t.notify(n, NotificationTransformChanged)
	}
	for _, ch := range n.children {
		if c := t.get(ch); c != nil {
			t.markDirty(c)
		}
	}
}

// markSubtreeDirty sets dirty on n and every descendant without the early
// exit. Used when a subtree gets a new parent.
func (t *Tree) markSubtreeDirty(n *Node) {
	n.dirty = true
	for _, ch := range n.children {
		if c := t.get(ch); c != nil {
			t.markSubtreeDirty(c)
		}
	}
}

// world returns the world matrix of n, recomputing only the dirty path from
// the nearest clean ancestor down to n.
func (t *Tree) world(n *Node) mgl64.Mat4 {
	if !n.dirty {
		return n.world
	}
	path := t.pathBuf[:0]
	for p := n; p != nil && p.dirty; p = t.get(p.parent) {
		path = append(path, p)
	}
	for i := len(path) - 1; i >= 0; i-- {
		p := path[i]
		local := p.local.Mat4()
		parent := t.get(p.parent)
		if parent != nil && !p.topLevel {
			p.world = parent.world.Mul4(local)
		} else {
			p.world = local
		}
		p.dirty = false
	}
	clear(path)
	t.pathBuf = path[:0]
	return n.world
}

// --- Tree-level transform API ---

// SetLocalTransform replaces the local transform of h and invalidates the
// world transforms of h and its descendants.
func (t *Tree) SetLocalTransform(h Handle, tr Transform) error {
	n := t.get(h)
	if n == nil {
		return structural("SetLocalTransform", h.String(), ReasonDestroyed, "")
	}
	n.SetLocalTransform(tr)
	return nil
}

// LocalTransform returns the local transform of h.
func (t *Tree) LocalTransform(h Handle) (Transform, error) {
	n := t.get(h)
	if n == nil {
		return Transform{}, structural("LocalTransform", h.String(), ReasonDestroyed, "")
	}
	return n.local, nil
}

// WorldTransform returns the world matrix of h: the product of its
// ancestors' local transforms and its own.
func (t *Tree) WorldTransform(h Handle) (mgl64.Mat4, error) {
	n := t.get(h)
	if n == nil {
		return mgl64.Mat4{}, structural("WorldTransform", h.String(), ReasonDestroyed, "")
	}
	return t.world(n), nil
}

// --- Node-level setters ---

// SetLocalTransform replaces the node's local transform and marks it dirty.
func (n *Node) SetLocalTransform(tr Transform) {
	n.local = tr
	n.invalidate()
}

// SetPosition sets the local position and marks the node dirty.
func (n *Node) SetPosition(p mgl64.Vec3) {
	n.local.Position = p
	n.invalidate()
}

// SetRotation sets the local rotation and marks the node dirty.
func (n *Node) SetRotation(q mgl64.Quat) {
	n.local.Rotation = q
	n.invalidate()
}

// SetScale sets the local scale and marks the node dirty.
func (n *Node) SetScale(s mgl64.Vec3) {
	n.local.Scale = s
	n.invalidate()
}

// SetTopLevel makes the node ignore its parent's transform.
func (n *Node) SetTopLevel(on bool) {
	if n.topLevel == on {
		return
	}
	n.topLevel = on
	n.dirty = false
	n.invalidate()
}

// SetNotifyTransform opts the node into NotificationTransformChanged.
func (n *Node) SetNotifyTransform(on bool) {
	n.notifyTransform = on
}

// LocalTransform returns the node's local transform.
func (n *Node) LocalTransform() Transform {
	return n.local
}

// Position returns the local position.
func (n *Node) Position() mgl64.Vec3 {
	return n.local.Position
}

// WorldTransform returns the node's world matrix. Nodes outside a tree have
// no parent transform and return their local matrix.
func (n *Node) WorldTransform() mgl64.Mat4 {
	if n.tree == nil || !n.state.inTree() {
		return n.local.Mat4()
	}
	return n.tree.world(n)
}

// GlobalPosition returns the translation of the world matrix.
func (n *Node) GlobalPosition() mgl64.Vec3 {
	return n.WorldTransform().Col(3).Vec3()
}

func (n *Node) invalidate() {
	if n.tree != nil && n.state.inTree() {
		n.tree.markDirty(n)
		return
	}
	n.dirty = true
}
