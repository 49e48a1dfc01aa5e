package arbor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Built-in signals defined on every node. Their argument is the node's
// handle.
const (
	SignalTreeEntered = "tree_entered"
	SignalReady       = "ready"
	SignalTreeExiting = "tree_exiting"
)

// Node is the fundamental scene tree element. A single flat struct is used
// for every kind of node; behavior comes from the optional Behavior value
// and from the attached components, not from embedding.
//
// Nodes are created detached with NewNode, optionally staged with detached
// children via AddChild, and enter a tree through Tree.AddChild. Once in a
// tree, structural changes go through the Tree so they can be deferred
// during a frame pass.
type Node struct {
	// Behavior receives lifecycle callbacks. It may implement any subset of
	// EnterTreeHandler, ReadyHandler, ProcessHandler, PhysicsProcessHandler,
	// ExitTreeHandler and NotificationHandler.
	Behavior any

	// Optional components. Presence selects behavior: a node with a
	// Renderable is drawn, one with a Body collides, and the first node
	// with a current Camera is the active view.
	Renderable *Renderable
	Body       *Body
	Camera     *Camera

	// Identity
	name   string
	handle Handle
	tree   *Tree
	state  State

	// Hierarchy
	parent   Handle
	children []Handle
	staged   []*Node // detached children, linked when this node enters a tree
	stagedIn *Node   // detached parent this node is staged under

	// Transform
	local           Transform
	world           mgl64.Mat4
	dirty           bool
	topLevel        bool
	notifyTransform bool

	// Behavior selection
	mode    ProcessMode
	signals map[string]signalChannel
	groups  []string
	meta    map[string]any

	comp componentState
}

// NewNode creates a detached node with an identity transform.
func NewNode(name string, behavior any) *Node {
	n := &Node{
		Behavior: behavior,
		name:     name,
		local:    IdentityTransform(),
		world:    mgl64.Ident4(),
		dirty:    true,
		signals:  make(map[string]signalChannel, 3),
	}
	DefineSignal[Handle](n, SignalTreeEntered)
	DefineSignal[Handle](n, SignalReady)
	DefineSignal[Handle](n, SignalTreeExiting)
	return n
}

// Name returns the node's name, unique among its siblings.
func (n *Node) Name() string {
	return n.name
}

// SetName renames the node. In a tree the name must stay unique among the
// node's siblings.
func (n *Node) SetName(name string) error {
	if err := validName(name); err != nil {
		return structural("SetName", n.name, ReasonInvalidName, err.Error())
	}
	if name == n.name {
		return nil
	}
	var siblings []*Node
	switch {
	case n.tree != nil && n.state.inTree():
		if p := n.tree.get(n.parent); p != nil {
			siblings = n.tree.nodes(p.children)
		}
	case n.stagedIn != nil:
		siblings = n.stagedIn.staged
	}
	for _, s := range siblings {
		if s != n && s.name == name {
			return structural("SetName", n.name, ReasonDuplicateName, name)
		}
	}
	n.name = name
	return nil
}

// Handle returns the node's handle, or the nil handle while it is not in a
// tree.
func (n *Node) Handle() Handle {
	return n.handle
}

// Tree returns the tree the node belongs to, or nil.
func (n *Node) Tree() *Tree {
	return n.tree
}

// State returns the node's lifecycle state.
func (n *Node) State() State {
	return n.state
}

// InTree reports whether the node is linked into a tree.
func (n *Node) InTree() bool {
	return n.tree != nil && n.state.inTree()
}

// Parent returns the parent's handle, or the nil handle for the root and
// detached nodes.
func (n *Node) Parent() Handle {
	return n.parent
}

// Children returns the child handles in order. The returned slice MUST NOT
// be mutated by the caller.
func (n *Node) Children() []Handle {
	return n.children
}

// NumChildren returns the number of linked children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// StagedChildren returns the detached children staged on this node.
func (n *Node) StagedChildren() []*Node {
	return n.staged
}

// AddChild attaches child under n. On a node in a tree it is
// Tree.AddChild; on a detached node the child is staged and enters the tree
// together with n. Panics if child is nil.
func (n *Node) AddChild(child *Node) error {
	if child == nil {
		panic("arbor: cannot add nil child")
	}
	if n.tree != nil {
		_, err := n.tree.AddChild(n.handle, child)
		return err
	}
	if n.state != StateCreated {
		return structural("AddChild", n.name, ReasonDestroyed, "")
	}
	if child.tree != nil || child.state != StateCreated || child.stagedIn != nil {
		return structural("AddChild", child.name, ReasonAttached, "")
	}
	for p := n; p != nil; p = p.stagedIn {
		if p == child {
			return structural("AddChild", child.name, ReasonCycle, "")
		}
	}
	if err := validName(child.name); err != nil {
		return structural("AddChild", child.name, ReasonInvalidName, err.Error())
	}
	for _, s := range n.staged {
		if s.name == child.name {
			return structural("AddChild", child.name, ReasonDuplicateName, "under "+n.name)
		}
	}
	child.stagedIn = n
	n.staged = append(n.staged, child)
	return nil
}

// --- Process mode ---

// ProcessMode returns the node's own process mode.
func (n *Node) ProcessMode() ProcessMode {
	return n.mode
}

// SetProcessMode sets how the node behaves while the tree is paused.
func (n *Node) SetProcessMode(m ProcessMode) {
	n.mode = m
}

// --- Groups ---

// AddToGroup adds the node to the named group. Adding twice is a no-op.
func (n *Node) AddToGroup(group string) {
	if !slices.Contains(n.groups, group) {
		n.groups = append(n.groups, group)
	}
}

// RemoveFromGroup removes the node from the named group.
func (n *Node) RemoveFromGroup(group string) {
	if i := slices.Index(n.groups, group); i >= 0 {
		n.groups = slices.Delete(n.groups, i, i+1)
	}
}

// InGroup reports whether the node belongs to the named group.
func (n *Node) InGroup(group string) bool {
	return slices.Contains(n.groups, group)
}

// Groups returns the node's groups in insertion order.
func (n *Node) Groups() []string {
	return n.groups
}

// --- Metadata ---

// SetMeta stores an arbitrary value under key.
func (n *Node) SetMeta(key string, v any) {
	if n.meta == nil {
		n.meta = make(map[string]any)
	}
	n.meta[key] = v
}

// Meta returns the value stored under key.
func (n *Node) Meta(key string) (any, bool) {
	v, ok := n.meta[key]
	return v, ok
}

// RemoveMeta deletes key.
func (n *Node) RemoveMeta(key string) {
	delete(n.meta, key)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s, %s)", n.name, n.handle, n.state)
}

// --- Helpers ---

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("name %q contains '/'", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("name %q is reserved", name)
	}
	return nil
}

// hasChildNamed reports whether p has a linked child called name other
// than skip.
func (t *Tree) hasChildNamed(p *Node, name string, skip *Node) bool {
	for _, h := range p.children {
		if c := t.get(h); c != nil && c != skip && c.name == name {
			return true
		}
	}
	return false
}

// isAncestor reports whether candidate is n or an ancestor of n.
func (t *Tree) isAncestor(candidate, n *Node) bool {
	for p := n; p != nil; p = t.get(p.parent) {
		if p == candidate {
			return true
		}
	}
	return false
}

// nodes resolves a handle list, skipping stale entries.
func (t *Tree) nodes(hs []Handle) []*Node {
	out := make([]*Node, 0, len(hs))
	for _, h := range hs {
		if n := t.get(h); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// removeChildHandle removes h from p.children, preserving order.
func removeChildHandle(p *Node, h Handle) bool {
	i := slices.Index(p.children, h)
	if i < 0 {
		return false
	}
	p.children = slices.Delete(p.children, i, i+1)
	return true
}
