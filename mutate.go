package arbor

import (
	"go.uber.org/zap"
)

type mutationKind uint8

const (
	mutAdd mutationKind = iota
	mutRemove
	mutReparent
)

func (k mutationKind) String() string {
	switch k {
	case mutAdd:
		return "AddChild"
	case mutRemove:
		return "RemoveChild"
	default:
		return "Reparent"
	}
}

// mutation is a structural change requested during a pass.
type mutation struct {
	kind   mutationKind
	node   Handle
	parent Handle
}

// AddChild links n as the last child of parent and returns its handle. n
// and its staged children receive enter_tree, parent first, and ready at
// the next Advance.
//
// Called during a frame pass, the change is queued and applied at the
// start of the next Advance. The returned handle is valid immediately but
// the node only joins the tree when the queue is applied. Panics if n is
// nil.
func (t *Tree) AddChild(parent Handle, n *Node) (Handle, error) {
	if n == nil {
		panic("arbor: cannot add nil node")
	}
	if t.closed {
		return Handle{}, ErrTreeClosed
	}
	p := t.get(parent)
	if err := t.checkAdd(p, parent, n); err != nil {
		return Handle{}, err
	}
	if t.busy > 0 || p.state == StateCreated {
		h := t.alloc(n)
		t.queue = append(t.queue, mutation{kind: mutAdd, node: h, parent: parent})
		return h, nil
	}
	h := t.link(p, n, Handle{})
	t.enter(n)
	if t.debug {
		t.debugCheckChildCount(p)
	}
	return h, nil
}

func (t *Tree) checkAdd(p *Node, parent Handle, n *Node) error {
	const op = "AddChild"
	if p == nil || p.state == StateExitingTree || p.state == StateDestroyed {
		return structural(op, parent.String(), ReasonDestroyed, "parent")
	}
	if n.tree != nil || n.state != StateCreated || n.stagedIn != nil {
		return structural(op, n.name, ReasonAttached, "")
	}
	if err := validName(n.name); err != nil {
		return structural(op, n.name, ReasonInvalidName, err.Error())
	}
	if t.hasChildNamed(p, n.name, nil) {
		return structural(op, n.name, ReasonDuplicateName, "under "+t.describe(p))
	}
	return nil
}

// RemoveChild removes h and its subtree from the tree. Exit notifications
// run children first, then every node of the subtree is destroyed and its
// handle becomes stale. Nodes still waiting for ready receive it first.
// During a frame pass the removal is queued like QueueRemove.
func (t *Tree) RemoveChild(h Handle) error {
	n, err := t.checkRemove("RemoveChild", h)
	if err != nil {
		return err
	}
	if t.busy > 0 || n.state == StateCreated {
		t.queue = append(t.queue, mutation{kind: mutRemove, node: h})
		return nil
	}
	t.destroy(n)
	return nil
}

// QueueRemove schedules the removal of h at the start of the next
// Advance, even outside a frame pass.
func (t *Tree) QueueRemove(h Handle) error {
	if _, err := t.checkRemove("QueueRemove", h); err != nil {
		return err
	}
	t.queue = append(t.queue, mutation{kind: mutRemove, node: h})
	return nil
}

func (t *Tree) checkRemove(op string, h Handle) (*Node, error) {
	n := t.get(h)
	if n == nil || n.state == StateExitingTree {
		return nil, structural(op, h.String(), ReasonDestroyed, "")
	}
	if h == t.root {
		return nil, structural(op, t.describe(n), ReasonRoot, "")
	}
	return n, nil
}

// Reparent moves h under newParent, keeping its subtree, world transforms
// recomputed lazily. It fails if newParent is h or one of its descendants,
// if either handle is stale, or if newParent already has a child with the
// same name. Moving a node under its current parent is a no-op. During a
// frame pass the move is validated now and applied at the next Advance.
func (t *Tree) Reparent(h, newParent Handle) error {
	n := t.get(h)
	np := t.get(newParent)
	if err := t.checkReparent(n, h, np, newParent); err != nil {
		return err
	}
	if n.parent == newParent {
		return nil
	}
	if t.busy > 0 || n.state == StateCreated || np.state == StateCreated {
		t.queue = append(t.queue, mutation{kind: mutReparent, node: h, parent: newParent})
		return nil
	}
	t.move(n, np)
	return nil
}

func (t *Tree) checkReparent(n *Node, h Handle, np *Node, newParent Handle) error {
	const op = "Reparent"
	if n == nil || n.state == StateExitingTree {
		return structural(op, h.String(), ReasonDestroyed, "")
	}
	if np == nil || np.state == StateExitingTree || np.state == StateDestroyed {
		return structural(op, t.describe(n), ReasonDestroyed, "new parent "+newParent.String())
	}
	if t.isAncestor(n, np) {
		return structural(op, t.describe(n), ReasonCycle, "new parent "+t.describe(np))
	}
	if h == t.root {
		return structural(op, t.describe(n), ReasonRoot, "")
	}
	if n.parent != newParent && t.hasChildNamed(np, n.name, n) {
		return structural(op, t.describe(n), ReasonDuplicateName, "under "+t.describe(np))
	}
	return nil
}

func (t *Tree) move(n, np *Node) {
	if old := t.get(n.parent); old != nil {
		removeChildHandle(old, n.handle)
	}
	n.parent = np.handle
	np.children = append(np.children, n.handle)
	t.markSubtreeDirty(n)
	t.notify(n, NotificationReparented)
	if t.debug {
		t.debugCheckTreeDepth(n)
		t.debugCheckChildCount(np)
	}
}

// --- Queue application ---

func (t *Tree) applyQueued() {
	if len(t.queue) == 0 {
		return
	}
	batch := t.queue
	t.queue = t.spare[:0]
	t.busy++
	for _, m := range batch {
		t.apply(m)
	}
	t.busy--
	clear(batch)
	t.spare = batch[:0]
}

func (t *Tree) apply(m mutation) {
	n := t.get(m.node)
	if n == nil {
		// Destroyed by an earlier entry of the same batch.
		return
	}
	var err error
	switch m.kind {
	case mutAdd:
		p := t.get(m.parent)
		n.tree = nil
		if err = t.checkAdd(p, m.parent, n); err != nil {
			t.release(m.node)
			n.handle = Handle{}
			break
		}
		t.link(p, n, m.node)
		t.enter(n)
	case mutRemove:
		if n.state == StateExitingTree || n.state == StateDestroyed {
			return
		}
		if n.state == StateCreated {
			// Its queued add failed or never ran.
			return
		}
		t.destroy(n)
	case mutReparent:
		np := t.get(m.parent)
		if err = t.checkReparent(n, m.node, np, m.parent); err != nil {
			break
		}
		if n.parent != m.parent {
			t.move(n, np)
		}
	}
	if err != nil {
		t.log.Warn("queued mutation dropped",
			zap.Stringer("op", m.kind),
			zap.Uint64("frame", t.frame),
			zap.Error(err))
	}
}

// --- Linking ---

// link allocates handles for n and its staged descendants (n reuses h when
// it was reserved) and links them under parent.
func (t *Tree) link(parent, n *Node, h Handle) Handle {
	if h.IsNil() {
		h = t.alloc(n)
	} else {
		n.tree = t
		n.handle = h
	}
	n.stagedIn = nil
	n.parent = Handle{}
	if parent != nil {
		n.parent = parent.handle
		parent.children = append(parent.children, h)
	}
	n.state = StateEnteredTree
	staged := n.staged
	n.staged = nil
	for _, c := range staged {
		t.link(n, c, Handle{})
	}
	return h
}

// enter delivers enter_tree to a freshly linked subtree, parent first, and
// queues its ready callbacks.
func (t *Tree) enter(n *Node) {
	t.busy++
	defer func() { t.busy-- }()
	t.enterWalk(n)
}

func (t *Tree) enterWalk(n *Node) {
	t.markSubtreeDirty(n)
	t.setupComponents(n)
	t.ready = append(t.ready, n.handle)
	t.callEnterTree(n)
	if t.debug {
		t.debugCheckTreeDepth(n)
	}
	for _, ch := range n.children {
		if c := t.get(ch); c != nil {
			t.enterWalk(c)
		}
	}
}

// destroy removes n's subtree: pending ready, exit (children first),
// unlink, then predelete and release (children first).
func (t *Tree) destroy(n *Node) {
	t.busy++
	defer func() { t.busy-- }()

	t.walk(n, func(c *Node) bool {
		if c.state == StateEnteredTree {
			c.state = StateActive
			t.callReady(c)
		}
		return true
	})
	t.walk(n, func(c *Node) bool {
		c.state = StateExitingTree
		return true
	})
	t.exitWalk(n)
	if p := t.get(n.parent); p != nil {
		removeChildHandle(p, n.handle)
	}
	t.freeWalk(n)
}

func (t *Tree) exitWalk(n *Node) {
	for _, ch := range n.children {
		if c := t.get(ch); c != nil {
			t.exitWalk(c)
		}
	}
	t.callExitTree(n)
}

func (t *Tree) freeWalk(n *Node) {
	for _, ch := range n.children {
		if c := t.get(ch); c != nil {
			t.freeWalk(c)
		}
	}
	t.notify(n, NotificationPredelete)
	t.teardownComponents(n)
	closeSignals(n)
	t.release(n.handle)
	n.state = StateDestroyed
	n.children = nil
	n.parent = Handle{}
	n.tree = nil
}
