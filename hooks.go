package arbor

// Lifecycle capabilities. A node's Behavior implements any subset; every
// hook defaults to a no-op when its interface is not implemented.
type (
	// EnterTreeHandler is called when the node is linked into the tree,
	// parent before children.
	EnterTreeHandler interface{ OnEnterTree(n *Node) }

	// ReadyHandler is called exactly once, at the start of the first frame
	// after the node entered the tree, parent before children.
	ReadyHandler interface{ OnReady(n *Node) }

	// ProcessHandler is called once per frame in tree order.
	ProcessHandler interface{ OnProcess(n *Node, delta float64) }

	// PhysicsProcessHandler is called once per fixed physics step.
	PhysicsProcessHandler interface {
		OnPhysicsProcess(n *Node, delta float64)
	}

	// ExitTreeHandler is called when the node leaves the tree, children
	// before parents.
	ExitTreeHandler interface{ OnExitTree(n *Node) }

	// NotificationHandler receives every lifecycle notification before the
	// matching hook.
	NotificationHandler interface {
		OnNotification(n *Node, what Notification)
	}
)

// Hooks adapts plain functions to the lifecycle interfaces. Nil fields are
// skipped.
//
//	node := arbor.NewNode("spinner", &arbor.Hooks{
//		Process: func(n *arbor.Node, dt float64) { ... },
//	})
type Hooks struct {
	EnterTree      func(n *Node)
	Ready          func(n *Node)
	Process        func(n *Node, delta float64)
	PhysicsProcess func(n *Node, delta float64)
	ExitTree       func(n *Node)
	Notification   func(n *Node, what Notification)
}

func (h *Hooks) OnEnterTree(n *Node) {
	if h.EnterTree != nil {
		h.EnterTree(n)
	}
}

func (h *Hooks) OnReady(n *Node) {
	if h.Ready != nil {
		h.Ready(n)
	}
}

func (h *Hooks) OnProcess(n *Node, delta float64) {
	if h.Process != nil {
		h.Process(n, delta)
	}
}

func (h *Hooks) OnPhysicsProcess(n *Node, delta float64) {
	if h.PhysicsProcess != nil {
		h.PhysicsProcess(n, delta)
	}
}

func (h *Hooks) OnExitTree(n *Node) {
	if h.ExitTree != nil {
		h.ExitTree(n)
	}
}

func (h *Hooks) OnNotification(n *Node, what Notification) {
	if h.Notification != nil {
		h.Notification(n, what)
	}
}

// --- Dispatch ---

// guard runs fn, converting a panic into a logged HookError.
func (t *Tree) guard(n *Node, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.hookFailed(&HookError{Node: t.describe(n), Hook: hook, Value: r})
		}
	}()
	fn()
}

func (t *Tree) notify(n *Node, what Notification) {
	h, ok := n.Behavior.(NotificationHandler)
	if !ok {
		return
	}
	t.busy++
	defer func() { t.busy-- }()
	t.guard(n, "OnNotification("+what.String()+")", func() { h.OnNotification(n, what) })
}

func (t *Tree) callEnterTree(n *Node) {
	t.notify(n, NotificationEnterTree)
	if h, ok := n.Behavior.(EnterTreeHandler); ok {
		t.guard(n, "OnEnterTree", func() { h.OnEnterTree(n) })
	}
	t.emitBuiltin(n, SignalTreeEntered)
}

func (t *Tree) callReady(n *Node) {
	t.notify(n, NotificationReady)
	if h, ok := n.Behavior.(ReadyHandler); ok {
		t.guard(n, "OnReady", func() { h.OnReady(n) })
	}
	t.emitBuiltin(n, SignalReady)
}

func (t *Tree) callProcess(n *Node, delta float64) {
	t.notify(n, NotificationProcess)
	if h, ok := n.Behavior.(ProcessHandler); ok {
		t.guard(n, "OnProcess", func() { h.OnProcess(n, delta) })
	}
}

func (t *Tree) callPhysicsProcess(n *Node, delta float64) {
	t.notify(n, NotificationPhysicsProcess)
	if h, ok := n.Behavior.(PhysicsProcessHandler); ok {
		t.guard(n, "OnPhysicsProcess", func() { h.OnPhysicsProcess(n, delta) })
	}
}

func (t *Tree) callExitTree(n *Node) {
	t.notify(n, NotificationExitTree)
	if h, ok := n.Behavior.(ExitTreeHandler); ok {
		t.guard(n, "OnExitTree", func() { h.OnExitTree(n) })
	}
	t.emitBuiltin(n, SignalTreeExiting)
}

func (t *Tree) emitBuiltin(n *Node, name string) {
	sig, err := SignalOf[Handle](n, name)
	if err != nil {
		return
	}
	_ = sig.Emit(n.handle)
}
