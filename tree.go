package arbor

import (
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/phanxgames/arbor/server"
)

type slot struct {
	node *Node
	gen  uint32
}

// Stats are cumulative counters for diagnostics.
type Stats struct {
	Frame               uint64
	Nodes               int
	Queued              int
	HookFailures        uint64
	SignalFailures      uint64
	LastPhysicsSteps    int
	DroppedPhysicsSteps uint64
}

// Tree owns every node of one scene and drives the per-frame lifecycle
// pass. It is single-threaded: all methods must be called from the
// goroutine running Advance.
type Tree struct {
	engine *Engine
	log    *zap.Logger
	tracer trace.Tracer

	// Arena
	slots []slot
	free  []uint32
	root  Handle

	// Deferral. busy is raised while hooks run; structural mutations made
	// while it is non-zero are queued and applied at the next Advance.
	busy     int
	queue    []mutation
	spare    []mutation
	deferred []func()
	ready    []Handle

	timers    []*Timer
	autostart []*Timer // started when their owner becomes ready
	tweens    []*Tween

	paused    bool
	fixedStep int64 // nanoseconds
	remainder int64 // nanoseconds
	maxSteps  int
	frame     uint64
	closed    bool
	debug     bool

	sink   EventSink
	script *Script
	stats  Stats

	lastCamera server.Camera
	cameraSent bool

	pathBuf []*Node
}

// NewTree creates a tree around root and links it in: root and its staged
// children receive enter_tree immediately and ready at the first Advance.
func NewTree(engine *Engine, root *Node) (*Tree, error) {
	if engine == nil {
		return nil, &InitializationError{Stage: "tree", Err: errors.New("nil engine")}
	}
	if root == nil {
		return nil, &InitializationError{Stage: "tree", Err: errors.New("nil root node")}
	}
	if root.tree != nil || root.state != StateCreated || root.stagedIn != nil {
		return nil, structural("NewTree", root.name, ReasonAttached, "")
	}
	if err := validName(root.name); err != nil {
		return nil, structural("NewTree", root.name, ReasonInvalidName, err.Error())
	}
	t := &Tree{
		engine:    engine,
		log:       engine.Log.Named("tree"),
		tracer:    engine.Tracer,
		fixedStep: engine.fixedStep,
		maxSteps:  engine.maxSteps,
		debug:     engine.debug,
	}
	t.root = t.link(nil, root, Handle{})
	t.enter(root)
	return t, nil
}

// Engine returns the engine the tree was created with.
func (t *Tree) Engine() *Engine {
	return t.engine
}

// --- Arena ---

func (t *Tree) alloc(n *Node) Handle {
	var idx uint32
	if k := len(t.free); k > 0 {
		idx = t.free[k-1]
		t.free = t.free[:k-1]
	} else {
		t.slots = append(t.slots, slot{gen: 1})
		idx = uint32(len(t.slots) - 1)
	}
	s := &t.slots[idx]
	s.node = n
	h := Handle{index: idx, gen: s.gen}
	n.tree = t
	n.handle = h
	return h
}

func (t *Tree) release(h Handle) {
	s := &t.slots[h.index]
	s.node = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	t.free = append(t.free, h.index)
}

func (t *Tree) get(h Handle) *Node {
	if h.gen == 0 || int(h.index) >= len(t.slots) {
		return nil
	}
	s := &t.slots[h.index]
	if s.gen != h.gen {
		return nil
	}
	return s.node
}

// --- Queries ---

// Root returns the root handle.
func (t *Tree) Root() Handle {
	return t.root
}

// RootNode returns the root node.
func (t *Tree) RootNode() *Node {
	return t.get(t.root)
}

// Node returns the node for h, or nil when h is stale.
func (t *Tree) Node(h Handle) *Node {
	return t.get(h)
}

// Alive reports whether h refers to a live node, including nodes whose
// addition is still queued.
func (t *Tree) Alive(h Handle) bool {
	return t.get(h) != nil
}

// Parent returns the parent of h, or the nil handle.
func (t *Tree) Parent(h Handle) Handle {
	if n := t.get(h); n != nil {
		return n.parent
	}
	return Handle{}
}

// Children returns a copy of the child handles of h.
func (t *Tree) Children(h Handle) []Handle {
	n := t.get(h)
	if n == nil {
		return nil
	}
	out := make([]Handle, len(n.children))
	copy(out, n.children)
	return out
}

// Walk visits the linked nodes in pre-order. Returning false from fn skips
// the node's descendants.
func (t *Tree) Walk(fn func(n *Node) bool) {
	if r := t.get(t.root); r != nil {
		t.walk(r, fn)
	}
}

func (t *Tree) walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, ch := range n.children {
		if c := t.get(ch); c != nil {
			t.walk(c, fn)
		}
	}
}

// Len returns the number of live nodes, including queued additions.
func (t *Tree) Len() int {
	return len(t.slots) - len(t.free)
}

// Frame returns the number of completed Advance calls.
func (t *Tree) Frame() uint64 {
	return t.frame
}

// PhysicsRemainder returns the simulated time, in seconds, carried to the
// next frame by the fixed-step accumulator.
func (t *Tree) PhysicsRemainder() float64 {
	return float64(t.remainder) / 1e9
}

// FixedStep returns the physics step in seconds.
func (t *Tree) FixedStep() float64 {
	return float64(t.fixedStep) / 1e9
}

// LastPhysicsSteps returns the number of physics steps run by the last
// Advance.
func (t *Tree) LastPhysicsSteps() int {
	return t.stats.LastPhysicsSteps
}

// Stats returns the tree's counters.
func (t *Tree) Stats() Stats {
	s := t.stats
	s.Frame = t.frame
	s.Nodes = t.Len()
	s.Queued = len(t.queue)
	return s
}

// InPass reports whether a frame pass or hook is running.
func (t *Tree) InPass() bool {
	return t.busy > 0
}

// Quit asks the frame loop to stop after the current frame.
func (t *Tree) Quit() {
	t.engine.Servers.Display.RequestQuit()
}

// --- Frame pass ---

// Advance runs one frame:
//
//  1. apply structural mutations queued since the last frame
//  2. fire due timers and drain CallDeferred callbacks
//  3. deliver ready to nodes that entered the tree, parent first
//  4. deliver process(delta) in tree order
//  5. run fixed physics steps, delivering physics_process(step) each
//  6. advance tweens and push component state into the servers
//  7. flush the servers
//
// Hook and handler failures are logged and counted, never returned. The
// returned error is the server flush error.
func (t *Tree) Advance(delta float64) error {
	if t.busy > 0 {
		return ErrInPass
	}
	if t.closed {
		return ErrTreeClosed
	}
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		t.log.Debug("invalid delta clamped to zero", zap.Float64("delta", delta))
		delta = 0
	}
	t.frame++
	ctx, span := t.tracer.Start(context.Background(), "arbor.Advance",
		trace.WithAttributes(
			attribute.Int64("arbor.frame", int64(t.frame)),
			attribute.Float64("arbor.delta", delta)))
	defer span.End()

	var stats frameStats
	mark := t.stopwatch()

	if t.script != nil {
		t.script.step(t)
	}

	t.applyQueued()
	stats.apply = mark()

	t.runTimers(delta)
	t.drainDeferred()
	stats.timers = mark()

	t.deliverReady()
	stats.ready = mark()

	t.engine.Resources.SetFrameActive(true)
	t.processPass(delta)
	t.engine.Resources.SetFrameActive(false)
	stats.process = mark()

	t.accumulate(delta)
	stats.steps = t.physicsPass()
	stats.physics = mark()

	t.updateTweens(delta)
	t.syncComponents()
	stats.sync = mark()

	_, flushSpan := t.tracer.Start(ctx, "arbor.Flush")
	err := t.engine.Servers.Flush()
	flushSpan.End()
	stats.flush = mark()

	span.SetAttributes(attribute.Int("arbor.physics_steps", stats.steps))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "server flush failed")
		t.log.Error("server flush failed", zap.Uint64("frame", t.frame), zap.Error(err))
	}
	if t.debug {
		t.debugLog(stats)
	}
	return err
}

// stopwatch returns a func reporting the time since its previous call.
// It costs nothing unless debug mode is on.
func (t *Tree) stopwatch() func() time.Duration {
	if !t.debug {
		return func() time.Duration { return 0 }
	}
	last := time.Now()
	return func() time.Duration {
		now := time.Now()
		d := now.Sub(last)
		last = now
		return d
	}
}

func (t *Tree) deliverReady() {
	if len(t.ready) == 0 {
		return
	}
	batch := t.ready
	t.ready = nil
	t.busy++
	defer func() { t.busy-- }()
	for _, h := range batch {
		n := t.get(h)
		if n == nil || n.state != StateEnteredTree {
			continue
		}
		n.state = StateActive
		t.callReady(n)
		t.startPending(h)
	}
}

func (t *Tree) processPass(delta float64) {
	root := t.get(t.root)
	if root == nil {
		return
	}
	t.busy++
	defer func() { t.busy-- }()
	t.eachProcessing(root, ProcessPausable, func(n *Node) { t.callProcess(n, delta) })
}

// physicsPass runs whole fixed steps out of the accumulated time. Delta is
// converted to integer nanoseconds so the remainder carries exactly.
func (t *Tree) physicsPass() int {
	steps := 0
	root := t.get(t.root)
	step := float64(t.fixedStep) / 1e9
	t.busy++
	defer func() { t.busy-- }()
	for t.remainder >= t.fixedStep {
		if t.maxSteps > 0 && steps == t.maxSteps {
			dropped := t.remainder / t.fixedStep
			t.remainder -= dropped * t.fixedStep
			t.stats.DroppedPhysicsSteps += uint64(dropped)
			t.log.Debug("physics steps dropped",
				zap.Uint64("frame", t.frame),
				zap.Int64("dropped", dropped))
			break
		}
		t.remainder -= t.fixedStep
		steps++
		if root != nil {
			t.eachProcessing(root, ProcessPausable, func(n *Node) { t.callPhysicsProcess(n, step) })
		}
	}
	t.stats.LastPhysicsSteps = steps
	return steps
}

// accumulate adds delta to the physics remainder.
func (t *Tree) accumulate(delta float64) {
	t.remainder += int64(math.Round(delta * 1e9))
}

// eachProcessing calls fn on every active node allowed to process, in
// pre-order. inherited is the effective mode of n's parent.
func (t *Tree) eachProcessing(n *Node, inherited ProcessMode, fn func(*Node)) {
	mode := n.mode
	if mode == ProcessInherit {
		mode = inherited
	}
	if n.state == StateActive && mode.active(t.paused) {
		fn(n)
	}
	for _, ch := range n.children {
		if c := t.get(ch); c != nil {
			t.eachProcessing(c, mode, fn)
		}
	}
}

// effectiveMode resolves Inherit up the ancestor chain.
func (t *Tree) effectiveMode(n *Node) ProcessMode {
	for p := n; p != nil; p = t.get(p.parent) {
		if p.mode != ProcessInherit {
			return p.mode
		}
	}
	return ProcessPausable
}

// CanProcess reports whether h would receive process callbacks in the
// current pause state.
func (t *Tree) CanProcess(h Handle) bool {
	n := t.get(h)
	if n == nil || n.state != StateActive {
		return false
	}
	return t.effectiveMode(n).active(t.paused)
}

// --- Pause ---

// Paused reports whether the tree is paused.
func (t *Tree) Paused() bool {
	return t.paused
}

// SetPaused pauses or resumes the tree. Nodes whose effective mode is
// Pausable receive NotificationPaused or NotificationUnpaused.
func (t *Tree) SetPaused(paused bool) {
	if t.paused == paused {
		return
	}
	t.paused = paused
	what := NotificationUnpaused
	if paused {
		what = NotificationPaused
	}
	root := t.get(t.root)
	if root == nil {
		return
	}
	t.busy++
	defer func() { t.busy-- }()
	var visit func(n *Node, inherited ProcessMode)
	visit = func(n *Node, inherited ProcessMode) {
		mode := n.mode
		if mode == ProcessInherit {
			mode = inherited
		}
		if mode == ProcessPausable && n.state.inTree() {
			t.notify(n, what)
		}
		for _, ch := range n.children {
			if c := t.get(ch); c != nil {
				visit(c, mode)
			}
		}
	}
	visit(root, ProcessPausable)
}

// --- Deferred calls ---

// CallDeferred queues fn to run at the start of the next Advance, before
// ready and process. Calls queued while draining wait for the following
// frame.
func (t *Tree) CallDeferred(fn func()) {
	if fn != nil {
		t.deferred = append(t.deferred, fn)
	}
}

func (t *Tree) drainDeferred() {
	if len(t.deferred) == 0 {
		return
	}
	batch := t.deferred
	t.deferred = nil
	t.busy++
	defer func() { t.busy-- }()
	for _, fn := range batch {
		t.guard(nil, "CallDeferred", fn)
	}
}

// --- Failure accounting ---

func (t *Tree) hookFailed(err *HookError) {
	t.stats.HookFailures++
	t.log.Warn("hook failed",
		zap.String("node", err.Node),
		zap.String("hook", err.Hook),
		zap.Any("panic", err.Value),
		zap.Uint64("frame", t.frame))
}

// describe names n for logs and errors: its path when linked, otherwise
// its name.
func (t *Tree) describe(n *Node) string {
	if n == nil {
		return "<tree>"
	}
	if n.tree == t && n.state.inTree() {
		return t.pathOf(n)
	}
	return n.name
}

// Close removes the whole tree, delivering exit notifications, and flushes
// the resulting server removals. The tree cannot be advanced afterwards.
func (t *Tree) Close() error {
	if t.closed {
		return nil
	}
	if t.busy > 0 {
		return ErrInPass
	}
	t.queue = nil
	if root := t.get(t.root); root != nil {
		t.destroy(root)
	}
	t.closed = true
	t.timers = nil
	t.autostart = nil
	t.tweens = nil
	t.deferred = nil
	return t.engine.Servers.Flush()
}
