package arbor

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// SignalEvent describes one emit. It is handed to the tree's EventSink
// before delivery.
type SignalEvent struct {
	Frame  uint64
	Owner  Handle
	Path   string
	Signal string
	Arg    any
}

// EventSink observes every signal emitted in a tree, for example to
// forward emissions into an ECS world.
type EventSink interface {
	SignalEmitted(e SignalEvent)
}

// signalChannel is the type-erased view of a Signal stored on a node.
type signalChannel interface {
	signalName() string
	close()
}

type disconnecter interface {
	disconnect(id uint64) bool
}

// Token identifies one subscription. Disconnecting through a token is
// safe at any time, including during an emit of the same signal and
// after the owner has been destroyed.
type Token struct {
	sig disconnecter
	id  uint64
}

// Disconnect removes the subscription. During an emit the removal takes
// effect from the next emit on. It reports whether the subscription was
// still connected.
func (tok Token) Disconnect() bool {
	if tok.sig == nil {
		return false
	}
	return tok.sig.disconnect(tok.id)
}

// IsZero reports whether the token refers to no subscription.
func (tok Token) IsZero() bool {
	return tok.sig == nil
}

type subscription[A any] struct {
	id         uint64
	subscriber Handle
	method     string
	fn         func(A) error
}

func (s subscription[A]) label() string {
	switch {
	case s.method != "" && !s.subscriber.IsNil():
		return fmt.Sprintf("%s.%s", s.subscriber, s.method)
	case s.method != "":
		return s.method
	default:
		return fmt.Sprintf("#%d", s.id)
	}
}

// Signal is a named, ordered publish/subscribe channel owned by a node.
// Handlers run synchronously on the emitting goroutine in connection
// order. A handler that returns an error or panics is isolated: delivery
// continues and the failure is reported by Emit.
type Signal[A any] struct {
	owner *Node
	name  string

	subs   []subscription[A]
	nextID uint64

	// Deferred removal. pending maps a subscription id to the sequence
	// number of the newest emit running when it was disconnected; emits
	// up to that number still deliver, later ones skip it. The list is
	// compacted when the outermost emit returns.
	emitting int
	emitSeq  uint64
	pending  map[uint64]uint64

	closed   bool
	failures uint64
}

// DefineSignal declares a signal on n and returns it. Defining an existing
// name returns the existing signal; redefining it with a different argument
// type panics.
func DefineSignal[A any](n *Node, name string) *Signal[A] {
	if ch, ok := n.signals[name]; ok {
		sig, ok := ch.(*Signal[A])
		if !ok {
			panic(fmt.Sprintf("arbor: signal %q redefined with a different argument type", name))
		}
		return sig
	}
	sig := &Signal[A]{owner: n, name: name}
	n.signals[name] = sig
	return sig
}

// SignalOf returns the signal called name on n.
func SignalOf[A any](n *Node, name string) (*Signal[A], error) {
	ch, ok := n.signals[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrNoSignal, name, n.name)
	}
	sig, ok := ch.(*Signal[A])
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrSignalType, name, n.name)
	}
	return sig, nil
}

// Signals returns the names of the signals defined on n, sorted.
func (n *Node) Signals() []string {
	out := make([]string, 0, len(n.signals))
	for name := range n.signals {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Connect subscribes to the signal named name on owner. See Signal.Connect.
func Connect[A any](t *Tree, owner Handle, name string, subscriber Handle, method string, fn func(A) error) (Token, error) {
	n := t.get(owner)
	if n == nil {
		return Token{}, structural("Connect", owner.String(), ReasonDestroyed, name)
	}
	sig, err := SignalOf[A](n, name)
	if err != nil {
		return Token{}, err
	}
	return sig.Connect(subscriber, method, fn), nil
}

// Emit emits the signal named name on owner. See Signal.Emit.
func Emit[A any](t *Tree, owner Handle, name string, arg A) error {
	n := t.get(owner)
	if n == nil {
		return structural("Emit", owner.String(), ReasonDestroyed, name)
	}
	sig, err := SignalOf[A](n, name)
	if err != nil {
		return err
	}
	return sig.Emit(arg)
}

// Disconnect removes the subscription identified by tok.
func (t *Tree) Disconnect(tok Token) bool {
	return tok.Disconnect()
}

// Name returns the signal name.
func (s *Signal[A]) Name() string { return s.name }

// Owner returns the owning node.
func (s *Signal[A]) Owner() *Node { return s.owner }

// Failures returns the number of handler failures recorded so far.
func (s *Signal[A]) Failures() uint64 { return s.failures }

// Len returns the number of connected subscriptions, excluding those
// waiting for deferred removal.
func (s *Signal[A]) Len() int {
	return len(s.subs) - len(s.pending)
}

// Connect appends a subscription. Connecting the same non-empty
// (subscriber, method) pair again returns the existing token. A
// subscription whose subscriber node is destroyed is dropped. Subscribing
// during an emit does not deliver that emit. Connecting to a closed signal
// returns the zero token.
func (s *Signal[A]) Connect(subscriber Handle, method string, fn func(A) error) Token {
	if s.closed || fn == nil {
		return Token{}
	}
	if method != "" {
		for _, sub := range s.subs {
			if sub.subscriber == subscriber && sub.method == method {
				delete(s.pending, sub.id)
				return Token{sig: s, id: sub.id}
			}
		}
	}
	s.nextID++
	s.subs = append(s.subs, subscription[A]{
		id:         s.nextID,
		subscriber: subscriber,
		method:     method,
		fn:         fn,
	})
	return Token{sig: s, id: s.nextID}
}

// ConnectFunc subscribes an anonymous handler that cannot fail.
func (s *Signal[A]) ConnectFunc(fn func(A)) Token {
	return s.Connect(Handle{}, "", func(a A) error {
		fn(a)
		return nil
	})
}

func (s *Signal[A]) disconnect(id uint64) bool {
	i := slices.IndexFunc(s.subs, func(sub subscription[A]) bool { return sub.id == id })
	if i < 0 {
		return false
	}
	if s.emitting > 0 {
		if _, already := s.pending[id]; already {
			return false
		}
		if s.pending == nil {
			s.pending = make(map[uint64]uint64)
		}
		s.pending[id] = s.emitSeq
		return true
	}
	s.subs = slices.Delete(s.subs, i, i+1)
	return true
}

// Emit delivers arg to every subscription in connection order. It returns
// an *EmitError listing the handlers that failed; the rest still ran.
// Emitting a signal whose owner was destroyed does nothing.
func (s *Signal[A]) Emit(arg A) error {
	if s.closed {
		return nil
	}
	t := s.owner.tree
	if t != nil && t.sink != nil {
		t.sink.SignalEmitted(SignalEvent{
			Frame:  t.frame,
			Owner:  s.owner.handle,
			Path:   t.describe(s.owner),
			Signal: s.name,
			Arg:    arg,
		})
	}

	s.emitSeq++
	seq := s.emitSeq
	s.emitting++
	if t != nil {
		t.busy++
	}

	var failures []error
	n := len(s.subs)
	for i := 0; i < n && !s.closed; i++ {
		sub := s.subs[i]
		if d, ok := s.pending[sub.id]; ok && seq > d {
			continue
		}
		if t != nil && !sub.subscriber.IsNil() && !t.Alive(sub.subscriber) {
			s.dropDead(sub.id)
			continue
		}
		if err := s.call(sub, arg); err != nil {
			failures = append(failures, err)
		}
	}

	if t != nil {
		t.busy--
	}
	s.emitting--
	if s.emitting == 0 {
		s.compact()
	}

	if len(failures) == 0 {
		return nil
	}
	s.failures += uint64(len(failures))
	err := &EmitError{Signal: s.name, Failures: failures}
	if t != nil {
		err.Owner = t.describe(s.owner)
		t.signalFailed(err)
	} else {
		err.Owner = s.owner.name
	}
	return err
}

func (s *Signal[A]) call(sub subscription[A], arg A) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", sub.label(), r)
		}
	}()
	if e := sub.fn(arg); e != nil {
		return fmt.Errorf("handler %s: %w", sub.label(), e)
	}
	return nil
}

func (s *Signal[A]) dropDead(id uint64) {
	if s.pending == nil {
		s.pending = make(map[uint64]uint64)
	}
	s.pending[id] = 0
}

func (s *Signal[A]) compact() {
	if len(s.pending) == 0 {
		return
	}
	s.subs = slices.DeleteFunc(s.subs, func(sub subscription[A]) bool {
		_, gone := s.pending[sub.id]
		return gone
	})
	clear(s.pending)
}

func (s *Signal[A]) signalName() string { return s.name }

func (s *Signal[A]) close() {
	s.closed = true
	s.subs = nil
	s.pending = nil
}

// --- Tree bookkeeping ---

// SetEventSink installs a sink observing every emit. Pass nil to remove it.
func (t *Tree) SetEventSink(sink EventSink) {
	t.sink = sink
}

func (t *Tree) signalFailed(err *EmitError) {
	t.stats.SignalFailures += uint64(len(err.Failures))
	for _, f := range err.Failures {
		t.log.Warn("signal handler failed",
			zap.String("node", err.Owner),
			zap.String("signal", err.Signal),
			zap.Error(f))
	}
}

func closeSignals(n *Node) {
	for _, ch := range n.signals {
		ch.close()
	}
}
