package arbor

import (
	"errors"
	"fmt"
	"strings"
)

// Reason classifies a StructuralError.
type Reason uint8

const (
	ReasonCycle         Reason = iota + 1 // new parent is the node itself or a descendant
	ReasonDuplicateName                   // a sibling already has the name
	ReasonDestroyed                       // handle is stale or the node is leaving the tree
	ReasonDetached                        // operation needs a node that is in a tree
	ReasonAttached                        // node already belongs to a tree
	ReasonRoot                            // operation not allowed on the root
	ReasonNotChild                        // node is not a child of the given parent
	ReasonInvalidName                     // empty name or one containing '/'
)

// Sentinels matched by errors.Is against a *StructuralError of the same
// reason.
var (
	ErrCycle         = errors.New("would create a cycle")
	ErrDuplicateName = errors.New("duplicate sibling name")
	ErrDestroyed     = errors.New("node destroyed")
	ErrDetached      = errors.New("node not in a tree")
	ErrAttached      = errors.New("node already in a tree")
	ErrRoot          = errors.New("not allowed on the root")
	ErrNotChild      = errors.New("not a child")
	ErrInvalidName   = errors.New("invalid node name")
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonCycle:
		return ErrCycle
	case ReasonDuplicateName:
		return ErrDuplicateName
	case ReasonDestroyed:
		return ErrDestroyed
	case ReasonDetached:
		return ErrDetached
	case ReasonAttached:
		return ErrAttached
	case ReasonRoot:
		return ErrRoot
	case ReasonNotChild:
		return ErrNotChild
	case ReasonInvalidName:
		return ErrInvalidName
	}
	return nil
}

func (r Reason) String() string {
	if err := r.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// StructuralError reports misuse of the tree contract. It is returned
// immediately and the tree is left unchanged.
type StructuralError struct {
	Op     string // AddChild, RemoveChild, Reparent, ...
	Node   string // path or name of the node operated on
	Reason Reason
	Detail string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString("arbor: ")
	b.WriteString(e.Op)
	if e.Node != "" {
		b.WriteByte(' ')
		b.WriteString(e.Node)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the sentinel for the reason.
func (e *StructuralError) Unwrap() error {
	return e.Reason.sentinel()
}

func structural(op, node string, reason Reason, detail string) *StructuralError {
	return &StructuralError{Op: op, Node: node, Reason: reason, Detail: detail}
}

// InitializationError is a fatal bootstrap failure: a backend could not be
// created, the configuration is invalid, or the root scene is missing.
type InitializationError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *InitializationError) Error() string {
	return fmt.Sprintf("arbor: init %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InitializationError) Unwrap() error {
	return e.Err
}

// HookError records a lifecycle hook or notification handler that
// panicked. Hook failures never abort the frame.
type HookError struct {
	Node  string
	Hook  string
	Value any // recovered panic value
}

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("arbor: %s on %s panicked: %v", e.Hook, e.Node, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *HookError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// EmitError aggregates the handler failures of one emit. Delivery to the
// remaining subscribers continued past each failure.
type EmitError struct {
	Owner    string
	Signal   string
	Failures []error
}

// Error implements the error interface.
func (e *EmitError) Error() string {
	return fmt.Sprintf("arbor: signal %q on %s: %d handler(s) failed: %v",
		e.Signal, e.Owner, len(e.Failures), errors.Join(e.Failures...))
}

// Unwrap returns the individual handler failures.
func (e *EmitError) Unwrap() []error {
	return e.Failures
}

// Signal lookup failures.
var (
	ErrNoSignal     = errors.New("arbor: no such signal")
	ErrSignalType   = errors.New("arbor: signal argument type mismatch")
	ErrInPass       = errors.New("arbor: Advance called from inside a frame pass")
	ErrTreeClosed   = errors.New("arbor: tree closed")
	ErrInvalidTimer = errors.New("arbor: timer wait must be positive")
)
