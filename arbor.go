package arbor

import (
	"fmt"

	"github.com/phanxgames/arbor/server"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color = server.Color

// ColorWhite is the default tint (no color modification).
var ColorWhite = server.ColorWhite

// Handle is a stable reference to a node slot in a tree's arena. The zero
// value refers to no node. A handle outlives its node: once the node is
// destroyed the slot's generation moves on and the handle reports stale.
type Handle struct {
	index uint32
	gen   uint32
}

// IsNil reports whether h is the zero handle.
func (h Handle) IsNil() bool {
	return h.gen == 0
}

func (h Handle) String() string {
	if h.IsNil() {
		return "Handle(nil)"
	}
	return fmt.Sprintf("Handle(%d:%d)", h.index, h.gen)
}

// State is a node's lifecycle state. States only move forward.
type State uint8

const (
	StateCreated     State = iota // constructed, not yet in a tree
	StateEnteredTree              // linked into the tree, ready pending
	StateActive                   // ready delivered, receives process callbacks
	StateExitingTree              // exit notifications in progress
	StateDestroyed                // terminal; the handle is stale
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateEnteredTree:
		return "entered_tree"
	case StateActive:
		return "active"
	case StateExitingTree:
		return "exiting_tree"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// inTree reports whether nodes in state s are linked into the tree.
func (s State) inTree() bool {
	return s == StateEnteredTree || s == StateActive
}

// Notification is an engine lifecycle event delivered through
// NotificationHandler before the matching hook runs.
type Notification uint8

const (
	NotificationEnterTree        Notification = iota // node linked into the tree
	NotificationReady                                // first frame after entering
	NotificationProcess                              // once per frame
	NotificationPhysicsProcess                       // once per fixed step
	NotificationExitTree                             // node leaving the tree
	NotificationPaused                               // tree paused and the node stops processing
	NotificationUnpaused                             // tree unpaused and the node resumes
	NotificationTransformChanged                     // world transform invalidated (opt-in)
	NotificationReparented                           // node moved under a new parent
	NotificationPredelete                            // node about to be destroyed
)

func (w Notification) String() string {
	switch w {
	case NotificationEnterTree:
		return "enter_tree"
	case NotificationReady:
		return "ready"
	case NotificationProcess:
		return "process"
	case NotificationPhysicsProcess:
		return "physics_process"
	case NotificationExitTree:
		return "exit_tree"
	case NotificationPaused:
		return "paused"
	case NotificationUnpaused:
		return "unpaused"
	case NotificationTransformChanged:
		return "transform_changed"
	case NotificationReparented:
		return "reparented"
	case NotificationPredelete:
		return "predelete"
	default:
		return fmt.Sprintf("Notification(%d)", uint8(w))
	}
}

// ProcessMode controls whether a node processes while the tree is paused.
type ProcessMode uint8

const (
	ProcessInherit    ProcessMode = iota // use the parent's mode; the root resolves to Pausable
	ProcessPausable                      // process only while unpaused
	ProcessWhenPaused                    // process only while paused
	ProcessAlways                        // process regardless of pause
	ProcessDisabled                      // never process
)

func (m ProcessMode) String() string {
	switch m {
	case ProcessInherit:
		return "inherit"
	case ProcessPausable:
		return "pausable"
	case ProcessWhenPaused:
		return "when_paused"
	case ProcessAlways:
		return "always"
	case ProcessDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("ProcessMode(%d)", uint8(m))
	}
}

// ParseProcessMode converts the scene-file spelling of a mode. The empty
// string is Inherit.
func ParseProcessMode(s string) (ProcessMode, error) {
	switch s {
	case "", "inherit":
		return ProcessInherit, nil
	case "pausable":
		return ProcessPausable, nil
	case "when_paused":
		return ProcessWhenPaused, nil
	case "always":
		return ProcessAlways, nil
	case "disabled":
		return ProcessDisabled, nil
	}
	return ProcessInherit, fmt.Errorf("arbor: unknown process mode %q", s)
}

// active reports whether a node with effective mode m runs while the tree's
// pause flag is paused.
func (m ProcessMode) active(paused bool) bool {
	switch m {
	case ProcessPausable:
		return !paused
	case ProcessWhenPaused:
		return paused
	case ProcessAlways:
		return true
	default:
		return false
	}
}
