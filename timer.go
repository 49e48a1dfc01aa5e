package arbor

import (
	"math"
	"slices"
)

// SignalTimeout is the name of a timer's signal.
const SignalTimeout = "timeout"

// Timer counts down while its owner processes and emits Timeout when it
// reaches zero. Timers tick at the start of Advance, before ready and
// process, and follow the owner's process mode: a Pausable owner's timer
// stops while the tree is paused. A timer dies with its owner.
type Timer struct {
	// Timeout is emitted with the timer as argument each time it fires.
	Timeout *Signal[*Timer]

	tree    *Tree
	owner   Handle
	wait    float64
	left    float64
	oneShot bool
	running bool
}

// NewTimer creates a stopped timer owned by owner that fires every wait
// seconds, or once when oneShot is set.
func (t *Tree) NewTimer(owner Handle, wait float64, oneShot bool) (*Timer, error) {
	n := t.get(owner)
	if n == nil {
		return nil, structural("NewTimer", owner.String(), ReasonDestroyed, "")
	}
	if !(wait > 0) || math.IsInf(wait, 0) {
		return nil, ErrInvalidTimer
	}
	return &Timer{
		Timeout: &Signal[*Timer]{owner: n, name: SignalTimeout},
		tree:    t,
		owner:   owner,
		wait:    wait,
		oneShot: oneShot,
	}, nil
}

// Start (re)starts the countdown from the full wait time.
func (tm *Timer) Start() {
	if tm.Timeout.closed {
		return
	}
	tm.left = tm.wait
	tm.running = true
	if !slices.Contains(tm.tree.timers, tm) {
		tm.tree.timers = append(tm.tree.timers, tm)
	}
}

// Stop halts the timer without firing.
func (tm *Timer) Stop() {
	if !tm.running {
		return
	}
	tm.running = false
	tm.tree.timers = slices.DeleteFunc(tm.tree.timers, func(o *Timer) bool { return o == tm })
}

// SetAutostart starts the timer once its owner becomes ready. When the
// owner is already active the timer starts immediately.
func (tm *Timer) SetAutostart(on bool) {
	t := tm.tree
	t.autostart = slices.DeleteFunc(t.autostart, func(o *Timer) bool { return o == tm })
	if !on {
		return
	}
	n := t.get(tm.owner)
	switch {
	case n == nil:
	case n.state == StateActive:
		tm.Start()
	default:
		t.autostart = append(t.autostart, tm)
	}
}

// startPending starts the autostart timers owned by h and drops those
// whose owner is gone.
func (t *Tree) startPending(h Handle) {
	if len(t.autostart) == 0 {
		return
	}
	t.autostart = slices.DeleteFunc(t.autostart, func(tm *Timer) bool {
		switch {
		case t.get(tm.owner) == nil:
			return true
		case tm.owner != h:
			return false
		}
		tm.Start()
		return true
	})
}

// Running reports whether the timer is counting down.
func (tm *Timer) Running() bool {
	return tm.running
}

// TimeLeft returns the seconds until the next timeout, or 0 when stopped.
func (tm *Timer) TimeLeft() float64 {
	if !tm.running {
		return 0
	}
	return tm.left
}

// Wait returns the configured wait time.
func (tm *Timer) Wait() float64 {
	return tm.wait
}

// SetWait changes the wait time used by the next Start or repeat.
func (tm *Timer) SetWait(wait float64) error {
	if !(wait > 0) || math.IsInf(wait, 0) {
		return ErrInvalidTimer
	}
	tm.wait = wait
	return nil
}

// Owner returns the handle of the owning node.
func (tm *Timer) Owner() Handle {
	return tm.owner
}

// runTimers counts every running timer down by delta. A timer fires at
// most once per frame; the overshoot carries into the next period.
func (t *Tree) runTimers(delta float64) {
	if len(t.timers) == 0 {
		return
	}
	t.busy++
	defer func() { t.busy-- }()

	batch := slices.Clone(t.timers)
	for _, tm := range batch {
		if !tm.running {
			continue
		}
		n := t.get(tm.owner)
		if n == nil {
			tm.running = false
			tm.Timeout.close()
			continue
		}
		if !n.state.inTree() || !t.effectiveMode(n).active(t.paused) {
			continue
		}
		tm.left -= delta
		if tm.left > 0 {
			continue
		}
		if tm.oneShot {
			tm.running = false
			tm.left = 0
		} else {
			tm.left = max(tm.left+tm.wait, 0)
		}
		_ = tm.Timeout.Emit(tm)
	}
	t.timers = slices.DeleteFunc(t.timers, func(tm *Timer) bool { return !tm.running })
}
