package arbor

import (
	"time"

	"go.uber.org/zap"
)

// frameStats holds per-phase timings of one Advance. Only populated in
// debug mode.
type frameStats struct {
	apply   time.Duration
	timers  time.Duration
	ready   time.Duration
	process time.Duration
	physics time.Duration
	sync    time.Duration
	flush   time.Duration
	steps   int
}

func (s frameStats) total() time.Duration {
	return s.apply + s.timers + s.ready + s.process + s.physics + s.sync + s.flush
}

// debugLog logs the phase timings of the frame just completed.
func (t *Tree) debugLog(stats frameStats) {
	t.log.Debug("frame",
		zap.Uint64("frame", t.frame),
		zap.Duration("apply", stats.apply),
		zap.Duration("timers", stats.timers),
		zap.Duration("ready", stats.ready),
		zap.Duration("process", stats.process),
		zap.Duration("physics", stats.physics),
		zap.Int("steps", stats.steps),
		zap.Duration("sync", stats.sync),
		zap.Duration("flush", stats.flush),
		zap.Duration("total", stats.total()),
		zap.Int("nodes", t.Len()))
}

// SetDebugMode enables or disables debug mode. When enabled, tree depth
// and child count warnings are logged and per-frame timing stats are
// logged at debug level.
func (t *Tree) SetDebugMode(enabled bool) {
	t.debug = enabled
}

// DebugMode reports whether debug mode is on.
func (t *Tree) DebugMode() bool {
	return t.debug
}

const debugMaxTreeDepth = 32

// debugCheckTreeDepth warns if n sits deeper than debugMaxTreeDepth.
func (t *Tree) debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = t.get(p.parent) {
		depth++
	}
	if depth > debugMaxTreeDepth {
		t.log.Warn("tree depth exceeds threshold",
			zap.String("node", t.describe(n)),
			zap.Int("depth", depth),
			zap.Int("threshold", debugMaxTreeDepth))
	}
}

const debugMaxChildCount = 1000

// debugCheckChildCount warns if n has more than debugMaxChildCount children.
func (t *Tree) debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		t.log.Warn("child count exceeds threshold",
			zap.String("node", t.describe(n)),
			zap.Int("children", len(n.children)),
			zap.Int("threshold", debugMaxChildCount))
	}
}
