package arbor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunOptions configure RunHeadless.
type RunOptions struct {
	// MaxFrames stops the loop after that many frames; 0 runs until quit
	// or cancellation.
	MaxFrames uint64

	// Delta fixes the delta passed to every Advance. When 0 the measured
	// wall-clock time since the previous frame is used.
	Delta float64

	// MaxDelta clamps measured deltas, e.g. after a debugger pause. 0
	// disables clamping.
	MaxDelta float64

	// TPS paces the loop to that many frames per second. 0 runs frames
	// back to back.
	TPS int
}

// RunHeadless drives t without a window until ctx is done, the display
// reports a quit request, an attached script finishes, or MaxFrames is
// reached. The first flush error stops the loop and is returned.
func RunHeadless(ctx context.Context, t *Tree, opts RunOptions) error {
	var tick <-chan time.Time
	if opts.TPS > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(opts.TPS))
		defer ticker.Stop()
		tick = ticker.C
	}
	display := t.engine.Servers.Display
	last := time.Now()
	for frames := uint64(0); opts.MaxFrames == 0 || frames < opts.MaxFrames; frames++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		now := time.Now()
		delta := opts.Delta
		if delta == 0 {
			delta = now.Sub(last).Seconds()
			if opts.MaxDelta > 0 && delta > opts.MaxDelta {
				delta = opts.MaxDelta
			}
		}
		last = now

		if err := t.Advance(delta); err != nil {
			return err
		}
		if display.QuitRequested() {
			t.log.Info("quit requested", zap.Uint64("frame", t.frame))
			return nil
		}
		if t.script != nil && t.script.Done() {
			t.log.Info("script finished",
				zap.Uint64("frame", t.frame),
				zap.Int("failures", t.script.Failures()))
			return nil
		}
	}
	return nil
}
