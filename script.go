package arbor

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// scriptStep is a single action in a script.
type scriptStep struct {
	Action string     `json:"action"`
	Path   string     `json:"path,omitempty"`
	To     string     `json:"to,omitempty"`
	Pos    [3]float64 `json:"position,omitempty"`
	Frames int        `json:"frames,omitempty"`
}

type scriptFile struct {
	Steps []scriptStep `json:"steps"`
}

var scriptActions = map[string]bool{
	"wait": true, "pause": true, "unpause": true, "remove": true,
	"move": true, "reparent": true, "dump": true, "quit": true,
}

// Script sequences tree operations across frames for automated runs and
// smoke tests. Attach one with Tree.SetScript; it executes at most one step
// per Advance, before queued mutations are applied.
//
//	{"steps": [
//	  {"action": "wait", "frames": 30},
//	  {"action": "move", "path": "/root/Player", "position": [0, 0, 5]},
//	  {"action": "remove", "path": "/root/Crate"},
//	  {"action": "quit"}
//	]}
type Script struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
	failures  int
}

// LoadScript parses a JSON script.
func LoadScript(data []byte) (*Script, error) {
	var f scriptFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("parse script: no steps")
	}
	for i, st := range f.Steps {
		if !scriptActions[st.Action] {
			return nil, fmt.Errorf("parse script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &Script{steps: f.Steps}, nil
}

// SetScript attaches s to the tree. Pass nil to detach.
func (t *Tree) SetScript(s *Script) {
	t.script = s
}

// Done reports whether every step has been executed.
func (s *Script) Done() bool {
	return s.done
}

// Failures returns the number of steps whose target could not be resolved
// or whose operation failed.
func (s *Script) Failures() int {
	return s.failures
}

func (s *Script) step(t *Tree) {
	if s.done {
		return
	}
	if s.waitCount > 0 {
		s.waitCount--
		s.done = s.waitCount == 0 && s.cursor >= len(s.steps)
		return
	}
	if s.cursor >= len(s.steps) {
		s.done = true
		return
	}
	st := s.steps[s.cursor]
	s.cursor++

	if err := s.run(t, st); err != nil {
		s.failures++
		t.log.Warn("script step failed",
			zap.Int("step", s.cursor-1),
			zap.String("action", st.Action),
			zap.Error(err))
	}
	if s.cursor >= len(s.steps) && s.waitCount == 0 {
		s.done = true
	}
}

func (s *Script) run(t *Tree, st scriptStep) error {
	switch st.Action {
	case "wait":
		if st.Frames > 0 {
			s.waitCount = st.Frames - 1 // this frame counts as one
		}
	case "pause":
		t.SetPaused(true)
	case "unpause":
		t.SetPaused(false)
	case "quit":
		t.Quit()
	case "dump":
		t.log.Info("tree dump", zap.Uint64("frame", t.frame), zap.String("tree", t.Dump()))
	case "remove":
		h, err := s.find(t, st.Path)
		if err != nil {
			return err
		}
		return t.QueueRemove(h)
	case "move":
		h, err := s.find(t, st.Path)
		if err != nil {
			return err
		}
		t.get(h).SetPosition(mgl64.Vec3(st.Pos))
	case "reparent":
		h, err := s.find(t, st.Path)
		if err != nil {
			return err
		}
		to, err := s.find(t, st.To)
		if err != nil {
			return err
		}
		return t.Reparent(h, to)
	}
	return nil
}

func (s *Script) find(t *Tree, path string) (Handle, error) {
	h, ok := t.Find(path)
	if !ok {
		return Handle{}, fmt.Errorf("no node at %q", path)
	}
	return h, nil
}
