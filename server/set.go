package server

import (
	"errors"

	"go.uber.org/zap"
)

// Backends selects the implementation behind each server. Nil entries
// discard submissions.
type Backends struct {
	Rendering RenderingBackend
	Physics   PhysicsBackend
	Display   DisplayBackend
}

// Set bundles the three servers owned by an engine.
type Set struct {
	Rendering *Rendering
	Physics   *Physics
	Display   *Display
}

// NewSet builds a server for each backend.
func NewSet(b Backends, log *zap.Logger) *Set {
	return &Set{
		Rendering: NewRendering(b.Rendering, log),
		Physics:   NewPhysics(b.Physics, log),
		Display:   NewDisplay(b.Display, log),
	}
}

// Flush flushes every server, physics first, and joins their errors. A
// failing server does not stop the others from flushing.
func (s *Set) Flush() error {
	return errors.Join(
		s.Physics.Flush(),
		s.Rendering.Flush(),
		s.Display.Flush(),
	)
}
