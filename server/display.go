package server

import (
	"fmt"

	"go.uber.org/zap"
)

// MouseMode controls cursor visibility and capture.
type MouseMode uint8

const (
	MouseVisible MouseMode = iota
	MouseHidden
	MouseCaptured
)

func (m MouseMode) String() string {
	switch m {
	case MouseVisible:
		return "visible"
	case MouseHidden:
		return "hidden"
	case MouseCaptured:
		return "captured"
	default:
		return fmt.Sprintf("MouseMode(%d)", uint8(m))
	}
}

// DisplayChanges carries the window settings changed since the last flush.
// Nil fields are unchanged.
type DisplayChanges struct {
	Title     *string
	Size      *[2]int
	MouseMode *MouseMode
}

func (c DisplayChanges) empty() bool {
	return c.Title == nil && c.Size == nil && c.MouseMode == nil
}

// DisplayBackend owns the window.
type DisplayBackend interface {
	ApplyDisplay(c DisplayChanges) error
	DisplaySize() (w, h int)
	QuitRequested() bool
}

// Display buffers window settings for a DisplayBackend.
type Display struct {
	backend DisplayBackend
	log     *zap.Logger
	pending DisplayChanges
	size    [2]int
	quit    bool
}

// NewDisplay returns a server applying changes to backend. A nil backend
// keeps the requested settings locally, which is what headless runs use.
func NewDisplay(backend DisplayBackend, log *zap.Logger) *Display {
	if log == nil {
		log = zap.NewNop()
	}
	return &Display{backend: backend, log: log.Named("display")}
}

// SetTitle requests a window title.
func (d *Display) SetTitle(title string) {
	d.pending.Title = &title
}

// SetSize requests a window size in pixels.
func (d *Display) SetSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("set size %dx%d: %w", w, h, ErrInvalidSize)
	}
	d.pending.Size = &[2]int{w, h}
	return nil
}

// SetMouseMode requests a cursor mode.
func (d *Display) SetMouseMode(m MouseMode) {
	d.pending.MouseMode = &m
}

// Size returns the current window size. Without a backend it is the last
// flushed requested size.
func (d *Display) Size() (w, h int) {
	if d.backend != nil {
		return d.backend.DisplaySize()
	}
	return d.size[0], d.size[1]
}

// RequestQuit asks the frame loop to stop after the current frame.
func (d *Display) RequestQuit() {
	d.quit = true
}

// QuitRequested reports whether the window was closed or RequestQuit was
// called.
func (d *Display) QuitRequested() bool {
	if d.quit {
		return true
	}
	return d.backend != nil && d.backend.QuitRequested()
}

// Flush applies the pending changes.
func (d *Display) Flush() error {
	if d.pending.empty() {
		return nil
	}
	c := d.pending
	d.pending = DisplayChanges{}
	if c.Size != nil {
		d.size = *c.Size
	}
	if d.backend == nil {
		return nil
	}
	d.log.Debug("apply", zap.Bool("title", c.Title != nil), zap.Bool("size", c.Size != nil), zap.Bool("mouse", c.MouseMode != nil))
	if err := d.backend.ApplyDisplay(c); err != nil {
		return fmt.Errorf("display flush: %w", err)
	}
	return nil
}
