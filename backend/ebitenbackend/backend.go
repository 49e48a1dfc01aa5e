// Package ebitenbackend implements the arbor servers on top of Ebitengine:
// a window display, a wireframe rendering backend with collider debug
// drawing, and the game loop that advances a tree once per tick.
//
// The backend keeps the latest submitted state of every drawable and
// collider. Submissions happen from Tree.Advance inside the game's Update,
// and drawing reads the same state from Draw; a mutex guards it so a frame
// is never drawn half-applied.
//
// Usage:
//
//	b := ebitenbackend.New(ebitenbackend.Options{Title: "demo", Width: 1280, Height: 720})
//	engine, _ := arbor.NewEngine(arbor.Options{Backends: b.Backends(), Source: src})
//	b.SetMeshLookup(engine.Resources)
//	tree, _ := engine.LoadMainScene("scenes/main.scene")
//	err := ebitenbackend.Run(tree, b, ebitenbackend.RunConfig{TPS: 60, ShowFPS: true})
package ebitenbackend

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/phanxgames/arbor/resource"
	"github.com/phanxgames/arbor/server"
)

// Options configure a Backend.
type Options struct {
	Title         string
	Width, Height int
	Logger        *zap.Logger
}

// MeshLookup resolves a drawable's mesh path to cached geometry without
// taking a reference. *resource.Cache implements it.
type MeshLookup interface {
	Peek(path string) (*resource.Resource, bool)
}

// window is the slice of the Ebitengine window API the display uses.
type window interface {
	SetTitle(title string)
	SetSize(w, h int)
	SetCursorMode(m server.MouseMode)
	Size() (w, h int)
	Closing() bool
}

type ebitenWindow struct{}

func (ebitenWindow) SetTitle(title string) { ebiten.SetWindowTitle(title) }
func (ebitenWindow) SetSize(w, h int)      { ebiten.SetWindowSize(w, h) }
func (ebitenWindow) Size() (int, int)      { return ebiten.WindowSize() }
func (ebitenWindow) Closing() bool         { return ebiten.IsWindowBeingClosed() }

func (ebitenWindow) SetCursorMode(m server.MouseMode) {
	switch m {
	case server.MouseHidden:
		ebiten.SetCursorMode(ebiten.CursorModeHidden)
	case server.MouseCaptured:
		ebiten.SetCursorMode(ebiten.CursorModeCaptured)
	default:
		ebiten.SetCursorMode(ebiten.CursorModeVisible)
	}
}

// Backend implements server.RenderingBackend, server.PhysicsBackend and
// server.DisplayBackend.
type Backend struct {
	mu     sync.Mutex
	state  *server.Retained
	meshes MeshLookup
	edges  map[string][]edge // wireframe edges per mesh path
	win    window
	log    *zap.Logger
	closed bool
}

// New creates a backend for a window of the given size.
func New(opts Options) *Backend {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1280, 720
	}
	b := &Backend{
		state: server.NewRetained(opts.Width, opts.Height),
		edges: make(map[string][]edge),
		win:   ebitenWindow{},
		log:   log.Named("ebiten"),
	}
	b.state.Title = opts.Title
	return b
}

// Backends returns b plugged into every server slot.
func (b *Backend) Backends() server.Backends {
	return server.Backends{Rendering: b, Physics: b, Display: b}
}

// SetMeshLookup sets where mesh geometry is read from. Without one every
// drawable is drawn as its bounding marker only.
func (b *Backend) SetMeshLookup(m MeshLookup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meshes = m
	clear(b.edges)
}

// SubmitRender implements server.RenderingBackend.
func (b *Backend) SubmitRender(f *server.RenderFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range f.Drawables {
		b.cacheEdges(u.Value.Mesh)
	}
	return b.state.SubmitRender(f)
}

// cacheEdges extracts the wireframe of path the first time it is drawn.
// The edges outlive the cache entry so an evicted mesh still draws until
// its drawable is removed.
func (b *Backend) cacheEdges(path string) {
	if path == "" || b.meshes == nil {
		return
	}
	if _, ok := b.edges[path]; ok {
		return
	}
	res, ok := b.meshes.Peek(path)
	if !ok {
		return
	}
	m, ok := res.Payload().(*resource.Mesh)
	if !ok {
		b.log.Warn("drawable mesh is not a mesh", zap.String("path", path), zap.Stringer("kind", res.Kind()))
		return
	}
	b.edges[path] = meshEdges(m)
}

// SubmitPhysics implements server.PhysicsBackend.
func (b *Backend) SubmitPhysics(f *server.PhysicsFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.SubmitPhysics(f)
}

// Overlapping returns the enabled colliders whose bounds overlap id and
// whose layer is in id's mask.
func (b *Backend) Overlapping(id server.ColliderID) []server.ColliderID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Overlapping(id)
}

// ApplyDisplay implements server.DisplayBackend.
func (b *Backend) ApplyDisplay(c server.DisplayChanges) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.Title != nil {
		b.win.SetTitle(*c.Title)
	}
	if c.Size != nil {
		b.win.SetSize(c.Size[0], c.Size[1])
	}
	if c.MouseMode != nil {
		b.win.SetCursorMode(*c.MouseMode)
	}
	return b.state.ApplyDisplay(c)
}

// DisplaySize implements server.DisplayBackend.
func (b *Backend) DisplaySize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, h := b.win.Size(); w > 0 && h > 0 {
		return w, h
	}
	return b.state.DisplaySize()
}

// QuitRequested implements server.DisplayBackend. It is true once the
// window's close button was pressed or the backend was closed.
func (b *Backend) QuitRequested() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed || b.win.Closing()
}

// Close marks the backend closed; the game loop stops at its next tick.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Stats reports the number of retained drawables and colliders.
func (b *Backend) Stats() (drawables, colliders int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.state.Drawables), len(b.state.Colliders)
}
