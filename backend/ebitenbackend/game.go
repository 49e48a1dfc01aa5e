package ebitenbackend

import (
	"errors"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/phanxgames/arbor"
)

// RunConfig configures Run.
type RunConfig struct {
	TPS           int    // ticks per second; 0 uses 60
	MaxFrames     uint64 // stop after this many frames; 0 runs until quit
	ShowFPS       bool
	ShowColliders bool
	Background    color.Color // nil uses a dark grey
	Resizable     bool
}

// Game adapts a tree to ebiten.Game. Each Update advances the tree by one
// tick; Draw renders the backend's retained state.
type Game struct {
	tree    *arbor.Tree
	backend *Backend
	cfg     RunConfig
	delta   float64
	frames  uint64
	fps     *fpsOverlay
	started bool // Update was called at least once
}

// NewGame wires tree to b. b must be the backend the tree's engine was
// created with.
func NewGame(tree *arbor.Tree, b *Backend, cfg RunConfig) *Game {
	if cfg.TPS <= 0 {
		cfg.TPS = 60
	}
	if cfg.Background == nil {
		cfg.Background = color.RGBA{0x19, 0x19, 0x23, 0xff}
	}
	g := &Game{tree: tree, backend: b, cfg: cfg, delta: 1 / float64(cfg.TPS)}
	if cfg.ShowFPS {
		g.fps = newFPSOverlay()
	}
	return g
}

// Update implements ebiten.Game. It returns ebiten.Termination once the
// window closes, the tree quits, or MaxFrames is reached, and the flush
// error if a frame fails.
func (g *Game) Update() error {
	g.started = true
	if g.backend.QuitRequested() {
		return ebiten.Termination
	}
	if err := g.tree.Advance(g.delta); err != nil {
		return err
	}
	g.frames++
	if g.fps != nil {
		d, c := g.backend.Stats()
		g.fps.update(g.delta, g.tree.Len(), d, c)
	}
	if g.tree.Engine().Servers.Display.QuitRequested() {
		g.tree.Engine().Log.Info("quit requested", zap.Uint64("frame", g.tree.Frame()))
		return ebiten.Termination
	}
	if g.cfg.MaxFrames > 0 && g.frames >= g.cfg.MaxFrames {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	g.backend.Draw(screen, DrawOptions{
		Background: g.cfg.Background,
		Colliders:  g.cfg.ShowColliders,
	})
	if g.fps != nil {
		g.fps.draw(screen)
	}
}

// Layout implements ebiten.Game. The logical screen follows the window.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// Run opens the window and drives tree until it quits. It blocks and must
// be called from the main goroutine. A window that cannot be opened is
// reported as *arbor.InitializationError.
func Run(tree *arbor.Tree, b *Backend, cfg RunConfig) error {
	g := NewGame(tree, b, cfg)
	b.mu.Lock()
	title, w, h := b.state.Title, b.state.Width, b.state.Height
	b.mu.Unlock()

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(w, h)
	if cfg.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	ebiten.SetTPS(g.cfg.TPS)
	ebiten.SetWindowClosingHandled(true)

	return g.result(ebiten.RunGame(g))
}

// result maps the error RunGame returned. A failure before the first tick
// means the window or graphics device could not be created.
func (g *Game) result(err error) error {
	switch {
	case err == nil, errors.Is(err, ebiten.Termination):
		return nil
	case !g.started:
		return &arbor.InitializationError{Stage: "display", Err: err}
	}
	return err
}
