package ebitenbackend

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// fpsOverlay displays the current FPS and TPS with the tree's node and
// server counts. The text is refreshed every ~0.5 seconds into an
// offscreen image that is composited on top of each frame.
type fpsOverlay struct {
	img        *ebiten.Image
	lastUpdate float64
}

func newFPSOverlay() *fpsOverlay {
	// 160x64 is enough for four short lines of debug text.
	return &fpsOverlay{img: ebiten.NewImage(160, 64), lastUpdate: 0.5}
}

func (o *fpsOverlay) update(dt float64, nodes, drawables, colliders int) {
	o.lastUpdate += dt
	if o.lastUpdate < 0.5 {
		return
	}
	o.lastUpdate = 0

	o.img.Clear()
	// Semi-transparent background for readability
	o.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(o.img, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nNodes: %d\nDraw: %d Phys: %d",
		ebiten.ActualFPS(), ebiten.ActualTPS(), nodes, drawables, colliders))
}

func (o *fpsOverlay) draw(screen *ebiten.Image) {
	screen.DrawImage(o.img, nil)
}
