package ebitenbackend

import (
	"cmp"
	"image/color"
	"maps"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/phanxgames/arbor/server"
)

// DrawOptions control what Draw renders.
type DrawOptions struct {
	Background color.Color // nil leaves the screen as is
	Colliders  bool        // outline every collider, colored by body kind
	LineWidth  float32     // 0 draws 1 pixel lines
}

// Collider outline colors by body kind.
var colliderColors = map[server.BodyKind]color.RGBA{
	server.BodyStatic:    {0x60, 0x60, 0x60, 0xff},
	server.BodyKinematic: {0x40, 0xa0, 0xff, 0xff},
	server.BodyRigid:     {0xff, 0xa0, 0x20, 0xff},
	server.BodyArea:      {0x40, 0xff, 0x80, 0xff},
}

var disabledColor = color.RGBA{0x60, 0x20, 0x20, 0xff}

// Draw renders the retained state onto screen: every visible drawable as a
// wireframe in its color, then optionally the collider outlines. Drawables
// are drawn in layer order, then by id.
func (b *Backend) Draw(screen *ebiten.Image, opts DrawOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if opts.Background != nil {
		screen.Fill(opts.Background)
	}
	width := opts.LineWidth
	if width <= 0 {
		width = 1
	}
	bounds := screen.Bounds()
	cam := defaultCamera()
	if b.state.Camera != nil {
		cam = *b.state.Camera
	}
	pr := newProjector(cam, bounds.Dx(), bounds.Dy())

	ids := slices.Collect(maps.Keys(b.state.Drawables))
	slices.SortFunc(ids, func(x, y server.DrawableID) int {
		dx, dy := b.state.Drawables[x], b.state.Drawables[y]
		if c := cmp.Compare(dx.Layer, dy.Layer); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})
	for _, id := range ids {
		d := b.state.Drawables[id]
		if !d.Visible || d.Color.A <= 0 {
			continue
		}
		edges, ok := b.edges[d.Mesh]
		if !ok {
			edges = boundsMarker
		}
		strokeEdges(screen, pr, d.Transform, edges, width, toRGBA(d.Color))
	}

	if !opts.Colliders {
		return
	}
	cids := slices.Sorted(maps.Keys(b.state.Colliders))
	for _, id := range cids {
		c := b.state.Colliders[id]
		clr := colliderColors[c.Body]
		if c.Disabled {
			clr = disabledColor
		}
		strokeEdges(screen, pr, c.Transform, shapeEdges(c.Shape), width, clr)
	}
}

func strokeEdges(dst *ebiten.Image, pr projector, model mgl64.Mat4, edges []edge, width float32, clr color.Color) {
	for _, e := range edges {
		x0, y0, x1, y1, ok := pr.segment(model, e)
		if !ok {
			continue
		}
		vector.StrokeLine(dst, x0, y0, x1, y1, width, clr, true)
	}
}

// toRGBA converts a linear 0..1 color to premultiplied 8-bit RGBA.
func toRGBA(c server.Color) color.RGBA {
	a := clamp01(c.A)
	return color.RGBA{
		R: uint8(clamp01(c.R)*a*255 + 0.5),
		G: uint8(clamp01(c.G)*a*255 + 0.5),
		B: uint8(clamp01(c.B)*a*255 + 0.5),
		A: uint8(a*255 + 0.5),
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
