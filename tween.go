package arbor

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Tween animates up to 4 float values of a node simultaneously. Create one
// with TweenPosition, TweenScale, TweenRotation or TweenColor, then either
// call Update(dt) yourself or hand it to Tree.Animate so the tree advances
// it every frame after physics. If the target node is destroyed, the tween
// stops immediately.
type Tween struct {
	tweens [4]*gween.Tween
	count  int
	values [4]float32
	write  func(v [4]float32)
	target *Node

	// Done is set once every channel finished or the target was destroyed.
	Done bool

	// OnDone, when set, runs once as the tween finishes.
	OnDone func()
}

func newTween(n *Node, from, to []float32, duration float32, fn ease.TweenFunc, write func([4]float32)) *Tween {
	if fn == nil {
		fn = ease.Linear
	}
	tw := &Tween{count: len(from), target: n, write: write}
	for i := range from {
		tw.tweens[i] = gween.New(from[i], to[i], duration, fn)
		tw.values[i] = from[i]
	}
	return tw
}

// Update advances every channel by dt seconds, writes the values to the
// target and marks its transform dirty.
func (tw *Tween) Update(dt float32) {
	if tw.Done {
		return
	}
	if tw.target != nil && tw.target.state == StateDestroyed {
		tw.Done = true
		return
	}
	allDone := true
	for i := 0; i < tw.count; i++ {
		val, finished := tw.tweens[i].Update(dt)
		tw.values[i] = val
		if !finished {
			allDone = false
		}
	}
	tw.write(tw.values)
	if allDone {
		tw.Done = true
		if tw.OnDone != nil {
			tw.OnDone()
		}
	}
}

// Values returns the current channel values.
func (tw *Tween) Values() []float32 {
	return tw.values[:tw.count]
}

// TweenPosition animates the local position of n to to.
func TweenPosition(n *Node, to mgl64.Vec3, duration float32, fn ease.TweenFunc) *Tween {
	from := n.local.Position
	return newTween(n, vec3f(from), vec3f(to), duration, fn, func(v [4]float32) {
		n.SetPosition(mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])})
	})
}

// TweenScale animates the local scale of n to to.
func TweenScale(n *Node, to mgl64.Vec3, duration float32, fn ease.TweenFunc) *Tween {
	from := n.local.Scale
	return newTween(n, vec3f(from), vec3f(to), duration, fn, func(v [4]float32) {
		n.SetScale(mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])})
	})
}

// TweenRotation interpolates the local rotation of n to to along the
// shortest arc. The easing function shapes the interpolation parameter.
func TweenRotation(n *Node, to mgl64.Quat, duration float32, fn ease.TweenFunc) *Tween {
	from := n.local.Rotation
	if from == (mgl64.Quat{}) {
		from = mgl64.QuatIdent()
	}
	from, to = from.Normalize(), to.Normalize()
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return newTween(n, []float32{0}, []float32{1}, duration, fn, func(v [4]float32) {
		n.SetRotation(mgl64.QuatSlerp(from, to, float64(v[0])))
	})
}

// TweenColor animates the tint of n's Renderable. A node without a
// Renderable finishes immediately.
func TweenColor(n *Node, to Color, duration float32, fn ease.TweenFunc) *Tween {
	if n.Renderable == nil {
		return &Tween{target: n, Done: true}
	}
	c := n.Renderable.Color
	from := []float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
	return newTween(n, from, []float32{float32(to.R), float32(to.G), float32(to.B), float32(to.A)}, duration, fn,
		func(v [4]float32) {
			if n.Renderable != nil {
				n.Renderable.Color = Color{R: float64(v[0]), G: float64(v[1]), B: float64(v[2]), A: float64(v[3])}
			}
		})
}

func vec3f(v mgl64.Vec3) []float32 {
	return []float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// --- Tree-driven tweens ---

// Animate registers tw with the tree. Registered tweens advance by the
// frame delta after the physics steps, follow their target's process mode
// and are dropped once done.
func (t *Tree) Animate(tw *Tween) {
	if tw == nil || tw.Done || slices.Contains(t.tweens, tw) {
		return
	}
	t.tweens = append(t.tweens, tw)
}

// Tweens returns the number of registered tweens still running.
func (t *Tree) Tweens() int {
	return len(t.tweens)
}

func (t *Tree) updateTweens(delta float64) {
	if len(t.tweens) == 0 {
		return
	}
	t.busy++
	defer func() { t.busy-- }()
	batch := slices.Clone(t.tweens)
	for _, tw := range batch {
		if n := tw.target; n != nil && n.state.inTree() && n.tree == t {
			if !t.effectiveMode(n).active(t.paused) {
				continue
			}
		}
		t.guard(tw.target, "Tween", func() { tw.Update(float32(delta)) })
	}
	t.tweens = slices.DeleteFunc(t.tweens, func(tw *Tween) bool { return tw.Done })
}
