package ebitenbackend

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/arbor/resource"
	"github.com/phanxgames/arbor/server"
)

// edge is a line segment in model space.
type edge struct {
	a, b mgl64.Vec3
}

// meshEdges returns the unique triangle edges of m. An edge shared by two
// triangles is emitted once.
func meshEdges(m *resource.Mesh) []edge {
	type key struct{ a, b [3]float32 }
	seen := make(map[key]struct{})
	var out []edge
	for i := range m.Surfaces {
		s := &m.Surfaces[i]
		for t := 0; t+2 < len(s.Indices); t += 3 {
			tri := [3]uint32{s.Indices[t], s.Indices[t+1], s.Indices[t+2]}
			for k := range 3 {
				i0, i1 := tri[k], tri[(k+1)%3]
				if int(i0) >= len(s.Positions) || int(i1) >= len(s.Positions) {
					continue
				}
				p, q := [3]float32(s.Positions[i0]), [3]float32(s.Positions[i1])
				if slices.Compare(p[:], q[:]) > 0 {
					p, q = q, p
				}
				kk := key{p, q}
				if _, dup := seen[kk]; dup {
					continue
				}
				seen[kk] = struct{}{}
				out = append(out, edge{a: vec3(p), b: vec3(q)})
			}
		}
	}
	return out
}

func vec3(p [3]float32) mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
}

// boundsMarker is drawn for drawables whose mesh geometry is unknown: a
// unit cross at the origin.
var boundsMarker = []edge{
	{mgl64.Vec3{-0.5, 0, 0}, mgl64.Vec3{0.5, 0, 0}},
	{mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{0, 0.5, 0}},
	{mgl64.Vec3{0, 0, -0.5}, mgl64.Vec3{0, 0, 0.5}},
}

// circleSegments is the resolution of sphere and capsule outlines.
const circleSegments = 24

// shapeEdges returns the outline of s in its local space.
func shapeEdges(s server.Shape) []edge {
	switch s.Kind {
	case server.ShapeBox:
		return boxEdges(s.Extents)
	case server.ShapeSphere:
		return sphereEdges(s.Radius, 0)
	case server.ShapeCapsule:
		out := sphereEdges(s.Radius, s.Height/2)
		for _, x := range []float64{-s.Radius, s.Radius} {
			out = append(out, edge{mgl64.Vec3{x, -s.Height / 2, 0}, mgl64.Vec3{x, s.Height / 2, 0}})
		}
		for _, z := range []float64{-s.Radius, s.Radius} {
			out = append(out, edge{mgl64.Vec3{0, -s.Height / 2, z}, mgl64.Vec3{0, s.Height / 2, z}})
		}
		return out
	case server.ShapePlane:
		return planeEdges(10, 10)
	}
	return nil
}

func boxEdges(h mgl64.Vec3) []edge {
	var corners [8]mgl64.Vec3
	for i := range corners {
		corners[i] = mgl64.Vec3{
			h[0] * sign(i&1),
			h[1] * sign(i&2),
			h[2] * sign(i&4),
		}
	}
	var out []edge
	for i := range corners {
		for _, bit := range []int{1, 2, 4} {
			if i&bit == 0 {
				out = append(out, edge{corners[i], corners[i|bit]})
			}
		}
	}
	return out
}

func sign(bit int) float64 {
	if bit != 0 {
		return 1
	}
	return -1
}

// sphereEdges draws three great circles. With a non-zero half height the
// horizontal circle is drawn at both cap centers and the vertical ones are
// split into two half-circles, which outlines a capsule.
func sphereEdges(r, halfHeight float64) []edge {
	var out []edge
	point := func(axis int, a float64) mgl64.Vec3 {
		s, c := math.Sincos(a)
		switch axis {
		case 0: // XZ
			return mgl64.Vec3{r * c, 0, r * s}
		case 1: // XY
			return mgl64.Vec3{r * c, r * s, 0}
		default: // YZ
			return mgl64.Vec3{0, r * c, r * s}
		}
	}
	for axis := range 3 {
		for i := range circleSegments {
			a0 := 2 * math.Pi * float64(i) / circleSegments
			a1 := 2 * math.Pi * float64(i+1) / circleSegments
			p, q := point(axis, a0), point(axis, a1)
			switch {
			case halfHeight == 0:
				out = append(out, edge{p, q})
			case axis == 0:
				for _, y := range []float64{-halfHeight, halfHeight} {
					off := mgl64.Vec3{0, y, 0}
					out = append(out, edge{p.Add(off), q.Add(off)})
				}
			default:
				// Upper half of the circle goes on the top cap, lower half on
				// the bottom one.
				off := mgl64.Vec3{0, halfHeight, 0}
				if p[1]+q[1] < 0 {
					off = off.Mul(-1)
				}
				out = append(out, edge{p.Add(off), q.Add(off)})
			}
		}
	}
	return out
}

// planeEdges returns a grid of n lines per axis spanning size around the
// origin in the XZ plane.
func planeEdges(size float64, n int) []edge {
	var out []edge
	half := size / 2
	for i := 0; i <= n; i++ {
		t := -half + size*float64(i)/float64(n)
		out = append(out,
			edge{mgl64.Vec3{t, 0, -half}, mgl64.Vec3{t, 0, half}},
			edge{mgl64.Vec3{-half, 0, t}, mgl64.Vec3{half, 0, t}})
	}
	return out
}

// projector maps world points to screen pixels.
type projector struct {
	viewProj mgl64.Mat4
	w, h     float64
}

func newProjector(cam server.Camera, w, h int) projector {
	aspect := 1.0
	if h > 0 {
		aspect = float64(w) / float64(h)
	}
	return projector{
		viewProj: cam.Projection(aspect).Mul4(cam.View()),
		w:        float64(w),
		h:        float64(h),
	}
}

// project returns the screen position of p and whether p is in front of
// the camera's near plane.
func (pr projector) project(p mgl64.Vec3) (x, y float32, ok bool) {
	clip := pr.viewProj.Mul4x1(p.Vec4(1))
	if clip[3] <= 1e-9 || clip[2] < -clip[3] {
		return 0, 0, false
	}
	nx, ny := clip[0]/clip[3], clip[1]/clip[3]
	return float32((nx + 1) / 2 * pr.w), float32((1 - ny) / 2 * pr.h), true
}

// segment returns the screen-space segment of e under model, or false when
// either end is behind the near plane.
func (pr projector) segment(model mgl64.Mat4, e edge) (x0, y0, x1, y1 float32, ok bool) {
	a := model.Mul4x1(e.a.Vec4(1)).Vec3()
	b := model.Mul4x1(e.b.Vec4(1)).Vec3()
	x0, y0, okA := pr.project(a)
	x1, y1, okB := pr.project(b)
	return x0, y0, x1, y1, okA && okB
}

// defaultCamera looks at the origin from +Z when no camera was submitted.
func defaultCamera() server.Camera {
	return server.Camera{
		Transform: mgl64.Translate3D(0, 2, 10),
		FOV:       mgl64.DegToRad(70),
		Near:      0.05,
		Far:       1000,
	}
}
