package resource

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Extend grows the box to contain p.
func (b *AABB) Extend(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Surface is an indexed triangle list drawn with one material.
type Surface struct {
	Material  string
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3 // empty when the source has no normals
	UVs       []mgl32.Vec2 // empty when the source has no texture coordinates
	Indices   []uint32
}

// Mesh is a set of surfaces, split by material.
type Mesh struct {
	Name        string
	Surfaces    []Surface
	Bounds      AABB
	Library     *MaterialLibrary // nil when no material library was referenced or it failed to load
	LibraryPath string
}

// TriangleCount returns the number of triangles over all surfaces.
func (m *Mesh) TriangleCount() int {
	n := 0
	for i := range m.Surfaces {
		n += len(m.Surfaces[i].Indices) / 3
	}
	return n
}

// Release drops the vertex data.
func (m *Mesh) Release() {
	m.Surfaces = nil
	m.Library = nil
}

// OBJLoader parses Wavefront OBJ meshes. Faces are fan-triangulated and
// split into one surface per usemtl material. A referenced mtllib is loaded
// as a dependency; when it fails the mesh still loads without materials.
type OBJLoader struct{}

// Extensions implements Loader.
func (OBJLoader) Extensions() []string { return []string{".obj"} }

type objCorner struct {
	pos, uv, norm int // -1 when absent
}

type objGroup struct {
	material string
	corners  []objCorner // three per triangle
}

// Load implements Loader.
func (OBJLoader) Load(ctx *LoadContext, data []byte) (Kind, any, error) {
	var (
		positions []mgl32.Vec3
		normals   []mgl32.Vec3
		uvs       []mgl32.Vec2
		groups    []*objGroup
		byMat     = map[string]*objGroup{}
		current   *objGroup
		mesh      = &Mesh{}
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		bad := func(format string, args ...any) error {
			return loadError(ctx.Path, ErrMalformed, fmt.Sprintf("line %d: ", lineNo)+fmt.Sprintf(format, args...), nil)
		}

		switch fields[0] {
		case "v":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return KindUnknown, nil, bad("vertex: %v", err)
			}
			positions = append(positions, v)
		case "vn":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return KindUnknown, nil, bad("normal: %v", err)
			}
			normals = append(normals, v)
		case "vt":
			if len(fields) < 2 {
				return KindUnknown, nil, bad("texcoord: missing u")
			}
			var uv mgl32.Vec2
			for i := 0; i < 2 && i+1 < len(fields); i++ {
				f, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return KindUnknown, nil, bad("texcoord: %v", err)
				}
				uv[i] = float32(f)
			}
			uvs = append(uvs, uv)
		case "f":
			if len(fields) < 4 {
				return KindUnknown, nil, bad("face needs at least 3 vertices")
			}
			if current == nil {
				current = groupFor(&groups, byMat, "")
			}
			corners := make([]objCorner, 0, len(fields)-1)
			for _, f := range fields[1:] {
				c, err := parseCorner(f, len(positions), len(uvs), len(normals))
				if err != nil {
					return KindUnknown, nil, bad("face: %v", err)
				}
				corners = append(corners, c)
			}
			for i := 1; i+1 < len(corners); i++ {
				current.corners = append(current.corners, corners[0], corners[i], corners[i+1])
			}
		case "usemtl":
			current = groupFor(&groups, byMat, strings.TrimSpace(strings.Join(fields[1:], " ")))
		case "mtllib":
			if len(fields) > 1 {
				mesh.LibraryPath = Resolve(ctx.Path, strings.Join(fields[1:], " "))
			}
		case "o":
			if mesh.Name == "" && len(fields) > 1 {
				mesh.Name = strings.Join(fields[1:], " ")
			}
		}
	}
	if err := sc.Err(); err != nil {
		return KindUnknown, nil, loadError(ctx.Path, ErrMalformed, "scan", err)
	}
	if len(positions) == 0 {
		return KindUnknown, nil, loadError(ctx.Path, ErrMalformed, "no vertices", nil)
	}

	mesh.Bounds = AABB{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		mesh.Bounds.Extend(p)
	}
	for _, g := range groups {
		if len(g.corners) == 0 {
			continue
		}
		mesh.Surfaces = append(mesh.Surfaces, buildSurface(g, positions, uvs, normals))
	}

	if mesh.LibraryPath != "" {
		lib, err := ctx.Dependency("/" + mesh.LibraryPath)
		if err != nil {
			ctx.Warn(fmt.Sprintf("material library %q: %v", mesh.LibraryPath, err))
		} else if ml, ok := lib.Payload().(*MaterialLibrary); ok {
			mesh.Library = ml
		}
	}
	return KindMesh, mesh, nil
}

func groupFor(groups *[]*objGroup, byMat map[string]*objGroup, material string) *objGroup {
	if g, ok := byMat[material]; ok {
		return g
	}
	g := &objGroup{material: material}
	byMat[material] = g
	*groups = append(*groups, g)
	return g
}

// buildSurface deduplicates corner tuples into an indexed vertex list.
func buildSurface(g *objGroup, positions []mgl32.Vec3, uvs []mgl32.Vec2, normals []mgl32.Vec3) Surface {
	s := Surface{Material: g.material}
	index := make(map[objCorner]uint32, len(g.corners))
	hasUV, hasNorm := false, false
	for _, c := range g.corners {
		if c.uv >= 0 {
			hasUV = true
		}
		if c.norm >= 0 {
			hasNorm = true
		}
	}
	for _, c := range g.corners {
		idx, ok := index[c]
		if !ok {
			idx = uint32(len(s.Positions))
			index[c] = idx
			s.Positions = append(s.Positions, positions[c.pos])
			if hasUV {
				var uv mgl32.Vec2
				if c.uv >= 0 {
					uv = uvs[c.uv]
				}
				s.UVs = append(s.UVs, uv)
			}
			if hasNorm {
				var n mgl32.Vec3
				if c.norm >= 0 {
					n = normals[c.norm]
				}
				s.Normals = append(s.Normals, n)
			}
		}
		s.Indices = append(s.Indices, idx)
	}
	return s
}

func parseVec3(fields []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	if len(fields) < 3 {
		return v, fmt.Errorf("want 3 components, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

// parseCorner parses "p", "p/t", "p//n" or "p/t/n" with 1-based or
// negative (relative) indices.
func parseCorner(s string, np, nt, nn int) (objCorner, error) {
	c := objCorner{pos: -1, uv: -1, norm: -1}
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return c, fmt.Errorf("bad vertex %q", s)
	}
	var err error
	if c.pos, err = parseIndex(parts[0], np); err != nil {
		return c, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.uv, err = parseIndex(parts[1], nt); err != nil {
			return c, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.norm, err = parseIndex(parts[2], nn); err != nil {
			return c, err
		}
	}
	return c, nil
}

func parseIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	switch {
	case i > 0:
		i--
	case i < 0:
		i += n
	default:
		return 0, fmt.Errorf("index 0 is invalid")
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %s out of range (%d defined)", s, n)
	}
	return i, nil
}
