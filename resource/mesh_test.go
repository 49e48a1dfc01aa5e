package resource

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func loadOBJ(t *testing.T, src string) (*Mesh, error) {
	t.Helper()
	_, v, err := OBJLoader{}.Load(&LoadContext{Path: "test.obj", cache: NewCache(nil)}, []byte(src))
	if err != nil {
		return nil, err
	}
	return v.(*Mesh), nil
}

func TestOBJQuadIsFanTriangulated(t *testing.T) {
	m, err := loadOBJ(t, "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Surfaces) != 1 {
		t.Fatalf("Surfaces = %d, want 1", len(m.Surfaces))
	}
	s := m.Surfaces[0]
	if len(s.Positions) != 4 {
		t.Errorf("Positions = %d, want 4 (shared corners deduplicated)", len(s.Positions))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	if len(s.Indices) != len(want) {
		t.Fatalf("Indices = %v, want %v", s.Indices, want)
	}
	for i := range want {
		if s.Indices[i] != want[i] {
			t.Errorf("Indices = %v, want %v", s.Indices, want)
			break
		}
	}
	if m.TriangleCount() != 2 {
		t.Errorf("TriangleCount = %d, want 2", m.TriangleCount())
	}
	if len(s.Normals) != 0 || len(s.UVs) != 0 {
		t.Error("Normals and UVs should be empty when the source has none")
	}
}

func TestOBJSurfacesPerMaterial(t *testing.T) {
	m, err := loadOBJ(t, triOBJ)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "Tri" {
		t.Errorf("Name = %q, want Tri", m.Name)
	}
	if len(m.Surfaces) != 2 {
		t.Fatalf("Surfaces = %d, want 2", len(m.Surfaces))
	}
	if m.Surfaces[0].Material != "Red" || m.Surfaces[1].Material != "Blue" {
		t.Errorf("materials = %q, %q", m.Surfaces[0].Material, m.Surfaces[1].Material)
	}
	for i, s := range m.Surfaces {
		if len(s.Normals) != len(s.Positions) {
			t.Errorf("surface %d: %d normals for %d positions", i, len(s.Normals), len(s.Positions))
		}
	}
	if m.Bounds.Min != (mgl32.Vec3{0, 0, 0}) || m.Bounds.Max != (mgl32.Vec3{1, 1, 0}) {
		t.Errorf("Bounds = %v", m.Bounds)
	}
	if m.LibraryPath != "tri.mtl" {
		t.Errorf("LibraryPath = %q, want tri.mtl", m.LibraryPath)
	}
}

func TestOBJNegativeIndicesAndTexcoords(t *testing.T) {
	m, err := loadOBJ(t, "v 0 0 0\nv 2 0 0\nv 0 2 0\nvt 0 0\nvt 1 0\nvt 0 1\nf -3/-3 -2/-2 -1/-1\n")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := m.Surfaces[0]
	if len(s.UVs) != 3 {
		t.Fatalf("UVs = %d, want 3", len(s.UVs))
	}
	if s.Positions[1] != (mgl32.Vec3{2, 0, 0}) || s.UVs[2] != (mgl32.Vec2{0, 1}) {
		t.Errorf("corner data = %v / %v", s.Positions, s.UVs)
	}
}

func TestOBJRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"short face":   "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"out of range": "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1 2 9\n",
		"zero index":   "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 0 1 2\n",
		"bad number":   "v 0 zero 0\n",
		"no vertices":  "# empty\n",
	}
	for name, src := range cases {
		if _, err := loadOBJ(t, src); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
}

func TestMTLParsesMaterials(t *testing.T) {
	_, v, err := MTLLoader{}.Load(&LoadContext{Path: "meshes/tri.mtl"}, []byte(triMTL))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	lib := v.(*MaterialLibrary)
	if len(lib.Order) != 2 || lib.Order[0] != "Red" || lib.Order[1] != "Blue" {
		t.Errorf("Order = %v", lib.Order)
	}
	red, ok := lib.Get("Red")
	if !ok {
		t.Fatal("Red missing")
	}
	if red.Albedo != [4]float32{1, 0, 0, 1} {
		t.Errorf("Red.Albedo = %v", red.Albedo)
	}
	if red.Roughness != 0.5 {
		t.Errorf("Red.Roughness = %v, want 0.5", red.Roughness)
	}
	blue, _ := lib.Get("Blue")
	if blue.Albedo[3] != 0.5 {
		t.Errorf("Blue alpha = %v, want 0.5", blue.Albedo[3])
	}
	if blue.AlbedoTexture != "meshes/tex/blue.png" {
		t.Errorf("Blue.AlbedoTexture = %q, want meshes/tex/blue.png", blue.AlbedoTexture)
	}
	if _, ok := lib.Get("Green"); ok {
		t.Error("Get(Green) should fail")
	}
	var nilLib *MaterialLibrary
	if _, ok := nilLib.Get("Red"); ok {
		t.Error("nil library Get should fail")
	}
}

func TestMTLRejectsBadNumbers(t *testing.T) {
	_, _, err := MTLLoader{}.Load(&LoadContext{Path: "x.mtl"}, []byte("newmtl A\nKd 1 0\n"))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
