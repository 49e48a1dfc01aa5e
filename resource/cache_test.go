package resource

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const triOBJ = `# two triangles, two materials
mtllib tri.mtl
o Tri
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
usemtl Red
f 1//1 2//1 3//1
usemtl Blue
f 1//1 3//1 4//1
`

const triMTL = `newmtl Red
Kd 1 0 0
Ns 128
newmtl Blue
Kd 0 0 1
d 0.5
map_Kd -bm 1 tex/blue.png
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"meshes/tri.obj":     {Data: []byte(triOBJ)},
		"meshes/tri.mtl":     {Data: []byte(triMTL)},
		"meshes/broken.obj":  {Data: []byte("v 1 2\n")},
		"meshes/orphan.obj":  {Data: []byte("mtllib missing.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")},
		"textures/dot.png":   {Data: pngBytes(2, 3)},
		"data/readme.xyz":    {Data: []byte("?")},
		"refs/a.ref":         {Data: []byte("b.ref")},
		"refs/b.ref":         {Data: []byte("a.ref")},
		"refs/leaf.ref":      {Data: []byte("")},
		"refs/needsleaf.ref": {Data: []byte("leaf.ref")},
	}
}

func pngBytes(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// refLoader loads the asset named by the file content as a dependency.
type refLoader struct{}

func (refLoader) Extensions() []string { return []string{".ref"} }

func (refLoader) Load(ctx *LoadContext, data []byte) (Kind, any, error) {
	ref := strings.TrimSpace(string(data))
	if ref != "" {
		if _, err := ctx.Dependency(ref); err != nil {
			return KindUnknown, nil, err
		}
	}
	return KindUnknown, ref, nil
}

func newTestCache(opts ...Option) *Cache {
	c := NewCache(NewFSSource(testFS()), opts...)
	c.Register(refLoader{})
	return c
}

func TestLoadTwiceReturnsSameInstance(t *testing.T) {
	c := newTestCache()

	a, err := c.Load("meshes/tri.obj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := c.Load("meshes/tri.obj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a != b {
		t.Error("second Load returned a different instance")
	}
	if a.Refs() != 2 {
		t.Errorf("Refs = %d, want 2", a.Refs())
	}

	if err := c.Unload("meshes/tri.obj"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if a.Refs() != 1 {
		t.Errorf("Refs after one Unload = %d, want 1", a.Refs())
	}
	if got, ok := c.Peek("meshes/tri.obj"); !ok || got != a {
		t.Error("resource should still be cached after one Unload")
	}

	if err := c.Unload("meshes/tri.obj"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if _, ok := c.Peek("meshes/tri.obj"); ok {
		t.Error("resource should be evicted after second Unload")
	}
	if a.Refs() != 0 {
		t.Errorf("Refs after eviction = %d, want 0", a.Refs())
	}
}

func TestLoadCanonicalizesPath(t *testing.T) {
	c := newTestCache()
	a, err := c.Load("meshes/tri.obj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := c.Load("./meshes/../meshes/tri.obj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a != b {
		t.Error("equivalent paths should share one resource")
	}
	if a.Path() != "meshes/tri.obj" {
		t.Errorf("Path = %q, want %q", a.Path(), "meshes/tri.obj")
	}
}

func TestMeshLoadsMaterialLibraryAsDependency(t *testing.T) {
	c := newTestCache()
	mesh, _, err := LoadAs[*Mesh](c, "meshes/tri.obj")
	if err != nil {
		t.Fatalf("LoadAs: %v", err)
	}
	if mesh.Library == nil {
		t.Fatal("Library should be loaded")
	}
	if c.Refs("meshes/tri.mtl") != 1 {
		t.Errorf("library Refs = %d, want 1", c.Refs("meshes/tri.mtl"))
	}
	if got := c.Paths(); len(got) != 2 || got[0] != "meshes/tri.mtl" || got[1] != "meshes/tri.obj" {
		t.Errorf("Paths = %v", got)
	}

	if err := c.Unload("meshes/tri.obj"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len after evicting mesh = %d, want 0 (dependency released)", c.Len())
	}
	if mesh.Surfaces != nil {
		t.Error("evicted mesh should have released its surfaces")
	}
}

func TestSharedDependencyOutlivesOneDependent(t *testing.T) {
	c := newTestCache()
	if _, err := c.Load("meshes/tri.mtl"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := c.Load("meshes/tri.obj"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Refs("meshes/tri.mtl") != 2 {
		t.Errorf("library Refs = %d, want 2", c.Refs("meshes/tri.mtl"))
	}
	if err := c.Unload("meshes/tri.obj"); err != nil {
		t.Fatal(err)
	}
	if c.Refs("meshes/tri.mtl") != 1 {
		t.Errorf("library Refs = %d, want 1", c.Refs("meshes/tri.mtl"))
	}
}

func TestLoadMissing(t *testing.T) {
	c := newTestCache()
	_, err := c.Load("meshes/nope.obj")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %T, want *LoadError", err)
	}
	if le.Path != "meshes/nope.obj" {
		t.Errorf("Path = %q", le.Path)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestLoadInvalidPath(t *testing.T) {
	c := newTestCache()
	for _, p := range []string{"", ".", "/", "../outside.obj"} {
		if _, err := c.Load(p); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) err = %v, want ErrNotFound", p, err)
		}
	}
}

func TestLoadMalformed(t *testing.T) {
	c := newTestCache()
	_, err := c.Load("meshes/broken.obj")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error %q should name the line", err)
	}
}

func TestLoadUnsupported(t *testing.T) {
	c := newTestCache()
	if _, err := c.Load("data/readme.xyz"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestLoadWithoutSource(t *testing.T) {
	c := NewCache(nil)
	if _, err := c.Load("meshes/tri.obj"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadAsTypeMismatchDropsReference(t *testing.T) {
	c := newTestCache()
	_, res, err := LoadAs[*Texture](c, "meshes/tri.obj")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
	if res != nil {
		t.Error("resource should be nil on mismatch")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestUnloadNotLoaded(t *testing.T) {
	c := newTestCache()
	if err := c.Unload("meshes/tri.obj"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("err = %v, want ErrNotLoaded", err)
	}
}

func TestLoadOrFallback(t *testing.T) {
	c := newTestCache()
	fallback := NewStatic("builtin:cube", KindMesh, &Mesh{Name: "cube"})
	if got := c.LoadOr("meshes/nope.obj", fallback); got != fallback {
		t.Error("LoadOr should return the fallback for a missing asset")
	}
	got := c.LoadOr("meshes/tri.obj", fallback)
	if got == fallback || got.Kind() != KindMesh {
		t.Errorf("LoadOr = %v, want the loaded mesh", got.Path())
	}
}

func TestMissingMaterialLibraryWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := newTestCache(WithLogger(zap.New(core)))

	mesh, _, err := LoadAs[*Mesh](c, "meshes/orphan.obj")
	if err != nil {
		t.Fatalf("LoadAs: %v", err)
	}
	if mesh.Library != nil {
		t.Error("Library should be nil when the mtllib is missing")
	}
	if logs.FilterMessage("resource load warning").Len() != 1 {
		t.Errorf("want one load warning, got %v", logs.All())
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestDependencyCycle(t *testing.T) {
	c := newTestCache()
	_, err := c.Load("refs/a.ref")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestDependencyKeptUntilDependentEvicted(t *testing.T) {
	c := newTestCache()
	if _, err := c.Load("refs/needsleaf.ref"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Refs("refs/leaf.ref") != 1 {
		t.Errorf("leaf Refs = %d, want 1", c.Refs("refs/leaf.ref"))
	}
	if err := c.Unload("refs/needsleaf.ref"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Peek("refs/leaf.ref"); ok {
		t.Error("leaf should be evicted with its dependent")
	}
}

func TestLoadDuringFrameWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := newTestCache(WithLogger(zap.New(core)))
	c.SetFrameActive(true)

	if _, err := c.Load("meshes/tri.mtl"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if logs.FilterMessage("resource loaded during frame pass").Len() != 1 {
		t.Errorf("want one in-frame warning, got %v", logs.All())
	}
}

func TestLoadDuringFrameStrict(t *testing.T) {
	c := newTestCache(WithStrictFrameLoads())
	c.SetFrameActive(true)
	if _, err := c.Load("meshes/tri.mtl"); !errors.Is(err, ErrLoadInFrame) {
		t.Fatalf("err = %v, want ErrLoadInFrame", err)
	}
	c.SetFrameActive(false)
	if _, err := c.Load("meshes/tri.mtl"); err != nil {
		t.Errorf("Load outside frame: %v", err)
	}
}

func TestTextureLoadAndRelease(t *testing.T) {
	c := newTestCache()
	tex, _, err := LoadAs[*Texture](c, "textures/dot.png")
	if err != nil {
		t.Fatalf("LoadAs: %v", err)
	}
	if tex.Width != 2 || tex.Height != 3 {
		t.Errorf("size = %dx%d, want 2x3", tex.Width, tex.Height)
	}
	if tex.Format != "png" {
		t.Errorf("Format = %q, want png", tex.Format)
	}
	if got := tex.Image.NRGBAAt(1, 2); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("pixel = %v, want opaque red", got)
	}
	if err := c.Unload("textures/dot.png"); err != nil {
		t.Fatal(err)
	}
	if tex.Image != nil {
		t.Error("Release should drop pixel data")
	}
}

func TestClearEvictsEverything(t *testing.T) {
	c := newTestCache()
	for _, p := range []string{"meshes/tri.obj", "meshes/tri.obj", "textures/dot.png"} {
		if _, err := c.Load(p); err != nil {
			t.Fatal(err)
		}
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"a/b.obj":        "a/b.obj",
		"./a/b.obj":      "a/b.obj",
		`a\b.obj`:        "a/b.obj",
		"a/../b.obj":     "b.obj",
		"a//b.obj":       "a/b.obj",
		"../b.obj":       "",
		"  ":             "",
		"/assets/x.png":  "assets/x.png",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("meshes/tri.obj", "tri.mtl"); got != "meshes/tri.mtl" {
		t.Errorf("Resolve relative = %q", got)
	}
	if got := Resolve("meshes/tri.obj", "/textures/a.png"); got != "textures/a.png" {
		t.Errorf("Resolve rooted = %q", got)
	}
	if got := Resolve("a.mtl", "../x.png"); got != "" {
		t.Errorf("Resolve escaping = %q, want empty", got)
	}
}
