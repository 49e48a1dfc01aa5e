package arbor

import (
	"errors"
	"math"
	"testing"
	"testing/fstest"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/arbor/resource"
	"github.com/phanxgames/arbor/server"
)

const levelScene = `{
  "root": {
    "name": "Level",
    "groups": ["levels"],
    "children": [
      {
        "name": "Player",
        "position": [0, 1, 0],
        "rotation": [0, 90, 0],
        "behavior": "player",
        "processMode": "always",
        "meta": {"hp": 10},
        "mesh": {"path": "meshes/quad.obj", "color": [1, 0, 0, 1]},
        "collider": {"shape": "capsule", "radius": 0.5, "height": 1, "body": "kinematic", "layer": 2}
      },
      {
        "name": "Eye",
        "position": [0, 5, 10],
        "camera": {"fov": 60, "current": true}
      },
      {
        "name": "Floor",
        "scale": [10, 1, 10],
        "collider": {"shape": "plane"}
      }
    ]
  }
}`

type playerBehavior struct {
	ready int
}

func (p *playerBehavior) OnReady(*Node) { p.ready++ }

func sceneEnv(t *testing.T, files fstest.MapFS) *testEnv {
	t.Helper()
	fsys := assetFS()
	for k, v := range files {
		fsys[k] = v
	}
	return newTestEnv(t, Options{Source: resource.NewFSSource(fsys)})
}

func TestLoadMainScene(t *testing.T) {
	env := sceneEnv(t, fstest.MapFS{"scenes/level.scene": {Data: []byte(levelScene)}})
	env.engine.RegisterBehavior("player", func() any { return &playerBehavior{} })

	tree, err := env.engine.LoadMainScene("scenes/level.scene")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := env.engine.Resources.Peek("scenes/level.scene"); ok {
		t.Error("scene descriptor still cached after instantiation")
	}
	if got := tree.RootNode().Name(); got != "Level" {
		t.Errorf("root = %q, want Level", got)
	}
	if !tree.RootNode().InGroup("levels") {
		t.Error("root groups not applied")
	}

	hp, ok := tree.Find("/Level/Player")
	if !ok {
		t.Fatal("Player not found")
	}
	player := tree.Node(hp)
	assertVec(t, "player", player.Position(), mgl64.Vec3{0, 1, 0})
	want := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	if got := player.LocalTransform().Rotation; !got.ApproxEqualThreshold(want, 1e-9) {
		t.Errorf("rotation = %v, want %v", got, want)
	}
	if player.ProcessMode() != ProcessAlways {
		t.Errorf("process mode = %v", player.ProcessMode())
	}
	if hpMeta, _ := player.Meta("hp"); hpMeta != float64(10) {
		t.Errorf("meta hp = %#v", hpMeta)
	}
	if player.Renderable == nil || player.Renderable.Color != (Color{R: 1, A: 1}) {
		t.Errorf("renderable = %+v", player.Renderable)
	}
	b := player.Body
	if b == nil || b.Shape.Kind != server.ShapeCapsule || b.Kind != server.BodyKinematic || b.Layer != 2 || b.Mask != ^uint32(0) {
		t.Errorf("body = %+v", b)
	}

	mustAdvance(t, tree, 0)
	beh, ok := player.Behavior.(*playerBehavior)
	if !ok || beh.ready != 1 {
		t.Errorf("behavior = %#v, want ready once", player.Behavior)
	}
	if env.engine.Resources.Refs("meshes/quad.obj") != 1 {
		t.Error("scene mesh not loaded on enter")
	}

	he, _ := tree.Find("/Level/Eye")
	cam := tree.Node(he).Camera
	if cam == nil || math.Abs(cam.FOV-mgl64.DegToRad(60)) > 1e-12 || cam.Near != DefaultNear || cam.Far != DefaultFar {
		t.Errorf("camera = %+v", cam)
	}
	if f := env.rec.LastRender(); f == nil || f.Camera == nil {
		t.Error("scene camera not submitted")
	}

	hf, _ := tree.Find("/Level/Floor")
	if got := tree.Node(hf).LocalTransform().Scale; got != (mgl64.Vec3{10, 1, 10}) {
		t.Errorf("floor scale = %v", got)
	}
}

func TestLoadSceneAsSubtree(t *testing.T) {
	env := sceneEnv(t, fstest.MapFS{
		"scenes/crate.scene": {Data: []byte(`{"root": {"name": "Crate", "children": [{"name": "Lid"}]}}`)},
	})
	tree, err := NewTree(env.engine, NewNode("root", nil))
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		crate, err := env.engine.LoadScene("scenes/crate.scene")
		if err != nil {
			t.Fatal(err)
		}
		if len(crate.StagedChildren()) != 1 {
			t.Fatalf("staged children = %d, want 1", len(crate.StagedChildren()))
		}
		// Two instances under one parent need distinct names.
		if tree.Len() > 1 {
			_ = crate.SetName("Crate2")
		}
		mustAdd(t, tree, tree.Root(), crate)
	}
	if _, ok := tree.Find("/root/Crate2/Lid"); !ok {
		t.Error("second instance not linked")
	}
}

func TestLoadMainSceneErrors(t *testing.T) {
	env := sceneEnv(t, fstest.MapFS{
		"scenes/bad.scene":     {Data: []byte(`{"root": {"name": "A", "children": [{"name": "B"}, {"name": "B"}]}}`)},
		"scenes/unknown.scene": {Data: []byte(`{"root": {"name": "A", "behavior": "ghost"}}`)},
	})
	tests := []struct {
		path string
		want error
	}{
		{"scenes/missing.scene", resource.ErrNotFound},
		{"scenes/bad.scene", resource.ErrMalformed},
		{"scenes/unknown.scene", ErrUnknownBehavior},
		{"meshes/quad.obj", resource.ErrTypeMismatch},
	}
	for _, tt := range tests {
		_, err := env.engine.LoadMainScene(tt.path)
		var ie *InitializationError
		if !errors.As(err, &ie) || ie.Stage != "main scene" {
			t.Errorf("%s: err = %v, want *InitializationError", tt.path, err)
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.path, err, tt.want)
		}
	}
	if n := env.engine.Resources.Len(); n != 0 {
		t.Errorf("failed loads left %d cached resources: %v", n, env.engine.Resources.Paths())
	}
}

func TestInstantiateColliderDefaults(t *testing.T) {
	env := newTestEnv(t, Options{})
	n, err := env.engine.Instantiate(resource.NodeDesc{
		Name:     "Box",
		Collider: &resource.ColliderDesc{Shape: "box", Extents: [3]float64{1, 2, 3}, Mask: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Body{
		Shape: server.Shape{Kind: server.ShapeBox, Extents: mgl64.Vec3{1, 2, 3}},
		Kind:  server.BodyStatic,
		Layer: 1,
		Mask:  4,
	}
	if *n.Body != want {
		t.Errorf("body = %+v, want %+v", *n.Body, want)
	}
	if _, err := env.engine.Instantiate(resource.NodeDesc{Name: "X", ProcessMode: "sometimes"}); err == nil {
		t.Error("unknown process mode accepted")
	}
}

func TestRegisterBehaviorNilPanics(t *testing.T) {
	env := newTestEnv(t, Options{})
	defer func() {
		if recover() == nil {
			t.Error("nil factory did not panic")
		}
	}()
	env.engine.RegisterBehavior("x", nil)
}
