package app

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/internal/config"
	"github.com/phanxgames/arbor/resource"
)

const mainScene = `{"root": {"name": "Main", "children": [{"name": "Box", "position": [1, 0, 0]}]}}`

func headlessConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "scenes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scenes", "main.scene"), []byte(mainScene), 0o644); err != nil {
		t.Fatal(err)
	}
	return config.Config{
		Scene:      "scenes/main.scene",
		Assets:     dir,
		Headless:   true,
		MaxFrames:  3,
		Width:      320,
		Height:     240,
		TPS:        60,
		PhysicsTPS: 60,
	}
}

func TestRunHeadless(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	if err := Run(context.Background(), headlessConfig(t), zap.New(core)); err != nil {
		t.Fatal(err)
	}
	started := logs.FilterMessage("engine started").All()
	if len(started) != 1 {
		t.Fatalf("engine started logged %d times", len(started))
	}
	if n := started[0].ContextMap()["nodes"]; n != int64(2) {
		t.Errorf("nodes = %v, want 2", n)
	}
}

func TestRunInitializationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		stage  string
	}{
		{"missing assets", func(c *config.Config) { c.Assets = filepath.Join(c.Assets, "nope") }, "assets"},
		{"assets is a file", func(c *config.Config) { c.Assets = filepath.Join(c.Assets, "scenes", "main.scene") }, "assets"},
		{"missing scene", func(c *config.Config) { c.Scene = "scenes/other.scene" }, "main scene"},
		{"missing script", func(c *config.Config) { c.Script = filepath.Join(t.TempDir(), "none.json") }, "script"},
		{"bad config", func(c *config.Config) { c.PhysicsTPS = -1 }, "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := headlessConfig(t)
			tt.mutate(&cfg)
			err := Run(context.Background(), cfg, nil)
			var ie *arbor.InitializationError
			if !errors.As(err, &ie) {
				t.Fatalf("err = %v, want *InitializationError", err)
			}
			if ie.Stage != tt.stage {
				t.Errorf("stage = %q, want %q", ie.Stage, tt.stage)
			}
		})
	}
}

func TestRunScript(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.MaxFrames = 0
	cfg.Script = filepath.Join(t.TempDir(), "run.json")
	script := `{"steps": [{"action": "wait", "frames": 2}, {"action": "remove", "path": "/root/Main/Box"}]}`
	if err := os.WriteFile(cfg.Script, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	core, logs := observer.New(zap.InfoLevel)
	if err := Run(context.Background(), cfg, zap.New(core)); err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessage("script finished").Len() != 1 {
		t.Error("script did not finish")
	}
}

func TestRunFromPack(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.Pack = filepath.Join(t.TempDir(), "assets.db")

	db, err := sql.Open("sqlite", cfg.Pack)
	if err != nil {
		t.Fatal(err)
	}
	n, err := resource.WritePack(context.Background(), db, fstest.MapFS{
		"scenes/main.scene": {Data: []byte(mainScene)},
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil || n != 1 {
		t.Fatalf("WritePack = %d, %v", n, err)
	}

	cfg.Assets = "does-not-matter"
	if err := Run(context.Background(), cfg, nil); err != nil {
		t.Fatal(err)
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.MaxFrames = 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, cfg, nil); err != nil {
		t.Fatal(err)
	}
}
