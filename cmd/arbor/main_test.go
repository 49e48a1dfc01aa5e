package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/phanxgames/arbor/internal/config"
)

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.scene"), []byte(`{"root": {"name": "Main"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	base := config.Config{
		Scene:      "main.scene",
		Assets:     dir,
		Headless:   true,
		MaxFrames:  2,
		Width:      64,
		Height:     64,
		TPS:        60,
		PhysicsTPS: 60,
	}
	if code := run(base, zap.NewNop()); code != 0 {
		t.Errorf("normal run exited %d, want 0", code)
	}

	missing := base
	missing.Scene = "missing.scene"
	if code := run(missing, zap.NewNop()); code != 1 {
		t.Errorf("missing scene exited %d, want 1", code)
	}
}
