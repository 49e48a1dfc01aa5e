package config

import (
	"flag"
	"io"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("arbor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(newFlagSet(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scene != "scenes/main.scene" || cfg.Assets != "assets" {
		t.Errorf("paths = %q, %q", cfg.Scene, cfg.Assets)
	}
	if cfg.Width != 1280 || cfg.Height != 720 || cfg.TPS != 60 || cfg.PhysicsTPS != 60 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.OTelEnabled {
		t.Error("OTelEnabled = false, want true")
	}
}

func TestParseEnvThenFlags(t *testing.T) {
	t.Setenv("ARBOR_SCENE", "scenes/env.scene")
	t.Setenv("ARBOR_MAX_FRAMES", "120")
	t.Setenv("ARBOR_HEADLESS", "true")
	t.Setenv("ARBOR_OTEL_ENDPOINT", "http://localhost:4318")

	cfg, err := Parse(newFlagSet(), []string{"-scene", "scenes/flag.scene", "-physics-tps", "120"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scene != "scenes/flag.scene" {
		t.Errorf("Scene = %q, want the flag value", cfg.Scene)
	}
	if cfg.MaxFrames != 120 || !cfg.Headless {
		t.Errorf("MaxFrames = %d, Headless = %v", cfg.MaxFrames, cfg.Headless)
	}
	if cfg.OTelEndpoint != "http://localhost:4318" {
		t.Errorf("OTelEndpoint = %q", cfg.OTelEndpoint)
	}
	if step := cfg.EngineOptions().FixedStep; math.Abs(step-1.0/120) > 1e-12 {
		t.Errorf("FixedStep = %v, want 1/120", step)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("ARBOR_TPS", "fast")
	if _, err := Parse(newFlagSet(), nil); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Errorf("err = %v, want parse env error", err)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Parse(newFlagSet(), nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Scene = " "
	cfg.TPS = 0
	cfg.LogFormat = "xml"
	cfg.LogLevel = "loud"
	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate = nil")
	}
	for _, want := range []string{"scene is required", "tps 0", `log format "xml"`, "loud"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidatePhysicsTPSBounds(t *testing.T) {
	for _, tps := range []string{"0", "3000000000"} {
		_, err := Parse(newFlagSet(), []string{"-physics-tps", tps})
		if err == nil || !strings.Contains(err.Error(), "physics tps") {
			t.Errorf("-physics-tps %s: err = %v, want a range error", tps, err)
		}
	}
	cfg, err := Parse(newFlagSet(), []string{"-physics-tps", "10000"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EngineOptions().FixedStep <= 0 {
		t.Errorf("FixedStep = %v", cfg.EngineOptions().FixedStep)
	}
}

func TestLogger(t *testing.T) {
	cfg, _ := Parse(newFlagSet(), []string{"-log-level", "warn"})
	log, err := cfg.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug enabled at warn level")
	}

	cfg.Debug = true
	cfg.LogFormat = "json"
	log, err = cfg.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug mode should enable debug logs")
	}
}
