// Package config loads bootstrap settings for the arbor commands from
// ARBOR_* environment variables, with command-line flags overriding them.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/phanxgames/arbor"
)

// Config holds the settings of cmd/arbor.
type Config struct {
	Scene  string `env:"ARBOR_SCENE"  envDefault:"scenes/main.scene"`
	Assets string `env:"ARBOR_ASSETS" envDefault:"assets"`
	Pack   string `env:"ARBOR_PACK"` // SQLite asset pack; replaces Assets when set
	Script string `env:"ARBOR_SCRIPT"`

	Headless  bool   `env:"ARBOR_HEADLESS"`
	MaxFrames uint64 `env:"ARBOR_MAX_FRAMES"`
	Width     int    `env:"ARBOR_WIDTH"  envDefault:"1280"`
	Height    int    `env:"ARBOR_HEIGHT" envDefault:"720"`
	Title     string `env:"ARBOR_TITLE"  envDefault:"arbor"`
	TPS       int    `env:"ARBOR_TPS"    envDefault:"60"`

	PhysicsTPS       int  `env:"ARBOR_PHYSICS_TPS"       envDefault:"60"`
	MaxPhysicsSteps  int  `env:"ARBOR_MAX_PHYSICS_STEPS" envDefault:"8"`
	StrictFrameLoads bool `env:"ARBOR_STRICT_FRAME_LOADS"`

	Debug     bool   `env:"ARBOR_DEBUG"`
	LogLevel  string `env:"ARBOR_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"ARBOR_LOG_FORMAT" envDefault:"console"`

	OTelEndpoint string `env:"ARBOR_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"ARBOR_OTEL_ENABLED" envDefault:"true"`
}

// Parse loads environment defaults and then parses args with flags
// registered on fs.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Scene, "scene", cfg.Scene, "main scene path, relative to the asset root")
	fs.StringVar(&cfg.Assets, "assets", cfg.Assets, "asset directory")
	fs.StringVar(&cfg.Pack, "pack", cfg.Pack, "SQLite asset pack (overrides -assets)")
	fs.StringVar(&cfg.Script, "script", cfg.Script, "JSON script driving the tree")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run without a window")
	fs.Uint64Var(&cfg.MaxFrames, "frames", cfg.MaxFrames, "stop after this many frames (0 runs until quit)")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "window width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "window height")
	fs.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	fs.IntVar(&cfg.TPS, "tps", cfg.TPS, "frames per second")
	fs.IntVar(&cfg.PhysicsTPS, "physics-tps", cfg.PhysicsTPS, "physics steps per second")
	fs.IntVar(&cfg.MaxPhysicsSteps, "max-physics-steps", cfg.MaxPhysicsSteps, "physics steps per frame before the rest is dropped (0 is unlimited)")
	fs.BoolVar(&cfg.StrictFrameLoads, "strict-loads", cfg.StrictFrameLoads, "fail resource loads issued during process")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log per-frame timings and tree warnings")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// MaxPhysicsTPS bounds the physics rate accepted from the command line.
const MaxPhysicsTPS = 10000

// Validate reports settings no engine could start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Scene) == "" {
		errs = append(errs, errors.New("scene is required"))
	}
	if c.TPS <= 0 {
		errs = append(errs, fmt.Errorf("tps %d must be positive", c.TPS))
	}
	if c.PhysicsTPS <= 0 || c.PhysicsTPS > MaxPhysicsTPS {
		errs = append(errs, fmt.Errorf("physics tps %d must be in 1..%d", c.PhysicsTPS, MaxPhysicsTPS))
	}
	if c.MaxPhysicsSteps < 0 {
		errs = append(errs, fmt.Errorf("max physics steps %d must not be negative", c.MaxPhysicsSteps))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Width, c.Height))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logger builds the process logger. Debug mode forces the debug level so
// the per-frame timings are visible.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if c.Debug {
		level = zapcore.DebugLevel
	}
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// EngineOptions maps the settings onto engine options. Backends, source
// and logger are left for the caller.
func (c Config) EngineOptions() arbor.Options {
	return arbor.Options{
		FixedStep:        1 / float64(c.PhysicsTPS),
		MaxPhysicsSteps:  c.MaxPhysicsSteps,
		StrictFrameLoads: c.StrictFrameLoads,
		Debug:            c.Debug,
	}
}
