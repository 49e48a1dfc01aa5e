// Package app bootstraps an arbor engine from a config.Config: it opens the
// asset source, builds the backends, loads the main scene and runs the frame
// loop until the tree quits.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/backend/ebitenbackend"
	"github.com/phanxgames/arbor/internal/config"
	"github.com/phanxgames/arbor/resource"
	"github.com/phanxgames/arbor/server"
)

// Run executes one engine session. Startup failures are returned as
// *arbor.InitializationError; a nil error means the loop ended normally.
func Run(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	if log == nil {
		log = zap.NewNop()
	}
	source, err := openSource(cfg)
	if err != nil {
		return &arbor.InitializationError{Stage: "assets", Err: err}
	}

	var (
		window   *ebitenbackend.Backend
		backends server.Backends
	)
	if cfg.Headless {
		backends = server.NewRetained(cfg.Width, cfg.Height).Backends()
	} else {
		window = ebitenbackend.New(ebitenbackend.Options{
			Title:  cfg.Title,
			Width:  cfg.Width,
			Height: cfg.Height,
			Logger: log,
		})
		backends = window.Backends()
	}

	opts := cfg.EngineOptions()
	opts.Logger = log
	opts.Backends = backends
	opts.Source = source
	engine, err := arbor.NewEngine(opts)
	if err != nil {
		if c, ok := source.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return err
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			log.Warn("engine close failed", zap.Error(cerr))
		}
	}()
	if window != nil {
		window.SetMeshLookup(engine.Resources)
	}

	tree, err := engine.LoadMainScene(cfg.Scene)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, tree.Close()) }()
	tree.SetDebugMode(cfg.Debug)

	if cfg.Script != "" {
		data, err := os.ReadFile(cfg.Script)
		if err != nil {
			return &arbor.InitializationError{Stage: "script", Err: err}
		}
		script, err := arbor.LoadScript(data)
		if err != nil {
			return &arbor.InitializationError{Stage: "script", Err: err}
		}
		tree.SetScript(script)
	}

	log.Info("engine started",
		zap.String("scene", cfg.Scene),
		zap.Bool("headless", cfg.Headless),
		zap.Int("nodes", tree.Len()))

	if cfg.Headless {
		run := arbor.RunOptions{MaxFrames: cfg.MaxFrames, Delta: 1 / float64(cfg.TPS)}
		// Open-ended sessions run in real time; bounded ones as fast as possible.
		if cfg.MaxFrames == 0 && cfg.Script == "" {
			run.TPS = cfg.TPS
		}
		return arbor.RunHeadless(ctx, tree, run)
	}
	stop := context.AfterFunc(ctx, func() { _ = window.Close() })
	defer stop()
	return ebitenbackend.Run(tree, window, ebitenbackend.RunConfig{
		TPS:           cfg.TPS,
		MaxFrames:     cfg.MaxFrames,
		ShowFPS:       cfg.Debug,
		ShowColliders: cfg.Debug,
		Resizable:     true,
	})
}

func openSource(cfg config.Config) (resource.Source, error) {
	if cfg.Pack != "" {
		src, err := resource.OpenSQLite("file:" + cfg.Pack + "?mode=ro")
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	info, err := os.Stat(cfg.Assets)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset root %s is not a directory", cfg.Assets)
	}
	return resource.NewDirSource(cfg.Assets), nil
}
