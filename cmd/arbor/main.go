// Command arbor loads a scene and runs it, in a window or headless.
//
// Settings come from ARBOR_* environment variables and flags; see
// arbor -h. The exit status is 1 when the engine fails to start.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/phanxgames/arbor"
	"github.com/phanxgames/arbor/internal/app"
	"github.com/phanxgames/arbor/internal/config"
	"github.com/phanxgames/arbor/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	os.Exit(run(cfg, log))
}

func run(cfg config.Config, log *zap.Logger) int {
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "arbor",
		Endpoint:    cfg.OTelEndpoint,
		Enabled:     cfg.OTelEnabled,
	})
	if err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	err = app.Run(ctx, cfg, log)
	var ie *arbor.InitializationError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ie):
		log.Error("initialization failed", zap.String("stage", ie.Stage), zap.Error(ie.Err))
		return 1
	default:
		log.Error("engine stopped", zap.Error(err))
		return 1
	}
}
