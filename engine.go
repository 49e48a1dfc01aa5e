package arbor

import (
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/phanxgames/arbor/resource"
	"github.com/phanxgames/arbor/server"
)

// DefaultFixedStep is the physics step used when Options.FixedStep is 0.
const DefaultFixedStep = 1.0 / 60.0

// TracerName is the instrumentation name of the default tracer.
const TracerName = "github.com/phanxgames/arbor"

// Options configure an Engine. The zero value runs headless with discarding
// servers, no asset source and a 60 Hz physics step.
type Options struct {
	Logger   *zap.Logger
	Backends server.Backends
	Source   resource.Source
	Loaders  []resource.Loader // registered after the built-in loaders

	FixedStep        float64 // seconds; 0 selects DefaultFixedStep
	MaxPhysicsSteps  int     // per frame; 0 is unlimited
	StrictFrameLoads bool    // fail resource loads issued during process
	Debug            bool

	Tracer trace.Tracer // nil uses the global provider
}

// Engine is the explicit context shared by the trees it drives: logger,
// servers, resource cache and registered behaviors. There is no global
// engine state.
type Engine struct {
	Log       *zap.Logger
	Servers   *server.Set
	Resources *resource.Cache
	Tracer    trace.Tracer

	fixedStep int64 // nanoseconds
	maxSteps  int
	debug     bool
	behaviors map[string]func() any
	closers   []io.Closer
	closed    bool
}

// NewEngine validates opts and builds the servers and resource cache.
// Configuration problems are reported as *InitializationError.
func NewEngine(opts Options) (*Engine, error) {
	step := opts.FixedStep
	if step == 0 {
		step = DefaultFixedStep
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, &InitializationError{Stage: "config", Err: fmt.Errorf("fixed step %v must be positive", opts.FixedStep)}
	}
	stepNS := math.Round(step * 1e9)
	if stepNS < 1 || stepNS > math.MaxInt64/2 {
		return nil, &InitializationError{Stage: "config", Err: fmt.Errorf("fixed step %v is outside 1ns..%v", opts.FixedStep, time.Duration(math.MaxInt64/2))}
	}
	if opts.MaxPhysicsSteps < 0 {
		return nil, &InitializationError{Stage: "config", Err: fmt.Errorf("max physics steps %d must not be negative", opts.MaxPhysicsSteps)}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}

	cacheOpts := []resource.Option{resource.WithLogger(log.Named("resource"))}
	if opts.StrictFrameLoads {
		cacheOpts = append(cacheOpts, resource.WithStrictFrameLoads())
	}
	cache := resource.NewCache(opts.Source, cacheOpts...)
	for _, l := range opts.Loaders {
		cache.Register(l)
	}

	e := &Engine{
		Log:       log,
		Servers:   server.NewSet(opts.Backends, log),
		Resources: cache,
		Tracer:    tracer,
		fixedStep: int64(stepNS),
		maxSteps:  opts.MaxPhysicsSteps,
		debug:     opts.Debug,
		behaviors: make(map[string]func() any),
	}
	for _, v := range []any{opts.Backends.Rendering, opts.Backends.Physics, opts.Backends.Display, opts.Source} {
		if c, ok := v.(io.Closer); ok && !e.hasCloser(c) {
			e.closers = append(e.closers, c)
		}
	}
	log.Debug("engine created",
		zap.Float64("fixed_step", step),
		zap.Int("max_physics_steps", opts.MaxPhysicsSteps),
		zap.Bool("debug", opts.Debug))
	return e, nil
}

// hasCloser reports whether c is already registered. Values of
// non-comparable types are never considered equal, so such a backend
// filling two slots is closed twice.
func (e *Engine) hasCloser(c io.Closer) bool {
	if !reflect.TypeOf(c).Comparable() {
		return false
	}
	for _, o := range e.closers {
		if reflect.TypeOf(o) == reflect.TypeOf(c) && o == c {
			return true
		}
	}
	return false
}

// Close evicts every cached resource and closes the backends and source
// that implement io.Closer. Trees should be closed first.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.Resources.Clear()
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FixedStep returns the physics step in seconds.
func (e *Engine) FixedStep() float64 {
	return float64(e.fixedStep) / 1e9
}

// ErrUnknownBehavior is returned when a scene names a behavior that was
// never registered.
var ErrUnknownBehavior = errors.New("arbor: unknown behavior")

// RegisterBehavior makes factory available to scene files under name.
// Each instantiated node gets a fresh value from factory.
func (e *Engine) RegisterBehavior(name string, factory func() any) {
	if factory == nil {
		panic("arbor: nil behavior factory for " + name)
	}
	e.behaviors[name] = factory
}

// NewTree creates a tree driven by e around root.
func (e *Engine) NewTree(root *Node) (*Tree, error) {
	return NewTree(e, root)
}
