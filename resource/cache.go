package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"go.uber.org/zap"
)

// Loader parses one asset format. Loaders are selected by file extension.
type Loader interface {
	// Extensions returns the lower-case extensions handled, including the dot.
	Extensions() []string
	// Load parses data read from ctx.Path. It returns the payload kind and
	// a new payload instance.
	Load(ctx *LoadContext, data []byte) (Kind, any, error)
}

// LoadContext is passed to a Loader for the duration of one load. It lets
// formats that reference other assets load them through the cache.
type LoadContext struct {
	Path     string
	cache    *Cache
	deps     []string
	warnings []string
}

// Warn records a non-fatal problem found while loading. Warnings are
// logged once the load completes.
func (lc *LoadContext) Warn(msg string) {
	lc.warnings = append(lc.warnings, msg)
}

// Dependency loads ref, resolved relative to the asset being loaded. The
// dependency stays referenced until the dependent resource is evicted.
func (lc *LoadContext) Dependency(ref string) (*Resource, error) {
	key := Resolve(lc.Path, ref)
	if key == "" {
		return nil, loadError(ref, ErrNotFound, "invalid dependency path", nil)
	}
	res, err := lc.cache.load(key)
	if err != nil {
		return nil, err
	}
	lc.deps = append(lc.deps, key)
	return res, nil
}

type entry struct {
	res  *Resource
	deps []string
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithLoaders replaces the default loader set.
func WithLoaders(loaders ...Loader) Option {
	return func(c *Cache) {
		c.loaders = make(map[string]Loader)
		for _, l := range loaders {
			c.Register(l)
		}
	}
}

// WithStrictFrameLoads makes loads issued during a frame pass fail with
// ErrLoadInFrame instead of only logging a warning.
func WithStrictFrameLoads() Option {
	return func(c *Cache) { c.strict = true }
}

// DefaultLoaders returns the loaders for every built-in format.
func DefaultLoaders() []Loader {
	return []Loader{OBJLoader{}, MTLLoader{}, TextureLoader{}, SceneLoader{}}
}

// Cache deduplicates resources by canonical path. It is not safe for
// concurrent use; the engine only touches it from the frame goroutine.
type Cache struct {
	source  Source
	loaders map[string]Loader
	entries map[string]*entry
	loading map[string]bool
	log     *zap.Logger
	strict  bool
	inFrame bool
}

// NewCache creates a cache reading from source with the default loaders.
func NewCache(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:  source,
		loaders: make(map[string]Loader),
		entries: make(map[string]*entry),
		loading: make(map[string]bool),
		log:     zap.NewNop(),
	}
	for _, l := range DefaultLoaders() {
		c.Register(l)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds l for each of its extensions, replacing earlier loaders.
func (c *Cache) Register(l Loader) {
	for _, e := range l.Extensions() {
		c.loaders[e] = l
	}
}

// SetFrameActive marks whether a frame's process pass is running. Loads
// during the pass are reported since they make frame cost unpredictable.
func (c *Cache) SetFrameActive(active bool) {
	c.inFrame = active
}

// Load returns the cached resource for p, loading it on first request, and
// increments its reference count.
func (c *Cache) Load(p string) (*Resource, error) {
	key := Canonical(p)
	if key == "" {
		return nil, loadError(p, ErrNotFound, "invalid path", nil)
	}
	if c.inFrame {
		if c.strict {
			return nil, loadError(key, ErrLoadInFrame, "", nil)
		}
		c.log.Warn("resource loaded during frame pass", zap.String("path", key))
	}
	return c.load(key)
}

func (c *Cache) load(key string) (*Resource, error) {
	if e, ok := c.entries[key]; ok {
		e.res.refs++
		return e.res, nil
	}
	if c.loading[key] {
		return nil, loadError(key, ErrCycle, "", nil)
	}
	loader, ok := c.loaders[ext(key)]
	if !ok {
		return nil, loadError(key, ErrUnsupported, fmt.Sprintf("no loader for %q", ext(key)), nil)
	}
	if c.source == nil {
		return nil, loadError(key, ErrNotFound, "no source configured", nil)
	}
	data, err := c.source.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, loadError(key, ErrNotFound, "", nil)
		}
		return nil, loadError(key, ErrNotFound, "unreadable", err)
	}

	c.loading[key] = true
	lc := &LoadContext{Path: key, cache: c}
	kind, payload, err := loader.Load(lc, data)
	delete(c.loading, key)
	for _, w := range lc.warnings {
		c.log.Warn("resource load warning", zap.String("path", key), zap.String("warning", w))
	}
	if err != nil {
		c.releaseDeps(lc.deps)
		var le *LoadError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, loadError(key, ErrMalformed, "", err)
	}

	res := &Resource{path: key, kind: kind, payload: payload, refs: 1}
	c.entries[key] = &entry{res: res, deps: lc.deps}
	c.log.Debug("resource loaded",
		zap.String("path", key),
		zap.Stringer("kind", kind),
		zap.Int("deps", len(lc.deps)))
	return res, nil
}

// LoadOr loads p and returns fallback, after logging, when the load fails.
// The fallback is not reference counted; do not Unload p in that case.
func (c *Cache) LoadOr(p string, fallback *Resource) *Resource {
	res, err := c.Load(p)
	if err != nil {
		c.log.Warn("resource load failed, using fallback", zap.Error(err))
		return fallback
	}
	return res
}

// LoadAs loads p and asserts its payload type. On mismatch the reference
// taken by the load is dropped again.
func LoadAs[T any](c *Cache, p string) (T, *Resource, error) {
	var zero T
	res, err := c.Load(p)
	if err != nil {
		return zero, nil, err
	}
	v, ok := res.payload.(T)
	if !ok {
		_ = c.Unload(res.path)
		return zero, nil, loadError(res.path, ErrTypeMismatch, fmt.Sprintf("payload is %T", res.payload), nil)
	}
	return v, res, nil
}

// Unload decrements the reference count of p. At zero the resource is
// evicted, its payload released, and its dependencies unloaded.
func (c *Cache) Unload(p string) error {
	key := Canonical(p)
	e, ok := c.entries[key]
	if !ok {
		return loadError(p, ErrNotLoaded, "", nil)
	}
	e.res.refs--
	if e.res.refs > 0 {
		return nil
	}
	c.evict(key, e)
	return nil
}

func (c *Cache) evict(key string, e *entry) {
	delete(c.entries, key)
	e.res.refs = 0
	if r, ok := e.res.payload.(Releaser); ok {
		r.Release()
	}
	c.log.Debug("resource evicted", zap.String("path", key))
	c.releaseDeps(e.deps)
}

func (c *Cache) releaseDeps(deps []string) {
	for _, d := range deps {
		if err := c.Unload(d); err != nil {
			c.log.Warn("dependency unload failed", zap.Error(err))
		}
	}
}

// Peek returns the cached resource for p without taking a reference.
func (c *Cache) Peek(p string) (*Resource, bool) {
	e, ok := c.entries[Canonical(p)]
	if !ok {
		return nil, false
	}
	return e.res, true
}

// Refs returns the reference count of p, or 0 when it is not cached.
func (c *Cache) Refs(p string) int {
	if e, ok := c.entries[Canonical(p)]; ok {
		return e.res.refs
	}
	return 0
}

// Len returns the number of cached resources.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Paths returns the cached paths in sorted order.
func (c *Cache) Paths() []string {
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clear evicts every resource regardless of its reference count. Used at
// engine teardown.
func (c *Cache) Clear() {
	for key, e := range c.entries {
		delete(c.entries, key)
		e.res.refs = 0
		if r, ok := e.res.payload.(Releaser); ok {
			r.Release()
		}
	}
}
