// Package resource loads and deduplicates the immutable assets shared by
// scene nodes: meshes, material libraries, textures, and scene
// descriptions.
//
// Every asset is addressed by its canonical path. The first [Cache.Load]
// of a path reads it from a [Source], parses it with the [Loader]
// registered for its extension, and caches the result; later loads of the
// same path return the same [*Resource] and bump its reference count.
// [Cache.Unload] drops a reference and evicts the resource when the count
// reaches zero.
//
//	cache := resource.NewCache(resource.NewDirSource("assets"))
//	res, err := cache.Load("meshes/tree.obj")
//	if err != nil {
//		// *LoadError: missing or malformed asset, substitute a fallback
//	}
//	mesh := res.Payload().(*resource.Mesh)
//	defer cache.Unload("meshes/tree.obj")
package resource

import (
	"path"
	"strings"
)

// Kind identifies the payload type stored in a Resource.
type Kind uint8

const (
	KindUnknown         Kind = iota // payload type not known to the engine
	KindMesh                        // *Mesh
	KindMaterialLibrary             // *MaterialLibrary
	KindTexture                     // *Texture
	KindScene                       // *SceneDesc
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindMaterialLibrary:
		return "material_library"
	case KindTexture:
		return "texture"
	case KindScene:
		return "scene"
	default:
		return "unknown"
	}
}

// Resource is an immutable, reference-counted asset. The payload is never
// mutated after load and may be shared by any number of nodes.
type Resource struct {
	path    string
	kind    Kind
	payload any
	refs    int
}

// Path returns the canonical path the resource was loaded from.
func (r *Resource) Path() string { return r.path }

// Kind returns the payload kind.
func (r *Resource) Kind() Kind { return r.kind }

// Payload returns the parsed asset. Callers must treat it as read-only.
func (r *Resource) Payload() any { return r.payload }

// Refs returns the current reference count. Zero means the resource has
// been evicted.
func (r *Resource) Refs() int { return r.refs }

// NewStatic wraps a payload that was not loaded from a source, such as a
// fallback asset built in code. Static resources are never cached.
func NewStatic(name string, kind Kind, payload any) *Resource {
	return &Resource{path: name, kind: kind, payload: payload, refs: 1}
}

// Releaser is implemented by payloads holding memory that should be freed
// as soon as the resource is evicted.
type Releaser interface {
	Release()
}

// Canonical returns the cache key for p: slash-separated, cleaned, relative
// to the source root. It returns "" for paths that cannot name an asset.
func Canonical(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}

// ext returns the lower-case extension of p including the dot.
func ext(p string) string {
	return strings.ToLower(path.Ext(p))
}

// Resolve returns the canonical path of ref relative to the directory of
// base. Absolute-looking refs (leading "/") are resolved from the source
// root.
func Resolve(base, ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	if strings.HasPrefix(ref, "/") {
		return Canonical(strings.TrimPrefix(ref, "/"))
	}
	return Canonical(path.Join(path.Dir(base), ref))
}
