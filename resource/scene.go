package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SceneDesc is the parsed form of a .scene file: a JSON description of a
// node subtree. It is pure data; the engine turns it into nodes.
type SceneDesc struct {
	Root NodeDesc `json:"root"`
}

// NodeDesc describes one node and its children.
type NodeDesc struct {
	Name            string         `json:"name"`
	Position        [3]float64     `json:"position"`
	Rotation        [3]float64     `json:"rotation"` // Euler degrees, applied Y, then X, then Z
	Scale           *[3]float64    `json:"scale,omitempty"`
	TopLevel        bool           `json:"topLevel,omitempty"`
	NotifyTransform bool           `json:"notifyTransform,omitempty"`
	ProcessMode     string         `json:"processMode,omitempty"`
	Groups          []string       `json:"groups,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	Behavior        string         `json:"behavior,omitempty"` // name registered with the engine

	Mesh     *MeshDesc     `json:"mesh,omitempty"`
	Collider *ColliderDesc `json:"collider,omitempty"`
	Camera   *CameraDesc   `json:"camera,omitempty"`

	Children []NodeDesc `json:"children,omitempty"`
}

// MeshDesc attaches a renderable component.
type MeshDesc struct {
	Path     string      `json:"path"`
	Material string      `json:"material,omitempty"` // material name in the mesh's library
	Color    *[4]float32 `json:"color,omitempty"`
	Hidden   bool        `json:"hidden,omitempty"`
	Layer    uint32      `json:"layer,omitempty"`
}

// ColliderDesc attaches a physics body component.
type ColliderDesc struct {
	Shape    string     `json:"shape"` // box, sphere, capsule, plane
	Extents  [3]float64 `json:"extents,omitempty"`
	Radius   float64    `json:"radius,omitempty"`
	Height   float64    `json:"height,omitempty"`
	Body     string     `json:"body,omitempty"` // static (default), kinematic, rigid, area
	Layer    uint32     `json:"layer,omitempty"`
	Mask     uint32     `json:"mask,omitempty"`
	Disabled bool       `json:"disabled,omitempty"`
}

// CameraDesc attaches a camera component.
type CameraDesc struct {
	FOV     float64 `json:"fov,omitempty"` // vertical, degrees
	Near    float64 `json:"near,omitempty"`
	Far     float64 `json:"far,omitempty"`
	Current bool    `json:"current,omitempty"`
}

// Valid shape, body and process mode names accepted in scene files.
var (
	SceneShapes       = []string{"box", "sphere", "capsule", "plane"}
	SceneBodies       = []string{"", "static", "kinematic", "rigid", "area"}
	SceneProcessModes = []string{"", "inherit", "pausable", "when_paused", "always", "disabled"}
)

// SceneLoader parses .scene files.
type SceneLoader struct{}

// Extensions implements Loader.
func (SceneLoader) Extensions() []string { return []string{".scene"} }

// Load implements Loader.
func (SceneLoader) Load(ctx *LoadContext, data []byte) (Kind, any, error) {
	var desc SceneDesc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&desc); err != nil {
		return KindUnknown, nil, loadError(ctx.Path, ErrMalformed, "parse scene", err)
	}
	if err := validateNode(&desc.Root, "/"); err != nil {
		return KindUnknown, nil, loadError(ctx.Path, ErrMalformed, err.Error(), nil)
	}
	return KindScene, &desc, nil
}

func validateNode(n *NodeDesc, parentPath string) error {
	n.Name = strings.TrimSpace(n.Name)
	if n.Name == "" {
		return fmt.Errorf("node under %s has no name", parentPath)
	}
	if strings.ContainsAny(n.Name, "/.") {
		return fmt.Errorf("node name %q contains '/' or '.'", n.Name)
	}
	p := parentPath + n.Name
	if !oneOf(n.ProcessMode, SceneProcessModes) {
		return fmt.Errorf("%s: unknown process mode %q", p, n.ProcessMode)
	}
	if n.Mesh != nil && Canonical(n.Mesh.Path) == "" {
		return fmt.Errorf("%s: mesh has no path", p)
	}
	if c := n.Collider; c != nil {
		if !oneOf(c.Shape, SceneShapes) {
			return fmt.Errorf("%s: unknown collider shape %q", p, c.Shape)
		}
		if !oneOf(c.Body, SceneBodies) {
			return fmt.Errorf("%s: unknown body kind %q", p, c.Body)
		}
	}
	seen := make(map[string]bool, len(n.Children))
	for i := range n.Children {
		c := &n.Children[i]
		if err := validateNode(c, p+"/"); err != nil {
			return err
		}
		if seen[c.Name] {
			return fmt.Errorf("%s: duplicate child name %q", p, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
