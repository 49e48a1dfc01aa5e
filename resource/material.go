package resource

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Material is a PBR-style surface description.
type Material struct {
	Name      string
	Albedo    [4]float32 // RGBA, from Kd and d/Tr
	Specular  float32
	Roughness float32

	// Texture paths are canonical and resolved relative to the library.
	// They are not loaded with the library; consumers load them on demand.
	AlbedoTexture    string
	NormalTexture    string
	RoughnessTexture string
	AlphaTexture     string
}

func newMaterial(name string) *Material {
	return &Material{
		Name:      name,
		Albedo:    [4]float32{1, 1, 1, 1},
		Specular:  0.5,
		Roughness: 0.5,
	}
}

// MaterialLibrary is the set of materials declared by one MTL file, in
// declaration order.
type MaterialLibrary struct {
	Materials map[string]*Material
	Order     []string
}

// Get returns the named material.
func (l *MaterialLibrary) Get(name string) (*Material, bool) {
	if l == nil {
		return nil, false
	}
	m, ok := l.Materials[name]
	return m, ok
}

// MTLLoader parses Wavefront MTL material libraries.
type MTLLoader struct{}

// Extensions implements Loader.
func (MTLLoader) Extensions() []string { return []string{".mtl"} }

// Load implements Loader.
func (MTLLoader) Load(ctx *LoadContext, data []byte) (Kind, any, error) {
	lib := &MaterialLibrary{Materials: map[string]*Material{}}
	var current *Material

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		bad := func(err error) error {
			return loadError(ctx.Path, ErrMalformed, fmt.Sprintf("line %d: %s", lineNo, tokens[0]), err)
		}

		if tokens[0] == "newmtl" {
			if len(tokens) < 2 {
				return KindUnknown, nil, bad(fmt.Errorf("missing material name"))
			}
			name := strings.Join(tokens[1:], " ")
			current = newMaterial(name)
			if _, dup := lib.Materials[name]; !dup {
				lib.Order = append(lib.Order, name)
			}
			lib.Materials[name] = current
			continue
		}
		if current == nil {
			continue
		}

		switch tokens[0] {
		case "Kd":
			rgb, err := parseFloats(tokens[1:], 3)
			if err != nil {
				return KindUnknown, nil, bad(err)
			}
			copy(current.Albedo[:3], rgb)
		case "d":
			v, err := parseFloats(tokens[1:], 1)
			if err != nil {
				return KindUnknown, nil, bad(err)
			}
			current.Albedo[3] = v[0]
		case "Tr":
			v, err := parseFloats(tokens[1:], 1)
			if err != nil {
				return KindUnknown, nil, bad(err)
			}
			current.Albedo[3] = 1 - v[0]
		case "Ks":
			v, err := parseFloats(tokens[1:], 1)
			if err != nil {
				return KindUnknown, nil, bad(err)
			}
			current.Specular = v[0]
		case "Ns":
			v, err := parseFloats(tokens[1:], 1)
			if err != nil {
				return KindUnknown, nil, bad(err)
			}
			current.Roughness = 1 - min(v[0]/256, 1)
		case "map_Kd":
			current.AlbedoTexture = textureRef(ctx.Path, tokens)
		case "map_Bump", "bump", "map_bump":
			current.NormalTexture = textureRef(ctx.Path, tokens)
		case "map_Ns":
			current.RoughnessTexture = textureRef(ctx.Path, tokens)
		case "map_d":
			current.AlphaTexture = textureRef(ctx.Path, tokens)
		}
	}
	if err := sc.Err(); err != nil {
		return KindUnknown, nil, loadError(ctx.Path, ErrMalformed, "scan", err)
	}
	return KindMaterialLibrary, lib, nil
}

// textureRef takes the last token, skipping map options such as "-bm 1".
func textureRef(base string, tokens []string) string {
	if len(tokens) < 2 {
		return ""
	}
	return Resolve(base, tokens[len(tokens)-1])
}

func parseFloats(tokens []string, n int) ([]float32, error) {
	if len(tokens) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(tokens))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(tokens[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
