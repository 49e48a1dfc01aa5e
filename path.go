package arbor

import (
	"fmt"
	"strings"
)

// pathOf returns "/" followed by the names from the root down to n.
func (t *Tree) pathOf(n *Node) string {
	var names []string
	for p := n; p != nil; p = t.get(p.parent) {
		names = append(names, p.name)
	}
	var b strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(names[i])
	}
	return b.String()
}

// Path returns the absolute path of h, such as "/root/Level/Player".
func (t *Tree) Path(h Handle) (string, error) {
	n := t.get(h)
	if n == nil {
		return "", structural("Path", h.String(), ReasonDestroyed, "")
	}
	if !n.state.inTree() {
		return "", structural("Path", n.name, ReasonDetached, "")
	}
	return t.pathOf(n), nil
}

// Find resolves an absolute path. The first element names the root.
func (t *Tree) Find(path string) (Handle, bool) {
	if !strings.HasPrefix(path, "/") {
		return Handle{}, false
	}
	root := t.get(t.root)
	if root == nil {
		return Handle{}, false
	}
	first, rest, _ := strings.Cut(path[1:], "/")
	if first != root.name {
		return Handle{}, false
	}
	if rest == "" {
		return t.root, true
	}
	return t.Lookup(t.root, rest)
}

// Lookup resolves a path relative to from. Elements are child names, "."
// or "..". A path starting with "/" is resolved with Find.
func (t *Tree) Lookup(from Handle, rel string) (Handle, bool) {
	if strings.HasPrefix(rel, "/") {
		return t.Find(rel)
	}
	n := t.get(from)
	if n == nil {
		return Handle{}, false
	}
	for _, part := range strings.Split(rel, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			n = t.get(n.parent)
		default:
			n = t.childNamed(n, part)
		}
		if n == nil {
			return Handle{}, false
		}
	}
	return n.handle, true
}

func (t *Tree) childNamed(p *Node, name string) *Node {
	for _, h := range p.children {
		if c := t.get(h); c != nil && c.name == name {
			return c
		}
	}
	return nil
}

// FindChild returns the direct child of h called name.
func (t *Tree) FindChild(h Handle, name string) (Handle, bool) {
	n := t.get(h)
	if n == nil {
		return Handle{}, false
	}
	if c := t.childNamed(n, name); c != nil {
		return c.handle, true
	}
	return Handle{}, false
}

// Dump renders the tree as an indented outline, one node per line, with
// state, process mode, groups and components.
func (t *Tree) Dump() string {
	var b strings.Builder
	root := t.get(t.root)
	if root == nil {
		return ""
	}
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&b, "%s [%s]", n.name, n.state)
		if n.mode != ProcessInherit {
			fmt.Fprintf(&b, " mode=%s", n.mode)
		}
		if len(n.groups) > 0 {
			fmt.Fprintf(&b, " groups=%s", strings.Join(n.groups, ","))
		}
		if n.Renderable != nil {
			b.WriteString(" +renderable")
		}
		if n.Body != nil {
			b.WriteString(" +body")
		}
		if n.Camera != nil {
			b.WriteString(" +camera")
		}
		pos := n.local.Position
		if pos[0] != 0 || pos[1] != 0 || pos[2] != 0 {
			fmt.Fprintf(&b, " pos=(%g, %g, %g)", pos[0], pos[1], pos[2])
		}
		b.WriteByte('\n')
		for _, ch := range n.children {
			if c := t.get(ch); c != nil {
				visit(c, depth+1)
			}
		}
	}
	visit(root, 0)
	return b.String()
}
