package arbor

// NodesInGroup returns the linked nodes in the named group, in tree order.
func (t *Tree) NodesInGroup(group string) []Handle {
	var out []Handle
	t.Walk(func(n *Node) bool {
		if n.InGroup(group) {
			out = append(out, n.handle)
		}
		return true
	})
	return out
}

// CallGroup calls fn on every active node of the group in tree order.
// Structural changes made by fn are deferred like those made by hooks, and
// a panic in fn is isolated to that node. It returns the number of calls.
func (t *Tree) CallGroup(group string, fn func(n *Node)) int {
	members := t.NodesInGroup(group)
	t.busy++
	defer func() { t.busy-- }()
	calls := 0
	for _, h := range members {
		n := t.get(h)
		if n == nil || n.state != StateActive {
			continue
		}
		calls++
		t.guard(n, "CallGroup("+group+")", func() { fn(n) })
	}
	return calls
}
