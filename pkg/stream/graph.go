package stream

import (
	"errors"
	"fmt"
	"slices"
)

// Graph validation errors.
var (
	ErrEmptyName     = errors.New("stream name is empty")
	ErrDuplicateName = errors.New("duplicate stream name")
	ErrUnknownParent = errors.New("unknown parent stream")
	ErrCycle         = errors.New("stream parent chain forms a cycle")
)

// Graph is a validated forest of definitions. Definitions live in a slice in
// declaration order and parents are referenced by index. A Graph is
// read-only after NewGraph returns.
type Graph struct {
	defs     []Definition
	parent   []int
	children [][]int
	roots    []int
	byName   map[string]int
}

// NewGraph validates defs and links them into a forest.
//
// Every Parent must name another definition, parent chains must terminate
// at a root, and each path placeholder must be a key that some ancestor
// contributes.
func NewGraph(defs ...Definition) (*Graph, error) {
	g := &Graph{
		defs:     make([]Definition, len(defs)),
		parent:   make([]int, len(defs)),
		children: make([][]int, len(defs)),
		byName:   make(map[string]int, len(defs)),
	}
	copy(g.defs, defs)

	for i := range g.defs {
		name := g.defs[i].Name
		if name == "" {
			return nil, fmt.Errorf("definition %d: %w", i, ErrEmptyName)
		}
		if _, dup := g.byName[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		g.byName[name] = i
	}

	for i := range g.defs {
		d := &g.defs[i]
		if d.IsRoot() {
			g.parent[i] = -1
			g.roots = append(g.roots, i)
			continue
		}
		p, ok := g.byName[d.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: %q (parent of %q)", ErrUnknownParent, d.Parent, d.Name)
		}
		g.parent[i] = p
		g.children[p] = append(g.children[p], i)
	}

	// A parent chain longer than the number of definitions must revisit a node.
	for i := range g.defs {
		steps := 0
		for p := g.parent[i]; p >= 0; p = g.parent[p] {
			steps++
			if steps > len(g.defs) {
				return nil, fmt.Errorf("%w: %q", ErrCycle, g.defs[i].Name)
			}
		}
	}

	for i := range g.defs {
		guaranteed := make(map[string]bool)
		for _, k := range g.GuaranteedKeys(i) {
			guaranteed[k] = true
		}
		for _, ph := range g.defs[i].Placeholders() {
			if !guaranteed[ph] {
				return nil, fmt.Errorf("%w: stream %q uses {%s} but no ancestor contributes it",
					ErrUnboundPlaceholder, g.defs[i].Name, ph)
			}
		}
	}

	return g, nil
}

// Len returns the number of definitions.
func (g *Graph) Len() int {
	return len(g.defs)
}

// Definition returns the definition at index i. Callers must not modify it.
func (g *Graph) Definition(i int) *Definition {
	return &g.defs[i]
}

// Index returns the index of the named definition.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// Roots returns the indices of root definitions in declaration order.
func (g *Graph) Roots() []int {
	return g.roots
}

// Children returns the indices of i's children in declaration order.
func (g *Graph) Children(i int) []int {
	return g.children[i]
}

// Parent returns the index of i's parent, or -1 for a root.
func (g *Graph) Parent(i int) int {
	return g.parent[i]
}

// Ancestors returns i's ancestors ordered from the root down, excluding i.
func (g *Graph) Ancestors(i int) []int {
	var chain []int
	for p := g.parent[i]; p >= 0; p = g.parent[p] {
		chain = append(chain, p)
	}
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	return chain
}

// GuaranteedKeys returns the Context keys every record of definition i is
// fetched with: the union of what its ancestors contribute, root first.
func (g *Graph) GuaranteedKeys(i int) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, a := range g.Ancestors(i) {
		for _, cf := range g.defs[a].Contributes {
			if !seen[cf.Key] {
				seen[cf.Key] = true
				keys = append(keys, cf.Key)
			}
		}
	}
	return keys
}

// KeyProperties returns the primary key of definition i's records: its
// guaranteed Context keys followed by its own key properties, without
// duplicates. Child identifiers are only unique within their parent.
func (g *Graph) KeyProperties(i int) []string {
	keys := g.GuaranteedKeys(i)
	for _, k := range g.defs[i].Keys() {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Walk visits definitions depth-first from each root, parents before
// children, siblings in declaration order.
func (g *Graph) Walk(fn func(i int)) {
	var visit func(i int)
	visit = func(i int) {
		fn(i)
		for _, c := range g.children[i] {
			visit(c)
		}
	}
	for _, r := range g.roots {
		visit(r)
	}
}

// Closure returns the named definitions together with all their ancestors.
// Unknown names are reported as an error.
func (g *Graph) Closure(names ...string) (map[int]bool, error) {
	out := make(map[int]bool)
	for _, n := range names {
		i, ok := g.byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown stream %q", n)
		}
		out[i] = true
		for p := g.parent[i]; p >= 0; p = g.parent[p] {
			out[p] = true
		}
	}
	return out, nil
}
