// Package hierarchy assembles the ontology forest of a verified section.
// It performs no search: the forest is a pure function of the section's
// levels, inlier pairs and centralities.
package hierarchy

import (
	"sort"
	"strings"

	"github.com/kittclouds/taxomine/pkg/manifold"
	"github.com/kittclouds/taxomine/pkg/sheaf"
)

// Node is one entity of the forest. Parent is empty for roots.
type Node struct {
	Entity string `json:"entity"`
	Parent string `json:"parent,omitempty"`
	Depth  int    `json:"depth"`
	Level  int    `json:"level"`
}

// Forest is a set of rooted trees over a section's entities
type Forest struct {
	Nodes []Node `json:"nodes"`

	index    map[string]int
	children map[string][]string
}

// Assemble builds the forest for a glued section.
func Assemble(sec *sheaf.GlobalSection) *Forest {
	return Build(sec.Levels, sec.Centrality, sec.Pairs)
}

// Build picks a parent for every entity in levels. Eligible parents are the
// entity's inlier-pair neighbours at a strictly lower level. The nearest one
// wins (highest proximity), then the lowest level, then the higher
// centrality, then the smaller ID. Entities without an eligible parent are
// roots.
func Build(levels map[string]int, centrality map[string]float64, pairs []manifold.InlierPair) *Forest {
	neighbours := make(map[string][]manifold.InlierPair)
	for _, p := range pairs {
		neighbours[p.Parent] = append(neighbours[p.Parent], p)
		neighbours[p.Child] = append(neighbours[p.Child], p)
	}

	ids := make([]string, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parent := make(map[string]string, len(ids))
	for _, id := range ids {
		best, bestProx := "", -1
		for _, p := range neighbours[id] {
			other := p.Parent
			if other == id {
				other = p.Child
			}
			lo, ok := levels[other]
			if !ok || lo >= levels[id] {
				continue
			}
			if best == "" || closer(other, p.Proximity, best, bestProx, levels, centrality) {
				best, bestProx = other, p.Proximity
			}
		}
		parent[id] = best
	}

	f := &Forest{
		Nodes:    make([]Node, len(ids)),
		index:    make(map[string]int, len(ids)),
		children: make(map[string][]string),
	}
	depth := make(map[string]int, len(ids))
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		if p := parent[id]; p != "" {
			// parents sit strictly lower, so the chain terminates
			d = depthOf(p) + 1
		}
		depth[id] = d
		return d
	}

	for i, id := range ids {
		f.Nodes[i] = Node{Entity: id, Parent: parent[id], Depth: depthOf(id), Level: levels[id]}
		f.index[id] = i
		if p := parent[id]; p != "" {
			f.children[p] = append(f.children[p], id)
		}
	}
	return f
}

func closer(a string, proxA int, b string, proxB int, levels map[string]int, centrality map[string]float64) bool {
	if proxA != proxB {
		return proxA > proxB
	}
	if levels[a] != levels[b] {
		return levels[a] < levels[b]
	}
	if centrality[a] != centrality[b] {
		return centrality[a] > centrality[b]
	}
	return a < b
}

// Node returns the node for id.
func (f *Forest) Node(id string) (Node, bool) {
	i, ok := f.index[id]
	if !ok {
		return Node{}, false
	}
	return f.Nodes[i], true
}

// Roots returns the entities without a parent, sorted.
func (f *Forest) Roots() []string {
	var roots []string
	for _, n := range f.Nodes {
		if n.Parent == "" {
			roots = append(roots, n.Entity)
		}
	}
	return roots
}

// Children returns id's children, sorted.
func (f *Forest) Children(id string) []string {
	return f.children[id]
}

// Len returns the number of nodes
func (f *Forest) Len() int {
	return len(f.Nodes)
}

// Newick renders each tree in Newick format, one per line.
func (f *Forest) Newick() string {
	var b strings.Builder
	for i, root := range f.Roots() {
		if i > 0 {
			b.WriteByte('\n')
		}
		f.writeNewick(&b, root)
		b.WriteByte(';')
	}
	return b.String()
}

func (f *Forest) writeNewick(b *strings.Builder, id string) {
	if kids := f.children[id]; len(kids) > 0 {
		b.WriteByte('(')
		for i, c := range kids {
			if i > 0 {
				b.WriteByte(',')
			}
			f.writeNewick(b, c)
		}
		b.WriteByte(')')
	}
	b.WriteString(newickLabel(id))
}

func newickLabel(id string) string {
	if !strings.ContainsAny(id, " ()[]':;,") {
		return id
	}
	return "'" + strings.ReplaceAll(id, "'", "''") + "'"
}
