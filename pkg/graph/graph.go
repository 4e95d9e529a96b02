// Package graph provides the undirected relation graph the engine works on.
// Entities and relation atoms arrive from an external featurizer; the graph
// only stores them, merges duplicate pairs and answers neighbourhood queries.
// It never assigns direction.
package graph

import (
	"fmt"
	"math"
	"sort"
)

// Entity is an opaque identifier plus its externally supplied centrality.
type Entity struct {
	ID         string  `json:"id"`
	Centrality float64 `json:"centrality"`
}

// RelationAtom is an unordered, weighted association between two entities.
type RelationAtom struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
}

// Key returns the canonical form of the atom's pair.
func (r RelationAtom) Key() PairKey {
	return NewPairKey(r.A, r.B)
}

// PairKey is an unordered pair in canonical (Lo <= Hi) order.
type PairKey struct {
	Lo string `json:"lo"`
	Hi string `json:"hi"`
}

func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Lo: a, Hi: b}
}

// Other returns the endpoint of the pair that is not id.
func (k PairKey) Other(id string) string {
	if k.Lo == id {
		return k.Hi
	}
	return k.Lo
}

// Node is an entity inside the graph
type Node struct {
	ID         string  `json:"id"`
	Centrality float64 `json:"centrality"`
}

// Edge aggregates every atom seen for one pair
type Edge struct {
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}

// RelationGraph is an undirected weighted graph
type RelationGraph struct {
	// Node storage: ID -> Node
	Nodes map[string]*Node `json:"nodes"`

	// Symmetric adjacency: ID -> neighbour ID -> shared edge
	Adjacent map[string]map[string]*Edge `json:"adjacent"`
}

// NewGraph creates an empty graph
func NewGraph() *RelationGraph {
	return &RelationGraph{
		Nodes:    make(map[string]*Node),
		Adjacent: make(map[string]map[string]*Edge),
	}
}

// Build validates entities and atoms and assembles a graph from them.
// Duplicate atoms for the same pair are merged by summing weights.
func Build(entities []Entity, atoms []RelationAtom) (*RelationGraph, error) {
	if len(entities) == 0 {
		return nil, ErrEmptyEntities
	}
	g := NewGraph()
	for _, e := range entities {
		if e.ID == "" {
			return nil, ErrEmptyID
		}
		if e.Centrality < 0 || math.IsNaN(e.Centrality) {
			return nil, fmt.Errorf("entity %q: %w", e.ID, ErrNegativeCentrality)
		}
		if _, dup := g.Nodes[e.ID]; dup {
			return nil, fmt.Errorf("entity %q: %w", e.ID, ErrDuplicateEntity)
		}
		g.EnsureNode(e.ID, e.Centrality)
	}
	for i, a := range atoms {
		if err := g.validateAtom(a); err != nil {
			return nil, fmt.Errorf("atom %d (%s, %s): %w", i, a.A, a.B, err)
		}
		g.AddAtom(a)
	}
	return g, nil
}

func (g *RelationGraph) validateAtom(a RelationAtom) error {
	if g.Nodes[a.A] == nil {
		return fmt.Errorf("%q: %w", a.A, ErrUnknownEntity)
	}
	if g.Nodes[a.B] == nil {
		return fmt.Errorf("%q: %w", a.B, ErrUnknownEntity)
	}
	if a.A == a.B {
		return ErrSelfRelation
	}
	if a.Weight < 0 || math.IsNaN(a.Weight) {
		return ErrNegativeWeight
	}
	return nil
}

// EnsureNode adds a node if it doesn't exist, returns existing node otherwise
func (g *RelationGraph) EnsureNode(id string, centrality float64) *Node {
	if existing, exists := g.Nodes[id]; exists {
		return existing
	}
	node := &Node{ID: id, Centrality: centrality}
	g.Nodes[id] = node
	return node
}

// AddAtom records an undirected association, merging with any existing edge
// for the same pair. Both (A,B) and (B,A) land on the same edge.
func (g *RelationGraph) AddAtom(a RelationAtom) {
	g.EnsureNode(a.A, 0)
	g.EnsureNode(a.B, 0)

	edge := g.Adjacent[a.A][a.B]
	if edge == nil {
		edge = &Edge{}
		if g.Adjacent[a.A] == nil {
			g.Adjacent[a.A] = make(map[string]*Edge)
		}
		if g.Adjacent[a.B] == nil {
			g.Adjacent[a.B] = make(map[string]*Edge)
		}
		g.Adjacent[a.A][a.B] = edge
		g.Adjacent[a.B][a.A] = edge
	}
	edge.Weight += a.Weight
	edge.Count++
}

// Centrality returns the node's centrality, or 0 when absent.
func (g *RelationGraph) Centrality(id string) float64 {
	if n := g.Nodes[id]; n != nil {
		return n.Centrality
	}
	return 0
}

// Weight returns the merged weight between a and b (0 when unrelated).
func (g *RelationGraph) Weight(a, b string) float64 {
	if e := g.Adjacent[a][b]; e != nil {
		return e.Weight
	}
	return 0
}

// Neighbors returns the IDs adjacent to id in lexicographic order
func (g *RelationGraph) Neighbors(id string) []string {
	out := make([]string, 0, len(g.Adjacent[id]))
	for other := range g.Adjacent[id] {
		out = append(out, other)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of nodes
func (g *RelationGraph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of distinct undirected pairs
func (g *RelationGraph) EdgeCount() int {
	count := 0
	for _, targets := range g.Adjacent {
		count += len(targets)
	}
	return count / 2
}

// Pairs returns every distinct pair in canonical order.
func (g *RelationGraph) Pairs() []PairKey {
	var out []PairKey
	for a, targets := range g.Adjacent {
		for b := range targets {
			if a < b {
				out = append(out, PairKey{Lo: a, Hi: b})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lo != out[j].Lo {
			return out[i].Lo < out[j].Lo
		}
		return out[i].Hi < out[j].Hi
	})
	return out
}

// Ranked returns node IDs ordered by centrality (descending), then ID.
// This is the canonical processing order used throughout the engine.
func (g *RelationGraph) Ranked() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := g.Nodes[ids[i]].Centrality, g.Nodes[ids[j]].Centrality
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// DegreeCentrality computes deg/(n-1) for each node
func (g *RelationGraph) DegreeCentrality() map[string]float64 {
	n := len(g.Nodes)
	result := make(map[string]float64, n)
	if n <= 1 {
		for id := range g.Nodes {
			result[id] = 0.0
		}
		return result
	}

	normalizer := float64(n - 1)
	for id := range g.Nodes {
		result[id] = float64(len(g.Adjacent[id])) / normalizer
	}
	return result
}

// OrphanNodes returns the IDs of nodes with no connections, sorted
func (g *RelationGraph) OrphanNodes() []string {
	var orphans []string
	for id := range g.Nodes {
		if len(g.Adjacent[id]) == 0 {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return orphans
}
