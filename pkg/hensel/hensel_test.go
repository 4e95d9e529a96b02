package hensel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/hensel"
	"github.com/kittclouds/taxomine/pkg/manifold"
	"github.com/kittclouds/taxomine/pkg/padic"
	"github.com/kittclouds/taxomine/pkg/solver"
)

func solved(t *testing.T, prime uint64, precision int) *manifold.LocalManifold {
	t.Helper()
	cfg := solver.DefaultConfig()
	cfg.Prime = prime
	cfg.Precision = precision
	cfg.Iterations = 16
	cfg.Workers = 2

	p := solver.Problem{
		Entities: []graph.Entity{
			{ID: "vertebrate", Centrality: 12},
			{ID: "mammal", Centrality: 8},
			{ID: "reptile", Centrality: 7},
			{ID: "dog", Centrality: 2},
			{ID: "horse", Centrality: 2},
			{ID: "lizard", Centrality: 1},
		},
		Atoms: []graph.RelationAtom{
			{A: "vertebrate", B: "mammal", Weight: 2},
			{A: "vertebrate", B: "reptile", Weight: 2},
			{A: "mammal", B: "dog", Weight: 1},
			{A: "horse", B: "mammal", Weight: 1},
			{A: "reptile", B: "lizard", Weight: 1},
		},
	}
	m, err := solver.New(cfg).Solve(context.Background(), p)
	require.NoError(t, err)
	return m
}

func TestLiftPreservesVerifiedProximity(t *testing.T) {
	m := solved(t, 5, 3)
	before := make(map[string]uint64, len(m.Coordinates.Residues))
	for id, x := range m.Coordinates.Residues {
		before[id] = x
	}

	lifted, err := hensel.NewRefiner(hensel.DefaultConfig()).Lift(m, 6)
	require.NoError(t, err)

	assert.Equal(t, 6, lifted.Precision)
	assert.Equal(t, m.Inliers, lifted.Inliers)
	require.Len(t, lifted.Pairs, len(m.Pairs))

	for i, p := range lifted.Pairs {
		old := m.Pairs[i]
		assert.Equal(t, old.Parent, p.Parent)
		assert.Equal(t, old.Child, p.Child)
		assert.GreaterOrEqual(t, p.Proximity, old.Proximity, "%s-%s", p.Parent, p.Child)
		assert.GreaterOrEqual(t, p.Proximity, lifted.Tolerance)
	}

	mod := padic.MustPow(5, 3)
	for id, x := range lifted.Coordinates.Residues {
		assert.Equal(t, before[id], x%mod, "%s must extend its old residue", id)
		assert.Equal(t, m.Level(id), lifted.Level(id))
	}

	// the input manifold is untouched
	assert.Equal(t, before, m.Coordinates.Residues)
	assert.Equal(t, 3, m.Precision)
	assert.Equal(t, 0, lifted.LipschitzViolations)
}

func TestLiftModPToModPSquared(t *testing.T) {
	m := solved(t, 7, 2)
	lifted, err := hensel.NewRefiner(hensel.DefaultConfig()).Lift(m, 4)
	require.NoError(t, err)

	for _, p := range lifted.Pairs {
		assert.GreaterOrEqual(t, lifted.Coordinates.Proximity(p.Parent, p.Child), m.Tolerance)
	}
}

// congested puts n unrelated entities on the same residue.
func congested(t *testing.T, prime uint64, ids ...string) *manifold.LocalManifold {
	t.Helper()
	coords, err := manifold.NewCoordinates(prime, 2)
	require.NoError(t, err)
	g := graph.NewGraph()
	for i, id := range ids {
		g.EnsureNode(id, float64(len(ids)-i))
		coords.Place(id, 0, 1)
	}
	return manifold.Build(coords, nil, g, manifold.Params{Tolerance: 1, HierarchyWeight: 2})
}

func TestLiftSeparatesCongestion(t *testing.T) {
	m := congested(t, 3, "a", "b", "c")

	lifted, err := hensel.NewRefiner(hensel.DefaultConfig()).Lift(m, 3)
	require.NoError(t, err)

	seen := make(map[uint64]string)
	for _, id := range []string{"a", "b", "c"} {
		x := lifted.Coordinates.Residues[id]
		assert.Empty(t, seen[x], "%s collides with %s", id, seen[x])
		seen[x] = id
	}
	assert.Equal(t, uint64(1), lifted.Coordinates.Residues["a"])
	assert.Equal(t, uint64(10), lifted.Coordinates.Residues["b"])
	assert.Equal(t, uint64(19), lifted.Coordinates.Residues["c"])
}

func TestLiftSeparatesCongestedAnchors(t *testing.T) {
	coords, err := manifold.NewCoordinates(5, 3)
	require.NoError(t, err)
	g := graph.NewGraph()
	g.EnsureNode("vertebrate", 12)
	g.EnsureNode("dog", 2)
	g.EnsureNode("horse", 2)
	g.EnsureNode("lizard", 1)
	coords.Place("vertebrate", 0, 1)
	for _, id := range []string{"dog", "horse", "lizard"} {
		coords.Place(id, 2, 1)
	}
	m := manifold.Build(coords, []string{"vertebrate", "horse", "lizard"}, g,
		manifold.Params{Tolerance: 1, HierarchyWeight: 2})
	require.Equal(t, uint64(25), m.Coordinates.Residues["horse"])

	lifted, err := hensel.NewRefiner(hensel.DefaultConfig()).Lift(m, 6)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), lifted.Coordinates.Residues["vertebrate"])
	assert.Equal(t, uint64(25), lifted.Coordinates.Residues["dog"])
	assert.Equal(t, uint64(150), lifted.Coordinates.Residues["horse"])
	assert.Equal(t, uint64(275), lifted.Coordinates.Residues["lizard"])
	for _, id := range []string{"dog", "horse", "lizard"} {
		assert.Equal(t, 2, lifted.Level(id), id)
	}
	assert.Empty(t, lifted.LowConfidence)
	assert.Equal(t, padic.MustPow(5, 6), lifted.Polynomial.Mod)
	assert.Equal(t, uint64(0), lifted.Polynomial.Eval(1))
	assert.Equal(t, 0, lifted.LipschitzViolations)
}

func TestLiftReportsPartial(t *testing.T) {
	m := congested(t, 3, "a", "b", "c", "d")

	lifted, err := hensel.NewRefiner(hensel.DefaultConfig()).Lift(m, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hensel.ErrPartialLift))

	var partial *hensel.PartialLiftError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, map[string]int{"d": 2}, partial.Reached)
	assert.Contains(t, err.Error(), "d@2")

	require.NotNil(t, lifted)
	assert.Equal(t, 2, lifted.Coordinates.PrecisionOf("d"))
	assert.Equal(t, 3, lifted.Coordinates.PrecisionOf("c"))
	assert.Equal(t, map[string]int{"d": 2}, lifted.LowConfidence)
}

func TestLiftRejectsLowerTarget(t *testing.T) {
	m := congested(t, 3, "a")
	_, err := hensel.NewRefiner(hensel.DefaultConfig()).Lift(m, 2)
	assert.ErrorIs(t, err, hensel.ErrInvalidTarget)
}
