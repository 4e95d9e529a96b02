package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphBasics(t *testing.T) {
	g := NewGraph()

	g.EnsureNode("mammalia", 10)
	g.EnsureNode("eutheria", 6)
	g.EnsureNode("platypus", 1)

	if g.NodeCount() != 3 {
		t.Errorf("NodeCount = %d, want 3", g.NodeCount())
	}

	g.AddAtom(RelationAtom{A: "mammalia", B: "eutheria", Weight: 1})
	g.AddAtom(RelationAtom{A: "platypus", B: "mammalia", Weight: 2})

	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount = %d, want 2", g.EdgeCount())
	}

	assert.Equal(t, []string{"eutheria", "platypus"}, g.Neighbors("mammalia"))
	assert.Equal(t, []string{"mammalia"}, g.Neighbors("platypus"))
}

func TestAtomOrderIsIrrelevant(t *testing.T) {
	g := NewGraph()
	g.AddAtom(RelationAtom{A: "bat", B: "bird", Weight: 1})
	g.AddAtom(RelationAtom{A: "bird", B: "bat", Weight: 2.5})

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 3.5, g.Weight("bat", "bird"))
	assert.Equal(t, 3.5, g.Weight("bird", "bat"))
	assert.Equal(t, 2, g.Adjacent["bat"]["bird"].Count)

	k1 := RelationAtom{A: "bat", B: "bird"}.Key()
	k2 := RelationAtom{A: "bird", B: "bat"}.Key()
	assert.Equal(t, k1, k2)
	assert.Equal(t, "bat", k1.Lo)
	assert.Equal(t, "bird", k1.Other("bat"))
}

func TestRanked(t *testing.T) {
	g := NewGraph()
	g.EnsureNode("b", 1)
	g.EnsureNode("a", 1)
	g.EnsureNode("z", 5)

	assert.Equal(t, []string{"z", "a", "b"}, g.Ranked())
}

func TestPairsSorted(t *testing.T) {
	g := NewGraph()
	g.AddAtom(RelationAtom{A: "c", B: "a"})
	g.AddAtom(RelationAtom{A: "b", B: "a"})
	g.AddAtom(RelationAtom{A: "c", B: "b"})

	assert.Equal(t, []PairKey{{"a", "b"}, {"a", "c"}, {"b", "c"}}, g.Pairs())
}

func TestDegreeCentrality(t *testing.T) {
	g := NewGraph()
	g.AddAtom(RelationAtom{A: "hub", B: "x"})
	g.AddAtom(RelationAtom{A: "hub", B: "y"})
	g.EnsureNode("lonely", 0)

	dc := g.DegreeCentrality()
	assert.InDelta(t, 2.0/3.0, dc["hub"], 1e-9)
	assert.InDelta(t, 1.0/3.0, dc["x"], 1e-9)
	assert.Equal(t, 0.0, dc["lonely"])
	assert.Equal(t, []string{"lonely"}, g.OrphanNodes())
}

func TestBuildValidation(t *testing.T) {
	ents := []Entity{{ID: "a", Centrality: 1}, {ID: "b", Centrality: 2}}

	g, err := Build(ents, []RelationAtom{{A: "a", B: "b", Weight: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, g.Centrality("b"))

	tests := []struct {
		name     string
		entities []Entity
		atoms    []RelationAtom
		want     error
	}{
		{"empty", nil, nil, ErrEmptyEntities},
		{"unknown", ents, []RelationAtom{{A: "a", B: "c"}}, ErrUnknownEntity},
		{"negative weight", ents, []RelationAtom{{A: "a", B: "b", Weight: -1}}, ErrNegativeWeight},
		{"self", ents, []RelationAtom{{A: "a", B: "a"}}, ErrSelfRelation},
		{"duplicate", []Entity{{ID: "a"}, {ID: "a"}}, nil, ErrDuplicateEntity},
		{"negative centrality", []Entity{{ID: "a", Centrality: -1}}, nil, ErrNegativeCentrality},
		{"blank id", []Entity{{ID: ""}}, nil, ErrEmptyID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.entities, tt.atoms)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
