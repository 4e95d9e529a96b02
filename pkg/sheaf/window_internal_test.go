package sheaf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/taxomine/pkg/adelic"
	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/manifold"
)

func twoFieldWindow(t *testing.T) *Window {
	t.Helper()
	g := graph.NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.EnsureNode(id, 1)
	}
	params := manifold.Params{Tolerance: 1, HierarchyWeight: 2}

	five, err := manifold.NewCoordinates(5, 2)
	require.NoError(t, err)
	five.Place("a", 0, 1)
	five.Place("b", 1, 2)
	five.Place("c", 0, 3)

	seven, err := manifold.NewCoordinates(7, 2)
	require.NoError(t, err)
	seven.Place("a", 0, 1)
	seven.Place("b", 1, 2)

	return &Window{
		Entities: []string{"a", "b", "c"},
		Primary:  5,
		Manifolds: map[uint64]*manifold.LocalManifold{
			5: manifold.Build(five, []string{"a"}, g, params),
			7: manifold.Build(seven, []string{"a"}, g, params),
		},
	}
}

func TestWindowCoordinatesUseProjections(t *testing.T) {
	w := twoFieldWindow(t)
	require.NoError(t, w.integrate())
	require.NotNil(t, w.Adelic)
	assert.True(t, w.Adelic.IsExcluded("c"))

	views := w.Coordinates([]uint64{5, 7})
	require.Len(t, views, 2)
	for _, p := range []uint64{5, 7} {
		assert.NotContains(t, views[p].Residues, "c", "p=%d", p)
		assert.Equal(t, w.Manifolds[p].Coordinates.Residues["a"], views[p].Residues["a"])
		assert.Equal(t, w.Manifolds[p].Coordinates.Residues["b"], views[p].Residues["b"])
	}
}

func TestWindowIntegrateSurfacesErrors(t *testing.T) {
	w := twoFieldWindow(t)
	w.Manifolds[11] = w.Manifolds[7]

	err := w.integrate()
	assert.ErrorIs(t, err, adelic.ErrPrimeMismatch)
	assert.Nil(t, w.Adelic)

	// without integration the fitted coordinates are used as they are
	views := w.Coordinates([]uint64{5, 7})
	assert.Contains(t, views[5].Residues, "c")
}
