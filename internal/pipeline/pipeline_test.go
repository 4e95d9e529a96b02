package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kittclouds/taxomine/internal/config"
	"github.com/kittclouds/taxomine/internal/featurize"
	"github.com/kittclouds/taxomine/internal/store"
	"github.com/kittclouds/taxomine/internal/telemetry"
	"github.com/kittclouds/taxomine/pkg/sheaf"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const corpus = `Mammals are animals. Birds are animals too.
Dogs are mammals. Cats are mammals. Sparrows are birds.
Dogs chase cats. Mammals and birds are both animals.
A sparrow is a small bird; dogs bark at sparrows.
Cats and dogs are common mammals.`

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine.Primes = []uint64{3, 5}
	cfg.Engine.WindowSize = 6
	cfg.Engine.Overlap = 0.5
	cfg.Engine.Iterations = 16
	cfg.Engine.Workers = 2
	cfg.Featurizer.Vocabulary = []featurize.Term{
		{ID: "animal", Aliases: []string{"animals"}},
		{ID: "mammal", Aliases: []string{"mammals"}},
		{ID: "bird", Aliases: []string{"birds"}},
		{ID: "dog", Aliases: []string{"dogs"}},
		{ID: "cat", Aliases: []string{"cats"}},
		{ID: "sparrow", Aliases: []string{"sparrows"}},
	}
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	s := store.NewMemStore()
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	rep, err := Run(context.Background(), corpus, Options{
		Config:  testConfig(),
		Source:  "zoo.txt",
		Store:   s,
		Metrics: metrics,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, rep.Entities)
	assert.Len(t, sheaf.Partition(rep.Atoms, 6, 0.5), rep.Windows)
	assert.Empty(t, rep.Unresolved, "three anchors always satisfy two inliers")
	require.NotEmpty(t, rep.Sections)
	assert.Len(t, rep.Sections, len(rep.Cuts)+1, "each cut opens one section")

	covered := make(map[int]int)
	for _, sec := range rep.Sections {
		for _, w := range sec.Windows {
			covered[w]++
		}
		for _, n := range sec.Forest.Nodes {
			if n.Parent == "" {
				assert.Zero(t, n.Depth)
				continue
			}
			parent, ok := sec.Forest.Node(n.Parent)
			require.True(t, ok, "parent %s of %s is in the forest", n.Parent, n.Entity)
			assert.Less(t, parent.Level, n.Level)
			assert.Equal(t, parent.Depth+1, n.Depth)
		}
		assert.NotEmpty(t, sec.Newick)
	}
	for w := 0; w < rep.Windows; w++ {
		assert.Equal(t, 1, covered[w], "window %d belongs to exactly one section", w)
	}

	run, err := s.GetRun(rep.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "zoo.txt", run.Source)
	assert.Equal(t, len(rep.Sections), run.Sections)

	sections, err := s.ListSections(rep.RunID)
	require.NoError(t, err)
	require.Len(t, sections, len(rep.Sections))
	for i, sec := range sections {
		nodes, err := s.ListNodes(sec.ID)
		require.NoError(t, err)
		assert.Len(t, nodes, rep.Sections[i].Forest.Len())
		assert.Equal(t, rep.Sections[i].Newick, sec.Newick)
	}
	cuts, err := s.ListCuts(rep.RunID)
	require.NoError(t, err)
	assert.Len(t, cuts, len(rep.Cuts))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs))
	assert.Equal(t, float64(rep.Windows), testutil.ToFloat64(metrics.Windows))

	_, err = json.Marshal(rep)
	require.NoError(t, err)
}

func TestRunIsDeterministic(t *testing.T) {
	a, err := Run(context.Background(), corpus, Options{Config: testConfig()})
	require.NoError(t, err)
	b, err := Run(context.Background(), corpus, Options{Config: testConfig()})
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	require.Len(t, b.Sections, len(a.Sections))
	for i := range a.Sections {
		assert.Equal(t, a.Sections[i].Newick, b.Sections[i].Newick)
		assert.Equal(t, a.Sections[i].Forest.Nodes, b.Sections[i].Forest.Nodes)
	}
	assert.Equal(t, a.Cuts, b.Cuts)
}

func TestRunErrors(t *testing.T) {
	_, err := Run(context.Background(), "Nothing relates here.", Options{Config: testConfig()})
	assert.ErrorIs(t, err, featurize.ErrNoRelations)

	bad := testConfig()
	bad.Engine.Primes = []uint64{4}
	_, err = Run(context.Background(), corpus, Options{Config: bad})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, corpus, Options{Config: testConfig()})
	assert.ErrorIs(t, err, context.Canceled)
}
