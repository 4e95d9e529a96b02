package store

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Store Factory for Testing Both Implementations
// =============================================================================

// storeFactory creates a store for testing.
// We test both MemStore and SQLiteStore with the same test suite.
type storeFactory func() (Storer, error)

func memStoreFactory() (Storer, error) {
	return NewMemStore(), nil
}

func sqliteStoreFactory() (Storer, error) {
	return NewSQLiteStore()
}

// runTestsForAllStores runs a test function against both store implementations.
func runTestsForAllStores(t *testing.T, testName string, testFn func(t *testing.T, store Storer)) {
	factories := map[string]storeFactory{
		"MemStore":    memStoreFactory,
		"SQLiteStore": sqliteStoreFactory,
	}

	for name, factory := range factories {
		t.Run(name+"/"+testName, func(t *testing.T) {
			store, err := factory()
			require.NoError(t, err, "Failed to create store")
			defer store.Close()
			testFn(t, store)
		})
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRunSaveAndGet(t *testing.T) {
	runTestsForAllStores(t, "SaveAndGet", func(t *testing.T, store Storer) {
		run := &Run{
			Source:     "zoo.txt",
			Config:     `{"primes":[3,5,7]}`,
			Entities:   12,
			Atoms:      40,
			Windows:    3,
			Sections:   2,
			Cuts:       1,
			DurationMs: 15,
			CreatedAt:  time.Now().UnixMilli(),
		}
		require.NoError(t, store.SaveRun(run))
		_, err := uuid.Parse(run.ID)
		require.NoError(t, err, "an empty ID is filled with a UUID")

		got, err := store.GetRun(run.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, run, got)

		run.Cuts = 0
		require.NoError(t, store.SaveRun(run))
		got, err = store.GetRun(run.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Cuts)
	})
}

func TestRunGetNotFound(t *testing.T) {
	runTestsForAllStores(t, "GetNotFound", func(t *testing.T, store Storer) {
		run, err := store.GetRun("nonexistent")
		require.NoError(t, err, "GetRun for nonexistent should not error")
		assert.Nil(t, run)
	})
}

func TestListRunsNewestFirst(t *testing.T) {
	runTestsForAllStores(t, "ListNewestFirst", func(t *testing.T, store Storer) {
		require.NoError(t, store.SaveRun(&Run{ID: "old", CreatedAt: 100}))
		require.NoError(t, store.SaveRun(&Run{ID: "new", CreatedAt: 200}))

		runs, err := store.ListRuns()
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "new", runs[0].ID)
		assert.Equal(t, "old", runs[1].ID)
	})
}

// =============================================================================
// Section and Node Tests
// =============================================================================

func TestSections(t *testing.T) {
	runTestsForAllStores(t, "Sections", func(t *testing.T, store Storer) {
		second := &Section{RunID: "run-1", Index: 1, Windows: []int{3}, Newick: "b;"}
		first := &Section{
			RunID:               "run-1",
			Index:               0,
			Windows:             []int{0, 1, 2},
			Energy:              0.25,
			Consistency:         1,
			LipschitzViolations: 2,
			Newick:              "(Eutheria,Platypus)Mammalia;",
		}
		require.NoError(t, store.SaveSection(second))
		require.NoError(t, store.SaveSection(first))
		require.NoError(t, store.SaveSection(&Section{RunID: "run-2"}))

		sections, err := store.ListSections("run-1")
		require.NoError(t, err)
		require.Len(t, sections, 2)
		assert.Equal(t, first, sections[0])
		assert.Equal(t, second, sections[1])
	})
}

func TestNodesReplaceAndOrder(t *testing.T) {
	runTestsForAllStores(t, "Nodes", func(t *testing.T, store Storer) {
		nodes := []*Node{
			{Entity: "Platypus", Parent: "Mammalia", Depth: 1, Level: 1, Centrality: 1, LowConfidence: 3},
			{Entity: "Mammalia", Depth: 0, Level: 0, Centrality: 10, Composite: math.MaxUint64 - 1},
			{Entity: "Eutheria", Parent: "Mammalia", Depth: 1, Level: 1, Centrality: 6},
		}
		require.NoError(t, store.SaveNodes("sec-1", nodes))

		got, err := store.ListNodes("sec-1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"Mammalia", "Eutheria", "Platypus"},
			[]string{got[0].Entity, got[1].Entity, got[2].Entity})
		assert.Equal(t, uint64(math.MaxUint64-1), got[0].Composite, "composite keeps the full range")
		assert.Equal(t, "sec-1", got[2].SectionID)
		assert.Equal(t, 3, got[2].LowConfidence)

		require.NoError(t, store.SaveNodes("sec-1", nodes[:1]))
		got, err = store.ListNodes("sec-1")
		require.NoError(t, err)
		assert.Len(t, got, 1)

		empty, err := store.ListNodes("missing")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

// =============================================================================
// Cut Tests
// =============================================================================

func TestCuts(t *testing.T) {
	runTestsForAllStores(t, "Cuts", func(t *testing.T, store Storer) {
		cuts := []*Cut{
			{Before: 3, After: 4, Disagreements: []string{"level p=5 x: 1 != 2"}},
			{Before: 0, After: 1, Disagreements: []string{"proximity p=5 (Bat, Bird): 1 != 0"}},
		}
		require.NoError(t, store.SaveCuts("run-1", cuts))

		got, err := store.ListCuts("run-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].After)
		assert.Equal(t, "run-1", got[0].RunID)
		assert.Equal(t, []string{"proximity p=5 (Bat, Bird): 1 != 0"}, got[0].Disagreements)

		none, err := store.ListCuts("run-2")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestSQLiteStoreFile(t *testing.T) {
	path := t.TempDir() + "/runs.db"

	s, err := NewSQLiteStoreWithDSN(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(&Run{ID: "persisted", CreatedAt: 1}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStoreWithDSN(path)
	require.NoError(t, err)
	defer s.Close()

	run, err := s.GetRun("persisted")
	require.NoError(t, err)
	require.NotNil(t, run)
}

func TestSQLiteStoreOpensInMemory(t *testing.T) {
	s, err := NewSQLiteStore()
	require.NoError(t, err)
	defer s.Close()

	var version string
	require.NoError(t, s.db.QueryRow(`SELECT sqlite_version()`).Scan(&version))
	assert.NotEmpty(t, version)
}

func TestSQLiteListCutsCorruptColumn(t *testing.T) {
	s, err := NewSQLiteStore()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO cuts (run_id, before_window, after_window, disagreements)
		VALUES ('run-1', 0, 1, 'not json')`)
	require.NoError(t, err)

	cuts, err := s.ListCuts("run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cut 1 disagreements")
	assert.Nil(t, cuts)
}
