package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// flag values live in package variables and survive between executions
	configPath, verbose = "", false
	analyzeDB, analyzeFormat, analyzeOut, analyzeMetrics = "", "json", "", false
	runsDB, showNodes = "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCRTCommand(t *testing.T) {
	out, err := execute(t, "crt", "2:3", "3:5")
	require.NoError(t, err)
	assert.Equal(t, "8 (mod 15)\n", out)

	_, err = execute(t, "crt", "2:4", "3:6")
	assert.Error(t, err)

	_, err = execute(t, "crt", "nonsense")
	assert.Error(t, err)
}

const testConfigYAML = `engine:
  primes: [3, 5]
  window_size: 6
  iterations: 16
  workers: 2
featurizer:
  vocabulary:
    - id: animal
      aliases: [animals]
    - id: mammal
      aliases: [mammals]
    - id: dog
      aliases: [dogs]
    - id: cat
      aliases: [cats]
logging:
  level: warn
`

func TestAnalyzePersistsAndLists(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "zoo.txt")
	conf := filepath.Join(dir, "taxomine.yaml")
	db := filepath.Join(dir, "runs.db")
	require.NoError(t, os.WriteFile(corpus,
		[]byte("Mammals are animals. Dogs are mammals. Cats are mammals. Dogs chase cats."), 0644))
	require.NoError(t, os.WriteFile(conf, []byte(testConfigYAML), 0644))

	out, err := execute(t, "--config", conf, "analyze", corpus, "--format", "newick", "--db", db)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), ";"), "newick output: %q", out)

	out, err = execute(t, "--config", conf, "runs", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, "header and one run")
	runID := strings.Fields(lines[1])[0]

	out, err = execute(t, "--config", conf, "show", runID, "--db", db, "--nodes")
	require.NoError(t, err)
	assert.Contains(t, out, "run "+runID)
	assert.Contains(t, out, "section 0")

	_, err = execute(t, "--config", conf, "show", "missing", "--db", db)
	assert.Error(t, err)
}

func TestAnalyzeRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "zoo.txt")
	require.NoError(t, os.WriteFile(corpus, []byte("dogs cats"), 0644))

	_, err := execute(t, "analyze", corpus, "--format", "xml")
	assert.Error(t, err)
}
