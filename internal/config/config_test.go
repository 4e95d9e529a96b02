package config

import (
	"testing"
	"time"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/taxomine/pkg/sheaf"
	"github.com/kittclouds/taxomine/pkg/solver"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	sc := cfg.ScanConfig(nil)
	assert.Equal(t, []uint64{3, 5, 7}, sc.Primes)
	assert.Equal(t, "ransac", sc.Kernel.Name())
	assert.Equal(t, 16, sc.Solver.Patience)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)

	yml := `
engine:
  primes: [2, 3]
  window_size: 20
  kernel: heuristic
  target_precision: 8
  timeout: 30s
featurizer:
  centrality: degree
  vocabulary:
    - id: dog
      aliases: [dogs, hound]
store:
  dsn: runs.db
logging:
  level: debug
`
	require.NoError(t, hackpadfs.WriteFullFile(fs, "taxomine.yaml", []byte(yml), 0644))

	cfg, err := LoadFromFile(fs, "taxomine.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []uint64{2, 3}, cfg.Engine.Primes)
	assert.Equal(t, 20, cfg.Engine.WindowSize)
	assert.Equal(t, 0.5, cfg.Engine.Overlap, "default kept")
	assert.Equal(t, 30*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "runs.db", cfg.Store.DSN)
	require.Len(t, cfg.Featurizer.Vocabulary, 1)
	assert.Equal(t, []string{"dogs", "hound"}, cfg.Featurizer.Vocabulary[0].Aliases)

	sc := cfg.ScanConfig(nil)
	assert.Equal(t, solver.Heuristic{}, sc.Kernel)
	assert.Equal(t, 8, sc.TargetPrecision)
	assert.Equal(t, uint64(2), sc.Solver.Prime)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"kernel":    func(c *Config) { c.Engine.Kernel = "annealing" },
		"level":     func(c *Config) { c.Logging.Level = "loud" },
		"no primes": func(c *Config) { c.Engine.Primes = nil },
		"duplicate": func(c *Config) { c.Engine.Primes = []uint64{5, 5} },
		"overlap":   func(c *Config) { c.Engine.Overlap = 1 },
		"timeout":   func(c *Config) { c.Engine.Timeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Engine.Primes = []uint64{7, 7}
	assert.ErrorIs(t, cfg.Validate(), sheaf.ErrDuplicatePrime)
}

func TestSaveAndLoad(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Engine.Seed = 42
	require.NoError(t, cfg.SaveToFile(fs, "conf/taxomine.yaml"))

	loaded, err := LoadFromFile(fs, "conf/taxomine.yaml")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), loaded.Engine.Seed)
	assert.Equal(t, cfg.Engine, loaded.Engine)
}

func TestLoadMissingFile(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	_, err = LoadFromFile(fs, "nope.yaml")
	assert.Error(t, err)
}
