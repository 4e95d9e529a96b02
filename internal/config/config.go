// Package config provides configuration loading for taxomine.
// Files are read through a hackpadfs.FS so tests can use an in-memory
// filesystem and the CLI the host one.
package config

import (
	"fmt"
	"path"
	"time"

	"github.com/hack-pad/hackpadfs"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kittclouds/taxomine/internal/featurize"
	"github.com/kittclouds/taxomine/pkg/sheaf"
	"github.com/kittclouds/taxomine/pkg/solver"
)

// Config represents the complete taxomine configuration
type Config struct {
	Engine     EngineConfig      `yaml:"engine"`
	Featurizer featurize.Options `yaml:"featurizer"`
	Store      StoreConfig       `yaml:"store"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// EngineConfig configures the solver and the sheaf scan
type EngineConfig struct {
	// Primes is the active prime set, pairwise distinct.
	Primes     []uint64 `yaml:"primes"`
	WindowSize int      `yaml:"window_size"`
	Overlap    float64  `yaml:"overlap"`
	// Kernel selects the per-window solve strategy ("ransac", "heuristic").
	Kernel string `yaml:"kernel"`

	Degree          int     `yaml:"degree"`
	MinInliers      int     `yaml:"min_inliers"`
	Iterations      int     `yaml:"iterations"`
	Seed            uint64  `yaml:"seed"`
	Precision       int     `yaml:"precision"`
	TargetPrecision int     `yaml:"target_precision"`
	Tolerance       int     `yaml:"tolerance"`
	GlueTolerance   int     `yaml:"glue_tolerance"`
	Patience        int     `yaml:"patience"`
	MutationRate    float64 `yaml:"mutation_rate"`
	HierarchyWeight float64 `yaml:"hierarchy_weight"`
	// Workers bounds both trial and window parallelism (0 = GOMAXPROCS).
	Workers int `yaml:"workers"`

	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig configures result persistence
type StoreConfig struct {
	// DSN is a SQLite file path or ":memory:". Empty disables persistence.
	DSN string `yaml:"dsn"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	sc := solver.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			Primes:          []uint64{3, 5, 7},
			WindowSize:      50,
			Overlap:         0.5,
			Kernel:          solver.Ransac{}.Name(),
			Degree:          sc.Degree,
			MinInliers:      sc.MinInliers,
			Iterations:      sc.Iterations,
			Seed:            sc.Seed,
			Precision:       sc.Precision,
			TargetPrecision: 0, // no lifting
			Tolerance:       sc.Tolerance,
			Patience:        16,
			MutationRate:    sc.MutationRate,
			HierarchyWeight: sc.HierarchyWeight,
			Timeout:         5 * time.Minute,
		},
		Featurizer: featurize.DefaultOptions(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, ok := solver.KernelByName(c.Engine.Kernel); !ok {
		return fmt.Errorf("engine.kernel %q is not a known kernel", c.Engine.Kernel)
	}
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("engine.timeout must not be negative")
	}
	if err := c.Featurizer.Validate(); err != nil {
		return err
	}
	return c.ScanConfig(nil).Validate()
}

// SolverConfig returns the per-window solver template. Prime is set per
// window by the scanner.
func (c *Config) SolverConfig(logger *zap.Logger) solver.Config {
	sc := solver.DefaultConfig()
	e := c.Engine
	sc.Prime = e.Primes[0]
	sc.Degree = e.Degree
	sc.MinInliers = e.MinInliers
	sc.Iterations = e.Iterations
	sc.Seed = e.Seed
	sc.Precision = e.Precision
	sc.Tolerance = e.Tolerance
	sc.Patience = e.Patience
	sc.MutationRate = e.MutationRate
	sc.HierarchyWeight = e.HierarchyWeight
	if e.Workers > 0 {
		sc.Workers = e.Workers
	}
	sc.Logger = logger
	return sc
}

// ScanConfig returns the sheaf scan configuration.
func (c *Config) ScanConfig(logger *zap.Logger) sheaf.Config {
	cfg := sheaf.DefaultConfig()
	e := c.Engine
	cfg.Primes = e.Primes
	cfg.WindowSize = e.WindowSize
	cfg.Overlap = e.Overlap
	cfg.TargetPrecision = e.TargetPrecision
	cfg.Tolerance = e.GlueTolerance
	if k, ok := solver.KernelByName(e.Kernel); ok {
		cfg.Kernel = k
	}
	if e.Workers > 0 {
		cfg.Workers = e.Workers
	}
	if len(e.Primes) > 0 {
		cfg.Solver = c.SolverConfig(logger)
	}
	cfg.Logger = logger
	return cfg
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their defaults.
func LoadFromFile(fsys hackpadfs.FS, name string) (*Config, error) {
	data, err := hackpadfs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(fsys hackpadfs.FS, name string) error {
	if dir := path.Dir(name); dir != "." {
		if err := hackpadfs.MkdirAll(fsys, dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := hackpadfs.WriteFullFile(fsys, name, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
