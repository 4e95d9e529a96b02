package solver

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/kittclouds/taxomine/pkg/padic"
)

// MaxDegree bounds the fitted polynomial's degree.
const MaxDegree = 20

// Config for the prime field solver
type Config struct {
	Prime      uint64
	Degree     int
	MinInliers int
	Iterations int
	Seed       uint64

	// Precision is k in p^k.
	Precision int
	// Tolerance is the minimum valuation for an inlier and for an inlier
	// pair's proximity.
	Tolerance int
	// Patience stops the search after this many trials without improvement.
	// Zero disables early stopping.
	Patience int
	// MutationRate is the probability that two adjacent entities swap rank
	// in a randomised trial.
	MutationRate    float64
	HierarchyWeight float64

	Workers int
	Logger  *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		Prime:           3,
		Degree:          3,
		MinInliers:      2,
		Iterations:      64,
		Seed:            1,
		Precision:       6,
		Tolerance:       1,
		MutationRate:    0.15,
		HierarchyWeight: 2.0,
		Workers:         runtime.GOMAXPROCS(0),
	}
}

// Validate rejects contract violations before any solving begins.
func (c Config) Validate() error {
	if !padic.IsPrime(c.Prime) {
		return fmt.Errorf("%w: prime %d: %w", ErrInvalidConfig, c.Prime, padic.ErrNotPrime)
	}
	if c.Degree < 1 || c.Degree > MaxDegree {
		return fmt.Errorf("%w: %d", ErrInvalidDegree, c.Degree)
	}
	if c.Precision < 1 {
		return fmt.Errorf("%w: precision %d", ErrInvalidConfig, c.Precision)
	}
	if _, err := padic.Pow(c.Prime, c.Precision); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations %d", ErrInvalidConfig, c.Iterations)
	}
	if c.MinInliers < 1 {
		return fmt.Errorf("%w: min inliers %d", ErrInvalidConfig, c.MinInliers)
	}
	if c.Tolerance < 0 || c.Patience < 0 {
		return fmt.Errorf("%w: negative tolerance or patience", ErrInvalidConfig)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("%w: mutation rate %v", ErrInvalidConfig, c.MutationRate)
	}
	if c.HierarchyWeight < 0 {
		return fmt.Errorf("%w: hierarchy weight %v", ErrInvalidConfig, c.HierarchyWeight)
	}
	return nil
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}
