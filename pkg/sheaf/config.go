package sheaf

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"

	"go.uber.org/zap"

	"github.com/kittclouds/taxomine/pkg/padic"
	"github.com/kittclouds/taxomine/pkg/solver"
)

var (
	ErrNoPrimes = errors.New("sheaf: empty prime set")
	// ErrDuplicatePrime rejects prime sets that are not pairwise coprime.
	ErrDuplicatePrime = fmt.Errorf("sheaf: duplicate prime: %w", padic.ErrNonCoprime)
	ErrInvalidConfig  = errors.New("sheaf: invalid config")
)

// Config for a scan
type Config struct {
	// Primes is the active prime set. The first prime that resolves in a
	// window supplies its levels and pairs.
	Primes     []uint64
	WindowSize int
	// Overlap is the fraction of each window shared with the next, in [0,1).
	Overlap float64

	// Solver is the template for every window solve; Prime is overwritten.
	Solver solver.Config
	// TargetPrecision enables Hensel lifting when above Solver.Precision.
	TargetPrecision int
	// Tolerance is the largest level or proximity difference still treated as
	// agreement. Zero means exact equality.
	Tolerance int

	Kernel  solver.Kernel
	Workers int
	Logger  *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		Primes:     []uint64{3, 5, 7},
		WindowSize: 50,
		Overlap:    0.5,
		Solver:     solver.DefaultConfig(),
		Kernel:     solver.Ransac{},
		Workers:    runtime.GOMAXPROCS(0),
	}
}

func (c Config) Validate() error {
	if len(c.Primes) == 0 {
		return ErrNoPrimes
	}
	seen := make(map[uint64]bool, len(c.Primes))
	for _, p := range c.Primes {
		if !padic.IsPrime(p) {
			return fmt.Errorf("%w: %d: %w", ErrInvalidConfig, p, padic.ErrNotPrime)
		}
		if seen[p] {
			return fmt.Errorf("%w: %d", ErrDuplicatePrime, p)
		}
		seen[p] = true

		sc := c.Solver
		sc.Prime = p
		if err := sc.Validate(); err != nil {
			return err
		}
		if c.TargetPrecision > 0 {
			if _, err := padic.Pow(p, c.TargetPrecision); err != nil {
				return fmt.Errorf("%w: target precision: %w", ErrInvalidConfig, err)
			}
		}
	}
	if err := c.checkComposite(); err != nil {
		return err
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window size %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("%w: overlap %v not in [0,1)", ErrInvalidConfig, c.Overlap)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance %d", ErrInvalidConfig, c.Tolerance)
	}
	if c.TargetPrecision != 0 && c.TargetPrecision <= c.Solver.Precision {
		return fmt.Errorf("%w: target precision %d must exceed %d",
			ErrInvalidConfig, c.TargetPrecision, c.Solver.Precision)
	}
	return nil
}

// checkComposite rejects prime sets whose integrated modulus, the product of
// p^k over every prime at the final window precision, overflows uint64.
func (c Config) checkComposite() error {
	k := c.Solver.Precision
	if c.TargetPrecision > k {
		k = c.TargetPrecision
	}
	total := uint64(1)
	for _, p := range c.Primes {
		hi, lo := bits.Mul64(total, padic.MustPow(p, k))
		if hi != 0 {
			return fmt.Errorf("%w: composite modulus of %v at precision %d: %w",
				ErrInvalidConfig, c.Primes, k, padic.ErrPrecisionOverflow)
		}
		total = lo
	}
	return nil
}

func (c Config) kernel() solver.Kernel {
	if c.Kernel == nil {
		return solver.Ransac{}
	}
	return c.Kernel
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
