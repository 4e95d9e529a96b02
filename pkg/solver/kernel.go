package solver

import (
	"context"

	"github.com/kittclouds/taxomine/pkg/manifold"
)

// Kernel is a solving strategy. Scans receive the kernel as an explicit
// value, so concurrent analyses can run different strategies side by side.
type Kernel interface {
	Name() string
	Solve(ctx context.Context, p Problem, cfg Config) (*manifold.LocalManifold, error)
}

// Ransac runs the full randomised search.
type Ransac struct{}

func (Ransac) Name() string { return "ransac" }

func (Ransac) Solve(ctx context.Context, p Problem, cfg Config) (*manifold.LocalManifold, error) {
	return New(cfg).Solve(ctx, p)
}

// Heuristic runs only the deterministic clustering trial.
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

func (Heuristic) Solve(ctx context.Context, p Problem, cfg Config) (*manifold.LocalManifold, error) {
	cfg.Iterations = 1
	return New(cfg).Solve(ctx, p)
}

// KernelByName resolves a strategy from configuration.
func KernelByName(name string) (Kernel, bool) {
	switch name {
	case "", "ransac":
		return Ransac{}, true
	case "heuristic":
		return Heuristic{}, true
	}
	return nil, false
}
