// Package hps implements the three-stage hierarchical Poincare-Steklov
// direct solver: per-leaf dense elimination, recursive sibling merges up to
// a root boundary operator, and a top-down pass recovering the interior
// solution.
package hps

import "errors"

var (
	// ErrConfig marks misuse of the solver configuration: bad chunk sizes,
	// unsupported mode/dimension combinations, coefficient arrays that do
	// not match the leaf count.
	ErrConfig = errors.New("invalid solver configuration")

	// ErrShape marks a stage-entry shape mismatch between supplied data and
	// the discretization.
	ErrShape = errors.New("shape mismatch")

	// ErrSingularLeaf marks a singular interior block during leaf
	// elimination. The discretization is ill posed; there is no recovery.
	ErrSingularLeaf = errors.New("singular leaf interior operator")

	// ErrSingularMerge marks a singular interface system during a sibling
	// merge.
	ErrSingularMerge = errors.New("singular merge interface system")
)
