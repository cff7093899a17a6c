package hps

import (
	"fmt"

	"github.com/notargets/hps/utils"
)

// Config controls how the solver build executes.
type Config struct {
	// Fused interleaves the build and down pass over leaf chunks to bound
	// peak memory. Uniform 2D DtN problems only.
	Fused bool
	// NLevelsFused is the subtree depth of one fused chunk. Zero picks the
	// largest chunk that fits MemoryBudget, or half the tree depth when no
	// budget is given.
	NLevelsFused int
	// MemoryBudget caps the retained per-chunk state, in bytes.
	MemoryBudget int64
}

// TopOperator is the root boundary operator produced by the build: the
// Dirichlet-to-Neumann map T for the DtN family, the impedance reflection
// map R for ItI.
type TopOperator struct {
	T utils.Matrix
	R utils.CMatrix
}

// BoundaryData supplies the root boundary condition to Solve. Exactly one
// field is consulted: G for uniform DtN (Dirichlet values at the root
// boundary Gauss points), F for ItI (incoming impedance data), Sides for
// adaptive DtN (per-side Dirichlet data, sides ordered S, E, N, W).
type BoundaryData struct {
	G     utils.Vector
	F     utils.CVector
	Sides [4]utils.Vector
}

// Solution holds the volume solution, one row of p^d values per leaf in
// the problem's leaf ordering. U is set for DtN problems, UC for ItI.
type Solution struct {
	U  utils.Matrix
	UC utils.CMatrix
}

// LocalSolve runs only the per-leaf stage of a DtN problem and returns the
// leaf operators without building the merge hierarchy.
func LocalSolve(prob *PDEProblem) (*LocalSolveResult, error) {
	if prob.Mode != DtN {
		return nil, fmt.Errorf("%w: problem is not a DtN problem", ErrConfig)
	}
	leaves := allLeaves(prob.Root)
	if prob.Dim == 3 {
		return prob.localSolve3DDtN(leaves)
	}
	return prob.localSolve2DDtN(leaves)
}

// LocalSolveItI is the impedance counterpart of LocalSolve.
func LocalSolveItI(prob *PDEProblem) (*LocalSolveResultItI, error) {
	if prob.Mode != ItI {
		return nil, fmt.Errorf("%w: problem is not an ItI problem", ErrConfig)
	}
	return prob.localSolve2DItI(allLeaves(prob.Root))
}

// BuildSolver runs the local solve and the full merge hierarchy, retaining
// the records Solve needs for the down pass. When the problem was set up
// without a source term, the interface factorizations are cached so a
// source can still be supplied to Solve afterwards (uniform 2D only).
func BuildSolver(prob *PDEProblem, cfg Config) (top TopOperator, err error) {
	if cfg.Fused {
		err = fmt.Errorf("%w: fused execution builds and solves in one call, use SolveFused", ErrConfig)
		return
	}
	switch {
	case prob.Dim == 3:
		top.T, err = prob.buildUniform3DDtN()
	case prob.Mode == ItI:
		top.R, err = prob.buildUniform2DItI(prob.Source.IsEmpty())
	case !prob.Root.IsUniform():
		top.T, err = prob.buildAdaptive2DDtN()
	default:
		top.T, err = prob.buildUniform2DDtN(prob.Source.IsEmpty())
	}
	if err == nil && prob.Source.IsEmpty() {
		prob.build.noSource = true
	}
	return
}

// Solve propagates boundary data through the built hierarchy and returns
// the volume solution. A non-nil source is legal only when the solver was
// built without one; the cached interface factorizations are then reused
// for the particular up pass.
func Solve(prob *PDEProblem, bd BoundaryData, source utils.Matrix) (sol Solution, err error) {
	if prob.build == nil {
		err = fmt.Errorf("%w: solver not built", ErrConfig)
		return
	}
	if !source.IsEmpty() {
		if !prob.build.noSource {
			err = fmt.Errorf("%w: solver was built with a source term already bound", ErrConfig)
			return
		}
		if prob.Dim == 3 || !prob.Root.IsUniform() {
			err = fmt.Errorf("%w: runtime source terms need a uniform 2D build", ErrConfig)
			return
		}
		if sErr := prob.validateSource(source); sErr != nil {
			err = sErr
			return
		}
		prob.Source = source
		if prob.Mode == ItI {
			err = prob.upPass2DItI()
		} else {
			err = prob.upPass2DDtN()
		}
		if err != nil {
			return
		}
	}
	switch {
	case prob.Dim == 3:
		sol.U, err = prob.downPass3DDtN(bd.G)
	case prob.Mode == ItI:
		sol.UC, err = prob.downPass2DItI(bd.F)
	case !prob.Root.IsUniform():
		sol.U, err = prob.solveAdaptive2DDtN(bd.Sides)
	default:
		sol.U, err = prob.downPass2DDtN(bd.G)
	}
	return
}

func (prob *PDEProblem) validateSource(source utils.Matrix) error {
	var (
		rows, cols = source.Dims()
		p          = prob.Ops2D.POrder
		nLeaves    = prob.Root.NumLeaves()
	)
	if rows != nLeaves || cols != p*p {
		return fmt.Errorf("%w: source is (%d x %d), want (%d x %d)",
			ErrShape, rows, cols, nLeaves, p*p)
	}
	return nil
}

// rootBoundaryPoints2D lists the root boundary Gauss points counterclockwise
// from the southwest corner, following the root's per-side panel structure.
func (prob *PDEProblem) rootBoundaryPoints2D() (XY utils.Matrix) {
	var (
		b     = prob.Root.Box
		q     = prob.Ops2D.QOrder
		xg    = prob.Ops2D.GaussPts
		sides [4][]int
	)
	if prob.build != nil && prob.build.rootSides[0] != nil {
		sides = prob.build.rootSides
	} else {
		n := 1 << uint(prob.Root.MaxDepth())
		for s := 0; s < 4; s++ {
			for j := 0; j < n; j++ {
				sides[s] = append(sides[s], prob.Root.MaxDepth())
			}
		}
	}
	var total int
	for s := 0; s < 4; s++ {
		total += q * len(sides[s])
	}
	XY = utils.NewMatrix(total, 2)
	row := 0
	// Each side is parametrized by arclength along its travel direction:
	// S runs W to E, E runs S to N, N runs E to W, W runs N to S.
	point := func(s int, t float64) (x, y float64) {
		switch s {
		case sideS:
			return b.XMin + t*(b.XMax-b.XMin), b.YMin
		case sideE:
			return b.XMax, b.YMin + t*(b.YMax-b.YMin)
		case sideN:
			return b.XMax - t*(b.XMax-b.XMin), b.YMax
		default:
			return b.XMin, b.YMax - t*(b.YMax-b.YMin)
		}
	}
	for s := 0; s < 4; s++ {
		t0 := 0.0
		for _, d := range sides[s] {
			length := 1.0 / float64(int(1)<<uint(d))
			for i := 0; i < q; i++ {
				t := t0 + 0.5*(xg.At(i)+1)*length
				x, y := point(s, t)
				XY.Set(row, 0, x)
				XY.Set(row, 1, y)
				row++
			}
			t0 += length
		}
	}
	return
}
