package hps

import (
	"fmt"

	"github.com/notargets/hps/operators"
	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

// Mode selects the boundary operator family.
type Mode int

const (
	DtN Mode = iota // real Dirichlet-to-Neumann
	ItI             // complex impedance-to-impedance
)

// Term tags one differential term of the PDE. Absent coefficient arrays
// mean an identically zero coefficient and the term is skipped during
// assembly.
type Term int

const (
	TermXX Term = iota
	TermXY
	TermYY
	TermX
	TermY
	TermI
	// 3D additions
	TermZZ
	TermXZ
	TermYZ
	TermZ
)

// order2D lists the 2D assembly order matching the precomputed operator
// stack [D_xx, D_xy, D_yy, D_x, D_y, I].
var order2D = []Term{TermXX, TermXY, TermYY, TermX, TermY, TermI}

var order3D = []Term{
	TermXX, TermYY, TermZZ, TermXY, TermXZ, TermYZ, TermX, TermY, TermZ, TermI,
}

// derivOrder gives each term's derivative order, which sets the
// (halfside)^-order rescaling from the reference element.
func derivOrder(t Term) int {
	switch t {
	case TermXX, TermXY, TermYY, TermZZ, TermXZ, TermYZ:
		return 2
	case TermX, TermY, TermZ:
		return 1
	}
	return 0
}

// PDEProblem groups the tree, the shared precomputed operators, the
// per-leaf coefficient and source arrays, and, after the build stage, the
// per-level merge records reused by Solve. The problem owns its coefficient
// and source arrays and the build outputs; the tree and operator sets are
// shared and never written.
type PDEProblem struct {
	Root *tree.Node
	Dim  int

	Ops2D *operators.OperatorSet2D
	Ops3D *operators.OperatorSet3D

	Mode Mode
	Eta  float64 // ItI impedance parameter

	// Coefficients maps each differential term to an (n_leaves x p^d)
	// array of per-node coefficient values in boundary-first leaf order.
	Coefficients map[Term]utils.Matrix

	// Source is (n_leaves x p^d); empty means a zero source.
	Source utils.Matrix

	// Build outputs, attached by BuildSolver
	build *buildState
}

// buildState is the per-level merge output retained for the down pass, and
// in the no-source build the cached interface inverses for later sources.
type buildState struct {
	levels    []mergeLevelDtN
	levelsC   []mergeLevelItI
	levelsOct []mergeLevelOct
	// 3D root boundary point coordinates, in merge order
	rootPoints utils.Matrix
	// Per-leaf local solve data retained through the merge
	local  *LocalSolveResult
	localC *LocalSolveResultItI
	// adaptive merge records, in post-order, plus the root's record and
	// boundary panel structure
	adaptive  []*adaptiveRecord
	rootRec   *adaptiveRecord
	rootSides [4][]int
	rootH     utils.Vector
	noSource  bool
}

// NewProblem2D validates shapes and assembles a 2D problem.
func NewProblem2D(root *tree.Node, ops *operators.OperatorSet2D, mode Mode,
	eta float64, coeffs map[Term]utils.Matrix, source utils.Matrix) (*PDEProblem, error) {
	var (
		nLeaves = root.NumLeaves()
		np2     = ops.POrder * ops.POrder
	)
	for term, c := range coeffs {
		nr, nc := c.Dims()
		if nr != nLeaves || nc != np2 {
			return nil, fmt.Errorf("%w: coefficient term %d has shape (%d,%d), want (%d,%d)",
				ErrShape, term, nr, nc, nLeaves, np2)
		}
	}
	if !source.IsEmpty() {
		nr, nc := source.Dims()
		if nr != nLeaves || nc != np2 {
			return nil, fmt.Errorf("%w: source has shape (%d,%d), want (%d,%d)",
				ErrShape, nr, nc, nLeaves, np2)
		}
	}
	if mode == ItI && eta == 0 {
		return nil, fmt.Errorf("%w: ItI mode requires a nonzero impedance parameter", ErrConfig)
	}
	if mode == ItI && !root.IsUniform() {
		return nil, fmt.Errorf("%w: ItI mode supports uniform trees only", ErrConfig)
	}
	return &PDEProblem{
		Root:         root,
		Dim:          2,
		Ops2D:        ops,
		Mode:         mode,
		Eta:          eta,
		Coefficients: coeffs,
		Source:       source,
	}, nil
}

// NewProblem3D validates shapes and assembles a 3D DtN problem. ItI and
// adaptive trees are 2D-only.
func NewProblem3D(root *tree.Node, ops *operators.OperatorSet3D, mode Mode,
	coeffs map[Term]utils.Matrix, source utils.Matrix) (*PDEProblem, error) {
	var (
		nLeaves = root.NumLeaves()
		np3     = ops.POrder * ops.POrder * ops.POrder
	)
	if mode == ItI {
		return nil, fmt.Errorf("%w: ItI mode is not supported in 3D", ErrConfig)
	}
	if !root.IsUniform() {
		return nil, fmt.Errorf("%w: adaptive trees are not supported in 3D", ErrConfig)
	}
	for term, c := range coeffs {
		nr, nc := c.Dims()
		if nr != nLeaves || nc != np3 {
			return nil, fmt.Errorf("%w: coefficient term %d has shape (%d,%d), want (%d,%d)",
				ErrShape, term, nr, nc, nLeaves, np3)
		}
	}
	if !source.IsEmpty() {
		nr, nc := source.Dims()
		if nr != nLeaves || nc != np3 {
			return nil, fmt.Errorf("%w: source has shape (%d,%d), want (%d,%d)",
				ErrShape, nr, nc, nLeaves, np3)
		}
	}
	return &PDEProblem{
		Root:         root,
		Dim:          3,
		Ops3D:        ops,
		Mode:         mode,
		Coefficients: coeffs,
		Source:       source,
	}, nil
}

// assembleLeafOperator2D builds leaf k's full differential operator on the
// reference-to-physical rescaled Chebyshev grid.
func (prob *PDEProblem) assembleLeafOperator2D(k int, halfside float64) (A utils.Matrix) {
	var (
		ops  = prob.Ops2D
		np2  = ops.POrder * ops.POrder
		mats = []utils.Matrix{ops.DXX, ops.DXY, ops.DYY, ops.DX, ops.DY, utils.NewEye(np2)}
	)
	A = utils.NewMatrix(np2, np2)
	for i, term := range order2D {
		c, present := prob.Coefficients[term]
		if !present {
			continue
		}
		scale := utils.POW(halfside, -derivOrder(term))
		A.Add(mats[i].Copy().Scale(scale).ScaleRows(c.Row(k)))
	}
	return
}

func (prob *PDEProblem) assembleLeafOperator3D(k int, halfside float64) (A utils.Matrix) {
	var (
		ops  = prob.Ops3D
		np3  = ops.POrder * ops.POrder * ops.POrder
		mats = []utils.Matrix{
			ops.DXX, ops.DYY, ops.DZZ, ops.DXY, ops.DXZ, ops.DYZ,
			ops.DX, ops.DY, ops.DZ, utils.NewEye(np3),
		}
	)
	A = utils.NewMatrix(np3, np3)
	for i, term := range order3D {
		c, present := prob.Coefficients[term]
		if !present {
			continue
		}
		scale := utils.POW(halfside, -derivOrder(term))
		A.Add(mats[i].Copy().Scale(scale).ScaleRows(c.Row(k)))
	}
	return
}

// leafSource returns leaf k's source vector, zero when no source was set.
func (prob *PDEProblem) leafSource(k, n int) (src utils.Vector) {
	if prob.Source.IsEmpty() {
		src = utils.NewVector(n)
		return
	}
	src = prob.Source.Row(k)
	return
}
