package hps

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/hps/operators"
	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

// evalRowsC evaluates a complex field at each (x, y) row of XY.
func evalRowsC(XY utils.Matrix, f func(x, y float64) complex128) (v utils.CVector) {
	nr, _ := XY.Dims()
	v = utils.NewCVector(nr)
	for i := 0; i < nr; i++ {
		v.Set(i, f(XY.At(i, 0), XY.At(i, 1)))
	}
	return
}

// helmholtzProblem2D builds Laplacian(u) + kappa^2 u on the unit square.
func helmholtzProblem2D(t *testing.T, root *tree.Node, ops *operators.OperatorSet2D,
	mode Mode, kappa float64, src utils.Matrix) *PDEProblem {
	var (
		nLeaves = root.NumLeaves()
		np2     = ops.POrder * ops.POrder
	)
	coeffs := map[Term]utils.Matrix{
		TermXX: constCoeff(nLeaves, np2, 1),
		TermYY: constCoeff(nLeaves, np2, 1),
		TermI:  constCoeff(nLeaves, np2, kappa*kappa),
	}
	prob, err := NewProblem2D(root, ops, mode, kappa, coeffs, src)
	assert.NoError(t, err)
	return prob
}

func TestItIPlaneWave(t *testing.T) {
	// u = exp(i kappa (x cos a + y sin a)) solves the Helmholtz equation
	// with zero source; the solver must reproduce it from incoming
	// impedance data f = u_n + i eta u on the root boundary.
	var (
		kappa  = 2.0
		angle  = 0.3
		kx, ky = kappa * math.Cos(angle), kappa * math.Sin(angle)
		u      = func(x, y float64) complex128 {
			return cmplx.Exp(complex(0, kx*x+ky*y))
		}
		ops  = operators.NewOperatorSet2D(12, 10)
		root = tree.NewRoot2D(0, 1, 0, 1)
	)
	tree.NewUniformTree(root, 1)
	prob := helmholtzProblem2D(t, root, ops, ItI, kappa, utils.Matrix{})
	top, err := BuildSolver(prob, Config{})
	assert.NoError(t, err)
	{
		nr, nc := top.R.Dims()
		assert.Equal(t, 4*ops.QOrder*2, nr)
		assert.Equal(t, nr, nc)
	}
	var (
		q    = ops.QOrder
		XY   = prob.rootBoundaryPoints2D()
		nTop = 4 * q * 2
		f    = utils.NewCVector(nTop)
	)
	for i := 0; i < nTop; i++ {
		var (
			x, y   = XY.At(i, 0), XY.At(i, 1)
			uv     = u(x, y)
			grad   = [2]complex128{complex(0, kx) * uv, complex(0, ky) * uv}
			un     complex128
			nPanel = nTop / 4
		)
		switch i / nPanel {
		case sideS:
			un = -grad[1]
		case sideE:
			un = grad[0]
		case sideN:
			un = grad[1]
		default:
			un = -grad[0]
		}
		f.Set(i, un+complex(0, prob.Eta)*uv)
	}
	sol, err := Solve(prob, BoundaryData{F: f}, utils.Matrix{})
	assert.NoError(t, err)
	for k, lf := range root.Leaves() {
		exact := evalRowsC(ops.LeafPoints(lf.Box), u)
		assert.InDelta(t, 0, sol.UC.Row(k).MaxAbsDiff(exact), 1.e-8)
	}
}

func TestDtNItIConsistency(t *testing.T) {
	// On a single leaf the two boundary operator families are related by
	// T = -i eta (R - I)^-1 (R + I).
	var (
		kappa = 2.0
		ops   = operators.NewOperatorSet2D(10, 8)
		nb    = 4 * ops.QOrder
	)
	var Tdtn utils.Matrix
	{
		root := tree.NewRoot2D(0, 1, 0, 1)
		prob := helmholtzProblem2D(t, root, ops, DtN, kappa, utils.Matrix{})
		local, err := LocalSolve(prob)
		assert.NoError(t, err)
		Tdtn = local.T[0]
	}
	var R utils.CMatrix
	{
		root := tree.NewRoot2D(0, 1, 0, 1)
		prob := helmholtzProblem2D(t, root, ops, ItI, kappa, utils.Matrix{})
		local, err := LocalSolveItI(prob)
		assert.NoError(t, err)
		R = local.R[0]
	}
	var (
		I       = utils.NewCEye(nb)
		RmI     = R.Copy().Subtract(I)
		RpI     = R.Copy().Add(I)
		inv, ie = RmI.Inverse()
	)
	assert.NoError(t, ie)
	Tfrom := inv.Mul(RpI).Scale(complex(0, -kappa))
	assert.InDelta(t, 0, Tfrom.MaxAbsDiff(utils.FromReal(Tdtn)), 1.e-7)
}

func TestRuntimeSourceItI(t *testing.T) {
	// Same source, bound at build time versus supplied after a no-source
	// build through the cached interface factorizations.
	var (
		p, q  = 8, 6
		kappa = 2.0
		ops   = operators.NewOperatorSet2D(p, q)
		f     = func(x, y float64) float64 { return math.Exp(-10 * ((x-0.4)*(x-0.4) + (y-0.6)*(y-0.6))) }
	)
	makeSrc := func(root *tree.Node) utils.Matrix {
		leaves := root.Leaves()
		src := utils.NewMatrix(len(leaves), p*p)
		for k, lf := range leaves {
			src.SetRow(k, evalRows(ops.LeafPoints(lf.Box), f).DataP())
		}
		return src
	}
	bc := func(prob *PDEProblem) utils.CVector {
		XY := prob.rootBoundaryPoints2D()
		nr, _ := XY.Dims()
		return utils.NewCVector(nr) // homogeneous impedance data
	}
	var solBound, solLate Solution
	{
		root := tree.NewRoot2D(0, 1, 0, 1)
		tree.NewUniformTree(root, 2)
		prob := helmholtzProblem2D(t, root, ops, ItI, kappa, makeSrc(root))
		_, err := BuildSolver(prob, Config{})
		assert.NoError(t, err)
		solBound, err = Solve(prob, BoundaryData{F: bc(prob)}, utils.Matrix{})
		assert.NoError(t, err)
	}
	{
		root := tree.NewRoot2D(0, 1, 0, 1)
		tree.NewUniformTree(root, 2)
		prob := helmholtzProblem2D(t, root, ops, ItI, kappa, utils.Matrix{})
		_, err := BuildSolver(prob, Config{})
		assert.NoError(t, err)
		solLate, err = Solve(prob, BoundaryData{F: bc(prob)}, makeSrc(root))
		assert.NoError(t, err)
	}
	assert.InDelta(t, 0, solBound.UC.MaxAbsDiff(solLate.UC), 1.e-10)
}
