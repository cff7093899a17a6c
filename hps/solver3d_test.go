package hps

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/hps/operators"
	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

func evalRows3D(XYZ utils.Matrix, f func(x, y, z float64) float64) (v utils.Vector) {
	nr, _ := XYZ.Dims()
	v = utils.NewVector(nr)
	for i := 0; i < nr; i++ {
		v.Set(i, f(XYZ.At(i, 0), XYZ.At(i, 1), XYZ.At(i, 2)))
	}
	return
}

func TestUniform3DPoisson(t *testing.T) {
	// u = x^3 y + z^2 solves Laplacian(u) = 6 x y + 2; with p = 5, q = 4
	// all stages are exact on an eight-leaf tree.
	var (
		p, q = 5, 4
		ops  = operators.NewOperatorSet3D(p, q)
		root = tree.NewRoot3D(0, 1, 0, 1, 0, 1)
		np3  = p * p * p
		u    = func(x, y, z float64) float64 { return x*x*x*y + z*z }
		f    = func(x, y, z float64) float64 { return 6*x*y + 2 }
	)
	tree.NewUniformTree(root, 1)
	var (
		leaves  = root.Leaves()
		nLeaves = len(leaves)
		src     = utils.NewMatrix(nLeaves, np3)
	)
	assert.Equal(t, 8, nLeaves)
	for k, lf := range leaves {
		src.SetRow(k, evalRows3D(ops.LeafPoints(lf.Box), f).DataP())
	}
	coeffs := map[Term]utils.Matrix{
		TermXX: constCoeff(nLeaves, np3, 1),
		TermYY: constCoeff(nLeaves, np3, 1),
		TermZZ: constCoeff(nLeaves, np3, 1),
	}
	prob, err := NewProblem3D(root, ops, DtN, coeffs, src)
	assert.NoError(t, err)
	top, err := BuildSolver(prob, Config{})
	assert.NoError(t, err)
	XYZ, err := prob.RootBoundaryPoints()
	assert.NoError(t, err)
	{ // every child face panel not shared with a sibling reaches the root
		nPts, _ := XYZ.Dims()
		assert.Equal(t, 6*4*q*q, nPts)
		nr, nc := top.T.Dims()
		assert.Equal(t, nPts, nr)
		assert.Equal(t, nPts, nc)
	}
	sol, err := Solve(prob, BoundaryData{G: evalRows3D(XYZ, u)}, utils.Matrix{})
	assert.NoError(t, err)
	for k, lf := range leaves {
		exact := evalRows3D(ops.LeafPoints(lf.Box), u)
		assert.InDelta(t, 0, sol.U.Row(k).MaxAbsDiff(exact), 1.e-9)
	}
}

func TestLeaf3DFlux(t *testing.T) {
	// Single-leaf DtN check in 3D: T applied to harmonic Dirichlet data
	// reproduces the outward normal derivative on every face.
	var (
		p, q = 5, 4
		ops  = operators.NewOperatorSet3D(p, q)
		root = tree.NewRoot3D(0, 1, 0, 1, 0, 1)
		np3  = p * p * p
		u    = func(x, y, z float64) float64 { return x*x - y*y + 2*z }
	)
	coeffs := map[Term]utils.Matrix{
		TermXX: constCoeff(1, np3, 1),
		TermYY: constCoeff(1, np3, 1),
		TermZZ: constCoeff(1, np3, 1),
	}
	prob, err := NewProblem3D(root, ops, DtN, coeffs, utils.Matrix{})
	assert.NoError(t, err)
	local, err := LocalSolve(prob)
	assert.NoError(t, err)

	var (
		XYZ  = ops.FaceGaussPoints(root.Box)
		g    = evalRows3D(XYZ, u)
		qq   = q * q
		un   = utils.NewVector(6 * qq)
		grad = func(x, y, z float64) (gx, gy, gz float64) { return 2 * x, -2 * y, 2 }
	)
	for i := 0; i < 6*qq; i++ {
		gx, gy, gz := grad(XYZ.At(i, 0), XYZ.At(i, 1), XYZ.At(i, 2))
		switch i / qq {
		case 0:
			un.Set(i, -gx)
		case 1:
			un.Set(i, gx)
		case 2:
			un.Set(i, -gy)
		case 3:
			un.Set(i, gy)
		case 4:
			un.Set(i, -gz)
		default:
			un.Set(i, gz)
		}
	}
	flux := local.T[0].MulVec(g)
	assert.InDelta(t, 0, flux.MaxAbsDiff(un), 1.e-9)
}

func Test3DConfigErrors(t *testing.T) {
	var (
		ops  = operators.NewOperatorSet3D(4, 3)
		root = tree.NewRoot3D(0, 1, 0, 1, 0, 1)
	)
	{ // impedance mode is a 2D feature
		_, err := NewProblem3D(root, ops, ItI, nil, utils.Matrix{})
		assert.True(t, errors.Is(err, ErrConfig))
	}
	{ // adaptive octrees are rejected
		r := tree.NewRoot3D(0, 1, 0, 1, 0, 1)
		r.Split()
		r.Children[0].Split()
		_, err := NewProblem3D(r, ops, DtN, nil, utils.Matrix{})
		assert.True(t, errors.Is(err, ErrConfig))
	}
	{ // runtime sources are a uniform 2D feature
		r := tree.NewRoot3D(0, 1, 0, 1, 0, 1)
		tree.NewUniformTree(r, 1)
		np3 := 4 * 4 * 4
		coeffs := map[Term]utils.Matrix{
			TermXX: constCoeff(8, np3, 1),
			TermYY: constCoeff(8, np3, 1),
			TermZZ: constCoeff(8, np3, 1),
		}
		prob, err := NewProblem3D(r, ops, DtN, coeffs, utils.Matrix{})
		assert.NoError(t, err)
		_, err = BuildSolver(prob, Config{})
		assert.NoError(t, err)
		_, err = Solve(prob, BoundaryData{}, constCoeff(8, np3, 1))
		assert.True(t, errors.Is(err, ErrConfig))
	}
}
