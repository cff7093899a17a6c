package hps

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/hps/operators"
	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

func TestAdaptive2DPoisson(t *testing.T) {
	// One quadrant refined an extra level; the interface upsampling must
	// keep the solve exact for the same cubic-in-x manufactured solution
	// the uniform test uses.
	var (
		p, q = 6, 4
		ops  = operators.NewOperatorSet2D(p, q)
		root = tree.NewRoot2D(0, 1, 0, 1)
		u    = func(x, y float64) float64 { return x * x * x * y }
		f    = func(x, y float64) float64 { return 6 * x * y }
	)
	root.Split()
	root.Children[0].Split() // SW quadrant one level deeper
	assert.True(t, root.LevelRestricted())
	assert.False(t, root.IsUniform())

	var (
		leaves  = root.Leaves()
		nLeaves = len(leaves)
		src     = utils.NewMatrix(nLeaves, p*p)
	)
	assert.Equal(t, 7, nLeaves)
	for k, lf := range leaves {
		src.SetRow(k, evalRows(ops.LeafPoints(lf.Box), f).DataP())
	}
	prob := laplaceProblem2D(t, root, ops, src)
	top, err := BuildSolver(prob, Config{})
	assert.NoError(t, err)
	{ // refined SW quadrant contributes finer panels on the S and W sides
		nr, nc := top.T.Dims()
		assert.Equal(t, q*(3+2+2+3), nr)
		assert.Equal(t, nr, nc)
	}
	var (
		XY, perr = prob.RootBoundaryPoints()
		g        = evalRows(XY, u)
		bd       BoundaryData
		ofs      = 0
	)
	assert.NoError(t, perr)
	for s := 0; s < 4; s++ {
		n := q * len(prob.build.rootSides[s])
		bd.Sides[s] = g.Subset(utils.NewRangeIndex(ofs, ofs+n))
		ofs += n
	}
	sol, err := Solve(prob, bd, utils.Matrix{})
	assert.NoError(t, err)
	for k, lf := range leaves {
		exact := evalRows(ops.LeafPoints(lf.Box), u)
		assert.InDelta(t, 0, sol.U.Row(k).MaxAbsDiff(exact), 1.e-10)
	}
}

func TestAdaptiveRefinementCriterion(t *testing.T) {
	// Interpolation-error driven refinement concentrates leaves near a sharp
	// feature; the resulting level-restricted tree must still solve exactly.
	var (
		p, q = 6, 4
		ops  = operators.NewOperatorSet2D(p, q)
		root = tree.NewRoot2D(0, 1, 0, 1)
		bump = func(x, y float64) float64 {
			return math.Exp(-200 * (x*x + y*y))
		}
		u = func(x, y float64) float64 { return x * x * x * y }
		f = func(x, y float64) float64 { return 6 * x * y }
	)
	root.RefineBy(func(n *tree.Node) bool {
		return ops.InterpError(n.Box, bump) > 1.e-10
	}, 4)
	assert.True(t, root.LevelRestricted())
	assert.False(t, root.IsUniform())
	// The SW corner holds the bump; its leaves are the deepest
	assert.Equal(t, 4, root.Children[0].MaxDepth())
	assert.True(t, root.Children[2].MaxDepth() < root.Children[0].MaxDepth())

	var (
		leaves = root.Leaves()
		src    = utils.NewMatrix(len(leaves), p*p)
	)
	for k, lf := range leaves {
		src.SetRow(k, evalRows(ops.LeafPoints(lf.Box), f).DataP())
	}
	prob := laplaceProblem2D(t, root, ops, src)
	_, err := BuildSolver(prob, Config{})
	assert.NoError(t, err)
	var (
		XY, perr = prob.RootBoundaryPoints()
		g        = evalRows(XY, u)
		bd       BoundaryData
		ofs      = 0
	)
	assert.NoError(t, perr)
	for s := 0; s < 4; s++ {
		n := q * len(prob.build.rootSides[s])
		bd.Sides[s] = g.Subset(utils.NewRangeIndex(ofs, ofs+n))
		ofs += n
	}
	sol, err := Solve(prob, bd, utils.Matrix{})
	assert.NoError(t, err)
	for k, lf := range leaves {
		exact := evalRows(ops.LeafPoints(lf.Box), u)
		assert.InDelta(t, 0, sol.U.Row(k).MaxAbsDiff(exact), 1.e-9)
	}
}

func TestAdaptiveRejections(t *testing.T) {
	var (
		p, q = 6, 4
		ops  = operators.NewOperatorSet2D(p, q)
	)
	{ // a two-level jump across a sibling interface violates the level
		// restriction and must fail the build
		root := tree.NewRoot2D(0, 1, 0, 1)
		root.Split()
		root.Children[0].Split()
		root.Children[0].Children[1].Split() // SE child of SW quadrant
		assert.False(t, root.LevelRestricted())
		prob := laplaceProblem2D(t, root, ops, utils.Matrix{})
		_, err := BuildSolver(prob, Config{})
		assert.True(t, errors.Is(err, ErrConfig))
	}
	{ // EnforceLevelRestriction repairs the same tree
		root := tree.NewRoot2D(0, 1, 0, 1)
		root.Split()
		root.Children[0].Split()
		root.Children[0].Children[1].Split()
		root.EnforceLevelRestriction()
		assert.True(t, root.LevelRestricted())
		prob := laplaceProblem2D(t, root, ops, utils.Matrix{})
		_, err := BuildSolver(prob, Config{})
		assert.NoError(t, err)
	}
	{ // runtime sources need a uniform build
		root := tree.NewRoot2D(0, 1, 0, 1)
		root.Split()
		root.Children[0].Split()
		prob := laplaceProblem2D(t, root, ops, utils.Matrix{})
		_, err := BuildSolver(prob, Config{})
		assert.NoError(t, err)
		src := constCoeff(root.NumLeaves(), p*p, 1)
		_, err = Solve(prob, BoundaryData{}, src)
		assert.True(t, errors.Is(err, ErrConfig))
	}
	{ // per-side boundary data lengths are validated
		root := tree.NewRoot2D(0, 1, 0, 1)
		root.Split()
		root.Children[0].Split()
		prob := laplaceProblem2D(t, root, ops, utils.Matrix{})
		_, err := BuildSolver(prob, Config{})
		assert.NoError(t, err)
		var bd BoundaryData
		for s := 0; s < 4; s++ {
			bd.Sides[s] = utils.NewVector(1)
		}
		_, err = Solve(prob, bd, utils.Matrix{})
		assert.True(t, errors.Is(err, ErrShape))
	}
}
