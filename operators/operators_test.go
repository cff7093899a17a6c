package operators

import (
	"math"
	"testing"

	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
	"github.com/stretchr/testify/assert"
)

func TestNodes1D(t *testing.T) {
	// Gauss points integrate degree 2q-1 polynomials exactly
	{
		X, W := JacobiGQ(0, 0, 3)
		var integral float64
		for i := 0; i < X.Len(); i++ {
			x := X.At(i)
			integral += W.At(i) * (x*x*x*x*x*x + x*x)
		}
		assert.InDelta(t, 2./7.+2./3., integral, 1.e-13)
	}
	// Chebyshev-Lobatto endpoints and symmetry
	{
		X := ChebyshevNodes(5)
		assert.InDelta(t, -1, X.At(0), 1.e-15)
		assert.InDelta(t, 1, X.At(4), 1.e-15)
		assert.InDelta(t, 0, X.At(2), 1.e-15)
	}
	// Differentiation matrix is exact on polynomials
	{
		X := ChebyshevNodes(6)
		D := DiffMatrix1D(X)
		u := utils.NewVector(6)
		du := utils.NewVector(6)
		for i := 0; i < 6; i++ {
			x := X.At(i)
			u.Set(i, x*x*x-2*x)
			du.Set(i, 3*x*x-2)
		}
		assert.True(t, D.MulVec(u).MaxAbsDiff(du) < 1.e-12)
	}
	// Interpolation is exact on polynomials of fitting degree
	{
		from := GaussNodes(4)
		to := ChebyshevNodes(7)
		I := InterpMatrix1D(from, to)
		u := utils.NewVector(4)
		for i := 0; i < 4; i++ {
			x := from.At(i)
			u.Set(i, x*x*x+x*x-1)
		}
		ui := I.MulVec(u)
		for i := 0; i < 7; i++ {
			x := to.At(i)
			assert.InDelta(t, x*x*x+x*x-1, ui.At(i), 1.e-12)
		}
	}
}

func TestOperatorSet2D(t *testing.T) {
	var (
		p, q = 6, 4
		ops  = NewOperatorSet2D(p, q)
		b    = tree.Box{XMin: -1, XMax: 1, YMin: -1, YMax: 1}
		XY   = ops.LeafPoints(b)
		np2  = p * p
	)
	assert.Equal(t, 4*(p-1), ops.NBdry)

	// u = x^3 y + y^2 on the reference element
	u := utils.NewVector(np2)
	ux := utils.NewVector(np2)
	uyy := utils.NewVector(np2)
	for i := 0; i < np2; i++ {
		x, y := XY.At(i, 0), XY.At(i, 1)
		u.Set(i, x*x*x*y+y*y)
		ux.Set(i, 3*x*x*y)
		uyy.Set(i, 2)
	}
	assert.True(t, ops.DX.MulVec(u).MaxAbsDiff(ux) < 1.e-10)
	assert.True(t, ops.DYY.MulVec(u).MaxAbsDiff(uyy) < 1.e-10)

	// Q extracts the outward normal derivative on the Gauss boundary
	flux := ops.Q.MulVec(u)
	GB := ops.GaussBoundaryPoints(b)
	for r := 0; r < 4*q; r++ {
		x, y := GB.At(r, 0), GB.At(r, 1)
		var want float64
		switch r / q {
		case 0: // S, n = (0,-1)
			want = -(x * x * x) - 2*y
		case 1: // E, n = (1,0)
			want = 3 * x * x * y
		case 2: // N, n = (0,1)
			want = x*x*x + 2*y
		case 3: // W, n = (-1,0)
			want = -3 * x * x * y
		}
		assert.InDelta(t, want, flux.At(r), 1.e-10)
	}

	// P interpolates Gauss boundary samples onto the Chebyshev boundary
	gb := utils.NewVector(4 * q)
	for r := 0; r < 4*q; r++ {
		x, y := GB.At(r, 0), GB.At(r, 1)
		gb.Set(r, x*x*x*y+y*y)
	}
	cb := ops.P.MulVec(gb)
	for r := 0; r < ops.NBdry; r++ {
		x, y := XY.At(r, 0), XY.At(r, 1)
		assert.InDelta(t, x*x*x*y+y*y, cb.At(r), 1.e-10)
	}

	// Refine then coarsen is the identity on a panel's Gauss data
	gp := utils.NewVector(q)
	for i := 0; i < q; i++ {
		x := ops.GaussPts.At(i)
		gp.Set(i, math.Sin(x))
	}
	rt := ops.Coarsen.MulVec(ops.Refine.MulVec(gp))
	assert.True(t, rt.MaxAbsDiff(gp) < 1.e-12)
}

func TestInterpError(t *testing.T) {
	var (
		ops = NewOperatorSet2D(8, 6)
		b   = tree.Box{XMin: 0, XMax: 1, YMin: 0, YMax: 1}
	)
	// Polynomials of degree < p are represented exactly
	poly := func(x, y float64) float64 { return x*x*x*y - 2*y*y }
	assert.True(t, ops.InterpError(b, poly) < 1.e-12)

	// A narrow Gaussian is unresolved on the unit cell but resolved on a
	// fine cell away from its center
	bump := func(x, y float64) float64 {
		r2 := (x-0.3)*(x-0.3) + (y-0.3)*(y-0.3)
		return math.Exp(-400 * r2)
	}
	assert.True(t, ops.InterpError(b, bump) > 1.e-4)
	far := tree.Box{XMin: 0.75, XMax: 0.875, YMin: 0.75, YMax: 0.875}
	assert.True(t, ops.InterpError(far, bump) < 1.e-10)
}

func TestImpedanceOps(t *testing.T) {
	var (
		p, q = 6, 4
		eta  = 4.0
		ops  = NewOperatorSet2D(p, q)
		b    = tree.Box{XMin: -1, XMax: 1, YMin: -1, YMax: 1}
		XY   = ops.LeafPoints(b)
		np2  = p * p
	)
	In, Out := ops.ImpedanceOps(eta, b.Halfside())
	u := utils.NewCVector(np2)
	for i := 0; i < np2; i++ {
		x, y := XY.At(i, 0), XY.At(i, 1)
		u.Set(i, complex(x*x+y, 0))
	}
	f := In.MulVec(u)
	g := Out.MulVec(u)
	GB := ops.GaussBoundaryPoints(b)
	// S side: du/dn = -du/dy = -1, so f = -1 + i eta u
	for r := 0; r < q; r++ {
		x, y := GB.At(r, 0), GB.At(r, 1)
		want := complex(-1, 0) + complex(0, eta)*complex(x*x+y, 0)
		assert.InDelta(t, real(want), real(f.At(r)), 1.e-10)
		assert.InDelta(t, imag(want), imag(f.At(r)), 1.e-10)
	}
	// E side: du/dn = 2x = 2, g = 2 - i eta u
	for r := q; r < 2*q; r++ {
		x, y := GB.At(r, 0), GB.At(r, 1)
		want := complex(2*x, 0) - complex(0, eta)*complex(x*x+y, 0)
		assert.InDelta(t, real(want), real(g.At(r)), 1.e-10)
		assert.InDelta(t, imag(want), imag(g.At(r)), 1.e-10)
	}
}

func TestOperatorSet3D(t *testing.T) {
	var (
		p, q = 4, 3
		ops  = NewOperatorSet3D(p, q)
		b    = tree.Box{XMin: -1, XMax: 1, YMin: -1, YMax: 1, ZMin: -1, ZMax: 1}
		XYZ  = ops.LeafPoints(b)
		np3  = p * p * p
	)
	assert.Equal(t, np3-(p-2)*(p-2)*(p-2), ops.NBdry)

	// u = x^2 z + y z
	u := utils.NewVector(np3)
	uz := utils.NewVector(np3)
	for i := 0; i < np3; i++ {
		x, y, z := XYZ.At(i, 0), XYZ.At(i, 1), XYZ.At(i, 2)
		u.Set(i, x*x*z+y*z)
		uz.Set(i, x*x+y)
	}
	assert.True(t, ops.DZ.MulVec(u).MaxAbsDiff(uz) < 1.e-10)

	// Q on the z+ face extracts du/dz
	flux := ops.Q.MulVec(u)
	FG := ops.FaceGaussPoints(b)
	for r := 5 * q * q; r < 6*q*q; r++ {
		x, y := FG.At(r, 0), FG.At(r, 1)
		assert.InDelta(t, x*x+y, flux.At(r), 1.e-10)
	}

	// P interpolates face Gauss samples onto boundary Chebyshev nodes
	gb := utils.NewVector(6 * q * q)
	for r := 0; r < 6*q*q; r++ {
		x, y, z := FG.At(r, 0), FG.At(r, 1), FG.At(r, 2)
		gb.Set(r, x*x*z+y*z)
	}
	cb := ops.P.MulVec(gb)
	for r := 0; r < ops.NBdry; r++ {
		x, y, z := XYZ.At(r, 0), XYZ.At(r, 1), XYZ.At(r, 2)
		assert.InDelta(t, x*x*z+y*z, cb.At(r), 1.e-10)
	}
}

func TestAssembleGlobal(t *testing.T) {
	blocks := []utils.Matrix{
		utils.NewMatrix(2, 2, []float64{1, 2, 3, 4}),
		utils.NewMatrix(2, 2, []float64{5, 0, 0, 6}),
	}
	A := AssembleGlobal(blocks)
	u := utils.NewVector(4, []float64{1, 1, 1, 1})
	r := ApplyGlobal(A, u)
	assert.InDeltaSlice(t, []float64{3, 7, 5, 6}, r.DataP(), 1.e-14)
}
