package operators

import (
	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

// OperatorSet3D is the 3D counterpart of OperatorSet2D for p^3 Chebyshev
// leaves with 6q^2 Gauss boundary points. Boundary-first ordering: the
// p^3-(p-2)^3 boundary nodes in natural tensor order followed by the
// interior nodes. Faces are ordered x-, x+, y-, y+, z-, z+, each face's
// q^2 Gauss points row-major over its two in-plane axes in xyz order.
type OperatorSet3D struct {
	POrder, QOrder int
	NBdry          int // p^3 - (p-2)^3

	DXX, DYY, DZZ          utils.Matrix
	DXY, DXZ, DYZ          utils.Matrix
	DX, DY, DZ             utils.Matrix
	P                      utils.Matrix // NBdry x 6q^2
	Q                      utils.Matrix // 6q^2 x p^3, reference normal derivative
	ChebyNodes, GaussPts   utils.Vector
	Perm                   utils.Index
}

func kron3(A, B, C utils.Matrix) utils.Matrix {
	return kron(kron(A, B), C)
}

func NewOperatorSet3D(p, q int) (ops *OperatorSet3D) {
	var (
		xc  = ChebyshevNodes(p)
		xg  = GaussNodes(q)
		D1  = DiffMatrix1D(xc)
		D2  = D1.Mul(D1)
		eye = utils.NewEye(p)
		np3 = p * p * p
		nb  = np3 - (p-2)*(p-2)*(p-2)
		at  = func(i, j, k int) int { return (i*p+j)*p + k }
		Icg = InterpMatrix1D(xc, xg)
		Igc = InterpMatrix1D(xg, xc)
	)
	ops = &OperatorSet3D{
		POrder:     p,
		QOrder:     q,
		NBdry:      nb,
		ChebyNodes: xc,
		GaussPts:   xg,
	}

	// Boundary-first permutation
	onBdry := func(i, j, k int) bool {
		return i == 0 || i == p-1 || j == 0 || j == p-1 || k == 0 || k == p-1
	}
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			for k := 0; k < p; k++ {
				if onBdry(i, j, k) {
					ops.Perm = append(ops.Perm, at(i, j, k))
				}
			}
		}
	}
	for i := 1; i < p-1; i++ {
		for j := 1; j < p-1; j++ {
			for k := 1; k < p-1; k++ {
				ops.Perm = append(ops.Perm, at(i, j, k))
			}
		}
	}

	permute := func(M utils.Matrix) utils.Matrix {
		return M.SliceRows(ops.Perm).SliceCols(ops.Perm)
	}
	DxF := kron3(D1, eye, eye)
	DyF := kron3(eye, D1, eye)
	DzF := kron3(eye, eye, D1)
	ops.DX = permute(DxF)
	ops.DY = permute(DyF)
	ops.DZ = permute(DzF)
	ops.DXX = permute(kron3(D2, eye, eye))
	ops.DYY = permute(kron3(eye, D2, eye))
	ops.DZZ = permute(kron3(eye, eye, D2))
	ops.DXY = permute(kron3(D1, D1, eye))
	ops.DXZ = permute(kron3(D1, eye, D1))
	ops.DYZ = permute(kron3(eye, D1, D1))

	// Face descriptors: fixed axis, fixed index, outward sign, node lookup
	// by the two in-plane indices (first in-plane axis outer).
	type face struct {
		nOp   utils.Matrix
		sign  float64
		nodes func(a, b int) int
	}
	faces := []face{
		{DxF, -1, func(a, b int) int { return at(0, a, b) }},
		{DxF, 1, func(a, b int) int { return at(p-1, a, b) }},
		{DyF, -1, func(a, b int) int { return at(a, 0, b) }},
		{DyF, 1, func(a, b int) int { return at(a, p-1, b) }},
		{DzF, -1, func(a, b int) int { return at(a, b, 0) }},
		{DzF, 1, func(a, b int) int { return at(a, b, p-1) }},
	}

	// Q: per face, restrict the outward normal derivative to the face's
	// Chebyshev nodes and interpolate in-plane to the q^2 Gauss points.
	Icg2 := kron(Icg, Icg) // q^2 x p^2
	ops.Q = utils.NewMatrix(6*q*q, np3)
	for f, fc := range faces {
		sel := utils.NewIndex(p * p)
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				sel[a*p+b] = fc.nodes(a, b)
			}
		}
		nRows := fc.nOp.SliceRows(sel).Scale(fc.sign) // p^2 x p^3
		ops.Q.SetSubmatrix(f*q*q, 0, Icg2.Mul(nRows).SliceCols(ops.Perm))
	}

	// P: each boundary Chebyshev node receives the tensor interpolation
	// weights from every face containing it, averaged over those faces.
	ops.P = utils.NewMatrix(nb, 6*q*q)
	for r, m := range ops.Perm[:nb] {
		i, j, k := m/(p*p), (m/p)%p, m%p
		type hit struct {
			f      int
			a1, a2 int
		}
		var hits []hit
		if i == 0 {
			hits = append(hits, hit{0, j, k})
		}
		if i == p-1 {
			hits = append(hits, hit{1, j, k})
		}
		if j == 0 {
			hits = append(hits, hit{2, i, k})
		}
		if j == p-1 {
			hits = append(hits, hit{3, i, k})
		}
		if k == 0 {
			hits = append(hits, hit{4, i, j})
		}
		if k == p-1 {
			hits = append(hits, hit{5, i, j})
		}
		w := 1.0 / float64(len(hits))
		for _, h := range hits {
			for c1 := 0; c1 < q; c1++ {
				for c2 := 0; c2 < q; c2++ {
					col := h.f*q*q + c1*q + c2
					val := w * Igc.At(h.a1, c1) * Igc.At(h.a2, c2)
					ops.P.Set(r, col, ops.P.At(r, col)+val)
				}
			}
		}
	}
	return
}

// FluxOp returns the physical outward-normal flux operator for a leaf of
// the given halfside.
func (ops *OperatorSet3D) FluxOp(halfside float64) utils.Matrix {
	return ops.Q.Copy().Scale(1.0 / halfside)
}

// LeafPoints returns the p^3 physical node coordinates of a leaf in
// boundary-first order, one (x, y, z) row per node.
func (ops *OperatorSet3D) LeafPoints(b tree.Box) (XYZ utils.Matrix) {
	var (
		p  = ops.POrder
		xc = ops.ChebyNodes
	)
	XYZ = utils.NewMatrix(p*p*p, 3)
	for r, m := range ops.Perm {
		i, j, k := m/(p*p), (m/p)%p, m%p
		XYZ.Set(r, 0, b.XMin+0.5*(xc.At(i)+1)*b.SideX())
		XYZ.Set(r, 1, b.YMin+0.5*(xc.At(j)+1)*b.SideY())
		XYZ.Set(r, 2, b.ZMin+0.5*(xc.At(k)+1)*b.SideZ())
	}
	return
}

// FaceGaussPoints returns the 6q^2 physical Gauss boundary coordinates of
// a leaf in face order, used for interface matching during oct merges.
func (ops *OperatorSet3D) FaceGaussPoints(b tree.Box) (XYZ utils.Matrix) {
	var (
		q  = ops.QOrder
		xg = ops.GaussPts
		to = func(t, lo, hi float64) float64 { return lo + 0.5*(t+1)*(hi-lo) }
	)
	XYZ = utils.NewMatrix(6*q*q, 3)
	row := 0
	set := func(x, y, z float64) {
		XYZ.Set(row, 0, x)
		XYZ.Set(row, 1, y)
		XYZ.Set(row, 2, z)
		row++
	}
	for a := 0; a < q; a++ {
		for c := 0; c < q; c++ {
			set(b.XMin, to(xg.At(a), b.YMin, b.YMax), to(xg.At(c), b.ZMin, b.ZMax))
		}
	}
	for a := 0; a < q; a++ {
		for c := 0; c < q; c++ {
			set(b.XMax, to(xg.At(a), b.YMin, b.YMax), to(xg.At(c), b.ZMin, b.ZMax))
		}
	}
	for a := 0; a < q; a++ {
		for c := 0; c < q; c++ {
			set(to(xg.At(a), b.XMin, b.XMax), b.YMin, to(xg.At(c), b.ZMin, b.ZMax))
		}
	}
	for a := 0; a < q; a++ {
		for c := 0; c < q; c++ {
			set(to(xg.At(a), b.XMin, b.XMax), b.YMax, to(xg.At(c), b.ZMin, b.ZMax))
		}
	}
	for a := 0; a < q; a++ {
		for c := 0; c < q; c++ {
			set(to(xg.At(a), b.XMin, b.XMax), to(xg.At(c), b.YMin, b.YMax), b.ZMin)
		}
	}
	for a := 0; a < q; a++ {
		for c := 0; c < q; c++ {
			set(to(xg.At(a), b.XMin, b.XMax), to(xg.At(c), b.YMin, b.YMax), b.ZMax)
		}
	}
	return
}
