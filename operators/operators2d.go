package operators

import (
	"math"

	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

// OperatorSet2D holds the dense operators shared by every 2D leaf of
// polynomial order p and boundary Gauss order q. All matrices live on the
// reference element [-1,1]^2 with the p^2 Chebyshev tensor nodes permuted
// boundary-first: 4(p-1) boundary nodes counterclockwise from the SW
// corner (S side W to E, E side S to N, N side E to W, W side N to S,
// corners counted once) followed by the (p-2)^2 interior nodes. The Gauss
// boundary carries 4q points in the same counterclockwise side order.
type OperatorSet2D struct {
	POrder, QOrder int
	NBdry          int // 4(p-1) boundary Chebyshev nodes

	// Differential operators, p^2 x p^2, boundary-first ordering
	DXX, DXY, DYY, DX, DY utils.Matrix

	// P maps Gauss boundary data (4q) to Chebyshev boundary data (4(p-1)),
	// averaging the two one-sided interpolants at corners. Q maps a full
	// Chebyshev-node solution (p^2) to its outward normal derivative at the
	// Gauss boundary (4q).
	P, Q utils.Matrix

	// EGauss interpolates a Chebyshev-node solution to its values on the
	// Gauss boundary. Used for the impedance extraction operators.
	EGauss utils.Matrix

	// Refine evaluates a side panel's q Gauss values on the two half-panel
	// Gauss grids (2q); Coarsen is its least-squares left inverse.
	Refine, Coarsen utils.Matrix

	ChebyNodes, GaussPts utils.Vector

	// Perm maps boundary-first position to tensor position i*p+j.
	Perm utils.Index
}

// kron computes the Kronecker product A (x) B.
func kron(A, B utils.Matrix) (R utils.Matrix) {
	var (
		ra, ca = A.Dims()
		rb, cb = B.Dims()
	)
	R = utils.NewMatrix(ra*rb, ca*cb)
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			aij := A.At(i, j)
			if aij == 0 {
				continue
			}
			for k := 0; k < rb; k++ {
				for l := 0; l < cb; l++ {
					R.Set(i*rb+k, j*cb+l, aij*B.At(k, l))
				}
			}
		}
	}
	return
}

// boundaryFirstPerm returns the permutation from boundary-first position to
// tensor position m = i*p + j, node (x_i, y_j).
func boundaryFirstPerm(p int) (perm utils.Index) {
	at := func(i, j int) int { return i*p + j }
	// S side, W to E, SW corner included
	for i := 0; i < p-1; i++ {
		perm = append(perm, at(i, 0))
	}
	// E side, S to N
	for j := 0; j < p-1; j++ {
		perm = append(perm, at(p-1, j))
	}
	// N side, E to W
	for i := p - 1; i > 0; i-- {
		perm = append(perm, at(i, p-1))
	}
	// W side, N to S
	for j := p - 1; j > 0; j-- {
		perm = append(perm, at(0, j))
	}
	// Interior, row-major
	for i := 1; i < p-1; i++ {
		for j := 1; j < p-1; j++ {
			perm = append(perm, at(i, j))
		}
	}
	return
}

func NewOperatorSet2D(p, q int) (ops *OperatorSet2D) {
	var (
		xc    = ChebyshevNodes(p)
		xg    = GaussNodes(q)
		D1    = DiffMatrix1D(xc)
		D2    = D1.Mul(D1)
		eye   = utils.NewEye(p)
		perm  = boundaryFirstPerm(p)
		nb    = 4 * (p - 1)
		Icg   = InterpMatrix1D(xc, xg) // Chebyshev side values at Gauss points
		Igc   = InterpMatrix1D(xg, xc) // Gauss side values at Chebyshev points
		at    = func(i, j int) int { return i*p + j }
		np2   = p * p
	)
	ops = &OperatorSet2D{
		POrder:     p,
		QOrder:     q,
		NBdry:      nb,
		ChebyNodes: xc,
		GaussPts:   xg,
		Perm:       perm,
	}

	permute := func(M utils.Matrix) utils.Matrix {
		return M.SliceRows(perm).SliceCols(perm)
	}
	ops.DX = permute(kron(D1, eye))
	ops.DY = permute(kron(eye, D1))
	ops.DXX = permute(kron(D2, eye))
	ops.DYY = permute(kron(eye, D2))
	ops.DXY = permute(kron(D1, D1))

	// P: per side the Gauss->Chebyshev interpolant, with the ccw boundary
	// parametrization making all four side blocks identical. Corner rows
	// accumulate half weight from each of the two adjacent sides.
	ops.P = utils.NewMatrix(nb, 4*q)
	for s := 0; s < 4; s++ {
		for k := 0; k < p; k++ {
			r := (s*(p-1) + k) % nb
			w := 1.0
			if k == 0 || k == p-1 {
				w = 0.5
			}
			for c := 0; c < q; c++ {
				ops.P.Set(r, s*q+c, ops.P.At(r, s*q+c)+w*Igc.At(k, c))
			}
		}
	}

	// Side node lists in ccw order (all p nodes, both corners) and the
	// outward normal derivative operator per side.
	type side struct {
		nodes utils.Index // tensor positions, ccw order
		nOp   utils.Matrix
		sign  float64
	}
	DxF := kron(D1, eye)
	DyF := kron(eye, D1)
	sides := make([]side, 4)
	for k := 0; k < p; k++ {
		sides[0].nodes = append(sides[0].nodes, at(k, 0))       // S, W to E
		sides[1].nodes = append(sides[1].nodes, at(p-1, k))     // E, S to N
		sides[2].nodes = append(sides[2].nodes, at(p-1-k, p-1)) // N, E to W
		sides[3].nodes = append(sides[3].nodes, at(0, p-1-k))   // W, N to S
	}
	sides[0].nOp, sides[0].sign = DyF, -1
	sides[1].nOp, sides[1].sign = DxF, 1
	sides[2].nOp, sides[2].sign = DyF, 1
	sides[3].nOp, sides[3].sign = DxF, -1

	// Q and EGauss: per side, select the side rows of the (normal
	// derivative / identity) operator at the Chebyshev side nodes, then
	// interpolate along the side to the Gauss points.
	ops.Q = utils.NewMatrix(4*q, np2)
	ops.EGauss = utils.NewMatrix(4*q, np2)
	eyeFull := utils.NewEye(np2)
	for s, sd := range sides {
		nRows := sd.nOp.SliceRows(sd.nodes).Scale(sd.sign) // p x p^2
		vRows := eyeFull.SliceRows(sd.nodes)
		qBlock := Icg.Mul(nRows).SliceCols(perm) // q x p^2, boundary-first cols
		eBlock := Icg.Mul(vRows).SliceCols(perm)
		ops.Q.SetSubmatrix(s*q, 0, qBlock)
		ops.EGauss.SetSubmatrix(s*q, 0, eBlock)
	}

	// Half-panel refinement and its least-squares coarsening inverse
	half := utils.NewVector(2 * q)
	for c := 0; c < q; c++ {
		half.Set(c, 0.5*(xg.At(c)-1))
		half.Set(q+c, 0.5*(xg.At(c)+1))
	}
	ops.Refine = InterpMatrix1D(xg, half)
	RtR := ops.Refine.Transpose().Mul(ops.Refine)
	RtRInv, err := RtR.Inverse()
	if err != nil {
		panic(err)
	}
	ops.Coarsen = RtRInv.Mul(ops.Refine.Transpose())
	return
}

// ImpedanceOps returns the impedance extraction operators for parameter eta
// on a leaf of the given halfside: In extracts the incoming trace
// du/dn + i eta u and Out the outgoing trace du/dn - i eta u, both at the
// Gauss boundary points of a Chebyshev-grid solution. The normal derivative
// carries the physical 1/halfside rescaling from the reference element.
func (ops *OperatorSet2D) ImpedanceOps(eta, halfside float64) (In, Out utils.CMatrix) {
	var (
		nbg    = 4 * ops.QOrder
		_, np2 = ops.Q.Dims()
		ieta   = complex(0, eta)
		hInv   = 1.0 / halfside
	)
	In = utils.FromReal(ops.Q.Copy().Scale(hInv))
	Out = In.Copy()
	for r := 0; r < nbg; r++ {
		for c := 0; c < np2; c++ {
			e := ieta * complex(ops.EGauss.At(r, c), 0)
			In.Set(r, c, In.At(r, c)+e)
			Out.Set(r, c, Out.At(r, c)-e)
		}
	}
	return
}

// FluxOp returns the physical outward-normal flux extraction operator for a
// leaf of the given halfside.
func (ops *OperatorSet2D) FluxOp(halfside float64) utils.Matrix {
	return ops.Q.Copy().Scale(1.0 / halfside)
}

// LeafPoints returns the p^2 physical Chebyshev node coordinates of a leaf
// in boundary-first order, one (x, y) row per node.
func (ops *OperatorSet2D) LeafPoints(b tree.Box) (XY utils.Matrix) {
	var (
		p  = ops.POrder
		xc = ops.ChebyNodes
	)
	XY = utils.NewMatrix(p*p, 2)
	for r, m := range ops.Perm {
		i, j := m/p, m%p
		XY.Set(r, 0, b.XMin+0.5*(xc.At(i)+1)*b.SideX())
		XY.Set(r, 1, b.YMin+0.5*(xc.At(j)+1)*b.SideY())
	}
	return
}

// GaussBoundaryPoints returns the 4q physical Gauss boundary coordinates
// of a leaf in ccw side order.
func (ops *OperatorSet2D) GaussBoundaryPoints(b tree.Box) (XY utils.Matrix) {
	return BoundaryPoints2D(b, ops.GaussPts, 1)
}

// InterpError estimates how well the cell's Chebyshev grid resolves f: f is
// sampled on the grid, interpolated onto the four child-quadrant Chebyshev
// grids, and compared against direct evaluation there. The return value is
// the max deviation, relative to max|f| when that exceeds one. Adaptive
// refinement splits a cell while this exceeds its tolerance.
func (ops *OperatorSet2D) InterpError(b tree.Box, f func(x, y float64) float64) (e float64) {
	var (
		p  = ops.POrder
		xc = ops.ChebyNodes
		lo = utils.NewVector(p)
		hi = utils.NewVector(p)
	)
	for i := 0; i < p; i++ {
		lo.Set(i, 0.5*(xc.At(i)-1))
		hi.Set(i, 0.5*(xc.At(i)+1))
	}
	var (
		halves = []utils.Vector{lo, hi}
		interp = []utils.Matrix{InterpMatrix1D(xc, lo), InterpMatrix1D(xc, hi)}
		F      = utils.NewMatrix(p, p)
		fmax   float64
	)
	phys := func(t, min, side float64) float64 { return min + 0.5*(t+1)*side }
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			v := f(phys(xc.At(i), b.XMin, b.SideX()), phys(xc.At(j), b.YMin, b.SideY()))
			F.Set(i, j, v)
			if math.Abs(v) > fmax {
				fmax = math.Abs(v)
			}
		}
	}
	for qx := 0; qx < 2; qx++ {
		for qy := 0; qy < 2; qy++ {
			G := interp[qx].Mul(F).Mul(interp[qy].Transpose())
			for i := 0; i < p; i++ {
				for j := 0; j < p; j++ {
					v := f(phys(halves[qx].At(i), b.XMin, b.SideX()),
						phys(halves[qy].At(j), b.YMin, b.SideY()))
					if d := math.Abs(G.At(i, j) - v); d > e {
						e = d
					}
				}
			}
		}
	}
	if fmax > 1 {
		e /= fmax
	}
	return
}

// BoundaryPoints2D returns the physical coordinates of the Gauss boundary
// points of box b when each side is split into nPanels equal panels, in ccw
// side order (S, E, N, W) with panels and points ordered along each side's
// ccw direction.
func BoundaryPoints2D(b tree.Box, xg utils.Vector, nPanels int) (XY utils.Matrix) {
	var (
		q       = xg.Len()
		corners = [4][2]float64{
			{b.XMin, b.YMin},
			{b.XMax, b.YMin},
			{b.XMax, b.YMax},
			{b.XMin, b.YMax},
		}
	)
	XY = utils.NewMatrix(4*nPanels*q, 2)
	row := 0
	for s := 0; s < 4; s++ {
		x0, y0 := corners[s][0], corners[s][1]
		x1, y1 := corners[(s+1)%4][0], corners[(s+1)%4][1]
		for pn := 0; pn < nPanels; pn++ {
			t0 := float64(pn) / float64(nPanels)
			t1 := float64(pn+1) / float64(nPanels)
			for c := 0; c < q; c++ {
				t := t0 + (t1-t0)*0.5*(xg.At(c)+1)
				XY.Set(row, 0, x0+t*(x1-x0))
				XY.Set(row, 1, y0+t*(y1-y0))
				row++
			}
		}
	}
	return
}
