package hps

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

// LocalSolveResult carries the per-leaf DtN local solve outputs. Y and V
// survive until the down pass; T and H are consumed by the first merge
// level.
type LocalSolveResult struct {
	Y []utils.Matrix // (p^d x nBdryGauss) homogeneous solution operators
	T []utils.Matrix // boundary operators
	V []utils.Vector // particular interior solutions
	H []utils.Vector // particular boundary fluxes
}

// LocalSolveResultItI is the complex counterpart for the impedance family.
type LocalSolveResultItI struct {
	Y []utils.CMatrix
	R []utils.CMatrix
	V []utils.CVector
	H []utils.CVector
}

// localSolve2DDtN runs the dense leaf elimination for the given leaves:
// A is partitioned boundary-first, the interior block factorized, and
//
//	Y = [I; -A_ii^-1 A_ie] P,  T = Q Y,  v_int = A_ii^-1 src_int,  h = Q v.
//
// Leaves are independent, so the loop fans out over goroutines.
func (prob *PDEProblem) localSolve2DDtN(leaves []leafRef) (res *LocalSolveResult, err error) {
	var (
		ops     = prob.Ops2D
		p       = ops.POrder
		np2     = p * p
		nb      = ops.NBdry
		nLeaves = len(leaves)
		wg      sync.WaitGroup
		pm      = utils.NewPartitionMap(numWorkers(nLeaves), nLeaves)
		errs    = make([]error, nLeaves)
	)
	res = &LocalSolveResult{
		Y: make([]utils.Matrix, nLeaves),
		T: make([]utils.Matrix, nLeaves),
		V: make([]utils.Vector, nLeaves),
		H: make([]utils.Vector, nLeaves),
	}
	for n := 0; n < pm.ParallelDegree; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			kMin, kMax := pm.GetBucketRange(n)
			for k := kMin; k < kMax; k++ {
				lf := leaves[k]
				halfside := lf.node.Box.Halfside()
				A := prob.assembleLeafOperator2D(lf.index, halfside)
				AII := A.Slice(nb, np2, nb, np2)
				AIE := A.Slice(nb, np2, 0, nb)
				lu, luErr := AII.LU()
				if luErr != nil {
					errs[k] = fmt.Errorf("%w: leaf %d", ErrSingularLeaf, lf.index)
					continue
				}
				solnOp := lu.Solve(AIE).Scale(-1)
				L2 := utils.NewMatrix(np2, nb)
				L2.SetSubmatrix(0, 0, utils.NewEye(nb))
				L2.SetSubmatrix(nb, 0, solnOp)
				Q := ops.FluxOp(halfside)
				Y := L2.Mul(ops.P)
				res.Y[k] = Y
				res.T[k] = Q.Mul(Y)

				src := prob.leafSource(lf.index, np2)
				v := utils.NewVector(np2)
				vInt := lu.SolveVec(src.Subset(utils.NewRangeIndex(nb, np2)))
				for i := 0; i < np2-nb; i++ {
					v.Set(nb+i, vInt.At(i))
				}
				res.V[k] = v
				res.H[k] = Q.MulVec(v)
			}
		}(n)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return
}

// localSolve2DItI builds the leaf impedance maps from the same Dirichlet
// elimination as the DtN family, keeping both impedance traces on the Gauss
// boundary points. With T the leaf's Neumann map and W = (T + i eta)^-1,
//
//	R = (T - i eta) W,  Y = [I; -A_ii^-1 A_ie] P W,
//	V = v - Y h,  H = (I - R) h,  h = Q v,
//
// where v is the particular interior solution with zero Dirichlet trace.
func (prob *PDEProblem) localSolve2DItI(leaves []leafRef) (res *LocalSolveResultItI, err error) {
	var (
		ops     = prob.Ops2D
		p       = ops.POrder
		np2     = p * p
		nb      = ops.NBdry
		nbg     = 4 * ops.QOrder
		nLeaves = len(leaves)
		wg      sync.WaitGroup
		pm      = utils.NewPartitionMap(numWorkers(nLeaves), nLeaves)
		errs    = make([]error, nLeaves)
	)
	res = &LocalSolveResultItI{
		Y: make([]utils.CMatrix, nLeaves),
		R: make([]utils.CMatrix, nLeaves),
		V: make([]utils.CVector, nLeaves),
		H: make([]utils.CVector, nLeaves),
	}
	for n := 0; n < pm.ParallelDegree; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			kMin, kMax := pm.GetBucketRange(n)
			for k := kMin; k < kMax; k++ {
				lf := leaves[k]
				halfside := lf.node.Box.Halfside()
				A := prob.assembleLeafOperator2D(lf.index, halfside)
				AII := A.Slice(nb, np2, nb, np2)
				AIE := A.Slice(nb, np2, 0, nb)
				lu, luErr := AII.LU()
				if luErr != nil {
					errs[k] = fmt.Errorf("%w: leaf %d", ErrSingularLeaf, lf.index)
					continue
				}
				solnOp := lu.Solve(AIE).Scale(-1)
				L2 := utils.NewMatrix(np2, nb)
				L2.SetSubmatrix(0, 0, utils.NewEye(nb))
				L2.SetSubmatrix(nb, 0, solnOp)
				Q := ops.FluxOp(halfside)
				YD := L2.Mul(ops.P)
				T := Q.Mul(YD)
				iEta := utils.NewCEye(nbg).Scale(complex(0, prob.Eta))
				W, invErr := utils.FromReal(T).Add(iEta).Inverse()
				if invErr != nil {
					errs[k] = fmt.Errorf("%w: leaf %d", ErrSingularLeaf, lf.index)
					continue
				}
				R := utils.FromReal(T).Subtract(iEta).Mul(W)
				Y := utils.FromReal(YD).Mul(W)
				res.Y[k] = Y
				res.R[k] = R

				src := prob.leafSource(lf.index, np2)
				v := utils.NewVector(np2)
				vInt := lu.SolveVec(src.Subset(utils.NewRangeIndex(nb, np2)))
				for i := 0; i < np2-nb; i++ {
					v.Set(nb+i, vInt.At(i))
				}
				h := utils.FromRealVector(Q.MulVec(v))
				res.V[k] = utils.FromRealVector(v).Subtract(Y.MulVec(h))
				res.H[k] = h.Copy().Subtract(R.MulVec(h))
			}
		}(n)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return
}

// leafRef pairs a tree leaf with its index in the problem's canonical leaf
// ordering, so chunked execution can address leaf subranges.
type leafRef struct {
	node  *tree.Node
	index int
}

func allLeaves(root *tree.Node) (refs []leafRef) {
	for i, n := range root.Leaves() {
		refs = append(refs, leafRef{node: n, index: i})
	}
	return
}

func numWorkers(n int) int {
	w := runtime.GOMAXPROCS(0)
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}
