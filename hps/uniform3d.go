package hps

import (
	"fmt"
	"math"
	"sync"

	"github.com/notargets/hps/utils"
)

// 3D build. Oct merges are driven by coordinate matching rather than a
// fixed face-ordering convention: each subtree carries the physical
// coordinates of its boundary Gauss points alongside T and h, and a
// boundary point shared by exactly two children is an interface unknown.
// The parent's boundary ordering is then child-major over the unmatched
// points, and the root ordering is exposed through RootBoundaryPoints.

// mergeRecordOct is the down-pass record for one oct merge.
type mergeRecordOct struct {
	S  utils.Matrix // (nI x nE) interface solve operator
	Gt utils.Vector
	// src maps each child boundary index to its parent-level source slot
	src [8][]pointSrc
	nE  int
}

type pointSrc struct {
	iface bool
	pos   int
}

type mergeLevelOct struct {
	groups []mergeRecordOct
}

// pointKey quantizes a coordinate for interface matching. The grid is
// coarse relative to 1ulp of the box arithmetic and fine relative to the
// Gauss point spacing.
func pointKey(x, y, z, scale float64) [3]int64 {
	eps := scale * 1e-9
	return [3]int64{
		int64(math.Round(x / eps)),
		int64(math.Round(y / eps)),
		int64(math.Round(z / eps)),
	}
}

// matchOctBoundaries classifies the eight children's boundary points into
// shared interface unknowns and parent exterior slots.
func matchOctBoundaries(pts [8]utils.Matrix, scale float64) (
	src [8][]pointSrc, nE, nI int, err error) {
	type hit struct {
		child, idx int
	}
	seen := make(map[[3]int64][]hit)
	var order [][3]int64
	for k := 0; k < 8; k++ {
		nk, _ := pts[k].Dims()
		src[k] = make([]pointSrc, nk)
		for j := 0; j < nk; j++ {
			key := pointKey(pts[k].At(j, 0), pts[k].At(j, 1), pts[k].At(j, 2), scale)
			if _, ok := seen[key]; !ok {
				order = append(order, key)
			}
			seen[key] = append(seen[key], hit{k, j})
		}
	}
	for _, key := range order {
		hits := seen[key]
		switch len(hits) {
		case 1:
			src[hits[0].child][hits[0].idx] = pointSrc{iface: false, pos: nE}
			nE++
		case 2:
			for _, h := range hits {
				src[h.child][h.idx] = pointSrc{iface: true, pos: nI}
			}
			nI++
		default:
			err = fmt.Errorf("%w: boundary point shared by %d children", ErrShape, len(hits))
			return
		}
	}
	return
}

// mergeOct eliminates the interface unknowns of one sibling group. Flux
// continuity at a shared point is the sum of the two children's outward
// fluxes vanishing, so rows scatter additively into the interface block.
func mergeOct(T []utils.Matrix, h []utils.Vector, src [8][]pointSrc, nE, nI int) (
	Tp utils.Matrix, hp utils.Vector, S utils.Matrix, Gt utils.Vector, err error) {
	var (
		D    = utils.NewMatrix(nI, nI)
		C    = utils.NewMatrix(nI, nE)
		AEE  = utils.NewMatrix(nE, nE)
		AEI  = utils.NewMatrix(nE, nI)
		hInt = utils.NewVector(nI)
		hExt = utils.NewVector(nE)
	)
	for k := 0; k < 8; k++ {
		nk := len(src[k])
		for j := 0; j < nk; j++ {
			rs := src[k][j]
			for j2 := 0; j2 < nk; j2++ {
				cs := src[k][j2]
				v := T[k].At(j, j2)
				switch {
				case rs.iface && cs.iface:
					D.Set(rs.pos, cs.pos, D.At(rs.pos, cs.pos)+v)
				case rs.iface:
					C.Set(rs.pos, cs.pos, C.At(rs.pos, cs.pos)+v)
				case cs.iface:
					AEI.Set(rs.pos, cs.pos, AEI.At(rs.pos, cs.pos)+v)
				default:
					AEE.Set(rs.pos, cs.pos, AEE.At(rs.pos, cs.pos)+v)
				}
			}
			if rs.iface {
				hInt.Set(rs.pos, hInt.At(rs.pos)+h[k].At(j))
			} else {
				hExt.Set(rs.pos, hExt.At(rs.pos)+h[k].At(j))
			}
		}
	}
	lu, luErr := D.LU()
	if luErr != nil {
		err = fmt.Errorf("%w: interface system", ErrSingularMerge)
		return
	}
	S = lu.Solve(C).Scale(-1)
	Gt = lu.SolveVec(hInt).Scale(-1)
	Tp = AEE.Add(AEI.Mul(S))
	hp = hExt.Add(AEI.MulVec(Gt))
	return
}

// localSolve3DDtN is the 3D leaf elimination; identical in shape to the 2D
// version with face-based boundary operators.
func (prob *PDEProblem) localSolve3DDtN(leaves []leafRef) (res *LocalSolveResult, err error) {
	var (
		ops     = prob.Ops3D
		p       = ops.POrder
		np3     = p * p * p
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
				A := prob.assembleLeafOperator3D(lf.index, halfside)
				AII := A.Slice(nb, np3, nb, np3)
				AIE := A.Slice(nb, np3, 0, nb)
				lu, luErr := AII.LU()
				if luErr != nil {
					errs[k] = fmt.Errorf("%w: leaf %d", ErrSingularLeaf, lf.index)
					continue
				}
				solnOp := lu.Solve(AIE).Scale(-1)
				L2 := utils.NewMatrix(np3, nb)
				L2.SetSubmatrix(0, 0, utils.NewEye(nb))
				L2.SetSubmatrix(nb, 0, solnOp)
				Q := ops.FluxOp(halfside)
				Y := L2.Mul(ops.P)
				res.Y[k] = Y
				res.T[k] = Q.Mul(Y)

				src := prob.leafSource(lf.index, np3)
				v := utils.NewVector(np3)
				vInt := lu.SolveVec(src.Subset(utils.NewRangeIndex(nb, np3)))
				for i := 0; i < np3-nb; i++ {
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

// buildUniform3DDtN runs the level-synchronous oct merge sweep and returns
// the root operator. The root boundary point list is retained so callers
// can order their boundary data.
func (prob *PDEProblem) buildUniform3DDtN() (Ttop utils.Matrix, err error) {
	leaves := allLeaves(prob.Root)
	local, err := prob.localSolve3DDtN(leaves)
	if err != nil {
		return
	}
	prob.build = &buildState{local: local}
	var (
		T     = append([]utils.Matrix{}, local.T...)
		h     = append([]utils.Vector{}, local.H...)
		pts   []utils.Matrix
		scale = prob.Root.Box.SideX()
	)
	for _, lf := range leaves {
		pts = append(pts, prob.Ops3D.FaceGaussPoints(lf.node.Box))
	}
	for len(T) > 1 {
		var (
			nGroups = len(T) / 8
			nextT   = make([]utils.Matrix, nGroups)
			nextH   = make([]utils.Vector, nGroups)
			nextPts = make([]utils.Matrix, nGroups)
			level   = mergeLevelOct{groups: make([]mergeRecordOct, nGroups)}
			wg      sync.WaitGroup
			pm      = utils.NewPartitionMap(numWorkers(nGroups), nGroups)
			errs    = make([]error, nGroups)
		)
		for n := 0; n < pm.ParallelDegree; n++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				gMin, gMax := pm.GetBucketRange(n)
				for g := gMin; g < gMax; g++ {
					var childPts [8]utils.Matrix
					copy(childPts[:], pts[8*g:8*g+8])
					src, nE, nI, mErr := matchOctBoundaries(childPts, scale)
					if mErr != nil {
						errs[g] = mErr
						continue
					}
					Tp, hp, S, Gt, mErr := mergeOct(T[8*g:8*g+8], h[8*g:8*g+8], src, nE, nI)
					if mErr != nil {
						errs[g] = mErr
						continue
					}
					ext := utils.NewMatrix(nE, 3)
					for k := 0; k < 8; k++ {
						for j, s := range src[k] {
							if !s.iface {
								ext.SetRow(s.pos, []float64{
									childPts[k].At(j, 0), childPts[k].At(j, 1), childPts[k].At(j, 2)})
							}
						}
					}
					nextT[g], nextH[g], nextPts[g] = Tp, hp, ext
					level.groups[g] = mergeRecordOct{S: S, Gt: Gt, src: src, nE: nE}
				}
			}(n)
		}
		wg.Wait()
		for _, e := range errs {
			if e != nil {
				return utils.Matrix{}, e
			}
		}
		prob.build.levelsOct = append(prob.build.levelsOct, level)
		for i := range T {
			T[i], h[i], pts[i] = utils.Matrix{}, utils.Vector{}, utils.Matrix{}
		}
		T, h, pts = nextT, nextH, nextPts
	}
	prob.build.rootPoints = pts[0]
	Ttop = T[0]
	return
}

// downPass3DDtN propagates root Dirichlet data, ordered per
// RootBoundaryPoints, down to the leaves and reconstructs the volume
// solution, one row of p^3 values per leaf.
func (prob *PDEProblem) downPass3DDtN(gRoot utils.Vector) (sol utils.Matrix, err error) {
	var (
		local = prob.build.local
		np3   = prob.Ops3D.POrder * prob.Ops3D.POrder * prob.Ops3D.POrder
		nTop  int
	)
	if prob.build.rootPoints.IsEmpty() {
		nTop = prob.Ops3D.QOrder * prob.Ops3D.QOrder * 6
	} else {
		nTop, _ = prob.build.rootPoints.Dims()
	}
	if gRoot.Len() != nTop {
		err = fmt.Errorf("%w: root boundary data has length %d, want %d",
			ErrShape, gRoot.Len(), nTop)
		return
	}
	g := []utils.Vector{gRoot}
	for lvl := len(prob.build.levelsOct) - 1; lvl >= 0; lvl-- {
		level := prob.build.levelsOct[lvl]
		next := make([]utils.Vector, 0, 8*len(level.groups))
		for gi, rec := range level.groups {
			gInt := rec.S.MulVec(g[gi]).Add(rec.Gt)
			for k := 0; k < 8; k++ {
				gk := utils.NewVector(len(rec.src[k]))
				for j, s := range rec.src[k] {
					if s.iface {
						gk.Set(j, gInt.At(s.pos))
					} else {
						gk.Set(j, g[gi].At(s.pos))
					}
				}
				next = append(next, gk)
			}
		}
		g = next
	}
	sol = utils.NewMatrix(len(local.Y), np3)
	for k := range local.Y {
		u := local.Y[k].MulVec(g[k]).Add(local.V[k])
		sol.SetRow(k, u.DataP())
	}
	return
}

// RootBoundaryPoints returns the physical coordinates of the root boundary
// Gauss points in the ordering the solver's root operator uses. For 2D
// problems the ordering is the counterclockwise panel convention; for 3D it
// is the ordering produced by the merge hierarchy.
func (prob *PDEProblem) RootBoundaryPoints() (XYZ utils.Matrix, err error) {
	if prob.build == nil {
		err = fmt.Errorf("%w: solver not built", ErrConfig)
		return
	}
	if prob.Dim == 3 {
		XYZ = prob.build.rootPoints
		return
	}
	XYZ = prob.rootBoundaryPoints2D()
	return
}
