package hps

import (
	"fmt"

	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

// Adaptive 2D DtN build. Merging follows the tree in post-order. A node's
// boundary is described per side by a list of dyadic panels, each carrying
// q Gauss points; a panel at depth d spans side/2^d. Before a merge, any
// interface panel that is one level coarser than its partner's is split and
// the child's operator re-expressed on the refined side (T <- R T C with
// per-panel refinement and least-squares coarsening interpolants). Level
// restriction bounds the mismatch to a single split per panel.

// adaptiveRecord is the per-internal-node down-pass record.
type adaptiveRecord struct {
	S          utils.Matrix
	Gt         utils.Vector
	childC     [4]utils.Matrix // refined -> native incoming data, empty = identity
	childSizes [4][4]int       // per-child per-side point counts after refinement
	children   [4]*adaptiveRecord
	childLeaf  [4]int // leaf index, -1 for internal children
}

// adaptState is one child's boundary operator during the post-order walk.
type adaptState struct {
	T     utils.Matrix
	h     utils.Vector
	sides [4][]int // panel depths per side, in side direction order
	rec   *adaptiveRecord
	leaf  int // leaf index, -1 for internal
}

func sideSizes(st *adaptState, q int) (sz [4]int) {
	for s := 0; s < 4; s++ {
		sz[s] = q * len(st.sides[s])
	}
	return
}

func sumSizes(sz [4]int) (n int) {
	for _, v := range sz {
		n += v
	}
	return
}

func sideOffset(sz [4]int, s int) (ofs int) {
	for s2 := 0; s2 < s; s2++ {
		ofs += sz[s2]
	}
	return
}

// matchInterface splits panels on the two facing sides until their dyadic
// subdivisions agree. Facing sides run in opposite directions, so one depth
// list is compared reversed. Returns the per-child lists of panel positions
// to split.
func matchInterface(depthsA, depthsB []int) (splitA, splitB []int, err error) {
	revB := make([]int, len(depthsB))
	for i, d := range depthsB {
		revB[len(depthsB)-1-i] = d
	}
	ia, ib := 0, 0
	for ia < len(depthsA) && ib < len(revB) {
		la := 1.0 / float64(int(1)<<uint(depthsA[ia]))
		lb := 1.0 / float64(int(1)<<uint(revB[ib]))
		switch {
		case la == lb:
			ia++
			ib++
		case la > lb:
			// panel ia is coarser; level restriction allows one split
			if la != 2*lb {
				err = fmt.Errorf("%w: interface panels differ by more than one level", ErrConfig)
				return
			}
			splitA = append(splitA, ia)
			ia++ // consumed as two half panels against revB[ib], revB[ib+1]
			ib += 2
		default:
			if lb != 2*la {
				err = fmt.Errorf("%w: interface panels differ by more than one level", ErrConfig)
				return
			}
			// position in the reversed list maps back to the native order
			splitB = append(splitB, len(depthsB)-1-ib)
			ia += 2
			ib++
		}
	}
	return
}

// applySplits refines the named panels of one side of a child state,
// returning the row (flux) and column (data) transforms on the full child
// boundary, or empty matrices when nothing split.
func applySplits(st *adaptState, side int, splits []int, q int,
	refine, coarsen utils.Matrix) (Rfull, Cfull utils.Matrix) {
	if len(splits) == 0 {
		return
	}
	var (
		oldSz = sideSizes(st, q)
		nOld  = sumSizes(oldSz)
	)
	inSplit := make(map[int]bool, len(splits))
	for _, j := range splits {
		inSplit[j] = true
	}
	// New side depth list
	var newDepths []int
	for j, d := range st.sides[side] {
		if inSplit[j] {
			newDepths = append(newDepths, d+1, d+1)
		} else {
			newDepths = append(newDepths, d)
		}
	}
	nNew := nOld + q*len(splits)
	Rfull = utils.NewMatrix(nNew, nOld)
	Cfull = utils.NewMatrix(nOld, nNew)
	rowNew, rowOld := 0, 0
	for s := 0; s < 4; s++ {
		for j := range st.sides[s] {
			if s == side && inSplit[j] {
				Rfull.SetSubmatrix(rowNew, rowOld, refine)
				Cfull.SetSubmatrix(rowOld, rowNew, coarsen)
				rowNew += 2 * q
				rowOld += q
			} else {
				for i := 0; i < q; i++ {
					Rfull.Set(rowNew+i, rowOld+i, 1)
					Cfull.Set(rowOld+i, rowNew+i, 1)
				}
				rowNew += q
				rowOld += q
			}
		}
	}
	st.sides[side] = newDepths
	return
}

// composeTransform folds a new per-split transform pair into the child's
// accumulated (R, C) maps and re-expresses T and h on the refined side.
func composeTransform(st *adaptState, Rfull, Cfull utils.Matrix, C *utils.Matrix) {
	if Rfull.IsEmpty() {
		return
	}
	st.T = Rfull.Mul(st.T).Mul(Cfull)
	st.h = Rfull.MulVec(st.h)
	if C.IsEmpty() {
		*C = Cfull
	} else {
		*C = C.Mul(Cfull)
	}
	return
}

// mergeQuadDtNVar is the per-side-size generalization of mergeQuadDtN used
// by adaptive merges; the uniform merge is the equal-size special case.
func mergeQuadDtNVar(T []utils.Matrix, h []utils.Vector, sz [4][4]int, keepInv bool) (
	Tp utils.Matrix, hp utils.Vector, S utils.Matrix, Gt utils.Vector,
	DInv, BDInv utils.Matrix, err error) {
	// Interface sizes: both children of an interface must agree
	var nIface [4]int
	for k := 0; k < 4; k++ {
		for _, is := range childIfaces[k] {
			n := sz[k][is.side]
			if nIface[is.iface] == 0 {
				nIface[is.iface] = n
			} else if nIface[is.iface] != n {
				err = fmt.Errorf("%w: interface %d sides have %d and %d points",
					ErrShape, is.iface, nIface[is.iface], n)
				return
			}
		}
	}
	var (
		nI, nE  int
		ifOfs   [4]int
		preOfs  [4]int
		extSz   [4]int
	)
	for i := 0; i < 4; i++ {
		ifOfs[i] = nI
		nI += nIface[i]
	}
	for k := 0; k < 4; k++ {
		preOfs[k] = nE
		extSz[k] = sz[k][childExtSides[k][0]] + sz[k][childExtSides[k][1]]
		nE += extSz[k]
	}
	var (
		D    = utils.NewMatrix(nI, nI)
		C    = utils.NewMatrix(nI, nE)
		AEE  = utils.NewMatrix(nE, nE)
		AEI  = utils.NewMatrix(nE, nI)
		hInt = utils.NewVector(nI)
		hExt = utils.NewVector(nE)
	)
	sideIdx := func(k, s int) utils.Index {
		ofs := sideOffset(sz[k], s)
		return utils.NewRangeIndex(ofs, ofs+sz[k][s])
	}
	gather := func(k int, is ifaceSlot) utils.Index {
		I := sideIdx(k, is.side)
		if is.flip {
			I = I.Reversed()
		}
		return I
	}
	for k := 0; k < 4; k++ {
		var (
			extIdx = sideIdx(k, childExtSides[k][0]).Concat(sideIdx(k, childExtSides[k][1]))
			TkExt  = T[k].SliceCols(extIdx)
			TkInt  [2]utils.Matrix
		)
		for m, is := range childIfaces[k] {
			TkInt[m] = T[k].SliceCols(gather(k, is))
		}
		AEE.AddSubmatrix(preOfs[k], preOfs[k], TkExt.SliceRows(extIdx))
		for m, is := range childIfaces[k] {
			AEI.AddSubmatrix(preOfs[k], ifOfs[is.iface], TkInt[m].SliceRows(extIdx))
		}
		he := h[k].Subset(extIdx)
		for i := 0; i < extSz[k]; i++ {
			hExt.Set(preOfs[k]+i, hExt.At(preOfs[k]+i)+he.At(i))
		}
		for _, is := range childIfaces[k] {
			ri := gather(k, is)
			C.AddSubmatrix(ifOfs[is.iface], preOfs[k], TkExt.SliceRows(ri))
			for m2, is2 := range childIfaces[k] {
				D.AddSubmatrix(ifOfs[is.iface], ifOfs[is2.iface], TkInt[m2].SliceRows(ri))
			}
			hi := h[k].Subset(ri)
			for i := 0; i < nIface[is.iface]; i++ {
				hInt.Set(ifOfs[is.iface]+i, hInt.At(ifOfs[is.iface]+i)+hi.At(i))
			}
		}
	}
	lu, luErr := D.LU()
	if luErr != nil {
		err = fmt.Errorf("%w: interface system", ErrSingularMerge)
		return
	}
	// Roll the child-major exterior into the parent's canonical order: the
	// canonical S side starts after child a's W side.
	roll := utils.NewRollIndex(nE, sz[0][sideW])
	S = lu.Solve(C).Scale(-1)
	Gt = lu.SolveVec(hInt).Scale(-1)
	Tp = AEE.Add(AEI.Mul(S)).SliceRows(roll).SliceCols(roll)
	hp = hExt.Add(AEI.MulVec(Gt)).Subset(roll)
	S = S.SliceCols(roll)
	if keepInv {
		DInv, err = D.Inverse()
		if err != nil {
			err = fmt.Errorf("%w: interface system", ErrSingularMerge)
			return
		}
		BDInv = AEI.SliceRows(roll).Mul(DInv)
	}
	return
}

// splitToChildrenVar distributes the parent's canonical boundary data and
// resolved interface data to the four children's refined boundaries.
func splitToChildrenVar(gParent, gInt utils.Vector, sz [4][4]int) (g [4]utils.Vector) {
	var (
		nIface [4]int
		ifOfs  [4]int
		nE     int
	)
	for k := 0; k < 4; k++ {
		for _, is := range childIfaces[k] {
			nIface[is.iface] = sz[k][is.side]
		}
		nE += sz[k][childExtSides[k][0]] + sz[k][childExtSides[k][1]]
	}
	for i, n := 0, 0; i < 4; i++ {
		ifOfs[i] = n
		n += nIface[i]
	}
	pre := gParent.Subset(utils.NewRollIndex(nE, -sz[0][sideW]))
	ofs := 0
	for k := 0; k < 4; k++ {
		g[k] = utils.NewVector(sumSizes(sz[k]))
		for _, s := range childExtSides[k] {
			so := sideOffset(sz[k], s)
			for i := 0; i < sz[k][s]; i++ {
				g[k].Set(so+i, pre.At(ofs+i))
			}
			ofs += sz[k][s]
		}
		for _, is := range childIfaces[k] {
			n := sz[k][is.side]
			vals := gInt.Subset(utils.NewRangeIndex(ifOfs[is.iface], ifOfs[is.iface]+n))
			if is.flip {
				vals = vals.Subset(utils.NewRangeIndex(0, n).Reversed())
			}
			so := sideOffset(sz[k], is.side)
			for i := 0; i < n; i++ {
				g[k].Set(so+i, vals.At(i))
			}
		}
	}
	return
}

// buildAdaptive2DDtN merges in post-order over the tree, matching interface
// resolutions before each sibling merge, and returns the root operator.
func (prob *PDEProblem) buildAdaptive2DDtN() (Ttop utils.Matrix, err error) {
	if !prob.Root.LevelRestricted() {
		return utils.Matrix{}, fmt.Errorf("%w: tree violates the level restriction", ErrConfig)
	}
	leaves := allLeaves(prob.Root)
	local, err := prob.localSolve2DDtN(leaves)
	if err != nil {
		return
	}
	prob.build = &buildState{local: local}
	leafIdx := 0
	var walk func(n *tree.Node) (*adaptState, error)
	walk = func(n *tree.Node) (*adaptState, error) {
		if n.IsLeaf() {
			st := &adaptState{
				T:    local.T[leafIdx],
				h:    local.H[leafIdx],
				leaf: leafIdx,
			}
			for s := 0; s < 4; s++ {
				st.sides[s] = []int{0}
			}
			leafIdx++
			return st, nil
		}
		var (
			q        = prob.Ops2D.QOrder
			children [4]*adaptState
			rec      = &adaptiveRecord{}
		)
		for k, c := range n.Children {
			st, wErr := walk(c)
			if wErr != nil {
				return nil, wErr
			}
			children[k] = st
			rec.childLeaf[k] = st.leaf
			rec.children[k] = st.rec
		}
		// Match the four interface resolutions
		for k := 0; k < 4; k++ {
			for m, is := range childIfaces[k] {
				// visit each interface once, from its first-listed child
				if is.flip {
					continue
				}
				kp, mp := ifacePartner(k, m)
				isP := childIfaces[kp][mp]
				splitA, splitB, mErr := matchInterface(
					children[k].sides[is.side], children[kp].sides[isP.side])
				if mErr != nil {
					return nil, mErr
				}
				Rf, Cf := applySplits(children[k], is.side, splitA, q,
					prob.Ops2D.Refine, prob.Ops2D.Coarsen)
				composeTransform(children[k], Rf, Cf, &rec.childC[k])
				Rf, Cf = applySplits(children[kp], isP.side, splitB, q,
					prob.Ops2D.Refine, prob.Ops2D.Coarsen)
				composeTransform(children[kp], Rf, Cf, &rec.childC[kp])
			}
		}
		var (
			T  []utils.Matrix
			h  []utils.Vector
			sz [4][4]int
		)
		for k := 0; k < 4; k++ {
			T = append(T, children[k].T)
			h = append(h, children[k].h)
			sz[k] = sideSizes(children[k], q)
		}
		Tp, hp, S, Gt, _, _, mErr := mergeQuadDtNVar(T, h, sz, false)
		if mErr != nil {
			return nil, mErr
		}
		rec.S, rec.Gt, rec.childSizes = S, Gt, sz
		// Parent side panels: each child panel deepens by one level
		parent := &adaptState{T: Tp, h: hp, rec: rec, leaf: -1}
		parent.sides[sideS] = concatDeeper(children[0].sides[sideS], children[1].sides[sideS])
		parent.sides[sideE] = concatDeeper(children[1].sides[sideE], children[2].sides[sideE])
		parent.sides[sideN] = concatDeeper(children[2].sides[sideN], children[3].sides[sideN])
		parent.sides[sideW] = concatDeeper(children[3].sides[sideW], children[0].sides[sideW])
		prob.build.adaptive = append(prob.build.adaptive, rec)
		return parent, nil
	}
	rootState, err := walk(prob.Root)
	if err != nil {
		return utils.Matrix{}, err
	}
	prob.build.rootRec = rootState.rec
	prob.build.rootSides = rootState.sides
	prob.build.rootH = rootState.h
	Ttop = rootState.T
	return
}

// ifacePartner returns the other child sharing the interface of child k's
// m-th interface entry.
func ifacePartner(k, m int) (kp, mp int) {
	iface := childIfaces[k][m].iface
	for kp = 0; kp < 4; kp++ {
		if kp == k {
			continue
		}
		for mp = 0; mp < 2; mp++ {
			if childIfaces[kp][mp].iface == iface {
				return
			}
		}
	}
	panic("interface has no partner")
}

func concatDeeper(a, b []int) (out []int) {
	for _, d := range a {
		out = append(out, d+1)
	}
	for _, d := range b {
		out = append(out, d+1)
	}
	return
}

// solveAdaptive2DDtN runs the pre-order down pass from per-side root
// Dirichlet data.
func (prob *PDEProblem) solveAdaptive2DDtN(gSides [4]utils.Vector) (sol utils.Matrix, err error) {
	var (
		q     = prob.Ops2D.QOrder
		local = prob.build.local
		np2   = prob.Ops2D.POrder * prob.Ops2D.POrder
	)
	for s := 0; s < 4; s++ {
		want := q * len(prob.build.rootSides[s])
		if gSides[s].Len() != want {
			err = fmt.Errorf("%w: root side %d data has length %d, want %d",
				ErrShape, s, gSides[s].Len(), want)
			return
		}
	}
	g := gSides[0].Concat(gSides[1]).Concat(gSides[2]).Concat(gSides[3])
	sol = utils.NewMatrix(len(local.Y), np2)
	var down func(rec *adaptiveRecord, g utils.Vector) error
	down = func(rec *adaptiveRecord, g utils.Vector) error {
		gInt := rec.S.MulVec(g).Add(rec.Gt)
		children := splitToChildrenVar(g, gInt, rec.childSizes)
		for k := 0; k < 4; k++ {
			gk := children[k]
			if !rec.childC[k].IsEmpty() {
				gk = rec.childC[k].MulVec(gk)
			}
			if rec.children[k] == nil {
				idx := rec.childLeaf[k]
				u := local.Y[idx].MulVec(gk).Add(local.V[idx])
				sol.SetRow(idx, u.DataP())
			} else if dErr := down(rec.children[k], gk); dErr != nil {
				return dErr
			}
		}
		return nil
	}
	if prob.build.rootRec == nil {
		// single-leaf tree
		u := local.Y[0].MulVec(g).Add(local.V[0])
		sol.SetRow(0, u.DataP())
		return
	}
	err = down(prob.build.rootRec, g)
	return
}
