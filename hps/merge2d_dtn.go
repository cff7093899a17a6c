package hps

import (
	"fmt"

	"github.com/notargets/hps/utils"
)

// mergeRecordDtN is one group's down-pass record: S maps the parent's
// canonical boundary data to the eliminated interface data, Gt is the
// particular interface contribution. DInv and BDInv are cached only by the
// no-source build for later right-hand sides.
type mergeRecordDtN struct {
	S     utils.Matrix // (4n x 8n)
	Gt    utils.Vector // (4n)
	DInv  utils.Matrix
	BDInv utils.Matrix // (8n x 4n), canonical rows
	n     int
}

// mergeLevelDtN collects the records of one merge level.
type mergeLevelDtN struct {
	groups []*mergeRecordDtN
}

// mergeQuadDtN eliminates the shared interfaces of four sibling DtN
// operators. Flux continuity across each interface couples the interface
// Dirichlet unknowns g_int = [g0 g1 g2 g3]:
//
//	D g_int = -(C g_ext + h_int)
//
// so S = -D^-1 C, g~ = -D^-1 h_int, T_parent = A_EE + A_EI S and
// h_parent = h_ext + A_EI g~, all rolled to the parent's canonical order.
// keepInv retains D^-1 and B D^-1 for the two-phase build.
func mergeQuadDtN(T []utils.Matrix, h []utils.Vector, keepInv bool) (
	Tp utils.Matrix, hp utils.Vector, rec *mergeRecordDtN, err error) {
	var (
		nr, _ = T[0].Dims()
		n     = nr / 4
		nI    = 4 * n
		nE    = 8 * n
		D     = utils.NewMatrix(nI, nI)
		C     = utils.NewMatrix(nI, nE)
		AEE   = utils.NewMatrix(nE, nE)
		AEI   = utils.NewMatrix(nE, nI)
		hInt  = utils.NewVector(nI)
		hExt  = utils.NewVector(nE)
	)
	if len(T) != 4 || len(h) != 4 {
		err = fmt.Errorf("%w: quad merge needs 4 siblings, got %d", ErrConfig, len(T))
		return
	}
	for k := 0; k < 4; k++ {
		var (
			Tk     = T[k]
			hk     = h[k]
			extIdx = sideRange(childExtSides[k][0], n).Concat(sideRange(childExtSides[k][1], n))
			TkExt  = Tk.SliceCols(extIdx)
			preOfs = k * 2 * n
			TkInt  [2]utils.Matrix
		)
		for m, is := range childIfaces[k] {
			TkInt[m] = Tk.SliceCols(ifaceGather(is, n))
		}
		// Exterior rows
		AEE.AddSubmatrix(preOfs, preOfs, TkExt.SliceRows(extIdx))
		for m, is := range childIfaces[k] {
			AEI.AddSubmatrix(preOfs, is.iface*n, TkInt[m].SliceRows(extIdx))
		}
		he := hk.Subset(extIdx)
		for i := 0; i < 2*n; i++ {
			hExt.Set(preOfs+i, hExt.At(preOfs+i)+he.At(i))
		}
		// Interface rows: this child's outward flux on each interface
		for _, is := range childIfaces[k] {
			ri := ifaceGather(is, n)
			rowOfs := is.iface * n
			C.AddSubmatrix(rowOfs, preOfs, TkExt.SliceRows(ri))
			for m2, is2 := range childIfaces[k] {
				D.AddSubmatrix(rowOfs, is2.iface*n, TkInt[m2].SliceRows(ri))
			}
			hi := hk.Subset(ri)
			for i := 0; i < n; i++ {
				hInt.Set(rowOfs+i, hInt.At(rowOfs+i)+hi.At(i))
			}
		}
	}

	lu, luErr := D.LU()
	if luErr != nil {
		err = fmt.Errorf("%w: interface system", ErrSingularMerge)
		return
	}
	var (
		S    = lu.Solve(C).Scale(-1)
		Gt   = lu.SolveVec(hInt).Scale(-1)
		roll = utils.NewRollIndex(nE, n)
	)
	Tpre := AEE.Add(AEI.Mul(S))
	Tp = Tpre.SliceRows(roll).SliceCols(roll)
	hp = hExt.Add(AEI.MulVec(Gt)).Subset(roll)
	rec = &mergeRecordDtN{
		S:  S.SliceCols(roll),
		Gt: Gt,
		n:  n,
	}
	if keepInv {
		DInv, invErr := D.Inverse()
		if invErr != nil {
			err = fmt.Errorf("%w: interface system", ErrSingularMerge)
			return
		}
		rec.DInv = DInv
		rec.BDInv = AEI.SliceRows(roll).Mul(DInv)
	}
	return
}

// gatherParticularDtN rebuilds a group's interface and pre-roll exterior
// particular vectors from fresh child fluxes, for the two-phase build where
// the source arrives after the merge inverses were cached.
func gatherParticularDtN(h []utils.Vector, n int) (hInt, hExt utils.Vector) {
	hInt = utils.NewVector(4 * n)
	hExt = utils.NewVector(8 * n)
	for k := 0; k < 4; k++ {
		extIdx := sideRange(childExtSides[k][0], n).Concat(sideRange(childExtSides[k][1], n))
		he := h[k].Subset(extIdx)
		preOfs := k * 2 * n
		for i := 0; i < 2*n; i++ {
			hExt.Set(preOfs+i, hExt.At(preOfs+i)+he.At(i))
		}
		for _, is := range childIfaces[k] {
			hi := h[k].Subset(ifaceGather(is, n))
			rowOfs := is.iface * n
			for i := 0; i < n; i++ {
				hInt.Set(rowOfs+i, hInt.At(rowOfs+i)+hi.At(i))
			}
		}
	}
	return
}

// splitToChildrenDtN assembles the four children's boundary data from the
// parent's canonical boundary data and the resolved interface data.
func splitToChildrenDtN(gParent utils.Vector, gInt utils.Vector, n int) (g [4]utils.Vector) {
	pre := gParent.Subset(utils.NewRollIndex(8*n, -n))
	for k := 0; k < 4; k++ {
		g[k] = utils.NewVector(4 * n)
		preOfs := k * 2 * n
		for m, s := range childExtSides[k] {
			for i := 0; i < n; i++ {
				g[k].Set(s*n+i, pre.At(preOfs+m*n+i))
			}
		}
		for _, is := range childIfaces[k] {
			vals := gInt.Subset(utils.NewRangeIndex(is.iface*n, (is.iface+1)*n))
			if is.flip {
				vals = vals.Subset(utils.NewRangeIndex(0, n).Reversed())
			}
			for i := 0; i < n; i++ {
				g[k].Set(is.side*n+i, vals.At(i))
			}
		}
	}
	return
}
