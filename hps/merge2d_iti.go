package hps

import (
	"fmt"

	"github.com/notargets/hps/utils"
)

// mergeRecordItI is the complex down-pass record for one group. The
// interface unknowns are doubled relative to DtN: each interface carries
// one incoming-impedance trace per adjacent child, ordered by itiSlot.
type mergeRecordItI struct {
	S     utils.CMatrix // (8n x 8n)
	Gt    utils.CVector
	DInv  utils.CMatrix
	BDInv utils.CMatrix
	n     int
}

type mergeLevelItI struct {
	groups []*mergeRecordItI
}

// mergeQuadItI eliminates the doubled interface impedance unknowns of four
// sibling ItI operators. The incoming trace of one child equals minus the
// outgoing trace of its neighbor on the shared interface:
//
//	x_s + Sel_s'( R_k' f_k' + h_k' ) = 0
//
// with f_k' composed of the parent's incoming exterior data and k''s own
// slots. The elimination then follows the DtN structure in complex
// arithmetic.
func mergeQuadItI(R []utils.CMatrix, h []utils.CVector, keepInv bool) (
	Rp utils.CMatrix, hp utils.CVector, rec *mergeRecordItI, err error) {
	var (
		nr, _ = R[0].Dims()
		n     = nr / 4
		nI    = 8 * n
		nE    = 8 * n
		D     = utils.NewCEye(nI)
		C     = utils.NewCMatrix(nI, nE)
		AEE   = utils.NewCMatrix(nE, nE)
		AEI   = utils.NewCMatrix(nE, nI)
		hInt  = utils.NewCVector(nI)
		hExt  = utils.NewCVector(nE)
	)
	if len(R) != 4 || len(h) != 4 {
		err = fmt.Errorf("%w: quad merge needs 4 siblings, got %d", ErrConfig, len(R))
		return
	}
	extIdxOf := func(k int) utils.Index {
		return sideRange(childExtSides[k][0], n).Concat(sideRange(childExtSides[k][1], n))
	}
	for k := 0; k < 4; k++ {
		var (
			Rk     = R[k]
			hk     = h[k]
			extIdx = extIdxOf(k)
			RkExt  = Rk.SliceCols(extIdx)
			preOfs = k * 2 * n
			RkInt  [2]utils.CMatrix
		)
		for m, is := range childIfaces[k] {
			RkInt[m] = Rk.SliceCols(ifaceGather(is, n))
		}
		// Exterior rows: child k's outgoing impedance on its outer sides
		AEE.AddSubmatrix(preOfs, preOfs, RkExt.SliceRows(extIdx))
		for m := range childIfaces[k] {
			AEI.AddSubmatrix(preOfs, itiSlot[k][m]*n, RkInt[m].SliceRows(extIdx))
		}
		he := hk.Subset(extIdx)
		for i := 0; i < 2*n; i++ {
			hExt.Set(preOfs+i, hExt.At(preOfs+i)+he.At(i))
		}
	}
	// Interface rows: slot s receives the partner child's outgoing trace
	for s := 0; s < 8; s++ {
		var (
			kp, mp = slotOwner(itiPartner[s])
			isP    = childIfaces[kp][mp]
			ri     = ifaceGather(isP, n)
			RkExt  = R[kp].SliceCols(extIdxOf(kp))
			rowOfs = s * n
			preOfs = kp * 2 * n
		)
		C.AddSubmatrix(rowOfs, preOfs, RkExt.SliceRows(ri))
		for m2 := range childIfaces[kp] {
			RkInt := R[kp].SliceCols(ifaceGather(childIfaces[kp][m2], n))
			D.AddSubmatrix(rowOfs, itiSlot[kp][m2]*n, RkInt.SliceRows(ri))
		}
		hi := h[kp].Subset(ri)
		for i := 0; i < n; i++ {
			hInt.Set(rowOfs+i, hInt.At(rowOfs+i)+hi.At(i))
		}
	}

	DInv, invErr := D.Inverse()
	if invErr != nil {
		err = fmt.Errorf("%w: interface system", ErrSingularMerge)
		return
	}
	var (
		S    = DInv.Mul(C).Scale(-1)
		Gt   = DInv.MulVec(hInt).Scale(-1)
		roll = utils.NewRollIndex(nE, n)
	)
	Rpre := AEE.Add(AEI.Mul(S))
	Rp = Rpre.SliceRows(roll).SliceCols(roll)
	hp = hExt.Add(AEI.MulVec(Gt)).Subset(roll)
	rec = &mergeRecordItI{
		S:  S.SliceCols(roll),
		Gt: Gt,
		n:  n,
	}
	if keepInv {
		rec.DInv = DInv
		rec.BDInv = AEI.SliceRows(roll).Mul(DInv)
	}
	return
}

// gatherParticularItI rebuilds a group's interface and pre-roll exterior
// particular vectors from fresh child impedance traces.
func gatherParticularItI(h []utils.CVector, n int) (hInt, hExt utils.CVector) {
	hInt = utils.NewCVector(8 * n)
	hExt = utils.NewCVector(8 * n)
	for k := 0; k < 4; k++ {
		extIdx := sideRange(childExtSides[k][0], n).Concat(sideRange(childExtSides[k][1], n))
		he := h[k].Subset(extIdx)
		preOfs := k * 2 * n
		for i := 0; i < 2*n; i++ {
			hExt.Set(preOfs+i, hExt.At(preOfs+i)+he.At(i))
		}
	}
	for s := 0; s < 8; s++ {
		kp, mp := slotOwner(itiPartner[s])
		hi := h[kp].Subset(ifaceGather(childIfaces[kp][mp], n))
		rowOfs := s * n
		for i := 0; i < n; i++ {
			hInt.Set(rowOfs+i, hInt.At(rowOfs+i)+hi.At(i))
		}
	}
	return
}

// splitToChildrenItI assembles the four children's incoming impedance data
// from the parent's incoming data and the resolved slot unknowns.
func splitToChildrenItI(fParent utils.CVector, x utils.CVector, n int) (f [4]utils.CVector) {
	pre := fParent.Subset(utils.NewRollIndex(8*n, -n))
	for k := 0; k < 4; k++ {
		f[k] = utils.NewCVector(4 * n)
		preOfs := k * 2 * n
		for m, s := range childExtSides[k] {
			for i := 0; i < n; i++ {
				f[k].Set(s*n+i, pre.At(preOfs+m*n+i))
			}
		}
		for m, is := range childIfaces[k] {
			vals := x.Subset(utils.NewRangeIndex(itiSlot[k][m]*n, (itiSlot[k][m]+1)*n))
			if is.flip {
				vals = vals.Subset(utils.NewRangeIndex(0, n).Reversed())
			}
			for i := 0; i < n; i++ {
				f[k].Set(is.side*n+i, vals.At(i))
			}
		}
	}
	return
}
