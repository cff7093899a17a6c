package hps

import (
	"fmt"

	"github.com/notargets/hps/utils"
)

// Fused execution bounds peak memory by never holding the merge records of
// more than one leaf chunk at a time. A chunk is a complete subtree of
// NLevelsFused levels; chunks are built twice, once bottom-up to produce
// their top operators (records discarded) and once more, after the upper
// tree has resolved each chunk's boundary data, to run the chunk-local down
// pass. Only the upper tree's records persist across chunks.

// SolveFused builds and solves a uniform 2D DtN problem in chunked order,
// producing the same solution as BuildSolver followed by Solve.
func SolveFused(prob *PDEProblem, gRoot utils.Vector, cfg Config) (sol Solution, err error) {
	if prob.Dim != 2 || prob.Mode != DtN || !prob.Root.IsUniform() {
		err = fmt.Errorf("%w: fused execution needs a uniform 2D DtN problem", ErrConfig)
		return
	}
	var (
		L      = prob.Root.MaxDepth()
		leaves = allLeaves(prob.Root)
		q      = prob.Ops2D.QOrder
		np2    = prob.Ops2D.POrder * prob.Ops2D.POrder
		nlf    = cfg.NLevelsFused
	)
	if nlf == 0 {
		nlf = fusedLevels(L, q, cfg.MemoryBudget)
	}
	if nlf < 0 || nlf > L {
		err = fmt.Errorf("%w: %d fused levels does not partition a depth-%d tree",
			ErrConfig, nlf, L)
		return
	}
	if gRoot.Len() != 4*q*(1<<uint(L)) {
		err = fmt.Errorf("%w: root boundary data has length %d, want %d",
			ErrShape, gRoot.Len(), 4*q*(1<<uint(L)))
		return
	}
	var (
		chunkLeaves = 1 << uint(2*nlf) // 4^nlf
		nChunks     = len(leaves) / chunkLeaves
		chunkT      = make([]utils.Matrix, nChunks)
		chunkH      = make([]utils.Vector, nChunks)
	)
	// First sweep: chunk tops only
	for c := 0; c < nChunks; c++ {
		lo := c * chunkLeaves
		local, lErr := prob.localSolve2DDtN(leaves[lo : lo+chunkLeaves])
		if lErr != nil {
			err = lErr
			return
		}
		chunkT[c], chunkH[c], _, err = mergeSubtreeDtN(local.T, local.H, false)
		if err != nil {
			return
		}
	}
	// Upper tree: merge chunk tops to the root, records retained
	_, _, upper, err := mergeSubtreeDtN(chunkT, chunkH, true)
	if err != nil {
		return
	}
	chunkG, err := downToChunks(gRoot, upper, nChunks)
	if err != nil {
		return
	}
	// Second sweep: rebuild each chunk with records and finish its down pass
	sol.U = utils.NewMatrix(len(leaves), np2)
	for c := 0; c < nChunks; c++ {
		lo := c * chunkLeaves
		local, lErr := prob.localSolve2DDtN(leaves[lo : lo+chunkLeaves])
		if lErr != nil {
			err = lErr
			return
		}
		_, _, levels, mErr := mergeSubtreeDtN(local.T, local.H, true)
		if mErr != nil {
			err = mErr
			return
		}
		g := []utils.Vector{chunkG[c]}
		for lvl := len(levels) - 1; lvl >= 0; lvl-- {
			next := make([]utils.Vector, 0, 4*len(levels[lvl].groups))
			for gi, rec := range levels[lvl].groups {
				gInt := rec.S.MulVec(g[gi]).Add(rec.Gt)
				gc := splitToChildrenDtN(g[gi], gInt, rec.n)
				next = append(next, gc[0], gc[1], gc[2], gc[3])
			}
			g = next
		}
		for k := 0; k < chunkLeaves; k++ {
			u := local.Y[k].MulVec(g[k]).Add(local.V[k])
			sol.U.SetRow(lo+k, u.DataP())
		}
	}
	return
}

// mergeSubtreeDtN merges a power-of-four set of sibling operators up to a
// single top, optionally retaining the per-level records bottom-up.
func mergeSubtreeDtN(T []utils.Matrix, h []utils.Vector, keep bool) (
	Ttop utils.Matrix, htop utils.Vector, levels []mergeLevelDtN, err error) {
	T = append([]utils.Matrix{}, T...)
	h = append([]utils.Vector{}, h...)
	for len(T) > 1 {
		var (
			nGroups = len(T) / 4
			nextT   = make([]utils.Matrix, nGroups)
			nextH   = make([]utils.Vector, nGroups)
			level   = mergeLevelDtN{groups: make([]*mergeRecordDtN, nGroups)}
		)
		for g := 0; g < nGroups; g++ {
			Tp, hp, rec, mErr := mergeQuadDtN(T[4*g:4*g+4], h[4*g:4*g+4], false)
			if mErr != nil {
				err = mErr
				return
			}
			nextT[g], nextH[g] = Tp, hp
			level.groups[g] = rec
		}
		if keep {
			levels = append(levels, level)
		}
		T, h = nextT, nextH
	}
	Ttop, htop = T[0], h[0]
	return
}

// downToChunks runs the upper-tree down pass from the root data to one
// boundary data vector per chunk.
func downToChunks(gRoot utils.Vector, levels []mergeLevelDtN, nChunks int) (
	g []utils.Vector, err error) {
	g = []utils.Vector{gRoot}
	for lvl := len(levels) - 1; lvl >= 0; lvl-- {
		next := make([]utils.Vector, 0, 4*len(levels[lvl].groups))
		for gi, rec := range levels[lvl].groups {
			if g[gi].Len() != 8*rec.n {
				err = fmt.Errorf("%w: boundary data has length %d, want %d",
					ErrShape, g[gi].Len(), 8*rec.n)
				return
			}
			gInt := rec.S.MulVec(g[gi]).Add(rec.Gt)
			gc := splitToChildrenDtN(g[gi], gInt, rec.n)
			next = append(next, gc[0], gc[1], gc[2], gc[3])
		}
		g = next
	}
	if len(g) != nChunks {
		err = fmt.Errorf("%w: upper tree resolved %d chunks, want %d", ErrShape, len(g), nChunks)
	}
	return
}

// fusedLevels picks the chunk depth: the deepest subtree whose retained
// records fit the memory budget, or half the tree when no budget is given.
func fusedLevels(L, q int, budget int64) int {
	if budget <= 0 {
		nlf := (L + 1) / 2
		if nlf < 1 && L > 0 {
			nlf = 1
		}
		return nlf
	}
	nlf := 1
	for nlf < L && chunkRecordBytes(nlf+1, q) <= budget {
		nlf++
	}
	return nlf
}

// chunkRecordBytes estimates the retained record storage of one chunk of
// the given depth: each merge at height m holds an S of 4n x 8n floats with
// n = q 2^(m-1) side points.
func chunkRecordBytes(depth, q int) (bytes int64) {
	for m := 1; m <= depth; m++ {
		var (
			groups = int64(1) << uint(2*(depth-m)) // 4^(depth-m)
			n      = int64(q) << uint(m-1)
		)
		bytes += groups * (4*n*8*n + 4*n) * 8
	}
	return
}
