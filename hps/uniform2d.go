package hps

import (
	"fmt"
	"sync"

	"github.com/notargets/hps/utils"
)

// buildUniform2DDtN runs the local solve and the level-synchronous merge
// reduction 4^L -> 1, retaining the per-level down-pass records. With
// keepInv the interface inverses are cached so later sources can reuse the
// factorizations (the two-phase workflow).
func (prob *PDEProblem) buildUniform2DDtN(keepInv bool) (Ttop utils.Matrix, err error) {
	leaves := allLeaves(prob.Root)
	local, err := prob.localSolve2DDtN(leaves)
	if err != nil {
		return
	}
	var (
		T = append([]utils.Matrix{}, local.T...)
		h = append([]utils.Vector{}, local.H...)
	)
	prob.build = &buildState{local: local, noSource: keepInv}
	for len(T) > 1 {
		var (
			nGroups = len(T) / 4
			nextT   = make([]utils.Matrix, nGroups)
			nextH   = make([]utils.Vector, nGroups)
			level   = mergeLevelDtN{groups: make([]*mergeRecordDtN, nGroups)}
			errs    = make([]error, nGroups)
			pm      = utils.NewPartitionMap(numWorkers(nGroups), nGroups)
			wg      sync.WaitGroup
		)
		for n := 0; n < pm.ParallelDegree; n++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				gMin, gMax := pm.GetBucketRange(n)
				for g := gMin; g < gMax; g++ {
					Tp, hp, rec, mErr := mergeQuadDtN(T[4*g:4*g+4], h[4*g:4*g+4], keepInv)
					if mErr != nil {
						errs[g] = fmt.Errorf("group %d: %w", g, mErr)
						continue
					}
					nextT[g], nextH[g], level.groups[g] = Tp, hp, rec
				}
			}(n)
		}
		wg.Wait()
		for _, e := range errs {
			if e != nil {
				return utils.Matrix{}, e
			}
		}
		prob.build.levels = append(prob.build.levels, level)
		// The child operators are superseded; drop the references so the
		// finished level's working set can be reclaimed.
		for i := range T {
			T[i], h[i] = utils.Matrix{}, utils.Vector{}
		}
		T, h = nextT, nextH
	}
	Ttop = T[0]
	return
}

func (prob *PDEProblem) buildUniform2DItI(keepInv bool) (Rtop utils.CMatrix, err error) {
	leaves := allLeaves(prob.Root)
	local, err := prob.localSolve2DItI(leaves)
	if err != nil {
		return
	}
	var (
		R = append([]utils.CMatrix{}, local.R...)
		h = append([]utils.CVector{}, local.H...)
	)
	prob.build = &buildState{localC: local, noSource: keepInv}
	for len(R) > 1 {
		var (
			nGroups = len(R) / 4
			nextR   = make([]utils.CMatrix, nGroups)
			nextH   = make([]utils.CVector, nGroups)
			level   = mergeLevelItI{groups: make([]*mergeRecordItI, nGroups)}
			errs    = make([]error, nGroups)
			pm      = utils.NewPartitionMap(numWorkers(nGroups), nGroups)
			wg      sync.WaitGroup
		)
		for n := 0; n < pm.ParallelDegree; n++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				gMin, gMax := pm.GetBucketRange(n)
				for g := gMin; g < gMax; g++ {
					Rp, hp, rec, mErr := mergeQuadItI(R[4*g:4*g+4], h[4*g:4*g+4], keepInv)
					if mErr != nil {
						errs[g] = fmt.Errorf("group %d: %w", g, mErr)
						continue
					}
					nextR[g], nextH[g], level.groups[g] = Rp, hp, rec
				}
			}(n)
		}
		wg.Wait()
		for _, e := range errs {
			if e != nil {
				return utils.CMatrix{}, e
			}
		}
		prob.build.levelsC = append(prob.build.levelsC, level)
		for i := range R {
			R[i], h[i] = utils.CMatrix{}, utils.CVector{}
		}
		R, h = nextR, nextH
	}
	Rtop = R[0]
	return
}

// upPass2DDtN reruns the leaf particular solve for a new source and pushes
// the fresh particular fluxes through the cached interface inverses,
// refreshing every record's Gt without refactorizing.
func (prob *PDEProblem) upPass2DDtN() (err error) {
	if prob.build == nil || !prob.build.noSource {
		return fmt.Errorf("%w: up pass requires a solver built without a source", ErrConfig)
	}
	leaves := allLeaves(prob.Root)
	local, err := prob.localSolve2DDtN(leaves)
	if err != nil {
		return
	}
	prob.build.local = local
	h := append([]utils.Vector{}, local.H...)
	for _, level := range prob.build.levels {
		nextH := make([]utils.Vector, len(level.groups))
		for g, rec := range level.groups {
			hInt, hExt := gatherParticularDtN(h[4*g:4*g+4], rec.n)
			rec.Gt = rec.DInv.MulVec(hInt).Scale(-1)
			nextH[g] = hExt.Subset(utils.NewRollIndex(8*rec.n, rec.n)).
				Subtract(rec.BDInv.MulVec(hInt))
		}
		h = nextH
	}
	return
}

func (prob *PDEProblem) upPass2DItI() (err error) {
	if prob.build == nil || !prob.build.noSource {
		return fmt.Errorf("%w: up pass requires a solver built without a source", ErrConfig)
	}
	leaves := allLeaves(prob.Root)
	local, err := prob.localSolve2DItI(leaves)
	if err != nil {
		return
	}
	prob.build.localC = local
	h := append([]utils.CVector{}, local.H...)
	for _, level := range prob.build.levelsC {
		nextH := make([]utils.CVector, len(level.groups))
		for g, rec := range level.groups {
			hInt, hExt := gatherParticularItI(h[4*g:4*g+4], rec.n)
			rec.Gt = rec.DInv.MulVec(hInt).Scale(-1)
			nextH[g] = hExt.Subset(utils.NewRollIndex(8*rec.n, rec.n)).
				Subtract(rec.BDInv.MulVec(hInt))
		}
		h = nextH
	}
	return
}

// downPass2DDtN resolves per-leaf boundary data from the root Dirichlet
// data and reconstructs u = Y b + v on every leaf.
func (prob *PDEProblem) downPass2DDtN(gRoot utils.Vector) (sol utils.Matrix, err error) {
	var (
		levels  = prob.build.levels
		local   = prob.build.local
		np2     = prob.Ops2D.POrder * prob.Ops2D.POrder
		nLeaves = len(local.Y)
		nTop    = 4 * prob.Ops2D.QOrder * (1 << uint(prob.Root.MaxDepth()))
	)
	if gRoot.Len() != nTop {
		err = fmt.Errorf("%w: root boundary data has length %d, want %d",
			ErrShape, gRoot.Len(), nTop)
		return
	}
	g := []utils.Vector{gRoot}
	for j := len(levels) - 1; j >= 0; j-- {
		level := levels[j]
		if len(g) != len(level.groups) {
			err = fmt.Errorf("%w: down pass level %d has %d parents, want %d",
				ErrShape, j, len(g), len(level.groups))
			return
		}
		next := make([]utils.Vector, 0, 4*len(g))
		for gi, rec := range level.groups {
			nr, _ := rec.S.Dims()
			if g[gi].Len() != nr*2 {
				err = fmt.Errorf("%w: down pass parent data has length %d, want %d",
					ErrShape, g[gi].Len(), nr*2)
				return
			}
			gInt := rec.S.MulVec(g[gi]).Add(rec.Gt)
			children := splitToChildrenDtN(g[gi], gInt, rec.n)
			next = append(next, children[0], children[1], children[2], children[3])
		}
		g = next
	}
	if len(g) != nLeaves {
		err = fmt.Errorf("%w: down pass produced %d leaf vectors, want %d", ErrShape, len(g), nLeaves)
		return
	}
	sol = utils.NewMatrix(nLeaves, np2)
	for k := 0; k < nLeaves; k++ {
		u := local.Y[k].MulVec(g[k]).Add(local.V[k])
		sol.SetRow(k, u.DataP())
	}
	return
}

func (prob *PDEProblem) downPass2DItI(fRoot utils.CVector) (sol utils.CMatrix, err error) {
	var (
		levels  = prob.build.levelsC
		local   = prob.build.localC
		np2     = prob.Ops2D.POrder * prob.Ops2D.POrder
		nLeaves = len(local.Y)
		nTop    = 4 * prob.Ops2D.QOrder * (1 << uint(prob.Root.MaxDepth()))
	)
	if fRoot.Len() != nTop {
		err = fmt.Errorf("%w: root boundary data has length %d, want %d",
			ErrShape, fRoot.Len(), nTop)
		return
	}
	f := []utils.CVector{fRoot}
	for j := len(levels) - 1; j >= 0; j-- {
		level := levels[j]
		next := make([]utils.CVector, 0, 4*len(f))
		for gi, rec := range level.groups {
			nr, _ := rec.S.Dims()
			if f[gi].Len() != nr {
				err = fmt.Errorf("%w: down pass parent data has length %d, want %d",
					ErrShape, f[gi].Len(), nr)
				return
			}
			x := rec.S.MulVec(f[gi]).Add(rec.Gt)
			children := splitToChildrenItI(f[gi], x, rec.n)
			next = append(next, children[0], children[1], children[2], children[3])
		}
		f = next
	}
	if len(f) != nLeaves {
		err = fmt.Errorf("%w: down pass produced %d leaf vectors, want %d", ErrShape, len(f), nLeaves)
		return
	}
	sol = utils.NewCMatrix(nLeaves, np2)
	for k := 0; k < nLeaves; k++ {
		u := local.Y[k].MulVec(f[k]).Add(local.V[k])
		for j := 0; j < np2; j++ {
			sol.Set(k, j, u.At(j))
		}
	}
	return
}
