package operators

import (
	"github.com/james-bowman/sparse"
	"github.com/notargets/hps/utils"
)

// AssembleGlobal builds the global differential operator over all leaves as
// a sparse CSR matrix from the per-leaf dense blocks. The global operator
// is block diagonal because leaves couple only through their boundaries,
// which the solver eliminates separately; the sparse form lets tests and
// residual checks apply the full operator to a sampled function without
// allocating the dense n x n matrix.
func AssembleGlobal(blocks []utils.Matrix) (A *sparse.CSR) {
	var (
		n int
	)
	for _, b := range blocks {
		nr, _ := b.Dims()
		n += nr
	}
	dok := sparse.NewDOK(n, n)
	ofs := 0
	for _, b := range blocks {
		nr, nc := b.Dims()
		for i := 0; i < nr; i++ {
			for j := 0; j < nc; j++ {
				if v := b.At(i, j); v != 0 {
					dok.Set(ofs+i, ofs+j, v)
				}
			}
		}
		ofs += nr
	}
	A = dok.ToCSR()
	return
}

// ApplyGlobal multiplies the assembled global operator by a sampled
// function, returning the residual-side vector.
func ApplyGlobal(A *sparse.CSR, u utils.Vector) (r utils.Vector) {
	var (
		n, _ = A.Dims()
	)
	r = utils.NewVector(n)
	r.V.MulVec(A, u.V)
	return
}
