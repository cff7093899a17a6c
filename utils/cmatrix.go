package utils

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// CMatrix is the complex counterpart of Matrix, used by the impedance
// operator family. It follows the same chaining conventions.
type CMatrix struct {
	M *mat.CDense
}

func NewCMatrix(nr, nc int, dataO ...[]complex128) (R CMatrix) {
	var m *mat.CDense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewCMatrix nr,nc = %v,%v, len(data[0]) = %v",
				nr, nc, len(dataO[0]))
			panic(err)
		}
		m = mat.NewCDense(nr, nc, dataO[0])
	} else {
		m = mat.NewCDense(nr, nc, make([]complex128, nr*nc))
	}
	R = CMatrix{m}
	return
}

// NewCEye returns the n x n complex identity.
func NewCEye(n int) (R CMatrix) {
	R = NewCMatrix(n, n)
	for i := 0; i < n; i++ {
		R.M.Set(i, i, 1)
	}
	return
}

// FromReal promotes a real matrix to complex.
func FromReal(A Matrix) (R CMatrix) {
	var (
		nr, nc = A.Dims()
	)
	R = NewCMatrix(nr, nc)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			R.M.Set(i, j, complex(A.At(i, j), 0))
		}
	}
	return
}

func (m CMatrix) Dims() (r, c int)       { return m.M.Dims() }
func (m CMatrix) At(i, j int) complex128 { return m.M.At(i, j) }

func (m CMatrix) Set(i, j int, val complex128) CMatrix { // Changes receiver
	m.M.Set(i, j, val)
	return m
}

func (m CMatrix) Copy() (R CMatrix) {
	var (
		nr, nc = m.Dims()
	)
	R = NewCMatrix(nr, nc)
	R.M.Copy(m.M)
	return
}

func (m CMatrix) Mul(A CMatrix) (R CMatrix) { // Does not change receiver
	var (
		nrM, ncM = m.Dims()
		nrA, ncA = A.Dims()
	)
	if ncM != nrA {
		panic(fmt.Errorf("incompatible dims in Mul, (%d x %d) * (%d x %d)",
			nrM, ncM, nrA, ncA))
	}
	R = NewCMatrix(nrM, ncA)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1,
		m.M.RawCMatrix(), A.M.RawCMatrix(), 0, R.M.RawCMatrix())
	return
}

func (m CMatrix) MulVec(v CVector) (R CVector) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewCVector(nr)
	for i := 0; i < nr; i++ {
		var sum complex128
		for j := 0; j < nc; j++ {
			sum += m.M.At(i, j) * v.At(j)
		}
		R.Set(i, sum)
	}
	return
}

func (m CMatrix) Add(A CMatrix) CMatrix { // Changes receiver
	var (
		nr, nc = m.Dims()
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			m.M.Set(i, j, m.M.At(i, j)+A.M.At(i, j))
		}
	}
	return m
}

func (m CMatrix) Subtract(A CMatrix) CMatrix { // Changes receiver
	var (
		nr, nc = m.Dims()
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			m.M.Set(i, j, m.M.At(i, j)-A.M.At(i, j))
		}
	}
	return m
}

func (m CMatrix) Scale(a complex128) CMatrix { // Changes receiver
	var (
		nr, nc = m.Dims()
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			m.M.Set(i, j, a*m.M.At(i, j))
		}
	}
	return m
}

func (m CMatrix) SliceRows(I Index) (R CMatrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewCMatrix(len(I), nc)
	for iNewRow, i := range I {
		if i > nr-1 || i < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", i, nr-1)
			panic("unable to subset rows from matrix")
		}
		for j := 0; j < nc; j++ {
			R.M.Set(iNewRow, j, m.M.At(i, j))
		}
	}
	return
}

func (m CMatrix) SliceCols(I Index) (R CMatrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewCMatrix(nr, len(I))
	for jNewCol, j := range I {
		if j > nc-1 || j < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", j, nc-1)
			panic("unable to subset columns from matrix")
		}
		for i := 0; i < nr; i++ {
			R.M.Set(i, jNewCol, m.M.At(i, j))
		}
	}
	return
}

// Slice returns the half-open submatrix [I,K) x [J,L). Does not change
// receiver.
func (m CMatrix) Slice(I, K, J, L int) (R CMatrix) {
	R = NewCMatrix(K-I, L-J)
	for i := I; i < K; i++ {
		for j := J; j < L; j++ {
			R.M.Set(i-I, j-J, m.M.At(i, j))
		}
	}
	return
}

// Row returns a copy of row i.
func (m CMatrix) Row(i int) (v CVector) {
	_, nc := m.Dims()
	v = NewCVector(nc)
	for j := 0; j < nc; j++ {
		v.Set(j, m.M.At(i, j))
	}
	return
}

// SetSubmatrix copies A into the receiver with upper-left corner (i0, j0).
// Changes receiver.
func (m CMatrix) SetSubmatrix(i0, j0 int, A CMatrix) CMatrix {
	var (
		nrA, ncA = A.Dims()
	)
	for i := 0; i < nrA; i++ {
		for j := 0; j < ncA; j++ {
			m.M.Set(i0+i, j0+j, A.M.At(i, j))
		}
	}
	return m
}

// AddSubmatrix accumulates A into the receiver with upper-left corner
// (i0, j0). Changes receiver.
func (m CMatrix) AddSubmatrix(i0, j0 int, A CMatrix) CMatrix {
	var (
		nrA, ncA = A.Dims()
	)
	for i := 0; i < nrA; i++ {
		for j := 0; j < ncA; j++ {
			m.M.Set(i0+i, j0+j, m.M.At(i0+i, j0+j)+A.M.At(i, j))
		}
	}
	return m
}

// Inverse inverts via the real 2n x 2n embedding of M = X + iY,
//
//	K = [ X -Y ]
//	    [ Y  X ]
//
// so that M^-1 = K^-1[0:n,0:n] + i K^-1[n:2n,0:n]. This reuses the real
// LAPACK factorization path.
func (m CMatrix) Inverse() (R CMatrix, err error) {
	var (
		n, _ = m.Dims()
		K    = NewMatrix(2*n, 2*n)
	)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			val := m.M.At(i, j)
			x, y := real(val), imag(val)
			K.M.Set(i, j, x)
			K.M.Set(i+n, j+n, x)
			K.M.Set(i, j+n, -y)
			K.M.Set(i+n, j, y)
		}
	}
	KInv, err := K.Inverse()
	if err != nil {
		return
	}
	R = NewCMatrix(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			R.M.Set(i, j, complex(KInv.At(i, j), KInv.At(i+n, j)))
		}
	}
	return
}

func (m CMatrix) MaxAbsDiff(A CMatrix) (md float64) {
	var (
		nr, nc = m.Dims()
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			d := m.M.At(i, j) - A.M.At(i, j)
			dr, di := real(d), imag(d)
			if dr < 0 {
				dr = -dr
			}
			if di < 0 {
				di = -di
			}
			if dr > md {
				md = dr
			}
			if di > md {
				md = di
			}
		}
	}
	return
}
