package utils

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a chainable wrapper around a dense gonum matrix. Methods that
// return a new Matrix do not modify the receiver; methods documented as
// "changes receiver" mutate in place and return the receiver for chaining.
type Matrix struct {
	M *mat.Dense
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var m *mat.Dense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v",
				nr, nc, len(dataO[0]))
			panic(err)
		}
		m = mat.NewDense(nr, nc, dataO[0])
	} else {
		m = mat.NewDense(nr, nc, make([]float64, nr*nc))
	}
	R = Matrix{m}
	return
}

// NewEye returns the n x n identity.
func NewEye(n int) (R Matrix) {
	R = NewMatrix(n, n)
	for i := 0; i < n; i++ {
		R.M.Set(i, i, 1)
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)          { return m.M.Dims() }
func (m Matrix) At(i, j int) float64       { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix             { return m.M.T() }
func (m Matrix) RawMatrix() blas64.General { return m.M.RawMatrix() }

func (m Matrix) IsEmpty() bool { return m.M == nil }

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
		data   = m.RawMatrix().Data
		dataR  = make([]float64, nr*nc)
	)
	copy(dataR, data)
	R = NewMatrix(nr, nc, dataR)
	return
}

func (m Matrix) Transpose() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nc, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			R.M.Set(j, i, m.M.At(i, j))
		}
	}
	return
}

func (m Matrix) Mul(A Matrix) (R Matrix) { // Does not change receiver
	var (
		nrM, _ = m.Dims()
		_, ncA = A.Dims()
	)
	R = NewMatrix(nrM, ncA)
	R.M.Mul(m.M, A.M)
	return
}

func (m Matrix) MulVec(v Vector) (R Vector) { // Does not change receiver
	var (
		nr, _ = m.Dims()
	)
	R = NewVector(nr)
	R.V.MulVec(m.M, v.V)
	return
}

func (m Matrix) Add(A Matrix) Matrix { // Changes receiver
	var (
		dataM = m.RawMatrix().Data
		dataA = A.RawMatrix().Data
	)
	for i, val := range dataA {
		dataM[i] += val
	}
	return m
}

func (m Matrix) Subtract(A Matrix) Matrix { // Changes receiver
	var (
		dataM = m.RawMatrix().Data
		dataA = A.RawMatrix().Data
	)
	for i, val := range dataA {
		dataM[i] -= val
	}
	return m
}

func (m Matrix) Scale(a float64) Matrix { // Changes receiver
	var (
		data = m.RawMatrix().Data
	)
	for i := range data {
		data[i] *= a
	}
	return m
}

// ScaleRows multiplies row i of the receiver by v[i], the row-wise action of
// diag(v). Changes receiver.
func (m Matrix) ScaleRows(v Vector) Matrix {
	var (
		nr, nc = m.Dims()
		data   = m.RawMatrix().Data
	)
	if v.Len() != nr {
		err := fmt.Errorf("dimension mismatch: ScaleRows nr = %v, v.Len() = %v", nr, v.Len())
		panic(err)
	}
	for i := 0; i < nr; i++ {
		val := v.At(i)
		for j := 0; j < nc; j++ {
			data[i*nc+j] *= val
		}
	}
	return m
}

func (m Matrix) SliceRows(I Index) (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(len(I), nc)
	for iNewRow, i := range I {
		if i > nr-1 || i < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", i, nr-1)
			panic("unable to subset rows from matrix")
		}
		R.M.SetRow(iNewRow, m.M.RawRowView(i))
	}
	return
}

func (m Matrix) SliceCols(I Index) (R Matrix) { // Does not change receiver
	var (
		nr, nc  = m.Dims()
		colData = make([]float64, nr)
	)
	R = NewMatrix(nr, len(I))
	for jNewCol, j := range I {
		if j > nc-1 || j < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", j, nc-1)
			panic("unable to subset columns from matrix")
		}
		for i := 0; i < nr; i++ {
			colData[i] = m.M.At(i, j)
		}
		R.M.SetCol(jNewCol, colData)
	}
	return
}

// Slice returns the half-open submatrix [I,K) x [J,L). Does not change
// receiver.
func (m Matrix) Slice(I, K, J, L int) (R Matrix) {
	R = NewMatrix(K-I, L-J)
	for i := I; i < K; i++ {
		for j := J; j < L; j++ {
			R.M.Set(i-I, j-J, m.M.At(i, j))
		}
	}
	return
}

// SetSubmatrix copies A into the receiver with upper-left corner (i0, j0).
// Changes receiver.
func (m Matrix) SetSubmatrix(i0, j0 int, A Matrix) Matrix {
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
func (m Matrix) AddSubmatrix(i0, j0 int, A Matrix) Matrix {
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

func (m Matrix) Row(i int) (V Vector) {
	var (
		_, nc = m.Dims()
	)
	V = NewVector(nc)
	for j := 0; j < nc; j++ {
		V.V.SetVec(j, m.M.At(i, j))
	}
	return
}

func (m Matrix) Col(j int) (V Vector) {
	var (
		nr, _ = m.Dims()
	)
	V = NewVector(nr)
	for i := 0; i < nr; i++ {
		V.V.SetVec(i, m.M.At(i, j))
	}
	return
}

func (m Matrix) SetCol(j int, data []float64) Matrix { // Changes receiver
	m.M.SetCol(j, data)
	return m
}

func (m Matrix) SetRow(i int, data []float64) Matrix { // Changes receiver
	m.M.SetRow(i, data)
	return m
}

func (m Matrix) Inverse() (R Matrix, err error) {
	var (
		nr, nc = m.Dims()
	)
	R = m.Copy()
	iPiv := make([]int, nr)
	if ok := lapack64.Getrf(R.RawMatrix(), iPiv); !ok {
		err = fmt.Errorf("unable to invert, matrix is singular")
		return
	}
	work := make([]float64, nr*nc)
	if ok := lapack64.Getri(R.RawMatrix(), iPiv, work, nr*nc); !ok {
		err = fmt.Errorf("unable to invert, matrix is singular")
	}
	return
}

// LU holds an in-place LU factorization for repeated solves against new
// right hand sides.
type LU struct {
	lu   blas64.General
	iPiv []int
}

// LU factorizes the receiver. The receiver is unchanged.
func (m Matrix) LU() (lu LU, err error) {
	var (
		nr, _ = m.Dims()
		F     = m.Copy()
	)
	lu.lu = F.RawMatrix()
	lu.iPiv = make([]int, nr)
	if ok := lapack64.Getrf(lu.lu, lu.iPiv); !ok {
		err = fmt.Errorf("unable to factorize, matrix is singular")
	}
	return
}

// Solve returns X with A*X = B for the factorized A. Does not change B.
func (lu LU) Solve(B Matrix) (X Matrix) {
	X = B.Copy()
	lapack64.Getrs(blas.NoTrans, lu.lu, X.RawMatrix(), lu.iPiv)
	return
}

// SolveVec returns x with A*x = b for the factorized A.
func (lu LU) SolveVec(b Vector) (x Vector) {
	var (
		n = b.Len()
		B = NewMatrix(n, 1, append([]float64{}, b.DataP()...))
	)
	lapack64.Getrs(blas.NoTrans, lu.lu, B.RawMatrix(), lu.iPiv)
	x = NewVector(n, B.RawMatrix().Data)
	return
}

// MaxAbsDiff returns the largest absolute elementwise difference between the
// receiver and A.
func (m Matrix) MaxAbsDiff(A Matrix) (md float64) {
	var (
		dataM = m.RawMatrix().Data
		dataA = A.RawMatrix().Data
	)
	for i, val := range dataM {
		d := val - dataA[i]
		if d < 0 {
			d = -d
		}
		if d > md {
			md = d
		}
	}
	return
}
