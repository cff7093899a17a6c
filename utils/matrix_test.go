package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatrix(t *testing.T) {
	// Basic slicing and chaining
	{
		A := NewMatrix(3, 3, []float64{
			1, 2, 3,
			4, 5, 6,
			7, 8, 9,
		})
		B := A.SliceRows(NewIndex(2, []int{2, 0}))
		assert.Equal(t, []float64{7, 8, 9, 1, 2, 3}, B.RawMatrix().Data)
		C := A.SliceCols(NewIndex(1, []int{1}))
		assert.Equal(t, []float64{2, 5, 8}, C.RawMatrix().Data)
		D := A.Slice(1, 3, 0, 2)
		assert.Equal(t, []float64{4, 5, 7, 8}, D.RawMatrix().Data)
	}
	// Mul, Add, Subtract, Scale
	{
		A := NewMatrix(2, 2, []float64{1, 2, 3, 4})
		I := NewEye(2)
		assert.Equal(t, A.RawMatrix().Data, A.Mul(I).RawMatrix().Data)
		B := A.Copy().Add(A)
		assert.Equal(t, []float64{2, 4, 6, 8}, B.RawMatrix().Data)
		B.Subtract(A)
		assert.Equal(t, A.RawMatrix().Data, B.RawMatrix().Data)
		B.Scale(2)
		assert.Equal(t, []float64{2, 4, 6, 8}, B.RawMatrix().Data)
	}
	// Inverse
	{
		A := NewMatrix(2, 2, []float64{4, 7, 2, 6})
		AInv, err := A.Inverse()
		assert.NoError(t, err)
		P := A.Mul(AInv)
		assert.InDeltaSlice(t, NewEye(2).RawMatrix().Data, P.RawMatrix().Data, 1.e-12)
	}
	// Singular matrix reports an error
	{
		A := NewMatrix(2, 2, []float64{1, 2, 2, 4})
		_, err := A.Inverse()
		assert.Error(t, err)
	}
	// LU solve against multiple right hand sides matches the inverse
	{
		A := NewMatrix(3, 3, []float64{
			2, 1, 0,
			1, 3, 1,
			0, 1, 2,
		})
		B := NewMatrix(3, 2, []float64{
			1, 0,
			0, 1,
			1, 1,
		})
		lu, err := A.LU()
		assert.NoError(t, err)
		X := lu.Solve(B)
		AInv, err := A.Inverse()
		assert.NoError(t, err)
		assert.InDeltaSlice(t, AInv.Mul(B).RawMatrix().Data, X.RawMatrix().Data, 1.e-12)
		b := NewVector(3, []float64{1, 2, 3})
		x := lu.SolveVec(b)
		assert.InDeltaSlice(t, AInv.MulVec(b).DataP(), x.DataP(), 1.e-12)
	}
	// ScaleRows applies diag(v) on the left
	{
		A := NewMatrix(2, 3, []float64{1, 1, 1, 1, 1, 1})
		A.ScaleRows(NewVector(2, []float64{2, 3}))
		assert.Equal(t, []float64{2, 2, 2, 3, 3, 3}, A.RawMatrix().Data)
	}
	// Block assembly
	{
		A := NewMatrix(4, 4)
		A.SetSubmatrix(1, 1, NewMatrix(2, 2, []float64{1, 2, 3, 4}))
		assert.Equal(t, 4., A.At(2, 2))
		A.AddSubmatrix(1, 1, NewEye(2))
		assert.Equal(t, 2., A.At(1, 1))
		assert.Equal(t, 5., A.At(2, 2))
	}
}

func TestIndex(t *testing.T) {
	{
		I := NewRangeIndex(2, 5)
		assert.Equal(t, Index{2, 3, 4}, I)
		assert.Equal(t, Index{4, 3, 2}, I.Reversed())
		assert.Equal(t, Index{12, 13, 14}, I.Offset(10))
	}
	// Roll: out[i] = in[(i+shift) mod n]
	{
		I := NewRollIndex(6, 2)
		assert.Equal(t, Index{2, 3, 4, 5, 0, 1}, I)
		I = NewRollIndex(6, -2)
		assert.Equal(t, Index{4, 5, 0, 1, 2, 3}, I)
	}
	{
		I := NewRangeIndex(0, 2).Concat(NewRangeIndex(4, 6))
		assert.Equal(t, Index{0, 1, 4, 5}, I)
	}
}

func TestCMatrix(t *testing.T) {
	// Inverse through the real embedding
	{
		A := NewCMatrix(2, 2, []complex128{
			complex(1, 1), complex(2, 0),
			complex(0, -1), complex(3, 2),
		})
		AInv, err := A.Inverse()
		assert.NoError(t, err)
		P := A.Mul(AInv)
		assert.True(t, P.MaxAbsDiff(NewCEye(2)) < 1.e-12)
	}
	// Promotion from real agrees with real arithmetic
	{
		A := NewMatrix(2, 2, []float64{1, 2, 3, 4})
		CA := FromReal(A)
		CB := CA.Mul(CA)
		AB := A.Mul(A)
		assert.True(t, CB.MaxAbsDiff(FromReal(AB)) < 1.e-14)
	}
	// Complex mat-vec
	{
		A := NewCEye(3).Scale(complex(0, 1))
		v := NewCVector(3, []complex128{1, 2, 3})
		w := A.MulVec(v)
		assert.Equal(t, complex(0, 2), w.At(1))
	}
	// Rectangular complex product against a hand-worked result
	{
		A := NewCMatrix(2, 3, []complex128{
			complex(1, 0), complex(0, 1), complex(2, -1),
			complex(0, 0), complex(3, 0), complex(0, -2),
		})
		B := NewCMatrix(3, 2, []complex128{
			complex(1, 1), complex(0, 0),
			complex(2, 0), complex(0, 1),
			complex(0, 0), complex(1, -1),
		})
		P := A.Mul(B)
		nr, nc := P.Dims()
		assert.Equal(t, 2, nr)
		assert.Equal(t, 2, nc)
		want := NewCMatrix(2, 2, []complex128{
			complex(1, 3), complex(0, -3),
			complex(6, 0), complex(-2, 1),
		})
		assert.True(t, P.MaxAbsDiff(want) < 1.e-14)
	}
}
