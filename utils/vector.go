package utils

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Vector struct {
	V *mat.VecDense
}

func NewVector(n int, dataO ...[]float64) (R Vector) {
	var v *mat.VecDense
	if len(dataO) != 0 {
		if len(dataO[0]) != n {
			err := fmt.Errorf("mismatch in allocation: NewVector n = %v, len(data[0]) = %v",
				n, len(dataO[0]))
			panic(err)
		}
		v = mat.NewVecDense(n, dataO[0])
	} else {
		v = mat.NewVecDense(n, make([]float64, n))
	}
	R = Vector{v}
	return
}

// NewVectorConstant returns a length n vector with every entry set to val.
func NewVectorConstant(n int, val float64) (R Vector) {
	R = NewVector(n)
	for i := 0; i < n; i++ {
		R.V.SetVec(i, val)
	}
	return
}

func (v Vector) Len() int               { return v.V.Len() }
func (v Vector) At(i int) float64       { return v.V.AtVec(i) }
func (v Vector) DataP() []float64       { return v.V.RawVector().Data }
func (v Vector) Set(i int, val float64) { v.V.SetVec(i, val) }

func (v Vector) Copy() (R Vector) {
	var (
		data  = v.DataP()
		dataR = make([]float64, v.Len())
	)
	copy(dataR, data)
	R = NewVector(v.Len(), dataR)
	return
}

func (v Vector) Add(a Vector) Vector { // Changes receiver
	var (
		data  = v.DataP()
		dataA = a.DataP()
	)
	for i, val := range dataA {
		data[i] += val
	}
	return v
}

func (v Vector) Subtract(a Vector) Vector { // Changes receiver
	var (
		data  = v.DataP()
		dataA = a.DataP()
	)
	for i, val := range dataA {
		data[i] -= val
	}
	return v
}

func (v Vector) Scale(a float64) Vector { // Changes receiver
	var (
		data = v.DataP()
	)
	for i := range data {
		data[i] *= a
	}
	return v
}

// Subset gathers v[I[i]] into a new vector.
func (v Vector) Subset(I Index) (R Vector) {
	R = NewVector(len(I))
	for iNew, i := range I {
		if i > v.Len()-1 || i < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", i, v.Len()-1)
			panic("unable to subset from vector")
		}
		R.V.SetVec(iNew, v.V.AtVec(i))
	}
	return
}

// Concat returns the receiver followed by a in a new vector.
func (v Vector) Concat(a Vector) (R Vector) {
	var (
		n, na = v.Len(), a.Len()
	)
	R = NewVector(n + na)
	for i := 0; i < n; i++ {
		R.V.SetVec(i, v.V.AtVec(i))
	}
	for i := 0; i < na; i++ {
		R.V.SetVec(n+i, a.V.AtVec(i))
	}
	return
}

// ToMatrix returns the vector as an n x 1 matrix sharing no storage.
func (v Vector) ToMatrix() (R Matrix) {
	R = NewMatrix(v.Len(), 1, append([]float64{}, v.DataP()...))
	return
}

func (v Vector) MaxAbsDiff(a Vector) (md float64) {
	var (
		data  = v.DataP()
		dataA = a.DataP()
	)
	for i, val := range data {
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
