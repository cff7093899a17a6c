package utils

import "fmt"

// CVector is a simple dense complex vector.
type CVector struct {
	data []complex128
}

func NewCVector(n int, dataO ...[]complex128) (R CVector) {
	if len(dataO) != 0 {
		if len(dataO[0]) != n {
			err := fmt.Errorf("mismatch in allocation: NewCVector n = %v, len(data[0]) = %v",
				n, len(dataO[0]))
			panic(err)
		}
		R = CVector{dataO[0]}
	} else {
		R = CVector{make([]complex128, n)}
	}
	return
}

// FromRealVector promotes a real vector to complex.
func FromRealVector(v Vector) (R CVector) {
	R = NewCVector(v.Len())
	for i, val := range v.DataP() {
		R.data[i] = complex(val, 0)
	}
	return
}

func (v CVector) Len() int                  { return len(v.data) }
func (v CVector) At(i int) complex128       { return v.data[i] }
func (v CVector) DataP() []complex128       { return v.data }
func (v CVector) Set(i int, val complex128) { v.data[i] = val }

func (v CVector) Copy() (R CVector) {
	R = NewCVector(v.Len())
	copy(R.data, v.data)
	return
}

func (v CVector) Add(a CVector) CVector { // Changes receiver
	for i, val := range a.data {
		v.data[i] += val
	}
	return v
}

func (v CVector) Subtract(a CVector) CVector { // Changes receiver
	for i, val := range a.data {
		v.data[i] -= val
	}
	return v
}

func (v CVector) Scale(a complex128) CVector { // Changes receiver
	for i := range v.data {
		v.data[i] *= a
	}
	return v
}

func (v CVector) Subset(I Index) (R CVector) {
	R = NewCVector(len(I))
	for iNew, i := range I {
		if i > v.Len()-1 || i < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", i, v.Len()-1)
			panic("unable to subset from vector")
		}
		R.data[iNew] = v.data[i]
	}
	return
}

func (v CVector) Concat(a CVector) (R CVector) {
	R = NewCVector(v.Len() + a.Len())
	copy(R.data, v.data)
	copy(R.data[v.Len():], a.data)
	return
}

func (v CVector) MaxAbsDiff(a CVector) (md float64) {
	for i, val := range v.data {
		d := val - a.data[i]
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
	return
}
