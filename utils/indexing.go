package utils

// Index is a list of positions into a matrix dimension or vector.
type Index []int

func NewIndex(n int, IO ...[]int) (I Index) {
	I = make(Index, n)
	if len(IO) != 0 {
		copy(I, IO[0])
	}
	return
}

// NewRangeIndex returns [lo, hi) as an Index.
func NewRangeIndex(lo, hi int) (I Index) {
	I = make(Index, hi-lo)
	for i := range I {
		I[i] = lo + i
	}
	return
}

// Reversed returns a copy of I in reverse order.
func (I Index) Reversed() (R Index) {
	R = make(Index, len(I))
	for i, ind := range I {
		R[len(I)-1-i] = ind
	}
	return
}

// Offset returns a copy of I with ofs added to every entry.
func (I Index) Offset(ofs int) (R Index) {
	R = make(Index, len(I))
	for i, ind := range I {
		R[i] = ind + ofs
	}
	return
}

// Concat returns the concatenation of I with the argument indices.
func (I Index) Concat(Js ...Index) (R Index) {
	R = append(R, I...)
	for _, J := range Js {
		R = append(R, J...)
	}
	return
}

// NewRollIndex returns the index mapping that rotates a vector of length n
// left by shift places: out[i] = in[(i+shift) mod n]. Negative shifts rotate
// right.
func NewRollIndex(n, shift int) (I Index) {
	I = make(Index, n)
	for i := range I {
		I[i] = ((i+shift)%n + n) % n
	}
	return
}
