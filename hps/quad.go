package hps

import "github.com/notargets/hps/utils"

// Sibling and boundary conventions for 2D quad merges.
//
// A child's boundary vector holds its four sides in ccw order S, E, N, W
// with side orientations S: W to E, E: S to N, N: E to W, W: N to S. The
// four siblings in canonical order are a=SW, b=SE, c=NE, d=NW. The merge
// eliminates the four shared interfaces
//
//	0: a|b (canonical orientation S to N, a's E side)
//	1: b|c (E to W, b's N side)
//	2: c|d (N to S, c's W side)
//	3: d|a (W to E, d's S side)
//
// A child side whose ccw orientation opposes the canonical interface
// orientation is flipped when gathered. The parent's exterior is first
// assembled child-major as [a:(W,S), b:(S,E), c:(E,N), d:(N,W)] and then
// rolled by one side length into the parent's own ccw (S, E, N, W) order.
const (
	sideS = iota
	sideE
	sideN
	sideW
)

type ifaceSlot struct {
	iface int
	side  int
	flip  bool
}

// childExtSides lists each child's two exterior sides in the child-major
// pre-roll ordering of the parent boundary.
var childExtSides = [4][2]int{
	{sideW, sideS}, // a
	{sideS, sideE}, // b
	{sideE, sideN}, // c
	{sideN, sideW}, // d
}

// childIfaces lists each child's two interface sides and whether the side
// orientation opposes the canonical interface orientation.
var childIfaces = [4][2]ifaceSlot{
	{{0, sideE, false}, {3, sideN, true}}, // a
	{{0, sideW, true}, {1, sideN, false}}, // b
	{{1, sideS, true}, {2, sideW, false}}, // c
	{{2, sideE, true}, {3, sideS, false}}, // d
}

// itiSlot maps (child, local interface entry) to the slot of that child's
// incoming interface impedance in the doubled ItI unknown vector
// [a0, b0, b1, c1, c2, d2, d3, a3].
var itiSlot = [4][2]int{
	{0, 7}, // a
	{1, 2}, // b
	{3, 4}, // c
	{5, 6}, // d
}

// itiPartner pairs each slot with the slot of the opposite child on the
// same interface.
var itiPartner = [8]int{1, 0, 3, 2, 5, 4, 7, 6}

func sideRange(s, n int) utils.Index {
	return utils.NewRangeIndex(s*n, (s+1)*n)
}

// ifaceGather returns the child boundary positions of an interface side in
// canonical interface orientation.
func ifaceGather(is ifaceSlot, n int) (I utils.Index) {
	I = sideRange(is.side, n)
	if is.flip {
		I = I.Reversed()
	}
	return
}

// slotOwner returns the child index and local interface entry owning an
// ItI slot.
func slotOwner(slot int) (k, m int) {
	for k = 0; k < 4; k++ {
		for m = 0; m < 2; m++ {
			if itiSlot[k][m] == slot {
				return
			}
		}
	}
	panic("invalid slot")
}
