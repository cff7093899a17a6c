// Package tree holds the spatial quadtree/octree of discretization cells.
// Nodes carry geometry only; discretization data lives with the solver.
package tree

import "math"

// Box is an axis aligned bounding box. For 2D cells the Z extents are zero.
type Box struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

func (b Box) SideX() float64 { return b.XMax - b.XMin }
func (b Box) SideY() float64 { return b.YMax - b.YMin }
func (b Box) SideZ() float64 { return b.ZMax - b.ZMin }

// Halfside returns half the X extent. Cells are square (cubic), so this is
// the operator rescaling length for derivative operators.
func (b Box) Halfside() float64 { return 0.5 * (b.XMax - b.XMin) }

// Node is one cell of the spatial tree. A node is a leaf iff Children is
// empty. Children exactly tile the parent box.
type Node struct {
	Box      Box
	Level    int
	Dim      int // 2 or 3
	Children []*Node
}

func NewRoot2D(xmin, xmax, ymin, ymax float64) *Node {
	return &Node{
		Box: Box{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax},
		Dim: 2,
	}
}

func NewRoot3D(xmin, xmax, ymin, ymax, zmin, zmax float64) *Node {
	return &Node{
		Box: Box{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax, ZMin: zmin, ZMax: zmax},
		Dim: 3,
	}
}

func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Split refines a leaf into its children in canonical order. In 2D the
// order is SW, SE, NE, NW (counterclockwise from the lower-left); in 3D the
// lower layer in that order followed by the upper layer.
func (n *Node) Split() {
	if !n.IsLeaf() {
		return
	}
	var (
		b      = n.Box
		xm     = 0.5 * (b.XMin + b.XMax)
		ym     = 0.5 * (b.YMin + b.YMax)
		childL = n.Level + 1
	)
	quad := func(zmin, zmax float64) []*Node {
		return []*Node{
			{Box: Box{b.XMin, xm, b.YMin, ym, zmin, zmax}, Level: childL, Dim: n.Dim},
			{Box: Box{xm, b.XMax, b.YMin, ym, zmin, zmax}, Level: childL, Dim: n.Dim},
			{Box: Box{xm, b.XMax, ym, b.YMax, zmin, zmax}, Level: childL, Dim: n.Dim},
			{Box: Box{b.XMin, xm, ym, b.YMax, zmin, zmax}, Level: childL, Dim: n.Dim},
		}
	}
	if n.Dim == 2 {
		n.Children = quad(0, 0)
		return
	}
	zm := 0.5 * (b.ZMin + b.ZMax)
	n.Children = append(quad(b.ZMin, zm), quad(zm, b.ZMax)...)
}

// NewUniformTree refines root down to depth L everywhere and returns it.
func NewUniformTree(root *Node, L int) *Node {
	var refine func(n *Node)
	refine = func(n *Node) {
		if n.Level == L {
			return
		}
		n.Split()
		for _, c := range n.Children {
			refine(c)
		}
	}
	refine(root)
	return root
}

// Leaves returns all leaves in canonical order: depth-first with children
// visited in Split order. Siblings appear consecutively, so consecutive
// groups of 4 (2D) or 8 (3D) at the finest level are merge groups.
func (n *Node) Leaves() (leaves []*Node) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsLeaf() {
			leaves = append(leaves, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return
}

// MaxDepth returns the deepest leaf level relative to the receiver.
func (n *Node) MaxDepth() (d int) {
	for _, leaf := range n.Leaves() {
		if leaf.Level > d {
			d = leaf.Level
		}
	}
	return
}

// IsUniform reports whether all leaves share the same level.
func (n *Node) IsUniform() bool {
	leaves := n.Leaves()
	for _, leaf := range leaves {
		if leaf.Level != leaves[0].Level {
			return false
		}
	}
	return true
}

// NumLeaves counts leaves without materializing the list.
func (n *Node) NumLeaves() (count int) {
	if n.IsLeaf() {
		return 1
	}
	for _, c := range n.Children {
		count += c.NumLeaves()
	}
	return
}

const adjTol = 1.e-12

func overlap1D(lo1, hi1, lo2, hi2 float64) bool {
	return math.Min(hi1, hi2)-math.Max(lo1, lo2) > adjTol
}

// FaceAdjacent reports whether two cells share a face (an edge in 2D) of
// positive measure.
func FaceAdjacent(a, b *Node) bool {
	var (
		ba, bb = a.Box, b.Box
	)
	touchX := math.Abs(ba.XMax-bb.XMin) < adjTol || math.Abs(bb.XMax-ba.XMin) < adjTol
	touchY := math.Abs(ba.YMax-bb.YMin) < adjTol || math.Abs(bb.YMax-ba.YMin) < adjTol
	ovX := overlap1D(ba.XMin, ba.XMax, bb.XMin, bb.XMax)
	ovY := overlap1D(ba.YMin, ba.YMax, bb.YMin, bb.YMax)
	if a.Dim == 2 {
		return (touchX && ovY) || (touchY && ovX)
	}
	touchZ := math.Abs(ba.ZMax-bb.ZMin) < adjTol || math.Abs(bb.ZMax-ba.ZMin) < adjTol
	ovZ := overlap1D(ba.ZMin, ba.ZMax, bb.ZMin, bb.ZMax)
	return (touchX && ovY && ovZ) || (touchY && ovX && ovZ) || (touchZ && ovX && ovY)
}

// LevelRestricted reports whether no two face-adjacent leaves differ in
// level by more than one.
func (n *Node) LevelRestricted() bool {
	leaves := n.Leaves()
	for i, a := range leaves {
		for _, b := range leaves[i+1:] {
			if !FaceAdjacent(a, b) {
				continue
			}
			d := a.Level - b.Level
			if d < 0 {
				d = -d
			}
			if d > 1 {
				return false
			}
		}
	}
	return true
}

// RefineBy refines every leaf for which shouldRefine returns true, down to
// at most maxLevel, then enforces the level restriction by further refining
// coarser neighbors of fine leaves.
func (n *Node) RefineBy(shouldRefine func(*Node) bool, maxLevel int) {
	var refine func(node *Node)
	refine = func(node *Node) {
		if node.IsLeaf() && node.Level < maxLevel && shouldRefine(node) {
			node.Split()
		}
		for _, c := range node.Children {
			refine(c)
		}
	}
	refine(n)
	n.EnforceLevelRestriction()
}

// EnforceLevelRestriction splits leaves until no face-adjacent pair differs
// in level by more than one. Terminates: each sweep only raises levels
// toward the current maximum depth.
func (n *Node) EnforceLevelRestriction() {
	for {
		leaves := n.Leaves()
		split := false
		for i, a := range leaves {
			for _, b := range leaves[i+1:] {
				if !FaceAdjacent(a, b) {
					continue
				}
				if a.Level < b.Level-1 {
					a.Split()
					split = true
				} else if b.Level < a.Level-1 {
					b.Split()
					split = true
				}
			}
		}
		if !split {
			return
		}
	}
}
