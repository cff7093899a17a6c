package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniformTree(t *testing.T) {
	root := NewRoot2D(0, 1, 0, 1)
	NewUniformTree(root, 2)
	leaves := root.Leaves()
	assert.Equal(t, 16, len(leaves))
	assert.Equal(t, 16, root.NumLeaves())
	assert.True(t, root.IsUniform())
	assert.Equal(t, 2, root.MaxDepth())
	// Children tile the parent: leaf areas sum to the root area
	var area float64
	for _, leaf := range leaves {
		assert.Equal(t, 2, leaf.Level)
		area += leaf.Box.SideX() * leaf.Box.SideY()
	}
	assert.InDelta(t, 1.0, area, 1.e-14)
	// First sibling group is SW, SE, NE, NW of the lower-left quadrant
	assert.InDelta(t, 0.0, leaves[0].Box.XMin, 1.e-14)
	assert.InDelta(t, 0.25, leaves[1].Box.XMin, 1.e-14)
	assert.InDelta(t, 0.25, leaves[2].Box.XMin, 1.e-14)
	assert.InDelta(t, 0.25, leaves[2].Box.YMin, 1.e-14)
	assert.InDelta(t, 0.0, leaves[3].Box.XMin, 1.e-14)
	assert.InDelta(t, 0.25, leaves[3].Box.YMin, 1.e-14)
}

func TestUniformTree3D(t *testing.T) {
	root := NewRoot3D(0, 1, 0, 1, 0, 1)
	NewUniformTree(root, 1)
	leaves := root.Leaves()
	assert.Equal(t, 8, len(leaves))
	// Lower layer first
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 0.0, leaves[i].Box.ZMin, 1.e-14)
	}
	for i := 4; i < 8; i++ {
		assert.InDelta(t, 0.5, leaves[i].Box.ZMin, 1.e-14)
	}
}

func TestAdjacency(t *testing.T) {
	root := NewRoot2D(0, 1, 0, 1)
	root.Split()
	a, b, c, d := root.Children[0], root.Children[1], root.Children[2], root.Children[3]
	assert.True(t, FaceAdjacent(a, b))
	assert.True(t, FaceAdjacent(b, c))
	assert.True(t, FaceAdjacent(c, d))
	assert.True(t, FaceAdjacent(d, a))
	// Diagonal neighbors share only a corner
	assert.False(t, FaceAdjacent(a, c))
	assert.False(t, FaceAdjacent(b, d))
}

func TestLevelRestriction(t *testing.T) {
	// Split the SE child of the SW quadrant: its level-3 leaves meet the
	// level-1 SE quadrant across x = 0.5, a two-level jump
	root := NewRoot2D(0, 1, 0, 1)
	root.Split()
	sw := root.Children[0]
	sw.Split()
	sw.Children[1].Split()
	assert.False(t, root.LevelRestricted())
	root.EnforceLevelRestriction()
	assert.True(t, root.LevelRestricted())
}

func TestRefineBy(t *testing.T) {
	// Refine toward the origin
	root := NewRoot2D(0, 1, 0, 1)
	crit := func(n *Node) bool {
		return n.Box.XMin == 0 && n.Box.YMin == 0
	}
	root.RefineBy(crit, 3)
	assert.True(t, root.LevelRestricted())
	assert.False(t, root.IsUniform())
	assert.Equal(t, 3, root.MaxDepth())
}
