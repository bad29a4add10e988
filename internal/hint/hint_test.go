package hint

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelsculpt.ai/internal/voxel"
)

// triangleNormal is the winding normal of the first triangle.
func triangleNormal(m Mesh) mgl32.Vec3 {
	a, b, c := m.Positions[m.Indices[0]], m.Positions[m.Indices[1]], m.Positions[m.Indices[2]]
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

func TestQuadFacesItsNormal(t *testing.T) {
	for _, n := range []voxel.SignedAxis{voxel.PosX, voxel.NegX, voxel.PosY, voxel.NegY, voxel.PosZ, voxel.NegZ} {
		var m Mesh
		VoxelQuad(voxel.P(0, 0, 0), n).AppendTo(&m)
		require.Len(t, m.Positions, 4)
		require.Len(t, m.Indices, 6)
		assert.True(t, triangleNormal(m).ApproxEqual(n.Vec3()), "normal %v", n)
	}
}

func TestQuadIsOffsetFromFace(t *testing.T) {
	q := Quad{Extent: voxel.ExtentFromCorners(voxel.P(0, 3, 0), voxel.P(2, 3, 4)), Normal: voxel.PosY}
	var m Mesh
	q.AppendTo(&m)
	for _, p := range m.Positions {
		assert.InDelta(t, 4+HoverDistance, p.Y(), 1e-6)
	}
	assert.True(t, m.Positions[2].ApproxEqual(mgl32.Vec3{3, 4 + HoverDistance, 5}))
}

func TestFrameMesh(t *testing.T) {
	var f Frame
	assert.True(t, f.Empty())
	f.AddQuad(VoxelQuad(voxel.P(0, 0, 0), voxel.PosZ))
	f.AddQuad(VoxelQuad(voxel.P(5, 0, 0), voxel.NegZ))
	m := f.Mesh()
	assert.Len(t, m.Positions, 8)
	assert.Equal(t, uint32(4), m.Indices[6])
}
