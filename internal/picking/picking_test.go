package picking

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelsculpt.ai/internal/geometry"
	"voxelsculpt.ai/internal/input"
	"voxelsculpt.ai/internal/voxel"
)

func solidBlock(t *testing.T, ext voxel.Extent) (*voxel.ChunkMap, *Picker) {
	t.Helper()
	m := voxel.NewChunkMap(8)
	ed := voxel.NewEditor(m)
	ed.EditExtentAndTouchNeighbors(ext, func(_ voxel.Point3i, v *voxel.Voxel) {
		*v = voxel.Voxel{Material: 2, Dist: voxel.SdNegOne}
	})
	p := NewPicker(m)
	p.Sync(ed.DrainDirty())
	return m, p
}

func TestCastHitsTopFace(t *testing.T) {
	_, p := solidBlock(t, voxel.ExtentFromMinAndShape(voxel.P(0, 0, 0), voxel.Fill(4)))
	require.Equal(t, 1, p.Index().Len())

	ray := geometry.Ray3{Origin: mgl32.Vec3{1.5, 20, 2.5}, Direction: mgl32.Vec3{0, -1, 0}}
	imp, ok := p.Cast(ray, 100)
	require.True(t, ok)
	assert.Equal(t, voxel.P(1, 3, 2), imp.Face.Point)
	assert.Equal(t, voxel.PosY, imp.Face.Normal)
	assert.InDelta(t, 16, imp.TOI, 1e-4)
}

func TestCastCrossesChunkBoundary(t *testing.T) {
	_, p := solidBlock(t, voxel.ExtentFromMinAndShape(voxel.P(-10, 0, 0), voxel.Fill(1)))

	ray := geometry.Ray3{Origin: mgl32.Vec3{12.5, 0.5, 0.5}, Direction: mgl32.Vec3{-1, 0, 0}}
	imp, ok := p.Cast(ray, 100)
	require.True(t, ok)
	assert.Equal(t, voxel.P(-10, 0, 0), imp.Face.Point)
	assert.Equal(t, voxel.PosX, imp.Face.Normal)
	assert.Equal(t, voxel.P(-9, 0, 0), imp.Face.Adjacent())
}

func TestCastRespectsMaxDistanceAndMisses(t *testing.T) {
	_, p := solidBlock(t, voxel.ExtentFromMinAndShape(voxel.P(0, 0, 0), voxel.Fill(2)))

	ray := geometry.Ray3{Origin: mgl32.Vec3{0.5, 50, 0.5}, Direction: mgl32.Vec3{0, -1, 0}}
	_, ok := p.Cast(ray, 10)
	assert.False(t, ok)

	away := geometry.Ray3{Origin: mgl32.Vec3{0.5, 50, 0.5}, Direction: mgl32.Vec3{0, 1, 0}}
	_, ok = p.Cast(away, 1000)
	assert.False(t, ok)
}

func TestIndexDropsChunksWithoutSolid(t *testing.T) {
	m, p := solidBlock(t, voxel.ExtentFromMinAndShape(voxel.P(0, 0, 0), voxel.Fill(1)))
	ed := voxel.NewEditor(m)
	ed.EditExtentAndTouchNeighbors(voxel.ExtentFromMinAndShape(voxel.P(0, 0, 0), voxel.Fill(1)), func(_ voxel.Point3i, v *voxel.Voxel) {
		*v = voxel.Ambient
	})
	p.Sync(ed.DrainDirty())
	assert.Equal(t, 0, p.Index().Len())
}

func face(x, y, z int) *Impact {
	return &Impact{Face: VoxelFace{Point: voxel.P(x, y, z), Normal: voxel.PosY}}
}

func TestCursorClickOnSameFace(t *testing.T) {
	mouse := input.NewButtonInput[input.MouseButton]()
	c := NewVoxelCursor()

	mouse.Press(input.MouseLeft)
	c.Update(face(1, 0, 0), mouse)
	require.NotNil(t, c.JustPressed(input.MouseLeft))
	require.NotNil(t, c.PressStartFace(input.MouseLeft))
	mouse.Clear()

	c.Update(face(1, 0, 0), mouse)
	assert.Nil(t, c.JustPressed(input.MouseLeft))

	mouse.Release(input.MouseLeft)
	c.Update(face(1, 0, 0), mouse)
	clicked := c.JustClicked(input.MouseLeft)
	require.NotNil(t, clicked)
	assert.Equal(t, voxel.P(1, 0, 0), clicked.Point)
	assert.Nil(t, c.PressStartFace(input.MouseLeft))
	mouse.Clear()

	c.Update(face(1, 0, 0), mouse)
	assert.Nil(t, c.JustClicked(input.MouseLeft))
}

func TestCursorDragToOtherFaceIsNotClick(t *testing.T) {
	mouse := input.NewButtonInput[input.MouseButton]()
	c := NewVoxelCursor()

	mouse.Press(input.MouseLeft)
	c.Update(face(1, 0, 0), mouse)
	mouse.Clear()

	mouse.Release(input.MouseLeft)
	c.Update(face(2, 0, 0), mouse)
	assert.Nil(t, c.JustClicked(input.MouseLeft))
}

func TestCursorReleaseWithoutImpactIsNotClick(t *testing.T) {
	mouse := input.NewButtonInput[input.MouseButton]()
	c := NewVoxelCursor()

	mouse.Press(input.MouseRight)
	c.Update(nil, mouse)
	assert.Nil(t, c.JustPressed(input.MouseRight))
	mouse.Clear()

	mouse.Release(input.MouseRight)
	c.Update(face(0, 0, 0), mouse)
	assert.Nil(t, c.JustClicked(input.MouseRight))
}

func TestCursorDoubleClickWithinOneTick(t *testing.T) {
	mouse := input.NewButtonInput[input.MouseButton]()
	c := NewVoxelCursor()

	mouse.Press(input.MouseLeft)
	c.Update(face(1, 2, 3), mouse)
	mouse.Clear()

	// released and pressed again before the next tick
	mouse.Release(input.MouseLeft)
	mouse.Press(input.MouseLeft)
	c.Update(face(1, 2, 3), mouse)
	require.NotNil(t, c.JustClicked(input.MouseLeft))
	require.NotNil(t, c.JustPressed(input.MouseLeft))
	require.NotNil(t, c.PressStartFace(input.MouseLeft))
	mouse.Clear()

	mouse.Release(input.MouseLeft)
	c.Update(face(1, 2, 3), mouse)
	assert.NotNil(t, c.JustClicked(input.MouseLeft))
}

func TestCursorClickWithinOneTick(t *testing.T) {
	mouse := input.NewButtonInput[input.MouseButton]()
	c := NewVoxelCursor()

	mouse.Press(input.MouseLeft)
	mouse.Release(input.MouseLeft)
	c.Update(face(1, 2, 3), mouse)
	assert.NotNil(t, c.JustClicked(input.MouseLeft))
	assert.Nil(t, c.PressStartFace(input.MouseLeft))
}
