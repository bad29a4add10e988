package terraform

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelsculpt.ai/internal/edit"
	"voxelsculpt.ai/internal/eventbus"
	"voxelsculpt.ai/internal/geometry"
	"voxelsculpt.ai/internal/input"
	"voxelsculpt.ai/internal/picking"
	"voxelsculpt.ai/internal/voxel"
)

func newEditor() (*voxel.ChunkMap, *voxel.Editor, *edit.Timeline, *edit.SnapshottingEditor) {
	m := voxel.NewChunkMap(8)
	ed := voxel.NewEditor(m)
	tl := edit.NewTimeline(0)
	return m, ed, tl, edit.NewSnapshottingEditor(ed, tl)
}

func TestEditSphereClampsDistance(t *testing.T) {
	m, _, _, se := newEditor()
	c := voxel.P(0, 0, 0)
	region := voxel.CenteredExtent(c, 4)

	for i := 0; i < 20; i++ {
		EditSphere(se, MakeSolid, c, 4, 3, DefaultGrowthFactor)
		region.ForEach(func(p voxel.Point3i) {
			require.GreaterOrEqual(t, int(m.Get(p).Dist), -128)
		})
	}
	assert.Equal(t, voxel.Sd8(-128), m.Get(c).Dist)
	assert.Equal(t, voxel.Material(3), m.Get(c).Material)

	for i := 0; i < 40; i++ {
		EditSphere(se, RemoveSolid, c, 4, voxel.Empty, DefaultGrowthFactor)
		region.ForEach(func(p voxel.Point3i) {
			require.LessOrEqual(t, int(m.Get(p).Dist), 127)
		})
	}
	assert.Equal(t, voxel.Sd8(127), m.Get(c).Dist)
	assert.Equal(t, voxel.Empty, m.Get(c).Material)
}

func TestEditSphereFalloff(t *testing.T) {
	m, _, _, se := newEditor()
	c := voxel.P(0, 0, 0)
	EditSphere(se, MakeSolid, c, 10, 2, 20)

	// delta = round(20 * (1 - r/10))
	assert.Equal(t, voxel.Sd8(127-20), m.Get(c).Dist)
	assert.Equal(t, voxel.Sd8(127-10), m.Get(voxel.P(5, 0, 0)).Dist)
	assert.Equal(t, voxel.Sd8(127), m.Get(voxel.P(10, 0, 0)).Dist)
	assert.Equal(t, voxel.Sd8(127), m.Get(voxel.P(10, 10, 10)).Dist)
	// Still outside: material untouched.
	assert.Equal(t, voxel.Empty, m.Get(c).Material)
}

func TestMaterialFollowsSignTransitions(t *testing.T) {
	m, ed, _, se := newEditor()
	c := voxel.P(0, 0, 0)
	ed.EditExtentAndTouchNeighbors(voxel.CenteredExtent(c, 0), func(_ voxel.Point3i, v *voxel.Voxel) {
		*v = voxel.Voxel{Material: voxel.Empty, Dist: 5}
	})

	EditSphere(se, MakeSolid, c, 3, 4, 20)
	assert.Equal(t, voxel.Voxel{Material: 4, Dist: -15}, m.Get(c))

	EditSphere(se, RemoveSolid, c, 3, voxel.Empty, 10)
	assert.Equal(t, voxel.Voxel{Material: 4, Dist: -5}, m.Get(c), "still solid keeps material")

	EditSphere(se, RemoveSolid, c, 3, voxel.Empty, 10)
	assert.Equal(t, voxel.Voxel{Material: voxel.Empty, Dist: 5}, m.Get(c))
}

func TestInputMapping(t *testing.T) {
	keys := input.NewButtonInput[input.Key]()
	var q eventbus.Queue[Event]

	keys.Press(input.KeyUp)
	keys.Press(input.Key3)
	keys.Press(input.KeyZ)
	Input(keys, &q)
	assert.Equal(t, []Event{
		{Kind: ChangeRadius, Delta: 1},
		{Kind: ChangeMaterial, Material: 3},
		{Kind: Stroke, Op: MakeSolid},
	}, q.Drain())

	keys.Clear()
	keys.Release(input.KeyZ)
	Input(keys, &q)
	assert.Equal(t, []Event{{Kind: FinishStroke}}, q.Drain())
}

func TestBrushDistanceLocksDuringStroke(t *testing.T) {
	_, _, tl, se := newEditor()
	b := NewBrush()
	b.Radius = 2
	cursor := picking.NewVoxelCursor()
	mouse := input.NewButtonInput[input.MouseButton]()
	ray := geometry.Ray3{Origin: mgl32.Vec3{0.5, 0.5, 0.5}, Direction: mgl32.Vec3{1, 0, 0}}

	assert.Equal(t, voxel.P(20, 0, 0), b.Center(ray))

	cursor.Update(&picking.Impact{TOI: 12}, mouse)
	b.Apply(&ray, cursor, se, nil)
	assert.Equal(t, float32(12), b.Distance())

	cursor.Update(&picking.Impact{TOI: 30}, mouse)
	b.Apply(&ray, cursor, se, []Event{{Kind: Stroke, Op: MakeSolid}})
	assert.Equal(t, float32(12), b.Distance())
	assert.True(t, tl.InProgress())

	b.Apply(&ray, cursor, se, []Event{{Kind: FinishStroke}})
	assert.Equal(t, float32(30), b.Distance())
	assert.Equal(t, 1, tl.UndoLen())

	cursor.Update(nil, mouse)
	b.Apply(&ray, cursor, se, nil)
	assert.Equal(t, float32(DefaultCameraDistance), b.Distance())
}

func TestRadiusNeverBelowOne(t *testing.T) {
	_, _, _, se := newEditor()
	b := NewBrush()
	b.Radius = 2
	cursor := picking.NewVoxelCursor()
	b.Apply(nil, cursor, se, []Event{{Kind: ChangeRadius, Delta: -1}, {Kind: ChangeRadius, Delta: -1}, {Kind: ChangeRadius, Delta: -1}})
	assert.Equal(t, 1, b.Radius)
}
