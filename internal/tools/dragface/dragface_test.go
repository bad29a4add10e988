package dragface

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
	"voxelsculpt.ai/internal/tools/selection"
	"voxelsculpt.ai/internal/voxel"
)

type fakeCamera struct{ enabled bool }

func (c *fakeCamera) SetEnabled(v bool) { c.enabled = v }

type fixture struct {
	m   *voxel.ChunkMap
	ed  *voxel.Editor
	tl  *edit.Timeline
	se  *edit.SnapshottingEditor
	sel selection.State
	st  State
	cam *fakeCamera
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{m: voxel.NewChunkMap(8), tl: edit.NewTimeline(0), cam: &fakeCamera{enabled: true}}
	f.ed = voxel.NewEditor(f.m)
	f.se = edit.NewSnapshottingEditor(f.ed, f.tl)
	f.ed.EditExtentAndTouchNeighbors(voxel.ExtentFromMinAndShape(voxel.P(0, 0, 0), voxel.Fill(4)), func(_ voxel.Point3i, v *voxel.Voxel) {
		*v = voxel.Voxel{Material: 1, Dist: voxel.SdNegOne}
	})
	f.sel = selection.State{
		Phase:  selection.Ready,
		Quad:   voxel.ExtentFromCorners(voxel.P(0, 3, 0), voxel.P(3, 3, 3)),
		Normal: voxel.PosY,
	}
	return f
}

func (f *fixture) apply(events ...Event) {
	Tool{Material: 2}.Apply(&f.st, &f.sel, f.se, f.cam, events)
}

func topFace(x, z int) picking.VoxelFace {
	return picking.VoxelFace{Point: voxel.P(x, 3, z), Normal: voxel.PosY}
}

func TestDragOutwardFillsSolid(t *testing.T) {
	f := newFixture(t)
	f.apply(Event{Kind: Start, Face: topFace(1, 1)})
	require.Equal(t, Dragging, f.st.Phase)
	assert.Equal(t, selection.Invisible, f.sel.Phase)
	assert.False(t, f.cam.enabled)

	f.apply(Event{Kind: Update, Point: voxel.P(1, 5, 1)})
	assert.Equal(t, 5, f.st.Quad.Min.Y)
	for y := 4; y <= 5; y++ {
		v := f.m.Get(voxel.P(3, y, 0))
		assert.Equal(t, voxel.Voxel{Material: 2, Dist: voxel.SdNegOne}, v, "y=%d", y)
	}
	assert.Equal(t, voxel.Ambient, f.m.Get(voxel.P(4, 4, 0)))
	assert.Equal(t, voxel.Ambient, f.m.Get(voxel.P(0, 6, 0)))

	f.apply(Event{Kind: Update, Point: voxel.P(1, 4, 1)})
	assert.False(t, f.m.Get(voxel.P(0, 5, 0)).IsSolid())
	assert.False(t, f.m.Get(voxel.P(0, 4, 0)).IsSolid())

	f.apply(Event{Kind: Finish})
	assert.Equal(t, SelectionReady, f.st.Phase)
	assert.Equal(t, selection.AwaitingFirst, f.sel.Phase)
	assert.True(t, f.cam.enabled)
	assert.Equal(t, 1, f.tl.UndoLen())

	require.True(t, f.tl.Undo(f.ed))
	assert.Equal(t, voxel.Voxel{Material: 1, Dist: voxel.SdNegOne}, f.m.Get(voxel.P(0, 3, 0)))
	assert.Equal(t, voxel.Ambient, f.m.Get(voxel.P(0, 4, 0)))
}

func TestDragInwardCarves(t *testing.T) {
	f := newFixture(t)
	f.apply(Event{Kind: Start, Face: topFace(0, 0)}, Event{Kind: Update, Point: voxel.P(0, 1, 0)})
	for y := 1; y <= 3; y++ {
		assert.Equal(t, voxel.Voxel{Material: voxel.Empty, Dist: voxel.SdOne}, f.m.Get(voxel.P(2, y, 2)), "y=%d", y)
	}
	assert.True(t, f.m.Get(voxel.P(2, 0, 2)).IsSolid())
}

func TestCancelDiscardsDrag(t *testing.T) {
	f := newFixture(t)
	f.apply(Event{Kind: Start, Face: topFace(0, 0)}, Event{Kind: Update, Point: voxel.P(0, 7, 0)})
	require.True(t, f.m.Get(voxel.P(0, 7, 0)).IsSolid())

	f.apply(Event{Kind: Cancel})
	assert.False(t, f.m.Get(voxel.P(0, 7, 0)).IsSolid())
	assert.Equal(t, 0, f.tl.UndoLen())
	assert.True(t, f.cam.enabled)
	assert.Equal(t, SelectionReady, f.st.Phase)
}

func TestStartRequiresFaceInsideQuad(t *testing.T) {
	f := newFixture(t)
	mouse := input.NewButtonInput[input.MouseButton]()
	keys := input.NewButtonInput[input.Key]()
	cursor := picking.NewVoxelCursor()
	var q eventbus.Queue[Event]

	mouse.Press(input.MouseLeft)
	cursor.Update(&picking.Impact{Face: picking.VoxelFace{Point: voxel.P(9, 3, 9), Normal: voxel.PosY}}, mouse)
	Input(&f.st, &f.sel, cursor, nil, mouse, keys, &q)
	assert.Zero(t, q.Len())

	mouse.Clear()
	mouse.Release(input.MouseLeft)
	cursor.Update(nil, mouse)
	mouse.Clear()
	mouse.Press(input.MouseLeft)
	cursor.Update(&picking.Impact{Face: topFace(2, 2)}, mouse)
	Input(&f.st, &f.sel, cursor, nil, mouse, keys, &q)
	evs := q.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, Start, evs[0].Kind)
}

func TestClickInsideQuadDoesNotStart(t *testing.T) {
	f := newFixture(t)
	mouse := input.NewButtonInput[input.MouseButton]()
	keys := input.NewButtonInput[input.Key]()
	cursor := picking.NewVoxelCursor()
	var q eventbus.Queue[Event]

	mouse.Press(input.MouseLeft)
	mouse.Release(input.MouseLeft)
	cursor.Update(&picking.Impact{Face: topFace(2, 2)}, mouse)
	Input(&f.st, &f.sel, cursor, nil, mouse, keys, &q)
	assert.Zero(t, q.Len())
	assert.Equal(t, SelectionReady, f.st.Phase)
}

func TestInputProjectsRayOntoNormalAxis(t *testing.T) {
	f := newFixture(t)
	f.apply(Event{Kind: Start, Face: topFace(1, 1)})

	mouse := input.NewButtonInput[input.MouseButton]()
	keys := input.NewButtonInput[input.Key]()
	cursor := picking.NewVoxelCursor()
	var q eventbus.Queue[Event]

	ray := geometry.Ray3{Origin: mgl32.Vec3{10, 6.5, 1.5}, Direction: mgl32.Vec3{-1, 0, 0}}
	Input(&f.st, &f.sel, cursor, &ray, mouse, keys, &q)
	evs := q.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, Event{Kind: Update, Point: voxel.P(1, 6, 1)}, evs[0])

	// A ray along the axis has no unique projection.
	along := geometry.Ray3{Origin: mgl32.Vec3{1, 20, 1}, Direction: mgl32.Vec3{0, -1, 0}}
	Input(&f.st, &f.sel, cursor, &along, mouse, keys, &q)
	assert.Zero(t, q.Len())
}
