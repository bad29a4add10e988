// Package dragface extends a selected quad along its normal by dragging the
// pointer.
package dragface

import (
	"voxelsculpt.ai/internal/eventbus"
	"voxelsculpt.ai/internal/geometry"
	"voxelsculpt.ai/internal/hint"
	"voxelsculpt.ai/internal/input"
	"voxelsculpt.ai/internal/picking"
	"voxelsculpt.ai/internal/tools/selection"
	"voxelsculpt.ai/internal/voxel"
)

// Editor is the snapshotting write path.
type Editor interface {
	EditExtentAndTouchNeighbors(ext voxel.Extent, fn func(p voxel.Point3i, v *voxel.Voxel))
	FinishEdit() bool
	CancelEdit() bool
}

// CameraController is the host's pointer-driven camera, paused while dragging.
type CameraController interface {
	SetEnabled(enabled bool)
}

type Phase uint8

const (
	SelectionReady Phase = iota
	Dragging
)

type State struct {
	Phase Phase

	// Dragging
	Quad              voxel.Extent
	Normal            voxel.SignedAxis
	PreviousDragPoint voxel.Point3i
}

type EventKind uint8

const (
	Start EventKind = iota
	Update
	Finish
	Cancel
)

type Event struct {
	Kind  EventKind
	Face  picking.VoxelFace // Start
	Point voxel.Point3i     // Update
}

// Input maps the pointer onto drag events. ray is nil when there is no camera.
func Input(s *State, sel *selection.State, cursor *picking.VoxelCursor, ray *geometry.Ray3,
	mouse *input.ButtonInput[input.MouseButton], keys *input.ButtonInput[input.Key], out *eventbus.Queue[Event]) {
	switch s.Phase {
	case SelectionReady:
		if sel.Phase != selection.Ready {
			return
		}
		// A press released within the same tick is a click, not a drag.
		if !mouse.Pressed(input.MouseLeft) {
			return
		}
		if f := cursor.JustPressed(input.MouseLeft); f != nil && sel.Quad.Contains(f.Point) {
			out.Send(Event{Kind: Start, Face: *f})
		}
	case Dragging:
		if keys.JustPressed(input.KeyEscape) {
			out.Send(Event{Kind: Cancel})
			return
		}
		if ray != nil {
			// Project the pointer ray onto the normal axis through the last drag point.
			axis := geometry.Ray3{Origin: s.PreviousDragPoint.Vec3(), Direction: s.Normal.Vec3()}
			if p1, _, ok := geometry.ClosestPointsOnTwoLines(axis, *ray); ok {
				if p := voxel.InVoxel(p1); p != s.PreviousDragPoint {
					out.Send(Event{Kind: Update, Point: p})
				}
			}
		}
		if mouse.JustReleased(input.MouseLeft) {
			out.Send(Event{Kind: Finish})
		}
	}
}

// Tool applies drag events.
type Tool struct {
	// Material written into cells swept along the normal.
	Material voxel.Material
}

func (t Tool) Apply(s *State, sel *selection.State, ed Editor, cam CameraController, events []Event) {
	for _, ev := range events {
		switch ev.Kind {
		case Start:
			if s.Phase != SelectionReady || sel.Phase != selection.Ready {
				continue
			}
			cam.SetEnabled(false)
			*s = State{
				Phase:             Dragging,
				Quad:              sel.Quad,
				Normal:            sel.Normal,
				PreviousDragPoint: ev.Face.Point,
			}
			sel.Hide()
		case Update:
			if s.Phase != Dragging {
				continue
			}
			t.move(s, ed, ev.Point)
		case Finish, Cancel:
			if s.Phase != Dragging {
				continue
			}
			cam.SetEnabled(true)
			if ev.Kind == Cancel {
				ed.CancelEdit()
			} else {
				ed.FinishEdit()
			}
			*s = State{Phase: SelectionReady}
			sel.Reset()
		}
	}
}

func (t Tool) move(s *State, ed Editor, to voxel.Point3i) {
	a := s.Normal.Axis
	old := s.Quad
	s.Quad.Min = s.Quad.Min.With(a, to.At(a))

	fill := voxel.Voxel{Material: voxel.Empty, Dist: voxel.SdOne}
	if sign := s.Normal.Sign(); to.At(a)*sign > s.PreviousDragPoint.At(a)*sign {
		fill = voxel.Voxel{Material: t.Material, Dist: voxel.SdNegOne}
	}
	swept := voxel.ExtentFromMinAndMax(s.Quad.Min.Meet(old.Min), s.Quad.Max().Join(old.Max()))
	ed.EditExtentAndTouchNeighbors(swept, func(_ voxel.Point3i, v *voxel.Voxel) { *v = fill })
	s.PreviousDragPoint = to
}

// Hint is the quad being dragged.
func (s *State) Hint() (hint.Quad, bool) {
	if s.Phase != Dragging {
		return hint.Quad{}, false
	}
	return hint.Quad{Extent: s.Quad, Normal: s.Normal}, true
}
