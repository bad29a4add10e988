// Package selection is the two-click quad selection on a single face plane.
package selection

import (
	"voxelsculpt.ai/internal/eventbus"
	"voxelsculpt.ai/internal/hint"
	"voxelsculpt.ai/internal/input"
	"voxelsculpt.ai/internal/picking"
	"voxelsculpt.ai/internal/voxel"
)

type Phase uint8

const (
	AwaitingFirst Phase = iota
	AwaitingSecond
	Ready
	Invisible
)

func (p Phase) String() string {
	switch p {
	case AwaitingFirst:
		return "awaiting_first"
	case AwaitingSecond:
		return "awaiting_second"
	case Ready:
		return "ready"
	default:
		return "invisible"
	}
}

type State struct {
	Phase Phase

	// AwaitingSecond
	First picking.VoxelFace
	Hover *picking.VoxelFace

	// Ready
	Quad   voxel.Extent
	Normal voxel.SignedAxis
}

func (s *State) Reset() { *s = State{} }

func (s *State) Hide() { *s = State{Phase: Invisible} }

type EventKind uint8

const (
	SelectFirstCorner EventKind = iota
	HoverMove
	SelectSecondCorner
)

type Event struct {
	Kind EventKind
	Face picking.VoxelFace
}

// CornersAreCompatible reports whether a and b lie on the same face plane.
func CornersAreCompatible(a, b picking.VoxelFace) bool {
	return a.Normal == b.Normal && a.Point.At(a.Normal.Axis) == b.Point.At(b.Normal.Axis)
}

// Input maps the cursor onto selection events.
func Input(s *State, cursor *picking.VoxelCursor, out *eventbus.Queue[Event]) {
	switch s.Phase {
	case AwaitingFirst:
		if f := cursor.JustClicked(input.MouseLeft); f != nil {
			out.Send(Event{Kind: SelectFirstCorner, Face: *f})
		}
	case AwaitingSecond:
		hover := cursor.Face()
		if hover == nil || s.Hover == nil {
			return
		}
		if *hover != *s.Hover {
			out.Send(Event{Kind: HoverMove, Face: *hover})
		}
		if cursor.JustClicked(input.MouseLeft) != nil {
			out.Send(Event{Kind: SelectSecondCorner, Face: *hover})
		}
	}
}

// Apply runs the state machine over events in order.
func (s *State) Apply(events []Event) {
	for _, ev := range events {
		switch ev.Kind {
		case SelectFirstCorner:
			f := ev.Face
			*s = State{Phase: AwaitingSecond, First: f, Hover: &f}
		case HoverMove:
			if s.Phase == AwaitingSecond && CornersAreCompatible(s.First, ev.Face) {
				f := ev.Face
				s.Hover = &f
			}
		case SelectSecondCorner:
			if s.Phase != AwaitingSecond {
				continue
			}
			if CornersAreCompatible(s.First, ev.Face) {
				*s = State{
					Phase:  Ready,
					Quad:   voxel.ExtentFromCorners(s.First.Point, ev.Face.Point),
					Normal: s.First.Normal,
				}
			} else {
				s.Reset()
			}
		}
	}
}

// Hint is the quad to draw this frame, if any.
func (s *State) Hint(cursor *picking.VoxelCursor) (hint.Quad, bool) {
	hovered := func() (hint.Quad, bool) {
		if f := cursor.Face(); f != nil {
			return hint.VoxelQuad(f.Point, f.Normal), true
		}
		return hint.Quad{}, false
	}
	switch s.Phase {
	case AwaitingFirst:
		return hovered()
	case AwaitingSecond:
		if s.Hover != nil {
			return hint.Quad{Extent: voxel.ExtentFromCorners(s.First.Point, s.Hover.Point), Normal: s.First.Normal}, true
		}
		return hovered()
	case Ready:
		return hint.Quad{Extent: s.Quad, Normal: s.Normal}, true
	}
	return hint.Quad{}, false
}
