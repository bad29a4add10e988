package session

import (
	"context"
	"time"

	"voxelsculpt.ai/internal/geometry"
	"voxelsculpt.ai/internal/hint"
	"voxelsculpt.ai/internal/input"
	"voxelsculpt.ai/internal/persistence/journal"
	"voxelsculpt.ai/internal/picking"
	"voxelsculpt.ai/internal/tools/dragface"
	"voxelsculpt.ai/internal/tools/selection"
	"voxelsculpt.ai/internal/tools/terraform"
)

// Tick runs one frame in a fixed order: pick, tool switch, undo/redo, the
// active tool, hints, dirty chunk sync, save. Input edges are cleared at
// the end. Only a failed save returns an error.
func (s *Session) Tick(ctx context.Context) error {
	start := time.Now()
	s.tick++
	in := s.input
	defer in.EndTick()

	ray := s.cursorRay()
	var impact *picking.Impact
	if ray != nil {
		if imp, ok := s.picker.Cast(*ray, s.cfg.PickMaxDistance); ok {
			impact = &imp
		}
	}
	s.cursor.Update(impact, in.Mouse)

	s.switchTool(in.Keys)

	if in.Keys.JustPressed(input.KeyU) {
		s.Undo()
	} else if in.Keys.JustPressed(input.KeyR) {
		s.Redo()
	}

	frame := hint.Frame{}
	switch s.tool {
	case ToolDragFace:
		// The press that completes a selection cannot also start a drag.
		wasReady := s.sel.Phase == selection.Ready
		selection.Input(&s.sel, s.cursor, &s.selEvents)
		s.sel.Apply(s.selEvents.Drain())
		if wasReady || s.drag.Phase == dragface.Dragging {
			dragface.Input(&s.drag, &s.sel, s.cursor, ray, in.Mouse, in.Keys, &s.dragEvents)
		}
		s.dragTool.Apply(&s.drag, &s.sel, s.snap, s, s.dragEvents.Drain())

		if q, ok := s.sel.Hint(s.cursor); ok {
			frame.AddQuad(q)
		}
		if q, ok := s.drag.Hint(); ok {
			frame.AddQuad(q)
		}
	case ToolTerraform:
		terraform.Input(in.Keys, &s.brushEvents)
		s.brush.Apply(ray, s.cursor, s.snap, s.brushEvents.Drain())
		if sp, ok := s.brush.Hint(ray); ok {
			frame.Brush = &sp
		}
	}
	s.hints = frame

	dirty := s.editor.DrainDirty()
	s.picker.Sync(dirty)
	for _, c := range s.clients {
		c.markPending(dirty)
	}

	var err error
	if in.Keys.JustPressed(input.KeyS) {
		_, err = s.Save(ctx)
	}

	s.publish()

	s.metrics.Ticks.Inc()
	s.metrics.DirtyChunks.Add(float64(len(dirty)))
	s.metrics.Chunks.Set(float64(s.m.Len()))
	s.metrics.UndoBytes.Set(float64(s.timeline.UndoBytes()))
	s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	return err
}

func (s *Session) cursorRay() *geometry.Ray3 {
	if s.input.Cursor == nil {
		return nil
	}
	r, ok := s.RayAt(*s.input.Cursor)
	if !ok {
		return nil
	}
	return &r
}

// switchTool handles D and T. Switching commits any edit in progress and
// starts the new tool from its initial state.
func (s *Session) switchTool(keys *input.ButtonInput[input.Key]) {
	next := s.tool
	switch {
	case keys.JustPressed(input.KeyD):
		next = ToolDragFace
	case keys.JustPressed(input.KeyT):
		next = ToolTerraform
	default:
		return
	}

	s.snap.FinishEdit()
	s.SetEnabled(true)
	s.sel.Reset()
	s.drag = dragface.State{}
	s.selEvents.Drain()
	s.dragEvents.Drain()
	s.brushEvents.Drain()
	if next != s.tool {
		s.record(journal.Entry{Op: journal.OpTool, Tool: next.String()})
		s.log.Printf("tool %s -> %s", s.tool, next)
	}
	s.tool = next
}
