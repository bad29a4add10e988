package edit

import "voxelsculpt.ai/internal/voxel"

// SnapshottingEditor records every edit in the timeline before applying it.
// Tools write through this; undo and redo bypass it.
type SnapshottingEditor struct {
	editor   *voxel.Editor
	timeline *Timeline
}

func NewSnapshottingEditor(ed *voxel.Editor, tl *Timeline) *SnapshottingEditor {
	return &SnapshottingEditor{editor: ed, timeline: tl}
}

func (s *SnapshottingEditor) Map() *voxel.ChunkMap { return s.editor.Map() }

func (s *SnapshottingEditor) EditExtentAndTouchNeighbors(ext voxel.Extent, fn func(p voxel.Point3i, v *voxel.Voxel)) {
	if ext.IsEmpty() {
		return
	}
	s.timeline.Record(ext, s.editor.Map())
	s.editor.EditExtentAndTouchNeighbors(ext, fn)
}

// FinishEdit commits everything since the last finish as one undo unit.
func (s *SnapshottingEditor) FinishEdit() bool { return s.timeline.Commit() }

// CancelEdit reverts everything since the last finish.
func (s *SnapshottingEditor) CancelEdit() bool { return s.timeline.Cancel(s.editor) }
