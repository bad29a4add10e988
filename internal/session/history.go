package session

import (
	"context"
	"fmt"
	"time"

	"voxelsculpt.ai/internal/persistence/chunkdb"
	"voxelsculpt.ai/internal/persistence/journal"
	"voxelsculpt.ai/internal/seed"
	"voxelsculpt.ai/internal/voxel"
)

// Undo reverts the newest committed edit. It does nothing while an edit is
// in progress.
func (s *Session) Undo() bool {
	if s.timeline.InProgress() {
		return false
	}
	if !s.timeline.Undo(s.editor) {
		return false
	}
	s.metrics.HistoryOp(journal.OpUndo)
	s.record(journal.Entry{Op: journal.OpUndo})
	s.log.Printf("undo (undo=%d redo=%d)", s.timeline.UndoLen(), s.timeline.RedoLen())
	return true
}

func (s *Session) Redo() bool {
	if s.timeline.InProgress() {
		return false
	}
	if !s.timeline.Redo(s.editor) {
		return false
	}
	s.metrics.HistoryOp(journal.OpRedo)
	s.record(journal.Entry{Op: journal.OpRedo})
	s.log.Printf("redo (undo=%d redo=%d)", s.timeline.UndoLen(), s.timeline.RedoLen())
	return true
}

// Save writes every chunk changed since the last save as one new version
// and flushes the store. With nothing to write it returns the current
// version. On failure the changed chunks stay pending for the next save.
func (s *Session) Save(ctx context.Context) (uint64, error) {
	start := time.Now()
	keys := s.editor.DrainUnsaved()
	if len(keys) == 0 {
		return s.store.CurrentVersion(), nil
	}

	deltas := make([]chunkdb.Delta, 0, len(keys))
	for _, key := range keys {
		if c, ok := s.m.Copy(key); ok && !c.IsAmbient() {
			deltas = append(deltas, chunkdb.Insert(key, c))
		} else {
			deltas = append(deltas, chunkdb.Remove(key))
		}
	}

	v, err := s.store.UpdateCurrentVersion(ctx, deltas)
	if err == nil {
		err = s.store.Flush(ctx)
	}
	s.metrics.ObserveSave(start, len(deltas), err)
	if err != nil {
		s.editor.MarkUnsaved(keys)
		s.record(journal.Entry{Op: journal.OpSaveFailed, Chunks: len(deltas), Error: err.Error()})
		s.log.Printf("save failed: %v", err)
		return 0, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	s.savedVersion = v
	s.record(journal.Entry{Op: journal.OpSave, Version: v, Chunks: len(deltas)})
	s.log.Printf("saved version=%d chunks=%d in %s", v, len(deltas), time.Since(start).Round(time.Millisecond))
	return v, nil
}

// Load reads the current version's chunks inside the configured load extent
// into the map. Loaded chunks are reported dirty on the next tick.
func (s *Session) Load(ctx context.Context) (int, error) {
	spec := s.cfg.LoadExtent
	ext := voxel.ExtentFromMinAndShape(
		voxel.P(spec.Min[0], spec.Min[1], spec.Min[2]),
		voxel.P(spec.Shape[0], spec.Shape[1], spec.Shape[2]),
	)
	loaded, err := s.store.LoadExtent(ctx, ext)
	if err != nil {
		return 0, fmt.Errorf("load version %d: %w", s.store.CurrentVersion(), err)
	}
	for _, lc := range loaded {
		s.editor.InsertLoaded(lc.Key, lc.Chunk)
	}
	s.record(journal.Entry{Op: journal.OpLoad, Version: s.store.CurrentVersion(), Chunks: len(loaded)})
	s.log.Printf("loaded %d chunks from version %d", len(loaded), s.store.CurrentVersion())
	return len(loaded), nil
}

// Seed fills an empty map with the configured starting solid. The seed is
// not undoable and is unsaved until the next save.
func (s *Session) Seed() error {
	ext, err := seed.Apply(s.editor, s.cfg.Seed)
	if err != nil {
		return err
	}
	if !ext.IsEmpty() {
		s.record(journal.Entry{Op: journal.OpSeed, Chunks: len(s.m.Indexer().KeysForExtent(ext))})
		s.log.Printf("seeded %s at %v size %v", s.cfg.Seed.Shape, ext.Min, ext.Shape)
	}
	return nil
}
