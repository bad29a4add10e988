// Package edit keeps the undo/redo history of voxel edits as whole-chunk
// snapshots.
package edit

import (
	"github.com/samber/lo"

	"voxelsculpt.ai/internal/voxel"
)

// Edit is a sparse set of whole chunks. In the timeline it holds the
// contents chunks had before an edit unit touched them.
type Edit struct {
	chunks map[voxel.ChunkKey]*voxel.Chunk
	bytes  int
}

func NewEdit() *Edit {
	return &Edit{chunks: map[voxel.ChunkKey]*voxel.Chunk{}}
}

func (e *Edit) Len() int { return len(e.chunks) }

func (e *Edit) SizeBytes() int { return e.bytes }

func (e *Edit) Has(key voxel.ChunkKey) bool {
	_, ok := e.chunks[key]
	return ok
}

func (e *Edit) Chunk(key voxel.ChunkKey) (*voxel.Chunk, bool) {
	c, ok := e.chunks[key]
	return c, ok
}

func (e *Edit) Keys() []voxel.ChunkKey {
	keys := lo.Keys(e.chunks)
	voxel.SortKeys(keys)
	return keys
}

func (e *Edit) put(key voxel.ChunkKey, c *voxel.Chunk) {
	if old, ok := e.chunks[key]; ok {
		e.bytes -= old.SizeBytes()
	}
	e.chunks[key] = c
	e.bytes += c.SizeBytes()
}

// ChunkWriter is the write path undo and redo replay through.
type ChunkWriter interface {
	Map() *voxel.ChunkMap
	WriteChunkAndTouchNeighbors(key voxel.ChunkKey, c *voxel.Chunk)
}

// Timeline is linear undo history. Not safe for concurrent use.
type Timeline struct {
	undo    []*Edit // oldest first
	redo    []*Edit
	current *Edit

	// maxBytes bounds the undo stack; 0 is unbounded.
	maxBytes  int
	undoBytes int
}

func NewTimeline(maxBytes int) *Timeline {
	return &Timeline{current: NewEdit(), maxBytes: maxBytes}
}

func (t *Timeline) UndoLen() int { return len(t.undo) }
func (t *Timeline) RedoLen() int { return len(t.redo) }

// UndoBytes is the snapshot payload held by the undo stack.
func (t *Timeline) UndoBytes() int { return t.undoBytes }

// InProgress reports whether the current unit has recorded anything.
func (t *Timeline) InProgress() bool { return t.current.Len() > 0 }

// Record snapshots every chunk overlapping ext from src, unless the current
// unit already holds it. Must be called before ext is written.
func (t *Timeline) Record(ext voxel.Extent, src *voxel.ChunkMap) {
	for _, key := range src.Indexer().KeysForExtent(ext) {
		if t.current.Has(key) {
			continue
		}
		t.current.put(key, src.CopyOrAmbient(key))
	}
}

// Commit closes the current unit and pushes it on the undo stack.
// An empty unit is dropped and leaves the redo stack alone.
func (t *Timeline) Commit() bool {
	if t.current.Len() == 0 {
		return false
	}
	t.pushUndo(t.current)
	t.redo = nil
	t.current = NewEdit()
	t.evict()
	return true
}

// Cancel writes the current unit's snapshots back and discards it.
func (t *Timeline) Cancel(w ChunkWriter) bool {
	if t.current.Len() == 0 {
		return false
	}
	for _, key := range t.current.Keys() {
		c, _ := t.current.Chunk(key)
		w.WriteChunkAndTouchNeighbors(key, c)
	}
	t.current = NewEdit()
	return true
}

func (t *Timeline) Undo(w ChunkWriter) bool {
	if len(t.undo) == 0 {
		return false
	}
	e := t.popUndo()
	t.redo = append(t.redo, restore(e, w))
	return true
}

func (t *Timeline) Redo(w ChunkWriter) bool {
	if len(t.redo) == 0 {
		return false
	}
	e := t.redo[len(t.redo)-1]
	t.redo = t.redo[:len(t.redo)-1]
	t.pushUndo(restore(e, w))
	t.evict()
	return true
}

// restore captures the current content of e's chunks, then writes e.
func restore(e *Edit, w ChunkWriter) *Edit {
	inverse := NewEdit()
	keys := e.Keys()
	for _, key := range keys {
		inverse.put(key, w.Map().CopyOrAmbient(key))
	}
	for _, key := range keys {
		c, _ := e.Chunk(key)
		w.WriteChunkAndTouchNeighbors(key, c)
	}
	return inverse
}

func (t *Timeline) pushUndo(e *Edit) {
	t.undo = append(t.undo, e)
	t.undoBytes += e.SizeBytes()
}

func (t *Timeline) popUndo() *Edit {
	e := t.undo[len(t.undo)-1]
	t.undo = t.undo[:len(t.undo)-1]
	t.undoBytes -= e.SizeBytes()
	return e
}

// evict drops the oldest undo units over the byte bound. The newest unit is always kept.
func (t *Timeline) evict() {
	if t.maxBytes <= 0 {
		return
	}
	for len(t.undo) > 1 && t.undoBytes > t.maxBytes {
		t.undoBytes -= t.undo[0].SizeBytes()
		t.undo[0] = nil
		t.undo = t.undo[1:]
	}
}
