package voxel

// Editor is the single write path into a ChunkMap. It records which chunks
// need remeshing (dirty) and which differ from the last save (unsaved).
// Not safe for concurrent use.
type Editor struct {
	m *ChunkMap

	dirty   map[ChunkKey]struct{}
	unsaved map[ChunkKey]struct{}
}

func NewEditor(m *ChunkMap) *Editor {
	return &Editor{
		m:       m,
		dirty:   map[ChunkKey]struct{}{},
		unsaved: map[ChunkKey]struct{}{},
	}
}

func (e *Editor) Map() *ChunkMap { return e.m }

// EditExtentAndTouchNeighbors calls fn for every voxel of ext with a mutable
// value. Chunks within one voxel of ext are marked dirty.
func (e *Editor) EditExtentAndTouchNeighbors(ext Extent, fn func(p Point3i, v *Voxel)) {
	if ext.IsEmpty() {
		return
	}
	idx := e.m.Indexer()
	for _, key := range idx.KeysForExtent(ext) {
		sub := ext.Intersection(idx.ChunkExtent(key.Min))
		e.m.Update(key, func(c *Chunk) {
			sub.ForEach(func(p Point3i) {
				l := idx.Local(p)
				v := c.Get(l)
				fn(p, &v)
				c.Set(l, v)
			})
		})
		e.unsaved[key] = struct{}{}
	}
	e.touch(ext.Padded(1))
}

// WriteChunkAndTouchNeighbors replaces a whole chunk. Ambient chunks are
// dropped from the map so it stays sparse.
func (e *Editor) WriteChunkAndTouchNeighbors(key ChunkKey, c *Chunk) {
	if c == nil || c.IsAmbient() {
		e.m.Remove(key)
	} else {
		e.m.Insert(key, c)
	}
	e.unsaved[key] = struct{}{}
	e.touch(e.m.Indexer().ChunkExtent(key.Min).Padded(1))
}

// InsertLoaded stores a chunk read from disk. It is dirty but not unsaved.
func (e *Editor) InsertLoaded(key ChunkKey, c *Chunk) {
	e.m.Insert(key, c)
	e.dirty[key] = struct{}{}
}

func (e *Editor) touch(ext Extent) {
	for _, key := range e.m.Indexer().KeysForExtent(ext) {
		e.dirty[key] = struct{}{}
	}
}

// DrainDirty returns and clears the dirty set, sorted.
func (e *Editor) DrainDirty() []ChunkKey {
	return drain(&e.dirty)
}

// DrainUnsaved returns and clears the unsaved set, sorted.
func (e *Editor) DrainUnsaved() []ChunkKey {
	return drain(&e.unsaved)
}

// MarkUnsaved puts keys back, e.g. after a failed save.
func (e *Editor) MarkUnsaved(keys []ChunkKey) {
	for _, k := range keys {
		e.unsaved[k] = struct{}{}
	}
}

func (e *Editor) UnsavedCount() int { return len(e.unsaved) }

func drain(set *map[ChunkKey]struct{}) []ChunkKey {
	if len(*set) == 0 {
		return nil
	}
	keys := make([]ChunkKey, 0, len(*set))
	for k := range *set {
		keys = append(keys, k)
	}
	*set = map[ChunkKey]struct{}{}
	SortKeys(keys)
	return keys
}
