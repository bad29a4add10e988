package voxel

import (
	"sync"

	"github.com/samber/lo"
)

// ChunkMap is sparse chunk storage. Absent chunks read as Ambient.
//
// Writers run on the session goroutine. Readers on other goroutines
// (compression, transport) only ever receive copies.
type ChunkMap struct {
	idx ChunkIndexer

	mu     sync.RWMutex
	chunks map[ChunkKey]*Chunk
}

func NewChunkMap(shape int) *ChunkMap {
	return &ChunkMap{
		idx:    NewChunkIndexer(shape),
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (m *ChunkMap) Indexer() ChunkIndexer { return m.idx }

func (m *ChunkMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *ChunkMap) Has(key ChunkKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chunks[key]
	return ok
}

// Copy returns a private copy of the chunk at key, or false if absent.
func (m *ChunkMap) Copy(key ChunkKey) (*Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[key]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// CopyOrAmbient is Copy with absent chunks synthesized as ambient.
func (m *ChunkMap) CopyOrAmbient(key ChunkKey) *Chunk {
	if c, ok := m.Copy(key); ok {
		return c
	}
	return NewAmbientChunk(m.idx.Shape)
}

// View calls fn with the stored chunk under the read lock. fn must not retain it.
func (m *ChunkMap) View(key ChunkKey, fn func(c *Chunk)) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[key]
	if ok {
		fn(c)
	}
	return ok
}

func (m *ChunkMap) Get(p Point3i) Voxel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[m.idx.KeyContaining(p)]
	if !ok {
		return Ambient
	}
	return c.Get(m.idx.Local(p))
}

// Update calls fn with the chunk at key, inserting an ambient chunk first if absent.
func (m *ChunkMap) Update(key ChunkKey, fn func(c *Chunk)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[key]
	if !ok {
		c = NewAmbientChunk(m.idx.Shape)
		m.chunks[key] = c
	}
	fn(c)
}

// Insert stores c at key. The map takes ownership of c.
func (m *ChunkMap) Insert(key ChunkKey, c *Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[key] = c
}

func (m *ChunkMap) Remove(key ChunkKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, key)
}

// Keys returns the keys of present chunks, sorted.
func (m *ChunkMap) Keys() []ChunkKey {
	m.mu.RLock()
	keys := lo.Keys(m.chunks)
	m.mu.RUnlock()
	SortKeys(keys)
	return keys
}
