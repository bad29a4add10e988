package voxel

import "sort"

// ChunkIndexer maps voxel coordinates onto a grid of cubic chunks.
type ChunkIndexer struct {
	Shape int
}

func NewChunkIndexer(shape int) ChunkIndexer {
	if shape <= 0 {
		panic("voxel: chunk shape must be positive")
	}
	return ChunkIndexer{Shape: shape}
}

func (ix ChunkIndexer) ChunkMinContaining(p Point3i) Point3i {
	s := ix.Shape
	return Point3i{floorDiv(p.X, s) * s, floorDiv(p.Y, s) * s, floorDiv(p.Z, s) * s}
}

func (ix ChunkIndexer) Local(p Point3i) Point3i {
	s := ix.Shape
	return Point3i{mod(p.X, s), mod(p.Y, s), mod(p.Z, s)}
}

func (ix ChunkIndexer) KeyContaining(p Point3i) ChunkKey {
	return ChunkKey{Min: ix.ChunkMinContaining(p)}
}

func (ix ChunkIndexer) ChunkExtent(min Point3i) Extent {
	return Extent{Min: min, Shape: Fill(ix.Shape)}
}

// KeysForExtent returns the keys of every chunk overlapping e, sorted.
func (ix ChunkIndexer) KeysForExtent(e Extent) []ChunkKey {
	if e.IsEmpty() {
		return nil
	}
	lo := ix.ChunkMinContaining(e.Min)
	hi := ix.ChunkMinContaining(e.Max())
	s := ix.Shape
	keys := make([]ChunkKey, 0, ((hi.X-lo.X)/s+1)*((hi.Y-lo.Y)/s+1)*((hi.Z-lo.Z)/s+1))
	for z := lo.Z; z <= hi.Z; z += s {
		for y := lo.Y; y <= hi.Y; y += s {
			for x := lo.X; x <= hi.X; x += s {
				keys = append(keys, ChunkKey{Min: Point3i{x, y, z}})
			}
		}
	}
	return keys
}

func SortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
