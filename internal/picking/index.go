package picking

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"voxelsculpt.ai/internal/geometry"
	"voxelsculpt.ai/internal/voxel"
)

type chunkBounds struct {
	key  voxel.ChunkKey
	rect rtreego.Rect
}

func (c *chunkBounds) Bounds() rtreego.Rect { return c.rect }

// ChunkIndex is a bounding-volume index over chunks that hold solid voxels.
// Not safe for concurrent use.
type ChunkIndex struct {
	shape   int
	tree    *rtreego.Rtree
	entries map[voxel.ChunkKey]*chunkBounds
}

func NewChunkIndex(shape int) *ChunkIndex {
	return &ChunkIndex{
		shape:   shape,
		tree:    rtreego.NewTree(3, 25, 50),
		entries: map[voxel.ChunkKey]*chunkBounds{},
	}
}

func (ix *ChunkIndex) Len() int { return len(ix.entries) }

func (ix *ChunkIndex) Contains(key voxel.ChunkKey) bool {
	_, ok := ix.entries[key]
	return ok
}

func (ix *ChunkIndex) set(key voxel.ChunkKey, solid bool) {
	e, ok := ix.entries[key]
	switch {
	case solid && !ok:
		p := rtreego.Point{float64(key.Min.X), float64(key.Min.Y), float64(key.Min.Z)}
		s := float64(ix.shape)
		rect, err := rtreego.NewRect(p, []float64{s, s, s})
		if err != nil {
			panic(err)
		}
		e = &chunkBounds{key: key, rect: rect}
		ix.tree.Insert(e)
		ix.entries[key] = e
	case !solid && ok:
		ix.tree.Delete(e)
		delete(ix.entries, key)
	}
}

// Sync re-examines keys in m and updates index membership.
func (ix *ChunkIndex) Sync(m *voxel.ChunkMap, keys []voxel.ChunkKey) {
	for _, key := range keys {
		solid := false
		m.View(key, func(c *voxel.Chunk) { solid = c.HasSolid() })
		ix.set(key, solid)
	}
}

type candidate struct {
	key    voxel.ChunkKey
	tEnter float32
	tExit  float32
	// normal of the face the ray enters through
	normal voxel.SignedAxis
}

// candidates returns the indexed chunks the ray crosses within maxT, nearest first.
// ray.Direction must be normalized.
func (ix *ChunkIndex) candidates(ray geometry.Ray3, maxT float32) []candidate {
	if len(ix.entries) == 0 {
		return nil
	}
	a := ray.Origin
	b := ray.At(maxT)
	// Padded so rays lying on a chunk boundary plane still match; overlap tests are strict.
	lo, hi := make(rtreego.Point, 3), make(rtreego.Point, 3)
	for i := 0; i < 3; i++ {
		lo[i] = float64(min(a[i], b[i])) - 0.5
		hi[i] = float64(max(a[i], b[i])) + 0.5
	}
	search, err := rtreego.NewRectFromPoints(lo, hi)
	if err != nil {
		return nil
	}
	var out []candidate
	for _, sp := range ix.tree.SearchIntersect(search) {
		e := sp.(*chunkBounds)
		if c, ok := slab(ray, e.key, ix.shape); ok && c.tExit >= 0 && c.tEnter <= maxT {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].tEnter != out[j].tEnter {
			return out[i].tEnter < out[j].tEnter
		}
		return out[i].key.Less(out[j].key)
	})
	return out
}

func slab(ray geometry.Ray3, key voxel.ChunkKey, shape int) (candidate, bool) {
	c := candidate{key: key, tEnter: float32(math.Inf(-1)), tExit: float32(math.Inf(1))}
	for i := 0; i < 3; i++ {
		lo := float32(key.Min.At(voxel.Axis(i)))
		hi := lo + float32(shape)
		o, d := ray.Origin[i], ray.Direction[i]
		if d == 0 {
			if o < lo || o > hi {
				return c, false
			}
			continue
		}
		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > c.tEnter {
			c.tEnter = t1
			// Entering through the min face means the outward normal is negative.
			c.normal = voxel.SignedAxis{Axis: voxel.Axis(i), Negative: d > 0}
		}
		if t2 < c.tExit {
			c.tExit = t2
		}
	}
	return c, c.tEnter <= c.tExit
}
