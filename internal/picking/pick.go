// Package picking casts pointer rays into the voxel map and tracks which
// voxel faces buttons were pressed and released on.
package picking

import (
	"math"

	"voxelsculpt.ai/internal/geometry"
	"voxelsculpt.ai/internal/voxel"
)

// VoxelFace is a voxel and one of its six outward normals.
type VoxelFace struct {
	Point  voxel.Point3i
	Normal voxel.SignedAxis
}

// Adjacent is the empty voxel the face looks into.
func (f VoxelFace) Adjacent() voxel.Point3i { return f.Point.Add(f.Normal.Vector()) }

type Impact struct {
	Face VoxelFace
	// TOI is the distance along the normalized ray.
	TOI float32
}

// Picker casts rays against the solid voxels of a map.
type Picker struct {
	m     *voxel.ChunkMap
	index *ChunkIndex
}

func NewPicker(m *voxel.ChunkMap) *Picker {
	return &Picker{m: m, index: NewChunkIndex(m.Indexer().Shape)}
}

func (p *Picker) Index() *ChunkIndex { return p.index }

// Sync must be called with every chunk key that changed.
func (p *Picker) Sync(keys []voxel.ChunkKey) { p.index.Sync(p.m, keys) }

// Cast returns the first solid voxel along ray within maxT.
func (p *Picker) Cast(ray geometry.Ray3, maxT float32) (Impact, bool) {
	if ray.Direction.Len() == 0 {
		return Impact{}, false
	}
	r := geometry.Ray3{Origin: ray.Origin, Direction: ray.Direction.Normalize()}
	for _, c := range p.index.candidates(r, maxT) {
		var (
			imp Impact
			hit bool
		)
		p.m.View(c.key, func(ch *voxel.Chunk) {
			imp, hit = march(r, c, ch, p.m.Indexer(), maxT)
		})
		if hit {
			return imp, true
		}
	}
	return Impact{}, false
}

// march walks the voxels of one chunk along r (Amanatides-Woo).
func march(r geometry.Ray3, c candidate, ch *voxel.Chunk, ix voxel.ChunkIndexer, maxT float32) (Impact, bool) {
	ext := ix.ChunkExtent(c.key.Min)
	t := c.tEnter
	normal := c.normal
	if t < 0 {
		t = 0
		normal = facingAxis(r)
	}
	end := min(c.tExit, maxT)

	pos := voxel.InVoxel(r.At(t)).Join(ext.Min).Meet(ext.Max())
	var step [3]int
	var tMax, tDelta [3]float32
	for i := 0; i < 3; i++ {
		d := r.Direction[i]
		cell := float32(pos.At(voxel.Axis(i)))
		switch {
		case d > 0:
			step[i] = 1
			tMax[i] = (cell + 1 - r.Origin[i]) / d
			tDelta[i] = 1 / d
		case d < 0:
			step[i] = -1
			tMax[i] = (cell - r.Origin[i]) / d
			tDelta[i] = -1 / d
		default:
			tMax[i] = float32(math.Inf(1))
			tDelta[i] = float32(math.Inf(1))
		}
	}

	for ext.Contains(pos) && t <= end {
		if ch.Get(ix.Local(pos)).IsSolid() {
			return Impact{Face: VoxelFace{Point: pos, Normal: normal}, TOI: t}, true
		}
		a := 0
		if tMax[1] < tMax[a] {
			a = 1
		}
		if tMax[2] < tMax[a] {
			a = 2
		}
		t = tMax[a]
		tMax[a] += tDelta[a]
		axis := voxel.Axis(a)
		pos = pos.With(axis, pos.At(axis)+step[a])
		normal = voxel.SignedAxis{Axis: axis, Negative: step[a] > 0}
	}
	return Impact{}, false
}

// facingAxis is the face pointing back at the viewer along the dominant
// ray axis. Used when the ray starts inside a voxel.
func facingAxis(r geometry.Ray3) voxel.SignedAxis {
	d := r.Direction
	a := 0
	for i := 1; i < 3; i++ {
		if abs32(d[i]) > abs32(d[a]) {
			a = i
		}
	}
	return voxel.SignedAxis{Axis: voxel.Axis(a), Negative: d[a] > 0}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
