package voxel

import (
	"crypto/sha256"
	"fmt"
)

// ChunkKey identifies a chunk by level of detail and minimum corner.
type ChunkKey struct {
	LOD uint8
	Min Point3i
}

func (k ChunkKey) String() string { return fmt.Sprintf("lod%d%s", k.LOD, k.Min) }

func (k ChunkKey) Less(o ChunkKey) bool {
	if k.LOD != o.LOD {
		return k.LOD < o.LOD
	}
	return k.Min.Less(o.Min)
}

// Chunk is a dense cube of voxels stored as parallel arrays.
type Chunk struct {
	Shape     int
	Materials []Material
	Dists     []Sd8
}

func NewAmbientChunk(shape int) *Chunk {
	n := shape * shape * shape
	c := &Chunk{
		Shape:     shape,
		Materials: make([]Material, n),
		Dists:     make([]Sd8, n),
	}
	for i := range c.Dists {
		c.Dists[i] = SdOne
	}
	return c
}

func (c *Chunk) index(local Point3i) int {
	// x fastest, then y, then z
	return local.X + c.Shape*(local.Y+c.Shape*local.Z)
}

func (c *Chunk) Get(local Point3i) Voxel {
	i := c.index(local)
	return Voxel{Material: c.Materials[i], Dist: c.Dists[i]}
}

func (c *Chunk) Set(local Point3i, v Voxel) {
	i := c.index(local)
	c.Materials[i] = v.Material
	c.Dists[i] = v.Dist
}

func (c *Chunk) Clone() *Chunk {
	return &Chunk{
		Shape:     c.Shape,
		Materials: append([]Material(nil), c.Materials...),
		Dists:     append([]Sd8(nil), c.Dists...),
	}
}

func (c *Chunk) IsAmbient() bool {
	for i := range c.Dists {
		if c.Materials[i] != Empty || c.Dists[i] != SdOne {
			return false
		}
	}
	return true
}

func (c *Chunk) HasSolid() bool {
	for _, d := range c.Dists {
		if d < 0 {
			return true
		}
	}
	return false
}

func (c *Chunk) Equal(o *Chunk) bool {
	if c.Shape != o.Shape || len(c.Dists) != len(o.Dists) {
		return false
	}
	for i := range c.Dists {
		if c.Materials[i] != o.Materials[i] || c.Dists[i] != o.Dists[i] {
			return false
		}
	}
	return true
}

// SizeBytes is the in-memory payload size.
func (c *Chunk) SizeBytes() int { return len(c.Materials) + len(c.Dists) }

// MarshalBinary writes all materials followed by all distances.
func (c *Chunk) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, c.SizeBytes())
	for _, m := range c.Materials {
		out = append(out, byte(m))
	}
	for _, d := range c.Dists {
		out = append(out, byte(d))
	}
	return out, nil
}

// UnmarshalBinary expects c.Shape to be set by the caller.
func (c *Chunk) UnmarshalBinary(b []byte) error {
	n := c.Shape * c.Shape * c.Shape
	if n == 0 || len(b) != 2*n {
		return fmt.Errorf("chunk: bad payload length %d for shape %d", len(b), c.Shape)
	}
	c.Materials = make([]Material, n)
	c.Dists = make([]Sd8, n)
	for i := 0; i < n; i++ {
		c.Materials[i] = Material(b[i])
		c.Dists[i] = Sd8(int8(b[n+i]))
	}
	return nil
}

func (c *Chunk) Digest() [32]byte {
	b, _ := c.MarshalBinary()
	return sha256.Sum256(b)
}
