// Package hint builds the transient geometry the renderer draws for one
// frame: selection quads and the terraform brush.
package hint

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelsculpt.ai/internal/voxel"
)

// HoverDistance lifts quads off the surface to avoid z-fighting.
const HoverDistance float32 = 0.2

// Quad covers the faces of Extent that look along Normal.
type Quad struct {
	Extent voxel.Extent
	Normal voxel.SignedAxis
}

// VoxelQuad is the single face of one voxel.
func VoxelQuad(p voxel.Point3i, n voxel.SignedAxis) Quad {
	return Quad{Extent: voxel.ExtentFromMinAndShape(p, voxel.Fill(1)), Normal: n}
}

type Sphere struct {
	Center   mgl32.Vec3
	Radius   float32
	Material voxel.Material
}

// Mesh is an indexed triangle list with per-vertex normals.
type Mesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
}

// Frame collects the hints produced during one tick.
type Frame struct {
	Quads []Quad
	Brush *Sphere
}

func (f *Frame) AddQuad(q Quad) { f.Quads = append(f.Quads, q) }

func (f *Frame) Empty() bool { return len(f.Quads) == 0 && f.Brush == nil }

// Mesh appends every quad of the frame into one mesh.
func (f *Frame) Mesh() Mesh {
	var m Mesh
	for _, q := range f.Quads {
		q.AppendTo(&m)
	}
	return m
}

// planeAxes returns the two in-plane axes so that (u, v, n) is right handed.
func planeAxes(n voxel.Axis) (u, v voxel.Axis) {
	switch n {
	case voxel.AxisX:
		return voxel.AxisY, voxel.AxisZ
	case voxel.AxisY:
		return voxel.AxisZ, voxel.AxisX
	default:
		return voxel.AxisX, voxel.AxisY
	}
}

// AppendTo adds the quad, offset by HoverDistance, as two triangles facing Normal.
func (q Quad) AppendTo(m *Mesh) {
	e := q.Extent
	if e.IsEmpty() {
		return
	}
	a := q.Normal.Axis
	u, v := planeAxes(a)

	var plane float32
	if q.Normal.Negative {
		plane = float32(e.Min.At(a)) - HoverDistance
	} else {
		plane = float32(e.LUB().At(a)) + HoverDistance
	}
	u0, u1 := float32(e.Min.At(u)), float32(e.LUB().At(u))
	v0, v1 := float32(e.Min.At(v)), float32(e.LUB().At(v))

	corner := func(cu, cv float32) mgl32.Vec3 {
		var p mgl32.Vec3
		p[a] = plane
		p[u] = cu
		p[v] = cv
		return p
	}
	base := uint32(len(m.Positions))
	n := q.Normal.Vec3()
	m.Positions = append(m.Positions, corner(u0, v0), corner(u1, v0), corner(u1, v1), corner(u0, v1))
	m.Normals = append(m.Normals, n, n, n, n)
	if q.Normal.Negative {
		m.Indices = append(m.Indices, base, base+2, base+1, base, base+3, base+2)
	} else {
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
}
