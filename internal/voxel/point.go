package voxel

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Point3i is an integer voxel coordinate.
type Point3i struct {
	X, Y, Z int
}

func P(x, y, z int) Point3i { return Point3i{X: x, Y: y, Z: z} }

// Fill returns a point with all components equal to v.
func Fill(v int) Point3i { return Point3i{X: v, Y: v, Z: v} }

func (p Point3i) Add(o Point3i) Point3i { return Point3i{p.X + o.X, p.Y + o.Y, p.Z + o.Z} }
func (p Point3i) Sub(o Point3i) Point3i { return Point3i{p.X - o.X, p.Y - o.Y, p.Z - o.Z} }
func (p Point3i) Scale(s int) Point3i   { return Point3i{p.X * s, p.Y * s, p.Z * s} }

// Meet is the componentwise minimum.
func (p Point3i) Meet(o Point3i) Point3i {
	return Point3i{min(p.X, o.X), min(p.Y, o.Y), min(p.Z, o.Z)}
}

// Join is the componentwise maximum.
func (p Point3i) Join(o Point3i) Point3i {
	return Point3i{max(p.X, o.X), max(p.Y, o.Y), max(p.Z, o.Z)}
}

func (p Point3i) At(a Axis) int {
	switch a {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	default:
		return p.Z
	}
}

// With returns p with the component on axis a replaced by v.
func (p Point3i) With(a Axis, v int) Point3i {
	switch a {
	case AxisX:
		p.X = v
	case AxisY:
		p.Y = v
	default:
		p.Z = v
	}
	return p
}

func (p Point3i) Less(o Point3i) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.Z < o.Z
}

func (p Point3i) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}
}

// Center is the world-space center of the voxel at p.
func (p Point3i) Center() mgl32.Vec3 {
	return p.Vec3().Add(mgl32.Vec3{0.5, 0.5, 0.5})
}

func (p Point3i) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// InVoxel returns the voxel containing the world-space point v.
func InVoxel(v mgl32.Vec3) Point3i {
	return Point3i{
		X: int(math.Floor(float64(v[0]))),
		Y: int(math.Floor(float64(v[1]))),
		Z: int(math.Floor(float64(v[2]))),
	}
}

type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "z"
	}
}

// SignedAxis is one of the six axis-aligned unit directions.
type SignedAxis struct {
	Negative bool
	Axis     Axis
}

var (
	PosX = SignedAxis{Axis: AxisX}
	NegX = SignedAxis{Negative: true, Axis: AxisX}
	PosY = SignedAxis{Axis: AxisY}
	NegY = SignedAxis{Negative: true, Axis: AxisY}
	PosZ = SignedAxis{Axis: AxisZ}
	NegZ = SignedAxis{Negative: true, Axis: AxisZ}
)

// SignedAxisFromVector accepts only unit vectors along one axis.
func SignedAxisFromVector(p Point3i) (SignedAxis, bool) {
	switch p {
	case P(1, 0, 0):
		return PosX, true
	case P(-1, 0, 0):
		return NegX, true
	case P(0, 1, 0):
		return PosY, true
	case P(0, -1, 0):
		return NegY, true
	case P(0, 0, 1):
		return PosZ, true
	case P(0, 0, -1):
		return NegZ, true
	}
	return SignedAxis{}, false
}

func (s SignedAxis) Sign() int {
	if s.Negative {
		return -1
	}
	return 1
}

func (s SignedAxis) Vector() Point3i {
	return Point3i{}.With(s.Axis, s.Sign())
}

func (s SignedAxis) Vec3() mgl32.Vec3 { return s.Vector().Vec3() }

func (s SignedAxis) String() string {
	if s.Negative {
		return "-" + s.Axis.String()
	}
	return "+" + s.Axis.String()
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
