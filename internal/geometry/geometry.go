// Package geometry holds ray and plane helpers used for picking and dragging.
package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the tolerance for parallelism tests.
const Epsilon = 1e-5

type Ray3 struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

func (r Ray3) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Parallel reports whether a and b point along the same line, in either sense.
func Parallel(a, b mgl32.Vec3) bool {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return true
	}
	return a.Cross(b).Len() <= Epsilon*la*lb
}

// ClosestPointsOnTwoLines returns the point on each line nearest the other.
// ok is false for parallel lines.
func ClosestPointsOnTwoLines(l1, l2 Ray3) (p1, p2 mgl32.Vec3, ok bool) {
	if Parallel(l1.Direction, l2.Direction) {
		return mgl32.Vec3{}, mgl32.Vec3{}, false
	}
	n := l1.Direction.Cross(l2.Direction)
	m := mgl32.Mat3FromCols(l1.Direction, l2.Direction.Mul(-1), n)
	if math.Abs(float64(m.Det())) <= Epsilon {
		return mgl32.Vec3{}, mgl32.Vec3{}, false
	}
	t := m.Inv().Mul3x1(l2.Origin.Sub(l1.Origin))
	return l1.At(t.X()), l2.At(t.Y()), true
}

type Plane struct {
	Point  mgl32.Vec3
	Normal mgl32.Vec3
}

type IntersectionKind uint8

const (
	IntersectionEmpty IntersectionKind = iota
	IntersectionSinglePoint
	IntersectionEntireLine
)

type RayPlaneIntersection struct {
	Kind  IntersectionKind
	T     float32
	Point mgl32.Vec3
}

// IntersectRayPlane treats the ray as a full line.
func IntersectRayPlane(r Ray3, p Plane) RayPlaneIntersection {
	denom := r.Direction.Dot(p.Normal)
	dist := p.Point.Sub(r.Origin).Dot(p.Normal)
	if float32(math.Abs(float64(denom))) < Epsilon {
		if float32(math.Abs(float64(dist))) < Epsilon {
			return RayPlaneIntersection{Kind: IntersectionEntireLine}
		}
		return RayPlaneIntersection{Kind: IntersectionEmpty}
	}
	t := dist / denom
	return RayPlaneIntersection{Kind: IntersectionSinglePoint, T: t, Point: r.At(t)}
}

// RayFromWindowPoint builds a world-space ray from the camera through a
// window pixel. Window y grows downward; viewport is in pixels. The
// direction is normalized.
func RayFromWindowPoint(point, viewport mgl32.Vec2, camera, projection mgl32.Mat4) (Ray3, bool) {
	if viewport.X() <= 0 || viewport.Y() <= 0 {
		return Ray3{}, false
	}
	if math.Abs(float64(projection.Det())) <= 1e-12 {
		return Ray3{}, false
	}
	ndc := mgl32.Vec3{
		point.X()/viewport.X()*2 - 1,
		1 - point.Y()/viewport.Y()*2,
		1,
	}
	origin := camera.Col(3).Vec3()
	far := mgl32.TransformCoordinate(ndc, camera.Mul4(projection.Inv()))
	dir := far.Sub(origin)
	if dir.Len() == 0 {
		return Ray3{}, false
	}
	return Ray3{Origin: origin, Direction: dir.Normalize()}, true
}
