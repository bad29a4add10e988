// Package seed fills an empty world with a starting solid so there is
// something to pick on the first frame.
package seed

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"voxelsculpt.ai/internal/config"
	"voxelsculpt.ai/internal/voxel"
)

const (
	ShapeNone   = "none"
	ShapeBox    = "box"
	ShapeSphere = "sphere"
)

// Target is the write path a seed is applied through.
type Target interface {
	Map() *voxel.ChunkMap
	EditExtentAndTouchNeighbors(ext voxel.Extent, fn func(p voxel.Point3i, v *voxel.Voxel))
}

// Solid builds the signed distance field for spec in voxel units. Voxel p
// occupies [p, p+1) on every axis.
func Solid(spec config.SeedSpec) (sdf.SDF3, error) {
	size := v3.Vec{X: float64(spec.Size[0]), Y: float64(spec.Size[1]), Z: float64(spec.Size[2])}
	center := v3.Vec{
		X: float64(spec.Min[0]) + size.X/2,
		Y: float64(spec.Min[1]) + size.Y/2,
		Z: float64(spec.Min[2]) + size.Z/2,
	}

	var (
		s   sdf.SDF3
		err error
	)
	switch spec.Shape {
	case ShapeBox:
		s, err = sdf.Box3D(size, 0)
	case ShapeSphere:
		s, err = sdf.Sphere3D(min(size.X, size.Y, size.Z) / 2)
	default:
		return nil, fmt.Errorf("seed: unknown shape %q", spec.Shape)
	}
	if err != nil {
		return nil, fmt.Errorf("seed: %s: %w", spec.Shape, err)
	}
	return sdf.Transform3D(s, sdf.Translate3d(center)), nil
}

// Apply writes spec into t when the map holds no chunks. It returns the
// written extent, or an empty extent when nothing was written.
func Apply(t Target, spec config.SeedSpec) (voxel.Extent, error) {
	if spec.Shape == ShapeNone || t.Map().Len() > 0 {
		return voxel.Extent{}, nil
	}
	s, err := Solid(spec)
	if err != nil {
		return voxel.Extent{}, err
	}
	mat := voxel.Material(spec.Material)

	// one voxel of margin so the surface has an outside sample on every side
	ext := boundsOf(s).Padded(1)
	t.EditExtentAndTouchNeighbors(ext, func(p voxel.Point3i, v *voxel.Voxel) {
		c := p.Center()
		d := s.Evaluate(v3.Vec{X: float64(c.X()), Y: float64(c.Y()), Z: float64(c.Z())})
		v.Dist = voxel.Sd8FromFloat(float32(d))
		if v.Dist < 0 {
			v.Material = mat
		} else {
			v.Material = voxel.Empty
		}
	})
	return ext, nil
}

func boundsOf(s sdf.SDF3) voxel.Extent {
	bb := s.BoundingBox()
	return voxel.ExtentFromMinAndMax(floorVec(bb.Min), floorVec(bb.Max))
}

func floorVec(v v3.Vec) voxel.Point3i {
	return voxel.P(int(math.Floor(v.X)), int(math.Floor(v.Y)), int(math.Floor(v.Z)))
}
