package voxel

// Extent is an axis-aligned integer box. Shape components <= 0 make it empty.
type Extent struct {
	Min   Point3i
	Shape Point3i
}

func ExtentFromMinAndShape(min, shape Point3i) Extent {
	return Extent{Min: min, Shape: shape}
}

// ExtentFromMinAndMax builds the box covering min..max inclusive.
func ExtentFromMinAndMax(min, max Point3i) Extent {
	return Extent{Min: min, Shape: max.Sub(min).Add(Fill(1))}
}

// ExtentFromCorners is the bounding box of two voxels in any order.
func ExtentFromCorners(a, b Point3i) Extent {
	return ExtentFromMinAndMax(a.Meet(b), a.Join(b))
}

// CenteredExtent is the cube of half-width r around c.
func CenteredExtent(c Point3i, r int) Extent {
	return Extent{Min: c.Sub(Fill(r)), Shape: Fill(2*r + 1)}
}

// Max is the inclusive maximum corner.
func (e Extent) Max() Point3i { return e.Min.Add(e.Shape).Sub(Fill(1)) }

// LUB is the exclusive upper corner.
func (e Extent) LUB() Point3i { return e.Min.Add(e.Shape) }

func (e Extent) IsEmpty() bool {
	return e.Shape.X <= 0 || e.Shape.Y <= 0 || e.Shape.Z <= 0
}

func (e Extent) Volume() int {
	if e.IsEmpty() {
		return 0
	}
	return e.Shape.X * e.Shape.Y * e.Shape.Z
}

func (e Extent) Contains(p Point3i) bool {
	lub := e.LUB()
	return p.X >= e.Min.X && p.Y >= e.Min.Y && p.Z >= e.Min.Z &&
		p.X < lub.X && p.Y < lub.Y && p.Z < lub.Z
}

func (e Extent) Intersection(o Extent) Extent {
	min := e.Min.Join(o.Min)
	lub := e.LUB().Meet(o.LUB())
	return Extent{Min: min, Shape: lub.Sub(min)}
}

// BoundingUnion is the smallest extent containing both.
func (e Extent) BoundingUnion(o Extent) Extent {
	if e.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return e
	}
	return ExtentFromMinAndMax(e.Min.Meet(o.Min), e.Max().Join(o.Max()))
}

func (e Extent) Padded(n int) Extent {
	return Extent{Min: e.Min.Sub(Fill(n)), Shape: e.Shape.Add(Fill(2 * n))}
}

// ForEach visits points in x-fastest order.
func (e Extent) ForEach(fn func(p Point3i)) {
	if e.IsEmpty() {
		return
	}
	lub := e.LUB()
	for z := e.Min.Z; z < lub.Z; z++ {
		for y := e.Min.Y; y < lub.Y; y++ {
			for x := e.Min.X; x < lub.X; x++ {
				fn(Point3i{x, y, z})
			}
		}
	}
}
