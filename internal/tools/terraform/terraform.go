// Package terraform is the spherical SDF brush.
package terraform

import (
	"math"

	"github.com/samber/lo"

	"voxelsculpt.ai/internal/eventbus"
	"voxelsculpt.ai/internal/geometry"
	"voxelsculpt.ai/internal/hint"
	"voxelsculpt.ai/internal/input"
	"voxelsculpt.ai/internal/picking"
	"voxelsculpt.ai/internal/voxel"
)

const (
	DefaultRadius         = 10
	DefaultMaterial       = voxel.Material(1)
	DefaultGrowthFactor   = 20
	DefaultCameraDistance = 20
	MaxMaterial           = voxel.Material(4)
)

// Editor is the snapshotting write path.
type Editor interface {
	EditExtentAndTouchNeighbors(ext voxel.Extent, fn func(p voxel.Point3i, v *voxel.Voxel))
	FinishEdit() bool
	CancelEdit() bool
}

type Operation int8

const (
	MakeSolid   Operation = -1
	RemoveSolid Operation = 1
)

type EventKind uint8

const (
	ChangeRadius EventKind = iota
	ChangeMaterial
	Stroke
	FinishStroke
	CancelStroke
)

type Event struct {
	Kind     EventKind
	Delta    int            // ChangeRadius
	Material voxel.Material // ChangeMaterial
	Op       Operation      // Stroke
}

// Brush is the terraform tool state.
type Brush struct {
	Radius       int
	Material     voxel.Material
	GrowthFactor float32
	// DefaultDistance places the brush when nothing has been picked yet.
	DefaultDistance float32

	// distance from the camera; nil until the cursor first hits a surface
	distance *float32
}

func NewBrush() *Brush {
	return &Brush{
		Radius:          DefaultRadius,
		Material:        DefaultMaterial,
		GrowthFactor:    DefaultGrowthFactor,
		DefaultDistance: DefaultCameraDistance,
	}
}

var materialKeys = []input.Key{input.Key1, input.Key2, input.Key3, input.Key4}

// Input maps the keyboard onto brush events.
func Input(keys *input.ButtonInput[input.Key], out *eventbus.Queue[Event]) {
	if keys.JustPressed(input.KeyUp) {
		out.Send(Event{Kind: ChangeRadius, Delta: 1})
	} else if keys.JustPressed(input.KeyDown) {
		out.Send(Event{Kind: ChangeRadius, Delta: -1})
	}

	for i, k := range materialKeys {
		if keys.JustPressed(k) {
			out.Send(Event{Kind: ChangeMaterial, Material: voxel.Material(i + 1)})
			break
		}
	}

	if keys.Pressed(input.KeyZ) {
		out.Send(Event{Kind: Stroke, Op: MakeSolid})
	} else if keys.Pressed(input.KeyX) {
		out.Send(Event{Kind: Stroke, Op: RemoveSolid})
	}

	if keys.JustPressed(input.KeyEscape) {
		out.Send(Event{Kind: CancelStroke})
	} else if keys.JustReleased(input.KeyZ) || keys.JustReleased(input.KeyX) {
		out.Send(Event{Kind: FinishStroke})
	}
}

// Distance is the current distance from the camera to the brush center.
func (b *Brush) Distance() float32 {
	if b.distance == nil {
		return b.DefaultDistance
	}
	return *b.distance
}

// Center is the voxel at the brush distance along ray.
func (b *Brush) Center(ray geometry.Ray3) voxel.Point3i {
	return voxel.InVoxel(ray.At(b.Distance()))
}

// Apply runs events for one tick. While a stroke is applied the brush keeps
// its distance; otherwise it follows the picked surface.
func (b *Brush) Apply(ray *geometry.Ray3, cursor *picking.VoxelCursor, ed Editor, events []Event) {
	locked := false
	for _, ev := range events {
		switch ev.Kind {
		case Stroke:
			if ray == nil {
				continue
			}
			locked = true
			mat := b.Material
			if ev.Op == RemoveSolid {
				mat = voxel.Empty
			}
			EditSphere(ed, ev.Op, b.Center(*ray), b.Radius, mat, b.GrowthFactor)
		case FinishStroke:
			ed.FinishEdit()
		case CancelStroke:
			ed.CancelEdit()
		case ChangeRadius:
			b.Radius = max(1, b.Radius+ev.Delta)
		case ChangeMaterial:
			b.Material = lo.Clamp(ev.Material, 1, MaxMaterial)
		}
	}
	if locked {
		return
	}
	if imp := cursor.Impact(); imp != nil {
		d := imp.TOI
		b.distance = &d
	} else {
		b.distance = nil
	}
}

// EditSphere adds (MakeSolid) or removes SDF mass around center. The change
// falls off linearly from growth at the center to zero at radius.
func EditSphere(ed Editor, op Operation, center voxel.Point3i, radius int, mat voxel.Material, growth float32) {
	fr := float64(radius)
	sign := int(op)
	ed.EditExtentAndTouchNeighbors(voxel.CenteredExtent(center, radius), func(p voxel.Point3i, v *voxel.Voxel) {
		d := p.Sub(center)
		r := math.Sqrt(float64(d.X*d.X + d.Y*d.Y + d.Z*d.Z))
		delta := sign * int(math.Round(math.Max(0, float64(growth)*(1-r/fr))))
		v.Dist = voxel.Sd8(lo.Clamp(int(v.Dist)+delta, math.MinInt8, math.MaxInt8))

		if delta < 0 && v.Dist < 0 {
			v.Material = mat
		} else if delta > 0 && v.Dist >= 0 {
			v.Material = voxel.Empty
		}
	})
}

// Hint is the brush sphere to draw this frame.
func (b *Brush) Hint(ray *geometry.Ray3) (hint.Sphere, bool) {
	if ray == nil {
		return hint.Sphere{}, false
	}
	return hint.Sphere{
		Center:   b.Center(*ray).Center(),
		Radius:   float32(b.Radius),
		Material: b.Material,
	}, true
}
