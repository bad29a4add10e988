package voxel

import "math"

// Material is a voxel type tag. Zero is empty.
type Material uint8

const Empty Material = 0

// Sd8 is a signed distance in 8-bit fixed point; ±127 is ±1.0.
// Negative is inside solid.
type Sd8 int8

const (
	SdOne    Sd8 = 127
	SdNegOne Sd8 = -127
)

func Sd8FromFloat(f float32) Sd8 {
	v := math.Round(float64(f) * float64(SdOne))
	return Sd8(max(math.MinInt8, min(math.MaxInt8, v)))
}

func (d Sd8) Float() float32 { return float32(d) / float32(SdOne) }

type Voxel struct {
	Material Material
	Dist     Sd8
}

// Ambient is the value of every voxel in an absent chunk.
var Ambient = Voxel{Material: Empty, Dist: SdOne}

func (v Voxel) IsSolid() bool { return v.Dist < 0 }
