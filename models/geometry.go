package models

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is the JSON representation of a point or a scale.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func NewVec3(v r3.Vec) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func (v Vec3) R3() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// Quaternion is a rotation stored as x, y, z, w.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityRotation is the rotation that leaves vectors unchanged.
var IdentityRotation = Quaternion{W: 1}

func (q Quaternion) IsZero() bool {
	return q == Quaternion{}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Rotate returns v rotated by q. A zero quaternion is treated as the identity
// and non-unit quaternions are normalized first.
func (q Quaternion) Rotate(v r3.Vec) r3.Vec {
	n := q.number()
	abs := quat.Abs(n)
	if abs == 0 || math.IsNaN(abs) {
		return v
	}
	n = quat.Scale(1/abs, n)

	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(n, p), quat.Conj(n))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Transform places an object in world space.
type Transform struct {
	Position r3.Vec
	Rotation Quaternion
	Scale    r3.Vec
}

// DefaultTransform returns a transform at the origin with unit scale and no
// rotation.
func DefaultTransform() Transform {
	return Transform{
		Rotation: IdentityRotation,
		Scale:    r3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// TransformPoint maps a local point into world space: scale, then rotation,
// then translation.
func (t Transform) TransformPoint(local r3.Vec) r3.Vec {
	scaled := r3.Vec{
		X: local.X * t.Scale.X,
		Y: local.Y * t.Scale.Y,
		Z: local.Z * t.Scale.Z,
	}
	return r3.Add(t.Position, t.Rotation.Rotate(scaled))
}

// BoxCenter returns the center of b.
func BoxCenter(b r3.Box) r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// UnitBox returns an axis-aligned box of size 1 centered on p.
func UnitBox(p r3.Vec) r3.Box {
	half := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	return r3.Box{Min: r3.Sub(p, half), Max: r3.Add(p, half)}
}
