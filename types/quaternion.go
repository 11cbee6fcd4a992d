package types

import "math"

// Quat is a unit quaternion used for pivoting view directions.
type Quat struct {
	V Vec3
	W float32
}

// Build the rotation of angle radians about axis. The axis does not need to
// be normalized.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	half := float64(angle) / 2
	return Quat{
		V: axis.Normalize().Mul(float32(math.Sin(half))),
		W: float32(math.Cos(half)),
	}
}

// Rotate v using v' = v + 2w(q x v) + 2q x (q x v).
func (q Quat) Rotate(v Vec3) Vec3 {
	t := q.V.Cross(v).Mul(2)
	return v.Add(t.Mul(q.W)).Add(q.V.Cross(t))
}
