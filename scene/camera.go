package scene

import (
	"fmt"

	"github.com/achilleasa/skylight/types"
)

// Default camera parameters.
var (
	DefaultLookFrom         = types.XYZ(5, 5, 5)
	DefaultLookAt           = types.XYZ(0, 0, 0)
	DefaultUp               = types.XYZ(0, 1, 0)
	DefaultCosFovY  float32 = 0.66
)

// The camera type describes a pinhole camera pose.
type Camera struct {
	LookFrom types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3

	// Scale applied to the vertical image plane extent.
	CosFovY float32

	// Frame width / height.
	Aspect float32
}

// Create a camera with the default pose for a frame of the given dimensions.
func DefaultCamera(frameW, frameH uint32) Camera {
	return Camera{
		LookFrom: DefaultLookFrom,
		LookAt:   DefaultLookAt,
		Up:       DefaultUp,
		CosFovY:  DefaultCosFovY,
		Aspect:   float32(frameW) / float32(frameH),
	}
}

// Basis stores the origin and image plane vectors used for generating
// primary rays. The ray through the normalized frame coordinates (u, v),
// with v = 0 at the bottom row, is D00 + u*Ddu + v*Ddv.
type Basis struct {
	Origin types.Vec3
	D00    types.Vec3
	Ddu    types.Vec3
	Ddv    types.Vec3
}

// Basis derives the ray generation basis for the camera pose.
func (c Camera) Basis() Basis {
	dir := c.LookAt.Sub(c.LookFrom).Normalize()
	ddu := dir.Cross(c.Up).Normalize().Mul(c.CosFovY * c.Aspect)
	ddv := ddu.Cross(dir).Normalize().Mul(c.CosFovY)
	d00 := dir.Sub(ddu.Mul(0.5)).Sub(ddv.Mul(0.5))

	return Basis{
		Origin: c.LookFrom,
		D00:    d00,
		Ddu:    ddu,
		Ddv:    ddv,
	}
}

// Forward returns the view direction projected on the XZ plane.
func (c Camera) Forward() types.Vec3 {
	return c.LookAt.Sub(c.LookFrom).Flatten().Normalize()
}

// Right returns the right vector projected on the XZ plane.
func (c Camera) Right() types.Vec3 {
	return c.Forward().Cross(c.Up).Flatten().Normalize()
}

func (c Camera) String() string {
	return fmt.Sprintf(
		"from (%3.3f, %3.3f, %3.3f) at (%3.3f, %3.3f, %3.3f)",
		c.LookFrom[0], c.LookFrom[1], c.LookFrom[2],
		c.LookAt[0], c.LookAt[1], c.LookAt[2],
	)
}
