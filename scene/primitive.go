package scene

import "github.com/achilleasa/skylight/types"

// The kind of primitive referenced by an instance.
type PrimitiveKind uint32

const (
	SpherePrimitive PrimitiveKind = iota
	TrianglePrimitive
)

func (k PrimitiveKind) String() string {
	switch k {
	case SpherePrimitive:
		return "sphere"
	case TrianglePrimitive:
		return "triangle"
	}
	return "unknown"
}

// An analytic sphere with a diffuse albedo. Each sphere takes 32 bytes.
type Sphere struct {
	Center types.Vec3
	Radius float32

	Albedo  types.Vec3
	padding float32
}

// Create a new sphere.
func NewSphere(center types.Vec3, radius float32, albedo types.Vec3) Sphere {
	return Sphere{
		Center: center,
		Radius: radius,
		Albedo: albedo,
	}
}

// Get the sphere bounding box.
func (s *Sphere) BBox() [2]types.Vec3 {
	r := types.XYZ(s.Radius, s.Radius, s.Radius)
	return [2]types.Vec3{s.Center.Sub(r), s.Center.Add(r)}
}

// A mesh triangle. P, N and T index the scene position, normal and
// texcoord arrays; N and T entries are -1 when the corner has no normal or
// texcoord. Each triangle takes 48 bytes (three int4 vectors on the device).
type Triangle struct {
	P [3]int32
	_ int32
	N [3]int32
	_ int32
	T [3]int32
	_ int32
}

// Get the triangle bounding box.
func (t *Triangle) BBox(positions []types.Vec4) [2]types.Vec3 {
	p0 := positions[t.P[0]].Vec3()
	bbox := [2]types.Vec3{p0, p0}
	for _, index := range t.P[1:] {
		p := positions[index].Vec3()
		bbox[0] = types.MinVec3(bbox[0], p)
		bbox[1] = types.MaxVec3(bbox[1], p)
	}
	return bbox
}

// A top level instance that references a bottom level acceleration
// structure. Each instance takes 16 bytes.
type Instance struct {
	// Index of the BLAS root node.
	BvhRoot uint32

	// Kind of primitives stored in the referenced BLAS.
	Kind PrimitiveKind

	// Range of primitives covered by the BLAS.
	FirstPrimitive uint32
	PrimitiveCount uint32
}
