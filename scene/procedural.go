package scene

import (
	"math/rand"

	"github.com/achilleasa/skylight/types"
)

const (
	// Small spheres are scattered on a grid spanning [-gridExtent, gridExtent).
	gridExtent = 11

	smallSphereRadius float32 = 0.2
)

// GenerateSpheres returns the procedural sphere field: a large ground
// sphere, a jittered grid of small spheres and three feature spheres.
func GenerateSpheres(seed int64) []Sphere {
	rng := rand.New(rand.NewSource(seed))
	rnd := func() float32 { return rng.Float32() }

	spheres := make([]Sphere, 0, 1+4*gridExtent*gridExtent+3)
	spheres = append(spheres, NewSphere(types.XYZ(0, -1000, -1), 1000, types.XYZ(0.2, 0.2, 0.2)))

	for i := -gridExtent; i < gridExtent; i++ {
		for b := -gridExtent; b < gridExtent; b++ {
			center := types.XYZ(float32(i)+rnd(), smallSphereRadius, float32(b)+rnd())
			albedo := types.XYZ(rnd()*rnd(), rnd()*rnd(), rnd()*rnd())
			spheres = append(spheres, NewSphere(center, smallSphereRadius, albedo))
		}
	}

	spheres = append(spheres,
		NewSphere(types.XYZ(0, 1, 0), 1, types.XYZ(0.8, 0.3, 0.3)),
		NewSphere(types.XYZ(-4, 1, 0), 1, types.XYZ(0.8, 0.3, 0.3)),
		NewSphere(types.XYZ(4, 1, 0), 1, types.XYZ(0.7, 0.6, 0.5)),
	)
	return spheres
}
