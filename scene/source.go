package scene

import (
	"fmt"

	"github.com/achilleasa/skylight/asset/mesh"
)

// Source describes where scene geometry comes from. It is implemented only
// by Procedural and Imported.
type Source interface {
	fmt.Stringer

	isSource()
}

// Procedural generates a field of random analytic spheres.
type Procedural struct {
	Seed int64
}

func (Procedural) isSource() {}

func (p Procedural) String() string {
	return fmt.Sprintf("procedural spheres (seed %d)", p.Seed)
}

// Imported uses the triangles of a parsed mesh.
type Imported struct {
	Mesh *mesh.Attributes
}

func (Imported) isSource() {}

func (i Imported) String() string {
	if i.Mesh == nil {
		return "imported mesh <nil>"
	}
	return fmt.Sprintf("imported mesh %q", i.Mesh.Name)
}
