package mesh

import (
	"errors"
	"fmt"

	"github.com/achilleasa/skylight/types"
)

var (
	ErrUnsupportedFormat = errors.New("mesh: unsupported file format")
	ErrNoTriangles       = errors.New("mesh: no triangles defined")
)

// Attributes holds the typed arrays produced by parsing a mesh file. Each
// triangle is described by three consecutive entries in each index list.
// NormalIndices and TexCoordIndices are either empty or the same length as
// Indices; a -1 entry means the corner has no normal or texcoord.
type Attributes struct {
	Name string

	Positions []types.Vec3
	Indices   []int32

	Normals       []types.Vec3
	NormalIndices []int32

	TexCoords       []types.Vec2
	TexCoordIndices []int32
}

// Get the number of triangles.
func (a *Attributes) TriangleCount() int {
	return len(a.Indices) / 3
}

// Get the bounding box of all positions.
func (a *Attributes) BBox() [2]types.Vec3 {
	if len(a.Positions) == 0 {
		return [2]types.Vec3{}
	}

	bbox := [2]types.Vec3{a.Positions[0], a.Positions[0]}
	for _, p := range a.Positions[1:] {
		bbox[0] = types.MinVec3(bbox[0], p)
		bbox[1] = types.MaxVec3(bbox[1], p)
	}
	return bbox
}

// Validate checks that the index lists are consistent with the attribute arrays.
func (a *Attributes) Validate() error {
	if len(a.Indices) == 0 {
		return ErrNoTriangles
	}
	if len(a.Indices)%3 != 0 {
		return fmt.Errorf("mesh: index count %d is not a multiple of 3", len(a.Indices))
	}

	if err := checkIndices("position", a.Indices, len(a.Positions), false); err != nil {
		return err
	}
	if len(a.NormalIndices) != 0 {
		if len(a.NormalIndices) != len(a.Indices) {
			return fmt.Errorf("mesh: expected %d normal indices; got %d", len(a.Indices), len(a.NormalIndices))
		}
		if err := checkIndices("normal", a.NormalIndices, len(a.Normals), true); err != nil {
			return err
		}
	}
	if len(a.TexCoordIndices) != 0 {
		if len(a.TexCoordIndices) != len(a.Indices) {
			return fmt.Errorf("mesh: expected %d texcoord indices; got %d", len(a.Indices), len(a.TexCoordIndices))
		}
		if err := checkIndices("texcoord", a.TexCoordIndices, len(a.TexCoords), true); err != nil {
			return err
		}
	}

	return nil
}

func checkIndices(kind string, indices []int32, count int, allowMissing bool) error {
	for pos, index := range indices {
		if index == -1 && allowMissing {
			continue
		}
		if index < 0 || int(index) >= count {
			return fmt.Errorf("mesh: %s index %d at position %d is out of bounds [0, %d)", kind, index, pos, count)
		}
	}
	return nil
}
