package scene

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/achilleasa/skylight/types"
	"github.com/olekukonko/tablewriter"
)

// Scene holds the compiled, device-ready representation of the geometry.
// A scene contains either spheres or triangles, never both.
type Scene struct {
	Spheres   []Sphere
	Triangles []Triangle

	// Mesh attributes referenced by triangles.
	Positions []types.Vec4
	Normals   []types.Vec4
	TexCoords []types.Vec2

	// Bottom level structure over primitives and top level structure
	// over instances.
	BlasNodes []BvhNode
	TlasNodes []BvhNode
	Instances []Instance
}

// Kind returns the kind of primitives stored in the scene.
func (sc *Scene) Kind() PrimitiveKind {
	if len(sc.Triangles) != 0 {
		return TrianglePrimitive
	}
	return SpherePrimitive
}

// PrimitiveCount returns the number of spheres or triangles in the scene.
func (sc *Scene) PrimitiveCount() int {
	if sc.Kind() == TrianglePrimitive {
		return len(sc.Triangles)
	}
	return len(sc.Spheres)
}

// BBox returns the scene bounding box as stored in the TLAS root.
func (sc *Scene) BBox() [2]types.Vec3 {
	if len(sc.TlasNodes) == 0 {
		return [2]types.Vec3{}
	}
	return sc.TlasNodes[0].BBox()
}

// Generate a table with scene statistics.
func (sc *Scene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Asset", "Count", "Size"})
	table.Append([]string{"Geometry", "---", "", types.FmtSize(sc.Spheres, sc.Triangles, sc.Positions, sc.Normals, sc.TexCoords)})
	table.Append([]string{"", "Spheres", fmt.Sprint(len(sc.Spheres)), types.FmtSize(sc.Spheres)})
	table.Append([]string{"", "Triangles", fmt.Sprint(len(sc.Triangles)), types.FmtSize(sc.Triangles)})
	table.Append([]string{"", "Positions", fmt.Sprint(len(sc.Positions)), types.FmtSize(sc.Positions)})
	table.Append([]string{"", "Normals", fmt.Sprint(len(sc.Normals)), types.FmtSize(sc.Normals)})
	table.Append([]string{"", "UVs", fmt.Sprint(len(sc.TexCoords)), types.FmtSize(sc.TexCoords)})
	table.Append([]string{" ", " ", " ", " "})
	table.Append([]string{"Acceleration", "---", "", types.FmtSize(sc.BlasNodes, sc.TlasNodes, sc.Instances)})
	table.Append([]string{"", "BLAS nodes", fmt.Sprint(len(sc.BlasNodes)), types.FmtSize(sc.BlasNodes)})
	table.Append([]string{"", "TLAS nodes", fmt.Sprint(len(sc.TlasNodes)), types.FmtSize(sc.TlasNodes)})
	table.Append([]string{"", "Instances", fmt.Sprint(len(sc.Instances)), types.FmtSize(sc.Instances)})
	table.SetFooter([]string{"Total", " ", " ", strings.TrimLeft(types.FmtSize(sc.Spheres, sc.Triangles, sc.Positions, sc.Normals, sc.TexCoords, sc.BlasNodes, sc.TlasNodes, sc.Instances), " ")})

	table.Render()
	return buf.String()
}
