package compiler

import (
	"errors"
	"testing"

	"github.com/achilleasa/skylight/asset/mesh"
	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/types"
)

// A 2x2 grid of quads split into 8 triangles.
func gridMesh() *mesh.Attributes {
	m := &mesh.Attributes{Name: "grid"}
	for z := 0; z <= 2; z++ {
		for x := 0; x <= 2; x++ {
			m.Positions = append(m.Positions, types.XYZ(float32(x), 0, float32(z)))
		}
	}
	m.Normals = []types.Vec3{{0, 2, 0}}
	for z := 0; z < 2; z++ {
		for x := 0; x < 2; x++ {
			i0 := int32(z*3 + x)
			m.Indices = append(m.Indices, i0, i0+1, i0+4, i0, i0+4, i0+3)
			m.NormalIndices = append(m.NormalIndices, 0, 0, 0, 0, 0, 0)
		}
	}
	return m
}

// Verify that every primitive is referenced by exactly one BLAS leaf.
func checkLeafCoverage(t *testing.T, sc *scene.Scene) {
	seen := make([]int, sc.PrimitiveCount())
	for _, node := range sc.BlasNodes {
		if !node.IsLeaf() {
			continue
		}
		first, count := node.GetPrimitives()
		for i := first; i < first+count; i++ {
			if int(i) >= len(seen) {
				t.Fatalf("expected leaf primitive index %d to be < %d", i, len(seen))
			}
			seen[i]++
		}
	}
	for index, count := range seen {
		if count != 1 {
			t.Fatalf("expected primitive %d to be covered by exactly one leaf; got %d", index, count)
		}
	}
}

func checkTopLevel(t *testing.T, sc *scene.Scene) {
	if len(sc.Instances) != 1 {
		t.Fatalf("expected exactly one instance; got %d", len(sc.Instances))
	}
	inst := sc.Instances[0]
	if int(inst.BvhRoot) >= len(sc.BlasNodes) {
		t.Fatalf("expected instance to reference a valid BLAS root; got %d", inst.BvhRoot)
	}
	if inst.Kind != sc.Kind() || int(inst.PrimitiveCount) != sc.PrimitiveCount() {
		t.Fatalf("expected instance to cover %d %s primitives; got %+v", sc.PrimitiveCount(), sc.Kind(), inst)
	}
	if len(sc.TlasNodes) != 1 || !sc.TlasNodes[0].IsLeaf() {
		t.Fatalf("expected a single leaf TLAS; got %d nodes", len(sc.TlasNodes))
	}
	if sc.TlasNodes[0].BBox() != sc.BlasNodes[0].BBox() {
		t.Fatalf("expected TLAS bbox to match the BLAS root bbox")
	}
}

func TestCompileProcedural(t *testing.T) {
	sc, err := Compile(scene.Procedural{Seed: 0})
	if err != nil {
		t.Fatal(err)
	}

	if len(sc.Spheres) != 488 || len(sc.Triangles) != 0 {
		t.Fatalf("expected 488 spheres and no triangles; got %d spheres and %d triangles", len(sc.Spheres), len(sc.Triangles))
	}

	// The fixed spheres survive reordering
	fixed := map[types.Vec3]bool{
		types.XYZ(0, -1000, -1): false,
		types.XYZ(0, 1, 0):      false,
		types.XYZ(-4, 1, 0):     false,
		types.XYZ(4, 1, 0):      false,
	}
	for _, s := range sc.Spheres {
		if _, ok := fixed[s.Center]; ok {
			fixed[s.Center] = true
		}
	}
	for center, found := range fixed {
		if !found {
			t.Fatalf("expected fixed sphere at %v to be present", center)
		}
	}

	checkLeafCoverage(t, sc)
	checkTopLevel(t, sc)

	bbox := sc.BBox()
	if bbox[0][1] != -2000 || bbox[1][1] != 2 {
		t.Fatalf("expected scene y extents [-2000, 2]; got [%f, %f]", bbox[0][1], bbox[1][1])
	}
}

func TestCompileImported(t *testing.T) {
	sc, err := Compile(scene.Imported{Mesh: gridMesh()})
	if err != nil {
		t.Fatal(err)
	}

	if len(sc.Triangles) != 8 || len(sc.Spheres) != 0 {
		t.Fatalf("expected 8 triangles and no spheres; got %d triangles and %d spheres", len(sc.Triangles), len(sc.Spheres))
	}
	if len(sc.Positions) != 9 || sc.Positions[4] != types.XYZW(1, 0, 1, 1) {
		t.Fatalf("expected positions to be copied as points; got %v", sc.Positions)
	}
	if sc.Normals[0] != types.XYZW(0, 1, 0, 0) {
		t.Fatalf("expected normals to be normalized directions; got %v", sc.Normals[0])
	}
	for index, tri := range sc.Triangles {
		if tri.N != [3]int32{0, 0, 0} || tri.T != [3]int32{-1, -1, -1} {
			t.Fatalf("[tri %d] expected normal indices 0 and missing texcoords; got %+v", index, tri)
		}
	}

	checkLeafCoverage(t, sc)
	checkTopLevel(t, sc)
}

func TestCompileErrors(t *testing.T) {
	broken := gridMesh()
	broken.Indices[5] = 42

	specs := []struct {
		src    scene.Source
		expErr error
	}{
		{scene.Imported{}, ErrEmptyScene},
		{scene.Imported{Mesh: &mesh.Attributes{Positions: []types.Vec3{{}}}}, ErrEmptyScene},
		{scene.Imported{Mesh: broken}, ErrInvalidMesh},
	}

	for index, spec := range specs {
		_, err := Compile(spec.src)
		if !errors.Is(err, spec.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, spec.expErr, err)
		}
	}
}

func TestRebuildBottomLevelInvalidatesTopLevel(t *testing.T) {
	sc, err := Compile(scene.Procedural{Seed: 3})
	if err != nil {
		t.Fatal(err)
	}

	if err = BuildBottomLevel(sc); err != nil {
		t.Fatal(err)
	}
	if sc.TlasNodes != nil || sc.Instances != nil {
		t.Fatal("expected bottom level rebuild to drop the top level structure")
	}
	if err = BuildTopLevel(sc); err != nil {
		t.Fatal(err)
	}
	checkTopLevel(t, sc)

	if err = BuildTopLevel(&scene.Scene{}); !errors.Is(err, ErrNoBottomLevel) {
		t.Fatalf("expected ErrNoBottomLevel; got %v", err)
	}
}

// Chain of inner nodes whose right child is the next level.
func chainTree(levels int) []scene.BvhNode {
	nodes := make([]scene.BvhNode, 2*levels+1)
	for level := 0; level < levels; level++ {
		nodes[2*level].SetChildNodes(uint32(2*level+1), uint32(2*level+2))
		nodes[2*level+1].SetPrimitives(uint32(level), 1)
	}
	nodes[2*levels].SetPrimitives(uint32(levels), 1)
	return nodes
}

func TestCheckDepth(t *testing.T) {
	if err := checkDepth("bottom", chainTree(scene.MaxTraversalDepth-1), 0); err != nil {
		t.Fatalf("expected a tree with %d levels to be accepted; got %v", scene.MaxTraversalDepth, err)
	}

	err := checkDepth("bottom", chainTree(scene.MaxTraversalDepth), 0)
	if !errors.Is(err, ErrTreeTooDeep) {
		t.Fatalf("expected ErrTreeTooDeep; got %v", err)
	}
}

func TestCompiledTreesFitTraversalStack(t *testing.T) {
	sc, err := Compile(scene.Procedural{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if depth := scene.TreeDepth(sc.BlasNodes, sc.Instances[0].BvhRoot); depth == 0 || depth > scene.MaxTraversalDepth {
		t.Fatalf("expected bottom level depth in [1, %d]; got %d", scene.MaxTraversalDepth, depth)
	}
	if depth := scene.TreeDepth(sc.TlasNodes, 0); depth == 0 || depth > scene.MaxTraversalDepth {
		t.Fatalf("expected top level depth in [1, %d]; got %d", scene.MaxTraversalDepth, depth)
	}
}
