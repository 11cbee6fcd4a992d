package compiler

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/skylight/asset/mesh"
	"github.com/achilleasa/skylight/log"
	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/scene/bvh"
	"github.com/achilleasa/skylight/types"
)

const (
	minPrimitivesPerLeaf = 4
	minInstancesPerLeaf  = 1
)

var (
	ErrEmptyScene    = errors.New("compiler: scene contains no primitives")
	ErrInvalidMesh   = errors.New("compiler: invalid mesh")
	ErrNoBottomLevel = errors.New("compiler: top level structure requires a bottom level structure")
	ErrTreeTooDeep   = errors.New("compiler: BVH is deeper than the kernel traversal stack")
)

type sceneCompiler struct {
	logger log.Logger
	sc     *scene.Scene
}

// Compile a scene source into a GPU-friendly scene with a bottom level
// acceleration structure over its primitives and a top level structure over
// a single instance.
func Compile(src scene.Source) (*scene.Scene, error) {
	compiler := &sceneCompiler{
		logger: log.New("scene compiler"),
		sc:     &scene.Scene{},
	}

	start := time.Now()
	compiler.logger.Noticef("compiling scene from %s", src)

	var err error
	switch s := src.(type) {
	case scene.Procedural:
		compiler.sc.Spheres = scene.GenerateSpheres(s.Seed)
	case scene.Imported:
		err = compiler.importMesh(s.Mesh)
	default:
		err = fmt.Errorf("compiler: unsupported scene source %T", src)
	}
	if err != nil {
		return nil, err
	}

	if err = BuildBottomLevel(compiler.sc); err != nil {
		return nil, err
	}
	if err = BuildTopLevel(compiler.sc); err != nil {
		return nil, err
	}

	compiler.logger.Noticef("compiled scene with %d %s primitives in %d ms", compiler.sc.PrimitiveCount(), compiler.sc.Kind(), time.Since(start).Nanoseconds()/1e6)
	return compiler.sc, nil
}

// Copy mesh attributes into the flat scene arrays.
func (c *sceneCompiler) importMesh(m *mesh.Attributes) error {
	if m == nil || len(m.Indices) == 0 {
		return ErrEmptyScene
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMesh, err)
	}

	// Convert Vec3 to Vec4 which is required for proper alignment inside opencl kernels
	c.sc.Positions = make([]types.Vec4, len(m.Positions))
	for index, p := range m.Positions {
		c.sc.Positions[index] = p.Vec4(1)
	}
	c.sc.Normals = make([]types.Vec4, len(m.Normals))
	for index, n := range m.Normals {
		c.sc.Normals[index] = n.Normalize().Vec4(0)
	}
	c.sc.TexCoords = append([]types.Vec2(nil), m.TexCoords...)

	c.sc.Triangles = make([]scene.Triangle, m.TriangleCount())
	for triIndex := range c.sc.Triangles {
		tri := &c.sc.Triangles[triIndex]
		for corner := 0; corner < 3; corner++ {
			offset := 3*triIndex + corner
			tri.P[corner] = m.Indices[offset]
			tri.N[corner] = -1
			tri.T[corner] = -1
			if len(m.NormalIndices) != 0 {
				tri.N[corner] = m.NormalIndices[offset]
			}
			if len(m.TexCoordIndices) != 0 {
				tri.T[corner] = m.TexCoordIndices[offset]
			}
		}
	}

	c.logger.Infof("imported %d triangles from %q", len(c.sc.Triangles), m.Name)
	return nil
}

// BuildBottomLevel partitions the scene primitives into a BVH. Primitives
// are reordered so that each leaf covers a contiguous range. Any existing
// top level structure must be rebuilt afterwards.
func BuildBottomLevel(sc *scene.Scene) error {
	if len(sc.Spheres) != 0 && len(sc.Triangles) != 0 {
		return fmt.Errorf("compiler: scene contains both spheres and triangles")
	}

	var volList []bvh.BoundedVolume
	switch sc.Kind() {
	case scene.SpherePrimitive:
		volList = make([]bvh.BoundedVolume, len(sc.Spheres))
		for index := range sc.Spheres {
			volList[index] = bvh.NewItem(index, sc.Spheres[index].BBox())
		}
	case scene.TrianglePrimitive:
		volList = make([]bvh.BoundedVolume, len(sc.Triangles))
		for index := range sc.Triangles {
			volList[index] = bvh.NewItem(index, sc.Triangles[index].BBox(sc.Positions))
		}
	}
	if len(volList) == 0 {
		return ErrEmptyScene
	}

	order := make([]int, 0, len(volList))
	nodes := bvh.Build(volList, minPrimitivesPerLeaf, func(node *scene.BvhNode, workList []bvh.BoundedVolume) {
		node.SetPrimitives(uint32(len(order)), uint32(len(workList)))
		for _, workItem := range workList {
			order = append(order, workItem.(*bvh.Item).Index)
		}
	}, bvh.SurfaceAreaHeuristic)

	if len(nodes) == 0 || len(order) != len(volList) {
		return fmt.Errorf("compiler: bottom level build covered %d of %d primitives", len(order), len(volList))
	}
	if err := checkDepth("bottom", nodes, 0); err != nil {
		return err
	}

	switch sc.Kind() {
	case scene.SpherePrimitive:
		sorted := make([]scene.Sphere, len(order))
		for index, primIndex := range order {
			sorted[index] = sc.Spheres[primIndex]
		}
		sc.Spheres = sorted
	case scene.TrianglePrimitive:
		sorted := make([]scene.Triangle, len(order))
		for index, primIndex := range order {
			sorted[index] = sc.Triangles[primIndex]
		}
		sc.Triangles = sorted
	}

	sc.BlasNodes = nodes
	sc.TlasNodes = nil
	sc.Instances = nil
	return nil
}

// BuildTopLevel creates a single instance referencing the bottom level
// structure and partitions the instance list into a BVH.
func BuildTopLevel(sc *scene.Scene) error {
	if len(sc.BlasNodes) == 0 {
		return ErrNoBottomLevel
	}

	sc.Instances = []scene.Instance{
		{
			BvhRoot:        0,
			Kind:           sc.Kind(),
			FirstPrimitive: 0,
			PrimitiveCount: uint32(sc.PrimitiveCount()),
		},
	}

	volList := make([]bvh.BoundedVolume, len(sc.Instances))
	for index, inst := range sc.Instances {
		volList[index] = bvh.NewItem(index, sc.BlasNodes[inst.BvhRoot].BBox())
	}

	nextInstance := uint32(0)
	reordered := make([]scene.Instance, 0, len(sc.Instances))
	sc.TlasNodes = bvh.Build(volList, minInstancesPerLeaf, func(node *scene.BvhNode, workList []bvh.BoundedVolume) {
		node.SetPrimitives(nextInstance, uint32(len(workList)))
		for _, workItem := range workList {
			reordered = append(reordered, sc.Instances[workItem.(*bvh.Item).Index])
			nextInstance++
		}
	}, bvh.SurfaceAreaHeuristic)
	sc.Instances = reordered

	if len(sc.TlasNodes) == 0 {
		return fmt.Errorf("compiler: top level build produced no nodes")
	}
	if err := checkDepth("top", sc.TlasNodes, 0); err != nil {
		sc.TlasNodes, sc.Instances = nil, nil
		return err
	}
	return nil
}

// Reject trees that would overflow the fixed size traversal stack.
func checkDepth(level string, nodes []scene.BvhNode, root uint32) error {
	if depth := scene.TreeDepth(nodes, root); depth > scene.MaxTraversalDepth {
		return fmt.Errorf("%w: %s level depth %d exceeds %d", ErrTreeTooDeep, level, depth, scene.MaxTraversalDepth)
	}
	return nil
}
