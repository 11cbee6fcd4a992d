package scene

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/achilleasa/skylight/types"
)

func approxEq(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func TestGenerateSpheres(t *testing.T) {
	spheres := GenerateSpheres(0)
	if len(spheres) != 488 {
		t.Fatalf("expected 488 spheres; got %d", len(spheres))
	}

	ground := spheres[0]
	if ground.Center != types.XYZ(0, -1000, -1) || ground.Radius != 1000 || ground.Albedo != types.XYZ(0.2, 0.2, 0.2) {
		t.Fatalf("expected ground sphere as first entry; got %+v", ground)
	}

	features := []Sphere{
		NewSphere(types.XYZ(0, 1, 0), 1, types.XYZ(0.8, 0.3, 0.3)),
		NewSphere(types.XYZ(-4, 1, 0), 1, types.XYZ(0.8, 0.3, 0.3)),
		NewSphere(types.XYZ(4, 1, 0), 1, types.XYZ(0.7, 0.6, 0.5)),
	}
	if !reflect.DeepEqual(spheres[485:], features) {
		t.Fatalf("expected feature spheres at the end; got %+v", spheres[485:])
	}

	for index, s := range spheres[1:485] {
		if s.Radius != 0.2 || s.Center[1] != 0.2 {
			t.Fatalf("[sphere %d] expected small sphere resting on the ground; got %+v", index+1, s)
		}
		for c := 0; c < 3; c++ {
			if s.Albedo[c] < 0 || s.Albedo[c] >= 1 {
				t.Fatalf("[sphere %d] expected albedo in [0, 1); got %v", index+1, s.Albedo)
			}
		}
	}

	// Spheres are laid out on a jittered grid
	first := spheres[1]
	if first.Center[0] < -11 || first.Center[0] >= -10 || first.Center[2] < -11 || first.Center[2] >= -10 {
		t.Fatalf("expected first grid sphere in cell (-11, -11); got %v", first.Center)
	}

	if !reflect.DeepEqual(GenerateSpheres(0), spheres) {
		t.Fatal("expected generator to be deterministic for the same seed")
	}
	if reflect.DeepEqual(GenerateSpheres(1), spheres) {
		t.Fatal("expected different seeds to produce different layouts")
	}
}

func TestCameraBasis(t *testing.T) {
	specs := []struct {
		w, h uint32
	}{
		{1024, 768},
		{64, 32},
		{300, 600},
	}

	for index, spec := range specs {
		cam := DefaultCamera(spec.w, spec.h)
		basis := cam.Basis()

		aspect := float32(spec.w) / float32(spec.h)
		if !approxEq(basis.Ddu.Len(), DefaultCosFovY*aspect, 1e-5) {
			t.Fatalf("[spec %d] expected |ddu| = %f; got %f", index, DefaultCosFovY*aspect, basis.Ddu.Len())
		}
		if !approxEq(basis.Ddv.Len(), DefaultCosFovY, 1e-5) {
			t.Fatalf("[spec %d] expected |ddv| = %f; got %f", index, DefaultCosFovY, basis.Ddv.Len())
		}

		dir := cam.LookAt.Sub(cam.LookFrom).Normalize()
		if !approxEq(basis.Ddu.Dot(basis.Ddv), 0, 1e-5) || !approxEq(basis.Ddu.Dot(dir), 0, 1e-5) || !approxEq(basis.Ddv.Dot(dir), 0, 1e-5) {
			t.Fatalf("[spec %d] expected an orthogonal basis; got %+v", index, basis)
		}

		// The frame center must look at the target
		center := basis.D00.Add(basis.Ddu.Mul(0.5)).Add(basis.Ddv.Mul(0.5))
		if center.Sub(dir).Len() > 1e-5 {
			t.Fatalf("[spec %d] expected frame center ray %v to match view direction %v", index, center, dir)
		}

		// Ddv points up and Ddu points right
		if basis.Ddv[1] <= 0 {
			t.Fatalf("[spec %d] expected ddv to point up; got %v", index, basis.Ddv)
		}
		if basis.Origin != cam.LookFrom {
			t.Fatalf("[spec %d] expected basis origin to be the eye position", index)
		}
	}
}

func TestTranslationActions(t *testing.T) {
	cam := Camera{
		LookFrom: types.XYZ(0, 1, 0),
		LookAt:   types.XYZ(0, 0, -1),
		Up:       types.XYZ(0, 1, 0),
		CosFovY:  DefaultCosFovY,
		Aspect:   1,
	}

	specs := []struct {
		action Action
		delta  types.Vec3
	}{
		{MoveUp, types.XYZ(0, 2, 0)},
		{MoveDown, types.XYZ(0, -2, 0)},
		{MoveLeft, types.XYZ(-2, 0, 0)},
		{MoveRight, types.XYZ(2, 0, 0)},
		{MoveForward, types.XYZ(0, 0, -2)},
		{MoveBackward, types.XYZ(0, 0, 2)},
	}

	for _, spec := range specs {
		out := ApplyAction(cam, spec.action, 2)
		if out.LookFrom.Sub(cam.LookFrom).Sub(spec.delta).Len() > 1e-5 {
			t.Fatalf("[%s] expected eye to move by %v; got %v", spec.action, spec.delta, out.LookFrom.Sub(cam.LookFrom))
		}
		if out.LookAt.Sub(cam.LookAt).Sub(spec.delta).Len() > 1e-5 {
			t.Fatalf("[%s] expected target to move by %v; got %v", spec.action, spec.delta, out.LookAt.Sub(cam.LookAt))
		}
	}
}

func TestRotationActions(t *testing.T) {
	cam := Camera{
		LookFrom: types.XYZ(0, 0, 0),
		LookAt:   types.XYZ(0, 0, -2),
		Up:       types.XYZ(0, 1, 0),
		CosFovY:  DefaultCosFovY,
		Aspect:   1,
	}

	specs := []struct {
		action Action
		expDir types.Vec3
	}{
		{RotateLeft, types.XYZ(-1, 0, 0)},
		{RotateRight, types.XYZ(1, 0, 0)},
		{RotateUp, types.XYZ(0, 1, -1).Normalize()},
		{RotateDown, types.XYZ(0, -1, -1).Normalize()},
	}

	for _, spec := range specs {
		angle := float32(math.Pi / 2)
		if spec.action == RotateUp || spec.action == RotateDown {
			angle = math.Pi / 4
		}

		out := ApplyAction(cam, spec.action, angle)
		if out.LookFrom != cam.LookFrom {
			t.Fatalf("[%s] expected eye position to remain unchanged; got %v", spec.action, out.LookFrom)
		}

		dir := out.LookAt.Sub(out.LookFrom)
		if !approxEq(dir.Len(), 2, 1e-5) {
			t.Fatalf("[%s] expected eye-target distance to be preserved; got %f", spec.action, dir.Len())
		}
		if dir.Normalize().Sub(spec.expDir).Len() > 1e-5 {
			t.Fatalf("[%s] expected view direction %v; got %v", spec.action, spec.expDir, dir.Normalize())
		}
	}

	// Rotating into the up axis is ignored
	out := ApplyAction(cam, RotateUp, math.Pi/2)
	if out != cam {
		t.Fatalf("expected rotation onto the up axis to be ignored; got %v", out)
	}
}

func TestBvhNodeAccessors(t *testing.T) {
	var node BvhNode
	node.SetPrimitives(12, 3)
	if !node.IsLeaf() {
		t.Fatal("expected node to be a leaf")
	}
	if first, count := node.GetPrimitives(); first != 12 || count != 3 {
		t.Fatalf("expected primitives (12, 3); got (%d, %d)", first, count)
	}
	node.OffsetChildNodes(10)
	if first, _ := node.GetPrimitives(); first != 12 {
		t.Fatalf("expected leaf to ignore offsets; got first index %d", first)
	}

	node.SetChildNodes(1, 4)
	node.OffsetChildNodes(10)
	if left, right := node.GetChildNodes(); node.IsLeaf() || left != 11 || right != 14 {
		t.Fatalf("expected inner node with children (11, 14); got (%d, %d)", left, right)
	}
}

func TestSceneStats(t *testing.T) {
	sc := &Scene{
		Spheres:   GenerateSpheres(0),
		BlasNodes: make([]BvhNode, 10),
		TlasNodes: make([]BvhNode, 1),
		Instances: make([]Instance, 1),
	}
	stats := sc.Stats()
	for _, exp := range []string{"Spheres", "488", "BLAS nodes", "Total"} {
		if !strings.Contains(stats, exp) {
			t.Fatalf("expected stats to contain %q; got\n%s", exp, stats)
		}
	}
	if sc.Kind() != SpherePrimitive || sc.PrimitiveCount() != 488 {
		t.Fatalf("expected a sphere scene with 488 primitives; got %s scene with %d", sc.Kind(), sc.PrimitiveCount())
	}
}

func TestTreeDepth(t *testing.T) {
	nodes := make([]BvhNode, 5)
	nodes[0].SetChildNodes(1, 2)
	nodes[1].SetPrimitives(0, 1)
	nodes[2].SetChildNodes(3, 4)
	nodes[3].SetPrimitives(1, 1)
	nodes[4].SetPrimitives(2, 1)

	specs := []struct {
		nodes    []BvhNode
		root     uint32
		expDepth int
	}{
		{nil, 0, 0},
		{nodes, 0, 3},
		{nodes, 2, 2},
		{nodes, 4, 1},
		{nodes, 5, 0},
		// Out of range children are ignored
		{nodes[:3], 0, 2},
	}

	for index, spec := range specs {
		if depth := TreeDepth(spec.nodes, spec.root); depth != spec.expDepth {
			t.Fatalf("[spec %d] expected depth %d; got %d", index, spec.expDepth, depth)
		}
	}
}
