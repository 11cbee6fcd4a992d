package kernel

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"unsafe"

	"github.com/achilleasa/skylight/asset/envmap"
	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/scene/compiler"
	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/types"
)

var skyColor = types.XYZ(0.5, 0.7, 1.0)

type testLaunch struct {
	dev     *device.Host
	kernel  device.Kernel
	params  device.Buffer
	output  device.Buffer
	buffers []device.Buffer
}

func (tl *testLaunch) Close() {
	tl.kernel.Release()
	for _, buf := range tl.buffers {
		buf.Release()
	}
	tl.dev.Close()
}

// Upload a scene and environment and bind them to a raygen kernel.
func setupLaunch(t *testing.T, sc *scene.Scene, env *envmap.Image, width, height int) *testLaunch {
	table, err := envmap.BuildAliasTable(env)
	if err != nil {
		t.Fatal(err)
	}

	tl := &testLaunch{dev: device.NewHost(4)}
	if err = tl.dev.Init(); err != nil {
		t.Fatal(err)
	}

	upload := func(name string, data interface{}, minSize int) device.Buffer {
		buf := tl.dev.Buffer(name)
		tl.buffers = append(tl.buffers, buf)
		if err := buf.AllocateAndWrite(data); err != nil {
			// Empty arrays get a placeholder allocation
			if err = buf.Allocate(minSize); err != nil {
				t.Fatal(err)
			}
		}
		return buf
	}

	tl.params = upload("params", make([]LaunchParams, 1), LaunchParamsSize)
	tl.output = upload("output", make([]types.Vec4, width*height), 16)

	tl.kernel, err = tl.dev.Kernel(RayGen)
	if err != nil {
		t.Fatal(err)
	}
	err = tl.kernel.SetArgs(
		tl.params,
		tl.output,
		upload("tlas", sc.TlasNodes, 16),
		upload("instances", sc.Instances, 16),
		upload("blas", sc.BlasNodes, 16),
		upload("spheres", sc.Spheres, 16),
		upload("triangles", sc.Triangles, 16),
		upload("positions", sc.Positions, 16),
		upload("normals", sc.Normals, 16),
		upload("envTexels", env.Texels, 16),
		upload("envPdf", table.Pdf, 16),
		upload("envAliasPdf", table.AliasPdf, 16),
		upload("envAliasIndex", table.AliasIndex, 16),
		uint32(env.Width),
		uint32(env.Height),
	)
	if err != nil {
		t.Fatal(err)
	}
	return tl
}

func (tl *testLaunch) run(t *testing.T, params LaunchParams) []types.Vec4 {
	if err := tl.params.Write([]LaunchParams{params}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := tl.kernel.Exec2D(int(params.Width), int(params.Height)); err != nil {
		t.Fatal(err)
	}

	out := make([]types.Vec4, params.Width*params.Height)
	if err := tl.output.Read(out, 0); err != nil {
		t.Fatal(err)
	}
	return out
}

func launchParams(cam scene.Camera, width, height uint32) LaunchParams {
	basis := cam.Basis()
	return LaunchParams{
		Origin:      basis.Origin.Vec4(1),
		D00:         basis.D00.Vec4(0),
		Ddu:         basis.Ddu.Vec4(0),
		Ddv:         basis.Ddv.Vec4(0),
		FrameID:     1,
		AccumFrames: 1,
		Width:       width,
		Height:      height,
		MaxBounces:  4,
		EnvSampling: 1,
		Exposure:    1,
	}
}

func approxEqual(a, b, tolerance float32) bool {
	return float32(math.Abs(float64(a-b))) <= tolerance
}

func TestLaunchParamsLayout(t *testing.T) {
	if LaunchParamsSize != 96 {
		t.Fatalf("expected launch params to take 96 bytes; got %d", LaunchParamsSize)
	}
	if offset := unsafe.Offsetof(LaunchParams{}.FrameID); offset != 64 {
		t.Fatalf("expected FrameID at offset 64; got %d", offset)
	}
	if offset := unsafe.Offsetof(LaunchParams{}.Height); offset != 80 {
		t.Fatalf("expected Height at offset 80; got %d", offset)
	}
}

func TestAccumulationOverwriteAndAdd(t *testing.T) {
	width, height := 8, 4
	tl := setupLaunch(t, &scene.Scene{}, envmap.NewConstantSky(skyColor), width, height)
	defer tl.Close()

	// Fill the output with garbage; the first accumulated frame must overwrite it
	garbage := make([]types.Vec4, width*height)
	for i := range garbage {
		garbage[i] = types.XYZW(99, 99, 99, 99)
	}
	if err := tl.output.Write(garbage, 0); err != nil {
		t.Fatal(err)
	}

	params := launchParams(scene.DefaultCamera(uint32(width), uint32(height)), uint32(width), uint32(height))
	specs := []struct {
		accumFrames uint32
		expScale    float32
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{1, 1},
	}

	for index, spec := range specs {
		params.FrameID = uint32(index + 1)
		params.AccumFrames = spec.accumFrames
		out := tl.run(t, params)

		for pixel, texel := range out {
			for ch := 0; ch < 3; ch++ {
				if !approxEqual(texel[ch], skyColor[ch]*spec.expScale, 1e-4) {
					t.Fatalf("[spec %d] expected pixel %d channel %d to be %f; got %f", index, pixel, ch, skyColor[ch]*spec.expScale, texel[ch])
				}
			}
			if texel[3] != spec.expScale {
				t.Fatalf("[spec %d] expected pixel %d alpha to equal the accumulated frame count %f; got %f", index, pixel, spec.expScale, texel[3])
			}
		}
	}
}

func TestExposureScalesSamples(t *testing.T) {
	tl := setupLaunch(t, &scene.Scene{}, envmap.NewConstantSky(skyColor), 4, 4)
	defer tl.Close()

	params := launchParams(scene.DefaultCamera(4, 4), 4, 4)
	params.Exposure = 2
	out := tl.run(t, params)
	if !approxEqual(out[0][2], 2*skyColor[2], 1e-4) {
		t.Fatalf("expected exposure to scale the sample to %f; got %f", 2*skyColor[2], out[0][2])
	}
}

func TestDiffuseSphereUnderUniformSky(t *testing.T) {
	albedo := types.XYZ(0.5, 0.5, 0.5)
	sc := &scene.Scene{
		Spheres: []scene.Sphere{
			scene.NewSphere(types.XYZ(0, -100, 0), 100, albedo),
		},
	}
	if err := compiler.BuildBottomLevel(sc); err != nil {
		t.Fatal(err)
	}
	if err := compiler.BuildTopLevel(sc); err != nil {
		t.Fatal(err)
	}

	width, height := 16, 16
	tl := setupLaunch(t, sc, envmap.NewConstantSky(skyColor), width, height)
	defer tl.Close()

	// Look down at the top of the sphere so that every pixel hits it
	cam := scene.Camera{
		LookFrom: types.XYZ(0, 1, 0),
		LookAt:   types.XYZ(0, -1, -0.01),
		Up:       scene.DefaultUp,
		CosFovY:  scene.DefaultCosFovY,
		Aspect:   1,
	}
	params := launchParams(cam, uint32(width), uint32(height))

	frames := 8
	var out []types.Vec4
	for frame := 1; frame <= frames; frame++ {
		params.FrameID = uint32(frame)
		params.AccumFrames = uint32(frame)
		out = tl.run(t, params)
	}

	// A convex diffuse surface under a uniform sky reflects albedo * sky
	var sum types.Vec3
	for _, texel := range out {
		sum = sum.Add(texel.Vec3())
	}
	mean := sum.Mul(1 / float32(frames*width*height))
	exp := albedo.MulVec(skyColor)
	for ch := 0; ch < 3; ch++ {
		if !approxEqual(mean[ch], exp[ch], 0.05*exp[ch]) {
			t.Fatalf("expected mean radiance for channel %d to be close to %f; got %f", ch, exp[ch], mean[ch])
		}
	}
}

func TestBindErrors(t *testing.T) {
	tl := setupLaunch(t, &scene.Scene{}, envmap.NewConstantSky(skyColor), 4, 4)
	defer tl.Close()

	// Launch dimensions larger than the output buffer
	params := launchParams(scene.DefaultCamera(8, 8), 8, 8)
	if err := tl.params.Write([]LaunchParams{params}, 0); err != nil {
		t.Fatal(err)
	}
	_, err := tl.kernel.Exec2D(8, 8)
	if err == nil || !strings.Contains(err.Error(), "output buffer") {
		t.Fatalf("expected an output buffer size error; got %v", err)
	}

	// Wrong arg count
	if err = tl.kernel.SetArgs(tl.params); err != nil {
		t.Fatal(err)
	}
	if _, err = tl.kernel.Exec2D(4, 4); err == nil {
		t.Fatal("expected an error when binding too few args")
	}
}

func TestRngRange(t *testing.T) {
	seen := make(map[float32]bool)
	for pixel := uint32(0); pixel < 64; pixel++ {
		r := newRng(pixel, 1)
		for i := 0; i < 16; i++ {
			v := r.next()
			if v < 0 || v >= 1 {
				t.Fatalf("expected random value in [0, 1); got %f", v)
			}
			seen[v] = true
		}
	}
	if len(seen) < 1000 {
		t.Fatalf("expected mostly distinct random values; got %d unique values out of 1024", len(seen))
	}

	a, b := newRng(5, 1), newRng(5, 2)
	if a.next() == b.next() {
		t.Fatal("expected different frames to produce different sequences")
	}
}

func TestCosineSampleHemisphere(t *testing.T) {
	n := types.XYZ(0, 1, 0)
	r := newRng(1, 1)
	for i := 0; i < 256; i++ {
		dir, cosTheta := cosineSample(n, r.next(), r.next())
		if !approxEqual(dir.Len(), 1, 1e-4) {
			t.Fatalf("expected unit direction; got length %f", dir.Len())
		}
		if cosTheta < 0 || !approxEqual(dir.Dot(n), cosTheta, 1e-4) {
			t.Fatalf("expected cos theta %f to match dot product %f", cosTheta, dir.Dot(n))
		}
	}
}

func TestProgramSourceEmbedded(t *testing.T) {
	if !strings.Contains(Source, "__kernel void raygen(") {
		t.Fatal("expected embedded program source to define the raygen kernel")
	}

	define := fmt.Sprintf("#define MAX_TRAVERSAL_DEPTH %d\n", scene.MaxTraversalDepth)
	if !strings.Contains(Source, define) {
		t.Fatalf("expected embedded program source to contain %q", define)
	}
}

// A comb shaped tree leaves one pending leaf on the stack per level so its
// traversal needs more room than the fixed stack provides.
func combTree(levels int, bbox [2]types.Vec3) []scene.BvhNode {
	nodes := make([]scene.BvhNode, 2*levels+1)
	for level := 0; level < levels; level++ {
		nodes[2*level].SetChildNodes(uint32(2*level+1), uint32(2*level+2))
		nodes[2*level+1].SetPrimitives(0, 0)
	}
	nodes[2*levels].SetPrimitives(0, 1)
	for index := range nodes {
		nodes[index].SetBBox(bbox)
	}
	return nodes
}

func TestTraversalBeyondFixedStack(t *testing.T) {
	bbox := [2]types.Vec3{types.XYZ(-10, -10, -10), types.XYZ(10, 10, 10)}
	blas := combTree(2*scene.MaxTraversalDepth, bbox)
	if depth := scene.TreeDepth(blas, 0); depth <= scene.MaxTraversalDepth {
		t.Fatalf("expected test tree depth to exceed %d; got %d", scene.MaxTraversalDepth, depth)
	}

	var tlas scene.BvhNode
	tlas.SetBBox(bbox)
	tlas.SetPrimitives(0, 1)

	sd := &sceneData{
		tlas:      []scene.BvhNode{tlas},
		instances: []scene.Instance{{BvhRoot: 0, Kind: scene.SpherePrimitive, PrimitiveCount: 1}},
		blas:      blas,
		spheres:   []scene.Sphere{scene.NewSphere(types.XYZ(0, 0, 0), 1, skyColor)},
	}

	r := newRay(types.XYZ(0, 0, -5), types.XYZ(0, 0, 1))
	closest, found := sd.intersect(&r, maxDistance, false)
	if !found {
		t.Fatal("expected ray to hit the sphere stored in the deepest leaf")
	}
	if !approxEqual(closest.t, 4, 1e-3) {
		t.Fatalf("expected hit distance 4; got %f", closest.t)
	}
}
