package kernel

import (
	"fmt"
	"math"

	"github.com/achilleasa/skylight/asset/envmap"
	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/types"
)

const (
	rayEpsilon  = 1e-3
	maxDistance = math.MaxFloat32
	invPi       = 1.0 / math.Pi
)

// Surface albedo used for imported meshes.
var meshAlbedo = types.XYZ(0.7, 0.7, 0.7)

func init() {
	device.RegisterHostKernel(RayGen, bindRayGen)
}

type ray struct {
	origin types.Vec3
	dir    types.Vec3
	invDir types.Vec3
}

func newRay(origin, dir types.Vec3) ray {
	return ray{
		origin: origin,
		dir:    dir,
		invDir: types.XYZ(1/dir[0], 1/dir[1], 1/dir[2]),
	}
}

type hit struct {
	t      float32
	normal types.Vec3
	albedo types.Vec3
}

// Scene data bound to a launch.
type sceneData struct {
	tlas      []scene.BvhNode
	instances []scene.Instance
	blas      []scene.BvhNode
	spheres   []scene.Sphere
	triangles []scene.Triangle
	positions []types.Vec4
	normals   []types.Vec4
}

// The host implementation of the RayGen kernel. Each work item traces one
// path through pixel (x, y) where y = 0 is the bottom row and adds the
// sample to the output buffer.
type rayGen struct {
	params LaunchParams
	output []types.Vec4
	scene  sceneData

	env         envmap.Image
	alias       envmap.AliasTable
	envSampling bool

	origin, d00, ddu, ddv types.Vec3
}

// Fetch a typed view of a buffer argument.
func bufferArg[T any](args []interface{}, index int) ([]T, error) {
	buf, ok := args[index].(device.Buffer)
	if !ok {
		return nil, fmt.Errorf("%s: expected a buffer for arg %d; got %T", RayGen, index, args[index])
	}
	return device.HostView[T](buf)
}

func uint32Arg(args []interface{}, index int) (uint32, error) {
	v, ok := args[index].(uint32)
	if !ok {
		return 0, fmt.Errorf("%s: expected a uint32 for arg %d; got %T", RayGen, index, args[index])
	}
	return v, nil
}

func bindRayGen(args []interface{}) (func(x, y int), error) {
	if len(args) != ArgCount {
		return nil, fmt.Errorf("%s: expected %d args; got %d", RayGen, ArgCount, len(args))
	}

	var (
		k      = &rayGen{}
		err    error
		params []LaunchParams
	)

	if params, err = bufferArg[LaunchParams](args, ArgParams); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("%s: launch parameter buffer is too small", RayGen)
	}
	k.params = params[0]

	if k.output, err = bufferArg[types.Vec4](args, ArgOutput); err != nil {
		return nil, err
	}
	if len(k.output) < int(k.params.Width*k.params.Height) {
		return nil, fmt.Errorf("%s: output buffer holds %d texels; need %dx%d", RayGen, len(k.output), k.params.Width, k.params.Height)
	}

	if k.scene.tlas, err = bufferArg[scene.BvhNode](args, ArgTlasNodes); err != nil {
		return nil, err
	}
	if k.scene.instances, err = bufferArg[scene.Instance](args, ArgInstances); err != nil {
		return nil, err
	}
	if k.scene.blas, err = bufferArg[scene.BvhNode](args, ArgBlasNodes); err != nil {
		return nil, err
	}
	if k.scene.spheres, err = bufferArg[scene.Sphere](args, ArgSpheres); err != nil {
		return nil, err
	}
	if k.scene.triangles, err = bufferArg[scene.Triangle](args, ArgTriangles); err != nil {
		return nil, err
	}
	if k.scene.positions, err = bufferArg[types.Vec4](args, ArgPositions); err != nil {
		return nil, err
	}
	if k.scene.normals, err = bufferArg[types.Vec4](args, ArgNormals); err != nil {
		return nil, err
	}

	if k.env.Texels, err = bufferArg[types.Vec4](args, ArgEnvTexels); err != nil {
		return nil, err
	}
	if k.alias.Pdf, err = bufferArg[float32](args, ArgEnvPdf); err != nil {
		return nil, err
	}
	if k.alias.AliasPdf, err = bufferArg[float32](args, ArgEnvAliasPdf); err != nil {
		return nil, err
	}
	if k.alias.AliasIndex, err = bufferArg[int32](args, ArgEnvAliasIndex); err != nil {
		return nil, err
	}

	envW, err := uint32Arg(args, ArgEnvWidth)
	if err != nil {
		return nil, err
	}
	envH, err := uint32Arg(args, ArgEnvHeight)
	if err != nil {
		return nil, err
	}
	texelCount := int(envW * envH)
	if texelCount == 0 || len(k.env.Texels) < texelCount {
		return nil, fmt.Errorf("%s: environment texture holds %d texels; need %dx%d", RayGen, len(k.env.Texels), envW, envH)
	}
	k.env.Width, k.env.Height = int(envW), int(envH)
	k.alias.Width, k.alias.Height = int(envW), int(envH)

	k.envSampling = k.params.EnvSampling != 0
	if k.envSampling {
		if len(k.alias.Pdf) < texelCount || len(k.alias.AliasPdf) < texelCount || len(k.alias.AliasIndex) < texelCount {
			return nil, fmt.Errorf("%s: environment alias table does not cover %dx%d texels", RayGen, envW, envH)
		}
		k.alias.Pdf = k.alias.Pdf[:texelCount]
		k.alias.AliasPdf = k.alias.AliasPdf[:texelCount]
		k.alias.AliasIndex = k.alias.AliasIndex[:texelCount]
	}

	k.origin = k.params.Origin.Vec3()
	k.d00 = k.params.D00.Vec3()
	k.ddu = k.params.Ddu.Vec3()
	k.ddv = k.params.Ddv.Vec3()

	return k.trace, nil
}

func (k *rayGen) trace(x, y int) {
	p := &k.params
	pixel := uint32(y)*p.Width + uint32(x)
	rnd := newRng(pixel, p.FrameID)

	u := (float32(x) + rnd.next()) / float32(p.Width)
	v := (float32(y) + rnd.next()) / float32(p.Height)
	r := newRay(k.origin, k.d00.Add(k.ddu.Mul(u)).Add(k.ddv.Mul(v)).Normalize())

	var radiance types.Vec3
	throughput := types.XYZ(1, 1, 1)

	// Density of the bounce that generated r; zero for camera rays.
	var bouncePdf float32

	for bounce := uint32(0); ; bounce++ {
		h, found := k.scene.intersect(&r, maxDistance, false)
		if !found {
			weight := float32(1)
			if bouncePdf > 0 && k.envSampling {
				weight = powerHeuristic(bouncePdf, k.alias.DirectionPdf(r.dir))
			}
			radiance = radiance.Add(throughput.MulVec(k.env.LookupDir(r.dir).Vec3()).Mul(weight))
			break
		}
		if bounce >= p.MaxBounces {
			break
		}

		origin := r.origin.Add(r.dir.Mul(h.t)).Add(h.normal.Mul(rayEpsilon))
		if k.envSampling {
			radiance = radiance.Add(throughput.MulVec(k.sampleEnvironment(origin, h.normal, h.albedo, &rnd)))
		}

		// For cosine weighted sampling brdf * cos / pdf reduces to the albedo
		dir, cosTheta := cosineSample(h.normal, rnd.next(), rnd.next())
		throughput = throughput.MulVec(h.albedo)
		if throughput.MaxComponent() <= 0 || cosTheta <= 0 {
			break
		}
		bouncePdf = cosTheta * invPi
		r = newRay(origin, dir)
	}

	sample := radiance.Mul(p.Exposure).Vec4(1)
	if p.AccumFrames <= 1 {
		k.output[pixel] = sample
	} else {
		k.output[pixel] = k.output[pixel].Add(sample)
	}
}

// Estimate direct lighting from the environment by importance sampling the
// alias table. Returns the MIS weighted contribution.
func (k *rayGen) sampleEnvironment(origin, normal, albedo types.Vec3, rnd *rng) types.Vec3 {
	index := k.alias.Sample(rnd.next(), rnd.next())
	dir := k.alias.Direction(index, rnd.next(), rnd.next())

	cosTheta := dir.Dot(normal)
	if cosTheta <= 0 {
		return types.Vec3{}
	}
	lightPdf := k.alias.DirectionPdf(dir)
	if lightPdf <= 0 {
		return types.Vec3{}
	}

	shadow := newRay(origin, dir)
	if _, occluded := k.scene.intersect(&shadow, maxDistance, true); occluded {
		return types.Vec3{}
	}

	weight := powerHeuristic(lightPdf, cosTheta*invPi)
	le := k.env.LookupDir(dir).Vec3()
	return albedo.MulVec(le).Mul(invPi * cosTheta * weight / lightPdf)
}

func powerHeuristic(pdf, otherPdf float32) float32 {
	a, b := pdf*pdf, otherPdf*otherPdf
	if a+b == 0 {
		return 0
	}
	return a / (a + b)
}

// Sample a cosine weighted direction in the hemisphere around n. Returns the
// direction and the cosine of its angle with n.
func cosineSample(n types.Vec3, u1, u2 float32) (types.Vec3, float32) {
	r := float32(math.Sqrt(float64(u1)))
	phi := 2 * math.Pi * float64(u2)
	lx := r * float32(math.Cos(phi))
	ly := r * float32(math.Sin(phi))
	lz := float32(math.Sqrt(math.Max(0, 1-float64(u1))))

	t := types.XYZ(1, 0, 0)
	if float32(math.Abs(float64(n[0]))) > 0.9 {
		t = types.XYZ(0, 1, 0)
	}
	b1 := n.Cross(t).Normalize()
	b2 := n.Cross(b1)

	return b1.Mul(lx).Add(b2.Mul(ly)).Add(n.Mul(lz)), lz
}

// Slab test against a node bounding box.
func hitsBox(r *ray, node *scene.BvhNode, tMax float32) bool {
	tNear, tFar := float32(0), tMax
	for axis := 0; axis < 3; axis++ {
		t0 := (node.Min[axis] - r.origin[axis]) * r.invDir[axis]
		t1 := (node.Max[axis] - r.origin[axis]) * r.invDir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tFar < tNear {
			return false
		}
	}
	return true
}

// Push the children of an inner node. The stack lives on a fixed array sized
// for trees the compiler accepts and only grows past it for deeper ones.
func pushChildren(stack []uint32, node *scene.BvhNode, nodeCount int) []uint32 {
	left, right := node.GetChildNodes()
	if int(left) < nodeCount {
		stack = append(stack, left)
	}
	if int(right) < nodeCount {
		stack = append(stack, right)
	}
	return stack
}

// Find the closest intersection closer than tMax. If anyHit is set the
// search stops at the first intersection.
func (sd *sceneData) intersect(r *ray, tMax float32, anyHit bool) (hit, bool) {
	closest := hit{t: tMax}
	if len(sd.tlas) == 0 {
		return closest, false
	}

	var (
		found   bool
		backing [scene.MaxTraversalDepth]uint32
		stack   = append(backing[:0], 0)
	)
	for len(stack) > 0 {
		node := &sd.tlas[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !hitsBox(r, node, closest.t) {
			continue
		}

		if !node.IsLeaf() {
			stack = pushChildren(stack, node, len(sd.tlas))
			continue
		}

		first, count := node.GetPrimitives()
		for index := first; index < first+count && int(index) < len(sd.instances); index++ {
			if sd.intersectInstance(r, &sd.instances[index], &closest, anyHit) {
				found = true
				if anyHit {
					return closest, true
				}
			}
		}
	}

	return closest, found
}

// Traverse the bottom level structure referenced by an instance.
func (sd *sceneData) intersectInstance(r *ray, inst *scene.Instance, closest *hit, anyHit bool) bool {
	if int(inst.BvhRoot) >= len(sd.blas) {
		return false
	}

	var (
		found   bool
		backing [scene.MaxTraversalDepth]uint32
		stack   = append(backing[:0], inst.BvhRoot)
	)
	for len(stack) > 0 {
		node := &sd.blas[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !hitsBox(r, node, closest.t) {
			continue
		}

		if !node.IsLeaf() {
			stack = pushChildren(stack, node, len(sd.blas))
			continue
		}

		first, count := node.GetPrimitives()
		for index := first; index < first+count; index++ {
			var hitPrim bool
			switch inst.Kind {
			case scene.SpherePrimitive:
				if int(index) < len(sd.spheres) {
					hitPrim = sd.intersectSphere(r, &sd.spheres[index], closest)
				}
			case scene.TrianglePrimitive:
				if int(index) < len(sd.triangles) {
					hitPrim = sd.intersectTriangle(r, &sd.triangles[index], closest)
				}
			}
			if hitPrim {
				found = true
				if anyHit {
					return true
				}
			}
		}
	}

	return found
}

// Sphere intersection is evaluated in double precision to cope with very
// large radii such as the ground sphere.
func (sd *sceneData) intersectSphere(r *ray, s *scene.Sphere, closest *hit) bool {
	ocX := float64(r.origin[0]) - float64(s.Center[0])
	ocY := float64(r.origin[1]) - float64(s.Center[1])
	ocZ := float64(r.origin[2]) - float64(s.Center[2])
	dX, dY, dZ := float64(r.dir[0]), float64(r.dir[1]), float64(r.dir[2])

	a := dX*dX + dY*dY + dZ*dZ
	b := ocX*dX + ocY*dY + ocZ*dZ
	c := ocX*ocX + ocY*ocY + ocZ*ocZ - float64(s.Radius)*float64(s.Radius)
	disc := b*b - a*c
	if disc < 0 {
		return false
	}

	sq := math.Sqrt(disc)
	t := (-b - sq) / a
	if t <= rayEpsilon || t >= float64(closest.t) {
		t = (-b + sq) / a
		if t <= rayEpsilon || t >= float64(closest.t) {
			return false
		}
	}

	closest.t = float32(t)
	closest.normal = types.XYZ(
		float32((ocX+t*dX)/float64(s.Radius)),
		float32((ocY+t*dY)/float64(s.Radius)),
		float32((ocZ+t*dZ)/float64(s.Radius)),
	)
	if closest.normal.Dot(r.dir) > 0 {
		closest.normal = closest.normal.Mul(-1)
	}
	closest.albedo = s.Albedo
	return true
}

// Moller-Trumbore ray/triangle intersection.
func (sd *sceneData) intersectTriangle(r *ray, tri *scene.Triangle, closest *hit) bool {
	for _, index := range tri.P {
		if index < 0 || int(index) >= len(sd.positions) {
			return false
		}
	}
	p0 := sd.positions[tri.P[0]].Vec3()
	e1 := sd.positions[tri.P[1]].Vec3().Sub(p0)
	e2 := sd.positions[tri.P[2]].Vec3().Sub(p0)

	pVec := r.dir.Cross(e2)
	det := e1.Dot(pVec)
	if det > -1e-8 && det < 1e-8 {
		return false
	}
	invDet := 1 / det

	tVec := r.origin.Sub(p0)
	u := tVec.Dot(pVec) * invDet
	if u < 0 || u > 1 {
		return false
	}
	qVec := tVec.Cross(e1)
	v := r.dir.Dot(qVec) * invDet
	if v < 0 || u+v > 1 {
		return false
	}
	t := e2.Dot(qVec) * invDet
	if t <= rayEpsilon || t >= closest.t {
		return false
	}

	closest.t = t
	closest.albedo = meshAlbedo
	closest.normal = sd.triangleNormal(tri, e1, e2, u, v)
	if closest.normal.Dot(r.dir) > 0 {
		closest.normal = closest.normal.Mul(-1)
	}
	return true
}

// Interpolate vertex normals if the triangle has them; otherwise use the
// geometric normal.
func (sd *sceneData) triangleNormal(tri *scene.Triangle, e1, e2 types.Vec3, u, v float32) types.Vec3 {
	for _, index := range tri.N {
		if index < 0 || int(index) >= len(sd.normals) {
			return e1.Cross(e2).Normalize()
		}
	}

	n := sd.normals[tri.N[0]].Vec3().Mul(1 - u - v).
		Add(sd.normals[tri.N[1]].Vec3().Mul(u)).
		Add(sd.normals[tri.N[2]].Vec3().Mul(v)).
		Normalize()
	if n == (types.Vec3{}) {
		return e1.Cross(e2).Normalize()
	}
	return n
}
