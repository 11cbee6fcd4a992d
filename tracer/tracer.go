package tracer

import (
	"fmt"
	"time"

	"github.com/achilleasa/skylight/log"
	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/tracer/kernel"
)

// Tracer launches the ray generation kernel over a world and environment
// and accumulates samples into an output buffer.
type Tracer struct {
	logger log.Logger

	rc     *RenderContext
	world  *World
	env    *Environment
	output device.Buffer
	width  uint32
	height uint32

	params device.Buffer
	rayGen device.Kernel
}

// NewTracer loads the ray generation kernel and allocates the launch
// parameter buffer. Output must hold width*height RGBA float texels.
func NewTracer(rc *RenderContext, world *World, env *Environment, output device.Buffer, width, height uint32) (*Tracer, error) {
	if world == nil || env == nil || output == nil {
		return nil, fmt.Errorf("tracer: a world, an environment and an output buffer are required")
	}
	if expSize := int(width*height) * 16; output.Size() < expSize {
		return nil, fmt.Errorf("tracer: output buffer %s: %w (%d) for a %dx%d frame", output.Name(), device.ErrBufferTooSmall, output.Size(), width, height)
	}

	tr := &Tracer{
		logger: log.New("tracer"),
		rc:     rc,
		world:  world,
		env:    env,
		output: output,
		width:  width,
		height: height,
		params: rc.Device.Buffer("launchParams"),
	}

	var err error
	if err = tr.params.Allocate(kernel.LaunchParamsSize); err != nil {
		tr.Release()
		return nil, err
	}
	if tr.rayGen, err = rc.Device.Kernel(kernel.RayGen); err != nil {
		tr.Release()
		return nil, err
	}
	return tr, nil
}

// ParamsBuffer returns the device buffer holding the launch parameters.
func (tr *Tracer) ParamsBuffer() device.Buffer {
	return tr.params
}

// Launch runs the ray generation kernel over the frame and waits for it to
// complete. The launch parameters must have been uploaded beforehand.
func (tr *Tracer) Launch() (time.Duration, error) {
	if err := tr.world.Validate(); err != nil {
		return 0, err
	}
	if tr.world.buffers == nil || tr.env.buffers == nil {
		return 0, fmt.Errorf("tracer: %w", device.ErrReleased)
	}

	// Scene buffers may have been reallocated by a rebuild so args are
	// bound before each launch.
	wb, eb := tr.world.buffers, tr.env.buffers
	err := tr.rayGen.SetArgs(
		tr.params,
		tr.output,
		wb.TlasNodes,
		wb.Instances,
		wb.BlasNodes,
		wb.Spheres,
		wb.Triangles,
		wb.Positions,
		wb.Normals,
		eb.Texels,
		eb.Pdf,
		eb.AliasPdf,
		eb.AliasIndex,
		tr.env.Width,
		tr.env.Height,
	)
	if err != nil {
		return 0, err
	}

	elapsed, err := tr.rayGen.Exec2D(int(tr.width), int(tr.height))
	if err != nil {
		return 0, err
	}
	return elapsed, nil
}

// Release the kernel and the parameter buffer.
func (tr *Tracer) Release() {
	if tr.rayGen != nil {
		tr.rayGen.Release()
		tr.rayGen = nil
	}
	if tr.params != nil {
		tr.params.Release()
		tr.params = nil
	}
}
