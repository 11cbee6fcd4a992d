package renderer

import (
	"fmt"
	"time"

	"github.com/achilleasa/skylight/asset/envmap"
	"github.com/achilleasa/skylight/asset/mesh"
	"github.com/achilleasa/skylight/log"
	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/tracer"
	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/tracer/interop"
	"github.com/achilleasa/skylight/types"
)

// The environment used when no environment map is specified.
var DefaultSkyColor = types.XYZ(0.5, 0.7, 1.0)

// Display presents accumulated frames.
type Display interface {
	// Present the frame buffer contents. It is called after the device has
	// finished writing the frame.
	Present(frame interop.Buffer, accumFrames uint32) error
}

// Driver owns the resources of a rendering session and runs the per-frame
// refresh, launch, synchronize and present sequence.
type Driver struct {
	logger log.Logger
	opts   Options

	rc        *tracer.RenderContext
	world     *tracer.World
	envLoader *envmap.Loader
	env       *tracer.Environment
	frame     interop.Buffer
	tracer    *tracer.Tracer
	state     *tracer.LaunchState
	display   Display

	stats SessionStats
}

// NewDriver sets up a rendering session that accumulates samples into frame.
// The driver takes ownership of frame and releases it on Close or when
// initialization fails. The display may be nil.
func NewDriver(opts Options, frame interop.Buffer, display Display) (*Driver, error) {
	d := &Driver{
		logger:  log.New("driver"),
		opts:    opts,
		frame:   frame,
		display: display,
	}

	if err := d.init(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Driver) init() error {
	opts := d.opts
	if err := opts.Validate(); err != nil {
		return err
	}
	if d.frame == nil {
		return fmt.Errorf("renderer: no frame buffer")
	}
	if d.frame.Width() != opts.FrameW || d.frame.Height() != opts.FrameH {
		return fmt.Errorf("%w: %dx%d != %dx%d", ErrFrameMismatch, d.frame.Width(), d.frame.Height(), opts.FrameW, opts.FrameH)
	}

	dev, err := device.Select(device.AllDevices, opts.Device, opts.Workers)
	if err != nil {
		return err
	}
	if d.rc, err = tracer.NewRenderContext(dev); err != nil {
		return err
	}
	d.stats.Device = dev.Name()

	src, err := d.sceneSource()
	if err != nil {
		return err
	}
	if d.world, err = tracer.BuildScene(d.rc, src); err != nil {
		return err
	}

	if d.env, err = d.loadEnvironment(); err != nil {
		return err
	}

	output, err := d.frame.Map(d.rc.Device)
	if err != nil {
		return err
	}
	if d.tracer, err = tracer.NewTracer(d.rc, d.world, d.env, output, opts.FrameW, opts.FrameH); err != nil {
		return err
	}

	d.state = tracer.NewLaunchState(opts.FrameW, opts.FrameH)
	d.state.SetExposure(opts.Exposure)
	d.state.SetMaxBounces(opts.MaxBounces)
	d.state.SetEnvSampling(opts.EnvSampling)
	return nil
}

func (d *Driver) sceneSource() (scene.Source, error) {
	if d.opts.MeshPath == "" {
		return scene.Procedural{Seed: d.opts.Seed}, nil
	}

	attrs, err := mesh.Load(d.opts.MeshPath)
	if err != nil {
		return nil, err
	}
	return scene.Imported{Mesh: attrs}, nil
}

// Load, sample and upload the environment. The loader is kept for the
// session so a cached image outlives the upload.
func (d *Driver) loadEnvironment() (*tracer.Environment, error) {
	var img *envmap.Image
	if d.opts.EnvMapPath == "" {
		d.logger.Noticef("no environment map specified; using a constant sky")
		img = envmap.NewConstantSky(DefaultSkyColor)
	} else {
		if d.envLoader == nil {
			d.envLoader = envmap.NewLoader(d.opts.CacheImages)
		}

		var err error
		if img, err = d.envLoader.Load(d.opts.EnvMapPath); err != nil {
			return nil, err
		}
	}

	table, err := envmap.BuildAliasTable(img)
	if err != nil {
		return nil, err
	}
	d.logger.Debugf("environment information:\n%s", envmap.Stats(img, table))

	return tracer.UploadEnvironment(d.rc, img, table, d.opts.CacheImages)
}

// State returns the launch state driving the session.
func (d *Driver) State() *tracer.LaunchState {
	return d.state
}

// Move applies a camera action. Speed is scaled by the configured camera
// speed which is read as world units per second for translations and
// radians per second for rotations.
func (d *Driver) Move(action scene.Action, speedScale float32) {
	d.state.ApplyAction(action, d.opts.Speed*speedScale)
}

// Resize adapts the camera to a new viewport size.
func (d *Driver) Resize(width, height uint32) {
	d.state.Resize(width, height)
	d.logger.Debugf("viewport resized to %dx%d", width, height)
}

// RenderFrame renders and presents a single frame.
func (d *Driver) RenderFrame() (FrameStats, error) {
	if d.tracer == nil {
		return FrameStats{}, ErrClosed
	}

	start := time.Now()
	params := d.state.Refresh()
	if err := d.state.Upload(d.tracer.ParamsBuffer(), params); err != nil {
		return FrameStats{}, err
	}

	kernelTime, err := d.tracer.Launch()
	if err != nil {
		return FrameStats{}, err
	}
	if err = d.rc.Device.Synchronize(); err != nil {
		return FrameStats{}, err
	}

	if d.display != nil {
		if err = d.display.Present(d.frame, params.AccumFrames); err != nil {
			return FrameStats{}, err
		}
	}

	fs := FrameStats{
		FrameID:     params.FrameID,
		AccumFrames: params.AccumFrames,
		KernelTime:  kernelTime,
		RenderTime:  time.Since(start),
	}
	d.stats.Append(fs)
	return fs, nil
}

// Run renders frames until shouldStop returns true. The stop flag is
// checked once before each frame.
func (d *Driver) Run(shouldStop func() bool) error {
	for !shouldStop() {
		fs, err := d.RenderFrame()
		if err != nil {
			return err
		}

		if d.opts.StatsEvery != 0 && fs.FrameID%d.opts.StatsEvery == 0 {
			d.logger.Infof("%s; last frame took %s", d.state.Telemetry(), fs.RenderTime)
		}
	}
	return nil
}

// Stats returns the session statistics.
func (d *Driver) Stats() SessionStats {
	return d.stats
}

// Close releases all session resources in reverse creation order.
func (d *Driver) Close() {
	if d.tracer != nil {
		d.tracer.Release()
		d.tracer = nil
	}
	if d.frame != nil {
		if err := d.frame.Release(); err != nil {
			d.logger.Warningf("could not release frame buffer: %v", err)
		}
		d.frame = nil
	}
	if d.env != nil {
		d.env.Release()
		d.env = nil
	}
	if d.envLoader != nil {
		d.envLoader.Release()
		d.envLoader = nil
	}
	if d.world != nil {
		d.world.Release()
		d.world = nil
	}
	if d.rc != nil {
		d.rc.Close()
		d.rc = nil
	}
}
