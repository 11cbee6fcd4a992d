package renderer

import (
	"fmt"
	"math"
	"strings"

	"github.com/achilleasa/skylight/tracer"
	"github.com/achilleasa/skylight/tracer/device"
)

// Limits enforced by Options.Validate.
const (
	MaxFrameDimension uint32 = 16384
	MaxBounceLimit    uint32 = 64
)

// Default option values.
const (
	DefaultFrameW     uint32  = 1024
	DefaultFrameH     uint32  = 768
	DefaultSpeed      float32 = 2.0
	DefaultStatsEvery uint32  = 100
)

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Exposure applied to every sample.
	Exposure float32

	// Number of bounces before a path is terminated.
	MaxBounces uint32

	// Sample the environment map proportionally to its luminance.
	EnvSampling bool

	// Seed for the procedural scene generator.
	Seed int64

	// Scene inputs. An empty MeshPath selects the procedural scene and an
	// empty EnvMapPath selects a constant sky.
	MeshPath    string
	EnvMapPath  string
	CacheImages bool

	// Device selection; "host" selects the goroutine backend and any other
	// value is matched against compute device names.
	Device  string
	Workers int

	// Camera speed in world units (or radians) per second.
	Speed float32

	// Number of frames rendered by the headless renderer and the image
	// file it writes.
	Frames uint32
	Out    string

	// Log telemetry every StatsEvery frames; 0 disables it.
	StatsEvery uint32
}

// DefaultOptions returns the options used when no flags are specified.
func DefaultOptions() Options {
	return Options{
		FrameW:      DefaultFrameW,
		FrameH:      DefaultFrameH,
		Exposure:    tracer.DefaultExposure,
		MaxBounces:  tracer.DefaultMaxBounces,
		EnvSampling: true,
		Device:      device.HostDeviceName,
		Speed:       DefaultSpeed,
		Frames:      1,
		Out:         "frame.png",
		StatsEvery:  DefaultStatsEvery,
	}
}

// Validate checks that the options describe a renderable session.
func (opts Options) Validate() error {
	var problems []string
	if opts.FrameW == 0 || opts.FrameH == 0 || opts.FrameW > MaxFrameDimension || opts.FrameH > MaxFrameDimension {
		problems = append(problems, fmt.Sprintf("frame size %dx%d must be within [1, %d]", opts.FrameW, opts.FrameH, MaxFrameDimension))
	}
	if !(opts.Exposure > 0) || math.IsInf(float64(opts.Exposure), 0) {
		problems = append(problems, fmt.Sprintf("exposure %f must be a positive number", opts.Exposure))
	}
	if opts.MaxBounces > MaxBounceLimit {
		problems = append(problems, fmt.Sprintf("max bounces %d exceeds %d", opts.MaxBounces, MaxBounceLimit))
	}
	if opts.Workers < 0 {
		problems = append(problems, fmt.Sprintf("worker count %d must not be negative", opts.Workers))
	}
	if !(opts.Speed > 0) || math.IsInf(float64(opts.Speed), 0) {
		problems = append(problems, fmt.Sprintf("speed %f must be a positive number", opts.Speed))
	}

	if len(problems) != 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(problems, "; "))
	}
	return nil
}
