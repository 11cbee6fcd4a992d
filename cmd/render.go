package cmd

import (
	"github.com/achilleasa/skylight/renderer"
	"github.com/achilleasa/skylight/renderer/opengl"
	"github.com/urfave/cli"
)

// Flags shared by the render and frame commands.
func SessionFlags() []cli.Flag {
	defaults := renderer.DefaultOptions()
	return []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Value: int(defaults.FrameW),
			Usage: "frame width",
		},
		cli.IntFlag{
			Name:  "height",
			Value: int(defaults.FrameH),
			Usage: "frame height",
		},
		cli.Float64Flag{
			Name:  "exposure",
			Value: float64(defaults.Exposure),
			Usage: "camera exposure",
		},
		cli.IntFlag{
			Name:  "max-bounces",
			Value: int(defaults.MaxBounces),
			Usage: "max number of bounces before a path is terminated",
		},
		cli.BoolFlag{
			Name:  "no-env-sampling",
			Usage: "disable environment map importance sampling",
		},
		cli.Int64Flag{
			Name:  "seed",
			Usage: "seed for the procedural scene",
		},
		cli.StringFlag{
			Name:  "mesh",
			Usage: "wavefront .obj or compiled .zip mesh to render instead of the procedural scene",
		},
		cli.StringFlag{
			Name:  "envmap",
			Usage: "equirectangular environment map (local path or http(s) url)",
		},
		cli.BoolFlag{
			Name:  "cache-images",
			Usage: "keep decoded environment maps in memory",
		},
		cli.StringFlag{
			Name:  "device, d",
			Value: defaults.Device,
			Usage: `"host" or a case-insensitive filter for the compute device name`,
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "host device workers (0 = number of CPUs)",
		},
		cli.Float64Flag{
			Name:  "speed",
			Value: float64(defaults.Speed),
			Usage: "camera speed in world units (translation) or radians (rotation) per second",
		},
		cli.IntFlag{
			Name:  "stats-every",
			Value: int(defaults.StatsEvery),
			Usage: "log telemetry every N frames (0 to disable)",
		},
	}
}

func optionsFromContext(ctx *cli.Context) renderer.Options {
	return renderer.Options{
		FrameW:      uint32(ctx.Int("width")),
		FrameH:      uint32(ctx.Int("height")),
		Exposure:    float32(ctx.Float64("exposure")),
		MaxBounces:  uint32(ctx.Int("max-bounces")),
		EnvSampling: !ctx.Bool("no-env-sampling"),
		Seed:        ctx.Int64("seed"),
		MeshPath:    ctx.String("mesh"),
		EnvMapPath:  ctx.String("envmap"),
		CacheImages: ctx.Bool("cache-images"),
		Device:      ctx.String("device"),
		Workers:     ctx.Int("workers"),
		Speed:       float32(ctx.Float64("speed")),
		Frames:      uint32(ctx.Int("frames")),
		Out:         ctx.String("out"),
		StatsEvery:  uint32(ctx.Int("stats-every")),
	}
}

// Render an interactive view of the scene.
func RenderInteractive(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	r, err := opengl.NewInteractive(optionsFromContext(ctx))
	if err != nil {
		return err
	}
	defer r.Close()

	err = r.Render()
	displaySessionStats(r.Stats())
	return err
}

// Render a fixed number of frames and save the result to an image file.
func RenderFrame(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	r, err := renderer.NewHeadless(optionsFromContext(ctx))
	if err != nil {
		return err
	}
	defer r.Close()

	err = r.Render()
	displaySessionStats(r.Stats())
	return err
}

func displaySessionStats(stats renderer.SessionStats) {
	if stats.Frames == 0 {
		return
	}
	logger.Noticef("session statistics\n%s", stats.Table())
}
