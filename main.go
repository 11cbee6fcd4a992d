package main

import (
	"os"

	"github.com/achilleasa/skylight/cmd"
	"github.com/achilleasa/skylight/log"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "skylight"
	app.Usage = "interactive progressive path tracer"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, notice, warning, error); overrides -v and -vv",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render interactive view of the scene",
			Description: `
Open a window and keep refining the frame until the window is closed.

Use W/A/S/D to move, Q/E to move up or down and the arrow keys to look
around. Hold shift to double the camera speed and press escape to quit.`,
			Flags:  cmd.SessionFlags(),
			Action: cmd.RenderInteractive,
		},
		{
			Name:        "frame",
			Usage:       "render a still frame",
			Description: `Accumulate a number of frames and write the result to a png file.`,
			Flags: append(cmd.SessionFlags(),
				cli.IntFlag{
					Name:  "frames",
					Value: 16,
					Usage: "number of frames to accumulate",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			),
			Action: cmd.RenderFrame,
		},
		{
			Name:  "compile",
			Usage: "compile wavefront meshes into a binary compressed format",
			Description: `
Parse a mesh from a wavefront obj file and write its attributes to a zip
archive which can be supplied to the --mesh flag of the render commands.`,
			ArgsUsage: "mesh_file1.obj mesh_file2.obj ...",
			Action:    cmd.CompileMesh,
		},
		{
			Name:      "scene-info",
			Usage:     "print compiled scene statistics",
			ArgsUsage: "[mesh_file]",
			Flags: []cli.Flag{
				cli.Int64Flag{
					Name:  "seed",
					Usage: "seed for the procedural scene",
				},
			},
			Action: cmd.ShowSceneInfo,
		},
		{
			Name:      "envmap-info",
			Usage:     "print environment map and importance sampling statistics",
			ArgsUsage: "envmap_file",
			Action:    cmd.ShowEnvMapInfo,
		},
		{
			Name:  "list-devices",
			Usage: "list available compute devices",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "workers",
					Usage: "host device workers (0 = number of CPUs)",
				},
			},
			Action: cmd.ListDevices,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New("skylight").Error(err)
		os.Exit(1)
	}
}
