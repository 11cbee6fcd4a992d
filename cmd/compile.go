package cmd

import (
	"errors"
	"strings"

	"github.com/achilleasa/skylight/asset/envmap"
	"github.com/achilleasa/skylight/asset/mesh"
	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/scene/compiler"
	"github.com/urfave/cli"
)

// Compile wavefront meshes to the binary compressed format.
func CompileMesh(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	if ctx.NArg() == 0 {
		return errors.New("missing mesh file argument")
	}

	for idx := 0; idx < ctx.NArg(); idx++ {
		meshFile := ctx.Args().Get(idx)
		if !strings.HasSuffix(meshFile, ".obj") {
			logger.Warningf("skipping unsupported file %s", meshFile)
			continue
		}

		logger.Noticef("parsing mesh: %s", meshFile)
		attrs, err := mesh.Load(meshFile)
		if err != nil {
			return err
		}

		zipFile := strings.TrimSuffix(meshFile, ".obj") + ".zip"
		if err = mesh.Write(attrs, zipFile); err != nil {
			return err
		}
	}

	return nil
}

// Display compiled scene info for a mesh or the procedural scene.
func ShowSceneInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	var src scene.Source = scene.Procedural{Seed: ctx.Int64("seed")}
	if ctx.NArg() > 0 {
		attrs, err := mesh.Load(ctx.Args().First())
		if err != nil {
			return err
		}
		src = scene.Imported{Mesh: attrs}
	}

	sc, err := compiler.Compile(src)
	if err != nil {
		return err
	}

	logger.Noticef("scene information:\n%s", sc.Stats())
	return nil
}

// Display environment map and alias table info.
func ShowEnvMapInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return errors.New("missing environment map argument")
	}

	img, err := envmap.NewLoader(false).Load(ctx.Args().First())
	if err != nil {
		return err
	}
	table, err := envmap.BuildAliasTable(img)
	if err != nil {
		return err
	}

	logger.Noticef("environment map information:\n%s", envmap.Stats(img, table))
	return nil
}
