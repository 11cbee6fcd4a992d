package cmd

import (
	"github.com/achilleasa/skylight/tracer/device"
	"github.com/urfave/cli"
)

// List available compute devices.
func ListDevices(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	list, err := device.List(ctx.Int("workers"))
	if err != nil {
		return err
	}

	logger.Noticef("system provides %d device(s):\n%s", len(list), device.Table(list))
	return nil
}
