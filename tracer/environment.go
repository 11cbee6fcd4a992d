package tracer

import (
	"fmt"

	"github.com/achilleasa/skylight/asset/envmap"
	"github.com/achilleasa/skylight/log"
	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/types"
)

// Device buffers holding the environment texture and its alias table.
type envBuffers struct {
	Texels     device.Buffer
	Pdf        device.Buffer
	AliasPdf   device.Buffer
	AliasIndex device.Buffer
}

// Environment is an environment map and alias table uploaded to a device.
type Environment struct {
	Width  uint32
	Height uint32

	// Host copies; only retained when the image cache is enabled.
	Image *envmap.Image
	Table *envmap.AliasTable

	buffers *envBuffers
}

// UploadEnvironment copies the environment texture and its alias table to
// the render context device. When keepHost is set the environment retains
// img and table. Otherwise the alias table arrays are released once the
// transfer completes and img is left untouched since a loader cache may
// still hold it.
func UploadEnvironment(rc *RenderContext, img *envmap.Image, table *envmap.AliasTable, keepHost bool) (*Environment, error) {
	if img == nil || table == nil {
		return nil, envmap.ErrNoImage
	}
	if table.Width != img.Width || table.Height != img.Height {
		return nil, fmt.Errorf("tracer: alias table dimensions %dx%d do not match environment map dimensions %dx%d", table.Width, table.Height, img.Width, img.Height)
	}

	env := &Environment{
		Width:  uint32(img.Width),
		Height: uint32(img.Height),
		buffers: &envBuffers{
			Texels:     rc.Device.Buffer("envTexels"),
			Pdf:        rc.Device.Buffer("envPdf"),
			AliasPdf:   rc.Device.Buffer("envAliasPdf"),
			AliasIndex: rc.Device.Buffer("envAliasIndex"),
		},
	}

	for _, spec := range []struct {
		buf  device.Buffer
		data interface{}
	}{
		{env.buffers.Texels, img.Texels},
		{env.buffers.Pdf, table.Pdf},
		{env.buffers.AliasPdf, table.AliasPdf},
		{env.buffers.AliasIndex, table.AliasIndex},
	} {
		if err := spec.buf.AllocateAndWrite(spec.data); err != nil {
			env.Release()
			return nil, fmt.Errorf("tracer: could not upload environment buffer %s: %w", spec.buf.Name(), err)
		}
	}

	log.New("environment").Infof(
		"uploaded %dx%d environment map and alias table (%s)",
		img.Width, img.Height, types.FmtSize(img.Texels, table.Pdf, table.AliasPdf, table.AliasIndex),
	)

	if keepHost {
		env.Image, env.Table = img, table
	} else {
		table.Pdf, table.AliasPdf, table.AliasIndex = nil, nil, nil
	}
	return env, nil
}

// Size returns the device memory used by the environment.
func (env *Environment) Size() int {
	if env.buffers == nil {
		return 0
	}
	return bufferSetSize(env.buffers)
}

// Release all device buffers.
func (env *Environment) Release() {
	if env.buffers != nil {
		releaseBuffers(env.buffers)
		env.buffers = nil
	}
	env.Image, env.Table = nil, nil
}
