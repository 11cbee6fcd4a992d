package tracer

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/skylight/log"
	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/scene/compiler"
	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/types"
)

var ErrStaleTopLevel = errors.New("tracer: top level acceleration structure references a rebuilt bottom level structure")

// Device buffers holding the scene geometry and acceleration structures.
type sceneBuffers struct {
	TlasNodes device.Buffer
	Instances device.Buffer
	BlasNodes device.Buffer
	Spheres   device.Buffer
	Triangles device.Buffer
	Positions device.Buffer
	Normals   device.Buffer
}

func newSceneBuffers(dev device.Device) *sceneBuffers {
	return &sceneBuffers{
		TlasNodes: dev.Buffer("tlasNodes"),
		Instances: dev.Buffer("instances"),
		BlasNodes: dev.Buffer("blasNodes"),
		Spheres:   dev.Buffer("spheres"),
		Triangles: dev.Buffer("triangles"),
		Positions: dev.Buffer("positions"),
		Normals:   dev.Buffer("normals"),
	}
}

// World is a compiled scene whose geometry and acceleration structures have
// been uploaded to a device.
type World struct {
	logger  log.Logger
	Scene   *scene.Scene
	buffers *sceneBuffers

	// Set when the bottom level structure has been rebuilt and the top
	// level structure still references the old one.
	staleTopLevel bool
}

// BuildScene compiles src and uploads the result to the render context
// device. Any buffers allocated before a failure are released.
func BuildScene(rc *RenderContext, src scene.Source) (*World, error) {
	sc, err := compiler.Compile(src)
	if err != nil {
		return nil, err
	}

	w := &World{
		logger:  log.New("world"),
		Scene:   sc,
		buffers: newSceneBuffers(rc.Device),
	}

	start := time.Now()
	if err = w.uploadBottomLevel(); err != nil {
		w.Release()
		return nil, err
	}
	if err = w.uploadTopLevel(); err != nil {
		w.Release()
		return nil, err
	}

	w.logger.Infof(
		"uploaded %d %s primitives and %d+%d bvh nodes (%s) in %d ms",
		sc.PrimitiveCount(), sc.Kind(), len(sc.BlasNodes), len(sc.TlasNodes),
		types.FmtSize(sc.BlasNodes, sc.TlasNodes, sc.Instances, sc.Spheres, sc.Triangles, sc.Positions, sc.Normals),
		time.Since(start).Nanoseconds()/1e6,
	)
	return w, nil
}

func (w *World) uploadBottomLevel() error {
	sc := w.Scene
	for _, spec := range []struct {
		buf  device.Buffer
		data interface{}
	}{
		{w.buffers.BlasNodes, sc.BlasNodes},
		{w.buffers.Spheres, sc.Spheres},
		{w.buffers.Triangles, sc.Triangles},
		{w.buffers.Positions, sc.Positions},
		{w.buffers.Normals, sc.Normals},
	} {
		if err := uploadSlice(spec.buf, spec.data); err != nil {
			return fmt.Errorf("tracer: could not upload scene buffer %s: %w", spec.buf.Name(), err)
		}
	}
	return nil
}

func (w *World) uploadTopLevel() error {
	sc := w.Scene
	if len(sc.TlasNodes) == 0 || len(sc.Instances) == 0 {
		return fmt.Errorf("tracer: %w", compiler.ErrNoBottomLevel)
	}

	if err := uploadSlice(w.buffers.TlasNodes, sc.TlasNodes); err != nil {
		return fmt.Errorf("tracer: could not upload scene buffer %s: %w", w.buffers.TlasNodes.Name(), err)
	}
	if err := uploadSlice(w.buffers.Instances, sc.Instances); err != nil {
		return fmt.Errorf("tracer: could not upload scene buffer %s: %w", w.buffers.Instances.Name(), err)
	}
	return nil
}

// RebuildBottomLevel rebuilds and uploads the bottom level structure. The
// top level structure becomes stale until BuildTopLevel is called.
func (w *World) RebuildBottomLevel() error {
	// Keep the top level records so the stale structure still describes
	// what is on the device.
	tlas, instances := w.Scene.TlasNodes, w.Scene.Instances
	if err := compiler.BuildBottomLevel(w.Scene); err != nil {
		return err
	}
	w.Scene.TlasNodes, w.Scene.Instances = tlas, instances
	w.staleTopLevel = true

	if err := w.uploadBottomLevel(); err != nil {
		return err
	}
	w.logger.Debugf("rebuilt bottom level structure with %d nodes", len(w.Scene.BlasNodes))
	return nil
}

// BuildTopLevel rebuilds and uploads the top level structure.
func (w *World) BuildTopLevel() error {
	if err := compiler.BuildTopLevel(w.Scene); err != nil {
		return err
	}
	if err := w.uploadTopLevel(); err != nil {
		return err
	}
	w.staleTopLevel = false
	return nil
}

// Validate returns ErrStaleTopLevel if the top level structure needs to be
// rebuilt before tracing.
func (w *World) Validate() error {
	if w.staleTopLevel {
		return ErrStaleTopLevel
	}
	return nil
}

// Size returns the total device memory used by the world.
func (w *World) Size() int {
	if w.buffers == nil {
		return 0
	}
	return bufferSetSize(w.buffers)
}

// Release all device buffers.
func (w *World) Release() {
	if w.buffers != nil {
		releaseBuffers(w.buffers)
		w.buffers = nil
	}
}
