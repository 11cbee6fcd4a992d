package tracer

import (
	"fmt"

	"github.com/achilleasa/skylight/log"
	"github.com/achilleasa/skylight/tracer/device"
)

// RenderContext owns the compute device used by a rendering session. It is
// passed explicitly to the functions that allocate device resources.
type RenderContext struct {
	logger log.Logger
	Device device.Device
}

// Initialize dev and wrap it in a render context.
func NewRenderContext(dev device.Device) (*RenderContext, error) {
	if dev == nil {
		return nil, fmt.Errorf("tracer: invalid device handle")
	}

	if err := dev.Init(); err != nil {
		return nil, err
	}

	rc := &RenderContext{
		logger: log.New("render context"),
		Device: dev,
	}
	rc.logger.Infof("using device %s", dev.Name())
	return rc, nil
}

// Close releases the device.
func (rc *RenderContext) Close() {
	if rc.Device != nil {
		rc.Device.Close()
		rc.Device = nil
	}
}
