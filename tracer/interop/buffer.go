package interop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/types"
)

var ErrAlreadyReleased = errors.New("interop: buffer already released")

// Buffer is a RGBA float frame buffer shared between a compute device and
// the display. Each texel holds the running sum of the samples accumulated
// for a pixel; row 0 is the bottom row of the frame.
type Buffer interface {
	// Frame dimensions.
	Width() uint32
	Height() uint32

	// Map wraps the buffer memory as a device buffer. The buffer is mapped
	// once; subsequent calls return the same device buffer.
	Map(dev device.Device) (device.Buffer, error)

	// Pixels returns the host view of the buffer memory.
	Pixels() []types.Vec4

	// Release unmaps the buffer and frees its memory.
	Release() error
}

// HostBuffer is a Buffer backed by host memory. It is used by the headless
// renderer.
type HostBuffer struct {
	mutex    sync.Mutex
	width    uint32
	height   uint32
	pixels   []types.Vec4
	mapped   device.Buffer
	released bool
}

// Allocate a host buffer for a frame with the given dimensions.
func NewHostBuffer(width, height uint32) *HostBuffer {
	return &HostBuffer{
		width:  width,
		height: height,
		pixels: make([]types.Vec4, width*height),
	}
}

func (b *HostBuffer) Width() uint32 {
	return b.width
}

func (b *HostBuffer) Height() uint32 {
	return b.height
}

func (b *HostBuffer) Map(dev device.Device) (device.Buffer, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.released {
		return nil, ErrAlreadyReleased
	}
	if b.mapped != nil {
		return b.mapped, nil
	}

	buf, err := dev.ImportBuffer("interop frame", b.pixels)
	if err != nil {
		return nil, fmt.Errorf("interop: could not map %dx%d frame buffer: %w", b.width, b.height, err)
	}
	b.mapped = buf
	return buf, nil
}

func (b *HostBuffer) Pixels() []types.Vec4 {
	return b.pixels
}

func (b *HostBuffer) Release() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.released {
		return ErrAlreadyReleased
	}
	if b.mapped != nil {
		b.mapped.Release()
		b.mapped = nil
	}
	b.pixels = nil
	b.released = true
	return nil
}
