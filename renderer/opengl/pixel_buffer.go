package opengl

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/tracer/interop"
	"github.com/achilleasa/skylight/types"
	"github.com/go-gl/gl/v4.4-core/gl"
)

const pboMapFlags = gl.MAP_READ_BIT | gl.MAP_WRITE_BIT | gl.MAP_PERSISTENT_BIT | gl.MAP_COHERENT_BIT

// PixelBuffer is an interop.Buffer backed by an OpenGL pixel unpack buffer
// that stays mapped for its whole lifetime. The compute device writes
// samples straight into the mapped memory and the display copies the buffer
// to a texture without a round trip through Go memory.
//
// All methods must be called from the thread that owns the GL context.
type PixelBuffer struct {
	mutex  sync.Mutex
	width  uint32
	height uint32

	pbo    uint32
	pixels []types.Vec4
	mapped device.Buffer
}

// NewPixelBuffer allocates immutable RGBA32F storage for a frame and maps it
// persistently.
func NewPixelBuffer(width, height uint32) (*PixelBuffer, error) {
	pb := &PixelBuffer{
		width:  width,
		height: height,
	}

	size := int(width*height) * int(unsafe.Sizeof(types.Vec4{}))
	gl.GenBuffers(1, &pb.pbo)
	gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, pb.pbo)
	defer gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, 0)

	gl.BufferStorage(gl.PIXEL_UNPACK_BUFFER, size, nil, pboMapFlags)
	ptr := gl.MapBufferRange(gl.PIXEL_UNPACK_BUFFER, 0, size, pboMapFlags)
	if ptr == nil {
		gl.DeleteBuffers(1, &pb.pbo)
		return nil, fmt.Errorf("opengl: could not map %dx%d pixel buffer (gl error 0x%x)", width, height, gl.GetError())
	}

	pb.pixels = unsafe.Slice((*types.Vec4)(ptr), int(width*height))
	return pb, nil
}

func (pb *PixelBuffer) Width() uint32 {
	return pb.width
}

func (pb *PixelBuffer) Height() uint32 {
	return pb.height
}

// Map wraps the mapped memory as a device buffer. The memory is used in
// place by the device.
func (pb *PixelBuffer) Map(dev device.Device) (device.Buffer, error) {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()

	if pb.pbo == 0 {
		return nil, interop.ErrAlreadyReleased
	}
	if pb.mapped != nil {
		return pb.mapped, nil
	}

	buf, err := dev.ImportBuffer("gl pixel buffer", pb.pixels)
	if err != nil {
		return nil, fmt.Errorf("opengl: could not import pixel buffer: %w", err)
	}
	pb.mapped = buf
	return buf, nil
}

func (pb *PixelBuffer) Pixels() []types.Vec4 {
	return pb.pixels
}

// Upload copies the buffer contents to the level 0 image of the currently
// bound 2D texture.
func (pb *PixelBuffer) Upload() {
	gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, pb.pbo)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(pb.width), int32(pb.height), gl.RGBA, gl.FLOAT, gl.PtrOffset(0))
	gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, 0)
}

// Release unmaps and deletes the buffer.
func (pb *PixelBuffer) Release() error {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()

	if pb.pbo == 0 {
		return interop.ErrAlreadyReleased
	}
	if pb.mapped != nil {
		pb.mapped.Release()
		pb.mapped = nil
	}

	gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, pb.pbo)
	gl.UnmapBuffer(gl.PIXEL_UNPACK_BUFFER)
	gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, 0)
	gl.DeleteBuffers(1, &pb.pbo)

	pb.pbo = 0
	pb.pixels = nil
	return nil
}
