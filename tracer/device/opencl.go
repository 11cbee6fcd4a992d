//go:build opencl

package device

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// OpenCL wraps an opencl device together with the context, command queue
// and program that are created when the device is initialized.
type OpenCL struct {
	id       *cl.Device
	name     string
	devType  Type
	platform string

	ctx      *cl.Context
	cmdQueue *cl.CommandQueue
	program  *cl.Program
}

func (d *OpenCL) Name() string {
	return d.name
}

func (d *OpenCL) Type() Type {
	return d.devType
}

func (d *OpenCL) String() string {
	return fmt.Sprintf(
		"%s (%s, %d compute units @ %d Mhz, platform: %s)",
		d.name, d.devType, d.id.MaxComputeUnits(), d.id.MaxClockFrequency(), d.platform,
	)
}

func (d *OpenCL) Init() error {
	var err error

	// Already initialized
	if d.ctx != nil {
		return nil
	}

	d.ctx, err = cl.CreateContext([]*cl.Device{d.id})
	if err != nil {
		defer d.Close()
		return fmt.Errorf("opencl device (%s): could not create opencl context: %v", d.name, err)
	}

	d.cmdQueue, err = d.ctx.CreateCommandQueue(d.id, 0)
	if err != nil {
		defer d.Close()
		return fmt.Errorf("opencl device (%s): could not create command queue: %v", d.name, err)
	}

	registryMutex.Lock()
	src := programSource
	registryMutex.Unlock()
	if src == "" {
		defer d.Close()
		return fmt.Errorf("opencl device (%s): no kernel program source registered", d.name)
	}

	d.program, err = d.ctx.CreateProgramWithSource([]string{src})
	if err != nil {
		defer d.Close()
		return fmt.Errorf("opencl device (%s): could not create program: %v", d.name, err)
	}

	if err = d.program.BuildProgram([]*cl.Device{d.id}, "-cl-fast-relaxed-math"); err != nil {
		defer d.Close()
		if buildErr, ok := err.(cl.BuildError); ok {
			return fmt.Errorf("opencl device (%s): could not build kernel:\n%s", d.name, string(buildErr))
		}
		return fmt.Errorf("opencl device (%s): could not build kernel: %v", d.name, err)
	}

	return nil
}

func (d *OpenCL) Close() {
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}

	if d.cmdQueue != nil {
		d.cmdQueue.Release()
		d.cmdQueue = nil
	}

	if d.ctx != nil {
		d.ctx.Release()
		d.ctx = nil
	}
}

func (d *OpenCL) Buffer(name string) Buffer {
	return &clBuffer{
		device: d,
		name:   name,
	}
}

func (d *OpenCL) ImportBuffer(name string, data interface{}) (Buffer, error) {
	if d.ctx == nil {
		return nil, fmt.Errorf("opencl device (%s): could not import buffer %s: %w", d.name, name, ErrReleased)
	}

	dataPtr, dataLen, err := getSliceData(data)
	if err != nil {
		return nil, fmt.Errorf("opencl device (%s): could not import buffer %s: %w", d.name, name, err)
	}

	handle, err := d.ctx.CreateBufferUnsafe(cl.MemReadWrite|cl.MemUseHostPtr, dataLen, dataPtr)
	if err != nil {
		return nil, fmt.Errorf("opencl device (%s): could not import buffer %s of size %d: %v", d.name, name, dataLen, err)
	}

	return &clBuffer{
		device: d,
		name:   name,
		handle: handle,
		size:   dataLen,
	}, nil
}

func (d *OpenCL) Kernel(name string) (Kernel, error) {
	if d.program == nil {
		return nil, fmt.Errorf("opencl device (%s): could not load kernel %s: %w", d.name, name, ErrReleased)
	}

	handle, err := d.program.CreateKernel(name)
	if err != nil {
		return nil, fmt.Errorf("opencl device (%s): %w %q: %v", d.name, ErrUnknownKernel, name, err)
	}

	return &clKernel{
		device: d,
		name:   name,
		handle: handle,
	}, nil
}

func (d *OpenCL) Synchronize() error {
	if d.cmdQueue == nil {
		return fmt.Errorf("opencl device (%s): %w", d.name, ErrReleased)
	}
	if err := d.cmdQueue.Finish(); err != nil {
		return fmt.Errorf("opencl device (%s): could not wait for command queue: %v", d.name, err)
	}
	return nil
}

type clBuffer struct {
	device *OpenCL
	name   string
	handle *cl.MemObject
	size   int
}

func (b *clBuffer) Name() string {
	return b.name
}

func (b *clBuffer) Size() int {
	return b.size
}

func (b *clBuffer) Allocate(size int) error {
	var err error

	// If the buffer is already allocated release it
	b.Release()

	b.handle, err = b.device.ctx.CreateEmptyBuffer(cl.MemReadWrite, size)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not allocate buffer %s of size %d: %v", b.device.name, b.name, size, err)
	}
	b.size = size
	return nil
}

func (b *clBuffer) AllocateAndWrite(data interface{}) error {
	_, dataLen, err := getSliceData(data)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not allocate buffer %s: %w", b.device.name, b.name, err)
	}
	if err = b.Allocate(dataLen); err != nil {
		return err
	}
	return b.Write(data, 0)
}

func (b *clBuffer) Write(data interface{}, offset int) error {
	if b.handle == nil {
		return fmt.Errorf("opencl device (%s): could not write to buffer %s: %w", b.device.name, b.name, ErrReleased)
	}
	dataPtr, dataLen, err := getSliceData(data)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not write to buffer %s: %w", b.device.name, b.name, err)
	}
	if offset < 0 || offset+dataLen > b.size {
		return fmt.Errorf("opencl device (%s): %w (%d) in %s for copying data of length %d at offset %d", b.device.name, ErrBufferTooSmall, b.size, b.name, dataLen, offset)
	}

	ev, err := b.device.cmdQueue.EnqueueWriteBuffer(b.handle, true, offset, dataLen, dataPtr, nil)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not write data to buffer %s: %v", b.device.name, b.name, err)
	}
	ev.Release()
	return nil
}

func (b *clBuffer) Read(hostBuffer interface{}, offset int) error {
	if b.handle == nil {
		return fmt.Errorf("opencl device (%s): could not read from buffer %s: %w", b.device.name, b.name, ErrReleased)
	}
	dataPtr, dataLen, err := getSliceData(hostBuffer)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not read from buffer %s: %w", b.device.name, b.name, err)
	}
	if offset < 0 || offset+dataLen > b.size {
		return fmt.Errorf("opencl device (%s): %w (%d) in %s for reading %d bytes at offset %d", b.device.name, ErrBufferTooSmall, b.size, b.name, dataLen, offset)
	}

	ev, err := b.device.cmdQueue.EnqueueReadBuffer(b.handle, true, offset, dataLen, unsafe.Pointer(dataPtr), nil)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not read data from buffer %s: %v", b.device.name, b.name, err)
	}
	ev.Release()
	return nil
}

func (b *clBuffer) Release() {
	if b.handle != nil {
		b.handle.Release()
		b.handle = nil
		b.size = 0
	}
}

type clKernel struct {
	device *OpenCL
	name   string
	handle *cl.Kernel
}

func (k *clKernel) Name() string {
	return k.name
}

func (k *clKernel) SetArgs(args ...interface{}) error {
	var err error
	for argIndex, arg := range args {
		switch v := arg.(type) {
		case *clBuffer:
			err = k.handle.SetArgBuffer(argIndex, v.handle)
		case int32:
			err = k.handle.SetArgInt32(argIndex, v)
		case uint32:
			err = k.handle.SetArgUint32(argIndex, v)
		case float32:
			err = k.handle.SetArgFloat32(argIndex, v)
		default:
			return fmt.Errorf(
				"opencl device (%s): could not set arg %d for kernel %s; unsupported arg type: %T",
				k.device.name, argIndex, k.name, arg,
			)
		}

		if err != nil {
			return fmt.Errorf(
				"opencl device (%s): could not set arg %d for kernel %s: %v",
				k.device.name, argIndex, k.name, err,
			)
		}
	}
	return nil
}

func (k *clKernel) Exec2D(globalWorkSizeX, globalWorkSizeY int) (time.Duration, error) {
	if k.handle == nil {
		return 0, fmt.Errorf("opencl device (%s): kernel %s: %w", k.device.name, k.name, ErrReleased)
	}

	tick := time.Now()
	ev, err := k.device.cmdQueue.EnqueueNDRangeKernel(k.handle, nil, []int{globalWorkSizeX, globalWorkSizeY}, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("opencl device (%s): %w: %s: %v", k.device.name, ErrKernelFailed, k.name, err)
	}
	defer ev.Release()

	if err = k.device.cmdQueue.Finish(); err != nil {
		return 0, fmt.Errorf("opencl device (%s): %w: %s: %v", k.device.name, ErrKernelFailed, k.name, err)
	}
	return time.Since(tick), nil
}

func (k *clKernel) Release() {
	if k.handle != nil {
		k.handle.Release()
		k.handle = nil
	}
}

// Scan all opencl platforms and return their CPU and GPU devices.
func openclDevices() ([]Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("opencl: could not enumerate platforms: %v", err)
	}

	list := make([]Device, 0)
	for _, p := range platforms {
		for _, spec := range []struct {
			clType  cl.DeviceType
			devType Type
		}{
			{cl.DeviceTypeCPU, CpuDevice},
			{cl.DeviceTypeGPU, GpuDevice},
		} {
			devices, err := p.GetDevices(spec.clType)
			if err != nil {
				if err == cl.ErrDeviceNotFound {
					continue
				}
				return nil, fmt.Errorf("opencl: could not enumerate devices for platform %s: %v", p.Name(), err)
			}
			for _, d := range devices {
				list = append(list, &OpenCL{
					id:       d,
					name:     d.Name(),
					devType:  spec.devType,
					platform: p.Name(),
				})
			}
		}
	}
	return list, nil
}
