package device

import (
	"errors"
	"fmt"
	"reflect"
	"time"
	"unsafe"
)

type Type uint8

// Supported device types.
const (
	HostDevice Type = 1 << iota
	CpuDevice
	GpuDevice
	OtherDevice
	AllDevices = 0xFF
)

func (dt Type) String() string {
	switch dt {
	case HostDevice:
		return "Host"
	case CpuDevice:
		return "CPU"
	case GpuDevice:
		return "GPU"
	case OtherDevice:
		return "Other"
	}
	return fmt.Sprintf("Type(%d)", uint8(dt))
}

var (
	ErrBufferTooSmall = errors.New("device: insufficient buffer space")
	ErrUnknownKernel  = errors.New("device: unknown kernel")
	ErrReleased       = errors.New("device: resource has been released")
	ErrKernelFailed   = errors.New("device: kernel execution failed")
	ErrNoDevice       = errors.New("device: no matching device found")
)

// Device is implemented by all compute backends.
type Device interface {
	// Device name.
	Name() string

	// Device type.
	Type() Type

	// Initialize the device and build its kernel program.
	Init() error

	// Release all device resources.
	Close()

	// Create an empty named buffer.
	Buffer(name string) Buffer

	// Wrap host memory as a device buffer without copying it. Data must
	// be a non-empty slice whose backing array outlives the buffer.
	ImportBuffer(name string, data interface{}) (Buffer, error)

	// Load a kernel by name.
	Kernel(name string) (Kernel, error)

	// Block until all queued work completes.
	Synchronize() error
}

// Buffer is a named block of device memory.
type Buffer interface {
	Name() string

	// Get allocated size in bytes.
	Size() int

	// Allocate a buffer with the given size. Any previous allocation
	// is released.
	Allocate(size int) error

	// Allocate a buffer large enough to hold data and copy data to it.
	AllocateAndWrite(data interface{}) error

	// Copy a slice to the buffer starting at the given byte offset.
	Write(data interface{}, offset int) error

	// Copy buffer contents starting at the given byte offset into the
	// supplied slice.
	Read(hostBuffer interface{}, offset int) error

	// Release buffer memory.
	Release()
}

// Kernel is a compute program that runs over a 2D grid.
type Kernel interface {
	Name() string

	// Bind kernel arguments. Supported argument types are Buffer, int32,
	// uint32 and float32.
	SetArgs(args ...interface{}) error

	// Run the kernel over a globalWorkSizeX x globalWorkSizeY grid and
	// wait for it to complete.
	Exec2D(globalWorkSizeX, globalWorkSizeY int) (time.Duration, error)

	// Release kernel resources.
	Release()
}

// Given an interface{} containing a slice return a pointer to its data and its length in bytes.
func getSliceData(data interface{}) (unsafe.Pointer, int, error) {
	reflVal := reflect.ValueOf(data)

	if reflVal.Kind() != reflect.Slice {
		return nil, 0, fmt.Errorf("device: expected a slice argument; got %T", data)
	}

	sliceElemCount := reflVal.Len()
	if sliceElemCount == 0 {
		return nil, 0, fmt.Errorf("device: supplied slice of %T is empty", data)
	}

	return unsafe.Pointer(reflVal.Index(0).Addr().Pointer()),
		sliceElemCount * int(reflVal.Type().Elem().Size()), nil
}
