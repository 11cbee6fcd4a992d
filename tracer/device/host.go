package device

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/achilleasa/skylight/log"
	"golang.org/x/sync/errgroup"
)

// Number of rows processed by a host worker in one go.
const hostRowsPerBlock = 4

// HostKernelFunc binds a set of kernel arguments and returns a function that
// processes a single work item. It is invoked once per launch; the returned
// function is called concurrently for each (x, y) in the launch grid.
type HostKernelFunc func(args []interface{}) (func(x, y int), error)

var (
	registryMutex sync.Mutex
	hostKernels   = map[string]HostKernelFunc{}
	programSource string
)

// Register a host implementation for a named kernel.
func RegisterHostKernel(name string, fn HostKernelFunc) {
	registryMutex.Lock()
	hostKernels[name] = fn
	registryMutex.Unlock()
}

// Register the source code for the kernel program built by compute devices.
func RegisterProgramSource(src string) {
	registryMutex.Lock()
	programSource = src
	registryMutex.Unlock()
}

func lookupHostKernel(name string) (HostKernelFunc, bool) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	fn, ok := hostKernels[name]
	return fn, ok
}

// Host is a device that runs kernels on the CPU using a pool of goroutines.
type Host struct {
	logger  log.Logger
	workers int

	mutex  sync.Mutex
	closed bool
}

// Create a host device that uses up to workers goroutines. If workers is
// <= 0 the number of CPUs is used.
func NewHost(workers int) *Host {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Host{
		logger:  log.New("host device"),
		workers: workers,
	}
}

func (d *Host) Name() string {
	return fmt.Sprintf("host (%d workers)", d.workers)
}

func (d *Host) Type() Type {
	return HostDevice
}

// Workers returns the size of the worker pool.
func (d *Host) Workers() int {
	return d.workers
}

func (d *Host) Init() error {
	d.mutex.Lock()
	d.closed = false
	d.mutex.Unlock()
	d.logger.Debugf("initialized with %d workers", d.workers)
	return nil
}

func (d *Host) Close() {
	d.mutex.Lock()
	d.closed = true
	d.mutex.Unlock()
}

func (d *Host) isClosed() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.closed
}

func (d *Host) Buffer(name string) Buffer {
	return &HostBuffer{
		device: d,
		name:   name,
	}
}

func (d *Host) ImportBuffer(name string, data interface{}) (Buffer, error) {
	dataPtr, dataLen, err := getSliceData(data)
	if err != nil {
		return nil, fmt.Errorf("host device: could not import buffer %s: %w", name, err)
	}

	return &HostBuffer{
		device:   d,
		name:     name,
		data:     unsafe.Slice((*byte)(dataPtr), dataLen),
		imported: true,
	}, nil
}

func (d *Host) Kernel(name string) (Kernel, error) {
	fn, ok := lookupHostKernel(name)
	if !ok {
		return nil, fmt.Errorf("host device: %w %q", ErrUnknownKernel, name)
	}
	return &HostKernel{
		device: d,
		name:   name,
		fn:     fn,
	}, nil
}

// Host kernels run synchronously so there is nothing to wait for.
func (d *Host) Synchronize() error {
	if d.isClosed() {
		return fmt.Errorf("host device: %w", ErrReleased)
	}
	return nil
}

// HostBuffer stores device data in host memory.
type HostBuffer struct {
	device *Host
	name   string
	data   []byte

	// Imported buffers alias memory owned by the caller.
	imported bool
	released bool
}

func (b *HostBuffer) Name() string {
	return b.name
}

func (b *HostBuffer) Size() int {
	return len(b.data)
}

func (b *HostBuffer) Allocate(size int) error {
	b.Release()
	b.data = make([]byte, size)
	b.imported = false
	b.released = false
	return nil
}

func (b *HostBuffer) AllocateAndWrite(data interface{}) error {
	_, dataLen, err := getSliceData(data)
	if err != nil {
		return fmt.Errorf("host device: could not allocate buffer %s: %w", b.name, err)
	}
	if err = b.Allocate(dataLen); err != nil {
		return err
	}
	return b.Write(data, 0)
}

func (b *HostBuffer) Write(data interface{}, offset int) error {
	if b.released {
		return fmt.Errorf("host device: could not write to buffer %s: %w", b.name, ErrReleased)
	}
	dataPtr, dataLen, err := getSliceData(data)
	if err != nil {
		return fmt.Errorf("host device: could not write to buffer %s: %w", b.name, err)
	}
	if offset < 0 || offset+dataLen > len(b.data) {
		return fmt.Errorf("host device: %w (%d) in %s for copying data of length %d at offset %d", ErrBufferTooSmall, len(b.data), b.name, dataLen, offset)
	}

	copy(b.data[offset:], unsafe.Slice((*byte)(dataPtr), dataLen))
	return nil
}

func (b *HostBuffer) Read(hostBuffer interface{}, offset int) error {
	if b.released {
		return fmt.Errorf("host device: could not read from buffer %s: %w", b.name, ErrReleased)
	}
	dataPtr, dataLen, err := getSliceData(hostBuffer)
	if err != nil {
		return fmt.Errorf("host device: could not read from buffer %s: %w", b.name, err)
	}
	if offset < 0 || offset+dataLen > len(b.data) {
		return fmt.Errorf("host device: %w (%d) in %s for reading %d bytes at offset %d", ErrBufferTooSmall, len(b.data), b.name, dataLen, offset)
	}

	copy(unsafe.Slice((*byte)(dataPtr), dataLen), b.data[offset:offset+dataLen])
	return nil
}

func (b *HostBuffer) Release() {
	b.data = nil
	b.released = true
}

// HostView returns a typed view of a host buffer's memory. Writes to the
// returned slice are visible to all users of the buffer.
func HostView[T any](buf Buffer) ([]T, error) {
	hb, ok := buf.(*HostBuffer)
	if !ok {
		return nil, fmt.Errorf("host device: buffer %s is not a host buffer", buf.Name())
	}
	if hb.released {
		return nil, fmt.Errorf("host device: buffer %s: %w", hb.name, ErrReleased)
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if len(hb.data) < elemSize {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&hb.data[0])), len(hb.data)/elemSize), nil
}

// HostKernel runs a registered Go kernel function over a 2D grid.
type HostKernel struct {
	device *Host
	name   string
	fn     HostKernelFunc
	args   []interface{}
}

func (k *HostKernel) Name() string {
	return k.name
}

func (k *HostKernel) SetArgs(args ...interface{}) error {
	for argIndex, arg := range args {
		switch arg.(type) {
		case *HostBuffer, int32, uint32, float32:
		default:
			return fmt.Errorf(
				"host device: could not set arg %d for kernel %s; unsupported arg type: %T",
				argIndex, k.name, arg,
			)
		}
	}
	k.args = append(k.args[:0], args...)
	return nil
}

func (k *HostKernel) Exec2D(globalWorkSizeX, globalWorkSizeY int) (elapsed time.Duration, err error) {
	if k.fn == nil || k.device.isClosed() {
		return 0, fmt.Errorf("host device: kernel %s: %w", k.name, ErrReleased)
	}

	tick := time.Now()

	// Recover panics raised while binding arguments
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host device: %w: %s: %v", ErrKernelFailed, k.name, r)
		}
	}()

	itemFn, err := k.fn(k.args)
	if err != nil {
		return 0, fmt.Errorf("host device: %w: %s: %v", ErrKernelFailed, k.name, err)
	}

	var group errgroup.Group
	group.SetLimit(k.device.workers)
	for y0 := 0; y0 < globalWorkSizeY; y0 += hostRowsPerBlock {
		y0 := y0
		group.Go(func() (blockErr error) {
			defer func() {
				if r := recover(); r != nil {
					blockErr = fmt.Errorf("host device: %w: %s: %v", ErrKernelFailed, k.name, r)
				}
			}()

			y1 := y0 + hostRowsPerBlock
			if y1 > globalWorkSizeY {
				y1 = globalWorkSizeY
			}
			for y := y0; y < y1; y++ {
				for x := 0; x < globalWorkSizeX; x++ {
					itemFn(x, y)
				}
			}
			return nil
		})
	}

	if err = group.Wait(); err != nil {
		return 0, err
	}
	return time.Since(tick), nil
}

func (k *HostKernel) Release() {
	k.fn = nil
	k.args = nil
}
