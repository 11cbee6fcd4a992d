package tracer

import (
	"reflect"

	"github.com/achilleasa/skylight/tracer/device"
)

// Size of the allocation used for empty scene arrays. Device buffers cannot
// be empty even when a kernel never reads them.
const placeholderBufferSize = 16

// Copy a slice to buf, reallocating it to fit. Empty slices get a
// placeholder allocation.
func uploadSlice(buf device.Buffer, data interface{}) error {
	if reflect.ValueOf(data).Len() == 0 {
		return buf.Allocate(placeholderBufferSize)
	}
	return buf.AllocateAndWrite(data)
}

// Release every device.Buffer field of the struct pointed to by set.
func releaseBuffers(set interface{}) {
	reflVal := reflect.ValueOf(set).Elem()
	for fieldIndex := 0; fieldIndex < reflVal.NumField(); fieldIndex++ {
		if buf, ok := reflVal.Field(fieldIndex).Interface().(device.Buffer); ok && buf != nil {
			buf.Release()
		}
	}
}

// Sum the allocated size of every device.Buffer field of the struct pointed
// to by set.
func bufferSetSize(set interface{}) int {
	var total int
	reflVal := reflect.ValueOf(set).Elem()
	for fieldIndex := 0; fieldIndex < reflVal.NumField(); fieldIndex++ {
		if buf, ok := reflVal.Field(fieldIndex).Interface().(device.Buffer); ok && buf != nil {
			total += buf.Size()
		}
	}
	return total
}
