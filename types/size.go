package types

import (
	"fmt"
	"reflect"
)

// FmtSize sums the space used by a set of slices and returns a formatted
// value with the appropriate byte/kb/mb unit.
func FmtSize(items ...interface{}) string {
	var totalBytes float32 = 0.0
	for _, item := range items {
		v := reflect.ValueOf(item)
		if v.Kind() != reflect.Slice || v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(v.Type().Elem().Size()) * v.Len())
	}

	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
