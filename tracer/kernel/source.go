package kernel

import (
	_ "embed"

	"github.com/achilleasa/skylight/tracer/device"
)

// Source contains the OpenCL C implementation of the kernels in this
// package. It is registered with the device package so that compute
// devices can build it when they are initialized.
//
//go:embed pathtrace.cl
var Source string

func init() {
	device.RegisterProgramSource(Source)
}
