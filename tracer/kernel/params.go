package kernel

import (
	"fmt"
	"unsafe"

	"github.com/achilleasa/skylight/types"
)

// Name of the ray generation kernel.
const RayGen = "raygen"

// Argument slots for the RayGen kernel.
const (
	ArgParams = iota
	ArgOutput
	ArgTlasNodes
	ArgInstances
	ArgBlasNodes
	ArgSpheres
	ArgTriangles
	ArgPositions
	ArgNormals
	ArgEnvTexels
	ArgEnvPdf
	ArgEnvAliasPdf
	ArgEnvAliasIndex
	ArgEnvWidth
	ArgEnvHeight
	ArgCount
)

// LaunchParams is the per-frame parameter block read by the RayGen kernel.
// Its layout matches the launch_params struct in the kernel source; vectors
// are padded to 16 bytes.
type LaunchParams struct {
	Origin types.Vec4
	D00    types.Vec4
	Ddu    types.Vec4
	Ddv    types.Vec4

	FrameID     uint32
	AccumFrames uint32
	Dirty       uint32
	Width       uint32

	Height      uint32
	MaxBounces  uint32
	EnvSampling uint32
	Exposure    float32
}

// Size of the parameter block in bytes.
const LaunchParamsSize = int(unsafe.Sizeof(LaunchParams{}))

func (p LaunchParams) String() string {
	return fmt.Sprintf(
		"frame %d (%d accumulated, dirty: %t) %dx%d, %d bounces, env sampling: %t, exposure: %3.2f",
		p.FrameID, p.AccumFrames, p.Dirty != 0, p.Width, p.Height, p.MaxBounces, p.EnvSampling != 0, p.Exposure,
	)
}
