package tracer

import (
	"fmt"
	"time"

	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/tracer/device"
	"github.com/achilleasa/skylight/tracer/kernel"
)

// Default launch settings.
const (
	DefaultExposure   float32 = 1.0
	DefaultMaxBounces uint32  = 4
)

// Telemetry is a read-only snapshot of the launch state.
type Telemetry struct {
	FrameID     uint32
	AccumFrames uint32
	Camera      scene.Camera

	// Time between the last two refreshes.
	FrameTime time.Duration
}

func (t Telemetry) String() string {
	return fmt.Sprintf("frame %d, %d accumulated samples, camera %s", t.FrameID, t.AccumFrames, t.Camera)
}

// LaunchState tracks the camera and the progressive accumulation counters
// and produces the parameter block for each frame.
type LaunchState struct {
	camera scene.Camera

	// Launch dimensions; fixed when the state is created.
	width  uint32
	height uint32

	frameID     uint32
	accumFrames uint32
	dirty       bool

	exposure    float32
	maxBounces  uint32
	envSampling bool

	clock       func() time.Time
	lastRefresh time.Time
	approxDelta time.Duration
}

// Create a launch state for frames of the given dimensions using the
// default camera pose. The state starts dirty.
func NewLaunchState(width, height uint32) *LaunchState {
	return &LaunchState{
		camera:      scene.DefaultCamera(width, height),
		width:       width,
		height:      height,
		dirty:       true,
		exposure:    DefaultExposure,
		maxBounces:  DefaultMaxBounces,
		envSampling: true,
		clock:       time.Now,
	}
}

// SetClock replaces the time source used for scaling camera actions.
func (ls *LaunchState) SetClock(clock func() time.Time) {
	ls.clock = clock
	ls.lastRefresh = time.Time{}
	ls.approxDelta = 0
}

// SetExposure updates the exposure and restarts accumulation.
func (ls *LaunchState) SetExposure(exposure float32) {
	ls.exposure = exposure
	ls.MarkDirty()
}

// SetMaxBounces updates the path depth and restarts accumulation.
func (ls *LaunchState) SetMaxBounces(maxBounces uint32) {
	ls.maxBounces = maxBounces
	ls.MarkDirty()
}

// SetEnvSampling toggles environment importance sampling and restarts
// accumulation.
func (ls *LaunchState) SetEnvSampling(enabled bool) {
	ls.envSampling = enabled
	ls.MarkDirty()
}

// Camera returns the current camera pose.
func (ls *LaunchState) Camera() scene.Camera {
	return ls.camera
}

// SetCamera replaces the camera pose and restarts accumulation.
func (ls *LaunchState) SetCamera(cam scene.Camera) {
	ls.camera = cam
	ls.MarkDirty()
}

// ApplyAction moves the camera. The action magnitude is speed scaled by the
// time between the last two refreshes so that movement does not depend on
// the frame rate. Speed is in world units per second for translations and
// radians per second for rotations.
func (ls *LaunchState) ApplyAction(action scene.Action, speed float32) {
	inc := speed * float32(ls.approxDelta.Seconds())
	ls.camera = scene.ApplyAction(ls.camera, action, inc)
	ls.MarkDirty()
}

// Resize updates the camera aspect ratio for a viewport of the given
// dimensions and restarts accumulation. The launch dimensions do not change.
func (ls *LaunchState) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	ls.camera.Aspect = float32(width) / float32(height)
	ls.MarkDirty()
}

// MarkDirty flags that accumulated samples must be discarded.
func (ls *LaunchState) MarkDirty() {
	ls.dirty = true
}

// ConsumeDirty returns the dirty flag and clears it.
func (ls *LaunchState) ConsumeDirty() bool {
	dirty := ls.dirty
	ls.dirty = false
	return dirty
}

// Refresh advances the state by one frame and returns the parameter block
// for it. It must be called exactly once per frame.
func (ls *LaunchState) Refresh() kernel.LaunchParams {
	now := ls.clock()
	if !ls.lastRefresh.IsZero() {
		ls.approxDelta = now.Sub(ls.lastRefresh)
	}
	ls.lastRefresh = now

	basis := ls.camera.Basis()
	ls.frameID++

	dirty := ls.ConsumeDirty()
	if dirty {
		ls.accumFrames = 1
	} else {
		ls.accumFrames++
	}

	params := kernel.LaunchParams{
		Origin:      basis.Origin.Vec4(1),
		D00:         basis.D00.Vec4(0),
		Ddu:         basis.Ddu.Vec4(0),
		Ddv:         basis.Ddv.Vec4(0),
		FrameID:     ls.frameID,
		AccumFrames: ls.accumFrames,
		Width:       ls.width,
		Height:      ls.height,
		MaxBounces:  ls.maxBounces,
		Exposure:    ls.exposure,
	}
	if dirty {
		params.Dirty = 1
	}
	if ls.envSampling {
		params.EnvSampling = 1
	}
	return params
}

// Upload writes a parameter block to a device buffer.
func (ls *LaunchState) Upload(buf device.Buffer, params kernel.LaunchParams) error {
	if err := buf.Write([]kernel.LaunchParams{params}, 0); err != nil {
		return fmt.Errorf("tracer: could not upload launch parameters: %w", err)
	}
	return nil
}

// Telemetry returns a snapshot of the frame counters and camera pose.
func (ls *LaunchState) Telemetry() Telemetry {
	return Telemetry{
		FrameID:     ls.frameID,
		AccumFrames: ls.accumFrames,
		Camera:      ls.camera,
		FrameTime:   ls.approxDelta,
	}
}
