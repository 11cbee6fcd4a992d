package scene

import (
	"github.com/achilleasa/skylight/types"
)

// Action is a camera manipulation request.
type Action uint8

const (
	MoveUp Action = iota
	MoveDown
	MoveLeft
	MoveRight
	MoveForward
	MoveBackward
	RotateLeft
	RotateRight
	RotateUp
	RotateDown
)

var actionNames = [...]string{
	MoveUp:       "move up",
	MoveDown:     "move down",
	MoveLeft:     "move left",
	MoveRight:    "move right",
	MoveForward:  "move forward",
	MoveBackward: "move backward",
	RotateLeft:   "rotate left",
	RotateRight:  "rotate right",
	RotateUp:     "rotate up",
	RotateDown:   "rotate down",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown action"
}

// Rotations that would bring the view direction closer than this to the up
// axis are ignored.
const maxViewUpCos = 0.999

// ApplyAction returns a copy of cam with action applied. Translations move
// both the eye and the target by inc world units; rotations turn the view
// direction about the eye by inc radians.
func ApplyAction(cam Camera, action Action, inc float32) Camera {
	forward := cam.Forward()
	right := cam.Right()

	switch action {
	case MoveUp:
		cam.LookFrom[1] += inc
		cam.LookAt[1] += inc
	case MoveDown:
		cam.LookFrom[1] -= inc
		cam.LookAt[1] -= inc
	case MoveLeft:
		cam.LookFrom = cam.LookFrom.Sub(right.Mul(inc))
		cam.LookAt = cam.LookAt.Sub(right.Mul(inc))
	case MoveRight:
		cam.LookFrom = cam.LookFrom.Add(right.Mul(inc))
		cam.LookAt = cam.LookAt.Add(right.Mul(inc))
	case MoveForward:
		cam.LookFrom = cam.LookFrom.Add(forward.Mul(inc))
		cam.LookAt = cam.LookAt.Add(forward.Mul(inc))
	case MoveBackward:
		cam.LookFrom = cam.LookFrom.Sub(forward.Mul(inc))
		cam.LookAt = cam.LookAt.Sub(forward.Mul(inc))
	case RotateLeft:
		cam = pivot(cam, cam.Up, inc)
	case RotateRight:
		cam = pivot(cam, cam.Up, -inc)
	case RotateUp:
		cam = pivot(cam, right, inc)
	case RotateDown:
		cam = pivot(cam, right, -inc)
	}

	return cam
}

// Rotate the target around the eye.
func pivot(cam Camera, axis types.Vec3, angle float32) Camera {
	if axis.Len() == 0 {
		return cam
	}

	dir := cam.LookAt.Sub(cam.LookFrom)
	newDir := types.QuatFromAxisAngle(axis, angle).Rotate(dir)

	cosUp := newDir.Normalize().Dot(cam.Up.Normalize())
	if cosUp > maxViewUpCos || cosUp < -maxViewUpCos {
		return cam
	}

	cam.LookAt = cam.LookFrom.Add(newDir)
	return cam
}
