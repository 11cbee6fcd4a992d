package renderer

import "errors"

var (
	ErrInvalidOptions = errors.New("renderer: invalid options")
	ErrFrameMismatch  = errors.New("renderer: frame buffer dimensions do not match the requested frame size")
	ErrNoFrames       = errors.New("renderer: at least one frame must be rendered")
	ErrClosed         = errors.New("renderer: driver closed")
)
