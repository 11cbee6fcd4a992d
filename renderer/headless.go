package renderer

import (
	"fmt"
	"image/png"
	"os"

	"github.com/achilleasa/skylight/tracer/interop"
)

// A renderer that accumulates a fixed number of frames into host memory and
// writes the result to an image file.
type headlessRenderer struct {
	*Driver

	frame *interop.HostBuffer
	out   string
}

// NewHeadless creates a renderer for opts.Frames frames that writes a PNG
// image to opts.Out.
func NewHeadless(opts Options) (Renderer, error) {
	if opts.Frames == 0 {
		return nil, ErrNoFrames
	}
	if opts.Out == "" {
		return nil, fmt.Errorf("%w: no output file specified", ErrInvalidOptions)
	}

	frame := interop.NewHostBuffer(opts.FrameW, opts.FrameH)
	d, err := NewDriver(opts, frame, nil)
	if err != nil {
		return nil, err
	}

	return &headlessRenderer{
		Driver: d,
		frame:  frame,
		out:    opts.Out,
	}, nil
}

func (r *headlessRenderer) Render() error {
	var rendered uint32
	err := r.Run(func() bool {
		if rendered == r.opts.Frames {
			return true
		}
		rendered++
		return false
	})
	if err != nil {
		return err
	}

	return r.save()
}

func (r *headlessRenderer) save() error {
	img := interop.Resolve(r.frame.Pixels(), int(r.frame.Width()), int(r.frame.Height()))

	f, err := os.Create(r.out)
	if err != nil {
		return fmt.Errorf("renderer: could not create output file: %w", err)
	}
	defer f.Close()

	if err = png.Encode(f, img); err != nil {
		return fmt.Errorf("renderer: could not encode frame: %w", err)
	}

	r.logger.Noticef("wrote %dx%d frame with %d accumulated samples to %s", img.Bounds().Dx(), img.Bounds().Dy(), r.stats.Last.AccumFrames, r.out)
	return nil
}
