package opengl

import (
	"fmt"
	"runtime"

	"github.com/achilleasa/skylight/log"
	"github.com/achilleasa/skylight/renderer"
	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/tracer/interop"
	"github.com/go-gl/gl/v4.4-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// glfw event handling must run on the main thread.
	runtime.LockOSThread()
}

// Keys that move the camera while held down.
var keyActions = map[glfw.Key]scene.Action{
	glfw.KeyW:     scene.MoveForward,
	glfw.KeyS:     scene.MoveBackward,
	glfw.KeyA:     scene.MoveLeft,
	glfw.KeyD:     scene.MoveRight,
	glfw.KeyQ:     scene.MoveUp,
	glfw.KeyE:     scene.MoveDown,
	glfw.KeyLeft:  scene.RotateLeft,
	glfw.KeyRight: scene.RotateRight,
	glfw.KeyUp:    scene.RotateUp,
	glfw.KeyDown:  scene.RotateDown,
}

// An interactive renderer that displays the accumulated frame in a glfw
// window.
type interactiveRenderer struct {
	*renderer.Driver

	logger log.Logger
	window *glfw.Window

	// opengl handles
	program        uint32
	vao            uint32
	texture        uint32
	numSamplesLoc  int32
	pixelBuffer    *PixelBuffer
	glfwTerminated bool
}

// NewInteractive opens a window and creates a renderer that keeps refining
// the frame until the window is closed.
func NewInteractive(opts renderer.Options) (renderer.Renderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r := &interactiveRenderer{
		logger: log.New("interactive renderer"),
	}

	if err := r.initGL(opts); err != nil {
		r.Close()
		return nil, err
	}

	pb, err := NewPixelBuffer(opts.FrameW, opts.FrameH)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.pixelBuffer = pb

	if r.Driver, err = renderer.NewDriver(opts, pb, r); err != nil {
		r.pixelBuffer = nil
		r.Close()
		return nil, err
	}

	r.window.SetKeyCallback(r.onKeyEvent)
	r.window.SetFramebufferSizeCallback(r.onResize)
	return r, nil
}

func (r *interactiveRenderer) initGL(opts renderer.Options) error {
	var err error
	if err = glfw.Init(); err != nil {
		return fmt.Errorf("opengl: failed to initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 4)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	r.window, err = glfw.CreateWindow(int(opts.FrameW), int(opts.FrameH), "skylight", nil, nil)
	if err != nil {
		return fmt.Errorf("opengl: could not create window: %w", err)
	}
	r.window.MakeContextCurrent()
	glfw.SwapInterval(0)

	if err = gl.Init(); err != nil {
		return fmt.Errorf("opengl: could not init opengl: %w", err)
	}
	r.logger.Infof("using opengl %s", gl.GoStr(gl.GetString(gl.VERSION)))

	if r.program, err = newDisplayProgram(); err != nil {
		return err
	}
	gl.UseProgram(r.program)
	gl.Uniform1i(gl.GetUniformLocation(r.program, gl.Str("frame\x00")), 0)
	gl.Uniform1f(gl.GetUniformLocation(r.program, gl.Str("inv_gamma\x00")), float32(1.0/interop.DisplayGamma))
	r.numSamplesLoc = gl.GetUniformLocation(r.program, gl.Str("num_samples\x00"))

	// The quad is generated in the vertex shader but core profiles still
	// require a bound vertex array.
	gl.GenVertexArrays(1, &r.vao)

	// Setup texture for the accumulated samples
	gl.GenTextures(1, &r.texture)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, int32(opts.FrameW), int32(opts.FrameH), 0, gl.RGBA, gl.FLOAT, nil)

	fbW, fbH := r.window.GetFramebufferSize()
	gl.Viewport(0, 0, int32(fbW), int32(fbH))
	return nil
}

// Present copies the pixel buffer to the display texture and draws it.
func (r *interactiveRenderer) Present(frame interop.Buffer, accumFrames uint32) error {
	pb, ok := frame.(*PixelBuffer)
	if !ok {
		return fmt.Errorf("opengl: unsupported frame buffer type %T", frame)
	}

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	pb.Upload()

	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(r.program)
	gl.Uniform1f(r.numSamplesLoc, float32(accumFrames))
	gl.BindVertexArray(r.vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)

	r.window.SwapBuffers()
	return nil
}

func (r *interactiveRenderer) Render() error {
	return r.Run(func() bool {
		glfw.PollEvents()
		r.applyHeldKeys()
		return r.window.ShouldClose()
	})
}

// Apply camera actions for every held movement key. Shift doubles speed.
func (r *interactiveRenderer) applyHeldKeys() {
	var speedScale float32 = 1.0
	if r.window.GetKey(glfw.KeyLeftShift) == glfw.Press || r.window.GetKey(glfw.KeyRightShift) == glfw.Press {
		speedScale = 2.0
	}

	for key, action := range keyActions {
		if r.window.GetKey(key) == glfw.Press {
			r.Move(action, speedScale)
		}
	}
}

func (r *interactiveRenderer) onKeyEvent(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
}

func (r *interactiveRenderer) onResize(w *glfw.Window, width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	if width > 0 && height > 0 {
		r.Resize(uint32(width), uint32(height))
	}
}

// Close releases the session and then the GL objects and window.
func (r *interactiveRenderer) Close() {
	if r.Driver != nil {
		r.Driver.Close()
		r.Driver = nil
		r.pixelBuffer = nil
	}
	if r.pixelBuffer != nil {
		r.pixelBuffer.Release()
		r.pixelBuffer = nil
	}
	if r.texture != 0 {
		gl.DeleteTextures(1, &r.texture)
		r.texture = 0
	}
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
		r.vao = 0
	}
	if r.program != 0 {
		gl.DeleteProgram(r.program)
		r.program = 0
	}
	if r.window != nil {
		r.window.Destroy()
		r.window = nil
	}
	if !r.glfwTerminated {
		glfw.Terminate()
		r.glfwTerminated = true
	}
}
