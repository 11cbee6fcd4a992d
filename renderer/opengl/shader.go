package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.4-core/gl"
)

// Full screen triangle strip generated from the vertex id.
const vertexShaderSource = `
#version 440 core

out vec2 uv;

void main() {
	vec2 pos = vec2(float(gl_VertexID & 1), float((gl_VertexID >> 1) & 1));
	uv = pos;
	gl_Position = vec4(pos * 2.0 - 1.0, 0.0, 1.0);
}
`

// Average the accumulated samples and apply display gamma.
const fragmentShaderSource = `
#version 440 core

uniform sampler2D frame;
uniform float num_samples;
uniform float inv_gamma;

in vec2 uv;
out vec4 color;

void main() {
	vec3 avg = texture(frame, uv).rgb / max(num_samples, 1.0);
	color = vec4(pow(clamp(avg, 0.0, 1.0), vec3(inv_gamma)), 1.0);
}
`

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(src + "\x00")
	defer free()
	gl.ShaderSource(shader, 1, csources, nil)
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("opengl: could not compile shader: %s", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

// Compile and link the frame display program.
func newDisplayProgram() (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertexShader)

	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragmentShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(program, logLen, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("opengl: could not link display program: %s", strings.TrimRight(log, "\x00"))
	}
	return program, nil
}
