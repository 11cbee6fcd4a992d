package mesh

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/skylight/asset"
	"github.com/achilleasa/skylight/log"
	"github.com/achilleasa/skylight/types"
)

type wavefrontReader struct {
	logger log.Logger

	attrs *Attributes

	// Number of faces that were split into two triangles.
	quads int

	// An error stack that provides additional error information when
	// mesh files include other files via "call".
	errStack []string
}

// Create a new wavefront mesh reader.
func newWavefrontReader() *wavefrontReader {
	return &wavefrontReader{
		logger:   log.New("wavefront reader"),
		attrs:    &Attributes{},
		errStack: make([]string, 0),
	}
}

// Read mesh attributes from a wavefront obj resource.
func (r *wavefrontReader) Read(res *asset.Resource) (*Attributes, error) {
	r.logger.Noticef(`parsing mesh from "%s"`, res.Path())
	start := time.Now()

	if err := r.parse(res); err != nil {
		return nil, err
	}

	if r.attrs.Name == "" {
		r.attrs.Name = res.Path()
	}

	// Drop optional index lists if no face referenced them
	if allMissing(r.attrs.NormalIndices) {
		r.attrs.NormalIndices = nil
	}
	if allMissing(r.attrs.TexCoordIndices) {
		r.attrs.TexCoordIndices = nil
	}

	if err := r.attrs.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", res.Path(), err)
	}

	r.logger.Infof(
		"parsed %d triangles (%d quads split), %d positions, %d normals, %d texcoords in %d ms",
		r.attrs.TriangleCount(), r.quads, len(r.attrs.Positions), len(r.attrs.Normals),
		len(r.attrs.TexCoords), time.Since(start).Nanoseconds()/1e6,
	)
	return r.attrs, nil
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)
	errMsg := strings.Trim(
		fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n")),
		"\n",
	)
	return fmt.Errorf("%s", errMsg)
}

// Push a frame to the error stack.
func (r *wavefrontReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *wavefrontReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Parse wavefront object format.
func (r *wavefrontReader) parse(res *asset.Resource) error {
	var lineNum int = 0

	// Included files use 1-based indices relative to their own coordinate
	// lists. Tracking the list lengths when the file was entered lets us
	// rebase them.
	relVertexOffset := len(r.attrs.Positions)
	relUvOffset := len(r.attrs.TexCoords)
	relNormalOffset := len(r.attrs.Normals)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "call"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [call]", res.Path(), lineNum))
			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, err.Error())
			}
			err = r.parse(incRes)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, err.Error())
			}
			r.attrs.Positions = append(r.attrs.Positions, v)
		case "vn":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, err.Error())
			}
			r.attrs.Normals = append(r.attrs.Normals, v)
		case "vt":
			v, err := parseVec2(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, err.Error())
			}
			r.attrs.TexCoords = append(r.attrs.TexCoords, v)
		case "o":
			if len(lineTokens) > 1 && r.attrs.Name == "" {
				r.attrs.Name = lineTokens[1]
			}
		case "f":
			if err := r.parseFace(lineTokens, relVertexOffset, relUvOffset, relNormalOffset); err != nil {
				return r.emitError(res.Path(), lineNum, err.Error())
			}
		case "g", "s", "usemtl", "mtllib":
			// Materials and groups are ignored; every surface uses the
			// same diffuse material.
		default:
			r.logger.Debugf("[%s: %d] skipping unsupported statement %q", res.Path(), lineNum, lineTokens[0])
		}
	}

	return scanner.Err()
}

// Parse a triangle or quad face and append its indices. Quads are split
// into two triangles.
func (r *wavefrontReader) parseFace(lineTokens []string, relVertexOffset, relUvOffset, relNormalOffset int) error {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return fmt.Errorf(`unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got %d. Select the triangulation option in your exporter`, len(lineTokens)-1)
	}

	var vIndices, uvIndices, nIndices [4]int32
	var offset int
	var err error
	expIndices := 0
	for arg := 0; arg < len(lineTokens)-1; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")

		// The first arg defines the format for the following args
		if arg == 0 {
			expIndices = len(vTokens)
		} else if len(vTokens) != expIndices {
			return fmt.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(vTokens))
		}

		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		offset, err = selectFaceCoordIndex(vTokens[0], len(r.attrs.Positions), relVertexOffset)
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}
		vIndices[arg] = int32(offset)

		uvIndices[arg] = -1
		if expIndices > 1 && vTokens[1] != "" {
			offset, err = selectFaceCoordIndex(vTokens[1], len(r.attrs.TexCoords), relUvOffset)
			if err != nil {
				return fmt.Errorf("could not parse tex coord for face argument %d: %s", arg, err.Error())
			}
			uvIndices[arg] = int32(offset)
		}

		nIndices[arg] = -1
		if expIndices > 2 && vTokens[2] != "" {
			offset, err = selectFaceCoordIndex(vTokens[2], len(r.attrs.Normals), relNormalOffset)
			if err != nil {
				return fmt.Errorf("could not parse normal coord for face argument %d: %s", arg, err.Error())
			}
			nIndices[arg] = int32(offset)
		}
	}

	corners := [][3]int{{0, 1, 2}}
	if len(lineTokens) == 5 {
		corners = append(corners, [3]int{0, 2, 3})
		r.quads++
	}

	for _, tri := range corners {
		for _, corner := range tri {
			r.attrs.Indices = append(r.attrs.Indices, vIndices[corner])
			r.attrs.TexCoordIndices = append(r.attrs.TexCoordIndices, uvIndices[corner])
			r.attrs.NormalIndices = append(r.attrs.NormalIndices, nIndices[corner])
		}
	}

	return nil
}

// Given an index for a face coord type (vertex, normal, tex) calculate the
// proper offset into the coord list. Wavefront format can also use negative
// indices to reference elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int = 0
	if index < 0 {
		vOffset = coordListLen + int(index)
	} else {
		vOffset = relOffset + int(index-1)
	}
	if vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}

// Parse a Vec2 row. A third (w) texcoord component is ignored.
func parseVec2(lineTokens []string) (types.Vec2, error) {
	if len(lineTokens) < 3 {
		return types.Vec2{}, fmt.Errorf(`unsupported syntax for "%s"; expected 2 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec2{}
	for tokIdx := 1; tokIdx <= 2; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}

func allMissing(indices []int32) bool {
	for _, index := range indices {
		if index != -1 {
			return false
		}
	}
	return true
}
