package envmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/achilleasa/skylight/asset"
	"github.com/achilleasa/skylight/types"
	"github.com/mdouchement/hdr"
	_ "github.com/mdouchement/hdr/codec/rgbe"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrLoadFailed = errors.New("envmap: could not load environment map")
	ErrNoImage    = errors.New("envmap: no image data")
)

// Gamma used to linearize 8-bit (LDR) sources.
const ldrGamma = 2.2

// Image is an equirectangular environment map stored as linear RGBA floats.
// Texels are stored row-major; row 0 maps to the +Y pole.
type Image struct {
	Width  int
	Height int
	Texels []types.Vec4

	// True if the source was a high dynamic range image.
	HDR bool

	// The path the image was loaded from.
	Source string
}

// Return the texel at (x, y). Coordinates are clamped to the image edges.
func (img *Image) Texel(x, y int) types.Vec4 {
	if x < 0 {
		x = 0
	} else if x >= img.Width {
		x = img.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= img.Height {
		y = img.Height - 1
	}
	return img.Texels[y*img.Width+x]
}

// Lookup performs a bilinear filtered lookup using clamp-to-edge addressing.
// The u, v coordinates are in the [0, 1] range.
func (img *Image) Lookup(u, v float32) types.Vec4 {
	fx := u*float32(img.Width) - 0.5
	fy := v*float32(img.Height) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	top := img.Texel(x0, y0).Mul(1 - tx).Add(img.Texel(x0+1, y0).Mul(tx))
	bottom := img.Texel(x0, y0+1).Mul(1 - tx).Add(img.Texel(x0+1, y0+1).Mul(tx))
	return top.Mul(1 - ty).Add(bottom.Mul(ty))
}

// LookupDir returns the radiance arriving from direction dir.
func (img *Image) LookupDir(dir types.Vec3) types.Vec4 {
	u, v := DirToUV(dir)
	return img.Lookup(u, v)
}

// Size returns the texel storage requirements in bytes.
func (img *Image) Size() int {
	return len(img.Texels) * 16
}

// NewConstantSky returns a 1x1 environment with a single color.
func NewConstantSky(c types.Vec3) *Image {
	return &Image{
		Width:  1,
		Height: 1,
		Texels: []types.Vec4{c.Vec4(1)},
		HDR:    true,
		Source: "constant sky",
	}
}

// Decode an environment map from a resource.
func decode(res *asset.Resource) (*Image, error) {
	src, format, err := image.Decode(res)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrLoadFailed, res.Path(), err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w %q: %v", ErrLoadFailed, res.Path(), ErrNoImage)
	}

	img := &Image{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Texels: make([]types.Vec4, bounds.Dx()*bounds.Dy()),
		Source: res.Path(),
	}

	if hdrSrc, isHDR := src.(hdr.Image); isHDR {
		img.HDR = true
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				r, g, b, a := hdrSrc.HDRAt(bounds.Min.X+x, bounds.Min.Y+y).HDRRGBA()
				img.Texels[y*img.Width+x] = types.XYZW(float32(r), float32(g), float32(b), float32(a))
			}
		}
		logger.Debugf("decoded %dx%d HDR (%s) image", img.Width, img.Height, format)
		return img, nil
	}

	// Linearize LDR sources using a lookup table for the 16-bit channels.
	var lut [256]float32
	for i := range lut {
		lut[i] = float32(math.Pow(float64(i)/255.0, ldrGamma))
	}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := color.NRGBA64Model.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA64)
			img.Texels[y*img.Width+x] = types.XYZW(
				lut[c.R>>8],
				lut[c.G>>8],
				lut[c.B>>8],
				float32(c.A)/0xffff,
			)
		}
	}
	logger.Debugf("decoded %dx%d LDR (%s) image", img.Width, img.Height, format)
	return img, nil
}

// DirToUV maps a unit direction to equirectangular texture coordinates.
func DirToUV(dir types.Vec3) (u, v float32) {
	y := dir[1]
	if y > 1 {
		y = 1
	} else if y < -1 {
		y = -1
	}
	phi := math.Atan2(float64(dir[2]), float64(dir[0]))
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return float32(phi / (2 * math.Pi)), float32(math.Acos(float64(y)) / math.Pi)
}

// UVToDir maps equirectangular texture coordinates to a unit direction.
func UVToDir(u, v float32) types.Vec3 {
	phi := 2 * math.Pi * float64(u)
	theta := math.Pi * float64(v)
	sinTheta := math.Sin(theta)
	return types.XYZ(
		float32(sinTheta*math.Cos(phi)),
		float32(math.Cos(theta)),
		float32(sinTheta*math.Sin(phi)),
	)
}
