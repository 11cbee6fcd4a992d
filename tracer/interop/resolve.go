package interop

import (
	"image"
	"image/color"
	"math"

	"github.com/achilleasa/skylight/types"
)

// Gamma applied when converting accumulated frames to 8-bit images.
const DisplayGamma = 2.2

// Resolve converts accumulated sample sums into an 8-bit image. Each texel
// is divided by its alpha channel (the number of accumulated samples),
// clamped and gamma corrected. Rows are flipped so that the image origin is
// at the top left corner.
func Resolve(pixels []types.Vec4, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	invGamma := 1.0 / DisplayGamma
	toByte := func(v float32) uint8 {
		if v <= 0 || math.IsNaN(float64(v)) {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(math.Pow(float64(v), invGamma)*255 + 0.5)
	}

	for y := 0; y < height; y++ {
		row := height - 1 - y
		for x := 0; x < width; x++ {
			texel := pixels[row*width+x]
			if texel[3] <= 0 {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
				continue
			}
			scale := 1 / texel[3]
			img.SetNRGBA(x, y, color.NRGBA{
				R: toByte(texel[0] * scale),
				G: toByte(texel[1] * scale),
				B: toByte(texel[2] * scale),
				A: 255,
			})
		}
	}
	return img
}
