package envmap

import (
	"math"
	"time"

	"github.com/achilleasa/skylight/types"
)

// AliasTable supports O(1) importance sampling of environment map pixels
// proportionally to their luminance weighted by the solid angle they cover.
type AliasTable struct {
	Width  int
	Height int

	// Normalized probability of selecting each pixel.
	Pdf []float32

	// Probability of keeping the selected column and the column to
	// use otherwise.
	AliasPdf   []float32
	AliasIndex []int32

	// Sum of Pdf; should be 1.
	Checksum float64
}

// Relative luminance with negative and NaN values clamped to zero.
func luminance(c types.Vec4) float64 {
	lum := 0.2126*float64(c[0]) + 0.7152*float64(c[1]) + 0.0722*float64(c[2])
	if math.IsNaN(lum) || lum < 0 {
		return 0
	}
	return lum
}

// BuildAliasTable constructs an alias table over img using Vose's method.
func BuildAliasTable(img *Image) (*AliasTable, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 || len(img.Texels) < img.Width*img.Height {
		return nil, ErrNoImage
	}

	start := time.Now()
	w, h := img.Width, img.Height
	n := w * h

	weights := make([]float64, n)
	sinTheta := make([]float64, h)
	for y := 0; y < h; y++ {
		sinTheta[y] = math.Sin(math.Pi * (float64(y) + 0.5) / float64(h))
	}

	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			weights[i] = sinTheta[y] * luminance(img.Texels[i])
			sum += weights[i]
		}
	}

	if sum <= 0 || math.IsInf(sum, 0) {
		logger.Warningf("environment map %q has no usable luminance; falling back to uniform solid angle sampling", img.Source)
		sum = 0
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				weights[y*w+x] = sinTheta[y]
				sum += sinTheta[y]
			}
		}
	}

	table := &AliasTable{
		Width:      w,
		Height:     h,
		Pdf:        make([]float32, n),
		AliasPdf:   make([]float32, n),
		AliasIndex: make([]int32, n),
	}

	scaled := make([]float64, n)
	small := make([]int32, 0, n)
	big := make([]int32, 0, n)
	for i, weight := range weights {
		scaled[i] = weight * float64(n) / sum
		if scaled[i] < 1 {
			small = append(small, int32(i))
		} else {
			big = append(big, int32(i))
		}
	}

	for len(small) > 0 && len(big) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		b := big[len(big)-1]
		big = big[:len(big)-1]

		table.AliasIndex[s] = b
		table.AliasPdf[s] = float32(scaled[s])

		scaled[b] += scaled[s] - 1
		if scaled[b] < 1 {
			small = append(small, b)
		} else {
			big = append(big, b)
		}
	}

	// Entries left over due to rounding error keep their own column.
	for _, list := range [][]int32{small, big} {
		for _, i := range list {
			table.AliasIndex[i] = i
			table.AliasPdf[i] = 1
		}
	}

	for i, weight := range weights {
		table.Pdf[i] = float32(weight / sum)
		table.Checksum += float64(table.Pdf[i])
	}

	logger.Debugf("built %dx%d alias table in %d ms; pdf checksum %f", w, h, time.Since(start).Nanoseconds()/1e6, table.Checksum)
	return table, nil
}

// Sample selects a pixel index using two uniform random numbers in [0, 1).
func (t *AliasTable) Sample(u1, u2 float32) int {
	n := len(t.Pdf)
	i := int(u1 * float32(n))
	if i >= n {
		i = n - 1
	} else if i < 0 {
		i = 0
	}
	if u2 < t.AliasPdf[i] {
		return i
	}
	return int(t.AliasIndex[i])
}

// Direction converts a pixel index plus a jitter offset in [0, 1)^2 inside
// that pixel to a world space direction.
func (t *AliasTable) Direction(index int, jx, jy float32) types.Vec3 {
	x := index % t.Width
	y := index / t.Width
	return UVToDir(
		(float32(x)+jx)/float32(t.Width),
		(float32(y)+jy)/float32(t.Height),
	)
}

// DirectionPdf returns the solid angle density of sampling dir.
func (t *AliasTable) DirectionPdf(dir types.Vec3) float32 {
	u, v := DirToUV(dir)
	x := int(u * float32(t.Width))
	if x >= t.Width {
		x = t.Width - 1
	}
	y := int(v * float32(t.Height))
	if y >= t.Height {
		y = t.Height - 1
	}

	sinTheta := math.Sin(math.Pi * float64(v))
	if sinTheta <= 0 {
		return 0
	}
	pdf := float64(t.Pdf[y*t.Width+x]) * float64(t.Width*t.Height) / (2 * math.Pi * math.Pi * sinTheta)
	return float32(pdf)
}

// Size returns the storage requirements of the three device arrays in bytes.
func (t *AliasTable) Size() int {
	return len(t.Pdf)*4 + len(t.AliasPdf)*4 + len(t.AliasIndex)*4
}
