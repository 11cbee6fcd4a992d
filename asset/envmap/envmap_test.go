package envmap

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/achilleasa/skylight/types"
)

func gradientImage(w, h int) *Image {
	img := &Image{Width: w, Height: h, Texels: make([]types.Vec4, w*h), HDR: true, Source: "gradient"}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float32(x+1) / float32(w) * float32(h-y) / float32(h)
			img.Texels[y*w+x] = types.XYZW(v, v*0.5, v*2, 1)
		}
	}
	// A bright sun
	img.Texels[(h/4)*w+w/3] = types.XYZW(5000, 4000, 3000, 1)
	return img
}

func TestAliasTableNormalization(t *testing.T) {
	table, err := BuildAliasTable(gradientImage(512, 256))
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(table.Checksum-1) > 1e-3 {
		t.Fatalf("expected pdf checksum to be within 1e-3 of 1; got %f", table.Checksum)
	}

	var sum float64
	for _, pdf := range table.Pdf {
		sum += float64(pdf)
	}
	if math.Abs(sum-1) > 1e-3 {
		t.Fatalf("expected pdf sum to be within 1e-3 of 1; got %f", sum)
	}
}

func TestAliasTableValidity(t *testing.T) {
	table, err := BuildAliasTable(gradientImage(128, 64))
	if err != nil {
		t.Fatal(err)
	}

	n := int32(len(table.Pdf))
	if len(table.AliasIndex) != int(n) || len(table.AliasPdf) != int(n) {
		t.Fatalf("expected all arrays to contain %d entries", n)
	}
	for i := int32(0); i < n; i++ {
		if table.AliasIndex[i] < 0 || table.AliasIndex[i] >= n {
			t.Fatalf("expected alias index at %d to be in [0, %d); got %d", i, n, table.AliasIndex[i])
		}
		if table.AliasPdf[i] < 0 || table.AliasPdf[i] > 1 {
			t.Fatalf("expected alias pdf at %d to be in [0, 1]; got %f", i, table.AliasPdf[i])
		}
	}
}

func TestAliasTableDistribution(t *testing.T) {
	img := &Image{Width: 4, Height: 2, Texels: make([]types.Vec4, 8)}
	for i := range img.Texels {
		v := float32(i + 1)
		img.Texels[i] = types.XYZW(v, v, v, 1)
	}
	img.Texels[5] = types.XYZW(0, 0, 0, 1)

	table, err := BuildAliasTable(img)
	if err != nil {
		t.Fatal(err)
	}

	const numSamples = 200000
	rng := rand.New(rand.NewSource(42))
	counts := make([]int, len(table.Pdf))
	for s := 0; s < numSamples; s++ {
		counts[table.Sample(rng.Float32(), rng.Float32())]++
	}

	var chiSq float64
	for i, pdf := range table.Pdf {
		freq := float64(counts[i]) / numSamples
		if math.Abs(freq-float64(pdf)) > 0.01 {
			t.Fatalf("expected sample frequency for pixel %d to be close to %f; got %f", i, pdf, freq)
		}
		if pdf > 0 {
			expCount := float64(pdf) * numSamples
			chiSq += (float64(counts[i]) - expCount) * (float64(counts[i]) - expCount) / expCount
		}
	}

	if counts[5] != 0 {
		t.Fatalf("expected black pixel to never be sampled; got %d samples", counts[5])
	}

	// 6 degrees of freedom; the 99.9% quantile is ~22.5
	if chiSq > 22.5 {
		t.Fatalf("expected chi-square statistic below 22.5; got %f", chiSq)
	}
}

func TestAliasTableZeroLuminance(t *testing.T) {
	img := &Image{Width: 8, Height: 4, Texels: make([]types.Vec4, 32)}
	for i := range img.Texels {
		img.Texels[i] = types.XYZW(-1, 0, float32(math.NaN()), 1)
	}

	table, err := BuildAliasTable(img)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(table.Checksum-1) > 1e-3 {
		t.Fatalf("expected fallback table to be normalized; got checksum %f", table.Checksum)
	}
	if table.Pdf[0] >= table.Pdf[8] {
		t.Fatalf("expected polar rows to be less likely than equatorial rows; got %f >= %f", table.Pdf[0], table.Pdf[8])
	}
	if table.Pdf[0] != table.Pdf[7] {
		t.Fatalf("expected pixels in the same row to be equally likely; got %f and %f", table.Pdf[0], table.Pdf[7])
	}
}

func TestAliasTableNoImage(t *testing.T) {
	specs := []*Image{
		nil,
		{},
		{Width: 2, Height: 2, Texels: make([]types.Vec4, 3)},
	}
	for index, img := range specs {
		if _, err := BuildAliasTable(img); !errors.Is(err, ErrNoImage) {
			t.Fatalf("[spec %d] expected ErrNoImage; got %v", index, err)
		}
	}
}

func TestConstantSkyAliasTable(t *testing.T) {
	table, err := BuildAliasTable(NewConstantSky(types.XYZ(0.5, 0.7, 1.0)))
	if err != nil {
		t.Fatal(err)
	}
	if table.Pdf[0] != 1 || table.AliasIndex[0] != 0 || table.AliasPdf[0] != 1 {
		t.Fatalf("expected trivial single entry table; got %+v", table)
	}
}

func TestDirectionPdfUniform(t *testing.T) {
	const w, h = 128, 64
	img := &Image{Width: w, Height: h, Texels: make([]types.Vec4, w*h)}
	for i := range img.Texels {
		img.Texels[i] = types.XYZW(1, 1, 1, 1)
	}
	table, err := BuildAliasTable(img)
	if err != nil {
		t.Fatal(err)
	}

	expPdf := 1.0 / (4 * math.Pi)
	for _, index := range []int{w*10 + 3, w*32 + 64, w*50 + 127} {
		dir := table.Direction(index, 0.5, 0.5)
		pdf := float64(table.DirectionPdf(dir))
		if math.Abs(pdf-expPdf)/expPdf > 0.01 {
			t.Fatalf("expected uniform sphere pdf %f for pixel %d; got %f", expPdf, index, pdf)
		}
	}
}

func TestDirUVMapping(t *testing.T) {
	specs := []types.Vec3{
		{1, 0, 0},
		{0, 0, 1},
		{-1, 0, 0},
		types.XYZ(1, 1, 1).Normalize(),
		types.XYZ(0.2, -0.9, -0.3).Normalize(),
	}

	for index, dir := range specs {
		u, v := DirToUV(dir)
		if u < 0 || u >= 1 || v < 0 || v > 1 {
			t.Fatalf("[spec %d] expected uv in [0, 1); got (%f, %f)", index, u, v)
		}
		got := UVToDir(u, v)
		if got.Sub(dir).Len() > 1e-4 {
			t.Fatalf("[spec %d] expected direction %v; got %v", index, dir, got)
		}
	}

	if _, v := DirToUV(types.XYZ(0, 1, 0)); v != 0 {
		t.Fatalf("expected +Y to map to the top row; got v=%f", v)
	}
}

func writePNG(t *testing.T, file string, w, h int, c color.NRGBA) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err = png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPNG(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sky.png")
	writePNG(t, file, 64, 32, color.NRGBA{R: 128, G: 255, B: 0, A: 255})

	img, err := NewLoader(false).Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 64 || img.Height != 32 {
		t.Fatalf("expected 64x32 image; got %dx%d", img.Width, img.Height)
	}
	if img.HDR {
		t.Fatal("expected png to be classified as LDR")
	}

	texel := img.Texel(10, 10)
	expR := float32(math.Pow(128.0/255.0, 2.2))
	if math.Abs(float64(texel[0]-expR)) > 1e-4 || texel[1] != 1 || texel[2] != 0 || texel[3] != 1 {
		t.Fatalf("expected linearized texel (%f, 1, 0, 1); got %v", expR, texel)
	}

	lookup := img.Lookup(0.5, 0.5)
	if math.Abs(float64(lookup[0]-expR)) > 1e-4 {
		t.Fatalf("expected filtered lookup of a constant image to match its texels; got %v", lookup)
	}
}

func TestLoaderCache(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sky.png")
	writePNG(t, file, 8, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	cached := NewLoader(true)
	img1, err := cached.Load(file)
	if err != nil {
		t.Fatal(err)
	}

	// Remove the source; a cache hit must not touch the filesystem.
	if err = os.Remove(file); err != nil {
		t.Fatal(err)
	}
	img2, err := cached.Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if img1 != img2 {
		t.Fatal("expected second load to return the cached image")
	}

	cached.Release()
	if _, err = cached.Load(file); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected load after release to hit the filesystem and fail; got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, file := range []string{filepath.Join(dir, "missing.hdr"), corrupt} {
		_, err := NewLoader(false).Load(file)
		if !errors.Is(err, ErrLoadFailed) {
			t.Fatalf("expected ErrLoadFailed for %s; got %v", file, err)
		}
	}
}

func TestStats(t *testing.T) {
	img := gradientImage(16, 8)
	table, err := BuildAliasTable(img)
	if err != nil {
		t.Fatal(err)
	}
	out := Stats(img, table)
	for _, exp := range []string{"16x8", "HDR", "Pdf checksum"} {
		if !strings.Contains(out, exp) {
			t.Fatalf("expected stats to contain %q; got\n%s", exp, out)
		}
	}
}
