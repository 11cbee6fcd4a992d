package envmap

import (
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/skylight/asset"
	"github.com/achilleasa/skylight/log"
)

var logger = log.New("envmap")

// Loader decodes environment maps. When caching is enabled the last decoded
// image is retained and returned for repeated loads of the same path.
type Loader struct {
	cacheImages bool

	mutex     sync.Mutex
	cachedKey string
	cached    *Image
}

// Create a new loader.
func NewLoader(cacheImages bool) *Loader {
	return &Loader{
		cacheImages: cacheImages,
	}
}

// CacheImages returns true if the loader retains decoded images.
func (l *Loader) CacheImages() bool {
	return l.cacheImages
}

// Load an environment map from a local path or an http(s) URL.
func (l *Loader) Load(pathToImage string) (*Image, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.cacheImages && l.cached != nil && l.cachedKey == pathToImage {
		logger.Debugf("using cached image for %q", pathToImage)
		return l.cached, nil
	}

	res, err := asset.NewResource(pathToImage, nil)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrLoadFailed, pathToImage, err)
	}
	defer res.Close()

	start := time.Now()
	img, err := decode(res)
	if err != nil {
		return nil, err
	}

	kind := "LDR"
	if img.HDR {
		kind = "HDR"
	}
	logger.Infof("loaded %s texture %q (%dx%d) in %d ms", kind, pathToImage, img.Width, img.Height, time.Since(start).Nanoseconds()/1e6)

	if l.cacheImages {
		l.cachedKey = pathToImage
		l.cached = img
	}
	return img, nil
}

// Release drops any cached image.
func (l *Loader) Release() {
	l.mutex.Lock()
	l.cached = nil
	l.cachedKey = ""
	l.mutex.Unlock()
}
