package mesh

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/achilleasa/skylight/asset"
	"github.com/achilleasa/skylight/log"
)

const (
	dataFile = "mesh.bin"
)

type zipMeshReader struct {
	logger log.Logger
}

// Create a new zip mesh reader.
func newZipMeshReader() *zipMeshReader {
	return &zipMeshReader{
		logger: log.New("zip reader"),
	}
}

// Read previously compiled mesh attributes from a zip file.
func (r *zipMeshReader) Read(res *asset.Resource) (*Attributes, error) {
	r.logger.Noticef(`loading compiled mesh from "%s"`, res.Path())
	start := time.Now()

	// zip package requires a reader implementing ReaderAt. To work around
	// this requirement we read the entire zip file into memory and create
	// a reader from the bytes package that implements ReaderAt
	data, err := io.ReadAll(res)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("mesh: could not open %s: %w", res.Path(), err)
	}

	var attrs *Attributes
	for _, f := range zr.File {
		if f.Name != dataFile {
			r.logger.Warningf("unknown file %s in mesh zip file; skipping", f.Name)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		attrs = &Attributes{}
		err = gob.NewDecoder(rc).Decode(attrs)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("mesh: failed to decode %s from %s: %w", f.Name, res.Path(), err)
		}
	}

	if attrs == nil {
		return nil, fmt.Errorf("mesh: %s does not contain %s", res.Path(), dataFile)
	}
	if err = attrs.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", res.Path(), err)
	}

	r.logger.Noticef("loaded %d triangles in %d ms", attrs.TriangleCount(), time.Since(start).Nanoseconds()/1e6)
	return attrs, nil
}

// Write mesh attributes to a zip file so subsequent runs can skip parsing.
func Write(attrs *Attributes, filename string) error {
	logger := log.New("zip writer")
	logger.Noticef("writing compressed mesh to %s", filename)
	start := time.Now()

	zipFile, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	zw := zip.NewWriter(zipFile)
	cw, err := zw.Create(dataFile)
	if err != nil {
		zw.Close()
		return err
	}
	if err = gob.NewEncoder(cw).Encode(attrs); err != nil {
		zw.Close()
		return err
	}
	if err = zw.Close(); err != nil {
		return err
	}

	logger.Noticef("compressed mesh in %d ms", time.Since(start).Nanoseconds()/1e6)
	return nil
}
