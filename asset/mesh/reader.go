package mesh

import (
	"fmt"

	"github.com/achilleasa/skylight/asset"
)

// The Reader interface is implemented by all mesh readers.
type Reader interface {
	// Read mesh attributes from a resource.
	Read(*asset.Resource) (*Attributes, error)
}

// Load a mesh from a wavefront .obj file or a compiled .zip file.
func Load(pathToMesh string) (*Attributes, error) {
	res, err := asset.NewResource(pathToMesh, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return Read(res)
}

// Read a mesh from an open resource. The reader is selected by the resource
// extension.
func Read(res *asset.Resource) (*Attributes, error) {
	var reader Reader
	switch res.Ext() {
	case ".obj":
		reader = newWavefrontReader()
	case ".zip":
		reader = newZipMeshReader()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, res.Ext())
	}
	return reader.Read(res)
}
