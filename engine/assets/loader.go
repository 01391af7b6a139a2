package assets

import "github.com/spaghettifunk/multibatch/engine/renderer/metadata"

// Loader turns one kind of model file into shape data.
type Loader interface {
	Load(path string) (*metadata.ShapeData, error)
}
