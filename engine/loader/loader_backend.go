package loader

import (
	"io"
)

// loaderBackend defines the generic interface for importing scenes from files or streams.
// Concrete implementations (e.g., gltfLoaderBackendImpl) handle format-specific details and
// return scenes whose images are resolved but not decoded.
type loaderBackend interface {
	// Load imports a scene from the given file path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *Scene: the imported scene
	//   - error: error if loading fails
	Load(path string) (*Scene, error)

	// LoadReader imports a scene from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data, false for text-based formats
	//   - baseDir: the directory external resources resolve against
	//
	// Returns:
	//   - *Scene: the imported scene
	//   - error: error if loading fails
	LoadReader(r io.Reader, isGLB bool, baseDir string) (*Scene, error)
}
