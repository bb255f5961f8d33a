package loader

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithWorkers is an option builder that sets the number of image decode workers.
//
// Parameters:
//   - n: the worker count; values below 1 are raised to 1
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker option to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = max(n, 1)
	}
}

// WithMaxTextureSize is an option builder that sets the largest texture edge kept at full
// resolution. Larger images are downscaled to fit, preserving aspect ratio.
//
// Parameters:
//   - size: the maximum edge in pixels, or 0 to keep every image at full size
//
// Returns:
//   - LoaderBuilderOption: a function that applies the size option to a loader
func WithMaxTextureSize(size int) LoaderBuilderOption {
	return func(l *loader) {
		l.maxTextureSize = max(size, 0)
	}
}

// WithScene is an option builder that pre-populates the scene cache, typically with a
// procedurally built scene.
//
// Parameters:
//   - key: the cache key for the scene
//   - scene: the scene to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the scene option to a loader
func WithScene(key string, scene *Scene) LoaderBuilderOption {
	return func(l *loader) {
		l.sceneCache[key] = scene
	}
}
