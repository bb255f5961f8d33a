package loader

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// DefaultMaxTextureSize is the largest texture edge kept at full resolution.
const DefaultMaxTextureSize = 4096

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	sceneCache map[string]*Scene

	backend loaderBackend

	workers        int
	maxTextureSize int
	decodePool     worker.DynamicWorkerPool
}

// Loader imports model files into CPU-side scenes and caches them. Images are decoded to RGBA8
// in parallel on a worker pool before a scene is returned, so every returned scene is ready to
// upload.
type Loader interface {
	// Load imports a model file and caches the result by path.
	// If the scene is already cached, the cached version is returned.
	//
	// Parameters:
	//   - path: the file path to the model file (.gltf or .glb)
	//
	// Returns:
	//   - *Scene: the loaded scene with decoded images
	//   - error: ErrUnsupportedFormat for unknown formats, ErrTextureDecode for bad images
	Load(path string) (*Scene, error)

	// LoadReader imports a model from a reader stream and caches it by name.
	//
	// Parameters:
	//   - name: the cache key for the loaded scene
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//   - baseDir: the directory external buffers and images resolve against
	//
	// Returns:
	//   - *Scene: the loaded scene with decoded images
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool, baseDir string) (*Scene, error)

	// Get retrieves a cached scene by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - *Scene: the cached scene or nil
	Get(name string) *Scene

	// Scenes returns a copy of the scene cache.
	//
	// Returns:
	//   - map[string]*Scene: all cached scenes keyed by name
	Scenes() map[string]*Scene

	// Release stops the decode workers.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		sceneCache:     make(map[string]*Scene),
		workers:        runtime.NumCPU(),
		maxTextureSize: DefaultMaxTextureSize,
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}

	l.decodePool = worker.NewDynamicWorkerPool(max(l.workers, 1), 256, 1*time.Second)
	return l
}

func (l *loader) Load(path string) (*Scene, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	scene, err := backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := l.decodeImages(scene); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Printf("[Loader] %s: %d nodes, %d meshes, %d materials, %d images in %s",
		path, len(scene.Nodes), len(scene.Meshes), len(scene.Materials), len(scene.Images), time.Since(start).Round(time.Millisecond))

	return l.store(path, scene), nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool, baseDir string) (*Scene, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}

	scene, err := l.backend.LoadReader(r, isGLB, baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	if err := l.decodeImages(scene); err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	if scene.Name == "unnamed_scene" {
		scene.Name = name
	}

	return l.store(name, scene), nil
}

func (l *loader) Get(name string) *Scene {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sceneCache[name]
}

func (l *loader) Scenes() map[string]*Scene {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]*Scene, len(l.sceneCache))
	for k, v := range l.sceneCache {
		result[k] = v
	}
	return result
}

func (l *loader) Release() {
	l.decodePool.Stop()
}

// store caches scene under key unless another goroutine got there first.
func (l *loader) store(key string, scene *Scene) *Scene {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.sceneCache[key]; ok {
		return cached
	}
	l.sceneCache[key] = scene
	return scene
}

// resolveBackend selects an appropriate loader backend based on the file extension.
// Currently only glTF/GLB is supported.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// decodeImages decodes every image of scene on the worker pool and waits for all of them.
// The first failure, in image order, is returned wrapped in ErrTextureDecode.
func (l *loader) decodeImages(scene *Scene) error {
	if len(scene.Images) == 0 {
		return nil
	}

	errs := make([]error, len(scene.Images))
	var wg sync.WaitGroup
	for i := range scene.Images {
		img := &scene.Images[i]
		if img.Decoded() {
			continue
		}
		wg.Add(1)
		id := i
		l.decodePool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				pixels, w, h, err := img.Source.Decode(l.maxTextureSize)
				if err != nil {
					errs[id] = err
					return nil, err
				}
				img.Pixels, img.Width, img.Height = pixels, w, h
				return nil, nil
			},
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("%w: image %d %q: %w", ErrTextureDecode, i, scene.Images[i].Source.Name, err)
		}
	}
	return nil
}
