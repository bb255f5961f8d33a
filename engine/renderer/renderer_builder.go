package renderer

import (
	"time"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/scene"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithDevice makes the renderer use an existing device instead of opening one for the backend.
// The caller keeps ownership and releases it after the renderer.
//
// Parameters:
//   - device: the device to render with
//
// Returns:
//   - RendererBuilderOption: a function that applies the device option to a renderer
func WithDevice(device gpu.Device) RendererBuilderOption {
	return func(r *renderer) {
		r.device = device
	}
}

// WithCompiler sets the shader compiler used to build both pipelines. Defaults to the naga
// compiler over the embedded pass shaders.
//
// Parameters:
//   - compiler: the shader compiler
//
// Returns:
//   - RendererBuilderOption: a function that applies the compiler option to a renderer
func WithCompiler(compiler shader.Compiler) RendererBuilderOption {
	return func(r *renderer) {
		r.compiler = compiler
	}
}

// WithScene sets the camera and lights the frames are rendered with. Defaults to scene.NewScene.
//
// Parameters:
//   - s: the scene state
//
// Returns:
//   - RendererBuilderOption: a function that applies the scene option to a renderer
func WithScene(s scene.Scene) RendererBuilderOption {
	return func(r *renderer) {
		r.scene = s
	}
}

// WithSize sets the initial back buffer size. Defaults to the window size, or 1280x720 without a window.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithSize(width, height uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.width = width
		r.height = height
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithBackBufferCount sets the number of swap chain buffers. Defaults to 3.
//
// Parameters:
//   - n: the back buffer count, at least 2
//
// Returns:
//   - RendererBuilderOption: a function that applies the back buffer count option to a renderer
func WithBackBufferCount(n uint32) RendererBuilderOption {
	return func(r *renderer) {
		if n >= 2 {
			r.backBufferCount = n
		}
	}
}

// WithFenceTimeout bounds every fence wait of the renderer and its frames. Defaults to 5 seconds.
//
// Parameters:
//   - timeout: the wait bound
//
// Returns:
//   - RendererBuilderOption: a function that applies the fence timeout option to a renderer
func WithFenceTimeout(timeout time.Duration) RendererBuilderOption {
	return func(r *renderer) {
		r.fenceTimeout = timeout
	}
}

// WithLocalTransformCap sets how many draw entries each loaded model may produce.
//
// Parameters:
//   - n: the per-model capacity
//
// Returns:
//   - RendererBuilderOption: a function that applies the capacity option to a renderer
func WithLocalTransformCap(n uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.localCap = n
	}
}

// WithShadowMapSize sets the size of each frame's square shadow map. Defaults to 2048.
//
// Parameters:
//   - size: the shadow map size in texels
//
// Returns:
//   - RendererBuilderOption: a function that applies the shadow map size option to a renderer
func WithShadowMapSize(size uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.shadowMapSize = size
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). Ignored by the soft backend.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}
