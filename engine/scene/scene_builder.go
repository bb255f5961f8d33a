package scene

import (
	"github.com/Carmen-Shannon/oxy-bindless/engine/camera"
	"github.com/Carmen-Shannon/oxy-bindless/engine/light"

	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithCamera replaces the default camera.
//
// Parameters:
//   - cam: the camera to use
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.cam = cam
	}
}

// WithLights replaces the default lights. Only the first light.MaxLights reach the GPU.
//
// Parameters:
//   - lights: the lights to use, light 0 casts the shadow
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.lights = lights
	}
}

// WithAmbientColor sets the ambient light color.
//
// Parameters:
//   - color: the RGBA ambient color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbientColor(color mgl32.Vec4) SceneBuilderOption {
	return func(s *scene) {
		s.ambientColor = color
	}
}
