package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/camera"
	"github.com/Carmen-Shannon/oxy-bindless/engine/light"

	"github.com/go-gl/mathgl/mgl32"
)

// Scene is the global state the frames are rendered from: the camera, the lights and the ambient
// color. Input updates it between frames; each frame snapshots it into its constant buffers.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// Lights returns the scene's lights. Light 0 casts the shadow.
	Lights() []light.Light

	// AmbientColor returns the ambient light color.
	AmbientColor() mgl32.Vec4

	// SetAmbientColor sets the ambient light color.
	//
	// Parameters:
	//   - color: the RGBA ambient color
	SetAmbientColor(color mgl32.Vec4)

	// SetViewport updates the camera aspect ratio for a viewport of the given size.
	// Zero sizes are ignored.
	//
	// Parameters:
	//   - width: the viewport width in pixels
	//   - height: the viewport height in pixels
	SetViewport(width, height uint32)

	// OnKeys forwards the keys pressed this frame to the camera controller and refreshes the
	// camera matrices when it moved.
	//
	// Parameters:
	//   - keys: the key codes pressed or repeated this frame
	OnKeys(keys []int)

	// SceneConstants snapshots the camera into the scene constant buffer layout.
	//
	// Returns:
	//   - GPUSceneConstants: the scene constants with an identity model matrix
	SceneConstants() GPUSceneConstants

	// LightConstants snapshots the lights into the light constant buffer layout. Missing lights
	// are left zeroed.
	//
	// Returns:
	//   - light.GPULightConstants: the light constants
	LightConstants() light.GPULightConstants
}

type scene struct {
	mu *sync.RWMutex

	name         string
	cam          camera.Camera
	lights       []light.Light
	ambientColor mgl32.Vec4
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene with a default camera, three default lights and a 0.2 grey
// ambient color.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:           &sync.RWMutex{},
		name:         name,
		ambientColor: mgl32.Vec4{0.2, 0.2, 0.2, 1},
	}
	for _, option := range options {
		option(s)
	}
	if s.cam == nil {
		s.cam = camera.NewCamera()
	}
	if s.lights == nil {
		s.lights = make([]light.Light, light.MaxLights)
		for i := range s.lights {
			s.lights[i] = light.NewLight()
		}
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lights
}

func (s *scene) AmbientColor() mgl32.Vec4 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambientColor
}

func (s *scene) SetAmbientColor(color mgl32.Vec4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientColor = color
}

func (s *scene) SetViewport(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	s.Camera().SetAspect(float32(width) / float32(height))
}

func (s *scene) OnKeys(keys []int) {
	if len(keys) == 0 {
		return
	}
	cam := s.Camera()
	if cam.Controller().HandleKeys(keys) {
		cam.Update()
	}
}

func (s *scene) SceneConstants() GPUSceneConstants {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return GPUSceneConstants{
		Model:        mgl32.Ident4(),
		View:         s.cam.ViewMatrix(),
		Projection:   s.cam.ProjectionMatrix(),
		AmbientColor: s.ambientColor,
	}
}

func (s *scene) LightConstants() light.GPULightConstants {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c light.GPULightConstants
	for i, l := range s.lights {
		if i == light.MaxLights {
			break
		}
		c.Lights[i] = l.GPU()
	}
	return c
}
