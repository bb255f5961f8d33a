package light

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/common"

	"github.com/go-gl/mathgl/mgl32"
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu sync.Mutex

	position  mgl32.Vec4
	direction mgl32.Vec4
	color     mgl32.Vec4
	falloff   mgl32.Vec4

	fov  float32
	near float32
	far  float32
}

// Light is a shadow-casting spot light viewed as a camera. Its view matrix looks from its position
// along its direction, and its projection covers the square shadow map.
type Light interface {
	// Position returns the world-space position of the light, with w = 1.
	//
	// Returns:
	//   - mgl32.Vec4: the light position
	Position() mgl32.Vec4

	// Direction returns the world-space direction the light points in, with w = 0.
	//
	// Returns:
	//   - mgl32.Vec4: the light direction
	Direction() mgl32.Vec4

	// Color returns the RGBA color of the light.
	//
	// Returns:
	//   - mgl32.Vec4: the light color
	Color() mgl32.Vec4

	// Falloff returns the attenuation parameters of the light: range, start, unused and enabled.
	//
	// Returns:
	//   - mgl32.Vec4: the falloff parameters
	Falloff() mgl32.Vec4

	// SetPosition moves the light.
	//
	// Parameters:
	//   - x: the x position component
	//   - y: the y position component
	//   - z: the z position component
	SetPosition(x, y, z float32)

	// SetDirection points the light. A zero vector is ignored.
	//
	// Parameters:
	//   - x: the x direction component
	//   - y: the y direction component
	//   - z: the z direction component
	SetDirection(x, y, z float32)

	// SetColor sets the RGB color of the light. Alpha stays 1.
	//
	// Parameters:
	//   - r: the red color component
	//   - g: the green color component
	//   - b: the blue color component
	SetColor(r, g, b float32)

	// View returns the left-handed view matrix looking from the light position along its direction.
	//
	// Returns:
	//   - mgl32.Mat4: the light view matrix
	View() mgl32.Mat4

	// Projection returns the left-handed, zero-to-one depth perspective projection of the light
	// over a square shadow map.
	//
	// Returns:
	//   - mgl32.Mat4: the light projection matrix
	Projection() mgl32.Mat4

	// GPU returns the GPU layout of the light with its view and projection resolved.
	//
	// Returns:
	//   - GPULightState: the light state ready to be marshaled into the light constant buffer
	GPU() GPULightState
}

var _ Light = &lightImpl{}

// NewLight creates a new Light at (0, 6, 0) pointing down -X with a 0.7 grey color.
//
// Parameters:
//   - opts: optional builder options to override the defaults
//
// Returns:
//   - Light: the configured light
func NewLight(opts ...LightBuilderOption) Light {
	l := &lightImpl{
		position:  mgl32.Vec4{0, 6, 0, 1},
		direction: mgl32.Vec4{-1, 0, 0, 0},
		color:     mgl32.Vec4{0.7, 0.7, 0.7, 1},
		falloff:   mgl32.Vec4{800, 1, 0, 1},
		fov:       DefaultShadowFov,
		near:      DefaultShadowNear,
		far:       DefaultShadowFar,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Position() mgl32.Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) Falloff() mgl32.Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.falloff
}

func (l *lightImpl) SetPosition(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = mgl32.Vec4{x, y, z, 1}
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := normalize3(x, y, z); ok {
		l.direction = d.Vec4(0)
	}
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = mgl32.Vec4{r, g, b, 1}
}

func (l *lightImpl) View() mgl32.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view()
}

func (l *lightImpl) Projection() mgl32.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.projection()
}

func (l *lightImpl) GPU() GPULightState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return GPULightState{
		Position:   l.position,
		Direction:  l.direction,
		Color:      l.color,
		Falloff:    l.falloff,
		View:       l.view(),
		Projection: l.projection(),
	}
}

func (l *lightImpl) view() mgl32.Mat4 {
	eye := l.position.Vec3()
	dir := l.direction.Vec3()
	up := mgl32.Vec3{0, 1, 0}
	// looking straight up or down needs another up vector
	if up.Cross(dir).Len() < 1e-6 {
		up = mgl32.Vec3{0, 0, 1}
	}
	return common.LookAtLH(eye, eye.Add(dir), up)
}

func (l *lightImpl) projection() mgl32.Mat4 {
	return common.PerspectiveLH(mgl32.DegToRad(l.fov), 1, l.near, l.far)
}

// normalize3 returns the unit vector of (x, y, z), or false for a zero vector.
func normalize3(x, y, z float32) (mgl32.Vec3, bool) {
	v := mgl32.Vec3{x, y, z}
	if v.Len() == 0 {
		return v, false
	}
	return v.Normalize(), true
}
