package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec4{x, y, z, 1}
	}
}

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing; a zero vector keeps the default.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		if d, ok := normalize3(x, y, z); ok {
			l.direction = d.Vec4(0)
		}
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = mgl32.Vec4{r, g, b, 1}
	}
}

// WithFalloff is an option builder that sets the attenuation parameters of the light.
//
// Parameters:
//   - lightRange: the distance at which the light fades out
//   - start: the distance at which attenuation starts
//
// Returns:
//   - LightBuilderOption: a function that applies the falloff option to a lightImpl
func WithFalloff(lightRange, start float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.falloff[0] = lightRange
		l.falloff[1] = start
	}
}

// WithShadowProjection is an option builder that sets the perspective of the light's shadow camera.
//
// Parameters:
//   - fovDeg: the vertical field of view in degrees
//   - near: the near plane distance
//   - far: the far plane distance
//
// Returns:
//   - LightBuilderOption: a function that applies the projection option to a lightImpl
func WithShadowProjection(fovDeg, near, far float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.fov = fovDeg
		l.near = near
		l.far = far
	}
}
