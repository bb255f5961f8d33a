package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraBuilderOption is a functional option for configuring a Camera via NewCamera.
type CameraBuilderOption func(*cameraImpl)

// WithUp is an option builder that sets the world up vector of the camera.
//
// Parameters:
//   - x, y, z: the up vector components
//
// Returns:
//   - CameraBuilderOption: a function that applies the up option to a cameraImpl
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = mgl32.Vec3{x, y, z}
	}
}

// WithFov is an option builder that sets the vertical field of view.
//
// Parameters:
//   - degrees: the field of view in degrees
//
// Returns:
//   - CameraBuilderOption: a function that applies the fov option to a cameraImpl
func WithFov(degrees float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = mgl32.DegToRad(degrees)
	}
}

// WithAspect is an option builder that sets the viewport aspect ratio.
//
// Parameters:
//   - aspect: width / height
//
// Returns:
//   - CameraBuilderOption: a function that applies the aspect option to a cameraImpl
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithNear is an option builder that sets the near plane distance.
//
// Parameters:
//   - near: the near plane
//
// Returns:
//   - CameraBuilderOption: a function that applies the near option to a cameraImpl
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar is an option builder that sets the far plane distance.
//
// Parameters:
//   - far: the far plane
//
// Returns:
//   - CameraBuilderOption: a function that applies the far option to a cameraImpl
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}

// WithController is an option builder that attaches a controller to the camera.
//
// Parameters:
//   - ctrl: the controller owning the camera position
//
// Returns:
//   - CameraBuilderOption: a function that applies the controller option to a cameraImpl
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}
