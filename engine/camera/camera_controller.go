package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController owns the positional state of a camera: the eye and the look-at point.
// The camera reads from its controller and computes the view and projection matrices.
type CameraController interface {
	// Position returns the camera's world-space eye position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: the world-space target position
	Target() mgl32.Vec3

	// SetPosition sets the eye position directly.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetPosition(x, y, z float32)

	// SetTarget sets the look-at point.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetTarget(x, y, z float32)

	// Move translates the eye by the given offset. The target does not move.
	//
	// Parameters:
	//   - dx, dy, dz: the world-space offset
	Move(dx, dy, dz float32)

	// Step returns the distance the eye moves per key press.
	//
	// Returns:
	//   - float32: the step size
	Step() float32

	// HandleKeys moves the eye once per pressed key: W and S along +Z and -Z, A and D along -X
	// and +X, J and K along -Y and +Y. Other keys are ignored.
	//
	// Parameters:
	//   - keys: the key codes pressed or repeated this frame
	//
	// Returns:
	//   - bool: true if the eye moved
	HandleKeys(keys []int) bool
}
