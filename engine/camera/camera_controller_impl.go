package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/common"

	"github.com/go-gl/mathgl/mgl32"
)

// cameraControllerImpl is the keyboard implementation of CameraController.
// Keys translate the eye along the world axes while the target stays put.
type cameraControllerImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3

	step float32
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new keyboard camera controller with the eye at (0, 6, 0),
// the target at (-10, 8, 0) and a step of 0.05 per key press.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:       &sync.Mutex{},
		position: mgl32.Vec3{0, 6, 0},
		target:   mgl32.Vec3{-10, 8, 0},
		step:     0.05,
	}
	for _, option := range options {
		option(cc)
	}
	return cc
}

func (cc *cameraControllerImpl) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraControllerImpl) SetPosition(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = mgl32.Vec3{x, y, z}
}

func (cc *cameraControllerImpl) SetTarget(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = mgl32.Vec3{x, y, z}
}

func (cc *cameraControllerImpl) Move(dx, dy, dz float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = cc.position.Add(mgl32.Vec3{dx, dy, dz})
}

func (cc *cameraControllerImpl) Step() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.step
}

func (cc *cameraControllerImpl) HandleKeys(keys []int) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	moved := false
	for _, key := range keys {
		var d mgl32.Vec3
		switch key {
		case common.KeyW:
			d[2] = cc.step
		case common.KeyS:
			d[2] = -cc.step
		case common.KeyA:
			d[0] = -cc.step
		case common.KeyD:
			d[0] = cc.step
		case common.KeyJ:
			d[1] = -cc.step
		case common.KeyK:
			d[1] = cc.step
		default:
			continue
		}
		cc.position = cc.position.Add(d)
		moved = true
	}
	return moved
}
