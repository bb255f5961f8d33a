package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bindless/common"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNewCamera_Defaults(t *testing.T) {
	assert := assert.New(t)

	c := NewCamera()
	assert.InDelta(mgl32.DegToRad(60), c.Fov(), 1e-6)
	assert.Equal(float32(0.1), c.Near())
	assert.Equal(float32(800), c.Far())
	assert.Equal(mgl32.Vec3{0, 6, 0}, c.Controller().Position())
	assert.Equal(mgl32.Vec3{-10, 8, 0}, c.Controller().Target())

	// the target lies straight ahead on +Z in view space
	at := c.ViewMatrix().Mul4x1(mgl32.Vec4{-10, 8, 0, 1})
	assert.InDelta(0, at.X(), 1e-5)
	assert.InDelta(0, at.Y(), 1e-5)
	assert.Greater(at.Z(), float32(0))
}

func TestCamera_SetAspect(t *testing.T) {
	assert := assert.New(t)

	c := NewCamera(WithAspect(1))
	square := c.ProjectionMatrix()

	c.SetAspect(2)
	wide := c.ProjectionMatrix()
	assert.InDelta(square[0]/2, wide[0], 1e-6)
	assert.Equal(square[5], wide[5])
}

func TestCameraController_HandleKeys(t *testing.T) {
	tests := []struct {
		name  string
		keys  []int
		want  mgl32.Vec3
		moved bool
	}{
		{name: "forward", keys: []int{common.KeyW}, want: mgl32.Vec3{0, 6, 0.05}, moved: true},
		{name: "back", keys: []int{common.KeyS}, want: mgl32.Vec3{0, 6, -0.05}, moved: true},
		{name: "left", keys: []int{common.KeyA}, want: mgl32.Vec3{-0.05, 6, 0}, moved: true},
		{name: "right", keys: []int{common.KeyD}, want: mgl32.Vec3{0.05, 6, 0}, moved: true},
		{name: "down", keys: []int{common.KeyJ}, want: mgl32.Vec3{0, 5.95, 0}, moved: true},
		{name: "up", keys: []int{common.KeyK}, want: mgl32.Vec3{0, 6.05, 0}, moved: true},
		{name: "repeat", keys: []int{common.KeyW, common.KeyW}, want: mgl32.Vec3{0, 6, 0.1}, moved: true},
		{name: "ignored", keys: []int{common.KeyEsc}, want: mgl32.Vec3{0, 6, 0}, moved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)

			cc := NewCameraController()
			assert.Equal(tt.moved, cc.HandleKeys(tt.keys))
			got := cc.Position()
			for i := range 3 {
				assert.InDelta(tt.want[i], got[i], 1e-5)
			}
			assert.Equal(mgl32.Vec3{-10, 8, 0}, cc.Target())
		})
	}
}

func TestCamera_UpdateFollowsController(t *testing.T) {
	assert := assert.New(t)

	c := NewCamera()
	before := c.ViewMatrix()

	c.Controller().HandleKeys([]int{common.KeyK})
	assert.Equal(before, c.ViewMatrix())

	c.Update()
	assert.NotEqual(before, c.ViewMatrix())
}
