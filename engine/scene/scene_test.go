package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/light"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUSceneConstants_Layout(t *testing.T) {
	assert := assert.New(t)

	var c GPUSceneConstants
	assert.Equal(208, c.Size())
	assert.Equal(uint64(256), SceneConstantsBufferSize)
	assert.Len(c.Marshal(), 208)
}

func TestNewScene_Defaults(t *testing.T) {
	assert := assert.New(t)

	s := NewScene("test")
	assert.Equal("test", s.Name())
	require.Len(t, s.Lights(), light.MaxLights)
	assert.Equal(mgl32.Vec4{0.2, 0.2, 0.2, 1}, s.AmbientColor())

	sc := s.SceneConstants()
	assert.Equal(mgl32.Ident4(), sc.Model)
	assert.Equal(s.Camera().ViewMatrix(), sc.View)
	assert.Equal(s.Camera().ProjectionMatrix(), sc.Projection)

	lc := s.LightConstants()
	for i := range light.MaxLights {
		assert.Equal(mgl32.Vec4{0, 6, 0, 1}, lc.Lights[i].Position)
		assert.Equal(s.Lights()[i].View(), lc.Lights[i].View)
	}
}

func TestScene_LightConstantsPadsMissingLights(t *testing.T) {
	assert := assert.New(t)

	s := NewScene("one light", WithLights(light.NewLight(light.WithPosition(1, 1, 1))))
	lc := s.LightConstants()
	assert.Equal(mgl32.Vec4{1, 1, 1, 1}, lc.Lights[0].Position)
	assert.Equal(light.GPULightState{}, lc.Lights[1])
	assert.Equal(light.GPULightState{}, lc.Lights[2])
}

func TestScene_OnKeys(t *testing.T) {
	assert := assert.New(t)

	s := NewScene("keys")
	before := s.SceneConstants().View

	s.OnKeys(nil)
	assert.Equal(before, s.SceneConstants().View)

	s.OnKeys([]int{common.KeyW, common.KeyK})
	assert.NotEqual(before, s.SceneConstants().View)
	pos := s.Camera().Controller().Position()
	assert.InDelta(6.05, pos.Y(), 1e-5)
	assert.InDelta(0.05, pos.Z(), 1e-5)
}

func TestScene_SetViewport(t *testing.T) {
	assert := assert.New(t)

	s := NewScene("resize")
	s.SetViewport(1600, 800)
	assert.Equal(float32(2), s.Camera().Aspect())

	s.SetViewport(0, 800)
	assert.Equal(float32(2), s.Camera().Aspect())
}
