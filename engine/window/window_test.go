package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bindless/common"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineWindow_Options(t *testing.T) {
	assert := assert.New(t)

	w := newEngineWindow(WithTitle("cubes"), WithSize(800, 600), WithMinSize(100, 80), WithMaxSize(1600, 1200))
	assert.Equal("cubes", w.title)
	assert.Equal(800, w.Width())
	assert.Equal(600, w.Height())
	assert.Equal([4]int{100, 80, 1600, 1200}, [4]int{w.minWidth, w.minHeight, w.maxWidth, w.maxHeight})
	assert.False(w.IsRunning(), "no platform window was created")
	assert.Error(w.Close())
}

func TestEngineWindow_KeysDrainPerFrame(t *testing.T) {
	assert := assert.New(t)
	w := newEngineWindow()

	assert.Empty(w.Keys())

	w.pressKey(common.KeyW)
	w.pressKey(common.KeyW)
	w.pressKey(common.KeyJ)
	assert.Equal([]int{common.KeyW, common.KeyW, common.KeyJ}, w.Keys())
	assert.Empty(w.Keys(), "keys are cleared once read")
}

func TestEngineWindow_Resize(t *testing.T) {
	assert := assert.New(t)
	w := newEngineWindow()

	var got [][2]int
	w.SetResizeCallback(func(width, height int) {
		got = append(got, [2]int{width, height})
	})

	w.resize(1024, 768)
	w.resize(0, 0)
	assert.Equal([][2]int{{1024, 768}}, got, "minimized sizes are not forwarded")
	assert.Equal(0, w.Width())
	assert.Equal(0, w.Height())
}
