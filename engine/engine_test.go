package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/loader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/profiler"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/window"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompiler struct{}

func (stubCompiler) Compile(path, entryPoint, profile string) (gpu.ShaderBytecode, error) {
	stage := gpu.ShaderStageVertex
	if profile == shader.PixelProfile {
		stage = gpu.ShaderStagePixel
	}
	return gpu.ShaderBytecode{Code: []byte{0x03, 0x02, 0x23, 0x07}, EntryPoint: entryPoint, Stage: stage}, nil
}

func (stubCompiler) Source(path string) (string, error) { return "", nil }

// scriptedWindow stays open for a fixed number of polls and replays keys and resizes at
// given polls.
type scriptedWindow struct {
	polls    int
	open     int
	keys     map[int][]int
	resizes  map[int][2]int
	pending  []int
	onResize func(width, height int)
}

var _ window.Window = &scriptedWindow{}

func (w *scriptedWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }

func (w *scriptedWindow) PollEvents() bool {
	w.polls++
	if w.polls > w.open {
		return false
	}
	w.pending = append(w.pending, w.keys[w.polls]...)
	if size, ok := w.resizes[w.polls]; ok && w.onResize != nil {
		w.onResize(size[0], size[1])
	}
	return true
}

func (w *scriptedWindow) Keys() []int {
	keys := w.pending
	w.pending = nil
	return keys
}

func (w *scriptedWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *scriptedWindow) IsRunning() bool                            { return w.polls <= w.open }
func (w *scriptedWindow) Close() error                               { return nil }
func (w *scriptedWindow) Width() int                                 { return 64 }
func (w *scriptedWindow) Height() int                                { return 48 }

func newLoadedRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoft, nil,
		renderer.WithCompiler(stubCompiler{}),
		renderer.WithSize(64, 48),
		renderer.WithShadowMapSize(32),
		renderer.WithLocalTransformCap(16),
		renderer.WithFenceTimeout(2*time.Second),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	require.NoError(t, r.Load(context.Background(), loader.CubeGrid(2, 3, mgl32.Vec3{})))
	return r
}

func TestEngine_RunUntilWindowCloses(t *testing.T) {
	assert := assert.New(t)
	r := newLoadedRenderer(t)
	before := r.Scene().Camera().Controller().Position()

	win := &scriptedWindow{
		open:    4,
		keys:    map[int][]int{1: {common.KeyW}},
		resizes: map[int][2]int{2: {80, 60}, 3: {96, 72}},
	}
	var updates int
	e := NewEngine(WithWindow(win), WithRenderer(r), WithProfiling(true),
		WithProfiler(profiler.NewProfiler(profiler.WithLogging(false))))
	e.SetUpdateCallback(func(float32) { updates++ })

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(uint64(4), r.FrameNumber())
	assert.Equal(4, updates)
	assert.Equal(uint32(96), r.SwapChain().Desc().Width)
	assert.Equal(uint32(72), r.SwapChain().Desc().Height)
	after := r.Scene().Camera().Controller().Position()
	assert.True(after.ApproxEqual(before.Add(mgl32.Vec3{0, 0, 0.05})))
}

func TestEngine_QuitHeadless(t *testing.T) {
	r := newLoadedRenderer(t)
	e := NewEngine(WithRenderer(r))
	e.SetUpdateCallback(func(float32) {
		if r.FrameNumber() == 3 {
			e.Quit()
		}
	})

	require.NoError(t, e.Run(context.Background()))
	// the frame whose update called Quit is still rendered
	assert.Equal(t, uint64(4), r.FrameNumber())
	e.Quit()
}

func TestEngine_RunNeedsRenderer(t *testing.T) {
	assert.ErrorIs(t, NewEngine().Run(context.Background()), ErrNoRenderer)
}

func TestEngine_RenderFrameLimit(t *testing.T) {
	assert := assert.New(t)
	e := NewEngine(WithRenderFrameLimit(50)).(*engine)
	assert.Equal(20*time.Millisecond, e.renderFrameLimit)
	e.SetRenderFrameLimit(0)
	assert.Zero(e.renderFrameLimit)
}
