package renderer

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu/softgpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/loader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/frame"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/shader"

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

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (*renderer, *softgpu.Device) {
	t.Helper()
	dev := softgpu.NewDevice(softgpu.WithTrace())
	opts := append([]RendererBuilderOption{
		WithDevice(dev),
		WithCompiler(stubCompiler{}),
		WithSize(64, 48),
		WithShadowMapSize(32),
		WithLocalTransformCap(16),
		WithFenceTimeout(2 * time.Second),
	}, options...)
	r, err := NewRenderer(BackendTypeSoft, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Release()
		dev.Release()
	})
	return r.(*renderer), dev
}

func directQueue(r *renderer) *softgpu.Queue {
	return r.directQueue.(*softgpu.Queue)
}

func TestNewRenderer_Defaults(t *testing.T) {
	assert := assert.New(t)
	r, _ := newTestRenderer(t)

	desc := r.SwapChain().Desc()
	assert.Equal(uint32(DefaultBackBufferCount), desc.BufferCount)
	assert.Equal(uint32(64), desc.Width)
	assert.Len(r.Frames(), frame.FramesInFlight)
	assert.Len(r.backBufferFences, DefaultBackBufferCount)
	assert.Equal("shadow_pass", r.shadowPipeline.PipelineKey())
	assert.Equal([]gpu.Format{desc.Format}, r.scenePipeline.State().Desc().RenderTargetFormats)
	assert.InDelta(64.0/48.0, r.Scene().Camera().Aspect(), 1e-6)
	assert.Zero(r.FrameNumber())
}

func TestRenderer_RenderBeforeLoad(t *testing.T) {
	r, _ := newTestRenderer(t)
	assert.ErrorIs(t, r.RenderFrame(context.Background()), ErrNotLoaded)
}

func TestRenderer_LoadTwice(t *testing.T) {
	r, _ := newTestRenderer(t)
	require.NoError(t, r.Load(context.Background(), loader.CubeGrid(2, 3, mgl32.Vec3{})))
	assert.ErrorIs(t, r.Load(context.Background(), loader.CubeGrid(1, 3, mgl32.Vec3{})), ErrAlreadyLoaded)
	assert.Len(t, r.Models(), 1)
}

func TestRenderer_LoadSequencing(t *testing.T) {
	assert := assert.New(t)
	r, dev := newTestRenderer(t)
	dev.Trace().Reset()

	grid := loader.CubeGrid(2, 3, mgl32.Vec3{})
	fox := loader.CubeGrid(1, 3, mgl32.Vec3{4, 0, 0})
	require.NoError(t, r.Load(context.Background(), grid, fox))
	require.NoError(t, dev.Err())

	// upload commands, then the copy queue's signal, then the direct queue's transitions and signal
	var steps []string
	for _, e := range dev.Trace().Events() {
		var step string
		switch {
		case e.Kind == softgpu.EventSignal && e.Fence == r.fence:
			step = e.Queue.String() + ":signal"
		case e.Kind == softgpu.EventCommand:
			step = e.Queue.String() + ":commands"
		default:
			continue
		}
		if len(steps) == 0 || steps[len(steps)-1] != step {
			steps = append(steps, step)
		}
	}
	assert.Equal([]string{"copy:commands", "copy:signal", "direct:commands", "direct:signal"}, steps)
	assert.Equal(uint64(2), r.fence.CompletedValue(), "load blocks exactly twice")

	// heaps are sized exactly: two shadow views and one comparison sampler ahead of the models
	models := r.Models()
	require.Len(t, models, 2)
	wantViews := uint32(frame.FramesInFlight)
	wantSamplers := uint32(1)
	for _, m := range models {
		wantViews += m.Counts().CBVSRVUAV()
		wantSamplers += m.Counts().Samplers
	}
	assert.Equal(wantViews, r.viewHeap.Desc().NumDescriptors)
	assert.Equal(wantSamplers, r.samplerHeap.Desc().NumDescriptors)

	stride := r.viewHeap.Stride()
	for i, f := range r.Frames() {
		assert.Equal(r.viewHeap.GPUStart().Offset(i, stride), f.ShadowView())
	}
	assert.Equal(r.samplerHeap.GPUStart(), r.shadowSampler)
	assert.Equal(r.viewHeap.GPUStart().Offset(frame.FramesInFlight, stride), models[0].TextureTable())

	for _, m := range models {
		for _, mesh := range m.Meshes() {
			state, _ := softgpu.StateOf(mesh.VertexBuffer)
			assert.Equal(gpu.StateVertexAndConstantBuffer, state)
		}
	}

	store := dev.Store()
	heap, idx, err := store.ResolveGPU(r.shadowSampler)
	require.NoError(t, err)
	sampler := heap.Slot(idx).Sampler
	assert.True(sampler.Comparison)
	assert.Equal(gpu.CompareLessEqual, sampler.Compare)
	assert.Equal(gpu.AddressBorder, sampler.AddressU)
	assert.Equal([4]float32{1, 1, 1, 1}, sampler.BorderColor)
}

func TestRenderer_CopyQueueCannotMakeResourcesShaderReadable(t *testing.T) {
	dev := softgpu.NewDevice()
	defer dev.Release()
	tex, err := dev.CreateTexture(gpu.TextureDesc{Label: "albedo", Width: 2, Height: 2, Format: gpu.FormatRGBA8Unorm, Usage: gpu.TextureUsageShaderResource | gpu.TextureUsageCopyDest, InitialState: gpu.StateCopyDest})
	require.NoError(t, err)
	alloc, err := dev.CreateCommandAllocator(gpu.CommandListCopy)
	require.NoError(t, err)
	list, err := dev.CreateCommandList(gpu.CommandListCopy, alloc)
	require.NoError(t, err)

	list.ResourceBarrier(gpu.Transition{Resource: tex, Before: gpu.StateCopyDest, After: gpu.StatePixelShaderResource})
	assert.Error(t, list.Close())
}

func TestRenderer_RenderFrames(t *testing.T) {
	assert := assert.New(t)
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Load(context.Background(), loader.CubeGrid(2, 3, mgl32.Vec3{})))
	dev.Trace().Reset()

	const frames = 5
	for i := 0; i < frames; i++ {
		require.NoError(t, r.RenderFrame(context.Background()))
	}
	require.NoError(t, r.WaitIdle(context.Background()))
	require.NoError(t, dev.Err())

	assert.Equal(uint64(frames), r.FrameNumber())
	assert.Equal(uint64(frames), softgpu.Presents(r.SwapChain()))
	entries := len(r.Models()[0].DrawEntries())
	assert.Len(dev.Trace().Draws(), frames*2*entries)

	// frames 0, 2, 4 used slot 0 and frames 1, 3 slot 1
	assert.Equal(uint64(3), r.Frames()[0].Fence().CompletedValue())
	assert.Equal(uint64(2), r.Frames()[1].Fence().CompletedValue())
	// back buffers 0 and 1 were presented twice, back buffer 2 once
	assert.Equal(uint64(2), r.backBufferFences[0].CompletedValue())
	assert.Equal(uint64(2), r.backBufferFences[1].CompletedValue())
	assert.Equal(uint64(1), r.backBufferFences[2].CompletedValue())

	var targets []string
	for _, d := range dev.Trace().Draws() {
		if d.Pipeline == "scene_pass" && (len(targets) == 0 || targets[len(targets)-1] != d.RenderTargets[0]) {
			targets = append(targets, d.RenderTargets[0])
		}
	}
	assert.Equal([]string{"back_buffer_0", "back_buffer_1", "back_buffer_2", "back_buffer_0", "back_buffer_1"}, targets)
}

func TestRenderer_SlotExclusion(t *testing.T) {
	assert := assert.New(t)
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Load(context.Background(), loader.CubeGrid(1, 3, mgl32.Vec3{})))
	q := directQueue(r)

	q.Hold()
	require.NoError(t, r.RenderFrame(context.Background()))
	require.NoError(t, r.RenderFrame(context.Background()))

	done := make(chan error, 1)
	go func() { done <- r.RenderFrame(context.Background()) }()
	select {
	case err := <-done:
		t.Fatalf("frame 2 recorded while frame 0 was still on the GPU: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(frame.StateSubmitted, r.Frames()[0].State())

	q.Resume()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("frame 2 never started")
	}
	require.NoError(t, r.WaitIdle(context.Background()))
	require.NoError(t, dev.Err())
	assert.Equal(uint64(3), r.FrameNumber())
}

func TestRenderer_Resize(t *testing.T) {
	assert := assert.New(t)
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Load(context.Background(), loader.CubeGrid(1, 3, mgl32.Vec3{})))
	require.NoError(t, r.RenderFrame(context.Background()))

	require.NoError(t, r.Resize(0, 40))
	desc := r.SwapChain().Desc()
	assert.Equal(uint32(1), desc.Width, "zero is clamped to one")
	assert.Equal(uint32(40), desc.Height)
	assert.Equal(uint32(DefaultBackBufferCount), desc.BufferCount)
	for _, f := range r.Frames() {
		assert.Equal(uint32(1), f.DepthBuffer().Desc().Width)
		assert.Equal(uint32(40), f.DepthBuffer().Desc().Height)
	}
	assert.Equal(float32(40), r.viewport.Height)
	assert.InDelta(1.0/40.0, r.Scene().Camera().Aspect(), 1e-6)

	require.NoError(t, r.Resize(70000, 2))
	assert.Equal(uint32(MaxExtent), r.SwapChain().Desc().Width)

	require.NoError(t, r.Resize(80, 60))
	require.NoError(t, r.RenderFrame(context.Background()))
	require.NoError(t, r.WaitIdle(context.Background()))
	require.NoError(t, dev.Err())
}

func TestRenderer_OnKeys(t *testing.T) {
	r, _ := newTestRenderer(t)
	before := r.Scene().Camera().Controller().Position()

	r.OnKeys([]int{common.KeyW, common.KeyD})

	after := r.Scene().Camera().Controller().Position()
	assert.True(t, after.ApproxEqual(before.Add(mgl32.Vec3{0.05, 0, 0.05})))
}
