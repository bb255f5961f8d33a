package renderer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/loader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/model"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/descriptor"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/frame"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/scene"
	"github.com/Carmen-Shannon/oxy-bindless/engine/window"
)

var (
	// ErrNotLoaded is returned by RenderFrame before Load completed.
	ErrNotLoaded = errors.New("renderer has no loaded models")

	// ErrAlreadyLoaded is returned by a second call to Load. The shared heaps are sized once.
	ErrAlreadyLoaded = errors.New("renderer already loaded")
)

const (
	// DefaultBackBufferCount is the number of swap chain buffers.
	DefaultBackBufferCount = 3

	// MaxExtent clamps each back buffer dimension on resize.
	MaxExtent = 0xffff

	defaultWidth  = 1280
	defaultHeight = 720
)

// shadowSamplerDesc compares against the shadow map; texels outside it read as fully lit.
var shadowSamplerDesc = gpu.SamplerDesc{
	Filter:      gpu.FilterLinear,
	AddressU:    gpu.AddressBorder,
	AddressV:    gpu.AddressBorder,
	AddressW:    gpu.AddressBorder,
	Comparison:  true,
	Compare:     gpu.CompareLessEqual,
	BorderColor: [4]float32{1, 1, 1, 1},
	MaxLOD:      1,
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	device      gpu.Device
	ownsDevice  bool

	directQueue gpu.CommandQueue
	copyQueue   gpu.CommandQueue
	directAlloc gpu.CommandAllocator
	copyAlloc   gpu.CommandAllocator
	directList  gpu.CommandList
	copyList    gpu.CommandList

	swapChain        gpu.SwapChain
	rtvHeap          gpu.DescriptorHeap
	backBufferFences []gpu.Fence
	backBufferValues []uint64

	fence      gpu.Fence
	fenceValue uint64

	compiler       shader.Compiler
	shadowPipeline pipeline.Pipeline
	scenePipeline  pipeline.Pipeline

	sched  *frame.Scheduler
	frames []frame.FrameResource
	scene  scene.Scene

	models        []model.Model
	viewHeap      gpu.DescriptorHeap
	samplerHeap   gpu.DescriptorHeap
	shadowSampler gpu.GPUHandle
	loaded        bool

	width    uint32
	height   uint32
	viewport gpu.Viewport
	scissor  gpu.Rect

	// Pre-creation config collected from builder options
	backBufferCount      uint32
	presentMode          PresentMode
	fenceTimeout         time.Duration
	localCap             uint32
	shadowMapSize        uint32
	forceFallbackAdapter bool
}

// Renderer draws loaded models with a shadow pass and a lit scene pass, keeping FramesInFlight
// frames recorded ahead of the GPU.
//
// Every method must be called from the goroutine that owns the render loop.
type Renderer interface {
	// Load uploads the scenes, sizes and fills the shared descriptor heaps and blocks until the
	// uploads are complete and shader readable. It may be called once.
	//
	// Parameters:
	//   - ctx: bounds the two load waits
	//   - scenes: the imported scenes, one model each, in heap order
	//
	// Returns:
	//   - error: ErrAlreadyLoaded, a model or descriptor error, or a gpu.ErrDeviceHung wrap
	Load(ctx context.Context, scenes ...*loader.Scene) error

	// RenderFrame renders and presents the next frame. It blocks only while the frame's slot is still
	// in use by the GPU.
	//
	// Parameters:
	//   - ctx: bounds the wait for the slot
	//
	// Returns:
	//   - error: ErrNotLoaded, or the frame's recording or synchronization error
	RenderFrame(ctx context.Context) error

	// Resize waits for the GPU to go idle and recreates the back buffers, render target views and
	// depth buffers. Each dimension is clamped to [1, MaxExtent].
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the swap chain or depth buffers could not be recreated
	Resize(width, height int) error

	// WaitIdle signals the global fence on the direct queue and waits for it.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: a gpu.ErrDeviceHung wrap if the wait timed out
	WaitIdle(ctx context.Context) error

	// OnKeys forwards the keys pressed this frame to the scene camera.
	//
	// Parameters:
	//   - keys: the pressed key codes
	OnKeys(keys []int)

	// FrameNumber returns the number of frames rendered.
	//
	// Returns:
	//   - uint64: the frame counter
	FrameNumber() uint64

	// Models returns the loaded models in load order.
	//
	// Returns:
	//   - []model.Model: the models
	Models() []model.Model

	// Frames returns the frame resources indexed by slot.
	//
	// Returns:
	//   - []frame.FrameResource: the frame resources
	Frames() []frame.FrameResource

	// Scene returns the camera and light state frames are rendered with.
	//
	// Returns:
	//   - scene.Scene: the scene
	Scene() scene.Scene

	// Device returns the device the renderer draws with.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// SwapChain returns the presentable back buffers.
	//
	// Returns:
	//   - gpu.SwapChain: the swap chain
	SwapChain() gpu.SwapChain

	// Release waits for the GPU and frees every resource. An injected device is left open.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates the device, queues, swap chain, fences, pipelines and frame resources.
// Any failure is a setup error the caller should treat as fatal.
//
// Parameters:
//   - backendType: the device implementation to use
//   - win: the window to present into; may be nil for BackendTypeSoft
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if any GPU object could not be created
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (_ Renderer, err error) {
	r := &renderer{
		mu:              &sync.Mutex{},
		backendType:     backendType,
		backBufferCount: DefaultBackBufferCount,
		fenceTimeout:    frame.DefaultFenceTimeout,
		localCap:        model.DefaultLocalTransformCap,
	}
	if win != nil {
		r.width, r.height = uint32(win.Width()), uint32(win.Height())
	}
	for _, opt := range options {
		opt(r)
	}
	r.width = uint32(common.Clamp(int(common.Coalesce(r.width, defaultWidth)), 1, MaxExtent))
	r.height = uint32(common.Clamp(int(common.Coalesce(r.height, defaultHeight)), 1, MaxExtent))

	defer func() {
		if err != nil {
			r.release()
		}
	}()

	if r.device == nil {
		if r.device, err = r.createDevice(win); err != nil {
			return nil, fmt.Errorf("create %s device: %w", backendType, err)
		}
		r.ownsDevice = true
	}
	if r.compiler == nil {
		r.compiler = r.defaultCompiler()
	}
	if r.scene == nil {
		r.scene = scene.NewScene("default")
	}
	r.sched = frame.NewScheduler(frame.WithFenceTimeout(r.fenceTimeout))

	if err = r.createCommandObjects(); err != nil {
		return nil, err
	}
	if r.fence, err = r.device.CreateFence(0); err != nil {
		return nil, fmt.Errorf("create global fence: %w", err)
	}

	r.swapChain, err = r.device.CreateSwapChain(r.directQueue, gpu.SwapChainDesc{
		Width:       r.width,
		Height:      r.height,
		BufferCount: r.backBufferCount,
		Format:      gpu.FormatBGRA8Unorm,
	})
	if err != nil {
		return nil, fmt.Errorf("create swap chain: %w", err)
	}
	if err = r.createRenderTargets(); err != nil {
		return nil, err
	}

	if r.shadowPipeline, err = pipeline.NewShadowPipeline(r.device, r.compiler); err != nil {
		return nil, fmt.Errorf("create shadow pipeline: %w", err)
	}
	r.scenePipeline, err = pipeline.NewScenePipeline(r.device, r.compiler,
		pipeline.WithRenderTargetFormat(r.swapChain.Desc().Format))
	if err != nil {
		return nil, fmt.Errorf("create scene pipeline: %w", err)
	}

	var frameOpts []frame.FrameResourceBuilderOption
	if r.shadowMapSize > 0 {
		frameOpts = append(frameOpts, frame.WithShadowMapSize(r.shadowMapSize))
	}
	for i := 0; i < frame.FramesInFlight; i++ {
		f, err := frame.NewFrameResource(r.device, i, r.width, r.height, frameOpts...)
		if err != nil {
			return nil, err
		}
		r.frames = append(r.frames, f)
	}

	r.setViewport(r.width, r.height)
	log.Printf("[Renderer] %s backend ready: %dx%d, %d back buffers, %d frames in flight",
		backendType, r.width, r.height, r.backBufferCount, frame.FramesInFlight)
	return r, nil
}

func (r *renderer) createCommandObjects() (err error) {
	if r.directQueue, err = r.device.CreateCommandQueue(gpu.CommandListDirect); err != nil {
		return fmt.Errorf("create direct queue: %w", err)
	}
	if r.copyQueue, err = r.device.CreateCommandQueue(gpu.CommandListCopy); err != nil {
		return fmt.Errorf("create copy queue: %w", err)
	}
	if r.directAlloc, err = r.device.CreateCommandAllocator(gpu.CommandListDirect); err != nil {
		return fmt.Errorf("create direct allocator: %w", err)
	}
	if r.copyAlloc, err = r.device.CreateCommandAllocator(gpu.CommandListCopy); err != nil {
		return fmt.Errorf("create copy allocator: %w", err)
	}
	if r.directList, err = r.device.CreateCommandList(gpu.CommandListDirect, r.directAlloc); err != nil {
		return fmt.Errorf("create direct list: %w", err)
	}
	if r.copyList, err = r.device.CreateCommandList(gpu.CommandListCopy, r.copyAlloc); err != nil {
		return fmt.Errorf("create copy list: %w", err)
	}
	if err = r.directList.Close(); err != nil {
		return err
	}
	return r.copyList.Close()
}

// createRenderTargets writes one RTV per back buffer and gives each back buffer a fresh fence.
func (r *renderer) createRenderTargets() error {
	count := r.swapChain.Desc().BufferCount
	heap, err := r.device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
		Label:          "back_buffer_rtv",
		Type:           gpu.HeapTypeRTV,
		NumDescriptors: count,
	})
	if err != nil {
		return fmt.Errorf("create rtv heap: %w", err)
	}
	r.rtvHeap = heap

	for i := uint32(0); i < count; i++ {
		bb, err := r.swapChain.BackBuffer(i)
		if err != nil {
			return err
		}
		if err := r.device.CreateRenderTargetView(bb, r.rtv(i)); err != nil {
			return fmt.Errorf("create rtv %d: %w", i, err)
		}
		f, err := r.device.CreateFence(0)
		if err != nil {
			return fmt.Errorf("create back buffer fence %d: %w", i, err)
		}
		r.backBufferFences = append(r.backBufferFences, f)
		r.backBufferValues = append(r.backBufferValues, 0)
	}
	return nil
}

func (r *renderer) releaseRenderTargets() {
	for _, f := range r.backBufferFences {
		f.Release()
	}
	r.backBufferFences, r.backBufferValues = nil, nil
	if r.rtvHeap != nil {
		r.rtvHeap.Release()
		r.rtvHeap = nil
	}
}

func (r *renderer) rtv(i uint32) gpu.CPUHandle {
	return r.rtvHeap.CPUStart().Offset(int(i), r.rtvHeap.Stride())
}

func (r *renderer) setViewport(width, height uint32) {
	r.width, r.height = width, height
	r.viewport = gpu.Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1}
	r.scissor = gpu.Rect{Right: int32(width), Bottom: int32(height)}
	r.scene.SetViewport(width, height)
}

func (r *renderer) Load(ctx context.Context, scenes ...*loader.Scene) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return ErrAlreadyLoaded
	}

	if err := r.copyAlloc.Reset(); err != nil {
		return fmt.Errorf("reset copy allocator: %w", err)
	}
	if err := r.copyList.Reset(r.copyAlloc); err != nil {
		return fmt.Errorf("reset copy list: %w", err)
	}
	if err := r.directAlloc.Reset(); err != nil {
		return fmt.Errorf("reset direct allocator: %w", err)
	}
	if err := r.directList.Reset(r.directAlloc); err != nil {
		return fmt.Errorf("reset direct list: %w", err)
	}

	defer func() {
		if err != nil {
			r.releaseModels()
		}
	}()
	for _, s := range scenes {
		m, err := model.Load(r.device, s, r.copyList, model.WithLocalTransformCap(r.localCap))
		if err != nil {
			return err
		}
		r.models = append(r.models, m)
	}

	views, samplers, err := r.createSharedHeaps()
	if err != nil {
		return err
	}
	if err := r.writeShadowDescriptors(views, samplers); err != nil {
		return err
	}
	for _, m := range r.models {
		if err := m.CopyDescriptorsInto(views, samplers); err != nil {
			return fmt.Errorf("copy descriptors of %q: %w", m.Name(), err)
		}
	}

	// The copy queue cannot make resources shader readable, so the uploads finish there first and
	// the direct queue transitions them afterwards.
	if err := r.submitAndWait(ctx, r.copyQueue, r.copyList); err != nil {
		return fmt.Errorf("upload models: %w", err)
	}
	for _, m := range r.models {
		m.TransitionToShaderReadable(r.directList)
	}
	if err := r.submitAndWait(ctx, r.directQueue, r.directList); err != nil {
		return fmt.Errorf("transition models: %w", err)
	}

	for _, m := range r.models {
		m.ReleaseStaging()
	}
	r.loaded = true
	log.Printf("[Renderer] loaded %d models: %d view descriptors, %d sampler descriptors",
		len(r.models), r.viewHeap.Desc().NumDescriptors, r.samplerHeap.Desc().NumDescriptors)
	return nil
}

// createSharedHeaps sizes the shader-visible heaps exactly for the shadow views and every model region.
func (r *renderer) createSharedHeaps() (*descriptor.Allocator, *descriptor.Allocator, error) {
	var sizing descriptor.Sizing
	sizing.AddShadowViews(frame.FramesInFlight)
	for _, m := range r.models {
		sizing.AddModel(m.Counts())
	}

	var err error
	r.viewHeap, err = r.device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
		Label:          "shared_views",
		Type:           gpu.HeapTypeCBVSRVUAV,
		NumDescriptors: sizing.CBVSRVUAV(),
		ShaderVisible:  true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create shared view heap: %w", err)
	}
	r.samplerHeap, err = r.device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
		Label:          "shared_samplers",
		Type:           gpu.HeapTypeSampler,
		NumDescriptors: sizing.Samplers(),
		ShaderVisible:  true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create shared sampler heap: %w", err)
	}
	return descriptor.NewAllocator(r.viewHeap), descriptor.NewAllocator(r.samplerHeap), nil
}

// writeShadowDescriptors places frame i's shadow map SRV at view slot i and the comparison sampler
// at sampler slot 0, ahead of every model region.
func (r *renderer) writeShadowDescriptors(views, samplers *descriptor.Allocator) error {
	shadowViews, err := views.AllocateRange(frame.FramesInFlight)
	if err != nil {
		return err
	}
	stride := views.Heap().Stride()
	for i, f := range r.frames {
		if err := f.BindShadowView(shadowViews.CPU.Offset(i, stride), shadowViews.GPU.Offset(i, stride)); err != nil {
			return err
		}
	}

	sampler, err := samplers.AllocateRange(1)
	if err != nil {
		return err
	}
	if err := r.device.CreateSampler(shadowSamplerDesc, sampler.CPU); err != nil {
		return fmt.Errorf("create shadow sampler: %w", err)
	}
	r.shadowSampler = sampler.GPU
	return nil
}

// submitAndWait closes and executes list, signals the global fence and blocks until it is reached.
func (r *renderer) submitAndWait(ctx context.Context, queue gpu.CommandQueue, list gpu.CommandList) error {
	if err := list.Close(); err != nil {
		return err
	}
	if err := queue.ExecuteCommandLists(list); err != nil {
		return err
	}
	return r.signalAndWait(ctx, queue)
}

func (r *renderer) signalAndWait(ctx context.Context, queue gpu.CommandQueue) error {
	r.fenceValue++
	if err := queue.Signal(r.fence, r.fenceValue); err != nil {
		return err
	}
	waitCtx, cancel := r.sched.WaitContext(ctx)
	defer cancel()
	return r.fence.Wait(waitCtx, r.fenceValue)
}

func (r *renderer) RenderFrame(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return ErrNotLoaded
	}

	slot := r.sched.Slot()
	index := r.swapChain.CurrentBackBufferIndex()
	backBuffer, err := r.swapChain.BackBuffer(index)
	if err != nil {
		return err
	}

	in := frame.FrameInputs{
		Queue:          r.directQueue,
		SwapChain:      r.swapChain,
		BackBuffer:     backBuffer,
		RTV:            r.rtv(index),
		Heaps:          []gpu.DescriptorHeap{r.viewHeap, r.samplerHeap},
		ShadowSampler:  r.shadowSampler,
		ShadowPipeline: r.shadowPipeline,
		ScenePipeline:  r.scenePipeline,
		Models:         r.models,
		Scene:          r.scene,
		Viewport:       r.viewport,
		Scissor:        r.scissor,
		SyncInterval:   r.presentMode.SyncInterval(),
	}
	if err := r.frames[slot].Render(ctx, r.sched, in); err != nil {
		if errors.Is(err, gpu.ErrDeviceHung) || errors.Is(err, gpu.ErrDeviceRemoved) {
			log.Printf("[Renderer] frame %d lost the device: %v", r.sched.FrameNumber(), err)
		}
		return fmt.Errorf("render frame %d: %w", r.sched.FrameNumber(), err)
	}

	r.backBufferValues[index]++
	if err := r.directQueue.Signal(r.backBufferFences[index], r.backBufferValues[index]); err != nil {
		return fmt.Errorf("signal back buffer %d: %w", index, err)
	}
	r.sched.Advance()
	return nil
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := uint32(common.Clamp(width, 1, MaxExtent))
	h := uint32(common.Clamp(height, 1, MaxExtent))

	if err := r.waitIdle(context.Background()); err != nil {
		log.Printf("[Renderer] resize to %dx%d: GPU did not go idle: %v", w, h, err)
	}

	r.releaseRenderTargets()
	if err := r.swapChain.ResizeBuffers(r.backBufferCount, w, h); err != nil {
		return fmt.Errorf("resize swap chain to %dx%d: %w", w, h, err)
	}
	if err := r.createRenderTargets(); err != nil {
		return err
	}
	for _, f := range r.frames {
		if err := f.Resize(w, h); err != nil {
			return err
		}
	}
	r.setViewport(w, h)
	log.Printf("[Renderer] resized to %dx%d", w, h)
	return nil
}

func (r *renderer) WaitIdle(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitIdle(ctx)
}

func (r *renderer) waitIdle(ctx context.Context) error {
	if r.directQueue == nil || r.fence == nil {
		return nil
	}
	if err := r.signalAndWait(ctx, r.directQueue); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	return nil
}

func (r *renderer) OnKeys(keys []int) {
	r.scene.OnKeys(keys)
}

func (r *renderer) FrameNumber() uint64 {
	return r.sched.FrameNumber()
}

func (r *renderer) Models() []model.Model {
	return r.models
}

func (r *renderer) Frames() []frame.FrameResource {
	return r.frames
}

func (r *renderer) Scene() scene.Scene {
	return r.scene
}

func (r *renderer) Device() gpu.Device {
	return r.device
}

func (r *renderer) SwapChain() gpu.SwapChain {
	return r.swapChain
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.waitIdle(context.Background()); err != nil {
		log.Printf("[Renderer] release: %v", err)
	}
	r.release()
}

func (r *renderer) releaseModels() {
	for _, m := range r.models {
		m.Release()
	}
	r.models = nil
	if r.viewHeap != nil {
		r.viewHeap.Release()
		r.viewHeap = nil
	}
	if r.samplerHeap != nil {
		r.samplerHeap.Release()
		r.samplerHeap = nil
	}
}

// release frees whatever was created so far. It is also the cleanup path of a failed NewRenderer.
func (r *renderer) release() {
	r.releaseModels()
	for _, f := range r.frames {
		f.Release()
	}
	r.frames = nil
	for _, p := range []pipeline.Pipeline{r.shadowPipeline, r.scenePipeline} {
		if p != nil {
			p.Release()
		}
	}
	r.shadowPipeline, r.scenePipeline = nil, nil
	r.releaseRenderTargets()
	if r.swapChain != nil {
		r.swapChain.Release()
		r.swapChain = nil
	}
	if r.fence != nil {
		r.fence.Release()
		r.fence = nil
	}
	for _, q := range []gpu.CommandQueue{r.copyQueue, r.directQueue} {
		if q != nil {
			q.Release()
		}
	}
	r.copyQueue, r.directQueue = nil, nil
	if r.ownsDevice && r.device != nil {
		r.device.Release()
		r.device = nil
	}
	r.loaded = false
}
