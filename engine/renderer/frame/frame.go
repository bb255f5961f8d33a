// Package frame records and submits the two passes of one frame. Each FrameResource owns the command
// list, constant buffers, shadow map and depth buffer of one frame-in-flight slot and only touches
// them after the slot's fence shows the GPU finished the previous frame that used it.
package frame

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/light"
	"github.com/Carmen-Shannon/oxy-bindless/engine/model"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-bindless/engine/scene"
)

// ErrInvalidState is returned by Render when the frame is already recording or a previous submit failed.
var ErrInvalidState = errors.New("frame resource in invalid state")

// State is the lifecycle state of a FrameResource.
type State int

const (
	StateIdle State = iota
	StateRecordingShadow
	StateRecordingScene
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecordingShadow:
		return "recording_shadow"
	case StateRecordingScene:
		return "recording_scene"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Depth target slots of the per-frame DSV heap.
const (
	dsvShadow = iota
	dsvScene
	dsvCount
)

var clearColor = [4]float32{0, 0, 0, 1}

// FrameInputs is everything Render reads but does not own.
type FrameInputs struct {
	Queue     gpu.CommandQueue
	SwapChain gpu.SwapChain

	// BackBuffer is the swap chain buffer this frame renders into and RTV its render target view.
	BackBuffer gpu.Texture
	RTV        gpu.CPUHandle

	// Heaps are the shared shader-visible CBV/SRV/UAV and sampler heaps.
	Heaps []gpu.DescriptorHeap

	// ShadowSampler is the comparison sampler table shared by every frame.
	ShadowSampler gpu.GPUHandle

	ShadowPipeline pipeline.Pipeline
	ScenePipeline  pipeline.Pipeline

	Models []model.Model
	Scene  scene.Scene

	Viewport     gpu.Viewport
	Scissor      gpu.Rect
	SyncInterval uint32
}

// frameResource is the implementation of the FrameResource interface.
type frameResource struct {
	mu        sync.Mutex
	state     State
	broken    bool
	submitted uint64

	slot   int
	device gpu.Device

	alloc gpu.CommandAllocator
	list  gpu.CommandList
	fence gpu.Fence

	sceneCB     gpu.Buffer
	lightCB     gpu.Buffer
	sceneMapped []byte
	lightMapped []byte

	dsvHeap     gpu.DescriptorHeap
	shadowSize  uint32
	shadowMap   gpu.Texture
	depthBuffer gpu.Texture
	shadowView  gpu.GPUHandle
}

// FrameResource owns the per-slot state of one frame in flight.
type FrameResource interface {
	// Slot returns the frame-in-flight slot this resource serves.
	//
	// Returns:
	//   - int: the slot index
	Slot() int

	// State returns the lifecycle state. A submitted frame whose fence has been reached reports idle.
	//
	// Returns:
	//   - State: the current state
	State() State

	// Fence returns the fence signalled when this slot's submitted work completes.
	//
	// Returns:
	//   - gpu.Fence: the slot fence
	Fence() gpu.Fence

	// ShadowMap returns the depth texture the shadow pass renders into.
	//
	// Returns:
	//   - gpu.Texture: the shadow map
	ShadowMap() gpu.Texture

	// DepthBuffer returns the window sized depth buffer of the scene pass.
	//
	// Returns:
	//   - gpu.Texture: the scene depth buffer
	DepthBuffer() gpu.Texture

	// BindShadowView writes the shadow map SRV into a slot of the shared heap and records the GPU handle
	// the scene pass binds it through.
	//
	// Parameters:
	//   - cpu: the shared heap slot to write
	//   - table: the GPU handle of the same slot
	//
	// Returns:
	//   - error: an error if the view could not be created
	BindShadowView(cpu gpu.CPUHandle, table gpu.GPUHandle) error

	// ShadowView returns the GPU handle bound by BindShadowView.
	//
	// Returns:
	//   - gpu.GPUHandle: the shadow SRV table
	ShadowView() gpu.GPUHandle

	// Resize recreates the scene depth buffer. The GPU must be idle.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the depth buffer could not be created
	Resize(width, height uint32) error

	// Render waits for the slot to be free, uploads the scene and light constants, records the shadow
	// and scene passes, executes them, presents and signals the slot fence.
	//
	// Parameters:
	//   - ctx: bounds the wait for the slot's previous frame
	//   - sched: the frame scheduler holding the slot's pending fence value
	//   - in: the shared resources the frame reads
	//
	// Returns:
	//   - error: ErrInvalidState, a gpu.ErrDeviceHung wrap if the wait timed out, or a recording error
	Render(ctx context.Context, sched *Scheduler, in FrameInputs) error

	// Release frees every resource the frame owns. The GPU must be done with them.
	Release()
}

var _ FrameResource = &frameResource{}

// NewFrameResource creates the resources of one slot. The shadow map starts shader readable so the
// first frame transitions it like every other.
//
// Parameters:
//   - device: the device to create resources on
//   - slot: the frame-in-flight slot
//   - width: the initial scene depth buffer width
//   - height: the initial scene depth buffer height
//   - options: functional options for the frame resource
//
// Returns:
//   - FrameResource: the frame resource
//   - error: an error if any resource could not be created
func NewFrameResource(device gpu.Device, slot int, width, height uint32, options ...FrameResourceBuilderOption) (_ FrameResource, err error) {
	f := &frameResource{
		slot:       slot,
		device:     device,
		shadowSize: light.ShadowMapResolution,
	}
	for _, opt := range options {
		opt(f)
	}
	defer func() {
		if err != nil {
			f.Release()
		}
	}()

	if f.alloc, err = device.CreateCommandAllocator(gpu.CommandListDirect); err != nil {
		return nil, fmt.Errorf("frame %d allocator: %w", slot, err)
	}
	if f.list, err = device.CreateCommandList(gpu.CommandListDirect, f.alloc); err != nil {
		return nil, fmt.Errorf("frame %d command list: %w", slot, err)
	}
	if err = f.list.Close(); err != nil {
		return nil, fmt.Errorf("frame %d command list: %w", slot, err)
	}
	if f.fence, err = device.CreateFence(0); err != nil {
		return nil, fmt.Errorf("frame %d fence: %w", slot, err)
	}

	if f.sceneCB, f.sceneMapped, err = f.createConstantBuffer("scene_constants", scene.SceneConstantsBufferSize); err != nil {
		return nil, err
	}
	if f.lightCB, f.lightMapped, err = f.createConstantBuffer("light_constants", light.LightConstantsBufferSize); err != nil {
		return nil, err
	}

	f.dsvHeap, err = device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
		Label:          fmt.Sprintf("frame_%d_dsv", slot),
		Type:           gpu.HeapTypeDSV,
		NumDescriptors: dsvCount,
	})
	if err != nil {
		return nil, fmt.Errorf("frame %d dsv heap: %w", slot, err)
	}

	f.shadowMap, err = device.CreateTexture(gpu.TextureDesc{
		Label:        fmt.Sprintf("frame_%d_shadow_map", slot),
		Width:        f.shadowSize,
		Height:       f.shadowSize,
		Format:       gpu.FormatD32Float,
		Usage:        gpu.TextureUsageDepthStencil | gpu.TextureUsageShaderResource,
		InitialState: gpu.StatePixelShaderResource,
	})
	if err != nil {
		return nil, fmt.Errorf("frame %d shadow map: %w", slot, err)
	}
	if err = device.CreateDepthStencilView(f.shadowMap, f.dsv(dsvShadow)); err != nil {
		return nil, fmt.Errorf("frame %d shadow dsv: %w", slot, err)
	}

	if err = f.Resize(width, height); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *frameResource) createConstantBuffer(name string, size uint64) (gpu.Buffer, []byte, error) {
	buf, err := f.device.CreateBuffer(gpu.BufferDesc{
		Label:        fmt.Sprintf("frame_%d_%s", f.slot, name),
		Size:         size,
		Heap:         gpu.HeapUpload,
		InitialState: gpu.StateGenericRead,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("frame %d %s: %w", f.slot, name, err)
	}
	mapped, err := buf.Map()
	if err != nil {
		buf.Release()
		return nil, nil, fmt.Errorf("frame %d map %s: %w", f.slot, name, err)
	}
	return buf, mapped, nil
}

func (f *frameResource) dsv(i int) gpu.CPUHandle {
	return f.dsvHeap.CPUStart().Offset(i, f.dsvHeap.Stride())
}

func (f *frameResource) Slot() int {
	return f.slot
}

func (f *frameResource) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateSubmitted && !f.broken && f.fence.CompletedValue() >= f.submitted {
		return StateIdle
	}
	return f.state
}

func (f *frameResource) Fence() gpu.Fence {
	return f.fence
}

func (f *frameResource) ShadowMap() gpu.Texture {
	return f.shadowMap
}

func (f *frameResource) DepthBuffer() gpu.Texture {
	return f.depthBuffer
}

func (f *frameResource) BindShadowView(cpu gpu.CPUHandle, table gpu.GPUHandle) error {
	if err := f.device.CreateTextureView(f.shadowMap, cpu); err != nil {
		return fmt.Errorf("frame %d shadow srv: %w", f.slot, err)
	}
	f.shadowView = table
	return nil
}

func (f *frameResource) ShadowView() gpu.GPUHandle {
	return f.shadowView
}

func (f *frameResource) Resize(width, height uint32) error {
	depth, err := f.device.CreateTexture(gpu.TextureDesc{
		Label:        fmt.Sprintf("frame_%d_depth", f.slot),
		Width:        width,
		Height:       height,
		Format:       gpu.FormatD32Float,
		Usage:        gpu.TextureUsageDepthStencil,
		InitialState: gpu.StateDepthWrite,
	})
	if err != nil {
		return fmt.Errorf("frame %d depth buffer %dx%d: %w", f.slot, width, height, err)
	}
	if err := f.device.CreateDepthStencilView(depth, f.dsv(dsvScene)); err != nil {
		depth.Release()
		return fmt.Errorf("frame %d depth dsv: %w", f.slot, err)
	}
	if f.depthBuffer != nil {
		f.depthBuffer.Release()
	}
	f.depthBuffer = depth
	return nil
}

func (f *frameResource) setState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *frameResource) Render(ctx context.Context, sched *Scheduler, in FrameInputs) error {
	f.mu.Lock()
	if f.broken || f.state == StateRecordingShadow || f.state == StateRecordingScene {
		state, broken := f.state, f.broken
		f.mu.Unlock()
		return fmt.Errorf("%w: frame %d is %s (failed submit: %t)", ErrInvalidState, f.slot, state, broken)
	}
	f.mu.Unlock()

	waitCtx, cancel := sched.WaitContext(ctx)
	err := f.fence.Wait(waitCtx, sched.Pending(f.slot))
	cancel()
	if err != nil {
		return fmt.Errorf("frame %d wait for reuse: %w", f.slot, err)
	}
	f.setState(StateIdle)

	f.writeConstants(in.Scene)

	f.setState(StateRecordingShadow)
	if err := f.recordShadowPass(in); err != nil {
		f.setState(StateIdle)
		return err
	}

	f.list.ResourceBarrier(
		gpu.Transition{Resource: in.BackBuffer, Before: gpu.StatePresent, After: gpu.StateRenderTarget},
		gpu.Transition{Resource: f.shadowMap, Before: gpu.StateDepthWrite, After: gpu.StatePixelShaderResource},
	)

	f.setState(StateRecordingScene)
	f.recordScenePass(in)
	f.list.ResourceBarrier(gpu.Transition{Resource: in.BackBuffer, Before: gpu.StateRenderTarget, After: gpu.StatePresent})

	if err := f.list.Close(); err != nil {
		f.setState(StateIdle)
		return fmt.Errorf("frame %d close: %w", f.slot, err)
	}
	if err := in.Queue.ExecuteCommandLists(f.list); err != nil {
		f.setState(StateIdle)
		return fmt.Errorf("frame %d execute: %w", f.slot, err)
	}
	f.setState(StateSubmitted)

	if err := in.SwapChain.Present(in.SyncInterval); err != nil {
		f.fail()
		return fmt.Errorf("frame %d present: %w", f.slot, err)
	}
	value := sched.NextFenceValue(f.slot)
	if err := in.Queue.Signal(f.fence, value); err != nil {
		f.fail()
		return fmt.Errorf("frame %d signal: %w", f.slot, err)
	}
	f.mu.Lock()
	f.submitted = value
	f.mu.Unlock()
	return nil
}

func (f *frameResource) fail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken = true
}

// writeConstants copies the camera and light state into the mapped buffers. The slot owns them
// exclusively until it is submitted.
func (f *frameResource) writeConstants(s scene.Scene) {
	sc := s.SceneConstants()
	sc.MarshalTo(f.sceneMapped)
	lc := s.LightConstants()
	lc.MarshalTo(f.lightMapped)
}

func (f *frameResource) recordShadowPass(in FrameInputs) error {
	if err := f.alloc.Reset(); err != nil {
		return fmt.Errorf("frame %d allocator reset: %w", f.slot, err)
	}
	if err := f.list.Reset(f.alloc); err != nil {
		return fmt.Errorf("frame %d list reset: %w", f.slot, err)
	}

	l := f.list
	l.SetPipelineState(in.ShadowPipeline.State())
	l.SetGraphicsRootSignature(in.ShadowPipeline.RootSignature())
	l.SetDescriptorHeaps(in.Heaps...)
	l.SetGraphicsRootConstantBufferView(pipeline.ShadowParamScene, f.sceneCB, 0)
	l.SetGraphicsRootConstantBufferView(pipeline.ShadowParamLight, f.lightCB, 0)

	size := float32(f.shadowSize)
	l.SetViewport(gpu.Viewport{Width: size, Height: size, MaxDepth: 1})
	l.SetScissorRect(gpu.Rect{Right: int32(f.shadowSize), Bottom: int32(f.shadowSize)})

	l.ResourceBarrier(gpu.Transition{Resource: f.shadowMap, Before: gpu.StatePixelShaderResource, After: gpu.StateDepthWrite})
	shadowDSV := f.dsv(dsvShadow)
	l.SetRenderTargets(nil, &shadowDSV)
	l.ClearDepthStencilView(shadowDSV, 1)

	for _, m := range in.Models {
		for i, e := range m.DrawEntries() {
			l.SetGraphicsRootDescriptorTable(pipeline.ShadowParamLocal, m.LocalTable(i))
			l.SetVertexBuffer(e.VertexView)
			l.SetIndexBuffer(e.IndexView)
			l.DrawIndexedInstanced(e.IndexCount, 1, e.FirstIndex, 0, 0)
		}
	}
	return nil
}

func (f *frameResource) recordScenePass(in FrameInputs) {
	l := f.list
	l.ClearRenderTargetView(in.RTV, clearColor)
	l.SetPipelineState(in.ScenePipeline.State())
	l.SetGraphicsRootSignature(in.ScenePipeline.RootSignature())
	l.SetGraphicsRootConstantBufferView(pipeline.SceneParamScene, f.sceneCB, 0)
	l.SetGraphicsRootConstantBufferView(pipeline.SceneParamLight, f.lightCB, 0)
	l.SetGraphicsRootDescriptorTable(pipeline.SceneParamShadowMap, f.shadowView)
	l.SetGraphicsRootDescriptorTable(pipeline.SceneParamShadowSampler, in.ShadowSampler)
	l.SetViewport(in.Viewport)
	l.SetScissorRect(in.Scissor)

	depthDSV := f.dsv(dsvScene)
	l.ClearDepthStencilView(depthDSV, 1)
	l.SetRenderTargets([]gpu.CPUHandle{in.RTV}, &depthDSV)

	for _, m := range in.Models {
		l.SetGraphicsRootDescriptorTable(pipeline.SceneParamMaterials, m.MaterialTable())
		l.SetGraphicsRootDescriptorTable(pipeline.SceneParamTextures, m.TextureTable())
		l.SetGraphicsRootDescriptorTable(pipeline.SceneParamSamplers, m.SamplerTable())
		for i, e := range m.DrawEntries() {
			l.SetVertexBuffer(e.VertexView)
			l.SetIndexBuffer(e.IndexView)
			l.SetGraphicsRoot32BitConstant(pipeline.SceneParamMaterialIndex, uint32(e.MaterialIndex), 0)
			l.SetGraphicsRootDescriptorTable(pipeline.SceneParamLocal, m.LocalTable(i))
			l.DrawIndexedInstanced(e.IndexCount, 1, e.FirstIndex, 0, 0)
		}
	}
}

func (f *frameResource) Release() {
	for _, r := range []gpu.Resource{f.shadowMap, f.depthBuffer, f.sceneCB, f.lightCB} {
		if r != nil {
			r.Release()
		}
	}
	f.shadowMap, f.depthBuffer, f.sceneCB, f.lightCB = nil, nil, nil, nil
	f.sceneMapped, f.lightMapped = nil, nil
	if f.dsvHeap != nil {
		f.dsvHeap.Release()
		f.dsvHeap = nil
	}
	if f.fence != nil {
		f.fence.Release()
		f.fence = nil
	}
}
