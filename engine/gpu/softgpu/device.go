// Package softgpu implements the gpu abstraction on the CPU. Queues execute command lists on their own
// goroutines, resource state transitions and descriptor tables are validated exactly as a debug layer
// would, copies move real bytes, and draws are resolved and appended to an inspectable trace instead
// of being rasterized. It backs headless runs and every GPU-facing test.
package softgpu

import (
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

// Device is the CPU reference implementation of gpu.Device.
type Device struct {
	mu       sync.Mutex
	store    *gpu.DescriptorStore
	removed  error
	queues   []*Queue
	trace    *Trace
	released bool
}

var _ gpu.Device = &Device{}

// NewDevice creates a CPU reference device.
//
// Parameters:
//   - options: variadic list of DeviceBuilderOption functions to configure the Device
//
// Returns:
//   - *Device: the new device
func NewDevice(options ...DeviceBuilderOption) *Device {
	d := &Device{
		store: gpu.NewDescriptorStore(map[gpu.DescriptorHeapType]uint32{
			gpu.HeapTypeCBVSRVUAV: 32,
			gpu.HeapTypeSampler:   32,
			gpu.HeapTypeRTV:       32,
			gpu.HeapTypeDSV:       32,
		}),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Store returns the descriptor store backing every heap of the device.
//
// Returns:
//   - *gpu.DescriptorStore: the descriptor store
func (d *Device) Store() *gpu.DescriptorStore { return d.store }

// Trace returns the execution trace, or nil when tracing is disabled.
//
// Returns:
//   - *Trace: the trace recorder
func (d *Device) Trace() *Trace { return d.trace }

// Queues returns every queue of type t created so far, in creation order.
//
// Parameters:
//   - t: the queue type
//
// Returns:
//   - []*Queue: the matching queues
func (d *Device) Queues(t gpu.CommandListType) []*Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Queue
	for _, q := range d.queues {
		if q.typ == t {
			out = append(out, q)
		}
	}
	return out
}

// Err returns the error that removed the device, or nil while the device is healthy.
//
// Returns:
//   - error: the removal error wrapping gpu.ErrDeviceRemoved
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removed
}

// remove puts the device into the removed state. Only the first cause is kept.
func (d *Device) remove(cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.removed != nil {
		return
	}
	d.removed = fmt.Errorf("%w: %w", gpu.ErrDeviceRemoved, cause)
	log.Printf("[SoftGPU] device removed: %v", cause)
}

func (d *Device) CreateCommandQueue(t gpu.CommandListType) (gpu.CommandQueue, error) {
	if err := d.Err(); err != nil {
		return nil, err
	}
	q := newQueue(d, t)
	d.mu.Lock()
	d.queues = append(d.queues, q)
	d.mu.Unlock()
	return q, nil
}

func (d *Device) CreateCommandAllocator(t gpu.CommandListType) (gpu.CommandAllocator, error) {
	return gpu.NewCommandAllocator(t), nil
}

func (d *Device) CreateCommandList(t gpu.CommandListType, alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	return gpu.NewCommandList(t, alloc)
}

func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	return gpu.NewFence(initial), nil
}

func (d *Device) CreateDescriptorHeap(desc gpu.DescriptorHeapDesc) (gpu.DescriptorHeap, error) {
	return d.store.CreateHeap(desc)
}

func (d *Device) DescriptorStride(t gpu.DescriptorHeapType) uint32 {
	return d.store.Stride(t)
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size", desc.Label)
	}
	state := desc.InitialState
	if desc.Heap == gpu.HeapUpload {
		state = gpu.StateGenericRead
	}
	return &buffer{desc: desc, data: make([]byte, desc.Size), state: state}, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q has zero extent", desc.Label)
	}
	if desc.Format.BytesPerPixel() == 0 {
		return nil, fmt.Errorf("texture %q has unknown format", desc.Label)
	}
	return &texture{desc: desc, state: desc.InitialState}, nil
}

func (d *Device) CreateConstantBufferView(desc gpu.ConstantBufferViewDesc, dest gpu.CPUHandle) error {
	if desc.Buffer == nil {
		return fmt.Errorf("constant buffer view without a buffer")
	}
	if desc.Offset%gpu.ConstantBufferAlignment != 0 || desc.Size%gpu.ConstantBufferAlignment != 0 {
		return fmt.Errorf("constant buffer view [%d, +%d) is not %d-byte aligned", desc.Offset, desc.Size, gpu.ConstantBufferAlignment)
	}
	if desc.Offset+desc.Size > desc.Buffer.Desc().Size {
		return fmt.Errorf("constant buffer view [%d, +%d) exceeds %q", desc.Offset, desc.Size, desc.Buffer.Label())
	}
	return d.store.Write(dest, gpu.Descriptor{Kind: gpu.DescriptorCBV, Buffer: desc.Buffer, Offset: desc.Offset, Size: desc.Size})
}

func (d *Device) CreateTextureView(tex gpu.Texture, dest gpu.CPUHandle) error {
	if tex == nil {
		return fmt.Errorf("texture view without a texture")
	}
	return d.store.Write(dest, gpu.Descriptor{Kind: gpu.DescriptorTextureSRV, Texture: tex})
}

func (d *Device) CreateStructuredBufferView(desc gpu.StructuredBufferViewDesc, dest gpu.CPUHandle) error {
	if desc.Buffer == nil || desc.StructureByteStride == 0 {
		return fmt.Errorf("structured buffer view needs a buffer and a stride")
	}
	end := (uint64(desc.FirstElement) + uint64(desc.NumElements)) * uint64(desc.StructureByteStride)
	if end > desc.Buffer.Desc().Size {
		return fmt.Errorf("structured buffer view of %d elements from %d exceeds %q", desc.NumElements, desc.FirstElement, desc.Buffer.Label())
	}
	return d.store.Write(dest, gpu.Descriptor{
		Kind:                gpu.DescriptorBufferSRV,
		Buffer:              desc.Buffer,
		FirstElement:        desc.FirstElement,
		NumElements:         desc.NumElements,
		StructureByteStride: desc.StructureByteStride,
	})
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc, dest gpu.CPUHandle) error {
	return d.store.Write(dest, gpu.Descriptor{Kind: gpu.DescriptorSampler, Sampler: desc})
}

func (d *Device) CreateRenderTargetView(tex gpu.Texture, dest gpu.CPUHandle) error {
	if tex == nil || tex.Desc().Usage&gpu.TextureUsageRenderTarget == 0 {
		return fmt.Errorf("render target view needs a render target texture")
	}
	return d.store.Write(dest, gpu.Descriptor{Kind: gpu.DescriptorRTV, Texture: tex})
}

func (d *Device) CreateDepthStencilView(tex gpu.Texture, dest gpu.CPUHandle) error {
	if tex == nil || tex.Desc().Usage&gpu.TextureUsageDepthStencil == 0 {
		return fmt.Errorf("depth stencil view needs a depth texture")
	}
	return d.store.Write(dest, gpu.Descriptor{Kind: gpu.DescriptorDSV, Texture: tex})
}

func (d *Device) CopyDescriptorsSimple(n uint32, dst, src gpu.CPUHandle, t gpu.DescriptorHeapType) error {
	return d.store.Copy(n, dst, src, t)
}

func (d *Device) CreateRootSignature(desc gpu.RootSignatureDesc) (gpu.RootSignature, error) {
	for i, p := range desc.Parameters {
		switch p.Kind {
		case gpu.RootParamConstants:
			if p.Num32BitValues == 0 {
				return nil, fmt.Errorf("root signature %q: parameter %d has no constants", desc.Label, i)
			}
		case gpu.RootParamDescriptorTable:
			if len(p.Ranges) == 0 {
				return nil, fmt.Errorf("root signature %q: table parameter %d has no ranges", desc.Label, i)
			}
			for _, r := range p.Ranges[1:] {
				if (r.Type == gpu.RangeSampler) != (p.Ranges[0].Type == gpu.RangeSampler) {
					return nil, fmt.Errorf("root signature %q: table %d mixes samplers with views", desc.Label, i)
				}
			}
		}
	}
	return &rootSignature{desc: desc}, nil
}

func (d *Device) CreatePipelineState(desc gpu.PipelineStateDesc) (gpu.PipelineState, error) {
	if desc.RootSignature == nil {
		return nil, fmt.Errorf("pipeline %q has no root signature", desc.Label)
	}
	if len(desc.VertexShader.Code) == 0 {
		return nil, fmt.Errorf("pipeline %q has no vertex shader bytecode", desc.Label)
	}
	if desc.PixelShader != nil && len(desc.PixelShader.Code) == 0 {
		return nil, fmt.Errorf("pipeline %q has an empty pixel shader", desc.Label)
	}
	if desc.PixelShader == nil && len(desc.RenderTargetFormats) > 0 {
		return nil, fmt.Errorf("pipeline %q writes render targets without a pixel shader", desc.Label)
	}
	return &pipelineState{desc: desc}, nil
}

func (d *Device) CreateSwapChain(queue gpu.CommandQueue, desc gpu.SwapChainDesc) (gpu.SwapChain, error) {
	q, ok := queue.(*Queue)
	if !ok || q.typ != gpu.CommandListDirect {
		return nil, fmt.Errorf("swap chain needs a softgpu direct queue")
	}
	sc := &swapChain{dev: d, queue: q}
	if err := sc.createBuffers(desc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (d *Device) Release() {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return
	}
	d.released = true
	queues := d.queues
	d.mu.Unlock()

	for _, q := range queues {
		q.Release()
	}
}
