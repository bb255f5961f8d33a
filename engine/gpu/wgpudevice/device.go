// Package wgpudevice implements the gpu abstraction on WebGPU. Command lists are translated into
// WebGPU render passes and copies when they are executed, descriptor tables are resolved into
// bind groups per draw, and fences are signalled once the WebGPU queue reports the submitted work
// as done.
package wgpudevice

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoSource is returned for shader bytecode without WGSL source, which WebGPU needs.
var ErrNoSource = errors.New("shader has no WGSL source")

// Device is the WebGPU implementation of gpu.Device. All command queues share the single
// WebGPU queue of the device.
type Device struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	store    *gpu.DescriptorStore
	uploads  map[*buffer]struct{}
	samplers map[gpu.SamplerDesc]*wgpu.Sampler
	queues   []*Queue

	forceFallbackAdapter bool
	vsync                bool
	released             bool
}

var _ gpu.Device = &Device{}

// NewDevice opens a WebGPU device that can present to the given surface.
//
// Parameters:
//   - surfaceDescriptor: the platform surface of the window, see window.Window
//   - options: variadic list of DeviceBuilderOption functions to configure the Device
//
// Returns:
//   - *Device: the opened device
//   - error: an error if no adapter or device could be obtained
func NewDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...DeviceBuilderOption) (*Device, error) {
	runtime.LockOSThread()
	d := &Device{
		store: gpu.NewDescriptorStore(map[gpu.DescriptorHeapType]uint32{
			gpu.HeapTypeCBVSRVUAV: 32,
			gpu.HeapTypeSampler:   32,
			gpu.HeapTypeRTV:       32,
			gpu.HeapTypeDSV:       32,
		}),
		uploads:  make(map[*buffer]struct{}),
		samplers: make(map[gpu.SamplerDesc]*wgpu.Sampler),
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = adapter

	// one bind group per register space, the scene pass uses three
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 4

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy_device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = device
	d.queue = device.GetQueue()

	log.Printf("[WGPU] device ready (fallback adapter: %t, vsync: %t)", d.forceFallbackAdapter, d.vsync)
	return d, nil
}

// Store returns the descriptor store backing every heap of the device.
//
// Returns:
//   - *gpu.DescriptorStore: the descriptor store
func (d *Device) Store() *gpu.DescriptorStore { return d.store }

func (d *Device) CreateCommandQueue(t gpu.CommandListType) (gpu.CommandQueue, error) {
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
	raw, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	b := &buffer{dev: d, desc: desc, raw: raw}
	if desc.Heap == gpu.HeapUpload {
		b.host = make([]byte, desc.Size)
		d.mu.Lock()
		d.uploads[b] = struct{}{}
		d.mu.Unlock()
	}
	return b, nil
}

func (d *Device) forgetUpload(b *buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.uploads, b)
}

// flushUploads writes the CPU copy of every live upload buffer to the GPU. Queue writes are
// ordered before command buffers submitted after them.
func (d *Device) flushUploads() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for b := range d.uploads {
		d.queue.WriteBuffer(b.raw, 0, b.host)
	}
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q has zero extent", desc.Label)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	raw, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	view, err := raw.CreateView(nil)
	if err != nil {
		raw.Release()
		return nil, fmt.Errorf("create view of %q: %w", desc.Label, err)
	}
	return &texture{desc: desc, raw: raw, view: view}, nil
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
	if _, err := d.sampler(desc); err != nil {
		return err
	}
	return d.store.Write(dest, gpu.Descriptor{Kind: gpu.DescriptorSampler, Sampler: desc})
}

// sampler returns the WebGPU sampler for a description, creating it on first use.
func (d *Device) sampler(desc gpu.SamplerDesc) (*wgpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.samplers[desc]; ok {
		return s, nil
	}
	s, err := d.device.CreateSampler(samplerDescriptor(desc))
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	d.samplers[desc] = s
	return s, nil
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
		if p.Kind == gpu.RootParamConstants && p.Num32BitValues == 0 {
			return nil, fmt.Errorf("root signature %q: parameter %d has no constants", desc.Label, i)
		}
		if p.Kind == gpu.RootParamDescriptorTable && len(p.Ranges) == 0 {
			return nil, fmt.Errorf("root signature %q: table parameter %d has no ranges", desc.Label, i)
		}
	}
	return &rootSignature{desc: desc}, nil
}

func (d *Device) CreatePipelineState(desc gpu.PipelineStateDesc) (gpu.PipelineState, error) {
	if desc.RootSignature == nil {
		return nil, fmt.Errorf("pipeline %q has no root signature", desc.Label)
	}
	p := &pipelineState{desc: desc}
	ok := false
	defer func() {
		if !ok {
			for _, m := range p.modules {
				m.Release()
			}
			for _, g := range p.groups {
				g.Release()
			}
		}
	}()

	vs, err := d.shaderModule(desc.Label, desc.VertexShader)
	if err != nil {
		return nil, err
	}
	p.modules = append(p.modules, vs)

	var pixelBindings []gpu.ShaderResourceBinding
	var fragment *wgpu.FragmentState
	if desc.PixelShader != nil {
		fs, err := d.shaderModule(desc.Label, *desc.PixelShader)
		if err != nil {
			return nil, err
		}
		p.modules = append(p.modules, fs)
		pixelBindings = desc.PixelShader.Bindings

		targets := make([]wgpu.ColorTargetState, len(desc.RenderTargetFormats))
		for i, f := range desc.RenderTargetFormats {
			format, err := textureFormat(f)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
			}
			targets[i] = wgpu.ColorTargetState{Format: format, WriteMask: wgpu.ColorWriteMaskAll}
		}
		fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.PixelShader.EntryPoint,
			Targets:    targets,
		}
	}

	merged := mergeBindings(desc.VertexShader.Bindings, pixelBindings)
	groupCount := uint32(0)
	for g := range merged {
		groupCount = max(groupCount, g+1)
	}
	p.groups = make([]*wgpu.BindGroupLayout, groupCount)
	p.bindings = make([][]wgpu.BindGroupLayoutEntry, groupCount)
	for g := range groupCount {
		p.bindings[g] = merged[g]
		layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s_group_%d", desc.Label, g),
			Entries: merged[g],
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: bind group layout %d: %w", desc.Label, g, err)
		}
		p.groups[g] = layout
	}

	p.layout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: p.groups,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: layout: %w", desc.Label, err)
	}

	attributes := make([]wgpu.VertexAttribute, len(desc.InputLayout))
	for i, e := range desc.InputLayout {
		attributes[i] = wgpu.VertexAttribute{
			Format:         vertexFormat(e.Format),
			Offset:         uint64(e.Offset),
			ShaderLocation: e.Location,
		}
	}
	depthFormat, err := textureFormat(desc.DepthFormat)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}

	p.raw, err = d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexShader.EntryPoint,
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(desc.VertexStride),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes:  attributes,
			}},
		},
		Fragment: fragment,
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
			// clockwise triangles face the camera in the left-handed convention
			FrontFace: wgpu.FrontFaceCW,
			CullMode:  cullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:              depthFormat,
			DepthWriteEnabled:   true,
			DepthCompare:        compareFunction(desc.DepthFunc),
			DepthBias:           desc.DepthBias,
			DepthBiasSlopeScale: desc.SlopeScaledDepthBias,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		p.layout.Release()
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}
	ok = true
	return p, nil
}

func (d *Device) shaderModule(label string, code gpu.ShaderBytecode) (*wgpu.ShaderModule, error) {
	if code.Source == "" {
		return nil, fmt.Errorf("pipeline %q %s stage: %w", label, code.Stage, ErrNoSource)
	}
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label + "_" + code.Stage.String(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: code.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q %s stage: %w", label, code.Stage, err)
	}
	return m, nil
}

func (d *Device) CreateSwapChain(queue gpu.CommandQueue, desc gpu.SwapChainDesc) (gpu.SwapChain, error) {
	q, ok := queue.(*Queue)
	if !ok || q.typ != gpu.CommandListDirect {
		return nil, fmt.Errorf("swap chain needs a wgpudevice direct queue")
	}
	sc := &swapChain{dev: d}
	if err := sc.configure(desc); err != nil {
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
	samplers := d.samplers
	d.samplers = nil
	d.mu.Unlock()

	for _, q := range queues {
		q.Release()
	}
	for _, s := range samplers {
		s.Release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}
