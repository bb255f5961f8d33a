package gpu

import (
	"context"
)

// Resource is any GPU object that occupies memory and takes part in resource state tracking.
type Resource interface {
	// Label returns the debug name given at creation.
	//
	// Returns:
	//   - string: the resource label
	Label() string

	// Release frees the GPU memory backing the resource. It must not be in use by the GPU.
	Release()
}

// BufferDesc describes a linear GPU buffer.
type BufferDesc struct {
	Label        string
	Size         uint64
	Heap         HeapKind
	InitialState ResourceState
}

// Buffer is a linear GPU allocation used for vertices, indices, constants and staging.
type Buffer interface {
	Resource

	// Desc returns the creation description of the buffer.
	//
	// Returns:
	//   - BufferDesc: the buffer description
	Desc() BufferDesc

	// Map returns the persistently mapped CPU view of an upload-heap buffer.
	// Writes become visible to GPU work submitted after the write.
	//
	// Returns:
	//   - []byte: the mapped memory, exactly Desc().Size bytes long
	//   - error: an error if the buffer lives in the default heap
	Map() ([]byte, error)
}

// TextureUsage is a bit set of the ways a texture may be used.
type TextureUsage uint32

const (
	TextureUsageShaderResource TextureUsage = 1 << iota
	TextureUsageRenderTarget
	TextureUsageDepthStencil
	TextureUsageCopyDest
)

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label        string
	Width        uint32
	Height       uint32
	Format       Format
	Usage        TextureUsage
	InitialState ResourceState
}

// Texture is a 2D GPU image.
type Texture interface {
	Resource

	// Desc returns the creation description of the texture.
	//
	// Returns:
	//   - TextureDesc: the texture description
	Desc() TextureDesc
}

// TextureFootprint describes how texel rows are laid out inside a buffer for a buffer to texture copy.
type TextureFootprint struct {
	Offset   uint64
	Width    uint32
	Height   uint32
	RowPitch uint32
	Format   Format
}

// Transition is a resource state transition recorded with ResourceBarrier.
type Transition struct {
	Resource Resource
	Before   ResourceState
	After    ResourceState
}

// VertexBufferView binds a range of a buffer as vertex input.
type VertexBufferView struct {
	Buffer Buffer
	Offset uint64
	Size   uint32
	Stride uint32
}

// IndexBufferView binds a range of a buffer as 32-bit index input.
type IndexBufferView struct {
	Buffer Buffer
	Offset uint64
	Size   uint32
}

// Viewport maps normalized device coordinates to render target pixels.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is a pixel rectangle, right and bottom exclusive.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// DrawArgs are the arguments of an indexed, instanced draw.
type DrawArgs struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// ConstantBufferViewDesc describes a constant buffer view over a 256-byte aligned buffer range.
type ConstantBufferViewDesc struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
}

// StructuredBufferViewDesc describes a shader resource view over an array of fixed-size structs.
type StructuredBufferViewDesc struct {
	Buffer              Buffer
	FirstElement        uint32
	NumElements         uint32
	StructureByteStride uint32
}

// SamplerDesc describes a sampler descriptor.
type SamplerDesc struct {
	Filter      Filter
	AddressU    AddressMode
	AddressV    AddressMode
	AddressW    AddressMode
	Comparison  bool
	Compare     CompareFunc
	BorderColor [4]float32
	MinLOD      float32
	MaxLOD      float32
}

// DescriptorHeapDesc describes a descriptor heap.
type DescriptorHeapDesc struct {
	Label          string
	Type           DescriptorHeapType
	NumDescriptors uint32
	ShaderVisible  bool
}

// DescriptorHeap is a fixed-capacity array of descriptors addressed by CPU and GPU handles.
// Slot i lives at CPUStart().Offset(i, Stride()) and, for shader-visible heaps, at GPUStart().Offset(i, Stride()).
type DescriptorHeap interface {
	// Desc returns the creation description of the heap.
	//
	// Returns:
	//   - DescriptorHeapDesc: the heap description
	Desc() DescriptorHeapDesc

	// CPUStart returns the CPU handle of slot 0.
	//
	// Returns:
	//   - CPUHandle: the CPU base handle
	CPUStart() CPUHandle

	// GPUStart returns the GPU handle of slot 0, or 0 for heaps that are not shader visible.
	//
	// Returns:
	//   - GPUHandle: the GPU base handle
	GPUStart() GPUHandle

	// Stride returns the distance in handle units between two adjacent slots.
	//
	// Returns:
	//   - uint32: the descriptor stride
	Stride() uint32

	// Release frees the heap. Handles into it become invalid.
	Release()
}

// DescriptorRangeType identifies the kind of descriptors a descriptor table range covers.
type DescriptorRangeType int

const (
	RangeSRV DescriptorRangeType = iota
	RangeCBV
	RangeSampler
)

// UnboundedRange marks a descriptor range whose size is only limited by the heap.
const UnboundedRange = ^uint32(0)

// DescriptorRange is one range of a descriptor table root parameter.
type DescriptorRange struct {
	Type           DescriptorRangeType
	NumDescriptors uint32
	BaseRegister   uint32
	RegisterSpace  uint32
}

// RootParameterKind identifies how a root parameter is supplied.
type RootParameterKind int

const (
	// RootParamConstants are 32-bit values stored inline in the command list.
	RootParamConstants RootParameterKind = iota

	// RootParamCBV is a constant buffer address stored inline in the command list.
	RootParamCBV

	// RootParamDescriptorTable is a GPU handle to a contiguous run of heap slots.
	RootParamDescriptorTable
)

// RootParameter is one slot of a root signature.
type RootParameter struct {
	Kind           RootParameterKind
	ShaderRegister uint32
	RegisterSpace  uint32
	Num32BitValues uint32
	Ranges         []DescriptorRange
}

// RootSignatureDesc describes the binding layout shared by a pipeline and the commands that feed it.
type RootSignatureDesc struct {
	Label      string
	Parameters []RootParameter
}

// RootSignature is a compiled binding layout.
type RootSignature interface {
	// Desc returns the creation description.
	//
	// Returns:
	//   - RootSignatureDesc: the root signature description
	Desc() RootSignatureDesc

	// Release frees the root signature.
	Release()
}

// BindingKind is the shader-side resource type behind a declared binding.
type BindingKind int

const (
	BindingUniform BindingKind = iota
	BindingStorage
	BindingTexture
	BindingDepthTexture
	BindingSampler
	BindingComparisonSampler
)

// ShaderResourceBinding is one resource variable a shader module declares.
type ShaderResourceBinding struct {
	Group   uint32
	Binding uint32
	Kind    BindingKind
}

// ShaderBytecode is a compiled shader stage. Source keeps the text the bytecode was produced from
// so backends that consume source (WebGPU) can use it directly, and Bindings lists every resource
// variable the module declares for backends that build explicit binding layouts.
type ShaderBytecode struct {
	Code       []byte
	Source     string
	EntryPoint string
	Stage      ShaderStage
	Bindings   []ShaderResourceBinding
}

// VertexFormat is the format of one vertex attribute.
type VertexFormat int

const (
	VertexFloat32x2 VertexFormat = iota
	VertexFloat32x3
	VertexFloat32x4
)

// InputElement is one vertex attribute of an input layout.
type InputElement struct {
	Semantic string
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

// PipelineStateDesc describes a graphics pipeline. A nil PixelShader produces a depth-only pipeline.
type PipelineStateDesc struct {
	Label                string
	RootSignature        RootSignature
	VertexShader         ShaderBytecode
	PixelShader          *ShaderBytecode
	InputLayout          []InputElement
	VertexStride         uint32
	RenderTargetFormats  []Format
	DepthFormat          Format
	DepthFunc            CompareFunc
	CullMode             CullMode
	DepthBias            int32
	SlopeScaledDepthBias float32
}

// PipelineState is a compiled graphics pipeline.
type PipelineState interface {
	// Desc returns the creation description.
	//
	// Returns:
	//   - PipelineStateDesc: the pipeline description
	Desc() PipelineStateDesc

	// Release frees the pipeline.
	Release()
}

// Fence is a monotonically increasing 64-bit counter signalled by queues when work completes.
type Fence interface {
	// CompletedValue returns the most recent value reached by the fence.
	//
	// Returns:
	//   - uint64: the completed value
	CompletedValue() uint64

	// Signal sets the fence value from the CPU. Values lower than the current value are ignored.
	//
	// Parameters:
	//   - value: the value to set
	//
	// Returns:
	//   - error: an error if the fence has been released
	Signal(value uint64) error

	// Wait blocks until the fence reaches value or ctx is done.
	//
	// Parameters:
	//   - ctx: bounds the wait; on expiry the returned error wraps ErrDeviceHung and the context error
	//   - value: the value to wait for
	//
	// Returns:
	//   - error: nil once the value was reached
	Wait(ctx context.Context, value uint64) error

	// Release frees the fence and wakes every waiter with an error.
	Release()
}

// CommandAllocator owns the memory command lists record into. It may only be reset once every
// list recorded from it has finished executing.
type CommandAllocator interface {
	// Type returns the queue family of the allocator.
	//
	// Returns:
	//   - CommandListType: the allocator type
	Type() CommandListType

	// Reset reclaims the allocator's memory.
	//
	// Returns:
	//   - error: ErrAllocatorInUse if lists recorded from it are still executing
	Reset() error
}

// CommandQueue executes closed command lists in submission order.
type CommandQueue interface {
	// Type returns the queue family.
	//
	// Returns:
	//   - CommandListType: the queue type
	Type() CommandListType

	// ExecuteCommandLists submits closed lists for asynchronous execution.
	//
	// Parameters:
	//   - lists: the lists to execute, in order
	//
	// Returns:
	//   - error: an error if a list is still open, of the wrong type, or the device was removed
	ExecuteCommandLists(lists ...CommandList) error

	// Signal enqueues a fence signal that fires after all previously submitted work completes.
	//
	// Parameters:
	//   - fence: the fence to signal
	//   - value: the value to set
	//
	// Returns:
	//   - error: an error if the device was removed
	Signal(fence Fence, value uint64) error

	// Release stops the queue. Pending work is dropped.
	Release()
}

// SwapChainDesc describes the presentable back buffers of a window surface.
type SwapChainDesc struct {
	Width       uint32
	Height      uint32
	BufferCount uint32
	Format      Format
}

// SwapChain owns the back buffers shown on screen. Back buffers start and end every frame in StatePresent.
type SwapChain interface {
	// Desc returns the current description.
	//
	// Returns:
	//   - SwapChainDesc: the swap chain description
	Desc() SwapChainDesc

	// CurrentBackBufferIndex returns the back buffer the next frame renders into.
	// It advances by one, modulo the buffer count, on every Present.
	//
	// Returns:
	//   - uint32: the back buffer index
	CurrentBackBufferIndex() uint32

	// BackBuffer returns back buffer i.
	//
	// Parameters:
	//   - i: the back buffer index
	//
	// Returns:
	//   - Texture: the back buffer texture
	//   - error: an error if i is out of range
	BackBuffer(i uint32) (Texture, error)

	// Present queues the current back buffer for display.
	//
	// Parameters:
	//   - syncInterval: 0 presents immediately, 1 waits for vertical blank
	//
	// Returns:
	//   - error: an error if presentation failed
	Present(syncInterval uint32) error

	// ResizeBuffers recreates the back buffers. No back buffer may be referenced by pending GPU work
	// or by live render target views.
	//
	// Parameters:
	//   - count: the new buffer count
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the buffers could not be recreated
	ResizeBuffers(count, width, height uint32) error

	// Release frees the swap chain.
	Release()
}

// Device creates every GPU object and writes descriptors.
type Device interface {
	// CreateCommandQueue creates a queue of the given family.
	//
	// Parameters:
	//   - t: the queue type
	//
	// Returns:
	//   - CommandQueue: the created queue
	//   - error: an error if creation fails
	CreateCommandQueue(t CommandListType) (CommandQueue, error)

	// CreateCommandAllocator creates an allocator for lists of the given family.
	//
	// Parameters:
	//   - t: the allocator type
	//
	// Returns:
	//   - CommandAllocator: the created allocator
	//   - error: an error if creation fails
	CreateCommandAllocator(t CommandListType) (CommandAllocator, error)

	// CreateCommandList creates a list in the recording state, backed by alloc.
	//
	// Parameters:
	//   - t: the list type, which must match the allocator type
	//   - alloc: the allocator to record into
	//
	// Returns:
	//   - CommandList: the created list
	//   - error: an error if the types mismatch
	CreateCommandList(t CommandListType, alloc CommandAllocator) (CommandList, error)

	// CreateFence creates a fence with the given initial value.
	//
	// Parameters:
	//   - initial: the starting completed value
	//
	// Returns:
	//   - Fence: the created fence
	//   - error: an error if creation fails
	CreateFence(initial uint64) (Fence, error)

	// CreateDescriptorHeap creates a descriptor heap.
	//
	// Parameters:
	//   - desc: the heap description
	//
	// Returns:
	//   - DescriptorHeap: the created heap
	//   - error: an error if the description is invalid
	CreateDescriptorHeap(desc DescriptorHeapDesc) (DescriptorHeap, error)

	// DescriptorStride returns the handle increment between slots of a heap type.
	//
	// Parameters:
	//   - t: the heap type
	//
	// Returns:
	//   - uint32: the stride
	DescriptorStride(t DescriptorHeapType) uint32

	// CreateBuffer creates a buffer. Upload-heap buffers start mapped and zeroed.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: an error if creation fails
	CreateBuffer(desc BufferDesc) (Buffer, error)

	// CreateTexture creates a 2D texture.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - Texture: the created texture
	//   - error: an error if creation fails
	CreateTexture(desc TextureDesc) (Texture, error)

	// CreateConstantBufferView writes a CBV descriptor into dest.
	//
	// Parameters:
	//   - desc: the view description
	//   - dest: the CBV/SRV/UAV heap slot to write
	//
	// Returns:
	//   - error: an error for a misaligned range or an invalid destination
	CreateConstantBufferView(desc ConstantBufferViewDesc, dest CPUHandle) error

	// CreateTextureView writes a 2D texture SRV descriptor into dest.
	//
	// Parameters:
	//   - tex: the texture to view
	//   - dest: the CBV/SRV/UAV heap slot to write
	//
	// Returns:
	//   - error: an error for an invalid destination
	CreateTextureView(tex Texture, dest CPUHandle) error

	// CreateStructuredBufferView writes a structured buffer SRV descriptor into dest.
	//
	// Parameters:
	//   - desc: the view description
	//   - dest: the CBV/SRV/UAV heap slot to write
	//
	// Returns:
	//   - error: an error for an out-of-range view or an invalid destination
	CreateStructuredBufferView(desc StructuredBufferViewDesc, dest CPUHandle) error

	// CreateSampler writes a sampler descriptor into dest.
	//
	// Parameters:
	//   - desc: the sampler description
	//   - dest: the sampler heap slot to write
	//
	// Returns:
	//   - error: an error for an invalid destination
	CreateSampler(desc SamplerDesc, dest CPUHandle) error

	// CreateRenderTargetView writes an RTV descriptor into dest.
	//
	// Parameters:
	//   - tex: the render target texture
	//   - dest: the RTV heap slot to write
	//
	// Returns:
	//   - error: an error for an invalid destination
	CreateRenderTargetView(tex Texture, dest CPUHandle) error

	// CreateDepthStencilView writes a DSV descriptor into dest.
	//
	// Parameters:
	//   - tex: the depth texture
	//   - dest: the DSV heap slot to write
	//
	// Returns:
	//   - error: an error for an invalid destination
	CreateDepthStencilView(tex Texture, dest CPUHandle) error

	// CopyDescriptorsSimple copies n contiguous descriptors from src to dst. Both ranges must lie in
	// heaps of type t.
	//
	// Parameters:
	//   - n: the number of descriptors
	//   - dst: the first destination slot
	//   - src: the first source slot
	//   - t: the heap type of both heaps
	//
	// Returns:
	//   - error: an error if either range is out of bounds or of the wrong type
	CopyDescriptorsSimple(n uint32, dst, src CPUHandle, t DescriptorHeapType) error

	// CreateRootSignature creates a root signature.
	//
	// Parameters:
	//   - desc: the root signature description
	//
	// Returns:
	//   - RootSignature: the created root signature
	//   - error: an error if the layout is invalid
	CreateRootSignature(desc RootSignatureDesc) (RootSignature, error)

	// CreatePipelineState creates a graphics pipeline.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - PipelineState: the created pipeline
	//   - error: an error if the shaders or layout are invalid
	CreatePipelineState(desc PipelineStateDesc) (PipelineState, error)

	// CreateSwapChain creates the window swap chain presented through queue.
	//
	// Parameters:
	//   - queue: the direct queue that renders into the back buffers
	//   - desc: the swap chain description
	//
	// Returns:
	//   - SwapChain: the created swap chain
	//   - error: an error if creation fails
	CreateSwapChain(queue CommandQueue, desc SwapChainDesc) (SwapChain, error)

	// Release destroys the device.
	Release()
}
