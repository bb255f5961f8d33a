// Package gpu defines the explicit GPU abstraction the renderer is written against: devices, queues,
// command allocators and lists, descriptor heaps, fences, resources and swap chains.
//
// The model follows explicit graphics APIs: command lists are recorded on the CPU and executed
// asynchronously by queues, completion is observed through monotonically increasing fences, and
// shaders read resources through descriptors placed in heaps. Concrete implementations live in
// the softgpu (CPU reference) and wgpudevice (WebGPU) sub-packages.
package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceHung is returned when a fence wait expires before the GPU reached the requested value.
	ErrDeviceHung = errors.New("gpu device hung")

	// ErrDeviceRemoved is returned by every operation once the device has hit an unrecoverable error.
	ErrDeviceRemoved = errors.New("gpu device removed")

	// ErrListClosed is returned when recording into, or closing, a command list that is already closed.
	ErrListClosed = errors.New("command list is closed")

	// ErrListOpen is returned when executing a command list that has not been closed.
	ErrListOpen = errors.New("command list is still recording")

	// ErrAllocatorInUse is returned when resetting a command allocator whose lists are still executing.
	ErrAllocatorInUse = errors.New("command allocator still in use by the GPU")

	// ErrInvalidCommand is returned when a command is not supported by the list or queue type.
	ErrInvalidCommand = errors.New("command not supported by this list type")

	// ErrInvalidState is returned when a resource barrier does not match the tracked resource state.
	ErrInvalidState = errors.New("resource state mismatch")

	// ErrInvalidHandle is returned for descriptor handles that do not address a live heap slot.
	ErrInvalidHandle = errors.New("invalid descriptor handle")

	// ErrHeapType is returned when a descriptor is written to, or copied between, heaps of the wrong type.
	ErrHeapType = errors.New("descriptor heap type mismatch")
)

// CommandListType identifies the queue family a command list or queue belongs to.
type CommandListType int

const (
	// CommandListDirect supports graphics, copy and every resource state transition.
	CommandListDirect CommandListType = iota

	// CommandListCopy supports copies and transitions between copy-compatible states only.
	CommandListCopy
)

func (t CommandListType) String() string {
	switch t {
	case CommandListDirect:
		return "direct"
	case CommandListCopy:
		return "copy"
	default:
		return fmt.Sprintf("CommandListType(%d)", int(t))
	}
}

// DescriptorHeapType identifies which kind of descriptors a heap stores.
type DescriptorHeapType int

const (
	// HeapTypeCBVSRVUAV stores constant buffer, shader resource and unordered access views.
	HeapTypeCBVSRVUAV DescriptorHeapType = iota

	// HeapTypeSampler stores sampler descriptors.
	HeapTypeSampler

	// HeapTypeRTV stores render target views. Never shader visible.
	HeapTypeRTV

	// HeapTypeDSV stores depth stencil views. Never shader visible.
	HeapTypeDSV
)

func (t DescriptorHeapType) String() string {
	switch t {
	case HeapTypeCBVSRVUAV:
		return "cbv_srv_uav"
	case HeapTypeSampler:
		return "sampler"
	case HeapTypeRTV:
		return "rtv"
	case HeapTypeDSV:
		return "dsv"
	default:
		return fmt.Sprintf("DescriptorHeapType(%d)", int(t))
	}
}

// ResourceState is the usage state a resource is in from the GPU's point of view.
// Transitions between states are recorded explicitly with ResourceBarrier.
type ResourceState int

const (
	StateCommon ResourceState = iota
	StateCopyDest
	StateCopySource
	StateVertexAndConstantBuffer
	StateIndexBuffer
	StateRenderTarget
	StateDepthWrite
	StatePixelShaderResource
	StatePresent
	StateGenericRead
)

func (s ResourceState) String() string {
	switch s {
	case StateCommon:
		return "common"
	case StateCopyDest:
		return "copy_dest"
	case StateCopySource:
		return "copy_source"
	case StateVertexAndConstantBuffer:
		return "vertex_and_constant_buffer"
	case StateIndexBuffer:
		return "index_buffer"
	case StateRenderTarget:
		return "render_target"
	case StateDepthWrite:
		return "depth_write"
	case StatePixelShaderResource:
		return "pixel_shader_resource"
	case StatePresent:
		return "present"
	case StateGenericRead:
		return "generic_read"
	default:
		return fmt.Sprintf("ResourceState(%d)", int(s))
	}
}

// CopyQueueCompatible reports whether a copy queue may transition resources into or out of this state.
//
// Returns:
//   - bool: true for common, copy source and copy destination states
func (s ResourceState) CopyQueueCompatible() bool {
	switch s {
	case StateCommon, StateCopyDest, StateCopySource:
		return true
	}
	return false
}

// HeapKind selects the memory pool a buffer lives in.
type HeapKind int

const (
	// HeapDefault is GPU-local memory, written through copies.
	HeapDefault HeapKind = iota

	// HeapUpload is CPU-visible memory that stays mapped for the lifetime of the buffer.
	HeapUpload
)

// Format is a texel or view format.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatD32Float
)

// BytesPerPixel returns the size of one texel of the format.
//
// Returns:
//   - uint32: bytes per texel, or 0 for FormatUnknown
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm, FormatD32Float:
		return 4
	}
	return 0
}

// TextureRowPitchAlignment is the required alignment of row pitches in texture upload footprints.
const TextureRowPitchAlignment = 256

// ConstantBufferAlignment is the required alignment of constant buffer view offsets and sizes.
const ConstantBufferAlignment = 256

// CPUHandle addresses a descriptor slot from the CPU side.
type CPUHandle uint64

// Offset returns the handle n slots away, for a heap with the given descriptor stride.
//
// Parameters:
//   - n: the number of slots to move (may be negative)
//   - stride: the descriptor stride of the heap
//
// Returns:
//   - CPUHandle: the offset handle
func (h CPUHandle) Offset(n int, stride uint32) CPUHandle {
	return CPUHandle(int64(h) + int64(n)*int64(stride))
}

// GPUHandle addresses a descriptor slot of a shader-visible heap from the GPU side.
type GPUHandle uint64

// Offset returns the handle n slots away, for a heap with the given descriptor stride.
//
// Parameters:
//   - n: the number of slots to move (may be negative)
//   - stride: the descriptor stride of the heap
//
// Returns:
//   - GPUHandle: the offset handle
func (h GPUHandle) Offset(n int, stride uint32) GPUHandle {
	return GPUHandle(int64(h) + int64(n)*int64(stride))
}

// CullMode selects which triangle faces are discarded by the rasterizer.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// AddressMode controls texture coordinate handling outside [0, 1].
type AddressMode int

const (
	AddressWrap AddressMode = iota
	AddressMirror
	AddressClamp
	AddressBorder
)

// Filter selects the texture filtering mode.
type Filter int

const (
	FilterPoint Filter = iota
	FilterLinear
)

// CompareFunc is a depth or sampler comparison function.
type CompareFunc int

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareLessEqual
	CompareAlways
)

// ShaderStage identifies a programmable pipeline stage.
type ShaderStage int

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStagePixel
)

func (s ShaderStage) String() string {
	if s == ShaderStagePixel {
		return "pixel"
	}
	return "vertex"
}
