// Package descriptor hands out contiguous slot ranges of a shader-visible descriptor heap and maps
// CPU handles inside the heap to the GPU handles shaders index through.
package descriptor

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

var (
	// ErrCapacity is returned when a heap has fewer free slots than requested.
	ErrCapacity = errors.New("descriptor heap capacity exceeded")

	// ErrOutOfHeap is returned when a handle does not address a slot of the allocator's heap.
	ErrOutOfHeap = errors.New("descriptor handle outside heap")
)

// Range is a contiguous run of heap slots handed out by AllocateRange.
type Range struct {
	CPU    gpu.CPUHandle
	GPU    gpu.GPUHandle
	Offset uint32
	Count  uint32
}

// Allocator is a bump allocator over one descriptor heap. Slots are never returned; the heap lives
// exactly as long as the data it describes. It holds no lock and must be driven from one goroutine.
type Allocator struct {
	heap     gpu.DescriptorHeap
	stride   uint32
	capacity uint32
	cursor   uint32
}

// NewAllocator wraps heap with a cursor starting at its first slot.
//
// Parameters:
//   - heap: the descriptor heap to allocate from
//
// Returns:
//   - *Allocator: the allocator
func NewAllocator(heap gpu.DescriptorHeap) *Allocator {
	return &Allocator{
		heap:     heap,
		stride:   heap.Stride(),
		capacity: heap.Desc().NumDescriptors,
	}
}

// AllocateRange reserves count contiguous slots. On failure the cursor does not move.
//
// Parameters:
//   - count: the number of slots; zero yields an empty range at the cursor
//
// Returns:
//   - Range: the reserved slots
//   - error: ErrCapacity if fewer than count slots remain
func (a *Allocator) AllocateRange(count uint32) (Range, error) {
	if uint64(a.cursor)+uint64(count) > uint64(a.capacity) {
		return Range{}, fmt.Errorf("%w: %s heap %q asked for %d slots, %d of %d remain",
			ErrCapacity, a.heap.Desc().Type, a.heap.Desc().Label, count, a.Remaining(), a.capacity)
	}
	r := Range{
		CPU:    a.heap.CPUStart().Offset(int(a.cursor), a.stride),
		Offset: a.cursor,
		Count:  count,
	}
	if a.heap.Desc().ShaderVisible {
		r.GPU = a.heap.GPUStart().Offset(int(a.cursor), a.stride)
	}
	a.cursor += count
	return r, nil
}

// ResolveGPUHandle returns the GPU handle addressing the same slot as cpu.
// The handle one past the last slot is accepted since it is the base of an empty table.
//
// Parameters:
//   - cpu: a CPU handle inside the heap
//
// Returns:
//   - gpu.GPUHandle: gpuBase + ((cpu - cpuBase) / stride) * stride
//   - error: ErrOutOfHeap if cpu is misaligned or outside the heap
func (a *Allocator) ResolveGPUHandle(cpu gpu.CPUHandle) (gpu.GPUHandle, error) {
	base := a.heap.CPUStart()
	if cpu < base {
		return 0, fmt.Errorf("%w: %#x is below the heap base %#x", ErrOutOfHeap, uint64(cpu), uint64(base))
	}
	delta := uint64(cpu - base)
	if delta%uint64(a.stride) != 0 {
		return 0, fmt.Errorf("%w: %#x is not aligned to stride %d", ErrOutOfHeap, uint64(cpu), a.stride)
	}
	index := delta / uint64(a.stride)
	if index > uint64(a.capacity) {
		return 0, fmt.Errorf("%w: slot %d of a %d slot heap", ErrOutOfHeap, index, a.capacity)
	}
	if !a.heap.Desc().ShaderVisible {
		return 0, fmt.Errorf("%w: heap %q is not shader visible", ErrOutOfHeap, a.heap.Desc().Label)
	}
	return a.heap.GPUStart().Offset(int(index), a.stride), nil
}

// Cursor returns the CPU handle of the next free slot.
//
// Returns:
//   - gpu.CPUHandle: the cursor handle
func (a *Allocator) Cursor() gpu.CPUHandle {
	return a.heap.CPUStart().Offset(int(a.cursor), a.stride)
}

// Allocated returns the number of slots handed out so far.
//
// Returns:
//   - uint32: the allocated slot count
func (a *Allocator) Allocated() uint32 { return a.cursor }

// Remaining returns the number of free slots.
//
// Returns:
//   - uint32: the free slot count
func (a *Allocator) Remaining() uint32 { return a.capacity - a.cursor }

// Heap returns the wrapped heap.
//
// Returns:
//   - gpu.DescriptorHeap: the heap
func (a *Allocator) Heap() gpu.DescriptorHeap { return a.heap }
