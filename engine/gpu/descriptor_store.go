package gpu

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DescriptorKind identifies what a stored descriptor describes.
type DescriptorKind int

const (
	DescriptorEmpty DescriptorKind = iota
	DescriptorCBV
	DescriptorTextureSRV
	DescriptorBufferSRV
	DescriptorSampler
	DescriptorRTV
	DescriptorDSV
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorEmpty:
		return "empty"
	case DescriptorCBV:
		return "cbv"
	case DescriptorTextureSRV:
		return "texture_srv"
	case DescriptorBufferSRV:
		return "buffer_srv"
	case DescriptorSampler:
		return "sampler"
	case DescriptorRTV:
		return "rtv"
	case DescriptorDSV:
		return "dsv"
	default:
		return fmt.Sprintf("DescriptorKind(%d)", int(k))
	}
}

// heapType returns the heap type a descriptor of this kind must live in.
func (k DescriptorKind) heapType() DescriptorHeapType {
	switch k {
	case DescriptorSampler:
		return HeapTypeSampler
	case DescriptorRTV:
		return HeapTypeRTV
	case DescriptorDSV:
		return HeapTypeDSV
	default:
		return HeapTypeCBVSRVUAV
	}
}

// Descriptor is the content of one heap slot.
type Descriptor struct {
	Kind DescriptorKind

	// CBV and structured buffer SRV
	Buffer              Buffer
	Offset              uint64
	Size                uint64
	FirstElement        uint32
	NumElements         uint32
	StructureByteStride uint32

	// texture SRV, RTV and DSV
	Texture Texture

	Sampler SamplerDesc
}

const (
	heapAddressShift = 32
	gpuAddressBit    = uint64(1) << 62
)

// DescriptorStore keeps the contents of every descriptor heap created by a device and maps handles
// back to heap slots. Each heap occupies its own 4 GiB window of the handle space, so slot
// arithmetic within a heap never crosses into another heap.
type DescriptorStore struct {
	mu      sync.RWMutex
	heaps   map[uint64]*StoredHeap
	nextID  uint64
	strides map[DescriptorHeapType]uint32
}

// NewDescriptorStore creates a store using the given per-type descriptor strides.
//
// Parameters:
//   - strides: the handle increment for each heap type; missing types default to 32
//
// Returns:
//   - *DescriptorStore: the new store
func NewDescriptorStore(strides map[DescriptorHeapType]uint32) *DescriptorStore {
	s := &DescriptorStore{
		heaps:   make(map[uint64]*StoredHeap),
		strides: make(map[DescriptorHeapType]uint32),
	}
	for _, t := range []DescriptorHeapType{HeapTypeCBVSRVUAV, HeapTypeSampler, HeapTypeRTV, HeapTypeDSV} {
		s.strides[t] = 32
	}
	for t, v := range strides {
		s.strides[t] = v
	}
	return s
}

// Stride returns the descriptor stride of a heap type.
//
// Parameters:
//   - t: the heap type
//
// Returns:
//   - uint32: the stride
func (s *DescriptorStore) Stride(t DescriptorHeapType) uint32 {
	return s.strides[t]
}

// CreateHeap allocates a new heap in the store.
//
// Parameters:
//   - desc: the heap description
//
// Returns:
//   - *StoredHeap: the created heap
//   - error: an error for empty heaps or shader-visible RTV/DSV heaps
func (s *DescriptorStore) CreateHeap(desc DescriptorHeapDesc) (*StoredHeap, error) {
	if desc.NumDescriptors == 0 {
		return nil, fmt.Errorf("%w: heap %q has no descriptors", ErrHeapType, desc.Label)
	}
	if desc.ShaderVisible && (desc.Type == HeapTypeRTV || desc.Type == HeapTypeDSV) {
		return nil, fmt.Errorf("%w: %s heaps cannot be shader visible", ErrHeapType, desc.Type)
	}
	stride := s.strides[desc.Type]
	if uint64(desc.NumDescriptors)*uint64(stride) >= uint64(1)<<heapAddressShift {
		return nil, fmt.Errorf("%w: heap %q of %d descriptors is too large", ErrHeapType, desc.Label, desc.NumDescriptors)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID

	h := &StoredHeap{
		store:   s,
		id:      id,
		desc:    desc,
		stride:  stride,
		cpuBase: CPUHandle(id << heapAddressShift),
		slots:   make([]Descriptor, desc.NumDescriptors),
	}
	if desc.ShaderVisible {
		h.gpuBase = GPUHandle(gpuAddressBit | id<<heapAddressShift)
	}
	s.heaps[id] = h
	return h, nil
}

// Write stores d in the slot addressed by dest.
//
// Parameters:
//   - dest: the CPU handle of the destination slot
//   - d: the descriptor to store
//
// Returns:
//   - error: ErrInvalidHandle or ErrHeapType if dest cannot hold d
func (s *DescriptorStore) Write(dest CPUHandle, d Descriptor) error {
	h, idx, err := s.resolveCPU(dest)
	if err != nil {
		return err
	}
	if want := d.Kind.heapType(); want != h.desc.Type {
		return fmt.Errorf("%w: %s descriptor written to %s heap %q", ErrHeapType, d.Kind, h.desc.Type, h.desc.Label)
	}
	h.mu.Lock()
	h.slots[idx] = d
	h.mu.Unlock()
	h.version.Add(1)
	return nil
}

// Lookup returns the descriptor stored at a CPU handle.
//
// Parameters:
//   - h: the CPU handle
//
// Returns:
//   - Descriptor: the stored descriptor
//   - error: ErrInvalidHandle if h does not address a live slot
func (s *DescriptorStore) Lookup(h CPUHandle) (Descriptor, error) {
	heap, idx, err := s.resolveCPU(h)
	if err != nil {
		return Descriptor{}, err
	}
	return heap.Slot(idx), nil
}

// Copy copies n contiguous descriptors between two heaps of type t.
//
// Parameters:
//   - n: the number of descriptors
//   - dst: the first destination slot
//   - src: the first source slot
//   - t: the required heap type of both heaps
//
// Returns:
//   - error: an error if a range is out of bounds or a heap has the wrong type
func (s *DescriptorStore) Copy(n uint32, dst, src CPUHandle, t DescriptorHeapType) error {
	if n == 0 {
		return nil
	}
	dh, di, err := s.resolveCPU(dst)
	if err != nil {
		return err
	}
	sh, si, err := s.resolveCPU(src)
	if err != nil {
		return err
	}
	if dh.desc.Type != t || sh.desc.Type != t {
		return fmt.Errorf("%w: copy of %s descriptors between %s and %s heaps", ErrHeapType, t, sh.desc.Type, dh.desc.Type)
	}
	if uint64(di)+uint64(n) > uint64(len(dh.slots)) || uint64(si)+uint64(n) > uint64(len(sh.slots)) {
		return fmt.Errorf("%w: copy of %d descriptors from slot %d to slot %d is out of range", ErrInvalidHandle, n, si, di)
	}

	src2 := sh.Slots(si, n)
	changed := false
	dh.mu.Lock()
	for i := range src2 {
		if dh.slots[di+uint32(i)] != src2[i] {
			dh.slots[di+uint32(i)] = src2[i]
			changed = true
		}
	}
	dh.mu.Unlock()
	if changed {
		dh.version.Add(1)
	}
	return nil
}

// ResolveGPU maps a GPU handle of a shader-visible heap back to its heap and slot index.
//
// Parameters:
//   - h: the GPU handle
//
// Returns:
//   - *StoredHeap: the heap that contains the slot
//   - uint32: the slot index; may equal the heap capacity for an empty table at the end of the heap
//   - error: ErrInvalidHandle if h does not address a shader-visible heap
func (s *DescriptorStore) ResolveGPU(h GPUHandle) (*StoredHeap, uint32, error) {
	if uint64(h)&gpuAddressBit == 0 {
		return nil, 0, fmt.Errorf("%w: %#x is not a GPU descriptor handle", ErrInvalidHandle, uint64(h))
	}
	addr := uint64(h) &^ gpuAddressBit
	heap, idx, err := s.resolve(addr, true)
	if err != nil {
		return nil, 0, err
	}
	if !heap.desc.ShaderVisible {
		return nil, 0, fmt.Errorf("%w: heap %q is not shader visible", ErrInvalidHandle, heap.desc.Label)
	}
	return heap, idx, nil
}

func (s *DescriptorStore) resolveCPU(h CPUHandle) (*StoredHeap, uint32, error) {
	return s.resolve(uint64(h), false)
}

func (s *DescriptorStore) resolve(addr uint64, allowEnd bool) (*StoredHeap, uint32, error) {
	id := addr >> heapAddressShift
	off := addr & (uint64(1)<<heapAddressShift - 1)

	s.mu.RLock()
	heap, ok := s.heaps[id]
	s.mu.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("%w: %#x does not belong to a live heap", ErrInvalidHandle, addr)
	}
	if off%uint64(heap.stride) != 0 {
		return nil, 0, fmt.Errorf("%w: %#x is not aligned to stride %d", ErrInvalidHandle, addr, heap.stride)
	}
	idx := off / uint64(heap.stride)
	limit := uint64(len(heap.slots))
	if idx > limit || (idx == limit && !allowEnd) {
		return nil, 0, fmt.Errorf("%w: slot %d is outside heap %q of %d", ErrInvalidHandle, idx, heap.desc.Label, limit)
	}
	return heap, uint32(idx), nil
}

func (s *DescriptorStore) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.heaps, id)
}

// StoredHeap is a DescriptorHeap whose slots live in a DescriptorStore.
type StoredHeap struct {
	store   *DescriptorStore
	id      uint64
	desc    DescriptorHeapDesc
	stride  uint32
	cpuBase CPUHandle
	gpuBase GPUHandle

	mu      sync.RWMutex
	slots   []Descriptor
	version atomic.Uint64
}

var _ DescriptorHeap = &StoredHeap{}

func (h *StoredHeap) Desc() DescriptorHeapDesc { return h.desc }

func (h *StoredHeap) CPUStart() CPUHandle { return h.cpuBase }

func (h *StoredHeap) GPUStart() GPUHandle { return h.gpuBase }

func (h *StoredHeap) Stride() uint32 { return h.stride }

func (h *StoredHeap) Release() { h.store.remove(h.id) }

// Version increases every time the contents of the heap change.
//
// Returns:
//   - uint64: the content version
func (h *StoredHeap) Version() uint64 { return h.version.Load() }

// Slot returns the descriptor at index i, or an empty descriptor when i is out of range.
//
// Parameters:
//   - i: the slot index
//
// Returns:
//   - Descriptor: the stored descriptor
func (h *StoredHeap) Slot(i uint32) Descriptor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if int(i) >= len(h.slots) {
		return Descriptor{}
	}
	return h.slots[i]
}

// Slots returns a copy of up to n descriptors starting at index start.
//
// Parameters:
//   - start: the first slot index
//   - n: the number of slots, clamped to the end of the heap
//
// Returns:
//   - []Descriptor: the copied descriptors
func (h *StoredHeap) Slots(start, n uint32) []Descriptor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if int(start) >= len(h.slots) {
		return nil
	}
	end := min(uint64(start)+uint64(n), uint64(len(h.slots)))
	out := make([]Descriptor, end-uint64(start))
	copy(out, h.slots[start:end])
	return out
}
