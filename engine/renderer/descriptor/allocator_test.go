package descriptor

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu/softgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeap(t *testing.T, dev gpu.Device, typ gpu.DescriptorHeapType, n uint32) gpu.DescriptorHeap {
	t.Helper()
	h, err := dev.CreateDescriptorHeap(gpu.DescriptorHeapDesc{Label: "shared", Type: typ, NumDescriptors: n, ShaderVisible: true})
	require.NoError(t, err)
	return h
}

func TestAllocator_GPUHandleIsAffine(t *testing.T) {
	for _, stride := range []uint32{32, 48, 64} {
		dev := softgpu.NewDevice(softgpu.WithDescriptorStrides(stride, stride))
		heap := newHeap(t, dev, gpu.HeapTypeCBVSRVUAV, 16)
		a := NewAllocator(heap)

		for i := 0; i <= 16; i++ {
			cpu := heap.CPUStart().Offset(i, stride)
			got, err := a.ResolveGPUHandle(cpu)
			require.NoError(t, err)
			want := heap.GPUStart() + gpu.GPUHandle(uint64(cpu-heap.CPUStart())/uint64(stride)*uint64(stride))
			assert.Equal(t, want, got, "stride %d slot %d", stride, i)
		}
		dev.Release()
	}
}

func TestAllocator_ResolveRejectsForeignHandles(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()
	heap := newHeap(t, dev, gpu.HeapTypeCBVSRVUAV, 4)
	a := NewAllocator(heap)

	_, err := a.ResolveGPUHandle(heap.CPUStart().Offset(5, heap.Stride()))
	assert.ErrorIs(err, ErrOutOfHeap)
	_, err = a.ResolveGPUHandle(heap.CPUStart() + 3)
	assert.ErrorIs(err, ErrOutOfHeap)
	_, err = a.ResolveGPUHandle(heap.CPUStart().Offset(-1, heap.Stride()))
	assert.ErrorIs(err, ErrOutOfHeap)
}

func TestAllocator_AllocateRangeIsContiguous(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()
	heap := newHeap(t, dev, gpu.HeapTypeCBVSRVUAV, 10)
	a := NewAllocator(heap)

	r1, err := a.AllocateRange(4)
	require.NoError(t, err)
	r2, err := a.AllocateRange(6)
	require.NoError(t, err)

	assert.Equal(heap.CPUStart(), r1.CPU)
	assert.Equal(heap.GPUStart(), r1.GPU)
	assert.Equal(uint32(4), r2.Offset)
	assert.Equal(r1.CPU.Offset(4, heap.Stride()), r2.CPU)
	assert.Equal(r1.GPU.Offset(4, heap.Stride()), r2.GPU)
	assert.Equal(uint32(0), a.Remaining())
	assert.Equal(heap.CPUStart().Offset(10, heap.Stride()), a.Cursor())

	empty, err := a.AllocateRange(0)
	assert.NoError(err)
	assert.Equal(uint32(10), empty.Offset)
}

func TestAllocator_CapacityLeavesCursorUnchanged(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()
	a := NewAllocator(newHeap(t, dev, gpu.HeapTypeSampler, 3))

	_, err := a.AllocateRange(2)
	require.NoError(t, err)
	cursor := a.Cursor()

	_, err = a.AllocateRange(2)
	assert.ErrorIs(err, ErrCapacity)
	assert.Equal(cursor, a.Cursor())
	assert.Equal(uint32(2), a.Allocated())

	_, err = a.AllocateRange(1)
	assert.NoError(err)
}

func TestSizing_ExactForTwoModels(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()

	models := []Counts{
		{Textures: 3, Materials: 2, Samplers: 1, LocalTransforms: 500},
		{Textures: 7, Materials: 4, Samplers: 2, LocalTransforms: 500},
	}
	var s Sizing
	s.AddShadowViews(2)
	for _, m := range models {
		s.AddModel(m)
	}
	assert.Equal(uint32(2+3+2+500+7+4+500), s.CBVSRVUAV())
	assert.Equal(uint32(1+1+2), s.Samplers())

	cbv := NewAllocator(newHeap(t, dev, gpu.HeapTypeCBVSRVUAV, s.CBVSRVUAV()))
	smp := NewAllocator(newHeap(t, dev, gpu.HeapTypeSampler, s.Samplers()))

	_, err := cbv.AllocateRange(2)
	require.NoError(t, err)
	_, err = smp.AllocateRange(1)
	require.NoError(t, err)
	for _, m := range models {
		_, err = cbv.AllocateRange(m.CBVSRVUAV())
		require.NoError(t, err)
		_, err = smp.AllocateRange(m.Samplers)
		require.NoError(t, err)
	}
	assert.Equal(uint32(0), cbv.Remaining())
	assert.Equal(uint32(0), smp.Remaining())

	_, err = cbv.AllocateRange(1)
	assert.ErrorIs(err, ErrCapacity)
}
