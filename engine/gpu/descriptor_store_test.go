package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorStore_HandlesAreAffine(t *testing.T) {
	assert := assert.New(t)
	s := NewDescriptorStore(map[DescriptorHeapType]uint32{HeapTypeCBVSRVUAV: 48})

	h, err := s.CreateHeap(DescriptorHeapDesc{Label: "cbv", Type: HeapTypeCBVSRVUAV, NumDescriptors: 8, ShaderVisible: true})
	require.NoError(t, err)
	assert.Equal(uint32(48), h.Stride())

	for i := 0; i <= 8; i++ {
		heap, idx, err := s.ResolveGPU(h.GPUStart().Offset(i, h.Stride()))
		assert.NoError(err)
		assert.Same(h, heap)
		assert.Equal(uint32(i), idx)
	}

	_, _, err = s.ResolveGPU(h.GPUStart().Offset(9, h.Stride()))
	assert.ErrorIs(err, ErrInvalidHandle)
	_, _, err = s.ResolveGPU(h.GPUStart() + 1)
	assert.ErrorIs(err, ErrInvalidHandle)
}

func TestDescriptorStore_ResolveGPURejectsHiddenHeaps(t *testing.T) {
	s := NewDescriptorStore(nil)
	h, err := s.CreateHeap(DescriptorHeapDesc{Label: "staging", Type: HeapTypeCBVSRVUAV, NumDescriptors: 4})
	require.NoError(t, err)

	assert.Equal(t, GPUHandle(0), h.GPUStart())
	_, _, err = s.ResolveGPU(GPUHandle(uint64(h.CPUStart()) | gpuAddressBit))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestDescriptorStore_CreateHeapValidation(t *testing.T) {
	assert := assert.New(t)
	s := NewDescriptorStore(nil)

	_, err := s.CreateHeap(DescriptorHeapDesc{Type: HeapTypeRTV, NumDescriptors: 2, ShaderVisible: true})
	assert.ErrorIs(err, ErrHeapType)
	_, err = s.CreateHeap(DescriptorHeapDesc{Type: HeapTypeSampler})
	assert.ErrorIs(err, ErrHeapType)
}

func TestDescriptorStore_WriteChecksHeapType(t *testing.T) {
	assert := assert.New(t)
	s := NewDescriptorStore(nil)
	samplers, err := s.CreateHeap(DescriptorHeapDesc{Type: HeapTypeSampler, NumDescriptors: 2})
	require.NoError(t, err)

	err = s.Write(samplers.CPUStart(), Descriptor{Kind: DescriptorCBV})
	assert.ErrorIs(err, ErrHeapType)

	err = s.Write(samplers.CPUStart().Offset(1, samplers.Stride()), Descriptor{Kind: DescriptorSampler, Sampler: SamplerDesc{Filter: FilterLinear}})
	assert.NoError(err)
	assert.Equal(FilterLinear, samplers.Slot(1).Sampler.Filter)

	err = s.Write(samplers.CPUStart().Offset(2, samplers.Stride()), Descriptor{Kind: DescriptorSampler})
	assert.ErrorIs(err, ErrInvalidHandle)
}

func TestDescriptorStore_CopyBumpsVersionOnlyOnChange(t *testing.T) {
	assert := assert.New(t)
	s := NewDescriptorStore(nil)
	src, err := s.CreateHeap(DescriptorHeapDesc{Label: "src", Type: HeapTypeSampler, NumDescriptors: 3})
	require.NoError(t, err)
	dst, err := s.CreateHeap(DescriptorHeapDesc{Label: "dst", Type: HeapTypeSampler, NumDescriptors: 5, ShaderVisible: true})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Write(src.CPUStart().Offset(i, src.Stride()), Descriptor{Kind: DescriptorSampler, Sampler: SamplerDesc{MaxLOD: float32(i)}}))
	}

	before := dst.Version()
	assert.NoError(s.Copy(3, dst.CPUStart().Offset(2, dst.Stride()), src.CPUStart(), HeapTypeSampler))
	assert.Greater(dst.Version(), before)
	assert.Equal(float32(2), dst.Slot(4).Sampler.MaxLOD)
	assert.Equal(DescriptorEmpty, dst.Slot(0).Kind)

	v := dst.Version()
	assert.NoError(s.Copy(3, dst.CPUStart().Offset(2, dst.Stride()), src.CPUStart(), HeapTypeSampler))
	assert.Equal(v, dst.Version())

	assert.ErrorIs(s.Copy(3, dst.CPUStart().Offset(3, dst.Stride()), src.CPUStart(), HeapTypeSampler), ErrInvalidHandle)
	assert.ErrorIs(s.Copy(1, dst.CPUStart(), src.CPUStart(), HeapTypeCBVSRVUAV), ErrHeapType)
}

func TestDescriptorStore_ReleasedHeapHandlesAreInvalid(t *testing.T) {
	s := NewDescriptorStore(nil)
	h, err := s.CreateHeap(DescriptorHeapDesc{Type: HeapTypeCBVSRVUAV, NumDescriptors: 1})
	require.NoError(t, err)
	h.Release()

	_, err = s.Lookup(h.CPUStart())
	assert.ErrorIs(t, err, ErrInvalidHandle)
}
