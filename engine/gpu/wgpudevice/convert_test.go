package wgpudevice

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeBindings(t *testing.T) {
	assert := assert.New(t)

	vertex := []gpu.ShaderResourceBinding{
		{Group: 1, Binding: 1, Kind: gpu.BindingUniform},
		{Group: 0, Binding: 0, Kind: gpu.BindingUniform},
	}
	pixel := []gpu.ShaderResourceBinding{
		{Group: 0, Binding: 32, Kind: gpu.BindingComparisonSampler},
		{Group: 0, Binding: 0, Kind: gpu.BindingUniform},
		{Group: 0, Binding: 16, Kind: gpu.BindingDepthTexture},
		{Group: 2, Binding: 16, Kind: gpu.BindingTexture},
	}

	merged := mergeBindings(vertex, pixel)
	require.Len(t, merged, 3)

	group0 := merged[0]
	require.Len(t, group0, 3)
	assert.Equal([]uint32{0, 16, 32}, []uint32{group0[0].Binding, group0[1].Binding, group0[2].Binding})
	assert.Equal(wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, group0[0].Visibility, "declared by both stages")
	assert.Equal(wgpu.BufferBindingTypeUniform, group0[0].Buffer.Type)
	assert.Equal(wgpu.TextureSampleTypeDepth, group0[1].Texture.SampleType)
	assert.Equal(wgpu.SamplerBindingTypeComparison, group0[2].Sampler.Type)

	assert.Equal(wgpu.ShaderStageVertex, merged[1][0].Visibility)
	assert.Equal(wgpu.TextureSampleTypeFloat, merged[2][0].Texture.SampleType)
	assert.Equal(wgpu.ShaderStageFragment, merged[2][0].Visibility)
}

func TestSamplerDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		desc    gpu.SamplerDesc
		address wgpu.AddressMode
		filter  wgpu.FilterMode
		compare wgpu.CompareFunction
		maxLOD  float32
	}{
		{
			name:    "wrapping linear",
			desc:    gpu.SamplerDesc{Filter: gpu.FilterLinear, AddressU: gpu.AddressWrap},
			address: wgpu.AddressModeRepeat,
			filter:  wgpu.FilterModeLinear,
			maxLOD:  32,
		},
		{
			name:    "shadow comparison",
			desc:    gpu.SamplerDesc{Filter: gpu.FilterLinear, AddressU: gpu.AddressBorder, Comparison: true, Compare: gpu.CompareLessEqual, MaxLOD: 1},
			address: wgpu.AddressModeClampToEdge,
			filter:  wgpu.FilterModeLinear,
			compare: wgpu.CompareFunctionLessEqual,
			maxLOD:  1,
		},
		{
			name:    "point mirror",
			desc:    gpu.SamplerDesc{Filter: gpu.FilterPoint, AddressU: gpu.AddressMirror},
			address: wgpu.AddressModeMirrorRepeat,
			filter:  wgpu.FilterModeNearest,
			maxLOD:  32,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			out := samplerDescriptor(tt.desc)
			assert.Equal(tt.address, out.AddressModeU)
			assert.Equal(tt.filter, out.MinFilter)
			assert.Equal(tt.filter, out.MagFilter)
			assert.Equal(tt.compare, out.Compare)
			assert.Equal(tt.maxLOD, out.LodMaxClamp)
		})
	}
}

func TestTextureConversions(t *testing.T) {
	assert := assert.New(t)

	f, err := textureFormat(gpu.FormatD32Float)
	require.NoError(t, err)
	assert.Equal(wgpu.TextureFormatDepth32Float, f)
	_, err = textureFormat(gpu.FormatUnknown)
	assert.Error(err)

	assert.Equal(wgpu.TextureUsageTextureBinding|wgpu.TextureUsageRenderAttachment,
		textureUsage(gpu.TextureUsageDepthStencil|gpu.TextureUsageShaderResource))
	assert.Equal(wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst,
		textureUsage(gpu.TextureUsageShaderResource|gpu.TextureUsageCopyDest))
	assert.Equal(wgpu.CullModeBack, cullMode(gpu.CullBack))
	assert.Equal(wgpu.VertexFormatFloat32x3, vertexFormat(gpu.VertexFloat32x3))
}
