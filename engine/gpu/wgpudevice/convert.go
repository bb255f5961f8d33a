package wgpudevice

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

func textureFormat(f gpu.Format) (wgpu.TextureFormat, error) {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm, nil
	case gpu.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm, nil
	case gpu.FormatD32Float:
		return wgpu.TextureFormatDepth32Float, nil
	}
	return 0, fmt.Errorf("unsupported texture format %d", int(f))
}

func textureUsage(u gpu.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&gpu.TextureUsageShaderResource != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&(gpu.TextureUsageRenderTarget|gpu.TextureUsageDepthStencil) != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&gpu.TextureUsageCopyDest != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

func compareFunction(c gpu.CompareFunc) wgpu.CompareFunction {
	switch c {
	case gpu.CompareNever:
		return wgpu.CompareFunctionNever
	case gpu.CompareLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareLessEqual:
		return wgpu.CompareFunctionLessEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

// addressMode maps an address mode. WebGPU has no border addressing; clamping to the edge
// texel is the closest match for shadow lookups, whose border is white anyway.
func addressMode(m gpu.AddressMode) wgpu.AddressMode {
	switch m {
	case gpu.AddressMirror:
		return wgpu.AddressModeMirrorRepeat
	case gpu.AddressClamp, gpu.AddressBorder:
		return wgpu.AddressModeClampToEdge
	default:
		return wgpu.AddressModeRepeat
	}
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullFront:
		return wgpu.CullModeFront
	case gpu.CullBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFloat32x3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

func samplerDescriptor(desc gpu.SamplerDesc) *wgpu.SamplerDescriptor {
	filter, mip := wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	if desc.Filter == gpu.FilterLinear {
		filter, mip = wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	}
	out := &wgpu.SamplerDescriptor{
		AddressModeU:  addressMode(desc.AddressU),
		AddressModeV:  addressMode(desc.AddressV),
		AddressModeW:  addressMode(desc.AddressW),
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mip,
		LodMinClamp:   desc.MinLOD,
		LodMaxClamp:   desc.MaxLOD,
		MaxAnisotropy: 1,
	}
	if out.LodMaxClamp <= out.LodMinClamp {
		out.LodMaxClamp = 32
	}
	if desc.Comparison {
		out.Compare = compareFunction(desc.Compare)
	}
	return out
}

// layoutEntry describes how one declared binding appears in a bind group layout.
func layoutEntry(b gpu.ShaderResourceBinding, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: b.Binding, Visibility: visibility}
	switch b.Kind {
	case gpu.BindingUniform:
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
	case gpu.BindingStorage:
		e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case gpu.BindingTexture:
		e.Texture.SampleType = wgpu.TextureSampleTypeFloat
		e.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case gpu.BindingDepthTexture:
		e.Texture.SampleType = wgpu.TextureSampleTypeDepth
		e.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case gpu.BindingSampler:
		e.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case gpu.BindingComparisonSampler:
		e.Sampler.Type = wgpu.SamplerBindingTypeComparison
	}
	return e
}

// mergeBindings unions the bindings of the vertex and pixel stages per group, widening the
// visibility of bindings both stages declare. Entries of each group are sorted by binding.
func mergeBindings(vertex, pixel []gpu.ShaderResourceBinding) map[uint32][]wgpu.BindGroupLayoutEntry {
	type key struct{ group, binding uint32 }
	entries := make(map[key]wgpu.BindGroupLayoutEntry)
	add := func(bindings []gpu.ShaderResourceBinding, stage wgpu.ShaderStage) {
		for _, b := range bindings {
			k := key{b.Group, b.Binding}
			if existing, ok := entries[k]; ok {
				existing.Visibility |= stage
				entries[k] = existing
				continue
			}
			entries[k] = layoutEntry(b, stage)
		}
	}
	add(vertex, wgpu.ShaderStageVertex)
	add(pixel, wgpu.ShaderStageFragment)

	merged := make(map[uint32][]wgpu.BindGroupLayoutEntry)
	for k, e := range entries {
		merged[k.group] = append(merged[k.group], e)
	}
	for g := range merged {
		sort.Slice(merged[g], func(i, j int) bool {
			return merged[g][i].Binding < merged[g][j].Binding
		})
	}
	return merged
}
