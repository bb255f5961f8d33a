package pipeline

import "github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

// Shadow pass root parameter indices.
const (
	ShadowParamLocal uint32 = iota
	ShadowParamScene
	ShadowParamLight
)

// Scene pass root parameter indices.
const (
	SceneParamMaterialIndex uint32 = iota
	SceneParamLocal
	SceneParamMaterials
	SceneParamScene
	SceneParamLight
	SceneParamShadowMap
	SceneParamTextures
	SceneParamShadowSampler
	SceneParamSamplers
)

// ShadowRootSignatureDesc returns the shadow pass layout: the per-draw local transform table
// (b1, space1) and the scene (b0) and light (b1) constant buffers.
//
// Returns:
//   - gpu.RootSignatureDesc: the shadow pass root signature description
func ShadowRootSignatureDesc() gpu.RootSignatureDesc {
	return gpu.RootSignatureDesc{
		Label: "shadow_pass",
		Parameters: []gpu.RootParameter{
			ShadowParamLocal: table(gpu.RangeCBV, 1, 1, 1),
			ShadowParamScene: {Kind: gpu.RootParamCBV, ShaderRegister: 0},
			ShadowParamLight: {Kind: gpu.RootParamCBV, ShaderRegister: 1},
		},
	}
}

// SceneRootSignatureDesc returns the scene pass layout. Per draw it changes the material index
// constant and the local transform table; per model the material, texture and sampler tables;
// per frame the constant buffers and the shadow map and sampler tables.
//
// Returns:
//   - gpu.RootSignatureDesc: the scene pass root signature description
func SceneRootSignatureDesc() gpu.RootSignatureDesc {
	return gpu.RootSignatureDesc{
		Label: "scene_pass",
		Parameters: []gpu.RootParameter{
			SceneParamMaterialIndex: {Kind: gpu.RootParamConstants, ShaderRegister: 0, RegisterSpace: 1, Num32BitValues: 1},
			SceneParamLocal:         table(gpu.RangeCBV, 1, 1, 1),
			SceneParamMaterials:     table(gpu.RangeSRV, gpu.UnboundedRange, 0, 1),
			SceneParamScene:         {Kind: gpu.RootParamCBV, ShaderRegister: 0},
			SceneParamLight:         {Kind: gpu.RootParamCBV, ShaderRegister: 1},
			SceneParamShadowMap:     table(gpu.RangeSRV, 1, 0, 0),
			SceneParamTextures:      table(gpu.RangeSRV, gpu.UnboundedRange, 0, 2),
			SceneParamShadowSampler: table(gpu.RangeSampler, 1, 0, 0),
			SceneParamSamplers:      table(gpu.RangeSampler, gpu.UnboundedRange, 0, 1),
		},
	}
}

func table(t gpu.DescriptorRangeType, n, register, space uint32) gpu.RootParameter {
	return gpu.RootParameter{
		Kind: gpu.RootParamDescriptorTable,
		Ranges: []gpu.DescriptorRange{
			{Type: t, NumDescriptors: n, BaseRegister: register, RegisterSpace: space},
		},
	}
}
