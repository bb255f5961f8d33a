package pipeline

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu/softgpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/shader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompiler returns fixed bytecode for every request and records what was asked for.
type stubCompiler struct {
	requests []string
	fail     error
}

var _ shader.Compiler = &stubCompiler{}

func (c *stubCompiler) Compile(path, entryPoint, profile string) (gpu.ShaderBytecode, error) {
	c.requests = append(c.requests, path+":"+entryPoint+":"+profile)
	if c.fail != nil {
		return gpu.ShaderBytecode{}, &shader.CompileError{Path: path, EntryPoint: entryPoint, Profile: profile, Err: c.fail}
	}
	stage := gpu.ShaderStageVertex
	if profile == shader.PixelProfile {
		stage = gpu.ShaderStagePixel
	}
	return gpu.ShaderBytecode{Code: []byte{0x03, 0x02, 0x23, 0x07}, EntryPoint: entryPoint, Stage: stage}, nil
}

func (c *stubCompiler) Source(path string) (string, error) {
	return "", nil
}

func TestNewShadowPipeline_Defaults(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()
	compiler := &stubCompiler{}

	p, err := NewShadowPipeline(dev, compiler)
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(PipelineTypeShadow, p.Type())
	assert.Equal("shadow_pass", p.PipelineKey())
	assert.Equal([]string{shader.ShadowPassPath + ":vs_main:" + shader.VertexProfile}, compiler.requests)

	desc := p.State().Desc()
	assert.Nil(desc.PixelShader)
	assert.Empty(desc.RenderTargetFormats)
	assert.Equal(gpu.FormatD32Float, desc.DepthFormat)
	assert.Equal(gpu.CompareLessEqual, desc.DepthFunc)
	assert.Equal(gpu.CullBack, desc.CullMode)
	assert.Equal(int32(0), desc.DepthBias)
	assert.Equal(float32(1), desc.SlopeScaledDepthBias)
	assert.Equal(uint32(common.VertexSize), desc.VertexStride)
	assert.Same(p.RootSignature(), desc.RootSignature)

	params := p.RootSignature().Desc().Parameters
	require.Len(t, params, 3)
	assert.Equal(gpu.RootParamDescriptorTable, params[ShadowParamLocal].Kind)
	assert.Equal(gpu.RootParamCBV, params[ShadowParamScene].Kind)
	assert.Equal(uint32(1), params[ShadowParamLight].ShaderRegister)
}

func TestNewScenePipeline_Defaults(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()
	compiler := &stubCompiler{}

	p, err := NewScenePipeline(dev, compiler, WithRenderTargetFormat(gpu.FormatBGRA8Unorm))
	require.NoError(t, err)
	defer p.Release()

	assert.Len(compiler.requests, 2)
	desc := p.State().Desc()
	require.NotNil(t, desc.PixelShader)
	assert.Equal(gpu.ShaderStagePixel, desc.PixelShader.Stage)
	assert.Equal([]gpu.Format{gpu.FormatBGRA8Unorm}, desc.RenderTargetFormats)
	assert.Equal(int32(0), desc.DepthBias)
	assert.Zero(desc.SlopeScaledDepthBias)
	assert.Len(p.RootSignature().Desc().Parameters, 9)
}

func TestNewPipeline_Options(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()

	p, err := NewShadowPipeline(dev, &stubCompiler{},
		WithPipelineKey("sun_shadow"),
		WithCullMode(gpu.CullFront),
		WithDepthBias(4, 2.5),
		WithDepthFunc(gpu.CompareLess),
	)
	require.NoError(t, err)
	defer p.Release()

	desc := p.State().Desc()
	assert.Equal("sun_shadow", desc.Label)
	assert.Equal("sun_shadow", p.RootSignature().Desc().Label)
	assert.Equal(gpu.CullFront, desc.CullMode)
	assert.Equal(int32(4), desc.DepthBias)
	assert.Equal(float32(2.5), desc.SlopeScaledDepthBias)
	assert.Equal(gpu.CompareLess, desc.DepthFunc)
}

func TestNewPipeline_CompileError(t *testing.T) {
	dev := softgpu.NewDevice()
	defer dev.Release()
	boom := errors.New("boom")

	_, err := NewScenePipeline(dev, &stubCompiler{fail: boom})

	var compileErr *shader.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, shader.ScenePassPath, compileErr.Path)
	assert.ErrorIs(t, err, boom)
}

func TestSceneRootSignatureDesc_Layout(t *testing.T) {
	tests := []struct {
		name     string
		param    uint32
		kind     gpu.RootParameterKind
		rangeT   gpu.DescriptorRangeType
		count    uint32
		register uint32
		space    uint32
	}{
		{"local transform", SceneParamLocal, gpu.RootParamDescriptorTable, gpu.RangeCBV, 1, 1, 1},
		{"materials", SceneParamMaterials, gpu.RootParamDescriptorTable, gpu.RangeSRV, gpu.UnboundedRange, 0, 1},
		{"shadow map", SceneParamShadowMap, gpu.RootParamDescriptorTable, gpu.RangeSRV, 1, 0, 0},
		{"textures", SceneParamTextures, gpu.RootParamDescriptorTable, gpu.RangeSRV, gpu.UnboundedRange, 0, 2},
		{"shadow sampler", SceneParamShadowSampler, gpu.RootParamDescriptorTable, gpu.RangeSampler, 1, 0, 0},
		{"samplers", SceneParamSamplers, gpu.RootParamDescriptorTable, gpu.RangeSampler, gpu.UnboundedRange, 0, 1},
	}

	params := SceneRootSignatureDesc().Parameters
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			p := params[tt.param]
			assert.Equal(tt.kind, p.Kind)
			require.Len(t, p.Ranges, 1)
			assert.Equal(tt.rangeT, p.Ranges[0].Type)
			assert.Equal(tt.count, p.Ranges[0].NumDescriptors)
			assert.Equal(tt.register, p.Ranges[0].BaseRegister)
			assert.Equal(tt.space, p.Ranges[0].RegisterSpace)
		})
	}

	assert.Equal(t, gpu.RootParamConstants, params[SceneParamMaterialIndex].Kind)
	assert.Equal(t, uint32(1), params[SceneParamMaterialIndex].Num32BitValues)
}
