package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/light"
	"github.com/Carmen-Shannon/oxy-bindless/engine/model"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/shader"
)

// PipelineType identifies which pass a pipeline renders.
type PipelineType int

const (
	// PipelineTypeShadow is the depth-only pass rendered from light 0 into the shadow map.
	PipelineTypeShadow PipelineType = iota

	// PipelineTypeScene is the lit pass rendered into the back buffer.
	PipelineTypeScene
)

func (t PipelineType) String() string {
	if t == PipelineTypeScene {
		return "scene"
	}
	return "shadow"
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string

	rootSignature gpu.RootSignature
	state         gpu.PipelineState

	depthBias           int32
	depthBiasSlopeScale float32
	depthFunc           gpu.CompareFunc
	cullMode            gpu.CullMode
	depthFormat         gpu.Format
	renderTargetFormat  gpu.Format
}

// Pipeline is a compiled graphics pipeline together with the root signature it was built for.
type Pipeline interface {
	// Type returns the pass this pipeline renders.
	//
	// Returns:
	//   - PipelineType: the pipeline type
	Type() PipelineType

	// PipelineKey returns the identifier used as the root signature and pipeline label.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// RootSignature returns the binding layout commands must set before drawing with the pipeline.
	//
	// Returns:
	//   - gpu.RootSignature: the root signature
	RootSignature() gpu.RootSignature

	// State returns the compiled pipeline state.
	//
	// Returns:
	//   - gpu.PipelineState: the pipeline state object
	State() gpu.PipelineState

	// Release frees the pipeline state and root signature.
	Release()
}

var _ Pipeline = &pipeline{}

// NewShadowPipeline compiles the shadow pass: a vertex-only, depth-only pipeline with a
// slope-scaled depth bias writing a D32 shadow map.
//
// Parameters:
//   - device: the device to create the pipeline on
//   - compiler: the shader compiler providing the shadow pass vertex shader
//   - opts: options overriding the rasterizer and depth defaults
//
// Returns:
//   - Pipeline: the compiled pipeline
//   - error: a *shader.CompileError or a device error
func NewShadowPipeline(device gpu.Device, compiler shader.Compiler, opts ...PipelineBuilderOption) (Pipeline, error) {
	p := newPipeline(PipelineTypeShadow, opts...)

	vs, err := compiler.Compile(shader.ShadowPassPath, "vs_main", shader.VertexProfile)
	if err != nil {
		return nil, err
	}
	if err := p.create(device, ShadowRootSignatureDesc(), vs, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// NewScenePipeline compiles the lit scene pass writing one color target and a D32 depth buffer.
//
// Parameters:
//   - device: the device to create the pipeline on
//   - compiler: the shader compiler providing the scene pass vertex and pixel shaders
//   - opts: options overriding the rasterizer, depth and render target defaults
//
// Returns:
//   - Pipeline: the compiled pipeline
//   - error: a *shader.CompileError or a device error
func NewScenePipeline(device gpu.Device, compiler shader.Compiler, opts ...PipelineBuilderOption) (Pipeline, error) {
	p := newPipeline(PipelineTypeScene, opts...)

	vs, err := compiler.Compile(shader.ScenePassPath, "vs_main", shader.VertexProfile)
	if err != nil {
		return nil, err
	}
	ps, err := compiler.Compile(shader.ScenePassPath, "ps_main", shader.PixelProfile)
	if err != nil {
		return nil, err
	}
	if err := p.create(device, SceneRootSignatureDesc(), vs, &ps); err != nil {
		return nil, err
	}
	return p, nil
}

func newPipeline(t PipelineType, opts ...PipelineBuilderOption) *pipeline {
	p := &pipeline{
		pipelineType:       t,
		pipelineKey:        t.String() + "_pass",
		depthFunc:          gpu.CompareLessEqual,
		cullMode:           gpu.CullBack,
		depthFormat:        gpu.FormatD32Float,
		renderTargetFormat: gpu.FormatRGBA8Unorm,
	}
	if t == PipelineTypeShadow {
		p.depthBias = light.DefaultShadowDepthBias
		p.depthBiasSlopeScale = light.DefaultShadowSlopeScaledDepthBias
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) create(device gpu.Device, rsDesc gpu.RootSignatureDesc, vs gpu.ShaderBytecode, ps *gpu.ShaderBytecode) error {
	rsDesc.Label = p.pipelineKey
	rs, err := device.CreateRootSignature(rsDesc)
	if err != nil {
		return fmt.Errorf("create %s root signature: %w", p.pipelineKey, err)
	}

	desc := gpu.PipelineStateDesc{
		Label:                p.pipelineKey,
		RootSignature:        rs,
		VertexShader:         vs,
		PixelShader:          ps,
		InputLayout:          model.VertexInputLayout(),
		VertexStride:         common.VertexSize,
		DepthFormat:          p.depthFormat,
		DepthFunc:            p.depthFunc,
		CullMode:             p.cullMode,
		DepthBias:            p.depthBias,
		SlopeScaledDepthBias: p.depthBiasSlopeScale,
	}
	if ps != nil {
		desc.RenderTargetFormats = []gpu.Format{p.renderTargetFormat}
	}

	state, err := device.CreatePipelineState(desc)
	if err != nil {
		rs.Release()
		return fmt.Errorf("create %s pipeline state: %w", p.pipelineKey, err)
	}
	p.rootSignature = rs
	p.state = state
	return nil
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) RootSignature() gpu.RootSignature {
	return p.rootSignature
}

func (p *pipeline) State() gpu.PipelineState {
	return p.state
}

func (p *pipeline) Release() {
	if p.state != nil {
		p.state.Release()
		p.state = nil
	}
	if p.rootSignature != nil {
		p.rootSignature.Release()
		p.rootSignature = nil
	}
}
