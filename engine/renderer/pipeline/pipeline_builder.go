package pipeline

import "github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

// PipelineBuilderOption is a functional option for configuring a Pipeline.
type PipelineBuilderOption func(*pipeline)

// WithPipelineKey is an option builder that overrides the label used for the pipeline and its
// root signature. Defaults to "shadow_pass" or "scene_pass".
//
// Parameters:
//   - key: the pipeline key
//
// Returns:
//   - PipelineBuilderOption: a function that applies the key option to a pipeline
func WithPipelineKey(key string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.pipelineKey = key
	}
}

// WithCullMode is an option builder that sets the face culling mode. Defaults to back face culling.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - PipelineBuilderOption: a function that applies the cull mode option to a pipeline
func WithCullMode(mode gpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithDepthBias is an option builder that sets the rasterizer depth bias. The shadow pipeline
// defaults to a constant bias of 0 and a slope scale of 1.
//
// Parameters:
//   - bias: the constant depth bias
//   - slopeScale: the slope-scaled depth bias
//
// Returns:
//   - PipelineBuilderOption: a function that applies the depth bias option to a pipeline
func WithDepthBias(bias int32, slopeScale float32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthBias = bias
		p.depthBiasSlopeScale = slopeScale
	}
}

// WithDepthFunc is an option builder that sets the depth comparison. Defaults to less-equal.
//
// Parameters:
//   - fn: the depth compare function
//
// Returns:
//   - PipelineBuilderOption: a function that applies the depth function option to a pipeline
func WithDepthFunc(fn gpu.CompareFunc) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthFunc = fn
	}
}

// WithDepthFormat is an option builder that sets the depth target format. Defaults to D32.
//
// Parameters:
//   - format: the depth format
//
// Returns:
//   - PipelineBuilderOption: a function that applies the depth format option to a pipeline
func WithDepthFormat(format gpu.Format) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthFormat = format
	}
}

// WithRenderTargetFormat is an option builder that sets the color target format of the scene
// pipeline, normally the swap chain format. Ignored by the shadow pipeline.
//
// Parameters:
//   - format: the render target format
//
// Returns:
//   - PipelineBuilderOption: a function that applies the render target option to a pipeline
func WithRenderTargetFormat(format gpu.Format) PipelineBuilderOption {
	return func(p *pipeline) {
		p.renderTargetFormat = format
	}
}
