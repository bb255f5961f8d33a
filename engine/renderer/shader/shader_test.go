package shader

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passSource = `
@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}

@fragment
fn ps_main(@location(0) color: vec4<f32>) -> @location(0) vec4<f32> {
    return color;
}
`

func testCompiler() Compiler {
	return NewCompiler(
		WithValidation(false),
		WithFS(fstest.MapFS{
			"pass.wgsl":   {Data: []byte(passSource)},
			"broken.wgsl": {Data: []byte("@vertex fn vs_main( -> {")},
			"annotated.wgsl": {Data: []byte("//@oxy:register b0 space0 uniform scene unknown_type\n" +
				"//@oxy:register b0 space0 uniform other unknown_type\n")},
		}),
	)
}

func TestCompiler_Compile(t *testing.T) {
	assert := assert.New(t)
	c := testCompiler()

	vs, err := c.Compile("pass.wgsl", "vs_main", VertexProfile)
	require.NoError(t, err)
	assert.Equal(gpu.ShaderStageVertex, vs.Stage)
	assert.Equal("vs_main", vs.EntryPoint)
	assert.Contains(vs.Source, "fn vs_main")
	require.GreaterOrEqual(t, len(vs.Code), 4)
	assert.Equal(uint32(0x07230203), binary.LittleEndian.Uint32(vs.Code))

	ps, err := c.Compile("pass.wgsl", "ps_main", PixelProfile)
	require.NoError(t, err)
	assert.Equal(gpu.ShaderStagePixel, ps.Stage)
	assert.Equal(vs.Code, ps.Code, "entry points of one file share a module")
}

func TestCompiler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		entryPoint string
		profile    string
		want       error
	}{
		{name: "missing file", path: "nope.wgsl", entryPoint: "vs_main", profile: VertexProfile, want: fs.ErrNotExist},
		{name: "missing entry point", path: "pass.wgsl", entryPoint: "main", profile: VertexProfile, want: ErrEntryPointNotFound},
		{name: "wrong stage", path: "pass.wgsl", entryPoint: "vs_main", profile: PixelProfile, want: ErrEntryPointNotFound},
		{name: "unsupported profile", path: "pass.wgsl", entryPoint: "vs_main", profile: "cs_6_6", want: ErrUnsupportedProfile},
		{name: "syntax error", path: "broken.wgsl", entryPoint: "vs_main", profile: VertexProfile},
		{name: "duplicate binding", path: "annotated.wgsl", entryPoint: "vs_main", profile: VertexProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)

			_, err := testCompiler().Compile(tt.path, tt.entryPoint, tt.profile)
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(tt.path, ce.Path)
			assert.Equal(tt.entryPoint, ce.EntryPoint)
			assert.Equal(tt.profile, ce.Profile)
			assert.NotEmpty(ce.Diagnostic)
			if tt.want != nil {
				assert.ErrorIs(err, tt.want)
			}
		})
	}
}

func TestPreProcessor_Register(t *testing.T) {
	assert := assert.New(t)

	pp := NewPreProcessor()
	out, err := pp.Process(strings.Join([]string{
		"//@oxy:include material",
		"//@oxy:include material",
		"//@oxy:register b1 space1 uniform local local_transform",
		"//@oxy:register t0 space1 storage_read materials array<material>",
		"//@oxy:register s0 space1 handle samplers binding_array<sampler>",
	}, "\n"))
	require.NoError(t, err)

	assert.Equal(1, strings.Count(out, "struct Material"))
	assert.Contains(out, "@group(1) @binding(1) var<uniform> local: LocalTransform;")
	assert.Contains(out, "@group(1) @binding(16) var<storage, read> materials: array<Material>;")
	assert.Contains(out, "@group(1) @binding(32) var samplers: binding_array<sampler>;")

	decls := pp.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(gpu.RangeCBV, decls[0].RangeType)
	assert.Equal(uint32(1), decls[0].Register)
	assert.Equal(uint32(1), decls[0].Space)
	assert.Equal(gpu.RangeSRV, decls[1].RangeType)
	assert.Equal(gpu.RangeSampler, decls[2].RangeType)
}

func TestPreProcessor_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "empty", line: "//@oxy:"},
		{name: "unknown type", line: "//@oxy:bind b0"},
		{name: "unknown include", line: "//@oxy:include camera"},
		{name: "bad register class", line: "//@oxy:register u0 space0 uniform x scene_constants"},
		{name: "bad space", line: "//@oxy:register b0 group0 uniform x scene_constants"},
		{name: "bad address space", line: "//@oxy:register b0 space0 push x scene_constants"},
		{name: "bad array element", line: "//@oxy:register t0 space0 storage_read x array<camera>"},
		{name: "missing arguments", line: "//@oxy:register b0 space0 uniform"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPreProcessor().Process(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestPassShaders_Declarations(t *testing.T) {
	tests := []struct {
		path  string
		binds []string
	}{
		{
			path: ShadowPassPath,
			binds: []string{
				"@group(1) @binding(1) var<uniform> local: LocalTransform;",
				"@group(0) @binding(0) var<uniform> scene: SceneConstants;",
				"@group(0) @binding(1) var<uniform> lights: LightConstants;",
			},
		},
		{
			path: ScenePassPath,
			binds: []string{
				"@group(1) @binding(0) var<uniform> draw: DrawConstants;",
				"@group(1) @binding(1) var<uniform> local: LocalTransform;",
				"@group(1) @binding(16) var<storage, read> materials: array<Material>;",
				"@group(0) @binding(0) var<uniform> scene: SceneConstants;",
				"@group(0) @binding(1) var<uniform> lights: LightConstants;",
				"@group(0) @binding(16) var shadow_map: texture_depth_2d;",
				"@group(2) @binding(16) var textures: binding_array<texture_2d<f32>>;",
				"@group(0) @binding(32) var shadow_sampler: sampler_comparison;",
				"@group(1) @binding(32) var samplers: binding_array<sampler>;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert := assert.New(t)

			data, err := fs.ReadFile(assets, tt.path)
			require.NoError(t, err)

			out, err := NewPreProcessor().Process(string(data))
			require.NoError(t, err)
			assert.NotContains(out, annotationPrefix)
			for _, b := range tt.binds {
				assert.Contains(out, b)
			}
		})
	}
}

func TestPreProcessor_FlattenBindingArrays(t *testing.T) {
	assert := assert.New(t)

	out, err := NewPreProcessor(WithFlattenedArrays()).Process(strings.Join([]string{
		"//@oxy:register t0 space2 handle textures binding_array<texture_2d<f32>>",
		"//@oxy:register s0 space1 handle samplers binding_array<sampler>",
		"let c = textureSampleLevel(textures[b.texture_index], samplers[b.sampler_index], uv, 0.0);",
	}, "\n"))
	require.NoError(t, err)

	assert.Contains(out, "@group(2) @binding(16) var textures: texture_2d<f32>;")
	assert.Contains(out, "@group(1) @binding(32) var samplers: sampler;")
	assert.Contains(out, "textureSampleLevel(textures, samplers, uv, 0.0)")
	assert.NotContains(out, "binding_array")
}

func TestAnnotation_BindingKind(t *testing.T) {
	data, err := fs.ReadFile(assets, ScenePassPath)
	require.NoError(t, err)
	pp := NewPreProcessor()
	_, err = pp.Process(string(data))
	require.NoError(t, err)

	kinds := make(map[string]gpu.BindingKind)
	for _, d := range pp.Declarations() {
		kinds[string(d.Args[1])] = d.BindingKind()
	}
	assert.Equal(t, map[string]gpu.BindingKind{
		"draw":           gpu.BindingUniform,
		"local":          gpu.BindingUniform,
		"materials":      gpu.BindingStorage,
		"scene":          gpu.BindingUniform,
		"lights":         gpu.BindingUniform,
		"shadow_map":     gpu.BindingDepthTexture,
		"textures":       gpu.BindingTexture,
		"shadow_sampler": gpu.BindingComparisonSampler,
		"samplers":       gpu.BindingSampler,
	}, kinds)
}
