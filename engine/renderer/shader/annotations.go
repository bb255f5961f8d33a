// annotations.go defines the annotation types and parser for the Oxy WGSL shader
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that inject
// registered struct sources and declare resources by their root signature register. The
// register form keeps the WGSL @group/@binding numbering in one place (gpu.ShaderBinding),
// so shaders and root signatures are written in the same terms.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition
	// into the shader at the annotation site. The struct source is embedded from the
	// corresponding Go GPU type's .wgsl asset file.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include scene_constants
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeRegister generates a WGSL @group/@binding variable declaration for a root
	// signature register and appends an Annotation to the PreProcessor's declarations list.
	// The register is b<n> for constant buffers, t<n> for shader resources and s<n> for
	// samplers. The type is a registered struct key, array<key>, or a raw WGSL type.
	//
	// Syntax: //@oxy:register <register> space<m> <address_space> <var_name> <type>
	//
	// Example: //@oxy:register b0 space0 uniform scene scene_constants
	AnnotationTypeRegister AnnotationType = "register"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = struct type key (e.g. "light")
	//   - register: [0] = address space, [1] = var name, [2] = type
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// RangeType is the register class of a register annotation.
	RangeType gpu.DescriptorRangeType

	// Register and Space locate the resource in the root signature.
	Register uint32
	Space    uint32

	// Group and Binding are the resolved WGSL indices of a register annotation.
	Group   uint32
	Binding uint32
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Struct type arguments ──────────────────────────────────────────────────────
// These identify registered WGSL struct types. Each maps to a Go GPU type with an
// embedded .wgsl asset file.

const (
	// annotationArgVertex identifies the VertexInput struct.
	// Source: engine/model/assets/vertex.wgsl
	annotationArgVertex AnnotationArg = "vertex"

	// AnnotationArgLocalTransform identifies the LocalTransform constant buffer struct.
	// Source: engine/model/assets/local_transform.wgsl
	AnnotationArgLocalTransform AnnotationArg = "local_transform"

	// AnnotationArgMaterial identifies the Material struct and its TextureBinding.
	// Source: engine/renderer/material/assets/material.wgsl
	AnnotationArgMaterial AnnotationArg = "material"

	// AnnotationArgSceneConstants identifies the SceneConstants struct.
	// Source: engine/scene/assets/scene_constants.wgsl
	AnnotationArgSceneConstants AnnotationArg = "scene_constants"

	// AnnotationArgLight identifies the LightConstants struct and its LightState.
	// Source: engine/light/assets/light.wgsl
	AnnotationArgLight AnnotationArg = "light"
)

// ── Address space arguments ────────────────────────────────────────────────────

const (
	// annotationArgUniform maps to var<uniform> in WGSL.
	annotationArgUniform AnnotationArg = "uniform"

	// annotationArgStorageRead maps to var<storage, read> in WGSL.
	annotationArgStorageRead AnnotationArg = "storage_read"

	// annotationArgHandle maps to a plain var, used for textures and samplers.
	annotationArgHandle AnnotationArg = "handle"
)

// validStructTypes lists all AnnotationArg values that are accepted as struct type
// arguments in @oxy:include annotations. Each entry must have a corresponding
// registryEntry in the PreProcessor's structRegistry.
var validStructTypes = []AnnotationArg{
	annotationArgVertex,
	AnnotationArgLocalTransform,
	AnnotationArgMaterial,
	AnnotationArgSceneConstants,
	AnnotationArgLight,
}

// validAddressSpaces lists all AnnotationArg values that are accepted as address
// space arguments in @oxy:register annotations.
var validAddressSpaces = []AnnotationArg{
	annotationArgUniform,
	annotationArgStorageRead,
	annotationArgHandle,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Returns
// a populated Annotation for valid annotations, or an error describing the problem for
// malformed annotations with correct prefix but invalid syntax or unknown arguments.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeRegister):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy register annotation requires exactly five arguments (register, space, address space, var name, type)", lineNum)
		}
		rangeType, register, err := parseRegister(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		spaceArg, ok := strings.CutPrefix(args[2], "space")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid register space %q in @oxy register annotation", lineNum, args[2])
		}
		space, err := strconv.ParseUint(spaceArg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid register space %q in @oxy register annotation: %v", lineNum, args[2], err)
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy register annotation", lineNum, args[3])
		}
		if inner, ok := strings.CutPrefix(args[5], "array<"); ok {
			inner = strings.TrimSuffix(inner, ">")
			if !slices.Contains(validStructTypes, AnnotationArg(inner)) {
				return nil, fmt.Errorf("line %d: unknown array element type %q in @oxy register annotation", lineNum, inner)
			}
		}
		group, binding := gpu.ShaderBinding(rangeType, register, uint32(space))
		return &Annotation{
			Type:      AnnotationTypeRegister,
			Args:      []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:      lineNum,
			RangeType: rangeType,
			Register:  register,
			Space:     uint32(space),
			Group:     group,
			Binding:   binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

// parseRegister splits a register such as "b1" or "t0" into its class and number.
func parseRegister(arg string) (gpu.DescriptorRangeType, uint32, error) {
	if len(arg) < 2 {
		return 0, 0, fmt.Errorf("invalid register %q", arg)
	}
	var t gpu.DescriptorRangeType
	switch arg[0] {
	case 'b':
		t = gpu.RangeCBV
	case 't':
		t = gpu.RangeSRV
	case 's':
		t = gpu.RangeSampler
	default:
		return 0, 0, fmt.Errorf("unknown register class %q", arg[:1])
	}
	n, err := strconv.ParseUint(arg[1:], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid register %q: %v", arg, err)
	}
	return t, uint32(n), nil
}

// BindingKind classifies a register declaration by the resource type the shader reads through it.
//
// Returns:
//   - gpu.BindingKind: uniform and storage buffers by address space, handles by their WGSL type
func (a Annotation) BindingKind() gpu.BindingKind {
	switch a.Args[0] {
	case annotationArgUniform:
		return gpu.BindingUniform
	case annotationArgStorageRead:
		return gpu.BindingStorage
	}
	typ := string(a.Args[2])
	if inner, ok := cutBindingArray(typ); ok {
		typ = inner
	}
	switch {
	case strings.HasPrefix(typ, "texture_depth"):
		return gpu.BindingDepthTexture
	case strings.HasPrefix(typ, "texture"):
		return gpu.BindingTexture
	case typ == "sampler_comparison":
		return gpu.BindingComparisonSampler
	default:
		return gpu.BindingSampler
	}
}
