// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with injected struct source or
// generated register declarations, and collects the declared registers.
//
// The pre-processor maintains two registries:
//   - structRegistry: maps AnnotationArg keys to embedded WGSL struct sources and their
//     resolved type names. Used by @oxy:include (to inject the struct source) and
//     @oxy:register (to resolve the WGSL type name in the generated declaration).
//   - addressSpaceRegistry: maps address space argument keys to WGSL var syntax strings.
package shader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Carmen-Shannon/oxy-bindless/engine/light"
	"github.com/Carmen-Shannon/oxy-bindless/engine/model"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-bindless/engine/scene"
)

// registryEntry pairs a WGSL struct source string (embedded from a .wgsl asset file)
// with the resolved WGSL type name used in generated declarations.
type registryEntry struct {
	// Source is the raw WGSL struct definition text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:register declarations (e.g. "SceneConstants").
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// structRegistry maps struct type argument keys to their embedded WGSL source and type name.
	structRegistry map[AnnotationArg]registryEntry

	// addressSpaceRegistry maps address space argument keys to WGSL var syntax strings.
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates register annotations during a Process call.
	declarations []Annotation

	// flattenArrays lowers binding_array<T> registers to a single T binding for targets
	// without binding array support. Subscripts of the variable are dropped.
	flattenArrays bool
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations,
// replacing them with injected struct sources or generated declarations while collecting
// the declared registers.
type PreProcessor interface {
	// Process takes raw WGSL shader source code and pre-processes it by replacing
	// @oxy: annotations with their corresponding WGSL output. @oxy:include annotations
	// are replaced with embedded struct source text. @oxy:register annotations are replaced
	// with generated @group/@binding variable declarations.
	//
	// The declarations list is reset at the start of each call and can be retrieved
	// via Declarations() after Process returns.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed, references an unknown type, or
	//     declares the same group and binding twice
	Process(source string) (string, error)

	// Declarations returns the register annotations collected during the most recent call
	// to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with all registered struct types and
// address space mappings pre-populated.
//
// Parameters:
//   - options: functional options to configure the pre-processor
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(options ...PreProcessorBuilderOption) PreProcessor {
	p := &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			annotationArgVertex:         {Source: model.GPUVertexSource, Type: "VertexInput"},
			AnnotationArgLocalTransform: {Source: model.GPULocalTransformSource, Type: "LocalTransform"},
			AnnotationArgMaterial:       {Source: material.GPUMaterialSource, Type: "Material"},
			AnnotationArgSceneConstants: {Source: scene.GPUSceneConstantsSource, Type: "SceneConstants"},
			AnnotationArgLight:          {Source: light.GPULightSource, Type: "LightConstants"},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgUniform:     "var<uniform>",
			annotationArgStorageRead: "var<storage, read>",
			annotationArgHandle:      "var",
		},
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	included := make(map[AnnotationArg]bool)
	bound := make(map[[2]uint32]int)
	var flattened []string

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			// a second include of the same struct would redeclare it
			if included[a.Args[0]] {
				continue
			}
			included[a.Args[0]] = true
			out = append(out, p.structRegistry[a.Args[0]].Source)
		case AnnotationTypeRegister:
			key := [2]uint32{a.Group, a.Binding}
			if prev, ok := bound[key]; ok {
				return "", fmt.Errorf("line %d: @group(%d) @binding(%d) already declared on line %d", i+1, a.Group, a.Binding, prev)
			}
			bound[key] = i + 1

			typ := p.resolveType(a.Args[2])
			if inner, ok := cutBindingArray(typ); ok && p.flattenArrays {
				typ = inner
				flattened = append(flattened, string(a.Args[1]))
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				a.Group, a.Binding, p.addressSpaceRegistry[a.Args[0]], a.Args[1], typ))
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	result := strings.Join(out, "\n")
	for _, name := range flattened {
		subscript := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\[[^\]]*\]`)
		result = subscript.ReplaceAllString(result, name)
	}
	return result, nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// resolveType maps a register type argument to WGSL. Registered keys become their struct name,
// array<key> becomes a runtime-sized array of that struct, anything else is raw WGSL.
func (p *preProcessor) resolveType(arg AnnotationArg) string {
	if inner, ok := strings.CutPrefix(string(arg), "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		return fmt.Sprintf("array<%s>", p.structRegistry[AnnotationArg(inner)].Type)
	}
	if entry, ok := p.structRegistry[arg]; ok {
		return entry.Type
	}
	return string(arg)
}

// cutBindingArray returns the element type of a binding_array<T> type.
func cutBindingArray(typ string) (string, bool) {
	inner, ok := strings.CutPrefix(typ, "binding_array<")
	if !ok {
		return "", false
	}
	return strings.TrimSuffix(inner, ">"), true
}
