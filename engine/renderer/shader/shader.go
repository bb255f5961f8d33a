package shader

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// Paths of the embedded pass shaders, relative to the default source filesystem.
const (
	ShadowPassPath = "assets/shadow_pass.wgsl"
	ScenePassPath  = "assets/scene_pass.wgsl"
)

// Profiles select the pipeline stage an entry point is compiled for.
const (
	VertexProfile = "vs_6_6"
	PixelProfile  = "ps_6_6"
)

//go:embed assets/*.wgsl
var assets embed.FS

var (
	// ErrUnsupportedProfile is returned for a profile that is neither vs_* nor ps_*.
	ErrUnsupportedProfile = errors.New("unsupported shader profile")

	// ErrEntryPointNotFound is returned when the module has no entry point with the requested
	// name for the profile's stage.
	ErrEntryPointNotFound = errors.New("entry point not found")
)

// CompileError describes a failed compilation. Diagnostic carries the compiler output.
type CompileError struct {
	Path       string
	EntryPoint string
	Profile    string
	Diagnostic string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader %s (%s, %s): %s", e.Path, e.EntryPoint, e.Profile, e.Diagnostic)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// module is one pre-processed and compiled WGSL file. Every entry point of a file shares it.
type module struct {
	source   string
	ir       *ir.Module
	spirv    []byte
	bindings []gpu.ShaderResourceBinding
}

// compiler is the implementation of the Compiler interface.
type compiler struct {
	mu sync.Mutex

	fsys          fs.FS
	debug         bool
	validation    bool
	flattenArrays bool

	modules map[string]*module
	pp      PreProcessor
}

// Compiler turns annotated WGSL files into shader bytecode. Files are read from an fs.FS,
// pre-processed, parsed and validated with naga, and lowered to SPIR-V once per path.
type Compiler interface {
	// Compile compiles one entry point of a WGSL file.
	//
	// Parameters:
	//   - path: the file path inside the compiler's filesystem
	//   - entryPoint: the entry point function name
	//   - profile: the stage profile, vs_* for vertex or ps_* for pixel
	//
	// Returns:
	//   - gpu.ShaderBytecode: the SPIR-V module, the pre-processed WGSL source and the entry point
	//   - error: a *CompileError when reading, parsing, validation or the entry point check fails
	Compile(path, entryPoint, profile string) (gpu.ShaderBytecode, error)

	// Source returns the pre-processed WGSL source of a file.
	//
	// Parameters:
	//   - path: the file path inside the compiler's filesystem
	//
	// Returns:
	//   - string: the WGSL source with every annotation expanded
	//   - error: a *CompileError when reading or pre-processing fails
	Source(path string) (string, error)
}

var _ Compiler = &compiler{}

// NewCompiler creates a Compiler reading from the embedded pass shaders.
//
// Parameters:
//   - options: functional options to configure the compiler
//
// Returns:
//   - Compiler: the configured compiler
func NewCompiler(options ...CompilerBuilderOption) Compiler {
	c := &compiler{
		fsys:       assets,
		validation: true,
		modules:    make(map[string]*module),
	}
	for _, option := range options {
		option(c)
	}
	var ppOptions []PreProcessorBuilderOption
	if c.flattenArrays {
		ppOptions = append(ppOptions, WithFlattenedArrays())
	}
	c.pp = NewPreProcessor(ppOptions...)
	return c
}

func (c *compiler) Compile(path, entryPoint, profile string) (gpu.ShaderBytecode, error) {
	fail := func(diag string, err error) (gpu.ShaderBytecode, error) {
		return gpu.ShaderBytecode{}, &CompileError{Path: path, EntryPoint: entryPoint, Profile: profile, Diagnostic: diag, Err: err}
	}

	stage, irStage, err := stageOf(profile)
	if err != nil {
		return fail(err.Error(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.load(path)
	if err != nil {
		return fail(err.Error(), err)
	}

	found := false
	for _, ep := range m.ir.EntryPoints {
		if ep.Name == entryPoint && ep.Stage == irStage {
			found = true
			break
		}
	}
	if !found {
		return fail(fmt.Sprintf("no %s entry point named %q", stage, entryPoint), ErrEntryPointNotFound)
	}

	return gpu.ShaderBytecode{
		Code:       m.spirv,
		Source:     m.source,
		EntryPoint: entryPoint,
		Stage:      stage,
		Bindings:   m.bindings,
	}, nil
}

func (c *compiler) Source(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.load(path)
	if err != nil {
		return "", &CompileError{Path: path, Diagnostic: err.Error(), Err: err}
	}
	return m.source, nil
}

// load reads, pre-processes and compiles path, or returns the cached module.
// Caller must hold the mutex.
func (c *compiler) load(path string) (*module, error) {
	if m, ok := c.modules[path]; ok {
		return m, nil
	}

	data, err := fs.ReadFile(c.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	source, err := c.pp.Process(string(data))
	if err != nil {
		return nil, fmt.Errorf("pre-process: %w", err)
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	irModule, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("lower: %w", err)
	}
	if c.validation {
		diags, err := naga.Validate(irModule)
		if err != nil {
			return nil, fmt.Errorf("validate: %w", err)
		}
		if len(diags) > 0 {
			msgs := make([]string, len(diags))
			for i, d := range diags {
				msgs[i] = d.Error()
			}
			return nil, fmt.Errorf("validate: %s", strings.Join(msgs, "; "))
		}
	}
	code, err := naga.GenerateSPIRV(irModule, spirv.Options{
		Version:    spirv.Version1_3,
		Debug:      c.debug,
		Validation: c.validation,
	})
	if err != nil {
		return nil, err
	}

	decls := c.pp.Declarations()
	bindings := make([]gpu.ShaderResourceBinding, len(decls))
	for i, d := range decls {
		bindings[i] = gpu.ShaderResourceBinding{Group: d.Group, Binding: d.Binding, Kind: d.BindingKind()}
	}
	m := &module{source: source, ir: irModule, spirv: code, bindings: bindings}
	c.modules[path] = m
	return m, nil
}

// stageOf maps a profile prefix to the pipeline stage it compiles for.
func stageOf(profile string) (gpu.ShaderStage, ir.ShaderStage, error) {
	switch {
	case strings.HasPrefix(profile, "vs_"):
		return gpu.ShaderStageVertex, ir.StageVertex, nil
	case strings.HasPrefix(profile, "ps_"):
		return gpu.ShaderStagePixel, ir.StageFragment, nil
	}
	return 0, 0, fmt.Errorf("%w %q", ErrUnsupportedProfile, profile)
}
