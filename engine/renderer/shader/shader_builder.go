package shader

import "io/fs"

// CompilerBuilderOption is a functional option for configuring a Compiler via NewCompiler.
type CompilerBuilderOption func(*compiler)

// WithFS is an option builder that sets the filesystem shader paths are read from.
// Defaults to the embedded pass shaders.
//
// Parameters:
//   - fsys: the source filesystem
//
// Returns:
//   - CompilerBuilderOption: a function that applies the filesystem option to a compiler
func WithFS(fsys fs.FS) CompilerBuilderOption {
	return func(c *compiler) {
		c.fsys = fsys
	}
}

// WithDebug is an option builder that embeds debug names in the generated SPIR-V.
//
// Parameters:
//   - debug: true to emit debug information
//
// Returns:
//   - CompilerBuilderOption: a function that applies the debug option to a compiler
func WithDebug(debug bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.debug = debug
	}
}

// WithValidation is an option builder that toggles IR and SPIR-V validation. Enabled by default.
//
// Parameters:
//   - validation: false to skip validation
//
// Returns:
//   - CompilerBuilderOption: a function that applies the validation option to a compiler
func WithValidation(validation bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.validation = validation
	}
}

// WithFlattenBindingArrays is an option builder that lowers binding_array registers to single
// bindings, for backends without binding array support. Every index into such a variable then
// reads its first descriptor.
//
// Parameters:
//   - flatten: true to flatten binding arrays
//
// Returns:
//   - CompilerBuilderOption: a function that applies the flatten option to a compiler
func WithFlattenBindingArrays(flatten bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.flattenArrays = flatten
	}
}

// PreProcessorBuilderOption is a functional option for configuring a PreProcessor via NewPreProcessor.
type PreProcessorBuilderOption func(*preProcessor)

// WithFlattenedArrays is an option builder that makes the pre-processor emit binding_array<T>
// registers as a single T binding and drop subscripts of those variables.
//
// Returns:
//   - PreProcessorBuilderOption: a function that enables flattening on a pre-processor
func WithFlattenedArrays() PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.flattenArrays = true
	}
}
