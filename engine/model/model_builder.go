package model

// DefaultLocalTransformCap is the number of local transform slots reserved per model.
const DefaultLocalTransformCap = 500

// ModelBuilderOption is a functional option for configuring a Model via Load.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model. Resource labels are prefixed
// with it. Defaults to the scene name.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithLocalTransformCap is an option builder that sets how many draw entries the model may
// produce. The model reserves exactly this many local transform slots in the shared heap.
//
// Parameters:
//   - n: the capacity
//
// Returns:
//   - ModelBuilderOption: a function that applies the capacity option to a model
func WithLocalTransformCap(n uint32) ModelBuilderOption {
	return func(m *model) {
		m.localCap = n
	}
}
