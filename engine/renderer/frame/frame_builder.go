package frame

// FrameResourceBuilderOption is a functional option for configuring a FrameResource.
type FrameResourceBuilderOption func(*frameResource)

// WithShadowMapSize is an option builder that sets the width and height of the frame's square
// shadow map. Defaults to light.ShadowMapResolution.
//
// Parameters:
//   - size: the shadow map size in texels
//
// Returns:
//   - FrameResourceBuilderOption: a function that applies the shadow map size option to a frame resource
func WithShadowMapSize(size uint32) FrameResourceBuilderOption {
	return func(f *frameResource) {
		if size > 0 {
			f.shadowSize = size
		}
	}
}
