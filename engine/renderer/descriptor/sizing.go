package descriptor

// Counts is the number of descriptors a loaded model contributes to the shared heaps.
// LocalTransforms is the reserved capacity, not the number of draws.
type Counts struct {
	Textures        uint32
	Materials       uint32
	Samplers        uint32
	LocalTransforms uint32
}

// CBVSRVUAV returns the CBV/SRV/UAV slots of the model region.
//
// Returns:
//   - uint32: textures + materials + local transforms
func (c Counts) CBVSRVUAV() uint32 {
	return c.Textures + c.Materials + c.LocalTransforms
}

// Sizing computes the exact sizes of the shared shader-visible heaps.
type Sizing struct {
	shadowViews    uint32
	shadowSamplers uint32
	models         []Counts
}

// AddShadowViews reserves n shadow map SRV slots and one comparison sampler slot shared by all of them.
//
// Parameters:
//   - n: the number of shadow maps, one per frame in flight
func (s *Sizing) AddShadowViews(n uint32) {
	s.shadowViews += n
	s.shadowSamplers = 1
}

// AddModel reserves the region of one model.
//
// Parameters:
//   - c: the model's descriptor counts
func (s *Sizing) AddModel(c Counts) {
	s.models = append(s.models, c)
}

// CBVSRVUAV returns the exact CBV/SRV/UAV heap size.
//
// Returns:
//   - uint32: shadow views plus every model region
func (s *Sizing) CBVSRVUAV() uint32 {
	n := s.shadowViews
	for _, m := range s.models {
		n += m.CBVSRVUAV()
	}
	return n
}

// Samplers returns the exact sampler heap size.
//
// Returns:
//   - uint32: shadow samplers plus every model's samplers
func (s *Sizing) Samplers() uint32 {
	n := s.shadowSamplers
	for _, m := range s.models {
		n += m.Samplers
	}
	return n
}
