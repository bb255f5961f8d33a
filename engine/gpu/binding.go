package gpu

// Register classes map onto WebGPU-style @group/@binding pairs as group = register space and
// binding = class offset + register, so b0, t0 and s0 of one space never collide.
const (
	BindingOffsetCBV     = 0
	BindingOffsetSRV     = 16
	BindingOffsetSampler = 32
)

// ShaderBinding returns the @group and @binding a shader declares for a register.
//
// Parameters:
//   - t: the register class
//   - register: the shader register number
//   - space: the register space
//
// Returns:
//   - group: the bind group index, equal to space
//   - binding: the binding index inside the group
func ShaderBinding(t DescriptorRangeType, register, space uint32) (group, binding uint32) {
	switch t {
	case RangeSRV:
		return space, BindingOffsetSRV + register
	case RangeSampler:
		return space, BindingOffsetSampler + register
	default:
		return space, BindingOffsetCBV + register
	}
}
