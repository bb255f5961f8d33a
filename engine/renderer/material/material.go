package material

import (
	"github.com/Carmen-Shannon/oxy-bindless/engine/loader"
)

// material is the implementation of the Material interface.
type material struct {
	name       string
	baseColor  [4]float32
	metallic   float32
	roughness  float32
	albedo     GPUTextureBinding
	metalRough GPUTextureBinding
	normal     GPUTextureBinding
	emissive   GPUTextureBinding
	occlusion  GPUTextureBinding
}

// Material defines the surface properties of a metallic-roughness material whose maps are
// addressed by index into a model's texture and sampler tables.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the material name
	Name() string

	// BaseColor retrieves the albedo RGBA factor of the material.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA float32 values
	BaseColor() [4]float32

	// Metallic retrieves the metallic factor of the material.
	//
	// Returns:
	//   - float32: the metallic factor (0.0 = dielectric, 1.0 = metal)
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	//
	// Returns:
	//   - float32: the roughness factor (0.0 = smooth, 1.0 = rough)
	Roughness() float32

	// Albedo retrieves the base color map binding.
	//
	// Returns:
	//   - GPUTextureBinding: the binding, or an absent binding
	Albedo() GPUTextureBinding

	// Normal retrieves the normal map binding.
	//
	// Returns:
	//   - GPUTextureBinding: the binding, or an absent binding
	Normal() GPUTextureBinding

	// GPU packs the material into its shader layout.
	//
	// Returns:
	//   - GPUMaterial: the 80-byte shader representation
	GPU() GPUMaterial
}

var _ Material = &material{}

// NewMaterial creates a new Material with the given options. Unset properties default to an opaque
// white, fully metallic and fully rough material without maps.
//
// Parameters:
//   - options: a variadic list of MaterialBuilderOption functions
//
// Returns:
//   - Material: the configured material
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor:  [4]float32{1, 1, 1, 1},
		metallic:   1.0,
		roughness:  1.0,
		albedo:     absentBinding,
		metalRough: absentBinding,
		normal:     absentBinding,
		emissive:   absentBinding,
		occlusion:  absentBinding,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// FromScene converts an imported material. Image i of the scene is texture slot i of the model, and
// sampler j is sampler slot j.
//
// Parameters:
//   - src: the imported material
//
// Returns:
//   - Material: the converted material
func FromScene(src loader.Material) Material {
	return NewMaterial(
		WithName(src.Name),
		WithBaseColor(src.BaseColor),
		WithMetallic(src.Metallic),
		WithRoughness(src.Roughness),
		WithAlbedo(bindingOf(src.Albedo)),
		WithMetalRough(bindingOf(src.MetalRough)),
		WithNormal(bindingOf(src.Normal)),
		WithEmissive(bindingOf(src.Emissive)),
		WithOcclusion(bindingOf(src.Occlusion)),
	)
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [4]float32 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) Albedo() GPUTextureBinding {
	return m.albedo
}

func (m *material) Normal() GPUTextureBinding {
	return m.normal
}

func (m *material) GPU() GPUMaterial {
	return GPUMaterial{
		ColorFactors:      m.baseColor,
		MetalRoughFactors: [4]float32{m.metallic, m.roughness, 0, 0},
		Albedo:            m.albedo,
		MetalRough:        m.metalRough,
		Normal:            m.normal,
		Emissive:          m.emissive,
		Occlusion:         m.occlusion,
	}
}

// bindingOf maps an imported texture reference to table-relative slots.
func bindingOf(ref loader.TextureRef) GPUTextureBinding {
	if !ref.Present() {
		return absentBinding
	}
	return GPUTextureBinding{Texture: int32(ref.Image), Sampler: int32(ref.Sampler)}
}
