package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser gltfParser

	// fallbackSampler is the index of the repeat sampler appended for textures without one.
	fallbackSampler int
}

// gltfMaterialExtractor resolves materials, samplers and images. Texture indirections are
// flattened so each material slot names an image and a sampler directly.
type gltfMaterialExtractor interface {
	// ExtractSamplers converts every document sampler, plus one repeat sampler when some
	// texture does not name a sampler.
	//
	// Returns:
	//   - []Sampler: the samplers, document order first
	ExtractSamplers() []Sampler

	// ExtractAllMaterials converts every document material. ExtractSamplers must run first.
	//
	// Returns:
	//   - []Material: one entry per glTF material
	//   - error: error if a texture reference is out of range
	ExtractAllMaterials() ([]Material, error)

	// ExtractImages resolves the source of every document image without decoding it.
	//
	// Returns:
	//   - []Image: one undecoded entry per glTF image
	//   - error: error if an image source cannot be resolved
	ExtractImages() ([]Image, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a new material extractor.
//
// Parameters:
//   - parser: the glTF parser that has already loaded a document
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(parser gltfParser) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{parser: parser, fallbackSampler: NoIndex}
}

func (e *gltfMaterialExtractorImpl) ExtractSamplers() []Sampler {
	doc := e.parser.Document()

	samplers := make([]Sampler, 0, len(doc.Samplers)+1)
	for i := range doc.Samplers {
		s := &doc.Samplers[i]
		out := Sampler{Name: s.Name, WrapS: gpu.AddressWrap, WrapT: gpu.AddressWrap}
		if s.WrapS != nil {
			out.WrapS = gltfWrapToAddressMode(*s.WrapS)
		}
		if s.WrapT != nil {
			out.WrapT = gltfWrapToAddressMode(*s.WrapT)
		}
		samplers = append(samplers, out)
	}

	for _, tex := range doc.Textures {
		if tex.Sampler == nil || *tex.Sampler < 0 || *tex.Sampler >= len(doc.Samplers) {
			e.fallbackSampler = len(samplers)
			samplers = append(samplers, Sampler{Name: "default", WrapS: gpu.AddressWrap, WrapT: gpu.AddressWrap})
			break
		}
	}
	return samplers
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials() ([]Material, error) {
	doc := e.parser.Document()

	materials := make([]Material, len(doc.Materials))
	for i := range doc.Materials {
		src := &doc.Materials[i]
		mat := Material{
			Name:       src.Name,
			BaseColor:  [4]float32{1, 1, 1, 1},
			Metallic:   1,
			Roughness:  1,
			Albedo:     TextureRef{Image: NoIndex, Sampler: NoIndex},
			MetalRough: TextureRef{Image: NoIndex, Sampler: NoIndex},
			Normal:     TextureRef{Image: NoIndex, Sampler: NoIndex},
			Emissive:   TextureRef{Image: NoIndex, Sampler: NoIndex},
			Occlusion:  TextureRef{Image: NoIndex, Sampler: NoIndex},
		}

		var err error
		if pbr := src.PbrMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				mat.BaseColor = *pbr.BaseColorFactor
			}
			if pbr.MetallicFactor != nil {
				mat.Metallic = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				mat.Roughness = *pbr.RoughnessFactor
			}
			if mat.Albedo, err = e.textureRef(pbr.BaseColorTexture); err != nil {
				return nil, fmt.Errorf("material %d %q: base color texture: %w", i, src.Name, err)
			}
			if mat.MetalRough, err = e.textureRef(pbr.MetallicRoughnessTexture); err != nil {
				return nil, fmt.Errorf("material %d %q: metallic-roughness texture: %w", i, src.Name, err)
			}
		}
		if src.NormalTexture != nil {
			if mat.Normal, err = e.textureRef(&src.NormalTexture.gltfTextureInfo); err != nil {
				return nil, fmt.Errorf("material %d %q: normal texture: %w", i, src.Name, err)
			}
		}
		if mat.Emissive, err = e.textureRef(src.EmissiveTexture); err != nil {
			return nil, fmt.Errorf("material %d %q: emissive texture: %w", i, src.Name, err)
		}
		if mat.Occlusion, err = e.textureRef(src.OcclusionTexture); err != nil {
			return nil, fmt.Errorf("material %d %q: occlusion texture: %w", i, src.Name, err)
		}
		materials[i] = mat
	}
	return materials, nil
}

func (e *gltfMaterialExtractorImpl) ExtractImages() ([]Image, error) {
	doc := e.parser.Document()

	images := make([]Image, len(doc.Images))
	for i := range doc.Images {
		src, err := e.parser.ReadImage(i)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		images[i] = Image{Source: src}
	}
	return images, nil
}

// textureRef flattens a texture info into an image and sampler pair.
func (e *gltfMaterialExtractorImpl) textureRef(info *gltfTextureInfo) (TextureRef, error) {
	ref := TextureRef{Image: NoIndex, Sampler: NoIndex}
	if info == nil {
		return ref, nil
	}

	doc := e.parser.Document()
	if info.Index < 0 || info.Index >= len(doc.Textures) {
		return ref, fmt.Errorf("texture %d: %w", info.Index, errOutOfBounds)
	}
	tex := &doc.Textures[info.Index]
	if tex.Source == nil {
		return ref, nil
	}
	if *tex.Source < 0 || *tex.Source >= len(doc.Images) {
		return ref, fmt.Errorf("image %d: %w", *tex.Source, errOutOfBounds)
	}

	ref.Image = *tex.Source
	ref.Sampler = e.fallbackSampler
	if tex.Sampler != nil && *tex.Sampler >= 0 && *tex.Sampler < len(doc.Samplers) {
		ref.Sampler = *tex.Sampler
	}
	return ref, nil
}

// gltfWrapToAddressMode converts a glTF wrap mode to a gpu.AddressMode.
// Unknown values fall back to the glTF default of repeat.
func gltfWrapToAddressMode(wrap int) gpu.AddressMode {
	switch wrap {
	case gltfWrapClampToEdge:
		return gpu.AddressClamp
	case gltfWrapMirroredRepeat:
		return gpu.AddressMirror
	default:
		return gpu.AddressWrap
	}
}
