package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUMaterialSource is the canonical WGSL definition of the Material struct read by the scene pass.
// Matches GPUMaterial layout exactly (80 bytes, std430 aligned).
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUMaterialSize is the stride of one material in the material structured buffer.
const GPUMaterialSize = 80

// NoTexture marks an absent texture or sampler index.
const NoTexture int32 = -1

// GPUTextureBinding is a texture slot relative to a model's texture table paired with a sampler slot
// relative to its sampler table. Both are NoTexture when the material has no such map.
type GPUTextureBinding struct {
	Texture int32
	Sampler int32
}

// Present reports whether the binding names a texture.
//
// Returns:
//   - bool: true if both indices are set
func (b GPUTextureBinding) Present() bool {
	return b.Texture >= 0 && b.Sampler >= 0
}

// absentBinding is the binding of a material map that is not provided.
var absentBinding = GPUTextureBinding{Texture: NoTexture, Sampler: NoTexture}

// GPUMaterial is the GPU-aligned representation of one material, stored as one element of the
// per-model material structured buffer.
// Matches the WGSL Material struct layout exactly (see GPUMaterialSource).
// Size: 80 bytes (std430 aligned).
type GPUMaterial struct {
	ColorFactors      [4]float32        // offset  0: base color RGBA (16 bytes)
	MetalRoughFactors [4]float32        // offset 16: metallic, roughness, unused, unused (16 bytes)
	Albedo            GPUTextureBinding // offset 32: base color map (8 bytes)
	MetalRough        GPUTextureBinding // offset 40: metallic-roughness map (8 bytes)
	Normal            GPUTextureBinding // offset 48: tangent-space normal map (8 bytes)
	Emissive          GPUTextureBinding // offset 56: emissive map (8 bytes)
	Occlusion         GPUTextureBinding // offset 64: ambient occlusion map (8 bytes)
	_                 [2]int32          // offset 72: padding to a 16-byte multiple (8 bytes)
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterial struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload.
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, GPUMaterialSize)
	g.MarshalTo(buf)
	return buf
}

// MarshalTo serializes the GPUMaterial struct into dst, which must hold at least 80 bytes.
//
// Parameters:
//   - dst: the destination, typically a slice of a mapped upload buffer
func (g *GPUMaterial) MarshalTo(dst []byte) {
	for i, f := range g.ColorFactors {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
	for i, f := range g.MetalRoughFactors {
		binary.LittleEndian.PutUint32(dst[16+i*4:], math.Float32bits(f))
	}
	for i, b := range []GPUTextureBinding{g.Albedo, g.MetalRough, g.Normal, g.Emissive, g.Occlusion} {
		binary.LittleEndian.PutUint32(dst[32+i*8:], uint32(b.Texture))
		binary.LittleEndian.PutUint32(dst[36+i*8:], uint32(b.Sampler))
	}
	binary.LittleEndian.PutUint64(dst[72:], 0)
}
