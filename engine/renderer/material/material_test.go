package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-bindless/engine/loader"
	"github.com/stretchr/testify/assert"
)

func TestGPUMaterial_Layout(t *testing.T) {
	assert := assert.New(t)
	g := NewMaterial(
		WithBaseColor([4]float32{0.5, 0.25, 1, 1}),
		WithMetallic(0.1),
		WithRoughness(0.9),
		WithAlbedo(GPUTextureBinding{Texture: 2, Sampler: 1}),
	).GPU()

	assert.Equal(GPUMaterialSize, g.Size())
	buf := g.Marshal()
	assert.Len(buf, GPUMaterialSize)
	assert.Equal(math.Float32bits(0.25), binary.LittleEndian.Uint32(buf[4:]))
	assert.Equal(math.Float32bits(0.9), binary.LittleEndian.Uint32(buf[20:]))
	assert.Equal(uint32(2), binary.LittleEndian.Uint32(buf[32:]))
	assert.Equal(uint32(1), binary.LittleEndian.Uint32(buf[36:]))
	for off := 40; off < 72; off += 4 {
		assert.Equal(int32(NoTexture), int32(binary.LittleEndian.Uint32(buf[off:])), "offset %d", off)
	}
	assert.Equal(uint64(0), binary.LittleEndian.Uint64(buf[72:]))
}

func TestFromScene(t *testing.T) {
	assert := assert.New(t)
	absent := loader.TextureRef{Image: loader.NoIndex, Sampler: loader.NoIndex}
	m := FromScene(loader.Material{
		Name:       "brick",
		BaseColor:  [4]float32{1, 0, 0, 1},
		Metallic:   0,
		Roughness:  0.5,
		Albedo:     loader.TextureRef{Image: 3, Sampler: 0},
		MetalRough: absent,
		Normal:     loader.TextureRef{Image: 4, Sampler: 1},
		Emissive:   absent,
		Occlusion:  absent,
	})

	assert.Equal("brick", m.Name())
	assert.Equal(GPUTextureBinding{Texture: 3, Sampler: 0}, m.Albedo())
	assert.Equal(GPUTextureBinding{Texture: 4, Sampler: 1}, m.Normal())
	g := m.GPU()
	assert.False(g.Emissive.Present())
	assert.Equal([4]float32{0, 0.5, 0, 0}, g.MetalRoughFactors)
}
