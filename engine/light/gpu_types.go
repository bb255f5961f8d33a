package light

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxLights is the number of lights the light constant buffer holds. Only light 0 casts the shadow.
const MaxLights = 3

// GPULightSource is the canonical WGSL definition of the LightState and LightConstants structs.
// Matches GPULightState and GPULightConstants layout exactly.
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULightState is the GPU-aligned representation of a single light.
// Matches the WGSL LightState struct layout exactly (see GPULightSource).
// Size: 192 bytes.
type GPULightState struct {
	Position   mgl32.Vec4 // offset   0: world-space position, w = 1
	Direction  mgl32.Vec4 // offset  16: world-space direction, w = 0
	Color      mgl32.Vec4 // offset  32: RGBA color
	Falloff    mgl32.Vec4 // offset  48: range, start, unused, enabled
	View       mgl32.Mat4 // offset  64: light view matrix
	Projection mgl32.Mat4 // offset 128: light projection matrix
}

// Size returns the size of the GPULightState struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (192)
func (g *GPULightState) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo serializes the light into dst, which must hold at least Size() bytes.
//
// Parameters:
//   - dst: the destination buffer
func (g *GPULightState) MarshalTo(dst []byte) {
	common.PutVec4(dst[0:], g.Position)
	common.PutVec4(dst[16:], g.Direction)
	common.PutVec4(dst[32:], g.Color)
	common.PutVec4(dst[48:], g.Falloff)
	common.PutMat4(dst[64:], g.View)
	common.PutMat4(dst[128:], g.Projection)
}

// GPULightConstants is the light constant buffer bound at b1 by both passes.
// Size: 576 bytes, padded to LightConstantsBufferSize on the GPU.
type GPULightConstants struct {
	Lights [MaxLights]GPULightState
}

// LightConstantsBufferSize is the size of the light constant buffer, a multiple of the
// constant buffer alignment.
var LightConstantsBufferSize = common.AlignUp(uint64(unsafe.Sizeof(GPULightConstants{})), gpu.ConstantBufferAlignment)

// Size returns the size of the GPULightConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (576)
func (g *GPULightConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo serializes every light into dst, which must hold at least Size() bytes.
//
// Parameters:
//   - dst: the destination buffer, typically the mapped light constant buffer
func (g *GPULightConstants) MarshalTo(dst []byte) {
	stride := int(unsafe.Sizeof(GPULightState{}))
	for i := range g.Lights {
		g.Lights[i].MarshalTo(dst[i*stride:])
	}
}

// Marshal serializes the light constants into a new byte buffer.
//
// Returns:
//   - []byte: the serialized buffer
func (g *GPULightConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.MarshalTo(buf)
	return buf
}
