package scene

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUSceneConstantsSource is the canonical WGSL definition of the SceneConstants struct.
// Matches GPUSceneConstants layout exactly (208 bytes).
//
//go:embed assets/scene_constants.wgsl
var GPUSceneConstantsSource string

// GPUSceneConstants is the scene constant buffer bound at b0 by both passes.
// Matches the WGSL SceneConstants struct layout exactly (see GPUSceneConstantsSource).
// Size: 208 bytes, padded to SceneConstantsBufferSize on the GPU.
type GPUSceneConstants struct {
	Model        mgl32.Mat4 // offset   0: scene-wide model matrix, identity
	View         mgl32.Mat4 // offset  64: camera view matrix
	Projection   mgl32.Mat4 // offset 128: camera projection matrix
	AmbientColor mgl32.Vec4 // offset 192: ambient light color
}

// SceneConstantsBufferSize is the size of the scene constant buffer, a multiple of the
// constant buffer alignment.
var SceneConstantsBufferSize = common.AlignUp(uint64(unsafe.Sizeof(GPUSceneConstants{})), gpu.ConstantBufferAlignment)

// Size returns the size of the GPUSceneConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (208)
func (g *GPUSceneConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo serializes the constants into dst, which must hold at least Size() bytes.
//
// Parameters:
//   - dst: the destination buffer, typically the mapped scene constant buffer
func (g *GPUSceneConstants) MarshalTo(dst []byte) {
	common.PutMat4(dst[0:], g.Model)
	common.PutMat4(dst[64:], g.View)
	common.PutMat4(dst[128:], g.Projection)
	common.PutVec4(dst[192:], g.AmbientColor)
}

// Marshal serializes the constants into a new byte buffer.
//
// Returns:
//   - []byte: the serialized buffer
func (g *GPUSceneConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.MarshalTo(buf)
	return buf
}
