package model

import (
	_ "embed"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct for mesh pipelines.
// Matches Vertex layout exactly (80 bytes, every attribute after color padded to 16 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// VertexInputLayout returns the input layout that reads Vertex from a vertex buffer.
//
// Returns:
//   - []gpu.InputElement: color, position, normal, uv and tangent at locations 0 to 4
func VertexInputLayout() []gpu.InputElement {
	var v Vertex
	return []gpu.InputElement{
		{Semantic: "COLOR", Location: 0, Format: gpu.VertexFloat32x4, Offset: uint32(unsafe.Offsetof(v.Color))},
		{Semantic: "POSITION", Location: 1, Format: gpu.VertexFloat32x3, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Semantic: "NORMAL", Location: 2, Format: gpu.VertexFloat32x3, Offset: uint32(unsafe.Offsetof(v.Normal))},
		{Semantic: "TEXCOORD", Location: 3, Format: gpu.VertexFloat32x2, Offset: uint32(unsafe.Offsetof(v.UV))},
		{Semantic: "TANGENT", Location: 4, Format: gpu.VertexFloat32x3, Offset: uint32(unsafe.Offsetof(v.Tangent))},
	}
}

// ComputeBoundingRadius calculates the bounding sphere radius of a vertex set as the maximum
// distance of any position from the origin.
//
// Parameters:
//   - vertices: the vertex data to compute the bounding radius from
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(vertices []Vertex) float32 {
	var maxDistSq float32
	for _, v := range vertices {
		p := v.Position
		distSq := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return float32(math.Sqrt(float64(maxDistSq)))
}

// GPULocalTransformSource is the canonical WGSL definition of the LocalTransform constant buffer.
// Matches GPULocalTransform layout exactly (64 bytes, padded to a 256-byte stride in the buffer).
//
//go:embed assets/local_transform.wgsl
var GPULocalTransformSource string

// LocalTransformStride is the distance between two local transform constant buffers. Constant
// buffer views must start on this alignment.
const LocalTransformStride = gpu.ConstantBufferAlignment

// GPULocalTransform is the per-draw world matrix read by both passes through the local transform table.
// Matches the WGSL LocalTransform struct layout exactly (see GPULocalTransformSource).
// Size: 64 bytes.
type GPULocalTransform struct {
	World mgl32.Mat4 // offset 0: object to world matrix, column major (64 bytes)
}

// Size returns the size of the GPULocalTransform struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPULocalTransform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo serializes the GPULocalTransform struct into dst, which must hold at least 64 bytes.
//
// Parameters:
//   - dst: the destination, typically a slice of a mapped upload buffer
func (g *GPULocalTransform) MarshalTo(dst []byte) {
	common.PutMat4(dst, g.World)
}
