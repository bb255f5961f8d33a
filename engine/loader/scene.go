package loader

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnsupportedFormat is returned for files that are not glTF 2.0 JSON or GLB, and for
	// glTF content the engine cannot render (non-triangle primitives, sparse accessors).
	ErrUnsupportedFormat = errors.New("unsupported model format")

	// ErrTextureDecode is returned when an image referenced by a scene is missing or cannot be decoded.
	ErrTextureDecode = errors.New("texture decode failed")
)

// NoMesh marks a node that carries no mesh.
const NoMesh = -1

// NoIndex marks an absent texture, sampler or material reference.
const NoIndex = -1

// Scene is the CPU-side result of importing one model file. Indices between its slices follow
// the source document, so Node.Mesh indexes Meshes, TextureRef.Image indexes Images and so on.
type Scene struct {
	Name      string
	Nodes     []Node
	Roots     []int
	Meshes    []Mesh
	Materials []Material
	Samplers  []Sampler
	Images    []Image
}

// Node is one entry of the node hierarchy.
type Node struct {
	Name     string
	Mesh     int
	Children []int
	// Local is the node transform relative to its parent, either the document matrix or T * R * S.
	Local mgl32.Mat4
}

// Mesh is a named list of primitives drawn together by every node that references it.
type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Primitive is one indexed triangle list of a mesh. Indices are relative to Vertices.
type Primitive struct {
	Vertices []common.Vertex
	Indices  []uint32
	Material int
}

// TextureRef points at an image and the sampler used to read it. Both are NoIndex when absent.
type TextureRef struct {
	Image   int
	Sampler int
}

// Present reports whether the reference names an image.
//
// Returns:
//   - bool: true when Image is set
func (r TextureRef) Present() bool { return r.Image != NoIndex }

// Material is a metallic-roughness material.
type Material struct {
	Name       string
	BaseColor  [4]float32
	Metallic   float32
	Roughness  float32
	Albedo     TextureRef
	MetalRough TextureRef
	Normal     TextureRef
	Emissive   TextureRef
	Occlusion  TextureRef
}

// Sampler holds the texture addressing of a document sampler. Filtering is not imported, every
// model sampler filters with the nearest texel.
type Sampler struct {
	Name  string
	WrapS gpu.AddressMode
	WrapT gpu.AddressMode
}

// Image is a decoded RGBA8 image. Source keeps the encoded data or path it was decoded from.
type Image struct {
	Source common.ImportedTexture
	Pixels []byte
	Width  uint32
	Height uint32
}

// Decoded reports whether Pixels holds exactly Width * Height RGBA8 texels.
//
// Returns:
//   - bool: true once the image was decoded
func (img *Image) Decoded() bool {
	return img.Width > 0 && img.Height > 0 && uint64(len(img.Pixels)) == uint64(img.Width)*uint64(img.Height)*4
}

// NewImage wraps already decoded RGBA8 pixels. It is used for procedural scenes.
//
// Parameters:
//   - name: the image name
//   - pixels: tightly packed RGBA8 texels
//   - width: the width in texels
//   - height: the height in texels
//
// Returns:
//   - Image: the image
func NewImage(name string, pixels []byte, width, height uint32) Image {
	return Image{Source: common.ImportedTexture{Name: name}, Pixels: pixels, Width: width, Height: height}
}
