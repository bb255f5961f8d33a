package model

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/loader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/descriptor"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrTextureDecode is returned when a scene image is missing or was not decoded.
	ErrTextureDecode = loader.ErrTextureDecode

	// ErrInvalidHierarchy is returned when scene nodes do not form a forest: a node with two
	// parents, a root that is also a child, or an out-of-range reference.
	ErrInvalidHierarchy = errors.New("invalid node hierarchy")

	// ErrDescriptorsCopied is returned when a model's descriptors are copied into shared heaps twice.
	ErrDescriptorsCopied = errors.New("model descriptors already copied")
)

// Vertex is the interleaved vertex layout of every mesh vertex buffer.
type Vertex = common.Vertex

// DescriptorCounts is the number of shared heap slots a model occupies.
type DescriptorCounts = descriptor.Counts

// NodeID indexes a node in a model's node arena.
type NodeID int

// NoParent is the parent of a root node.
const NoParent NodeID = -1

// NodeKind distinguishes grouping nodes from nodes that draw a mesh.
type NodeKind int

const (
	// NodeGroup only carries a transform for its children.
	NodeGroup NodeKind = iota

	// NodeMeshInstance draws every surface of its mesh with its world transform.
	NodeMeshInstance
)

// Node is one entry of the node arena. Parent and Children are arena indices.
type Node struct {
	Name     string
	Kind     NodeKind
	Mesh     int
	Parent   NodeID
	Children []NodeID

	// Local is the transform relative to the parent, composed as T * R * S.
	Local mgl32.Mat4

	// World is parentWorld * Local, resolved once at load.
	World mgl32.Mat4
}

// Surface is an index range of a mesh drawn with one material.
type Surface struct {
	FirstIndex    uint32
	IndexCount    uint32
	MaterialIndex int32
}

// Mesh is the GPU geometry of one scene mesh. Every primitive shares one vertex and one index
// buffer; a surface per primitive addresses its index range.
type Mesh struct {
	Name           string
	VertexBuffer   gpu.Buffer
	IndexBuffer    gpu.Buffer
	VertexView     gpu.VertexBufferView
	IndexView      gpu.IndexBufferView
	Surfaces       []Surface
	BoundingRadius float32
}

// DrawEntry is one indexed draw produced by walking the node tree. Entry i reads its transform
// from slot i of the model's local transform table.
type DrawEntry struct {
	IndexCount    uint32
	FirstIndex    uint32
	Transform     mgl32.Mat4
	MaterialIndex int32
	VertexView    gpu.VertexBufferView
	IndexView     gpu.IndexBufferView
}
