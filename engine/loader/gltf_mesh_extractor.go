package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-bindless/common"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor converts glTF meshes into engine meshes with the shared vertex layout.
type gltfMeshExtractor interface {
	// ExtractMesh extracts every primitive of one mesh.
	//
	// Parameters:
	//   - meshIndex: the index into the glTF meshes array
	//
	// Returns:
	//   - Mesh: the extracted mesh
	//   - error: error if extraction fails
	ExtractMesh(meshIndex int) (Mesh, error)

	// ExtractAllMeshes extracts every mesh of the document, preserving indices.
	//
	// Returns:
	//   - []Mesh: one entry per glTF mesh
	//   - error: error if any extraction fails
	ExtractAllMeshes() ([]Mesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor.
//
// Parameters:
//   - parser: the glTF parser that has already loaded a document
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) (Mesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return Mesh{}, fmt.Errorf("no document loaded")
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return Mesh{}, fmt.Errorf("mesh %d: %w", meshIndex, errOutOfBounds)
	}

	src := &doc.Meshes[meshIndex]
	mesh := Mesh{
		Name:       fmt.Sprintf("%s%d", src.Name, meshIndex),
		Primitives: make([]Primitive, 0, len(src.Primitives)),
	}
	for i := range src.Primitives {
		prim, err := e.extractPrimitive(&src.Primitives[i])
		if err != nil {
			return Mesh{}, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, i, err)
		}
		mesh.Primitives = append(mesh.Primitives, prim)
	}
	return mesh, nil
}

func (e *gltfMeshExtractorImpl) ExtractAllMeshes() ([]Mesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	meshes := make([]Mesh, len(doc.Meshes))
	for i := range doc.Meshes {
		m, err := e.ExtractMesh(i)
		if err != nil {
			return nil, err
		}
		meshes[i] = m
	}
	return meshes, nil
}

// extractPrimitive reads one triangle list. Attributes the primitive does not carry keep the
// defaults of common.NewVertex.
func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive) (Primitive, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return Primitive{}, fmt.Errorf("%w: primitive mode %d, only triangles are drawn", ErrUnsupportedFormat, *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return Primitive{}, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadVec3(posAccessor)
	if err != nil {
		return Primitive{}, fmt.Errorf("failed to read positions: %w", err)
	}

	vertices := make([]common.Vertex, len(positions))
	for i, pos := range positions {
		vertices[i] = common.NewVertex(pos)
	}

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadVec3(idx)
		if err != nil {
			return Primitive{}, fmt.Errorf("failed to read normals: %w", err)
		}
		for i := 0; i < min(len(normals), len(vertices)); i++ {
			vertices[i].Normal = normals[i]
		}
	}

	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := e.parser.ReadVec2(idx)
		if err != nil {
			return Primitive{}, fmt.Errorf("failed to read texcoords: %w", err)
		}
		for i := 0; i < min(len(uvs), len(vertices)); i++ {
			vertices[i].UV = uvs[i]
		}
	}

	if idx, ok := prim.Attributes["COLOR_0"]; ok {
		colors, err := e.parser.ReadColor(idx)
		if err != nil {
			return Primitive{}, fmt.Errorf("failed to read colors: %w", err)
		}
		for i := 0; i < min(len(colors), len(vertices)); i++ {
			vertices[i].Color = colors[i]
		}
	}

	if idx, ok := prim.Attributes["TANGENT"]; ok {
		// glTF tangents are VEC4 with the bitangent sign in w; only xyz is kept
		tangents, err := e.parser.ReadColor(idx)
		if err != nil {
			return Primitive{}, fmt.Errorf("failed to read tangents: %w", err)
		}
		for i := 0; i < min(len(tangents), len(vertices)); i++ {
			vertices[i].Tangent = [3]float32{tangents[i][0], tangents[i][1], tangents[i][2]}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = e.parser.ReadIndices(*prim.Indices); err != nil {
			return Primitive{}, fmt.Errorf("failed to read indices: %w", err)
		}
		for _, ix := range indices {
			if int(ix) >= len(vertices) {
				return Primitive{}, fmt.Errorf("index %d of %d vertices: %w", ix, len(vertices), errOutOfBounds)
			}
		}
	} else {
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	material := NoIndex
	if prim.Material != nil {
		material = *prim.Material
	}

	return Primitive{Vertices: vertices, Indices: indices, Material: material}, nil
}
