package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-bindless/common"

	"github.com/go-gl/mathgl/mgl32"
)

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct{}

// gltfImporter orchestrates a full glTF/GLB import. It combines the parser and the extractors
// into a Scene whose images are resolved but not yet decoded.
type gltfImporter interface {
	// Import loads a glTF/GLB file.
	//
	// Parameters:
	//   - path: the file path to the glTF or GLB file
	//
	// Returns:
	//   - *Scene: the imported scene
	//   - error: error if import fails
	Import(path string) (*Scene, error)

	// ImportReader loads a glTF document from a reader.
	//
	// Parameters:
	//   - r: the reader providing glTF/GLB data
	//   - isGLB: true if the reader provides GLB binary data, false for glTF JSON
	//   - baseDir: the directory external buffers and images resolve against
	//
	// Returns:
	//   - *Scene: the imported scene
	//   - error: error if import fails
	ImportReader(r io.Reader, isGLB bool, baseDir string) (*Scene, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a new glTF importer.
//
// Returns:
//   - gltfImporter: the importer
func newGLTFImporter() gltfImporter {
	return &gltfImporterImpl{}
}

func (imp *gltfImporterImpl) Import(path string) (*Scene, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return imp.importFromParser(parser, path)
}

func (imp *gltfImporterImpl) ImportReader(r io.Reader, isGLB bool, baseDir string) (*Scene, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB, baseDir); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return imp.importFromParser(parser, "")
}

// importFromParser builds a Scene from a parser that has already loaded a document.
//
// Parameters:
//   - parser: the glTF parser that has already loaded a document
//   - fallbackPath: optional file path used as a fallback for scene naming
func (imp *gltfImporterImpl) importFromParser(parser gltfParser, fallbackPath string) (*Scene, error) {
	doc := parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}

	meshes, err := newGLTFMeshExtractor(parser).ExtractAllMeshes()
	if err != nil {
		return nil, fmt.Errorf("mesh extraction failed: %w", err)
	}

	materialExtractor := newGLTFMaterialExtractor(parser)
	samplers := materialExtractor.ExtractSamplers()
	materials, err := materialExtractor.ExtractAllMaterials()
	if err != nil {
		return nil, fmt.Errorf("material extraction failed: %w", err)
	}
	images, err := materialExtractor.ExtractImages()
	if err != nil {
		return nil, fmt.Errorf("image extraction failed: %w", err)
	}

	for mi := range meshes {
		for pi, prim := range meshes[mi].Primitives {
			if prim.Material != NoIndex && (prim.Material < 0 || prim.Material >= len(materials)) {
				return nil, fmt.Errorf("mesh %d primitive %d material %d: %w", mi, pi, prim.Material, errOutOfBounds)
			}
		}
	}

	nodes, err := gltfExtractNodes(doc)
	if err != nil {
		return nil, err
	}
	roots, err := gltfExtractRoots(doc)
	if err != nil {
		return nil, err
	}

	return &Scene{
		Name:      gltfExtractSceneName(doc, fallbackPath),
		Nodes:     nodes,
		Roots:     roots,
		Meshes:    meshes,
		Materials: materials,
		Samplers:  samplers,
		Images:    images,
	}, nil
}

// --- Helper Functions ---

// gltfExtractNodes converts every document node. A node matrix wins over its TRS properties.
func gltfExtractNodes(doc *gltfDocument) ([]Node, error) {
	nodes := make([]Node, len(doc.Nodes))
	for i := range doc.Nodes {
		src := &doc.Nodes[i]
		n := Node{Name: src.Name, Mesh: NoMesh, Local: gltfNodeLocal(src)}

		if src.Mesh != nil {
			if *src.Mesh < 0 || *src.Mesh >= len(doc.Meshes) {
				return nil, fmt.Errorf("node %d mesh %d: %w", i, *src.Mesh, errOutOfBounds)
			}
			n.Mesh = *src.Mesh
		}
		for _, c := range src.Children {
			if c < 0 || c >= len(doc.Nodes) || c == i {
				return nil, fmt.Errorf("node %d child %d: %w", i, c, errOutOfBounds)
			}
		}
		n.Children = append([]int(nil), src.Children...)
		nodes[i] = n
	}
	return nodes, nil
}

// gltfNodeLocal returns the node's parent-relative transform.
func gltfNodeLocal(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}

	t := mgl32.Vec3{0, 0, 0}
	r := mgl32.QuatIdent()
	s := mgl32.Vec3{1, 1, 1}
	if n.Translation != nil {
		t = mgl32.Vec3(*n.Translation)
	}
	if n.Rotation != nil {
		// glTF stores quaternions as (x, y, z, w)
		q := *n.Rotation
		r = mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}
	}
	if n.Scale != nil {
		s = mgl32.Vec3(*n.Scale)
	}
	return common.ComposeTRS(t, r, s)
}

// gltfExtractRoots returns the root nodes of the default scene. Documents without scenes use
// every node that is nobody's child.
func gltfExtractRoots(doc *gltfDocument) ([]int, error) {
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil {
			scene = *doc.Scene
		}
		if scene < 0 || scene >= len(doc.Scenes) {
			return nil, fmt.Errorf("scene %d: %w", scene, errOutOfBounds)
		}
		for _, r := range doc.Scenes[scene].Nodes {
			if r < 0 || r >= len(doc.Nodes) {
				return nil, fmt.Errorf("scene root %d: %w", r, errOutOfBounds)
			}
		}
		return append([]int(nil), doc.Scenes[scene].Nodes...), nil
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots, nil
}

// gltfExtractSceneName derives a name from the default scene or a file path fallback.
func gltfExtractSceneName(doc *gltfDocument, fallbackPath string) string {
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}
	if fallbackPath != "" {
		return strings.TrimSuffix(filepath.Base(fallbackPath), filepath.Ext(fallbackPath))
	}
	return "unnamed_scene"
}
