package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// cubeFaces are the 6 faces of a unit cube, 4 corners each, wound clockwise seen from outside.
var cubeFaces = []struct {
	corners [4][3]float32
	normal  [3]float32
	color   [4]float32
}{
	{[4][3]float32{{0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}}, [3]float32{1, 0, 0}, [4]float32{1, 0, 0, 1}},
	{[4][3]float32{{-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}, {-0.5, -0.5, -0.5}}, [3]float32{-1, 0, 0}, [4]float32{0, 1, 0, 1}},
	{[4][3]float32{{-0.5, 0.5, -0.5}, {-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}}, [3]float32{0, 1, 0}, [4]float32{0, 0, 1, 1}},
	{[4][3]float32{{-0.5, -0.5, 0.5}, {-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}}, [3]float32{0, -1, 0}, [4]float32{1, 1, 0, 1}},
	{[4][3]float32{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}}, [3]float32{0, 0, 1}, [4]float32{1, 0, 1, 1}},
	{[4][3]float32{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}}, [3]float32{0, 0, -1}, [4]float32{0, 1, 1, 1}},
}

// CubeMesh returns a unit cube with one color per face and per-face texture coordinates.
//
// Parameters:
//   - material: the material index of the single primitive, or NoIndex
//
// Returns:
//   - Mesh: the cube mesh
func CubeMesh(material int) Mesh {
	uvs := [4][2]float32{{0, 1}, {0, 0}, {1, 0}, {1, 1}}

	prim := Primitive{
		Vertices: make([]common.Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
		Material: material,
	}
	for fi, face := range cubeFaces {
		for ci, c := range face.corners {
			v := common.NewVertex(c)
			v.Normal = face.normal
			v.Color = face.color
			v.UV = uvs[ci]
			prim.Vertices = append(prim.Vertices, v)
		}
		base := uint32(fi * 4)
		prim.Indices = append(prim.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return Mesh{Name: "cube", Primitives: []Primitive{prim}}
}

// CheckerImage returns a two-color RGBA8 checkerboard.
//
// Parameters:
//   - size: the edge length in texels
//   - cell: the edge length of one checker cell in texels
//   - a: the first color
//   - b: the second color
//
// Returns:
//   - Image: the decoded image
func CheckerImage(size, cell uint32, a, b [4]byte) Image {
	cell = max(cell, 1)
	pixels := make([]byte, size*size*4)
	for y := uint32(0); y < size; y++ {
		for x := uint32(0); x < size; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			copy(pixels[(y*size+x)*4:], c[:])
		}
	}
	return NewImage(fmt.Sprintf("checker_%d", size), pixels, size, size)
}

// CubeGrid builds a scene of side * side cubes on the XZ plane under one group root, sharing a
// single cube mesh and a checkerboard material.
//
// Parameters:
//   - side: the number of cubes per row and column
//   - spacing: the distance between cube centers
//   - origin: the world position of the group root
//
// Returns:
//   - *Scene: the procedural scene
func CubeGrid(side int, spacing float32, origin mgl32.Vec3) *Scene {
	s := &Scene{
		Name:   fmt.Sprintf("cube_grid_%dx%d", side, side),
		Meshes: []Mesh{CubeMesh(0)},
		Materials: []Material{{
			Name:       "checker",
			BaseColor:  [4]float32{1, 1, 1, 1},
			Metallic:   0,
			Roughness:  1,
			Albedo:     TextureRef{Image: 0, Sampler: 0},
			MetalRough: TextureRef{Image: NoIndex, Sampler: NoIndex},
			Normal:     TextureRef{Image: NoIndex, Sampler: NoIndex},
			Emissive:   TextureRef{Image: NoIndex, Sampler: NoIndex},
			Occlusion:  TextureRef{Image: NoIndex, Sampler: NoIndex},
		}},
		Samplers: []Sampler{{Name: "repeat", WrapS: gpu.AddressWrap, WrapT: gpu.AddressWrap}},
		Images:   []Image{CheckerImage(64, 8, [4]byte{230, 230, 230, 255}, [4]byte{40, 40, 40, 255})},
		Roots:    []int{0},
	}

	root := Node{Name: "grid", Mesh: NoMesh, Local: mgl32.Translate3D(origin[0], origin[1], origin[2])}
	s.Nodes = append(s.Nodes, root)
	half := float32(side-1) * spacing / 2
	for z := 0; z < side; z++ {
		for x := 0; x < side; x++ {
			s.Nodes[0].Children = append(s.Nodes[0].Children, len(s.Nodes))
			s.Nodes = append(s.Nodes, Node{
				Name:  fmt.Sprintf("cube_%d_%d", x, z),
				Mesh:  0,
				Local: mgl32.Translate3D(float32(x)*spacing-half, 0, float32(z)*spacing-half),
			})
		}
	}
	return s
}
