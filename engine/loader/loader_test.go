package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleBuffer returns 3 float3 positions followed by 3 uint16 indices and 2 bytes of padding.
func triangleBuffer() []byte {
	buf := make([]byte, 0, 44)
	for _, f := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	for _, ix := range []uint16{0, 1, 2} {
		buf = binary.LittleEndian.AppendUint16(buf, ix)
	}
	return append(buf, 0, 0)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 40), B: 7, A: 255})
		}
	}
	var out bytes.Buffer
	require.NoError(t, png.Encode(&out, img))
	return out.Bytes()
}

// triangleDoc builds a document with a group root translated by (1, 2, 3) whose child draws
// one triangle with a textured material.
func triangleDoc(bufferURI, imageURI string) map[string]any {
	return map[string]any{
		"asset":  map[string]any{"version": "2.0"},
		"scene":  0,
		"scenes": []any{map[string]any{"name": "tri_scene", "nodes": []int{0}}},
		"nodes": []any{
			map[string]any{"name": "root", "translation": []float32{1, 2, 3}, "children": []int{1}},
			map[string]any{"name": "leaf", "mesh": 0},
		},
		"meshes": []any{map[string]any{"name": "tri", "primitives": []any{
			map[string]any{"attributes": map[string]int{"POSITION": 0}, "indices": 1, "material": 0},
		}}},
		"accessors": []any{
			map[string]any{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
			map[string]any{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			map[string]any{"buffer": 0, "byteOffset": 36, "byteLength": 6},
		},
		"buffers": []any{map[string]any{"uri": bufferURI, "byteLength": 44}},
		"materials": []any{map[string]any{
			"name":                 "textured",
			"pbrMetallicRoughness": map[string]any{"baseColorTexture": map[string]int{"index": 0}, "metallicFactor": 0.25},
		}},
		"textures": []any{map[string]any{"source": 0}},
		"images":   []any{map[string]any{"uri": imageURI}},
	}
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestLoader_LoadReaderEmbedded(t *testing.T) {
	assert := assert.New(t)
	doc := triangleDoc(dataURI("application/octet-stream", triangleBuffer()), dataURI("image/png", pngBytes(t, 3, 2)))
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	l := NewLoader(BackendTypeGLTF, WithWorkers(2))
	defer l.Release()

	scene, err := l.LoadReader("tri", bytes.NewReader(raw), false, "")
	require.NoError(t, err)

	assert.Equal("tri_scene", scene.Name)
	assert.Equal([]int{0}, scene.Roots)
	require.Len(t, scene.Nodes, 2)
	assert.Equal(NoMesh, scene.Nodes[0].Mesh)
	assert.Equal([]int{1}, scene.Nodes[0].Children)
	assert.Equal(float32(2), scene.Nodes[0].Local[13])
	assert.Equal(0, scene.Nodes[1].Mesh)

	require.Len(t, scene.Meshes, 1)
	prim := scene.Meshes[0].Primitives[0]
	assert.Equal([]uint32{0, 1, 2}, prim.Indices)
	require.Len(t, prim.Vertices, 3)
	assert.Equal([3]float32{1, 0, 0}, prim.Vertices[1].Position)
	assert.Equal([3]float32{0, 1, 0}, prim.Vertices[1].Normal)
	assert.Equal([4]float32{1, 1, 1, 1}, prim.Vertices[1].Color)
	assert.Equal([3]float32{1, 0, 0}, prim.Vertices[1].Tangent)

	// the texture names no sampler, so a default repeat sampler is appended
	require.Len(t, scene.Samplers, 1)
	assert.Equal(gpu.AddressWrap, scene.Samplers[0].WrapS)
	mat := scene.Materials[0]
	assert.Equal(TextureRef{Image: 0, Sampler: 0}, mat.Albedo)
	assert.False(mat.Normal.Present())
	assert.Equal(float32(0.25), mat.Metallic)

	require.Len(t, scene.Images, 1)
	img := scene.Images[0]
	assert.True(img.Decoded())
	assert.Equal(uint32(3), img.Width)
	assert.Equal(uint32(2), img.Height)
	assert.Equal([]byte{40, 0, 7, 255}, img.Pixels[4:8])

	again, err := l.LoadReader("tri", strings.NewReader("not json"), false, "")
	assert.NoError(err)
	assert.Same(scene, again)
}

func TestLoader_LoadExternalFiles(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.bin"), triangleBuffer(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "albedo.png"), pngBytes(t, 4, 4), 0o644))

	doc := triangleDoc("tri.bin", "albedo.png")
	doc["samplers"] = []any{map[string]int{"wrapS": 33071, "wrapT": 33648}}
	doc["textures"] = []any{map[string]int{"source": 0, "sampler": 0}}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "tri.gltf")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	l := NewLoader(BackendTypeGLTF, WithMaxTextureSize(2))
	defer l.Release()

	scene, err := l.Load(path)
	require.NoError(t, err)
	require.Len(t, scene.Samplers, 1)
	assert.Equal(gpu.AddressClamp, scene.Samplers[0].WrapS)
	assert.Equal(gpu.AddressMirror, scene.Samplers[0].WrapT)
	assert.Equal(uint32(2), scene.Images[0].Width, "downscaled to the max texture size")
	assert.Same(scene, l.Get(path))
	assert.Len(l.Scenes(), 1)
}

func TestLoader_GLB(t *testing.T) {
	assert := assert.New(t)
	doc := triangleDoc("", dataURI("image/png", pngBytes(t, 1, 1)))
	doc["buffers"] = []any{map[string]any{"byteLength": 44}}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	for len(raw)%4 != 0 {
		raw = append(raw, ' ')
	}
	bin := triangleBuffer()

	var glb bytes.Buffer
	total := 12 + 8 + len(raw) + 8 + len(bin)
	for _, v := range []uint32{gltfGLBMagic, gltfGLBVersion, uint32(total), uint32(len(raw)), gltfGLBChunkJSON} {
		require.NoError(t, binary.Write(&glb, binary.LittleEndian, v))
	}
	glb.Write(raw)
	for _, v := range []uint32{uint32(len(bin)), gltfGLBChunkBIN} {
		require.NoError(t, binary.Write(&glb, binary.LittleEndian, v))
	}
	glb.Write(bin)

	l := NewLoader(BackendTypeGLTF)
	defer l.Release()
	scene, err := l.LoadReader("glb", &glb, true, "")
	require.NoError(t, err)
	assert.Equal([]uint32{0, 1, 2}, scene.Meshes[0].Primitives[0].Indices)
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)
	defer l.Release()

	tests := []struct {
		name string
		doc  func() map[string]any
		want error
	}{
		{
			name: "missing image file",
			doc: func() map[string]any {
				return triangleDoc(dataURI("application/octet-stream", triangleBuffer()), "nope.png")
			},
			want: ErrTextureDecode,
		},
		{
			name: "undecodable image",
			doc: func() map[string]any {
				return triangleDoc(dataURI("application/octet-stream", triangleBuffer()), dataURI("image/png", []byte("garbage")))
			},
			want: ErrTextureDecode,
		},
		{
			name: "line primitives",
			doc: func() map[string]any {
				d := triangleDoc(dataURI("application/octet-stream", triangleBuffer()), dataURI("image/png", pngBytes(t, 1, 1)))
				d["meshes"] = []any{map[string]any{"primitives": []any{
					map[string]any{"attributes": map[string]int{"POSITION": 0}, "mode": 1},
				}}}
				return d
			},
			want: ErrUnsupportedFormat,
		},
		{
			name: "version 1",
			doc: func() map[string]any {
				d := triangleDoc(dataURI("application/octet-stream", triangleBuffer()), dataURI("image/png", pngBytes(t, 1, 1)))
				d["asset"] = map[string]any{"version": "1.0"}
				return d
			},
			want: ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.doc())
			require.NoError(t, err)
			_, err = l.LoadReader(tt.name, bytes.NewReader(raw), false, t.TempDir())
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, l.Get(tt.name))
		})
	}

	_, err := l.Load("model.obj")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoader_AccessorOutOfBounds(t *testing.T) {
	doc := triangleDoc(dataURI("application/octet-stream", triangleBuffer()), dataURI("image/png", pngBytes(t, 1, 1)))
	doc["accessors"].([]any)[0].(map[string]any)["count"] = 4
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	l := NewLoader(BackendTypeGLTF)
	defer l.Release()
	_, err = l.LoadReader("oob", bytes.NewReader(raw), false, "")
	assert.ErrorIs(t, err, errOutOfBounds)
}

func TestCubeGrid(t *testing.T) {
	assert := assert.New(t)
	s := CubeGrid(3, 2, [3]float32{0, 1, 0})

	assert.Len(s.Nodes, 10)
	assert.Len(s.Nodes[0].Children, 9)
	assert.Equal(NoMesh, s.Nodes[0].Mesh)
	assert.Len(s.Meshes[0].Primitives[0].Indices, 36)
	assert.True(s.Images[0].Decoded())
	assert.Equal(float32(-2), s.Nodes[1].Local[12])
}
