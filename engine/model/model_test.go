package model

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu/softgpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/loader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/descriptor"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noTexture = loader.TextureRef{Image: loader.NoIndex, Sampler: loader.NoIndex}

// quadMesh returns a mesh with one two-triangle primitive per material.
func quadMesh(name string, materials ...int) loader.Mesh {
	mesh := loader.Mesh{Name: name}
	for _, mat := range materials {
		mesh.Primitives = append(mesh.Primitives, loader.Primitive{
			Vertices: []common.Vertex{
				common.NewVertex([3]float32{0, 0, 0}),
				common.NewVertex([3]float32{1, 0, 0}),
				common.NewVertex([3]float32{1, 1, 0}),
				common.NewVertex([3]float32{0, 1, 0}),
			},
			Indices:  []uint32{0, 1, 2, 0, 2, 3},
			Material: mat,
		})
	}
	return mesh
}

func solidImage(name string, c byte) loader.Image {
	pixels := make([]byte, 2*2*4)
	for i := range pixels {
		pixels[i] = c
	}
	return loader.NewImage(name, pixels, 2, 2)
}

func texturedMaterial(name string, image int) loader.Material {
	return loader.Material{
		Name:       name,
		BaseColor:  [4]float32{1, 1, 1, 1},
		Roughness:  1,
		Albedo:     loader.TextureRef{Image: image, Sampler: 0},
		MetalRough: noTexture,
		Normal:     noTexture,
		Emissive:   noTexture,
		Occlusion:  noTexture,
	}
}

func copyList(t *testing.T, dev gpu.Device, typ gpu.CommandListType) gpu.CommandList {
	t.Helper()
	alloc, err := dev.CreateCommandAllocator(typ)
	require.NoError(t, err)
	l, err := dev.CreateCommandList(typ, alloc)
	require.NoError(t, err)
	return l
}

func execute(t *testing.T, dev gpu.Device, typ gpu.CommandListType, l gpu.CommandList) {
	t.Helper()
	require.NoError(t, l.Close())
	q, err := dev.CreateCommandQueue(typ)
	require.NoError(t, err)
	defer q.Release()
	f, err := dev.CreateFence(0)
	require.NoError(t, err)
	require.NoError(t, q.ExecuteCommandLists(l))
	require.NoError(t, q.Signal(f, 1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.Wait(ctx, 1))
}

func TestLoad_WorldTransformsPropagate(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()

	scene := &loader.Scene{
		Name: "chain",
		Nodes: []loader.Node{
			{Name: "root", Mesh: loader.NoMesh, Children: []int{1}, Local: mgl32.Translate3D(1, 0, 0).Mul4(mgl32.Scale3D(2, 2, 2))},
			{Name: "mid", Mesh: loader.NoMesh, Children: []int{2}, Local: mgl32.Translate3D(0, 1, 0)},
			{Name: "leaf", Mesh: 0, Local: mgl32.Translate3D(0, 0, 1)},
		},
		Roots:  []int{0},
		Meshes: []loader.Mesh{quadMesh("quad", loader.NoIndex)},
	}

	m, err := Load(dev, scene, copyList(t, dev, gpu.CommandListCopy), WithLocalTransformCap(4))
	require.NoError(t, err)
	defer m.Release()

	nodes := m.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(NoParent, nodes[0].Parent)
	assert.Equal(NodeID(0), nodes[1].Parent)
	assert.Equal(NodeID(1), nodes[2].Parent)
	assert.Equal(NodeGroup, nodes[1].Kind)
	assert.Equal(NodeMeshInstance, nodes[2].Kind)

	assert.True(nodes[1].World.Col(3).ApproxEqual(mgl32.Vec4{1, 2, 0, 1}))
	assert.True(nodes[2].World.Col(3).ApproxEqual(mgl32.Vec4{1, 2, 2, 1}))

	entries := m.DrawEntries()
	require.Len(t, entries, 1)
	assert.True(entries[0].Transform.ApproxEqual(nodes[2].World))
	assert.Equal(uint32(6), entries[0].IndexCount)
}

func TestLoad_DrawEntriesFollowTraversal(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()

	grid := loader.CubeGrid(2, 2, mgl32.Vec3{})
	grid.Meshes = append(grid.Meshes, quadMesh("two_surfaces", 0, 0))
	grid.Nodes[1].Mesh = 1

	m, err := Load(dev, grid, copyList(t, dev, gpu.CommandListCopy))
	require.NoError(t, err)
	defer m.Release()

	entries := m.DrawEntries()
	require.Len(t, entries, 5, "the group root draws nothing, the first cube carries two surfaces")
	assert.Equal(uint32(0), entries[0].FirstIndex)
	assert.Equal(uint32(6), entries[1].FirstIndex)
	assert.Equal(uint32(36), entries[2].IndexCount)
	assert.Same(m.Meshes()[1].VertexBuffer, entries[0].VertexView.Buffer)
	assert.Equal(uint32(common.VertexSize), entries[0].VertexView.Stride)
	assert.Equal(uint32(12*4), entries[0].IndexView.Size)

	counts := m.Counts()
	assert.Equal(uint32(DefaultLocalTransformCap), counts.LocalTransforms)
	assert.Equal(uint32(1), counts.Textures)
	assert.Equal(uint32(1), counts.Materials)
}

func TestLoad_CapacityExceeded(t *testing.T) {
	dev := softgpu.NewDevice()
	defer dev.Release()

	_, err := Load(dev, loader.CubeGrid(3, 1, mgl32.Vec3{}), copyList(t, dev, gpu.CommandListCopy), WithLocalTransformCap(8))
	assert.ErrorIs(t, err, descriptor.ErrCapacity)

	m, err := Load(dev, loader.CubeGrid(3, 1, mgl32.Vec3{}), copyList(t, dev, gpu.CommandListCopy), WithLocalTransformCap(9))
	require.NoError(t, err)
	m.Release()
}

func TestLoad_Errors(t *testing.T) {
	dev := softgpu.NewDevice()
	defer dev.Release()

	tests := []struct {
		name  string
		scene func() *loader.Scene
		want  error
	}{
		{
			name: "two parents",
			scene: func() *loader.Scene {
				s := loader.CubeGrid(1, 1, mgl32.Vec3{})
				s.Nodes = append(s.Nodes, loader.Node{Name: "other", Mesh: loader.NoMesh, Children: []int{1}, Local: mgl32.Ident4()})
				s.Roots = append(s.Roots, 2)
				return s
			},
			want: ErrInvalidHierarchy,
		},
		{
			name: "root is a child",
			scene: func() *loader.Scene {
				s := loader.CubeGrid(1, 1, mgl32.Vec3{})
				s.Roots = append(s.Roots, 1)
				return s
			},
			want: ErrInvalidHierarchy,
		},
		{
			name: "mesh out of range",
			scene: func() *loader.Scene {
				s := loader.CubeGrid(1, 1, mgl32.Vec3{})
				s.Nodes[1].Mesh = 4
				return s
			},
			want: ErrInvalidHierarchy,
		},
		{
			name: "undecoded image",
			scene: func() *loader.Scene {
				s := loader.CubeGrid(1, 1, mgl32.Vec3{})
				s.Images[0] = loader.Image{Source: common.ImportedTexture{Name: "missing.png"}}
				return s
			},
			want: ErrTextureDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(dev, tt.scene(), copyList(t, dev, gpu.CommandListCopy))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_EndToEnd(t *testing.T) {
	assert := assert.New(t)
	dev := softgpu.NewDevice()
	defer dev.Release()

	scene := &loader.Scene{
		Name: "e2e",
		Nodes: []loader.Node{
			{Name: "root", Mesh: 0, Children: []int{1}, Local: mgl32.Translate3D(0, 1, 0)},
			{Name: "child", Mesh: 1, Local: mgl32.Translate3D(2, 0, 0)},
		},
		Roots:     []int{0},
		Meshes:    []loader.Mesh{quadMesh("pair", 0, 1), quadMesh("plain", loader.NoIndex)},
		Materials: []loader.Material{texturedMaterial("first", 0), texturedMaterial("second", 2)},
		Samplers:  []loader.Sampler{{Name: "clamp", WrapS: gpu.AddressClamp, WrapT: gpu.AddressMirror}},
		Images:    []loader.Image{solidImage("a", 10), solidImage("b", 20), solidImage("c", 30)},
	}

	cl := copyList(t, dev, gpu.CommandListCopy)
	mi, err := Load(dev, scene, cl, WithLocalTransformCap(8))
	require.NoError(t, err)
	defer mi.Release()
	m := mi.(*model)

	assert.Equal(DescriptorCounts{Textures: 3, Materials: 3, Samplers: 1, LocalTransforms: 8}, m.Counts())
	require.Len(t, m.DrawEntries(), 3)
	assert.Equal(int32(2), m.DrawEntries()[2].MaterialIndex, "surfaces without a material use the appended default")
	assert.Equal(uint32(6), m.Meshes()[0].Surfaces[1].FirstIndex)

	execute(t, dev, gpu.CommandListCopy, cl)
	require.NoError(t, dev.Err())
	for i, want := range []byte{10, 20, 30} {
		px := softgpu.TextureBytes(m.textures[i])
		require.Len(t, px, 16)
		assert.Equal(want, px[0])
	}
	vb := softgpu.BufferBytes(m.Meshes()[0].VertexBuffer)
	assert.Len(vb, 8*common.VertexSize)
	ib := softgpu.BufferBytes(m.Meshes()[0].IndexBuffer)
	assert.Equal(uint32(4), binary.LittleEndian.Uint32(ib[6*4:]), "second surface indices are rebased")

	mats := softgpu.BufferBytes(m.materialBuffer)
	assert.Len(mats, 256)
	assert.Equal(uint32(2), binary.LittleEndian.Uint32(mats[80+32:]), "second material samples image 2")
	assert.Equal(int32(-1), int32(binary.LittleEndian.Uint32(mats[160+32:])))

	// shared heaps with a shadow view and a comparison sampler allocated ahead of the model
	var sizing descriptor.Sizing
	sizing.AddShadowViews(2)
	sizing.AddModel(m.Counts())
	viewHeap, err := dev.CreateDescriptorHeap(gpu.DescriptorHeapDesc{Label: "shared", Type: gpu.HeapTypeCBVSRVUAV, NumDescriptors: sizing.CBVSRVUAV(), ShaderVisible: true})
	require.NoError(t, err)
	samplerHeap, err := dev.CreateDescriptorHeap(gpu.DescriptorHeapDesc{Label: "shared_samplers", Type: gpu.HeapTypeSampler, NumDescriptors: sizing.Samplers(), ShaderVisible: true})
	require.NoError(t, err)
	cbv := descriptor.NewAllocator(viewHeap)
	smp := descriptor.NewAllocator(samplerHeap)
	_, err = cbv.AllocateRange(2)
	require.NoError(t, err)
	_, err = smp.AllocateRange(1)
	require.NoError(t, err)

	require.NoError(t, m.CopyDescriptorsInto(cbv, smp))
	assert.Zero(cbv.Remaining())
	assert.Zero(smp.Remaining())
	assert.ErrorIs(m.CopyDescriptorsInto(cbv, smp), ErrDescriptorsCopied)

	stride := viewHeap.Stride()
	assert.Equal(viewHeap.GPUStart().Offset(2, stride), m.TextureTable())
	assert.Equal(viewHeap.GPUStart().Offset(5, stride), m.MaterialTable())
	assert.Equal(viewHeap.GPUStart().Offset(9, stride), m.LocalTable(1))
	assert.Equal(samplerHeap.GPUStart().Offset(1, samplerHeap.Stride()), m.SamplerTable())

	store := dev.Store()
	heap, idx, err := store.ResolveGPU(m.MaterialTable())
	require.NoError(t, err)
	assert.Equal(gpu.DescriptorBufferSRV, heap.Slot(idx+1).Kind)
	assert.Equal(uint32(1), heap.Slot(idx+1).FirstElement)
	heap, idx, err = store.ResolveGPU(m.LocalTable(2))
	require.NoError(t, err)
	assert.Equal(gpu.DescriptorCBV, heap.Slot(idx).Kind)
	assert.Equal(uint64(2*LocalTransformStride), heap.Slot(idx).Offset)
	assert.Equal(gpu.DescriptorEmpty, heap.Slot(idx+1).Kind, "slots past the last entry stay empty")
	heap, idx, err = store.ResolveGPU(m.SamplerTable())
	require.NoError(t, err)
	assert.Equal(gpu.AddressClamp, heap.Slot(idx).Sampler.AddressU)
	assert.Equal(gpu.FilterPoint, heap.Slot(idx).Sampler.Filter)

	dl := copyList(t, dev, gpu.CommandListDirect)
	m.TransitionToShaderReadable(dl)
	execute(t, dev, gpu.CommandListDirect, dl)
	require.NoError(t, dev.Err())
	state, _ := softgpu.StateOf(m.textures[1])
	assert.Equal(gpu.StatePixelShaderResource, state)
	state, _ = softgpu.StateOf(m.Meshes()[1].VertexBuffer)
	assert.Equal(gpu.StateVertexAndConstantBuffer, state)
	state, _ = softgpu.StateOf(m.Meshes()[1].IndexBuffer)
	assert.Equal(gpu.StateIndexBuffer, state)

	m.ReleaseStaging()
	assert.Nil(m.staging)
	assert.Nil(m.viewHeap)
	child := m.DrawEntries()[2].Transform.Col(3)
	assert.True(child.ApproxEqual(mgl32.Vec4{2, 1, 0, 1}))
}
