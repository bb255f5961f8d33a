package model

import (
	"fmt"
	"log"
	"math"

	"github.com/Carmen-Shannon/oxy-bindless/common"
	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/Carmen-Shannon/oxy-bindless/engine/loader"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/descriptor"
	"github.com/Carmen-Shannon/oxy-bindless/engine/renderer/material"

	"github.com/go-gl/mathgl/mgl32"
)

// model is the implementation of the Model interface.
type model struct {
	name     string
	device   gpu.Device
	localCap uint32

	nodes     []Node
	roots     []NodeID
	meshes    []Mesh
	materials []material.Material
	entries   []DrawEntry
	counts    DescriptorCounts
	fallback  int32

	textures       []gpu.Texture
	materialBuffer gpu.Buffer
	localBuffer    gpu.Buffer
	staging        []gpu.Buffer

	// private, CPU-only heaps the shared heaps are filled from
	viewHeap    gpu.DescriptorHeap
	samplerHeap gpu.DescriptorHeap

	copied        bool
	viewStride    uint32
	textureTable  gpu.GPUHandle
	materialTable gpu.GPUHandle
	localTable    gpu.GPUHandle
	samplerTable  gpu.GPUHandle
}

// Model is a scene uploaded to the GPU: its node hierarchy with resolved world transforms, the mesh
// buffers, textures and materials it draws with, and the flat list of draw entries a frame replays.
//
// A model owns one contiguous region of the shared CBV/SRV/UAV heap laid out as
// [textures | materials | local transforms] and one run of the shared sampler heap. Shaders
// index textures and samplers relative to the start of those runs.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Nodes returns the node arena. Index i is NodeID(i).
	//
	// Returns:
	//   - []Node: the nodes with resolved world transforms
	Nodes() []Node

	// Roots returns the nodes without a parent, in scene order.
	//
	// Returns:
	//   - []NodeID: the root nodes
	Roots() []NodeID

	// Meshes returns the uploaded meshes.
	//
	// Returns:
	//   - []Mesh: the meshes, indexed like the scene meshes
	Meshes() []Mesh

	// Materials returns the materials, including the appended default material if any surface
	// had none.
	//
	// Returns:
	//   - []material.Material: the materials
	Materials() []material.Material

	// DrawEntries returns the draws produced by walking the tree from the roots. Entry i uses
	// local transform slot i.
	//
	// Returns:
	//   - []DrawEntry: the draw entries in traversal order
	DrawEntries() []DrawEntry

	// Counts returns the number of shared heap slots the model needs.
	//
	// Returns:
	//   - DescriptorCounts: textures, materials, samplers and the local transform capacity
	Counts() DescriptorCounts

	// CopyDescriptorsInto allocates the model's region from the shared allocators and copies every
	// private descriptor into it. It may be called once.
	//
	// Parameters:
	//   - cbv: the shared CBV/SRV/UAV allocator
	//   - sampler: the shared sampler allocator
	//
	// Returns:
	//   - error: descriptor.ErrCapacity if a shared heap is too small, ErrDescriptorsCopied on a second call
	CopyDescriptorsInto(cbv, sampler *descriptor.Allocator) error

	// TextureTable returns the GPU handle of the model's first texture SRV.
	//
	// Returns:
	//   - gpu.GPUHandle: the texture table, valid after CopyDescriptorsInto
	TextureTable() gpu.GPUHandle

	// MaterialTable returns the GPU handle of the model's first material SRV.
	//
	// Returns:
	//   - gpu.GPUHandle: the material table, valid after CopyDescriptorsInto
	MaterialTable() gpu.GPUHandle

	// LocalTable returns the GPU handle of the local transform CBV of draw entry i.
	//
	// Parameters:
	//   - i: the draw entry index
	//
	// Returns:
	//   - gpu.GPUHandle: the local transform table of the entry, valid after CopyDescriptorsInto
	LocalTable(i int) gpu.GPUHandle

	// SamplerTable returns the GPU handle of the model's first sampler.
	//
	// Returns:
	//   - gpu.GPUHandle: the sampler table, valid after CopyDescriptorsInto
	SamplerTable() gpu.GPUHandle

	// TransitionToShaderReadable records the barriers that move every uploaded texture, vertex
	// buffer and index buffer out of the copy destination state. Must be recorded on a direct list.
	//
	// Parameters:
	//   - list: the direct command list to record into
	TransitionToShaderReadable(list gpu.CommandList)

	// ReleaseStaging frees the upload buffers and private descriptor heaps used during load. Call it
	// once the copy work has completed and the descriptors were copied.
	ReleaseStaging()

	// Release frees every GPU resource of the model.
	Release()
}

var _ Model = &model{}

// Load uploads a scene. Buffer and texture copies are recorded into copyList, which the caller
// executes on a copy queue and waits for before recording TransitionToShaderReadable.
//
// Parameters:
//   - device: the device to create resources with
//   - scene: the decoded scene
//   - copyList: an open copy command list
//   - options: a variadic list of ModelBuilderOption functions
//
// Returns:
//   - Model: the loaded model
//   - error: ErrTextureDecode, ErrInvalidHierarchy, descriptor.ErrCapacity or a device error
func Load(device gpu.Device, scene *loader.Scene, copyList gpu.CommandList, options ...ModelBuilderOption) (_ Model, err error) {
	if scene == nil {
		return nil, fmt.Errorf("load model: nil scene")
	}
	m := &model{
		name:     scene.Name,
		device:   device,
		localCap: DefaultLocalTransformCap,
	}
	for _, opt := range options {
		opt(m)
	}

	for i := range scene.Images {
		if !scene.Images[i].Decoded() {
			return nil, fmt.Errorf("%w: model %q image %d %q has no pixels", ErrTextureDecode, m.name, i, scene.Images[i].Source.Name)
		}
	}

	if err := m.buildNodes(scene); err != nil {
		return nil, fmt.Errorf("model %q: %w", m.name, err)
	}
	if draws := m.countDraws(scene); draws > int(m.localCap) {
		return nil, fmt.Errorf("%w: model %q produces %d draws, local transform capacity is %d",
			descriptor.ErrCapacity, m.name, draws, m.localCap)
	}

	m.buildMaterials(scene)
	m.counts = DescriptorCounts{
		Textures:        uint32(len(scene.Images)),
		Materials:       uint32(len(m.materials)),
		Samplers:        uint32(len(scene.Samplers)),
		LocalTransforms: m.localCap,
	}

	defer func() {
		if err != nil {
			m.Release()
		}
	}()

	if err := m.createHeaps(); err != nil {
		return nil, err
	}
	if err := m.uploadSamplers(scene.Samplers); err != nil {
		return nil, err
	}
	if err := m.uploadTextures(scene.Images, copyList); err != nil {
		return nil, err
	}
	if err := m.uploadMaterials(); err != nil {
		return nil, err
	}
	if err := m.uploadMeshes(scene.Meshes, copyList); err != nil {
		return nil, err
	}
	m.buildDrawEntries()
	if err := m.uploadLocalTransforms(); err != nil {
		return nil, err
	}

	log.Printf("[Model] %s: %d nodes, %d meshes, %d textures, %d materials, %d draws",
		m.name, len(m.nodes), len(m.meshes), len(m.textures), len(m.materials), len(m.entries))
	return m, nil
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Nodes() []Node {
	return m.nodes
}

func (m *model) Roots() []NodeID {
	return m.roots
}

func (m *model) Meshes() []Mesh {
	return m.meshes
}

func (m *model) Materials() []material.Material {
	return m.materials
}

func (m *model) DrawEntries() []DrawEntry {
	return m.entries
}

func (m *model) Counts() DescriptorCounts {
	return m.counts
}

func (m *model) CopyDescriptorsInto(cbv, sampler *descriptor.Allocator) error {
	if m.copied {
		return fmt.Errorf("%w: model %q", ErrDescriptorsCopied, m.name)
	}

	samplers, err := sampler.AllocateRange(m.counts.Samplers)
	if err != nil {
		return fmt.Errorf("model %q samplers: %w", m.name, err)
	}
	views, err := cbv.AllocateRange(m.counts.CBVSRVUAV())
	if err != nil {
		return fmt.Errorf("model %q views: %w", m.name, err)
	}

	if samplers.Count > 0 {
		if err := m.device.CopyDescriptorsSimple(samplers.Count, samplers.CPU, m.samplerHeap.CPUStart(), gpu.HeapTypeSampler); err != nil {
			return fmt.Errorf("model %q copy samplers: %w", m.name, err)
		}
	}
	if views.Count > 0 {
		if err := m.device.CopyDescriptorsSimple(views.Count, views.CPU, m.viewHeap.CPUStart(), gpu.HeapTypeCBVSRVUAV); err != nil {
			return fmt.Errorf("model %q copy views: %w", m.name, err)
		}
	}

	stride := cbv.Heap().Stride()
	m.samplerTable = samplers.GPU
	m.textureTable = views.GPU
	if m.materialTable, err = cbv.ResolveGPUHandle(views.CPU.Offset(int(m.counts.Textures), stride)); err != nil {
		return err
	}
	if m.localTable, err = cbv.ResolveGPUHandle(views.CPU.Offset(int(m.counts.Textures+m.counts.Materials), stride)); err != nil {
		return err
	}
	m.viewStride = stride
	m.copied = true
	return nil
}

func (m *model) TextureTable() gpu.GPUHandle {
	return m.textureTable
}

func (m *model) MaterialTable() gpu.GPUHandle {
	return m.materialTable
}

func (m *model) LocalTable(i int) gpu.GPUHandle {
	return m.localTable.Offset(i, m.viewStride)
}

func (m *model) SamplerTable() gpu.GPUHandle {
	return m.samplerTable
}

func (m *model) TransitionToShaderReadable(list gpu.CommandList) {
	transitions := make([]gpu.Transition, 0, len(m.textures)+2*len(m.meshes))
	for _, tex := range m.textures {
		transitions = append(transitions, gpu.Transition{Resource: tex, Before: gpu.StateCopyDest, After: gpu.StatePixelShaderResource})
	}
	for _, mesh := range m.meshes {
		if mesh.VertexBuffer == nil {
			continue
		}
		transitions = append(transitions,
			gpu.Transition{Resource: mesh.VertexBuffer, Before: gpu.StateCopyDest, After: gpu.StateVertexAndConstantBuffer},
			gpu.Transition{Resource: mesh.IndexBuffer, Before: gpu.StateCopyDest, After: gpu.StateIndexBuffer},
		)
	}
	if len(transitions) > 0 {
		list.ResourceBarrier(transitions...)
	}
}

func (m *model) ReleaseStaging() {
	for _, b := range m.staging {
		b.Release()
	}
	m.staging = nil

	if m.copied {
		m.releaseHeaps()
	}
}

func (m *model) Release() {
	m.ReleaseStaging()
	m.releaseHeaps()
	for _, tex := range m.textures {
		tex.Release()
	}
	m.textures = nil
	for i := range m.meshes {
		if m.meshes[i].VertexBuffer != nil {
			m.meshes[i].VertexBuffer.Release()
			m.meshes[i].IndexBuffer.Release()
		}
	}
	m.meshes = nil
	for _, b := range []gpu.Buffer{m.materialBuffer, m.localBuffer} {
		if b != nil {
			b.Release()
		}
	}
	m.materialBuffer, m.localBuffer = nil, nil
}

// --- Helper Functions ---

func (m *model) releaseHeaps() {
	if m.viewHeap != nil {
		m.viewHeap.Release()
		m.viewHeap = nil
	}
	if m.samplerHeap != nil {
		m.samplerHeap.Release()
		m.samplerHeap = nil
	}
}

// buildNodes fills the node arena in two passes: nodes first, then the parent links from each
// node's children. World transforms are then resolved top-down from the roots.
func (m *model) buildNodes(scene *loader.Scene) error {
	m.nodes = make([]Node, len(scene.Nodes))
	for i, src := range scene.Nodes {
		n := Node{Name: src.Name, Kind: NodeGroup, Mesh: loader.NoMesh, Parent: NoParent, Local: src.Local}
		if src.Mesh != loader.NoMesh {
			if src.Mesh < 0 || src.Mesh >= len(scene.Meshes) {
				return fmt.Errorf("%w: node %d mesh %d", ErrInvalidHierarchy, i, src.Mesh)
			}
			n.Kind, n.Mesh = NodeMeshInstance, src.Mesh
		}
		m.nodes[i] = n
	}

	for i, src := range scene.Nodes {
		for _, c := range src.Children {
			if c < 0 || c >= len(m.nodes) || c == i {
				return fmt.Errorf("%w: node %d child %d", ErrInvalidHierarchy, i, c)
			}
			if p := m.nodes[c].Parent; p != NoParent {
				return fmt.Errorf("%w: node %d has parents %d and %d", ErrInvalidHierarchy, c, p, i)
			}
			m.nodes[c].Parent = NodeID(i)
			m.nodes[i].Children = append(m.nodes[i].Children, NodeID(c))
		}
	}

	m.roots = make([]NodeID, 0, len(scene.Roots))
	for _, r := range scene.Roots {
		if r < 0 || r >= len(m.nodes) {
			return fmt.Errorf("%w: root %d", ErrInvalidHierarchy, r)
		}
		if p := m.nodes[r].Parent; p != NoParent {
			return fmt.Errorf("%w: root %d is a child of %d", ErrInvalidHierarchy, r, p)
		}
		m.roots = append(m.roots, NodeID(r))
	}

	for i := range m.nodes {
		m.nodes[i].World = mgl32.Ident4()
	}
	m.walk(func(id NodeID, parentWorld mgl32.Mat4) mgl32.Mat4 {
		m.nodes[id].World = parentWorld.Mul4(m.nodes[id].Local)
		return m.nodes[id].World
	})
	return nil
}

// walk visits every node reachable from the roots depth first, children in order. visit receives
// the accumulated transform of the parent and returns the one passed to the node's children.
func (m *model) walk(visit func(id NodeID, parentWorld mgl32.Mat4) mgl32.Mat4) {
	type frame struct {
		id          NodeID
		parentWorld mgl32.Mat4
	}
	stack := make([]frame, 0, len(m.nodes))
	for i := len(m.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: m.roots[i], parentWorld: mgl32.Ident4()})
	}
	visited := make([]bool, len(m.nodes))
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.id] {
			continue
		}
		visited[f.id] = true

		world := visit(f.id, f.parentWorld)
		children := m.nodes[f.id].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], parentWorld: world})
		}
	}
}

// countDraws returns the number of draw entries the tree produces.
func (m *model) countDraws(scene *loader.Scene) int {
	draws := 0
	m.walk(func(id NodeID, parentWorld mgl32.Mat4) mgl32.Mat4 {
		if n := m.nodes[id]; n.Kind == NodeMeshInstance {
			draws += len(scene.Meshes[n.Mesh].Primitives)
		}
		return parentWorld
	})
	return draws
}

// buildMaterials converts the scene materials and appends a default white material when any
// primitive has none.
func (m *model) buildMaterials(scene *loader.Scene) {
	m.materials = make([]material.Material, 0, len(scene.Materials)+1)
	for _, src := range scene.Materials {
		m.materials = append(m.materials, material.FromScene(src))
	}
	m.fallback = loader.NoIndex
	for _, mesh := range scene.Meshes {
		for _, prim := range mesh.Primitives {
			if prim.Material == loader.NoIndex {
				m.fallback = int32(len(m.materials))
				m.materials = append(m.materials, material.NewMaterial(
					material.WithName("default"),
					material.WithMetallic(0),
				))
				return
			}
		}
	}
}

func (m *model) createHeaps() error {
	var err error
	if n := m.counts.CBVSRVUAV(); n > 0 {
		m.viewHeap, err = m.device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
			Label:          m.name + "/views",
			Type:           gpu.HeapTypeCBVSRVUAV,
			NumDescriptors: n,
		})
		if err != nil {
			return fmt.Errorf("failed to create view heap for %q: %w", m.name, err)
		}
	}
	if n := m.counts.Samplers; n > 0 {
		m.samplerHeap, err = m.device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
			Label:          m.name + "/samplers",
			Type:           gpu.HeapTypeSampler,
			NumDescriptors: n,
		})
		if err != nil {
			return fmt.Errorf("failed to create sampler heap for %q: %w", m.name, err)
		}
	}
	return nil
}

// viewSlot returns the private heap handle of slot i.
func (m *model) viewSlot(i uint32) gpu.CPUHandle {
	return m.viewHeap.CPUStart().Offset(int(i), m.viewHeap.Stride())
}

// uploadSamplers writes one point-filtered sampler per scene sampler.
func (m *model) uploadSamplers(samplers []loader.Sampler) error {
	for i, s := range samplers {
		desc := gpu.SamplerDesc{
			Filter:   gpu.FilterPoint,
			AddressU: s.WrapS,
			AddressV: s.WrapT,
			AddressW: s.WrapS,
			MaxLOD:   math.MaxFloat32,
		}
		dest := m.samplerHeap.CPUStart().Offset(i, m.samplerHeap.Stride())
		if err := m.device.CreateSampler(desc, dest); err != nil {
			return fmt.Errorf("failed to create sampler %d of %q: %w", i, m.name, err)
		}
	}
	return nil
}

// uploadTextures creates one RGBA8 texture per image and records its copy from a staging buffer
// whose rows are padded to the texture row pitch alignment.
func (m *model) uploadTextures(images []loader.Image, copyList gpu.CommandList) error {
	for i, img := range images {
		label := fmt.Sprintf("%s/image%d", m.name, i)
		tex, err := m.device.CreateTexture(gpu.TextureDesc{
			Label:        label,
			Width:        img.Width,
			Height:       img.Height,
			Format:       gpu.FormatRGBA8Unorm,
			Usage:        gpu.TextureUsageShaderResource | gpu.TextureUsageCopyDest,
			InitialState: gpu.StateCopyDest,
		})
		if err != nil {
			return fmt.Errorf("failed to create texture %q: %w", label, err)
		}
		m.textures = append(m.textures, tex)

		rowBytes := img.Width * 4
		rowPitch := uint32(common.AlignUp(uint64(rowBytes), gpu.TextureRowPitchAlignment))
		staging, err := m.createStaging(label, uint64(rowPitch)*uint64(img.Height))
		if err != nil {
			return err
		}
		mem, err := staging.Map()
		if err != nil {
			return err
		}
		for y := uint32(0); y < img.Height; y++ {
			copy(mem[y*rowPitch:y*rowPitch+rowBytes], img.Pixels[y*rowBytes:(y+1)*rowBytes])
		}
		copyList.CopyTextureRegion(tex, staging, gpu.TextureFootprint{
			Width:    img.Width,
			Height:   img.Height,
			RowPitch: rowPitch,
			Format:   gpu.FormatRGBA8Unorm,
		})

		if err := m.device.CreateTextureView(tex, m.viewSlot(uint32(i))); err != nil {
			return fmt.Errorf("failed to create view of %q: %w", label, err)
		}
	}
	return nil
}

// uploadMaterials packs every material into one upload buffer and gives each its own structured
// buffer view after the textures.
func (m *model) uploadMaterials() error {
	if len(m.materials) == 0 {
		return nil
	}
	size := common.AlignUp(uint64(len(m.materials))*material.GPUMaterialSize, gpu.ConstantBufferAlignment)
	buf, err := m.device.CreateBuffer(gpu.BufferDesc{Label: m.name + "/materials", Size: size, Heap: gpu.HeapUpload})
	if err != nil {
		return fmt.Errorf("failed to create material buffer for %q: %w", m.name, err)
	}
	m.materialBuffer = buf
	mem, err := buf.Map()
	if err != nil {
		return err
	}

	for i, mat := range m.materials {
		g := mat.GPU()
		g.MarshalTo(mem[i*material.GPUMaterialSize:])
		view := gpu.StructuredBufferViewDesc{
			Buffer:              buf,
			FirstElement:        uint32(i),
			NumElements:         1,
			StructureByteStride: material.GPUMaterialSize,
		}
		if err := m.device.CreateStructuredBufferView(view, m.viewSlot(m.counts.Textures+uint32(i))); err != nil {
			return fmt.Errorf("failed to create view of material %d of %q: %w", i, m.name, err)
		}
	}
	return nil
}

// uploadMeshes concatenates the primitives of each mesh into one vertex and one index buffer.
// Indices are rebased onto the concatenated vertex range.
func (m *model) uploadMeshes(meshes []loader.Mesh, copyList gpu.CommandList) error {
	m.meshes = make([]Mesh, len(meshes))
	for mi, src := range meshes {
		mesh := Mesh{Name: src.Name}
		var vertices []Vertex
		var indices []uint32
		for _, prim := range src.Primitives {
			base := uint32(len(vertices))
			mat := int32(prim.Material)
			if prim.Material == loader.NoIndex {
				mat = m.fallback
			}
			mesh.Surfaces = append(mesh.Surfaces, Surface{
				FirstIndex:    uint32(len(indices)),
				IndexCount:    uint32(len(prim.Indices)),
				MaterialIndex: mat,
			})
			vertices = append(vertices, prim.Vertices...)
			for _, ix := range prim.Indices {
				indices = append(indices, base+ix)
			}
		}
		mesh.BoundingRadius = ComputeBoundingRadius(vertices)

		if len(vertices) > 0 && len(indices) > 0 {
			if err := m.uploadGeometry(&mesh, vertices, indices, copyList); err != nil {
				return err
			}
		}
		m.meshes[mi] = mesh
	}
	return nil
}

// uploadGeometry creates the default-heap buffers of one mesh and records their fill from a single
// staging buffer holding the vertices followed by the indices.
func (m *model) uploadGeometry(mesh *Mesh, vertices []Vertex, indices []uint32, copyList gpu.CommandList) error {
	vbBytes := common.SliceToBytes(vertices)
	ibBytes := common.SliceToBytes(indices)
	label := m.name + "/" + mesh.Name

	vb, err := m.device.CreateBuffer(gpu.BufferDesc{Label: label + "/vertices", Size: uint64(len(vbBytes)), InitialState: gpu.StateCopyDest})
	if err != nil {
		return fmt.Errorf("failed to create vertex buffer %q: %w", label, err)
	}
	mesh.VertexBuffer = vb
	ib, err := m.device.CreateBuffer(gpu.BufferDesc{Label: label + "/indices", Size: uint64(len(ibBytes)), InitialState: gpu.StateCopyDest})
	if err != nil {
		vb.Release()
		mesh.VertexBuffer = nil
		return fmt.Errorf("failed to create index buffer %q: %w", label, err)
	}
	mesh.IndexBuffer = ib

	staging, err := m.createStaging(label, uint64(len(vbBytes)+len(ibBytes)))
	if err != nil {
		return err
	}
	mem, err := staging.Map()
	if err != nil {
		return err
	}
	copy(mem, vbBytes)
	copy(mem[len(vbBytes):], ibBytes)
	copyList.CopyBufferRegion(vb, 0, staging, 0, uint64(len(vbBytes)))
	copyList.CopyBufferRegion(ib, 0, staging, uint64(len(vbBytes)), uint64(len(ibBytes)))

	mesh.VertexView = gpu.VertexBufferView{Buffer: vb, Size: uint32(len(vbBytes)), Stride: common.VertexSize}
	mesh.IndexView = gpu.IndexBufferView{Buffer: ib, Size: uint32(len(ibBytes))}
	return nil
}

// buildDrawEntries walks the tree from the roots and emits one entry per surface of every mesh
// instance, carrying the instance's world transform.
func (m *model) buildDrawEntries() {
	m.entries = m.entries[:0]
	m.walk(func(id NodeID, parentWorld mgl32.Mat4) mgl32.Mat4 {
		n := m.nodes[id]
		world := parentWorld.Mul4(n.Local)
		if n.Kind != NodeMeshInstance {
			return world
		}
		mesh := m.meshes[n.Mesh]
		if mesh.VertexBuffer == nil {
			return world
		}
		for _, s := range mesh.Surfaces {
			m.entries = append(m.entries, DrawEntry{
				IndexCount:    s.IndexCount,
				FirstIndex:    s.FirstIndex,
				Transform:     world,
				MaterialIndex: s.MaterialIndex,
				VertexView:    mesh.VertexView,
				IndexView:     mesh.IndexView,
			})
		}
		return world
	})
}

// uploadLocalTransforms writes the transform of entry i at i * LocalTransformStride and gives it a
// constant buffer view after the materials. Slots past the last entry stay empty.
func (m *model) uploadLocalTransforms() error {
	if m.localCap == 0 {
		return nil
	}
	buf, err := m.device.CreateBuffer(gpu.BufferDesc{
		Label: m.name + "/locals",
		Size:  uint64(m.localCap) * LocalTransformStride,
		Heap:  gpu.HeapUpload,
	})
	if err != nil {
		return fmt.Errorf("failed to create local transform buffer for %q: %w", m.name, err)
	}
	m.localBuffer = buf
	mem, err := buf.Map()
	if err != nil {
		return err
	}

	base := m.counts.Textures + m.counts.Materials
	for i, e := range m.entries {
		offset := uint64(i) * LocalTransformStride
		g := GPULocalTransform{World: e.Transform}
		g.MarshalTo(mem[offset:])
		view := gpu.ConstantBufferViewDesc{Buffer: buf, Offset: offset, Size: LocalTransformStride}
		if err := m.device.CreateConstantBufferView(view, m.viewSlot(base+uint32(i))); err != nil {
			return fmt.Errorf("failed to create view of local transform %d of %q: %w", i, m.name, err)
		}
	}
	return nil
}

func (m *model) createStaging(label string, size uint64) (gpu.Buffer, error) {
	buf, err := m.device.CreateBuffer(gpu.BufferDesc{Label: label + "/staging", Size: size, Heap: gpu.HeapUpload})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer %q: %w", label, err)
	}
	m.staging = append(m.staging, buf)
	return buf, nil
}
