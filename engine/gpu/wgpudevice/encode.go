package wgpudevice

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// constantSlotSize is the stride of root constant slots, the minimum uniform offset alignment.
const constantSlotSize = 256

// constantPageSlots is the number of root constant slots per uniform page.
const constantPageSlots = 64

// constantPage is a uniform buffer holding the root constants of consecutive draws.
type constantPage struct {
	raw  *wgpu.Buffer
	host []byte
	used int
}

// resource is what a shader binding resolves to at draw time.
type resource struct {
	buffer  *wgpu.Buffer
	offset  uint64
	size    uint64
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

type bindingKey struct{ group, binding uint32 }

// rootArg is the value last recorded for one root parameter.
type rootArg struct {
	buffer gpu.Buffer
	offset uint64
	table  gpu.GPUHandle
	values []uint32
}

// encoder translates the commands of one submission into a WebGPU command buffer. Render passes
// open lazily at the first draw after the render targets change, and pending clears become the
// load operations of the pass that next touches their target.
type encoder struct {
	dev *Device
	raw *wgpu.CommandEncoder

	pass          *wgpu.RenderPassEncoder
	passPipeline  *pipelineState
	pipeline      *pipelineState
	rootSignature *rootSignature
	args          map[uint32]*rootArg

	viewport *gpu.Viewport
	scissor  *gpu.Rect
	rtvs     []gpu.CPUHandle
	dsv      *gpu.CPUHandle

	colorClears map[gpu.CPUHandle][4]float32
	depthClears map[gpu.CPUHandle]float32

	vertex gpu.VertexBufferView
	index  gpu.IndexBufferView

	pages  []*constantPage
	groups map[string]*wgpu.BindGroup
}

func newEncoder(d *Device) (*encoder, error) {
	raw, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	return &encoder{
		dev:         d,
		raw:         raw,
		args:        make(map[uint32]*rootArg),
		colorClears: make(map[gpu.CPUHandle][4]float32),
		depthClears: make(map[gpu.CPUHandle]float32),
		groups:      make(map[string]*wgpu.BindGroup),
	}, nil
}

// encode appends the commands of one list. Render state does not carry over between lists.
func (e *encoder) encode(l gpu.CommandList) error {
	e.pipeline, e.rootSignature, e.viewport, e.scissor = nil, nil, nil, nil
	e.rtvs, e.dsv = nil, nil
	clear(e.args)

	for i, cmd := range l.Commands() {
		if err := e.command(cmd); err != nil {
			return fmt.Errorf("%s list command %d (%s): %w", l.Type(), i, cmd.Op, err)
		}
	}
	e.endPass()
	return e.flushClears()
}

func (e *encoder) command(cmd gpu.Command) error {
	switch cmd.Op {
	case gpu.OpResourceBarrier:
		// WebGPU tracks usage itself; a barrier only ends the pass its resources may be attached to
		e.endPass()
	case gpu.OpCopyBufferRegion:
		e.endPass()
		dst, src, err := rawBuffers(cmd.DstBuffer, cmd.SrcBuffer)
		if err != nil {
			return err
		}
		e.raw.CopyBufferToBuffer(src, cmd.SrcOffset, dst, cmd.DstOffset, cmd.Size)
	case gpu.OpCopyTextureRegion:
		e.endPass()
		dst, ok := cmd.DstTexture.(*texture)
		if !ok || dst.raw == nil {
			return fmt.Errorf("copy into a foreign or swap chain texture")
		}
		_, src, err := rawBuffers(cmd.SrcBuffer, cmd.SrcBuffer)
		if err != nil {
			return err
		}
		fp := cmd.Footprint
		e.raw.CopyBufferToTexture(
			&wgpu.ImageCopyBuffer{
				Buffer: src,
				Layout: wgpu.TextureDataLayout{
					Offset:       fp.Offset,
					BytesPerRow:  fp.RowPitch,
					RowsPerImage: fp.Height,
				},
			},
			&wgpu.ImageCopyTexture{
				Texture:  dst.raw,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			&wgpu.Extent3D{Width: fp.Width, Height: fp.Height, DepthOrArrayLayers: 1},
		)
	case gpu.OpSetPipelineState:
		p, ok := cmd.Pipeline.(*pipelineState)
		if !ok {
			return fmt.Errorf("foreign pipeline state")
		}
		e.pipeline = p
	case gpu.OpSetRootSignature:
		rs, ok := cmd.RootSignature.(*rootSignature)
		if !ok {
			return fmt.Errorf("foreign root signature")
		}
		if rs != e.rootSignature {
			clear(e.args)
		}
		e.rootSignature = rs
	case gpu.OpSetDescriptorHeaps:
		// tables resolve through the descriptor store
	case gpu.OpSetRootConstantBufferView:
		e.args[cmd.Param] = &rootArg{buffer: cmd.SrcBuffer, offset: cmd.SrcOffset}
	case gpu.OpSetRootDescriptorTable:
		e.args[cmd.Param] = &rootArg{table: cmd.Table}
	case gpu.OpSetRoot32BitConstant:
		arg, ok := e.args[cmd.Param]
		if !ok || arg.values == nil {
			arg = &rootArg{values: make([]uint32, cmd.DestOffset+1)}
			e.args[cmd.Param] = arg
		}
		if int(cmd.DestOffset) >= len(arg.values) {
			arg.values = append(arg.values, make([]uint32, int(cmd.DestOffset)+1-len(arg.values))...)
		}
		arg.values[cmd.DestOffset] = cmd.Value
	case gpu.OpSetViewport:
		vp := cmd.Viewport
		e.viewport = &vp
		if e.pass != nil {
			e.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
		}
	case gpu.OpSetScissorRect:
		r := cmd.Scissor
		e.scissor = &r
		if e.pass != nil {
			setScissor(e.pass, r)
		}
	case gpu.OpSetRenderTargets:
		e.endPass()
		e.rtvs = cmd.RenderTargets
		e.dsv = cmd.DepthStencil
	case gpu.OpClearRenderTargetView:
		h := cmd.RenderTargets[0]
		if e.pass != nil && containsHandle(e.rtvs, h) {
			e.endPass()
		}
		e.colorClears[h] = cmd.ClearColor
	case gpu.OpClearDepthStencilView:
		h := *cmd.DepthStencil
		if e.pass != nil && e.dsv != nil && *e.dsv == h {
			e.endPass()
		}
		e.depthClears[h] = cmd.ClearDepth
	case gpu.OpSetVertexBuffer:
		e.vertex = cmd.VertexBuffer
	case gpu.OpSetIndexBuffer:
		e.index = cmd.IndexBuffer
	case gpu.OpDrawIndexedInstanced:
		return e.draw(cmd.Draw)
	}
	return nil
}

func (e *encoder) draw(args gpu.DrawArgs) error {
	if e.pipeline == nil || e.rootSignature == nil {
		return fmt.Errorf("draw without a pipeline and root signature")
	}
	if e.pass == nil {
		if err := e.beginPass(e.rtvs, e.dsv); err != nil {
			return err
		}
	}
	if e.passPipeline != e.pipeline {
		e.pass.SetPipeline(e.pipeline.raw)
		e.passPipeline = e.pipeline
	}

	resources, err := e.resolveArgs()
	if err != nil {
		return err
	}
	for g, entries := range e.pipeline.bindings {
		bg, err := e.bindGroup(uint32(g), entries, resources)
		if err != nil {
			return err
		}
		e.pass.SetBindGroup(uint32(g), bg, nil)
	}

	vb, ib, err := rawBuffers(e.vertex.Buffer, e.index.Buffer)
	if err != nil {
		return fmt.Errorf("draw without vertex and index buffers: %w", err)
	}
	e.pass.SetVertexBuffer(0, vb, e.vertex.Offset, uint64(e.vertex.Size))
	e.pass.SetIndexBuffer(ib, wgpu.IndexFormatUint32, e.index.Offset, uint64(e.index.Size))
	e.pass.DrawIndexed(args.IndexCount, args.InstanceCount, args.FirstIndex, args.BaseVertex, args.FirstInstance)
	return nil
}

// resolveArgs maps every recorded root argument to the shader bindings it feeds. Bounded table
// ranges feed consecutive bindings; an unbounded range feeds a single binding with its first
// descriptor.
func (e *encoder) resolveArgs() (map[bindingKey]resource, error) {
	out := make(map[bindingKey]resource)
	for i, p := range e.rootSignature.desc.Parameters {
		arg, ok := e.args[uint32(i)]
		if !ok {
			continue
		}
		switch p.Kind {
		case gpu.RootParamConstants:
			g, b := gpu.ShaderBinding(gpu.RangeCBV, p.ShaderRegister, p.RegisterSpace)
			res, err := e.writeConstants(arg.values, p.Num32BitValues)
			if err != nil {
				return nil, err
			}
			out[bindingKey{g, b}] = res
		case gpu.RootParamCBV:
			buf, _, err := rawBuffers(arg.buffer, arg.buffer)
			if err != nil {
				return nil, fmt.Errorf("root parameter %d: %w", i, err)
			}
			g, b := gpu.ShaderBinding(gpu.RangeCBV, p.ShaderRegister, p.RegisterSpace)
			out[bindingKey{g, b}] = resource{buffer: buf, offset: arg.offset, size: arg.buffer.Desc().Size - arg.offset}
		case gpu.RootParamDescriptorTable:
			heap, idx, err := e.dev.store.ResolveGPU(arg.table)
			if err != nil {
				return nil, fmt.Errorf("root parameter %d: %w", i, err)
			}
			for _, r := range p.Ranges {
				n := r.NumDescriptors
				if n == gpu.UnboundedRange {
					n = 1
				}
				for j := range n {
					d := heap.Slot(idx + j)
					if d.Kind == gpu.DescriptorEmpty {
						continue
					}
					res, err := e.descriptorResource(d)
					if err != nil {
						return nil, fmt.Errorf("root parameter %d: %w", i, err)
					}
					g, b := gpu.ShaderBinding(r.Type, r.BaseRegister+j, r.RegisterSpace)
					out[bindingKey{g, b}] = res
				}
				idx += n
			}
		}
	}
	return out, nil
}

func (e *encoder) descriptorResource(d gpu.Descriptor) (resource, error) {
	switch d.Kind {
	case gpu.DescriptorCBV:
		buf, _, err := rawBuffers(d.Buffer, d.Buffer)
		return resource{buffer: buf, offset: d.Offset, size: d.Size}, err
	case gpu.DescriptorBufferSRV:
		buf, _, err := rawBuffers(d.Buffer, d.Buffer)
		stride := uint64(d.StructureByteStride)
		return resource{buffer: buf, offset: uint64(d.FirstElement) * stride, size: uint64(d.NumElements) * stride}, err
	case gpu.DescriptorTextureSRV:
		tex, ok := d.Texture.(*texture)
		if !ok {
			return resource{}, fmt.Errorf("foreign texture in a descriptor table")
		}
		view, err := tex.textureView()
		return resource{view: view}, err
	case gpu.DescriptorSampler:
		s, err := e.dev.sampler(d.Sampler)
		return resource{sampler: s}, err
	}
	return resource{}, fmt.Errorf("%s descriptor in a shader table", d.Kind)
}

// writeConstants stores root constants in the next uniform slot. The binding size is padded to
// a multiple of 16 bytes, the size granularity of uniform bindings.
func (e *encoder) writeConstants(values []uint32, count uint32) (resource, error) {
	var page *constantPage
	if n := len(e.pages); n > 0 && e.pages[n-1].used < len(e.pages[n-1].host) {
		page = e.pages[n-1]
	} else {
		raw, err := e.dev.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "root_constants",
			Size:  constantPageSlots * constantSlotSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return resource{}, fmt.Errorf("create root constant page: %w", err)
		}
		page = &constantPage{raw: raw, host: make([]byte, constantPageSlots*constantSlotSize)}
		e.pages = append(e.pages, page)
	}
	offset := page.used
	for i := range min(uint32(len(values)), count) {
		binary.LittleEndian.PutUint32(page.host[offset+int(i)*4:], values[i])
	}
	page.used += constantSlotSize
	return resource{buffer: page.raw, offset: uint64(offset), size: (uint64(count)*4 + 15) &^ 15}, nil
}

// bindGroup returns a bind group for the entries a pipeline declares in group g. Identical
// groups within a submission are created once.
func (e *encoder) bindGroup(g uint32, layout []wgpu.BindGroupLayoutEntry, resources map[bindingKey]resource) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(layout))
	var key strings.Builder
	fmt.Fprintf(&key, "%p/%d", e.pipeline, g)
	for i, l := range layout {
		res, ok := resources[bindingKey{g, l.Binding}]
		if !ok {
			return nil, fmt.Errorf("@group(%d) @binding(%d) is not fed by any root argument", g, l.Binding)
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding:     l.Binding,
			Buffer:      res.buffer,
			Offset:      res.offset,
			Size:        res.size,
			TextureView: res.view,
			Sampler:     res.sampler,
		}
		fmt.Fprintf(&key, "|%p:%d:%d:%p:%p", res.buffer, res.offset, res.size, res.view, res.sampler)
	}
	if bg, ok := e.groups[key.String()]; ok {
		return bg, nil
	}
	bg, err := e.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  e.pipeline.groups[g],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group %d: %w", g, err)
	}
	e.groups[key.String()] = bg
	return bg, nil
}

// beginPass opens a render pass over the given targets. Targets with a pending clear are
// cleared by the pass, the others keep their contents.
func (e *encoder) beginPass(rtvs []gpu.CPUHandle, dsv *gpu.CPUHandle) error {
	colors := make([]wgpu.RenderPassColorAttachment, len(rtvs))
	for i, h := range rtvs {
		view, err := e.targetView(h)
		if err != nil {
			return err
		}
		colors[i] = wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if c, ok := e.colorClears[h]; ok {
			colors[i].LoadOp = wgpu.LoadOpClear
			colors[i].ClearValue = wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
			delete(e.colorClears, h)
		}
	}

	desc := &wgpu.RenderPassDescriptor{ColorAttachments: colors}
	if dsv != nil {
		view, err := e.targetView(*dsv)
		if err != nil {
			return err
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:         view,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		}
		if depth, ok := e.depthClears[*dsv]; ok {
			desc.DepthStencilAttachment.DepthLoadOp = wgpu.LoadOpClear
			desc.DepthStencilAttachment.DepthClearValue = depth
			delete(e.depthClears, *dsv)
		}
	}

	e.pass = e.raw.BeginRenderPass(desc)
	e.passPipeline = nil
	if vp := e.viewport; vp != nil {
		e.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	}
	if r := e.scissor; r != nil {
		setScissor(e.pass, *r)
	}
	return nil
}

func (e *encoder) endPass() {
	if e.pass == nil {
		return
	}
	e.pass.End()
	e.pass.Release()
	e.pass = nil
	e.passPipeline = nil
}

// flushClears runs clears whose target was never drawn to as empty passes.
func (e *encoder) flushClears() error {
	for h := range e.colorClears {
		if err := e.beginPass([]gpu.CPUHandle{h}, nil); err != nil {
			return err
		}
		e.endPass()
	}
	for h := range e.depthClears {
		if err := e.beginPass(nil, &h); err != nil {
			return err
		}
		e.endPass()
	}
	return nil
}

func (e *encoder) targetView(h gpu.CPUHandle) (*wgpu.TextureView, error) {
	d, err := e.dev.store.Lookup(h)
	if err != nil {
		return nil, err
	}
	if d.Kind != gpu.DescriptorRTV && d.Kind != gpu.DescriptorDSV {
		return nil, fmt.Errorf("%w: %s descriptor used as a render target", gpu.ErrHeapType, d.Kind)
	}
	tex, ok := d.Texture.(*texture)
	if !ok {
		return nil, fmt.Errorf("foreign texture used as a render target")
	}
	return tex.textureView()
}

// finish closes the command buffer and uploads the root constants it references.
func (e *encoder) finish() (*wgpu.CommandBuffer, error) {
	e.endPass()
	cmd, err := e.raw.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("finish command encoder: %w", err)
	}
	for _, p := range e.pages {
		e.dev.queue.WriteBuffer(p.raw, 0, p.host[:p.used])
	}
	return cmd, nil
}

// release frees everything the submission referenced. It must run after the GPU finished it.
func (e *encoder) release() {
	e.endPass()
	for _, bg := range e.groups {
		bg.Release()
	}
	for _, p := range e.pages {
		p.raw.Release()
	}
	e.raw.Release()
}

func rawBuffers(a, b gpu.Buffer) (*wgpu.Buffer, *wgpu.Buffer, error) {
	ba, okA := a.(*buffer)
	bb, okB := b.(*buffer)
	if !okA || !okB {
		return nil, nil, fmt.Errorf("missing or foreign buffer")
	}
	return ba.raw, bb.raw, nil
}

func setScissor(pass *wgpu.RenderPassEncoder, r gpu.Rect) {
	pass.SetScissorRect(uint32(max(r.Left, 0)), uint32(max(r.Top, 0)), uint32(max(r.Right-r.Left, 0)), uint32(max(r.Bottom-r.Top, 0)))
}

func containsHandle(hs []gpu.CPUHandle, h gpu.CPUHandle) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}
