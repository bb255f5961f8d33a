package softgpu

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
)

// execState is the graphics state of one command list during execution. Like explicit APIs, no state
// is inherited between command lists.
type execState struct {
	pso    *pipelineState
	rs     *rootSignature
	heaps  []gpu.DescriptorHeap
	tables map[uint32]gpu.GPUHandle
	consts map[uint32]uint32
	cbvs   map[uint32]gpu.Buffer

	rtvs        []gpu.CPUHandle
	dsv         *gpu.CPUHandle
	vb          *gpu.VertexBufferView
	ib          *gpu.IndexBufferView
	viewportSet bool
	scissorSet  bool
}

func (s *execState) resetRootArguments() {
	s.tables = make(map[uint32]gpu.GPUHandle)
	s.consts = make(map[uint32]uint32)
	s.cbvs = make(map[uint32]gpu.Buffer)
}

func (q *Queue) execute(l gpu.CommandList) error {
	st := &execState{}
	st.resetRootArguments()

	for i, cmd := range l.Commands() {
		if err := q.executeCommand(st, cmd); err != nil {
			return fmt.Errorf("%s queue, command %d (%s): %w", q.typ, i, cmd.Op, err)
		}
	}
	return nil
}

func (q *Queue) executeCommand(st *execState, cmd gpu.Command) error {
	ev := Event{Queue: q.typ, Kind: EventCommand, Op: cmd.Op}

	switch cmd.Op {
	case gpu.OpResourceBarrier:
		for _, t := range cmd.Barriers {
			if q.typ == gpu.CommandListCopy && (!t.Before.CopyQueueCompatible() || !t.After.CopyQueueCompatible()) {
				return fmt.Errorf("%w: copy queue cannot transition %q to %s", gpu.ErrInvalidState, t.Resource.Label(), t.After)
			}
			res, ok := t.Resource.(stateful)
			if !ok {
				return fmt.Errorf("barrier on foreign resource %q", t.Resource.Label())
			}
			if err := res.transition(t.Before, t.After); err != nil {
				return err
			}
		}
		ev.Transitions = cmd.Barriers

	case gpu.OpCopyBufferRegion:
		dst, ok1 := cmd.DstBuffer.(*buffer)
		src, ok2 := cmd.SrcBuffer.(*buffer)
		if !ok1 || !ok2 {
			return fmt.Errorf("copy between foreign buffers")
		}
		if s := dst.currentState(); s != gpu.StateCopyDest && s != gpu.StateCommon {
			return fmt.Errorf("%w: copy destination %q is %s", gpu.ErrInvalidState, dst.Label(), s)
		}
		if s := src.currentState(); s != gpu.StateGenericRead && s != gpu.StateCopySource && s != gpu.StateCommon {
			return fmt.Errorf("%w: copy source %q is %s", gpu.ErrInvalidState, src.Label(), s)
		}
		copy(dst.data[cmd.DstOffset:cmd.DstOffset+cmd.Size], src.data[cmd.SrcOffset:cmd.SrcOffset+cmd.Size])
		ev.Label = dst.Label()

	case gpu.OpCopyTextureRegion:
		dst, ok1 := cmd.DstTexture.(*texture)
		src, ok2 := cmd.SrcBuffer.(*buffer)
		if !ok1 || !ok2 {
			return fmt.Errorf("texture copy between foreign resources")
		}
		if err := copyTexture(dst, src, cmd.Footprint); err != nil {
			return err
		}
		ev.Label = dst.Label()

	case gpu.OpSetPipelineState:
		pso, ok := cmd.Pipeline.(*pipelineState)
		if !ok {
			return fmt.Errorf("foreign pipeline state")
		}
		st.pso = pso
		ev.Label = pso.desc.Label

	case gpu.OpSetRootSignature:
		rs, ok := cmd.RootSignature.(*rootSignature)
		if !ok {
			return fmt.Errorf("foreign root signature")
		}
		if st.rs != rs {
			st.resetRootArguments()
		}
		st.rs = rs
		ev.Label = rs.desc.Label

	case gpu.OpSetDescriptorHeaps:
		seen := map[gpu.DescriptorHeapType]bool{}
		for _, h := range cmd.Heaps {
			if seen[h.Desc().Type] {
				return fmt.Errorf("two %s heaps bound at once", h.Desc().Type)
			}
			seen[h.Desc().Type] = true
		}
		st.heaps = cmd.Heaps

	case gpu.OpSetRootConstantBufferView:
		if err := st.checkParam(cmd.Param, gpu.RootParamCBV); err != nil {
			return err
		}
		if cmd.SrcBuffer == nil || cmd.SrcOffset >= cmd.SrcBuffer.Desc().Size {
			return fmt.Errorf("root CBV %d points outside its buffer", cmd.Param)
		}
		st.cbvs[cmd.Param] = cmd.SrcBuffer
		ev.Label = cmd.SrcBuffer.Label()

	case gpu.OpSetRootDescriptorTable:
		if err := st.checkParam(cmd.Param, gpu.RootParamDescriptorTable); err != nil {
			return err
		}
		st.tables[cmd.Param] = cmd.Table

	case gpu.OpSetRoot32BitConstant:
		if err := st.checkParam(cmd.Param, gpu.RootParamConstants); err != nil {
			return err
		}
		if cmd.DestOffset >= st.rs.desc.Parameters[cmd.Param].Num32BitValues {
			return fmt.Errorf("root constant offset %d out of range for parameter %d", cmd.DestOffset, cmd.Param)
		}
		st.consts[cmd.Param] = cmd.Value

	case gpu.OpSetViewport:
		if cmd.Viewport.Width <= 0 || cmd.Viewport.Height <= 0 {
			return fmt.Errorf("empty viewport")
		}
		st.viewportSet = true

	case gpu.OpSetScissorRect:
		st.scissorSet = true

	case gpu.OpSetRenderTargets:
		st.rtvs = cmd.RenderTargets
		st.dsv = cmd.DepthStencil

	case gpu.OpClearRenderTargetView:
		tex, err := q.viewTexture(cmd.RenderTargets[0], gpu.DescriptorRTV)
		if err != nil {
			return err
		}
		if s := tex.currentState(); s != gpu.StateRenderTarget {
			return fmt.Errorf("%w: cleared render target %q is %s", gpu.ErrInvalidState, tex.Label(), s)
		}
		ev.Label = tex.Label()

	case gpu.OpClearDepthStencilView:
		tex, err := q.viewTexture(*cmd.DepthStencil, gpu.DescriptorDSV)
		if err != nil {
			return err
		}
		if s := tex.currentState(); s != gpu.StateDepthWrite {
			return fmt.Errorf("%w: cleared depth target %q is %s", gpu.ErrInvalidState, tex.Label(), s)
		}
		ev.Label = tex.Label()

	case gpu.OpSetVertexBuffer:
		vb := cmd.VertexBuffer
		st.vb = &vb

	case gpu.OpSetIndexBuffer:
		ib := cmd.IndexBuffer
		st.ib = &ib

	case gpu.OpDrawIndexedInstanced:
		rec, err := q.draw(st, cmd.Draw)
		if err != nil {
			return err
		}
		ev.Draw = rec
		ev.Label = rec.Pipeline

	default:
		return fmt.Errorf("%w: unknown op %s", gpu.ErrInvalidCommand, cmd.Op)
	}

	q.dev.trace.add(ev)
	return nil
}

func (st *execState) checkParam(param uint32, kind gpu.RootParameterKind) error {
	if st.rs == nil {
		return fmt.Errorf("root argument %d set without a root signature", param)
	}
	params := st.rs.desc.Parameters
	if int(param) >= len(params) {
		return fmt.Errorf("root parameter %d out of range (%d parameters)", param, len(params))
	}
	if params[param].Kind != kind {
		return fmt.Errorf("root parameter %d has kind %d, set as %d", param, params[param].Kind, kind)
	}
	return nil
}

func copyTexture(dst *texture, src *buffer, fp gpu.TextureFootprint) error {
	if s := dst.currentState(); s != gpu.StateCopyDest {
		return fmt.Errorf("%w: texture copy destination %q is %s", gpu.ErrInvalidState, dst.Label(), s)
	}
	if fp.Width != dst.desc.Width || fp.Height != dst.desc.Height || fp.Format != dst.desc.Format {
		return fmt.Errorf("footprint %dx%d does not match texture %q (%dx%d)", fp.Width, fp.Height, dst.Label(), dst.desc.Width, dst.desc.Height)
	}
	dst.mu.Lock()
	defer dst.mu.Unlock()
	pix := dst.pixels()
	row := int(fp.Width * fp.Format.BytesPerPixel())
	for y := 0; y < int(fp.Height); y++ {
		from := int(fp.Offset) + y*int(fp.RowPitch)
		copy(pix[y*row:(y+1)*row], src.data[from:from+row])
	}
	return nil
}

func (q *Queue) viewTexture(h gpu.CPUHandle, kind gpu.DescriptorKind) (*texture, error) {
	d, err := q.dev.store.Lookup(h)
	if err != nil {
		return nil, err
	}
	if d.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s view, found %s", gpu.ErrInvalidHandle, kind, d.Kind)
	}
	tex, ok := d.Texture.(*texture)
	if !ok {
		return nil, fmt.Errorf("view of foreign texture")
	}
	return tex, nil
}

func (q *Queue) draw(st *execState, args gpu.DrawArgs) (*DrawRecord, error) {
	if st.pso == nil || st.rs == nil {
		return nil, fmt.Errorf("draw without pipeline state or root signature")
	}
	if st.pso.desc.RootSignature != gpu.RootSignature(st.rs) {
		return nil, fmt.Errorf("pipeline %q was built for a different root signature than %q", st.pso.desc.Label, st.rs.desc.Label)
	}
	if !st.viewportSet || !st.scissorSet {
		return nil, fmt.Errorf("draw without viewport or scissor")
	}
	if st.vb == nil || st.ib == nil {
		return nil, fmt.Errorf("draw without vertex or index buffer")
	}
	if err := requireState(st.vb.Buffer, gpu.StateVertexAndConstantBuffer); err != nil {
		return nil, err
	}
	if err := requireState(st.ib.Buffer, gpu.StateIndexBuffer); err != nil {
		return nil, err
	}
	if uint64(args.FirstIndex+args.IndexCount)*4 > uint64(st.ib.Size) {
		return nil, fmt.Errorf("draw reads indices [%d, %d) past the end of %q", args.FirstIndex, args.FirstIndex+args.IndexCount, st.ib.Buffer.Label())
	}

	rec := &DrawRecord{
		Pipeline:        st.pso.desc.Label,
		RootSignature:   st.rs.desc.Label,
		Tables:          make(map[uint32]gpu.GPUHandle, len(st.tables)),
		Constants:       make(map[uint32]uint32, len(st.consts)),
		ConstantBuffers: make(map[uint32]string, len(st.cbvs)),
		VertexBuffer:    st.vb.Buffer.Label(),
		IndexBuffer:     st.ib.Buffer.Label(),
		Args:            args,
	}

	for i, p := range st.rs.desc.Parameters {
		param := uint32(i)
		switch p.Kind {
		case gpu.RootParamConstants:
			v, ok := st.consts[param]
			if !ok {
				return nil, fmt.Errorf("root constant %d not set", param)
			}
			rec.Constants[param] = v
		case gpu.RootParamCBV:
			b, ok := st.cbvs[param]
			if !ok {
				return nil, fmt.Errorf("root CBV %d not set", param)
			}
			if s, _ := StateOf(b); s != gpu.StateGenericRead && s != gpu.StateVertexAndConstantBuffer {
				return nil, fmt.Errorf("%w: root CBV %d buffer %q is %s", gpu.ErrInvalidState, param, b.Label(), s)
			}
			rec.ConstantBuffers[param] = b.Label()
		case gpu.RootParamDescriptorTable:
			h, ok := st.tables[param]
			if !ok {
				return nil, fmt.Errorf("descriptor table %d not set", param)
			}
			if err := q.checkTable(st, param, p, h); err != nil {
				return nil, err
			}
			rec.Tables[param] = h
		}
	}

	if st.pso.desc.PixelShader != nil && len(st.rtvs) != len(st.pso.desc.RenderTargetFormats) {
		return nil, fmt.Errorf("pipeline %q expects %d render targets, %d bound", st.pso.desc.Label, len(st.pso.desc.RenderTargetFormats), len(st.rtvs))
	}
	for _, h := range st.rtvs {
		tex, err := q.viewTexture(h, gpu.DescriptorRTV)
		if err != nil {
			return nil, err
		}
		if s := tex.currentState(); s != gpu.StateRenderTarget {
			return nil, fmt.Errorf("%w: render target %q is %s", gpu.ErrInvalidState, tex.Label(), s)
		}
		rec.RenderTargets = append(rec.RenderTargets, tex.Label())
	}
	if st.pso.desc.DepthFormat != gpu.FormatUnknown {
		if st.dsv == nil {
			return nil, fmt.Errorf("pipeline %q needs a depth target", st.pso.desc.Label)
		}
		tex, err := q.viewTexture(*st.dsv, gpu.DescriptorDSV)
		if err != nil {
			return nil, err
		}
		if s := tex.currentState(); s != gpu.StateDepthWrite {
			return nil, fmt.Errorf("%w: depth target %q is %s", gpu.ErrInvalidState, tex.Label(), s)
		}
		rec.DepthStencil = tex.Label()
	}
	return rec, nil
}

func requireState(res gpu.Resource, want gpu.ResourceState) error {
	s, ok := StateOf(res)
	if !ok {
		return fmt.Errorf("foreign resource %q", res.Label())
	}
	if s != want {
		return fmt.Errorf("%w: %q is %s, draw needs %s", gpu.ErrInvalidState, res.Label(), s, want)
	}
	return nil
}

// checkTable validates a bound descriptor table: it must point into a bound shader-visible heap of the
// right type, bounded ranges must fit and hold descriptors of the right kind, and textures read through
// bounded ranges must be shader readable.
func (q *Queue) checkTable(st *execState, param uint32, p gpu.RootParameter, h gpu.GPUHandle) error {
	heap, idx, err := q.dev.store.ResolveGPU(h)
	if err != nil {
		return fmt.Errorf("table %d: %w", param, err)
	}
	if !slices.ContainsFunc(st.heaps, func(b gpu.DescriptorHeap) bool { return b.GPUStart() == heap.GPUStart() }) {
		return fmt.Errorf("table %d points into heap %q which is not bound", param, heap.Desc().Label)
	}
	wantType := gpu.HeapTypeCBVSRVUAV
	if p.Ranges[0].Type == gpu.RangeSampler {
		wantType = gpu.HeapTypeSampler
	}
	if heap.Desc().Type != wantType {
		return fmt.Errorf("%w: table %d expects a %s heap, got %s", gpu.ErrHeapType, param, wantType, heap.Desc().Type)
	}

	capacity := heap.Desc().NumDescriptors
	offset := idx
	for _, r := range p.Ranges {
		if r.NumDescriptors == gpu.UnboundedRange {
			if offset > capacity {
				return fmt.Errorf("table %d starts past the end of heap %q", param, heap.Desc().Label)
			}
			break
		}
		if uint64(offset)+uint64(r.NumDescriptors) > uint64(capacity) {
			return fmt.Errorf("table %d range of %d descriptors at slot %d overruns heap %q", param, r.NumDescriptors, offset, heap.Desc().Label)
		}
		for i, d := range heap.Slots(offset, r.NumDescriptors) {
			if err := checkRangeDescriptor(r.Type, d); err != nil {
				return fmt.Errorf("table %d slot %d: %w", param, int(offset)+i, err)
			}
		}
		offset += r.NumDescriptors
	}
	return nil
}

func checkRangeDescriptor(t gpu.DescriptorRangeType, d gpu.Descriptor) error {
	switch t {
	case gpu.RangeCBV:
		if d.Kind != gpu.DescriptorCBV {
			return fmt.Errorf("%w: CBV range holds %s", gpu.ErrInvalidHandle, d.Kind)
		}
	case gpu.RangeSampler:
		if d.Kind != gpu.DescriptorSampler {
			return fmt.Errorf("%w: sampler range holds %s", gpu.ErrInvalidHandle, d.Kind)
		}
	case gpu.RangeSRV:
		switch d.Kind {
		case gpu.DescriptorTextureSRV:
			return requireState(d.Texture, gpu.StatePixelShaderResource)
		case gpu.DescriptorBufferSRV:
		default:
			return fmt.Errorf("%w: SRV range holds %s", gpu.ErrInvalidHandle, d.Kind)
		}
	}
	return nil
}
