package gpu

import (
	"fmt"
)

// CommandOp identifies a recorded command.
type CommandOp int

const (
	OpResourceBarrier CommandOp = iota
	OpCopyBufferRegion
	OpCopyTextureRegion
	OpSetPipelineState
	OpSetRootSignature
	OpSetDescriptorHeaps
	OpSetRootConstantBufferView
	OpSetRootDescriptorTable
	OpSetRoot32BitConstant
	OpSetViewport
	OpSetScissorRect
	OpSetRenderTargets
	OpClearRenderTargetView
	OpClearDepthStencilView
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpDrawIndexedInstanced
)

var commandOpNames = map[CommandOp]string{
	OpResourceBarrier:           "ResourceBarrier",
	OpCopyBufferRegion:          "CopyBufferRegion",
	OpCopyTextureRegion:         "CopyTextureRegion",
	OpSetPipelineState:          "SetPipelineState",
	OpSetRootSignature:          "SetGraphicsRootSignature",
	OpSetDescriptorHeaps:        "SetDescriptorHeaps",
	OpSetRootConstantBufferView: "SetGraphicsRootConstantBufferView",
	OpSetRootDescriptorTable:    "SetGraphicsRootDescriptorTable",
	OpSetRoot32BitConstant:      "SetGraphicsRoot32BitConstant",
	OpSetViewport:               "SetViewport",
	OpSetScissorRect:            "SetScissorRect",
	OpSetRenderTargets:          "SetRenderTargets",
	OpClearRenderTargetView:     "ClearRenderTargetView",
	OpClearDepthStencilView:     "ClearDepthStencilView",
	OpSetVertexBuffer:           "SetVertexBuffer",
	OpSetIndexBuffer:            "SetIndexBuffer",
	OpDrawIndexedInstanced:      "DrawIndexedInstanced",
}

func (op CommandOp) String() string {
	if name, ok := commandOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("CommandOp(%d)", int(op))
}

// graphicsOnly reports whether the op requires a direct list.
func (op CommandOp) graphicsOnly() bool {
	switch op {
	case OpResourceBarrier, OpCopyBufferRegion, OpCopyTextureRegion:
		return false
	}
	return true
}

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op CommandOp

	Barriers []Transition

	DstBuffer Buffer
	DstOffset uint64
	SrcBuffer Buffer
	SrcOffset uint64
	Size      uint64

	DstTexture Texture
	Footprint  TextureFootprint

	Pipeline      PipelineState
	RootSignature RootSignature
	Heaps         []DescriptorHeap

	// Param is the root parameter index for root argument commands.
	Param uint32
	// Table is the GPU handle bound by SetGraphicsRootDescriptorTable.
	Table GPUHandle
	// Value and DestOffset are the payload of SetGraphicsRoot32BitConstant.
	Value      uint32
	DestOffset uint32

	Viewport Viewport
	Scissor  Rect

	RenderTargets []CPUHandle
	DepthStencil  *CPUHandle
	ClearColor    [4]float32
	ClearDepth    float32

	VertexBuffer VertexBufferView
	IndexBuffer  IndexBufferView

	Draw DrawArgs
}

// CommandList records commands for later execution by a queue of the same type.
//
// Recording methods do not return errors. The first invalid command is remembered and reported by
// Close, after which the list can only be Reset.
type CommandList interface {
	// Type returns the list family.
	//
	// Returns:
	//   - CommandListType: the list type
	Type() CommandListType

	// Reset discards recorded commands and reopens the list against alloc.
	//
	// Parameters:
	//   - alloc: the allocator to record into, which must be of the same type
	//
	// Returns:
	//   - error: an error if the allocator type differs
	Reset(alloc CommandAllocator) error

	// Close ends recording.
	//
	// Returns:
	//   - error: the first recording error, or ErrListClosed if already closed
	Close() error

	// Closed reports whether the list is ready for execution.
	//
	// Returns:
	//   - bool: true after a successful Close
	Closed() bool

	// Allocator returns the allocator the list currently records into.
	//
	// Returns:
	//   - CommandAllocator: the backing allocator
	Allocator() CommandAllocator

	// Commands returns the recorded commands. The slice must not be modified.
	//
	// Returns:
	//   - []Command: the recorded commands in order
	Commands() []Command

	ResourceBarrier(transitions ...Transition)
	CopyBufferRegion(dst Buffer, dstOffset uint64, src Buffer, srcOffset, size uint64)
	CopyTextureRegion(dst Texture, src Buffer, footprint TextureFootprint)
	SetPipelineState(pso PipelineState)
	SetGraphicsRootSignature(rs RootSignature)
	SetDescriptorHeaps(heaps ...DescriptorHeap)
	SetGraphicsRootConstantBufferView(param uint32, buf Buffer, offset uint64)
	SetGraphicsRootDescriptorTable(param uint32, table GPUHandle)
	SetGraphicsRoot32BitConstant(param uint32, value uint32, destOffset uint32)
	SetViewport(vp Viewport)
	SetScissorRect(r Rect)
	SetRenderTargets(rtvs []CPUHandle, dsv *CPUHandle)
	ClearRenderTargetView(rtv CPUHandle, color [4]float32)
	ClearDepthStencilView(dsv CPUHandle, depth float32)
	SetVertexBuffer(view VertexBufferView)
	SetIndexBuffer(view IndexBufferView)
	DrawIndexedInstanced(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
}

// commandList is the backend-independent CommandList implementation. Backends interpret the
// recorded commands at execution time.
type commandList struct {
	typ      CommandListType
	alloc    CommandAllocator
	commands []Command
	closed   bool
	err      error
}

var _ CommandList = &commandList{}

// NewCommandList creates an open command list of type t recording into alloc.
//
// Parameters:
//   - t: the list type
//   - alloc: the allocator, which must be of type t
//
// Returns:
//   - CommandList: the new list in the recording state
//   - error: an error if the allocator type differs from t
func NewCommandList(t CommandListType, alloc CommandAllocator) (CommandList, error) {
	if alloc == nil || alloc.Type() != t {
		return nil, fmt.Errorf("%w: %s list needs a %s allocator", ErrInvalidCommand, t, t)
	}
	return &commandList{typ: t, alloc: alloc}, nil
}

func (l *commandList) Type() CommandListType { return l.typ }

func (l *commandList) Allocator() CommandAllocator { return l.alloc }

func (l *commandList) Commands() []Command { return l.commands }

func (l *commandList) Closed() bool { return l.closed }

func (l *commandList) Reset(alloc CommandAllocator) error {
	if alloc == nil || alloc.Type() != l.typ {
		return fmt.Errorf("%w: %s list needs a %s allocator", ErrInvalidCommand, l.typ, l.typ)
	}
	l.alloc = alloc
	l.commands = l.commands[:0]
	l.closed = false
	l.err = nil
	return nil
}

func (l *commandList) Close() error {
	if l.closed {
		return ErrListClosed
	}
	if l.err != nil {
		return l.err
	}
	l.closed = true
	return nil
}

func (l *commandList) record(cmd Command) {
	if l.err != nil {
		return
	}
	if l.closed {
		l.err = fmt.Errorf("%w: %s", ErrListClosed, cmd.Op)
		return
	}
	if l.typ == CommandListCopy && cmd.Op.graphicsOnly() {
		l.err = fmt.Errorf("%w: %s on a copy list", ErrInvalidCommand, cmd.Op)
		return
	}
	l.commands = append(l.commands, cmd)
}

func (l *commandList) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *commandList) ResourceBarrier(transitions ...Transition) {
	for _, t := range transitions {
		if t.Resource == nil {
			l.fail(fmt.Errorf("%w: barrier on nil resource", ErrInvalidCommand))
			return
		}
		if l.typ == CommandListCopy && (!t.Before.CopyQueueCompatible() || !t.After.CopyQueueCompatible()) {
			l.fail(fmt.Errorf("%w: %s -> %s on %q is not allowed on a copy list", ErrInvalidState, t.Before, t.After, t.Resource.Label()))
			return
		}
	}
	l.record(Command{Op: OpResourceBarrier, Barriers: append([]Transition(nil), transitions...)})
}

func (l *commandList) CopyBufferRegion(dst Buffer, dstOffset uint64, src Buffer, srcOffset, size uint64) {
	if dst == nil || src == nil {
		l.fail(fmt.Errorf("%w: copy with nil buffer", ErrInvalidCommand))
		return
	}
	if dstOffset+size > dst.Desc().Size || srcOffset+size > src.Desc().Size {
		l.fail(fmt.Errorf("%w: copy of %d bytes out of range (%q -> %q)", ErrInvalidCommand, size, src.Label(), dst.Label()))
		return
	}
	l.record(Command{Op: OpCopyBufferRegion, DstBuffer: dst, DstOffset: dstOffset, SrcBuffer: src, SrcOffset: srcOffset, Size: size})
}

func (l *commandList) CopyTextureRegion(dst Texture, src Buffer, footprint TextureFootprint) {
	if dst == nil || src == nil {
		l.fail(fmt.Errorf("%w: texture copy with nil resource", ErrInvalidCommand))
		return
	}
	if footprint.RowPitch%TextureRowPitchAlignment != 0 {
		l.fail(fmt.Errorf("%w: row pitch %d is not %d-byte aligned", ErrInvalidCommand, footprint.RowPitch, TextureRowPitchAlignment))
		return
	}
	need := footprint.Offset + uint64(footprint.RowPitch)*uint64(footprint.Height)
	if need > src.Desc().Size {
		l.fail(fmt.Errorf("%w: footprint needs %d bytes, %q has %d", ErrInvalidCommand, need, src.Label(), src.Desc().Size))
		return
	}
	l.record(Command{Op: OpCopyTextureRegion, DstTexture: dst, SrcBuffer: src, Footprint: footprint})
}

func (l *commandList) SetPipelineState(pso PipelineState) {
	l.record(Command{Op: OpSetPipelineState, Pipeline: pso})
}

func (l *commandList) SetGraphicsRootSignature(rs RootSignature) {
	l.record(Command{Op: OpSetRootSignature, RootSignature: rs})
}

func (l *commandList) SetDescriptorHeaps(heaps ...DescriptorHeap) {
	for _, h := range heaps {
		if !h.Desc().ShaderVisible {
			l.fail(fmt.Errorf("%w: heap %q is not shader visible", ErrHeapType, h.Desc().Label))
			return
		}
	}
	l.record(Command{Op: OpSetDescriptorHeaps, Heaps: append([]DescriptorHeap(nil), heaps...)})
}

func (l *commandList) SetGraphicsRootConstantBufferView(param uint32, buf Buffer, offset uint64) {
	if offset%ConstantBufferAlignment != 0 {
		l.fail(fmt.Errorf("%w: root CBV offset %d is not %d-byte aligned", ErrInvalidCommand, offset, ConstantBufferAlignment))
		return
	}
	l.record(Command{Op: OpSetRootConstantBufferView, Param: param, SrcBuffer: buf, SrcOffset: offset})
}

func (l *commandList) SetGraphicsRootDescriptorTable(param uint32, table GPUHandle) {
	l.record(Command{Op: OpSetRootDescriptorTable, Param: param, Table: table})
}

func (l *commandList) SetGraphicsRoot32BitConstant(param uint32, value uint32, destOffset uint32) {
	l.record(Command{Op: OpSetRoot32BitConstant, Param: param, Value: value, DestOffset: destOffset})
}

func (l *commandList) SetViewport(vp Viewport) {
	l.record(Command{Op: OpSetViewport, Viewport: vp})
}

func (l *commandList) SetScissorRect(r Rect) {
	l.record(Command{Op: OpSetScissorRect, Scissor: r})
}

func (l *commandList) SetRenderTargets(rtvs []CPUHandle, dsv *CPUHandle) {
	cmd := Command{Op: OpSetRenderTargets, RenderTargets: append([]CPUHandle(nil), rtvs...)}
	if dsv != nil {
		d := *dsv
		cmd.DepthStencil = &d
	}
	l.record(cmd)
}

func (l *commandList) ClearRenderTargetView(rtv CPUHandle, color [4]float32) {
	l.record(Command{Op: OpClearRenderTargetView, RenderTargets: []CPUHandle{rtv}, ClearColor: color})
}

func (l *commandList) ClearDepthStencilView(dsv CPUHandle, depth float32) {
	d := dsv
	l.record(Command{Op: OpClearDepthStencilView, DepthStencil: &d, ClearDepth: depth})
}

func (l *commandList) SetVertexBuffer(view VertexBufferView) {
	l.record(Command{Op: OpSetVertexBuffer, VertexBuffer: view})
}

func (l *commandList) SetIndexBuffer(view IndexBufferView) {
	l.record(Command{Op: OpSetIndexBuffer, IndexBuffer: view})
}

func (l *commandList) DrawIndexedInstanced(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	l.record(Command{Op: OpDrawIndexedInstanced, Draw: DrawArgs{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	}})
}
