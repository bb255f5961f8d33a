package softgpu

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-bindless/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitAndWait(t *testing.T, dev *Device, q gpu.CommandQueue, l gpu.CommandList) {
	t.Helper()
	require.NoError(t, l.Close())
	f, _ := dev.CreateFence(0)
	require.NoError(t, q.ExecuteCommandLists(l))
	require.NoError(t, q.Signal(f, 1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.Wait(ctx, 1))
}

func TestDevice_CopyQueueUploadsBytes(t *testing.T) {
	assert := assert.New(t)
	dev := NewDevice()
	defer dev.Release()

	q, err := dev.CreateCommandQueue(gpu.CommandListCopy)
	require.NoError(t, err)
	alloc, _ := dev.CreateCommandAllocator(gpu.CommandListCopy)
	l, err := dev.CreateCommandList(gpu.CommandListCopy, alloc)
	require.NoError(t, err)

	staging, _ := dev.CreateBuffer(gpu.BufferDesc{Label: "staging", Size: 1024, Heap: gpu.HeapUpload})
	mem, err := staging.Map()
	require.NoError(t, err)
	copy(mem, []byte{1, 2, 3, 4})
	copy(mem[256:], []byte{9, 9, 9, 9, 8, 8, 8, 8})
	copy(mem[512:], []byte{7, 7, 7, 7, 6, 6, 6, 6})

	vb, _ := dev.CreateBuffer(gpu.BufferDesc{Label: "vb", Size: 4, InitialState: gpu.StateCopyDest})
	tex, _ := dev.CreateTexture(gpu.TextureDesc{Label: "albedo", Width: 2, Height: 2, Format: gpu.FormatRGBA8Unorm, InitialState: gpu.StateCopyDest})

	l.CopyBufferRegion(vb, 0, staging, 0, 4)
	l.CopyTextureRegion(tex, staging, gpu.TextureFootprint{Offset: 256, Width: 2, Height: 2, RowPitch: 256, Format: gpu.FormatRGBA8Unorm})
	submitAndWait(t, dev, q, l)

	assert.NoError(dev.Err())
	assert.Equal([]byte{1, 2, 3, 4}, BufferBytes(vb))
	assert.Equal([]byte{9, 9, 9, 9, 8, 8, 8, 8, 7, 7, 7, 7, 6, 6, 6, 6}, TextureBytes(tex))
}

func TestDevice_WrongStateRemovesDevice(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	q, _ := dev.CreateCommandQueue(gpu.CommandListDirect)
	alloc, _ := dev.CreateCommandAllocator(gpu.CommandListDirect)
	l, _ := dev.CreateCommandList(gpu.CommandListDirect, alloc)

	tex, _ := dev.CreateTexture(gpu.TextureDesc{Label: "shadow", Width: 4, Height: 4, Format: gpu.FormatD32Float, InitialState: gpu.StatePixelShaderResource})
	l.ResourceBarrier(gpu.Transition{Resource: tex, Before: gpu.StateDepthWrite, After: gpu.StatePixelShaderResource})
	require.NoError(t, l.Close())
	require.NoError(t, q.ExecuteCommandLists(l))
	q.(*Queue).Drain()

	assert.ErrorIs(t, dev.Err(), gpu.ErrDeviceRemoved)
	assert.ErrorIs(t, dev.Err(), gpu.ErrInvalidState)
	assert.ErrorIs(t, q.ExecuteCommandLists(l), gpu.ErrDeviceRemoved)
}

func TestQueue_HoldDefersSignals(t *testing.T) {
	assert := assert.New(t)
	dev := NewDevice()
	defer dev.Release()

	qi, _ := dev.CreateCommandQueue(gpu.CommandListDirect)
	q := qi.(*Queue)
	f, _ := dev.CreateFence(0)

	q.Hold()
	require.NoError(t, q.Signal(f, 1))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(uint64(0), f.CompletedValue())
	assert.Equal(1, q.Pending())

	q.Resume()
	q.Drain()
	assert.Equal(uint64(1), f.CompletedValue())
}

func TestQueue_AllocatorBusyUntilExecuted(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	qi, _ := dev.CreateCommandQueue(gpu.CommandListDirect)
	q := qi.(*Queue)
	alloc, _ := dev.CreateCommandAllocator(gpu.CommandListDirect)
	l, _ := dev.CreateCommandList(gpu.CommandListDirect, alloc)
	require.NoError(t, l.Close())

	q.Hold()
	require.NoError(t, q.ExecuteCommandLists(l))
	assert.ErrorIs(t, alloc.Reset(), gpu.ErrAllocatorInUse)
	q.Resume()
	q.Drain()
	assert.NoError(t, alloc.Reset())
}

func TestQueue_RejectsOpenLists(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()
	q, _ := dev.CreateCommandQueue(gpu.CommandListDirect)
	alloc, _ := dev.CreateCommandAllocator(gpu.CommandListDirect)
	l, _ := dev.CreateCommandList(gpu.CommandListDirect, alloc)

	assert.ErrorIs(t, q.ExecuteCommandLists(l), gpu.ErrListOpen)
}

func TestSwapChain_PresentAdvancesBackBuffer(t *testing.T) {
	assert := assert.New(t)
	dev := NewDevice(WithTrace())
	defer dev.Release()

	q, _ := dev.CreateCommandQueue(gpu.CommandListDirect)
	sc, err := dev.CreateSwapChain(q, gpu.SwapChainDesc{Width: 8, Height: 8, BufferCount: 3})
	require.NoError(t, err)

	for i := uint32(0); i < 4; i++ {
		assert.Equal(i%3, sc.CurrentBackBufferIndex())
		require.NoError(t, sc.Present(0))
	}
	q.(*Queue).Drain()
	assert.Equal(uint64(4), Presents(sc))
	assert.NoError(dev.Err())

	require.NoError(t, sc.ResizeBuffers(3, 16, 4))
	assert.Equal(uint32(0), sc.CurrentBackBufferIndex())
	bb, err := sc.BackBuffer(2)
	require.NoError(t, err)
	assert.Equal(uint32(16), bb.Desc().Width)
	s, _ := StateOf(bb)
	assert.Equal(gpu.StatePresent, s)
}

type drawFixture struct {
	dev   *Device
	queue gpu.CommandQueue
	list  gpu.CommandList
	rs    gpu.RootSignature
	pso   gpu.PipelineState
	heap  gpu.DescriptorHeap
	vb    gpu.Buffer
	ib    gpu.Buffer
	cb    gpu.Buffer
	tex   gpu.Texture
}

func newDrawFixture(t *testing.T) *drawFixture {
	t.Helper()
	f := &drawFixture{dev: NewDevice(WithTrace())}
	t.Cleanup(f.dev.Release)

	f.queue, _ = f.dev.CreateCommandQueue(gpu.CommandListDirect)
	alloc, _ := f.dev.CreateCommandAllocator(gpu.CommandListDirect)
	f.list, _ = f.dev.CreateCommandList(gpu.CommandListDirect, alloc)

	var err error
	f.rs, err = f.dev.CreateRootSignature(gpu.RootSignatureDesc{Label: "rs", Parameters: []gpu.RootParameter{
		{Kind: gpu.RootParamConstants, Num32BitValues: 1},
		{Kind: gpu.RootParamCBV},
		{Kind: gpu.RootParamDescriptorTable, Ranges: []gpu.DescriptorRange{{Type: gpu.RangeSRV, NumDescriptors: 1}}},
	}})
	require.NoError(t, err)
	f.pso, err = f.dev.CreatePipelineState(gpu.PipelineStateDesc{
		Label:         "depth_only",
		RootSignature: f.rs,
		VertexShader:  gpu.ShaderBytecode{Code: []byte{1}},
	})
	require.NoError(t, err)

	f.heap, err = f.dev.CreateDescriptorHeap(gpu.DescriptorHeapDesc{Label: "srv", Type: gpu.HeapTypeCBVSRVUAV, NumDescriptors: 2, ShaderVisible: true})
	require.NoError(t, err)
	f.tex, _ = f.dev.CreateTexture(gpu.TextureDesc{Label: "albedo", Width: 1, Height: 1, Format: gpu.FormatRGBA8Unorm, InitialState: gpu.StatePixelShaderResource})
	require.NoError(t, f.dev.CreateTextureView(f.tex, f.heap.CPUStart()))

	f.vb, _ = f.dev.CreateBuffer(gpu.BufferDesc{Label: "vb", Size: 240, InitialState: gpu.StateVertexAndConstantBuffer})
	f.ib, _ = f.dev.CreateBuffer(gpu.BufferDesc{Label: "ib", Size: 12, InitialState: gpu.StateIndexBuffer})
	f.cb, _ = f.dev.CreateBuffer(gpu.BufferDesc{Label: "scene_cb", Size: 256, Heap: gpu.HeapUpload})
	return f
}

func (f *drawFixture) recordBindings() {
	f.list.SetPipelineState(f.pso)
	f.list.SetGraphicsRootSignature(f.rs)
	f.list.SetDescriptorHeaps(f.heap)
	f.list.SetViewport(gpu.Viewport{Width: 1, Height: 1, MaxDepth: 1})
	f.list.SetScissorRect(gpu.Rect{Right: 1, Bottom: 1})
	f.list.SetVertexBuffer(gpu.VertexBufferView{Buffer: f.vb, Size: 240, Stride: 80})
	f.list.SetIndexBuffer(gpu.IndexBufferView{Buffer: f.ib, Size: 12})
	f.list.SetGraphicsRoot32BitConstant(0, 4, 0)
	f.list.SetGraphicsRootConstantBufferView(1, f.cb, 0)
}

func TestExecute_DrawResolvesBindings(t *testing.T) {
	assert := assert.New(t)
	f := newDrawFixture(t)

	f.recordBindings()
	f.list.SetGraphicsRootDescriptorTable(2, f.heap.GPUStart())
	f.list.DrawIndexedInstanced(3, 1, 0, 0, 0)
	submitAndWait(t, f.dev, f.queue, f.list)

	require.NoError(t, f.dev.Err())
	draws := f.dev.Trace().Draws()
	require.Len(t, draws, 1)
	assert.Equal("depth_only", draws[0].Pipeline)
	assert.Equal(uint32(4), draws[0].Constants[0])
	assert.Equal("scene_cb", draws[0].ConstantBuffers[1])
	assert.Equal(f.heap.GPUStart(), draws[0].Tables[2])
	assert.Equal(uint32(3), draws[0].Args.IndexCount)
}

func TestExecute_UnboundTableRemovesDevice(t *testing.T) {
	f := newDrawFixture(t)
	f.recordBindings()
	f.list.DrawIndexedInstanced(3, 1, 0, 0, 0)
	require.NoError(t, f.list.Close())
	require.NoError(t, f.queue.ExecuteCommandLists(f.list))
	f.queue.(*Queue).Drain()

	assert.ErrorIs(t, f.dev.Err(), gpu.ErrDeviceRemoved)
	assert.Empty(t, f.dev.Trace().Draws())
}

func TestExecute_TableOverrunningHeap(t *testing.T) {
	f := newDrawFixture(t)
	f.recordBindings()
	f.list.SetGraphicsRootDescriptorTable(2, f.heap.GPUStart().Offset(2, f.heap.Stride()))
	f.list.DrawIndexedInstanced(3, 1, 0, 0, 0)
	require.NoError(t, f.list.Close())
	require.NoError(t, f.queue.ExecuteCommandLists(f.list))
	f.queue.(*Queue).Drain()

	assert.ErrorIs(t, f.dev.Err(), gpu.ErrDeviceRemoved)
}

func TestExecute_TextureMustBeShaderReadable(t *testing.T) {
	f := newDrawFixture(t)
	f.list.ResourceBarrier(gpu.Transition{Resource: f.tex, Before: gpu.StatePixelShaderResource, After: gpu.StateCopyDest})
	f.recordBindings()
	f.list.SetGraphicsRootDescriptorTable(2, f.heap.GPUStart())
	f.list.DrawIndexedInstanced(3, 1, 0, 0, 0)
	require.NoError(t, f.list.Close())
	require.NoError(t, f.queue.ExecuteCommandLists(f.list))
	f.queue.(*Queue).Drain()

	assert.ErrorIs(t, f.dev.Err(), gpu.ErrInvalidState)
}

func TestExecute_IndexRangeChecked(t *testing.T) {
	f := newDrawFixture(t)
	f.recordBindings()
	f.list.SetGraphicsRootDescriptorTable(2, f.heap.GPUStart())
	f.list.DrawIndexedInstanced(3, 1, 1, 0, 0)
	require.NoError(t, f.list.Close())
	require.NoError(t, f.queue.ExecuteCommandLists(f.list))
	f.queue.(*Queue).Drain()

	assert.ErrorIs(t, f.dev.Err(), gpu.ErrDeviceRemoved)
}
